// Package wledtest provides an in-process fake WLED device for tests.
package wledtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
)

// Segment is the fake's mutable segment state
type Segment struct {
	ID    int
	On    bool
	Bri   int
	Start int
	Stop  int
	Col   [][]int
	Fx    int
	Pal   int
}

// Server is a fake WLED device. It applies POSTed state like the firmware does.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	name     string
	mac      string
	rgbw     bool
	on       bool
	bri      int
	lor      int
	ps       int
	pl       int
	segments []Segment
	effects  []string
	palettes []string
	presets  map[string]map[string]any
	posts    []map[string]any
	fail     bool
	status   int
}

// NewServer starts a fake with one segment, three effects and two palettes
func NewServer() *Server {
	s := &Server{
		name:     "Desk",
		mac:      "aabbccddeeff",
		on:       true,
		bri:      255,
		ps:       -1,
		pl:       -1,
		effects:  []string{"Solid", "Blink", "Rainbow"},
		palettes: []string{"Default", "Party"},
		presets: map[string]map[string]any{
			"0": {},
			"1": {"n": "Morning"},
			"2": {"n": "Evening"},
			"3": {"n": "Cycle", "playlist": map[string]any{"ps": []int{1, 2}}},
		},
		segments: []Segment{
			{ID: 0, On: true, Bri: 255, Start: 0, Stop: 30, Col: [][]int{{255, 0, 0}, {0, 0, 0}, {0, 0, 0}}},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/json", s.handleJSON)
	mux.HandleFunc("/presets.json", s.handlePresets)
	mux.HandleFunc("/json/state", s.handleState)
	s.Server = httptest.NewServer(mux)
	return s
}

// SetSegments replaces the segment list
func (s *Server) SetSegments(segs ...Segment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segments = append([]Segment(nil), segs...)
}

// SetMaster sets device-level power and brightness
func (s *Server) SetMaster(on bool, bri int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.on = on
	s.bri = bri
}

// SetRGBW toggles the rgbw/wv capability flags
func (s *Server) SetRGBW(rgbw bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rgbw = rgbw
}

// SetPresets replaces presets.json; nil means no presets at all
func (s *Server) SetPresets(presets map[string]map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presets = presets
	if s.presets == nil {
		s.presets = map[string]map[string]any{"0": {}}
	}
}

// SetFailing makes every request fail with the given status (0 = healthy)
func (s *Server) SetFailing(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = status != 0
	s.status = status
}

// Master returns device-level power and brightness
func (s *Server) Master() (bool, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.on, s.bri
}

// Segment returns the fake's segment by id
func (s *Server) Segment(id int) (Segment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, seg := range s.segments {
		if seg.ID == id {
			return seg, true
		}
	}
	return Segment{}, false
}

// Live returns the live override mode
func (s *Server) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lor
}

// Preset returns the active preset id
func (s *Server) Preset() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ps
}

// Posts returns every state payload received, in order
func (s *Server) Posts() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.posts...)
}

func (s *Server) failing(w http.ResponseWriter) bool {
	if !s.fail {
		return false
	}
	http.Error(w, "unavailable", s.status)
	return true
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing(w) {
		return
	}

	segs := make([]map[string]any, 0, len(s.segments))
	for _, seg := range s.segments {
		segs = append(segs, map[string]any{
			"id": seg.ID, "on": seg.On, "bri": seg.Bri, "start": seg.Start, "stop": seg.Stop,
			"col": seg.Col, "fx": seg.Fx, "pal": seg.Pal, "sx": 128, "ix": 128,
		})
	}
	doc := map[string]any{
		"state": map[string]any{
			"on": s.on, "bri": s.bri, "transition": 7, "ps": s.ps, "pl": s.pl, "lor": s.lor, "seg": segs,
		},
		"info": map[string]any{
			"ver": "0.14.0", "name": s.name, "mac": s.mac,
			"leds": map[string]any{"count": 30, "rgbw": s.rgbw, "wv": s.rgbw},
		},
		"effects":  s.effects,
		"palettes": s.palettes,
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(doc)
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing(w) {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.presets)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing(w) {
		return
	}

	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.posts = append(s.posts, payload)
	s.apply(payload)

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"success":true}`))
}

func (s *Server) apply(p map[string]any) {
	if v, ok := p["on"].(bool); ok {
		s.on = v
	}
	if v, ok := p["bri"].(float64); ok {
		s.bri = int(v)
	}
	if v, ok := p["lor"].(float64); ok {
		s.lor = int(v)
	}
	if v, ok := p["ps"].(float64); ok {
		id := strconv.Itoa(int(v))
		if preset, ok := s.presets[id]; ok {
			if _, isPlaylist := preset["playlist"]; isPlaylist {
				s.pl = int(v)
			} else {
				s.ps = int(v)
			}
		}
	}

	segs, _ := p["seg"].([]any)
	for _, raw := range segs {
		upd, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		id, _ := upd["id"].(float64)
		for i := range s.segments {
			seg := &s.segments[i]
			if seg.ID != int(id) {
				continue
			}
			if v, ok := upd["on"].(bool); ok {
				seg.On = v
			}
			if v, ok := upd["bri"].(float64); ok {
				seg.Bri = int(v)
			}
			if v, ok := upd["fx"].(float64); ok {
				seg.Fx = int(v)
			}
			if v, ok := upd["pal"].(float64); ok {
				seg.Pal = int(v)
			}
			if cols, ok := upd["col"].([]any); ok {
				for slot, c := range cols {
					ch, _ := c.([]any)
					if slot >= len(seg.Col) || len(ch) == 0 {
						continue
					}
					vals := make([]int, len(ch))
					for j, x := range ch {
						f, _ := x.(float64)
						vals[j] = int(f)
					}
					seg.Col[slot] = vals
				}
			}
		}
	}
}
