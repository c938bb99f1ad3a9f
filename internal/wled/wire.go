package wled

import (
	"encoding/json"
	"sort"
	"strconv"
)

// rawSegment is a segment as returned by /json
type rawSegment struct {
	ID    int     `json:"id"`
	Start int     `json:"start"`
	Stop  int     `json:"stop"`
	On    *bool   `json:"on"`
	Bri   *int    `json:"bri"`
	Col   [][]int `json:"col"`
	Fx    int     `json:"fx"`
	Sx    int     `json:"sx"`
	Ix    int     `json:"ix"`
	Pal   int     `json:"pal"`
}

// rawState is the "state" object of /json
type rawState struct {
	On         bool         `json:"on"`
	Bri        int          `json:"bri"`
	Transition int          `json:"transition"`
	PS         int          `json:"ps"`
	PL         int          `json:"pl"`
	LOR        int          `json:"lor"`
	Seg        []rawSegment `json:"seg"`
}

// rawInfo is the "info" object of /json
type rawInfo struct {
	Ver  string `json:"ver"`
	Name string `json:"name"`
	MAC  string `json:"mac"`
	LEDs struct {
		Count int  `json:"count"`
		RGBW  bool `json:"rgbw"`
		WV    bool `json:"wv"`
	} `json:"leds"`
}

// rawDevice is the full /json document
type rawDevice struct {
	State    rawState `json:"state"`
	Info     rawInfo  `json:"info"`
	Effects  []string `json:"effects"`
	Palettes []string `json:"palettes"`
}

// rawPreset is one entry of /presets.json
type rawPreset struct {
	Name     string          `json:"n"`
	Playlist json.RawMessage `json:"playlist"`
}

// decodeDevice converts the wire documents into an immutable snapshot
func decodeDevice(raw rawDevice, presets map[string]rawPreset) *Device {
	d := &Device{
		Info: Info{
			Name:       raw.Info.Name,
			MACAddress: raw.Info.MAC,
			Version:    raw.Info.Ver,
			LEDs: LEDs{
				Count:      raw.Info.LEDs.Count,
				RGBW:       raw.Info.LEDs.RGBW,
				WhiteValue: raw.Info.LEDs.WV,
			},
		},
	}

	for i, name := range raw.Effects {
		d.Effects = append(d.Effects, Effect{ID: i, Name: name})
	}
	for i, name := range raw.Palettes {
		d.Palettes = append(d.Palettes, Palette{ID: i, Name: name})
	}

	ids := make([]int, 0, len(presets))
	for key, p := range presets {
		id, err := strconv.Atoi(key)
		if err != nil || p.Name == "" {
			continue
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		p := presets[strconv.Itoa(id)]
		if len(p.Playlist) > 0 && string(p.Playlist) != "null" {
			d.Playlists = append(d.Playlists, Playlist{ID: id, Name: p.Name})
		} else {
			d.Presets = append(d.Presets, Preset{ID: id, Name: p.Name})
		}
	}

	d.State = State{
		On:         raw.State.On,
		Brightness: clampByte(raw.State.Bri),
		Transition: raw.State.Transition,
		Live:       LiveOverride(raw.State.LOR),
	}
	for _, p := range d.Presets {
		if p.ID == raw.State.PS {
			preset := p
			d.State.Preset = &preset
			break
		}
	}
	for _, p := range d.Playlists {
		if p.ID == raw.State.PL {
			playlist := p
			d.State.Playlist = &playlist
			break
		}
	}

	for _, rs := range raw.State.Seg {
		// stop == 0 marks a deleted segment slot
		if rs.Stop == 0 {
			continue
		}
		d.State.Segments = append(d.State.Segments, decodeSegment(d, rs))
	}

	return d
}

func decodeSegment(d *Device, rs rawSegment) Segment {
	seg := Segment{
		ID:         rs.ID,
		On:         true,
		Brightness: 255,
		Start:      rs.Start,
		Stop:       rs.Stop,
		Speed:      rs.Sx,
		Intensity:  rs.Ix,
		Effect:     Effect{ID: rs.Fx},
		Palette:    Palette{ID: rs.Pal},
	}
	if rs.On != nil {
		seg.On = *rs.On
	}
	if rs.Bri != nil {
		seg.Brightness = clampByte(*rs.Bri)
	}
	if rs.Fx >= 0 && rs.Fx < len(d.Effects) {
		seg.Effect = d.Effects[rs.Fx]
	}
	if rs.Pal >= 0 && rs.Pal < len(d.Palettes) {
		seg.Palette = d.Palettes[rs.Pal]
	}

	slots := []*Color{&seg.ColorPrimary, &seg.ColorSecondary, &seg.ColorTertiary}
	for i, slot := range slots {
		if i < len(rs.Col) {
			*slot = decodeColor(rs.Col[i])
		}
	}
	return seg
}

func decodeColor(ch []int) Color {
	var c Color
	if len(ch) >= 3 {
		c.R, c.G, c.B = clampByte(ch[0]), clampByte(ch[1]), clampByte(ch[2])
	}
	if len(ch) >= 4 {
		c.W = clampByte(ch[3])
		c.HasWhite = true
	}
	return c
}

func clampByte(v int) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	default:
		return uint8(v)
	}
}
