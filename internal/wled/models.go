package wled

import (
	"sort"
	"strconv"

	"github.com/dokzlo13/wledd/internal/color"
)

// LiveOverride is the device's live data override mode (lor)
type LiveOverride int

// Live override modes
const (
	LiveOverrideOff         LiveOverride = 0
	LiveOverrideOn          LiveOverride = 1
	LiveOverrideUntilReboot LiveOverride = 2
)

// LiveOverrides lists every mode in wire order
var LiveOverrides = []LiveOverride{LiveOverrideOff, LiveOverrideOn, LiveOverrideUntilReboot}

// String returns the decimal form used as a select option
func (l LiveOverride) String() string {
	return strconv.Itoa(int(l))
}

// ParseLiveOverride parses a select option back into a mode
func ParseLiveOverride(s string) (LiveOverride, bool) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	for _, l := range LiveOverrides {
		if int(l) == n {
			return l, true
		}
	}
	return 0, false
}

// Color is a segment color slot, 3 or 4 channels
type Color struct {
	R, G, B, W uint8
	HasWhite   bool
}

// RGB returns the first three channels
func (c Color) RGB() color.RGB {
	return color.RGB{R: c.R, G: c.G, B: c.B}
}

// FromRGB builds a 3-channel color
func FromRGB(rgb color.RGB) Color {
	return Color{R: rgb.R, G: rgb.G, B: rgb.B}
}

// FromRGBW builds a 4-channel color
func FromRGBW(rgb color.RGB, w uint8) Color {
	return Color{R: rgb.R, G: rgb.G, B: rgb.B, W: w, HasWhite: true}
}

// Slice returns the channels as ints, as the JSON API expects
func (c Color) Slice() []int {
	if c.HasWhite {
		return []int{int(c.R), int(c.G), int(c.B), int(c.W)}
	}
	return []int{int(c.R), int(c.G), int(c.B)}
}

// Effect is a named entry of the device's effect list
type Effect struct {
	ID   int
	Name string
}

// Palette is a named entry of the device's palette list
type Palette struct {
	ID   int
	Name string
}

// Preset is a stored device preset
type Preset struct {
	ID   int
	Name string
}

// Playlist is a preset that cycles other presets
type Playlist struct {
	ID   int
	Name string
}

// LEDs describes the strip's channel capabilities
type LEDs struct {
	Count      int
	RGBW       bool
	WhiteValue bool
}

// Info is static-ish device information
type Info struct {
	Name       string
	MACAddress string
	Version    string
	LEDs       LEDs
}

// Segment is one independently addressable subsection of the strip
type Segment struct {
	ID             int
	On             bool
	Brightness     uint8
	Start          int
	Stop           int
	ColorPrimary   Color
	ColorSecondary Color
	ColorTertiary  Color
	Effect         Effect
	Palette        Palette
	Speed          int
	Intensity      int
}

// State is the device-level power state plus segments
type State struct {
	On         bool
	Brightness uint8
	Transition int
	Live       LiveOverride
	Preset     *Preset
	Playlist   *Playlist
	Segments   []Segment
}

// Device is one immutable snapshot produced by a poll.
// Nothing mutates a Device after Update returns it; each poll yields a new one.
type Device struct {
	Info      Info
	State     State
	Effects   []Effect
	Palettes  []Palette
	Presets   []Preset
	Playlists []Playlist
}

// Segment returns the segment with the given id
func (d *Device) Segment(id int) (Segment, bool) {
	for _, s := range d.State.Segments {
		if s.ID == id {
			return s, true
		}
	}
	return Segment{}, false
}

// SegmentIDs returns the ids of all present segments in ascending order
func (d *Device) SegmentIDs() []int {
	ids := make([]int, 0, len(d.State.Segments))
	for _, s := range d.State.Segments {
		ids = append(ids, s.ID)
	}
	sort.Ints(ids)
	return ids
}

// EffectNames returns the effect list in device order
func (d *Device) EffectNames() []string {
	names := make([]string, len(d.Effects))
	for i, e := range d.Effects {
		names[i] = e.Name
	}
	return names
}

// PaletteNames returns the palette list in device order
func (d *Device) PaletteNames() []string {
	names := make([]string, len(d.Palettes))
	for i, p := range d.Palettes {
		names[i] = p.Name
	}
	return names
}

// PresetNames returns preset names in id order
func (d *Device) PresetNames() []string {
	names := make([]string, len(d.Presets))
	for i, p := range d.Presets {
		names[i] = p.Name
	}
	return names
}

// PlaylistNames returns playlist names in id order
func (d *Device) PlaylistNames() []string {
	names := make([]string, len(d.Playlists))
	for i, p := range d.Playlists {
		names[i] = p.Name
	}
	return names
}

func (d *Device) effectByName(name string) (Effect, bool) {
	for _, e := range d.Effects {
		if e.Name == name {
			return e, true
		}
	}
	return Effect{}, false
}

func (d *Device) paletteByName(name string) (Palette, bool) {
	for _, p := range d.Palettes {
		if p.Name == name {
			return p, true
		}
	}
	return Palette{}, false
}

func (d *Device) presetByName(name string) (Preset, bool) {
	for _, p := range d.Presets {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}

func (d *Device) playlistByName(name string) (Playlist, bool) {
	for _, p := range d.Playlists {
		if p.Name == name {
			return p, true
		}
	}
	return Playlist{}, false
}
