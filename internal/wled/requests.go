package wled

import "fmt"

// MasterRequest changes device-level power and brightness.
// Nil fields are left untouched on the device.
type MasterRequest struct {
	On         *bool
	Brightness *uint8
	Transition *int // device units of 100ms
}

// SegmentRequest changes one segment. Nil fields are left untouched.
type SegmentRequest struct {
	SegmentID      int
	On             *bool
	Brightness     *uint8
	ColorPrimary   *Color
	ColorSecondary *Color
	ColorTertiary  *Color
	Effect         *string
	Palette        *string
	Transition     *int // device units of 100ms
}

// IsEmpty reports whether the request would change nothing
func (r SegmentRequest) IsEmpty() bool {
	return r.On == nil && r.Brightness == nil &&
		r.ColorPrimary == nil && r.ColorSecondary == nil && r.ColorTertiary == nil &&
		r.Effect == nil && r.Palette == nil && r.Transition == nil
}

func (r MasterRequest) payload() map[string]any {
	p := make(map[string]any)
	if r.On != nil {
		p["on"] = *r.On
	}
	if r.Brightness != nil {
		p["bri"] = int(*r.Brightness)
	}
	if r.Transition != nil {
		p["transition"] = *r.Transition
	}
	return p
}

// payload serializes the request; names are resolved against the last snapshot.
func (r SegmentRequest) payload(d *Device) (map[string]any, error) {
	seg := map[string]any{"id": r.SegmentID}
	if r.On != nil {
		seg["on"] = *r.On
	}
	if r.Brightness != nil {
		seg["bri"] = int(*r.Brightness)
	}

	if r.Effect != nil {
		if d == nil {
			return nil, ErrNotLoaded
		}
		fx, ok := d.effectByName(*r.Effect)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownEffect, *r.Effect)
		}
		seg["fx"] = fx.ID
	}
	if r.Palette != nil {
		if d == nil {
			return nil, ErrNotLoaded
		}
		pal, ok := d.paletteByName(*r.Palette)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPalette, *r.Palette)
		}
		seg["pal"] = pal.ID
	}

	if cols := r.colors(d); cols != nil {
		seg["col"] = cols
	}

	p := map[string]any{"seg": []any{seg}}
	if r.Transition != nil {
		p["transition"] = *r.Transition
	}
	return p, nil
}

// colors builds the "col" array. Slots before the last requested one are
// filled with the segment's current colors so they are not overwritten.
func (r SegmentRequest) colors(d *Device) [][]int {
	requested := []*Color{r.ColorPrimary, r.ColorSecondary, r.ColorTertiary}
	last := -1
	for i, c := range requested {
		if c != nil {
			last = i
		}
	}
	if last < 0 {
		return nil
	}

	var current Segment
	if d != nil {
		current, _ = d.Segment(r.SegmentID)
	}
	existing := []Color{current.ColorPrimary, current.ColorSecondary, current.ColorTertiary}

	cols := make([][]int, 0, last+1)
	for i := 0; i <= last; i++ {
		if requested[i] != nil {
			cols = append(cols, requested[i].Slice())
		} else {
			cols = append(cols, existing[i].Slice())
		}
	}
	return cols
}
