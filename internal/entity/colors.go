package entity

import (
	"fmt"

	"github.com/dokzlo13/wledd/internal/color"
	"github.com/dokzlo13/wledd/internal/wled"
)

// ColorsRequest is the input of the "set colors" action. Each slot takes
// either explicit components (3 or 4 values, 0..255) or a catalog color
// name, never both.
type ColorsRequest struct {
	ColorPrimary       []int  `json:"color_primary,omitempty"`
	ColorSecondary     []int  `json:"color_secondary,omitempty"`
	ColorTertiary      []int  `json:"color_tertiary,omitempty"`
	ColorNamePrimary   string `json:"color_name_primary,omitempty"`
	ColorNameSecondary string `json:"color_name_secondary,omitempty"`
	ColorNameTertiary  string `json:"color_name_tertiary,omitempty"`
}

// Validate checks the request without resolving anything against a device
func (r ColorsRequest) Validate() error {
	_, err := r.Resolve()
	return err
}

// Resolve turns the request into per-slot colors. Unset slots are nil.
// Color names produce 3-channel colors; the white channel is left to the device.
func (r ColorsRequest) Resolve() ([3]*wled.Color, error) {
	var out [3]*wled.Color
	slots := []struct {
		name       string
		components []int
		colorName  string
	}{
		{"primary", r.ColorPrimary, r.ColorNamePrimary},
		{"secondary", r.ColorSecondary, r.ColorNameSecondary},
		{"tertiary", r.ColorTertiary, r.ColorNameTertiary},
	}

	for i, s := range slots {
		c, err := resolveSlot(s.components, s.colorName)
		if err != nil {
			return out, fmt.Errorf("%s: %w", s.name, err)
		}
		out[i] = c
	}
	return out, nil
}

// IsEmpty reports whether no slot is set
func (r ColorsRequest) IsEmpty() bool {
	return r.ColorPrimary == nil && r.ColorSecondary == nil && r.ColorTertiary == nil &&
		r.ColorNamePrimary == "" && r.ColorNameSecondary == "" && r.ColorNameTertiary == ""
}

func resolveSlot(components []int, name string) (*wled.Color, error) {
	if components != nil && name != "" {
		return nil, ErrExclusiveColor
	}
	if name != "" {
		rgb, err := color.Lookup(name)
		if err != nil {
			return nil, err
		}
		c := wled.FromRGB(rgb)
		return &c, nil
	}
	if components == nil {
		return nil, nil
	}
	return ColorFromComponents(components)
}

// ColorFromComponents validates 3 or 4 channel values
func ColorFromComponents(components []int) (*wled.Color, error) {
	if len(components) != 3 && len(components) != 4 {
		return nil, fmt.Errorf("%w: want 3 or 4 values, got %d", ErrColorComponent, len(components))
	}
	for _, v := range components {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("%w: %d out of range", ErrColorComponent, v)
		}
	}

	rgb := color.RGB{R: uint8(components[0]), G: uint8(components[1]), B: uint8(components[2])}
	if len(components) == 4 {
		c := wled.FromRGBW(rgb, uint8(components[3]))
		return &c, nil
	}
	c := wled.FromRGB(rgb)
	return &c, nil
}
