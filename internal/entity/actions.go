package entity

import (
	"context"
	"errors"
	"fmt"

	"github.com/dokzlo13/wledd/internal/color"
	"github.com/dokzlo13/wledd/internal/wled"
)

var (
	// ErrNotLight is returned when a light action targets another kind
	ErrNotLight = errors.New("entity is not a light")

	// ErrNotSelect is returned when a select action targets another kind
	ErrNotSelect = errors.New("entity is not a select")

	ErrBrightnessRange = errors.New("brightness must be within 0..255")
	ErrMissingOption   = errors.New("option is required")
)

// TurnOnRequest is the wire form of a turn on action
type TurnOnRequest struct {
	Brightness *int     `json:"brightness,omitempty"`
	Transition *float64 `json:"transition,omitempty"`
	RGBColor   []int    `json:"rgb_color,omitempty"`
	RGBWColor  []int    `json:"rgbw_color,omitempty"`
	Effect     *string  `json:"effect,omitempty"`
}

// Options validates the request
func (r TurnOnRequest) Options() (TurnOnOptions, error) {
	opts := TurnOnOptions{Transition: r.Transition, Effect: r.Effect}

	if r.Brightness != nil {
		if *r.Brightness < 0 || *r.Brightness > 255 {
			return opts, fmt.Errorf("%w: %d", ErrBrightnessRange, *r.Brightness)
		}
		opts.Brightness = ptr(uint8(*r.Brightness))
	}

	switch {
	case r.RGBColor != nil && r.RGBWColor != nil:
		return opts, fmt.Errorf("rgb_color: %w", ErrExclusiveColor)
	case r.RGBColor != nil:
		if len(r.RGBColor) != 3 {
			return opts, fmt.Errorf("rgb_color: %w: want 3 values, got %d", ErrColorComponent, len(r.RGBColor))
		}
		c, err := ColorFromComponents(r.RGBColor)
		if err != nil {
			return opts, fmt.Errorf("rgb_color: %w", err)
		}
		opts.Color = c
	case r.RGBWColor != nil:
		if len(r.RGBWColor) != 4 {
			return opts, fmt.Errorf("rgbw_color: %w: want 4 values, got %d", ErrColorComponent, len(r.RGBWColor))
		}
		c, err := ColorFromComponents(r.RGBWColor)
		if err != nil {
			return opts, fmt.Errorf("rgbw_color: %w", err)
		}
		opts.Color = c
	}

	if _, err := transition(opts.Transition); err != nil {
		return opts, err
	}
	return opts, nil
}

// TurnOffRequest is the wire form of a turn off action
type TurnOffRequest struct {
	Transition *float64 `json:"transition,omitempty"`
}

// SelectRequest is the wire form of a select option action
type SelectRequest struct {
	Option string `json:"option"`
}

// TurnOn runs a turn on action against any entity
func TurnOn(ctx context.Context, e Entity, req TurnOnRequest) error {
	l, ok := e.(Light)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotLight, e.UniqueID())
	}
	opts, err := req.Options()
	if err != nil {
		return err
	}
	return l.TurnOn(ctx, opts)
}

// TurnOff runs a turn off action against any entity
func TurnOff(ctx context.Context, e Entity, req TurnOffRequest) error {
	l, ok := e.(Light)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotLight, e.UniqueID())
	}
	return l.TurnOff(ctx, TurnOffOptions{Transition: req.Transition})
}

// SetColors runs a set colors action against any entity
func SetColors(ctx context.Context, e Entity, req ColorsRequest) error {
	l, ok := e.(Light)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotLight, e.UniqueID())
	}
	return l.SetColors(ctx, req)
}

// SelectOption runs a select option action against any entity
func SelectOption(ctx context.Context, e Entity, req SelectRequest) error {
	s, ok := e.(Select)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotSelect, e.UniqueID())
	}
	if req.Option == "" {
		return ErrMissingOption
	}
	return s.SelectOption(ctx, req.Option)
}

// IsKindMismatch reports whether err came from an action sent to the wrong kind
func IsKindMismatch(err error) bool {
	return errors.Is(err, ErrNotLight) || errors.Is(err, ErrNotSelect)
}

// IsInputError reports whether err is caused by the caller's input
func IsInputError(err error) bool {
	for _, target := range []error{
		ErrInvalidOption, ErrExclusiveColor, ErrColorComponent, ErrInvalidTransition,
		ErrBrightnessRange, ErrMissingOption, ErrSegmentMissing, color.ErrUnknownColorName,
		wled.ErrUnknownEffect, wled.ErrUnknownPalette, wled.ErrUnknownPreset, wled.ErrUnknownPlaylist,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
