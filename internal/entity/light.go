package entity

import (
	"context"
	"fmt"

	"github.com/dokzlo13/wledd/internal/wled"
)

// Color modes reported by lights
const (
	ColorModeBrightness = "brightness"
	ColorModeRGB        = "rgb"
	ColorModeRGBW       = "rgbw"
)

// MasterLight controls device-level power and brightness
type MasterLight struct {
	*DeviceEntity
}

// NewMasterLight creates the master light of a device. Its unique id is the MAC address.
func NewMasterLight(c Coordinator, info wled.Info) *MasterLight {
	return &MasterLight{
		DeviceEntity: newDeviceEntity(c, info, info.MACAddress, info.Name+" Master"),
	}
}

func (l *MasterLight) Kind() Kind { return KindLight }

// Available is false until the device has a master light
func (l *MasterLight) Available() bool {
	return l.coordinator.HasMasterLight() && l.DeviceEntity.Available()
}

// IsOn returns device-level power
func (l *MasterLight) IsOn() bool {
	d := l.Device()
	return d != nil && d.State.On
}

// Brightness returns device-level brightness
func (l *MasterLight) Brightness() uint8 {
	d := l.Device()
	if d == nil {
		return 0
	}
	return d.State.Brightness
}

func (l *MasterLight) TurnOn(ctx context.Context, opts TurnOnOptions) error {
	tr, err := transition(opts.Transition)
	if err != nil {
		return err
	}
	return l.guard(ctx, "turn_on", func(ctx context.Context) error {
		return l.coordinator.SetMaster(ctx, wled.MasterRequest{
			On:         ptr(true),
			Brightness: opts.Brightness,
			Transition: tr,
		})
	})
}

func (l *MasterLight) TurnOff(ctx context.Context, opts TurnOffOptions) error {
	tr, err := transition(opts.Transition)
	if err != nil {
		return err
	}
	return l.guard(ctx, "turn_off", func(ctx context.Context) error {
		return l.coordinator.SetMaster(ctx, wled.MasterRequest{On: ptr(false), Transition: tr})
	})
}

// SetColors does nothing: the master light has no colors
func (l *MasterLight) SetColors(ctx context.Context, req ColorsRequest) error {
	return req.Validate()
}

func (l *MasterLight) State() State {
	s := l.baseState(KindLight, l.Available())
	if l.Device() != nil {
		s.On = ptr(l.IsOn())
		s.Brightness = ptr(l.Brightness())
	}
	s.Attributes = map[string]any{"color_mode": ColorModeBrightness}
	return s
}

// SegmentLight controls one segment. Without a master light it folds the
// device-level power and brightness into its own state.
type SegmentLight struct {
	*DeviceEntity
	segmentID int
	colorMode string
}

// NewSegmentLight creates the light for a segment.
// Segment 0 carries the plain device name.
func NewSegmentLight(c Coordinator, info wled.Info, segmentID int) *SegmentLight {
	name := fmt.Sprintf("%s Segment %d", info.Name, segmentID)
	if segmentID == 0 {
		name = info.Name
	}

	mode := ColorModeRGB
	if info.LEDs.RGBW && info.LEDs.WhiteValue {
		mode = ColorModeRGBW
	}

	return &SegmentLight{
		DeviceEntity: newDeviceEntity(c, info, fmt.Sprintf("%s_%d", info.MACAddress, segmentID), name),
		segmentID:    segmentID,
		colorMode:    mode,
	}
}

func (l *SegmentLight) Kind() Kind { return KindLight }

// SegmentID returns the device segment this light controls
func (l *SegmentLight) SegmentID() int { return l.segmentID }

// ColorMode returns "rgb" or "rgbw"
func (l *SegmentLight) ColorMode() string { return l.colorMode }

// Available is false while the segment is missing from the device
func (l *SegmentLight) Available() bool {
	if _, _, err := l.segment(l.segmentID); err != nil {
		return false
	}
	return l.DeviceEntity.Available()
}

func (l *SegmentLight) IsOn() bool {
	d, seg, err := l.segment(l.segmentID)
	if err != nil {
		return false
	}
	if !l.coordinator.HasMasterLight() {
		return EffectiveOn(d.State.On, seg.On)
	}
	return seg.On
}

func (l *SegmentLight) Brightness() uint8 {
	d, seg, err := l.segment(l.segmentID)
	if err != nil {
		return 0
	}
	if !l.coordinator.HasMasterLight() {
		return EffectiveBrightness(seg.Brightness, d.State.Brightness)
	}
	return seg.Brightness
}

// TurnOn turns the segment on. Without a master light the requested
// brightness goes to the device and the segment is driven at full
// brightness, so the composite brightness ends up as requested.
func (l *SegmentLight) TurnOn(ctx context.Context, opts TurnOnOptions) error {
	tr, err := transition(opts.Transition)
	if err != nil {
		return err
	}

	seg := wled.SegmentRequest{
		SegmentID:    l.segmentID,
		On:           ptr(true),
		ColorPrimary: opts.Color,
		Effect:       opts.Effect,
	}

	return l.guard(ctx, "turn_on", func(ctx context.Context) error {
		if l.coordinator.HasMasterLight() {
			seg.Brightness = opts.Brightness
			seg.Transition = tr
			return l.coordinator.SetSegment(ctx, seg)
		}

		master := wled.MasterRequest{On: ptr(true), Transition: tr}
		if opts.Brightness != nil {
			master.Brightness = opts.Brightness
			seg.Brightness = ptr(uint8(255))
		}
		if err := l.coordinator.SetSegment(ctx, seg); err != nil {
			return err
		}
		return l.coordinator.SetMaster(ctx, master)
	})
}

// TurnOff turns the segment off, or the whole device when there is no master light
func (l *SegmentLight) TurnOff(ctx context.Context, opts TurnOffOptions) error {
	tr, err := transition(opts.Transition)
	if err != nil {
		return err
	}

	return l.guard(ctx, "turn_off", func(ctx context.Context) error {
		if !l.coordinator.HasMasterLight() {
			return l.coordinator.SetMaster(ctx, wled.MasterRequest{On: ptr(false), Transition: tr})
		}
		return l.coordinator.SetSegment(ctx, wled.SegmentRequest{
			SegmentID:  l.segmentID,
			On:         ptr(false),
			Transition: tr,
		})
	})
}

// SetColors sets any of the three color slots
func (l *SegmentLight) SetColors(ctx context.Context, req ColorsRequest) error {
	colors, err := req.Resolve()
	if err != nil {
		return err
	}
	if req.IsEmpty() {
		return nil
	}

	return l.guard(ctx, "set_colors", func(ctx context.Context) error {
		return l.coordinator.SetSegment(ctx, wled.SegmentRequest{
			SegmentID:      l.segmentID,
			ColorPrimary:   colors[0],
			ColorSecondary: colors[1],
			ColorTertiary:  colors[2],
		})
	})
}

func (l *SegmentLight) State() State {
	s := l.baseState(KindLight, l.Available())
	s.Attributes = map[string]any{
		"color_mode": l.colorMode,
		"segment_id": l.segmentID,
	}

	d, seg, err := l.segment(l.segmentID)
	if err != nil {
		return s
	}

	s.On = ptr(l.IsOn())
	s.Brightness = ptr(l.Brightness())
	s.Attributes["color_primary"] = seg.ColorPrimary.Slice()
	s.Attributes["color_secondary"] = seg.ColorSecondary.Slice()
	s.Attributes["color_tertiary"] = seg.ColorTertiary.Slice()
	s.Attributes["effect"] = seg.Effect.Name
	s.Attributes["effect_list"] = d.EffectNames()
	if l.colorMode == ColorModeRGBW {
		s.Attributes["rgbw_color"] = []int{int(seg.ColorPrimary.R), int(seg.ColorPrimary.G), int(seg.ColorPrimary.B), int(seg.ColorPrimary.W)}
	} else {
		rgb := seg.ColorPrimary.RGB()
		s.Attributes["rgb_color"] = []int{int(rgb.R), int(rgb.G), int(rgb.B)}
	}
	return s
}
