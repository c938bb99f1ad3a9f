package entity

import (
	"context"
	"fmt"
	"slices"

	"github.com/dokzlo13/wledd/internal/color"
	"github.com/dokzlo13/wledd/internal/reconcile"
	"github.com/dokzlo13/wledd/internal/wled"
)

func selectState(e *DeviceEntity, s Select) State {
	st := e.baseState(KindSelect, s.Available())
	if e.Device() != nil {
		st.Options = s.Options()
		if opt := s.CurrentOption(); opt != "" {
			st.Option = ptr(opt)
		}
	}
	return st
}

func invalidOption(option string) error {
	return fmt.Errorf("%w: %q", ErrInvalidOption, option)
}

// LiveOverrideSelect switches the device's live data override mode
type LiveOverrideSelect struct {
	*DeviceEntity
}

func NewLiveOverrideSelect(c Coordinator, info wled.Info) *LiveOverrideSelect {
	return &LiveOverrideSelect{
		DeviceEntity: newDeviceEntity(c, info, info.MACAddress+"_live_override", info.Name+" Live override"),
	}
}

func (s *LiveOverrideSelect) Kind() Kind   { return KindSelect }
func (s *LiveOverrideSelect) State() State { return selectState(s.DeviceEntity, s) }

func (s *LiveOverrideSelect) Options() []string {
	opts := make([]string, len(wled.LiveOverrides))
	for i, l := range wled.LiveOverrides {
		opts[i] = l.String()
	}
	return opts
}

func (s *LiveOverrideSelect) CurrentOption() string {
	d := s.Device()
	if d == nil {
		return ""
	}
	return d.State.Live.String()
}

func (s *LiveOverrideSelect) SelectOption(ctx context.Context, option string) error {
	live, ok := wled.ParseLiveOverride(option)
	if !ok {
		return invalidOption(option)
	}
	return s.guard(ctx, "select_option", func(ctx context.Context) error {
		return s.coordinator.SetLiveOverride(ctx, live)
	})
}

// PresetSelect activates stored presets. Unavailable when the device has none.
type PresetSelect struct {
	*DeviceEntity
}

func NewPresetSelect(c Coordinator, info wled.Info) *PresetSelect {
	return &PresetSelect{
		DeviceEntity: newDeviceEntity(c, info, info.MACAddress+"_preset", info.Name+" Preset"),
	}
}

func (s *PresetSelect) Kind() Kind   { return KindSelect }
func (s *PresetSelect) State() State { return selectState(s.DeviceEntity, s) }

func (s *PresetSelect) Available() bool {
	d := s.Device()
	return d != nil && len(d.Presets) > 0 && s.DeviceEntity.Available()
}

func (s *PresetSelect) Options() []string {
	if d := s.Device(); d != nil {
		return d.PresetNames()
	}
	return nil
}

func (s *PresetSelect) CurrentOption() string {
	d := s.Device()
	if d == nil || d.State.Preset == nil {
		return ""
	}
	return d.State.Preset.Name
}

func (s *PresetSelect) SelectOption(ctx context.Context, option string) error {
	if !slices.Contains(s.Options(), option) {
		return invalidOption(option)
	}
	return s.guard(ctx, "select_option", func(ctx context.Context) error {
		return s.coordinator.SetPreset(ctx, option)
	})
}

// PlaylistSelect starts playlists. Unavailable when the device has none.
type PlaylistSelect struct {
	*DeviceEntity
}

func NewPlaylistSelect(c Coordinator, info wled.Info) *PlaylistSelect {
	return &PlaylistSelect{
		DeviceEntity: newDeviceEntity(c, info, info.MACAddress+"_playlist", info.Name+" Playlist"),
	}
}

func (s *PlaylistSelect) Kind() Kind   { return KindSelect }
func (s *PlaylistSelect) State() State { return selectState(s.DeviceEntity, s) }

func (s *PlaylistSelect) Available() bool {
	d := s.Device()
	return d != nil && len(d.Playlists) > 0 && s.DeviceEntity.Available()
}

func (s *PlaylistSelect) Options() []string {
	if d := s.Device(); d != nil {
		return d.PlaylistNames()
	}
	return nil
}

func (s *PlaylistSelect) CurrentOption() string {
	d := s.Device()
	if d == nil || d.State.Playlist == nil {
		return ""
	}
	return d.State.Playlist.Name
}

func (s *PlaylistSelect) SelectOption(ctx context.Context, option string) error {
	if !slices.Contains(s.Options(), option) {
		return invalidOption(option)
	}
	return s.guard(ctx, "select_option", func(ctx context.Context) error {
		return s.coordinator.SetPlaylist(ctx, option)
	})
}

// PaletteSelect picks the color palette of one segment
type PaletteSelect struct {
	*DeviceEntity
	segmentID int
}

func NewPaletteSelect(c Coordinator, info wled.Info, segmentID int) *PaletteSelect {
	name := info.Name + " Color palette"
	if segmentID != 0 {
		name = fmt.Sprintf("%s Segment %d color palette", info.Name, segmentID)
	}
	return &PaletteSelect{
		DeviceEntity: newDeviceEntity(c, info, fmt.Sprintf("%s_palette_%d", info.MACAddress, segmentID), name),
		segmentID:    segmentID,
	}
}

func (s *PaletteSelect) Kind() Kind   { return KindSelect }
func (s *PaletteSelect) State() State { return selectState(s.DeviceEntity, s) }

func (s *PaletteSelect) Available() bool {
	if _, _, err := s.segment(s.segmentID); err != nil {
		return false
	}
	return s.DeviceEntity.Available()
}

func (s *PaletteSelect) Options() []string {
	if d := s.Device(); d != nil {
		return d.PaletteNames()
	}
	return nil
}

func (s *PaletteSelect) CurrentOption() string {
	_, seg, err := s.segment(s.segmentID)
	if err != nil {
		return ""
	}
	return seg.Palette.Name
}

func (s *PaletteSelect) SelectOption(ctx context.Context, option string) error {
	if !slices.Contains(s.Options(), option) {
		return invalidOption(option)
	}
	return s.guard(ctx, "select_option", func(ctx context.Context) error {
		return s.coordinator.SetSegment(ctx, wled.SegmentRequest{SegmentID: s.segmentID, Palette: &option})
	})
}

// ColorSelect picks a named color for one slot of one segment. The current
// option is "Custom" whenever the slot holds a color outside the catalog;
// "Custom" is listed but cannot be selected.
type ColorSelect struct {
	*DeviceEntity
	segmentID int
	slot      reconcile.Slot
}

func NewColorSelect(c Coordinator, info wled.Info, segmentID int, slot reconcile.Slot) *ColorSelect {
	name := fmt.Sprintf("%s %s color", info.Name, slot)
	if segmentID != 0 {
		name = fmt.Sprintf("%s Segment %d %s color", info.Name, segmentID, slot)
	}
	return &ColorSelect{
		DeviceEntity: newDeviceEntity(c, info, fmt.Sprintf("%s_%s_color_%d", info.MACAddress, slot, segmentID), name),
		segmentID:    segmentID,
		slot:         slot,
	}
}

func (s *ColorSelect) Kind() Kind   { return KindSelect }
func (s *ColorSelect) State() State { return selectState(s.DeviceEntity, s) }

// Slot returns the color slot this select controls
func (s *ColorSelect) Slot() reconcile.Slot { return s.slot }

func (s *ColorSelect) Available() bool {
	if _, _, err := s.segment(s.segmentID); err != nil {
		return false
	}
	return s.DeviceEntity.Available()
}

func (s *ColorSelect) Options() []string {
	return append(color.Names(), color.Custom)
}

func (s *ColorSelect) CurrentOption() string {
	_, seg, err := s.segment(s.segmentID)
	if err != nil {
		return ""
	}
	switch s.slot {
	case reconcile.SlotSecondary:
		return color.Match(seg.ColorSecondary.RGB())
	case reconcile.SlotTertiary:
		return color.Match(seg.ColorTertiary.RGB())
	default:
		return color.Match(seg.ColorPrimary.RGB())
	}
}

func (s *ColorSelect) SelectOption(ctx context.Context, option string) error {
	if option == color.Custom {
		return invalidOption(option)
	}
	rgb, err := color.Lookup(option)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOption, err)
	}

	c := wled.FromRGB(rgb)
	req := wled.SegmentRequest{SegmentID: s.segmentID}
	switch s.slot {
	case reconcile.SlotSecondary:
		req.ColorSecondary = &c
	case reconcile.SlotTertiary:
		req.ColorTertiary = &c
	default:
		req.ColorPrimary = &c
	}

	return s.guard(ctx, "select_option", func(ctx context.Context) error {
		return s.coordinator.SetSegment(ctx, req)
	})
}
