// Package entity exposes a WLED device as light and select entities.
package entity

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dokzlo13/wledd/internal/wled"
)

var (
	// ErrSegmentMissing means the entity's segment is not in the latest snapshot.
	// Read properties never return it; they report the entity unavailable instead.
	ErrSegmentMissing = errors.New("segment not present on device")

	// ErrInvalidOption is returned when selecting a value outside the options list
	ErrInvalidOption = errors.New("invalid option")

	// ErrExclusiveColor is returned when a slot has both a color and a color name
	ErrExclusiveColor = errors.New("color and color name are exclusive")

	// ErrColorComponent is returned for colors that are not 3 or 4 values in 0..255
	ErrColorComponent = errors.New("invalid color components")

	// ErrInvalidTransition is returned for negative, non-finite or
	// out-of-range transitions
	ErrInvalidTransition = errors.New("transition must be between 0 and 6553.5 seconds")
)

// Kind is the platform category of an entity
type Kind string

const (
	KindLight  Kind = "light"
	KindSelect Kind = "select"
)

// Coordinator is what entities need from the device coordinator
type Coordinator interface {
	Current() *wled.Device
	Available() bool
	HasMasterLight() bool
	MarkUnavailable(err error)
	Logger() *zerolog.Logger

	SetMaster(ctx context.Context, req wled.MasterRequest) error
	SetSegment(ctx context.Context, req wled.SegmentRequest) error
	SetLiveOverride(ctx context.Context, live wled.LiveOverride) error
	SetPreset(ctx context.Context, name string) error
	SetPlaylist(ctx context.Context, name string) error
}

// Entity is anything the host registers
type Entity interface {
	UniqueID() string
	Name() string
	Kind() Kind
	Available() bool
	State() State
}

// TurnOnOptions are the optional inputs of a turn on command
type TurnOnOptions struct {
	Brightness *uint8
	Transition *float64 // seconds
	Color      *wled.Color
	Effect     *string
}

// TurnOffOptions are the optional inputs of a turn off command
type TurnOffOptions struct {
	Transition *float64 // seconds
}

// Light is a controllable light
type Light interface {
	Entity
	IsOn() bool
	Brightness() uint8
	TurnOn(ctx context.Context, opts TurnOnOptions) error
	TurnOff(ctx context.Context, opts TurnOffOptions) error
	SetColors(ctx context.Context, req ColorsRequest) error
}

// Select is a single choice out of a list of options
type Select interface {
	Entity
	Options() []string
	CurrentOption() string
	SelectOption(ctx context.Context, option string) error
}

// State is the externally visible state of an entity
type State struct {
	UniqueID   string         `json:"unique_id"`
	Name       string         `json:"name"`
	Kind       Kind           `json:"kind"`
	Available  bool           `json:"available"`
	On         *bool          `json:"on,omitempty"`
	Brightness *uint8         `json:"brightness,omitempty"`
	Option     *string        `json:"option,omitempty"`
	Options    []string       `json:"options,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// DeviceEntity carries the identity shared by every entity of one device
type DeviceEntity struct {
	coordinator Coordinator
	uniqueID    string
	name        string
	mac         string

	// at most one outstanding write per entity
	writeMu sync.Mutex
}

func newDeviceEntity(c Coordinator, info wled.Info, uniqueID, name string) *DeviceEntity {
	return &DeviceEntity{
		coordinator: c,
		uniqueID:    uniqueID,
		name:        name,
		mac:         info.MACAddress,
	}
}

// UniqueID returns the stable identifier of the entity
func (e *DeviceEntity) UniqueID() string { return e.uniqueID }

// Name returns the display name
func (e *DeviceEntity) Name() string { return e.name }

// MAC returns the MAC address of the owning device
func (e *DeviceEntity) MAC() string { return e.mac }

// Device returns the latest snapshot, which may be nil
func (e *DeviceEntity) Device() *wled.Device { return e.coordinator.Current() }

// Available reports whether the coordinator has a current, reachable device
func (e *DeviceEntity) Available() bool {
	return e.coordinator.Available() && e.coordinator.Current() != nil
}

func (e *DeviceEntity) baseState(kind Kind, available bool) State {
	return State{
		UniqueID:  e.uniqueID,
		Name:      e.name,
		Kind:      kind,
		Available: available,
	}
}

// segment looks up a segment in the latest snapshot
func (e *DeviceEntity) segment(id int) (*wled.Device, wled.Segment, error) {
	d := e.coordinator.Current()
	if d == nil {
		return nil, wled.Segment{}, ErrSegmentMissing
	}
	seg, ok := d.Segment(id)
	if !ok {
		return d, wled.Segment{}, ErrSegmentMissing
	}
	return d, seg, nil
}
