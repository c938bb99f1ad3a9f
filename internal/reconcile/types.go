// Package reconcile turns the segment set of a device snapshot into the
// entities that still need to be created for it.
package reconcile

import "fmt"

// Kind identifies the type of entity a descriptor asks for.
type Kind string

// Entity kinds
const (
	KindMasterLight   Kind = "master_light"
	KindSegmentLight  Kind = "segment_light"
	KindPaletteSelect Kind = "palette_select"
	KindColorSelect   Kind = "color_select"
)

// Slot is one of the three color slots of a segment.
type Slot string

// Color slots, in the order the device stores them
const (
	SlotPrimary   Slot = "primary"
	SlotSecondary Slot = "secondary"
	SlotTertiary  Slot = "tertiary"
)

// Slots lists the color slots in device order.
var Slots = []Slot{SlotPrimary, SlotSecondary, SlotTertiary}

// Descriptor describes one entity to create.
// SegmentID is meaningless for KindMasterLight; Slot is only set for KindColorSelect.
type Descriptor struct {
	Kind      Kind
	SegmentID int
	Slot      Slot
}

func (d Descriptor) String() string {
	switch d.Kind {
	case KindMasterLight:
		return string(d.Kind)
	case KindColorSelect:
		return fmt.Sprintf("%s/%d/%s", d.Kind, d.SegmentID, d.Slot)
	default:
		return fmt.Sprintf("%s/%d", d.Kind, d.SegmentID)
	}
}
