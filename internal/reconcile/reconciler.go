package reconcile

import (
	"sort"
	"sync"

	"github.com/dokzlo13/wledd/internal/wled"
)

// Tracker is the set of segment ids entities were already created for.
// It only grows: a segment that disappears from the device stays tracked.
type Tracker struct {
	mu  sync.Mutex
	ids map[int]struct{}
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{ids: make(map[int]struct{})}
}

// Len returns the number of tracked segment ids.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.ids)
}

// Has reports whether id is tracked.
func (t *Tracker) Has(id int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.ids[id]
	return ok
}

// IDs returns the tracked ids in ascending order.
func (t *Tracker) IDs() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]int, 0, len(t.ids))
	for id := range t.ids {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Reconcile diffs the snapshot's segments against the tracker and returns
// descriptors for the entities that are missing. New ids are added to the
// tracker before returning.
//
// A master light descriptor is emitted when keepMaster is false and the
// device goes from at most one tracked segment to more than one present
// segment. Because every present id is tracked afterwards, this can only
// happen once per tracker.
//
// Descriptors are ordered by ascending segment id. For each id the segment
// light comes first, followed by the palette select and the primary,
// secondary and tertiary color selects.
func Reconcile(device *wled.Device, tracker *Tracker, keepMaster bool) []Descriptor {
	if device == nil {
		return nil
	}

	present := device.SegmentIDs()

	tracker.mu.Lock()
	defer tracker.mu.Unlock()

	var out []Descriptor
	if !keepMaster && len(tracker.ids) < 2 && countUnique(present) > 1 {
		out = append(out, Descriptor{Kind: KindMasterLight})
	}

	for _, id := range present {
		if _, ok := tracker.ids[id]; ok {
			continue
		}
		tracker.ids[id] = struct{}{}

		out = append(out,
			Descriptor{Kind: KindSegmentLight, SegmentID: id},
			Descriptor{Kind: KindPaletteSelect, SegmentID: id},
		)
		for _, slot := range Slots {
			out = append(out, Descriptor{Kind: KindColorSelect, SegmentID: id, Slot: slot})
		}
	}

	return out
}

// countUnique counts distinct values of a sorted slice
func countUnique(sorted []int) int {
	n := 0
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			n++
		}
	}
	return n
}
