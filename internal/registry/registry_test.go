package registry

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/dokzlo13/wledd/internal/db"
	"github.com/dokzlo13/wledd/internal/entity"
	"github.com/dokzlo13/wledd/internal/eventbus"
	"github.com/dokzlo13/wledd/internal/storage"
)

type fakeEntity struct {
	id   string
	kind entity.Kind
}

func (f fakeEntity) UniqueID() string  { return f.id }
func (f fakeEntity) Name() string      { return "Fake " + f.id }
func (f fakeEntity) Kind() entity.Kind { return f.kind }
func (f fakeEntity) Available() bool   { return true }
func (f fakeEntity) State() entity.State {
	return entity.State{UniqueID: f.id, Kind: f.kind, Available: true}
}

type recorder struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (r *recorder) Publish(e eventbus.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func openStore(t *testing.T, path string) *storage.Store {
	t.Helper()
	d, err := db.Open(path)
	if err != nil {
		t.Fatalf("db.Open() error = %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return storage.NewStore(d.DB)
}

func TestRegistry_AddSkipsDuplicates(t *testing.T) {
	bus := &recorder{}
	r := New(nil, bus)

	r.Add(fakeEntity{"a", entity.KindLight}, fakeEntity{"b", entity.KindSelect})
	r.Add(fakeEntity{"a", entity.KindLight})

	all := r.All()
	if len(all) != 2 || all[0].UniqueID() != "a" || all[1].UniqueID() != "b" {
		t.Errorf("All() = %v", all)
	}
	if len(bus.events) != 2 {
		t.Errorf("published %d events, want 2", len(bus.events))
	}
	if bus.events[0].Type != eventbus.EventTypeEntityAdded || bus.events[0].Data["entity"] != "a" {
		t.Errorf("first event = %+v", bus.events[0])
	}

	if _, ok := r.Get("b"); !ok {
		t.Error("Get(b) not found")
	}
	if _, ok := r.Get("c"); ok {
		t.Error("Get(c) should not be found")
	}
	if states := r.States(); len(states) != 2 || states[1].Kind != entity.KindSelect {
		t.Errorf("States() = %v", states)
	}
}

func TestRegistry_KnownSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.sqlite")

	first := New(openStore(t, path), nil)
	first.Add(fakeEntity{"mac_0", entity.KindLight}, fakeEntity{"mac_1", entity.KindLight})

	recs, err := first.Known()
	if err != nil {
		t.Fatalf("Known() error = %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("Known() = %v", recs)
	}
	firstSeen := recs[0].FirstSeen

	// second session only sees segment 0
	second := New(openStore(t, path), nil)
	second.Add(fakeEntity{"mac_0", entity.KindLight})

	recs, err = second.Known()
	if err != nil {
		t.Fatalf("Known() error = %v", err)
	}
	if len(recs) != 2 || recs[0].UniqueID != "mac_0" || recs[1].UniqueID != "mac_1" {
		t.Errorf("Known() = %v", recs)
	}
	if !recs[0].FirstSeen.Equal(firstSeen) {
		t.Errorf("FirstSeen changed: %v -> %v", firstSeen, recs[0].FirstSeen)
	}
	if len(second.All()) != 1 {
		t.Errorf("All() = %v", second.All())
	}
}

func TestRegistry_Forget(t *testing.T) {
	r := New(openStore(t, filepath.Join(t.TempDir(), "test.sqlite")), nil)
	r.Add(fakeEntity{"mac_0", entity.KindLight}, fakeEntity{"mac_1", entity.KindLight}, fakeEntity{"mac_palette_0", entity.KindSelect})

	if err := r.Forget("mac_1", "unknown"); err != nil {
		t.Fatalf("Forget() error = %v", err)
	}
	recs, err := r.Known()
	if err != nil {
		t.Fatalf("Known() error = %v", err)
	}
	if len(recs) != 2 || recs[0].UniqueID != "mac_0" || recs[1].UniqueID != "mac_palette_0" {
		t.Errorf("Known() after Forget(mac_1) = %v", recs)
	}
	if _, ok := r.Get("mac_1"); !ok {
		t.Error("live entity mac_1 should stay registered")
	}

	if err := r.Forget(); err != nil {
		t.Fatalf("Forget() error = %v", err)
	}
	if recs, _ := r.Known(); len(recs) != 0 {
		t.Errorf("Known() after Forget() = %v", recs)
	}

	if err := New(nil, nil).Forget("mac_0"); err != nil {
		t.Errorf("Forget() without store error = %v", err)
	}
}
