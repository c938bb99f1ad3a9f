package entity

import (
	"reflect"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/wledd/internal/coordinator"
	"github.com/dokzlo13/wledd/internal/eventbus"
	"github.com/dokzlo13/wledd/internal/reconcile"
	"github.com/dokzlo13/wledd/internal/wled"
)

// PlatformCoordinator is what the platform needs on top of Coordinator
type PlatformCoordinator interface {
	Coordinator
	Subscribe(fn coordinator.Listener) (unsubscribe func())
	KeepMasterLight() bool
	MaterializeMaster()
}

// Registrar receives newly created entities
type Registrar interface {
	Add(entities ...Entity)
}

// Publisher receives state events. *eventbus.Bus implements it.
type Publisher interface {
	Publish(event eventbus.Event)
}

// Platform creates the entities of one device and keeps them in step with
// the coordinator's segment set.
type Platform struct {
	coord     PlatformCoordinator
	registrar Registrar
	bus       Publisher

	mu          sync.Mutex
	tracker     *reconcile.Tracker
	static      bool
	entities    []Entity
	states      map[string]State
	lastDevice  *wled.Device
	available   bool
	unsubscribe func()
}

// NewPlatform creates a platform. bus may be nil.
func NewPlatform(c PlatformCoordinator, registrar Registrar, bus Publisher) *Platform {
	return &Platform{
		coord:     c,
		registrar: registrar,
		bus:       bus,
		tracker:   reconcile.NewTracker(),
		states:    make(map[string]State),
	}
}

// Setup subscribes to the coordinator and processes the current snapshot
// right away. Static entities are created with the first snapshot.
func (p *Platform) Setup() {
	p.unsubscribe = p.coord.Subscribe(p.update)
	p.update()
}

// Close detaches the platform from the coordinator
func (p *Platform) Close() {
	if p.unsubscribe != nil {
		p.unsubscribe()
	}
}

// Tracker returns the set of segment ids entities exist for
func (p *Platform) Tracker() *reconcile.Tracker {
	return p.tracker
}

// Entities returns the entities created so far, in creation order
func (p *Platform) Entities() []Entity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Entity(nil), p.entities...)
}

func (p *Platform) update() {
	p.mu.Lock()
	defer p.mu.Unlock()

	d := p.coord.Current()
	if d == nil {
		return
	}

	var added []Entity
	if !p.static {
		p.static = true
		added = append(added,
			NewLiveOverrideSelect(p.coord, d.Info),
			NewPlaylistSelect(p.coord, d.Info),
			NewPresetSelect(p.coord, d.Info),
		)
		if p.coord.KeepMasterLight() {
			added = append(added, NewMasterLight(p.coord, d.Info))
		}
	}

	for _, desc := range reconcile.Reconcile(d, p.tracker, p.coord.KeepMasterLight()) {
		added = append(added, p.build(d.Info, desc))
	}

	if len(added) > 0 {
		log.Info().
			Str("device", d.Info.Name).
			Str("mac", d.Info.MACAddress).
			Int("count", len(added)).
			Msg("New entities")
		p.entities = append(p.entities, added...)
		p.registrar.Add(added...)
	}

	p.publish(d)
}

func (p *Platform) build(info wled.Info, desc reconcile.Descriptor) Entity {
	switch desc.Kind {
	case reconcile.KindMasterLight:
		p.coord.MaterializeMaster()
		return NewMasterLight(p.coord, info)
	case reconcile.KindPaletteSelect:
		return NewPaletteSelect(p.coord, info, desc.SegmentID)
	case reconcile.KindColorSelect:
		return NewColorSelect(p.coord, info, desc.SegmentID, desc.Slot)
	default:
		return NewSegmentLight(p.coord, info, desc.SegmentID)
	}
}

// publish emits snapshot, availability and per-entity state change events
func (p *Platform) publish(d *wled.Device) {
	if p.bus == nil {
		return
	}

	if d != p.lastDevice {
		p.lastDevice = d
		p.bus.Publish(eventbus.Event{
			Type: eventbus.EventTypeSnapshot,
			Data: map[string]any{"device": d, "master": p.coord.HasMasterLight()},
		})
	}

	if available := p.coord.Available(); available != p.available || len(p.states) == 0 {
		p.available = available
		p.bus.Publish(eventbus.Event{
			Type: eventbus.EventTypeAvailability,
			Data: map[string]any{"available": available, "mac": d.Info.MACAddress},
		})
	}

	for _, e := range p.entities {
		st := e.State()
		if prev, ok := p.states[st.UniqueID]; ok && reflect.DeepEqual(prev, st) {
			continue
		}
		p.states[st.UniqueID] = st
		p.bus.Publish(eventbus.Event{
			Type: eventbus.EventTypeStateChanged,
			Data: map[string]any{"entity": st.UniqueID, "state": st},
		})
	}
}
