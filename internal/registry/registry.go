// Package registry is the host-side entity registry. It keeps the live
// entities of the running session and persists one record per entity so
// the set of known ids survives restarts.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/wledd/internal/entity"
	"github.com/dokzlo13/wledd/internal/eventbus"
	"github.com/dokzlo13/wledd/internal/storage"
)

// RecordKind is the resource_state kind used for entity records
const RecordKind = "entity"

// Record is the persisted trace of an entity
type Record struct {
	UniqueID  string      `json:"unique_id"`
	Kind      entity.Kind `json:"kind"`
	Name      string      `json:"name"`
	FirstSeen time.Time   `json:"first_seen"`
	LastSeen  time.Time   `json:"last_seen"`
}

// Registry holds the entities registered in this session
type Registry struct {
	records *storage.TypedStore[Record]
	bus     entity.Publisher

	mu       sync.RWMutex
	entities []entity.Entity
	byID     map[string]entity.Entity
}

// New creates a registry. store and bus may be nil.
func New(store *storage.Store, bus entity.Publisher) *Registry {
	r := &Registry{
		bus:  bus,
		byID: make(map[string]entity.Entity),
	}
	if store != nil {
		r.records = storage.NewTypedStore[Record](store, RecordKind)
	}
	return r
}

// Add registers entities. Entities whose unique id is already registered
// are skipped.
func (r *Registry) Add(entities ...entity.Entity) {
	for _, e := range entities {
		if !r.add(e) {
			log.Warn().Str("entity", e.UniqueID()).Msg("Entity already registered, skipping")
			continue
		}

		r.persist(e)

		log.Info().
			Str("entity", e.UniqueID()).
			Str("kind", string(e.Kind())).
			Str("name", e.Name()).
			Msg("Entity registered")

		if r.bus != nil {
			r.bus.Publish(eventbus.Event{
				Type: eventbus.EventTypeEntityAdded,
				Data: map[string]any{
					"entity": e.UniqueID(),
					"kind":   string(e.Kind()),
					"name":   e.Name(),
				},
			})
		}
	}
}

func (r *Registry) add(e entity.Entity) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[e.UniqueID()]; ok {
		return false
	}
	r.byID[e.UniqueID()] = e
	r.entities = append(r.entities, e)
	return true
}

func (r *Registry) persist(e entity.Entity) {
	if r.records == nil {
		return
	}

	now := time.Now().UTC()
	err := r.records.Update(e.UniqueID(), func(rec Record, exists bool) Record {
		if !exists {
			rec.FirstSeen = now
		}
		rec.UniqueID = e.UniqueID()
		rec.Kind = e.Kind()
		rec.Name = e.Name()
		rec.LastSeen = now
		return rec
	})
	if err != nil {
		log.Error().Err(err).Str("entity", e.UniqueID()).Msg("Failed to persist entity record")
	}
}

// Get returns the entity with the given unique id
func (r *Registry) Get(uniqueID string) (entity.Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[uniqueID]
	return e, ok
}

// All returns the registered entities in registration order
func (r *Registry) All() []entity.Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]entity.Entity(nil), r.entities...)
}

// States returns the state of every registered entity
func (r *Registry) States() []entity.State {
	all := r.All()
	states := make([]entity.State, len(all))
	for i, e := range all {
		states[i] = e.State()
	}
	return states
}

// Known returns every persisted record, including entities from earlier
// sessions that were not registered in this one. Sorted by unique id.
func (r *Registry) Known() ([]Record, error) {
	if r.records == nil {
		return nil, nil
	}

	all, err := r.records.GetAll()
	if err != nil {
		return nil, err
	}

	out := make([]Record, 0, len(all))
	for _, rec := range all {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UniqueID < out[j].UniqueID })
	return out, nil
}

// Forget drops persisted records. With no ids every record is removed.
// Live entities of the current session are not affected.
func (r *Registry) Forget(uniqueIDs ...string) error {
	if r.records == nil {
		return nil
	}
	if len(uniqueIDs) == 0 {
		return r.records.Clear()
	}
	for _, id := range uniqueIDs {
		if err := r.records.Delete(id); err != nil {
			return err
		}
	}
	return nil
}
