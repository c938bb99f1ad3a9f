package modules

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/wledd/internal/entity"
)

// Entities is the entity lookup the wled module works against
type Entities interface {
	Get(uniqueID string) (entity.Entity, bool)
	States() []entity.State
}

// WLEDModule exposes entities and their actions to Lua
type WLEDModule struct {
	entities Entities
	handlers []*lua.LFunction
}

// NewWLEDModule creates a new wled module
func NewWLEDModule(entities Entities) *WLEDModule {
	return &WLEDModule{entities: entities}
}

// Loader is the module loader for Lua
func (m *WLEDModule) Loader(L *lua.LState) int {
	mod := L.NewTable()

	L.SetField(mod, "on_update", L.NewFunction(m.onUpdate))
	L.SetField(mod, "entities", L.NewFunction(m.listEntities))
	L.SetField(mod, "state", L.NewFunction(m.state))
	L.SetField(mod, "turn_on", L.NewFunction(m.turnOn))
	L.SetField(mod, "turn_off", L.NewFunction(m.turnOff))
	L.SetField(mod, "select", L.NewFunction(m.selectOption))
	L.SetField(mod, "set_colors", L.NewFunction(m.setColors))

	L.Push(mod)
	return 1
}

// HandlerCount returns the number of on_update callbacks
func (m *WLEDModule) HandlerCount() int {
	return len(m.handlers)
}

// Dispatch calls every on_update callback with the current states.
// Must run on the Lua goroutine.
func (m *WLEDModule) Dispatch(L *lua.LState) {
	if len(m.handlers) == 0 {
		return
	}

	states := L.NewTable()
	for _, st := range m.entities.States() {
		states.RawSetString(st.UniqueID, stateToLua(L, st))
	}

	for _, fn := range m.handlers {
		if err := L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, states); err != nil {
			log.Error().Err(err).Msg("Lua on_update callback failed")
		}
	}
}

// on_update(fn)
func (m *WLEDModule) onUpdate(L *lua.LState) int {
	m.handlers = append(m.handlers, L.CheckFunction(1))
	return 0
}

// entities() -> array of state tables
func (m *WLEDModule) listEntities(L *lua.LState) int {
	tbl := L.NewTable()
	for _, st := range m.entities.States() {
		tbl.Append(stateToLua(L, st))
	}
	L.Push(tbl)
	return 1
}

// state(id) -> (state table, err)
func (m *WLEDModule) state(L *lua.LState) int {
	id := L.CheckString(1)
	e, ok := m.entities.Get(id)
	if !ok {
		L.Push(lua.LNil)
		L.Push(lua.LString("unknown entity: " + id))
		return 2
	}
	L.Push(stateToLua(L, e.State()))
	L.Push(lua.LNil)
	return 2
}

// turn_on(id, {brightness=, transition=, rgb_color=, rgbw_color=, effect=}) -> (ok, err)
func (m *WLEDModule) turnOn(L *lua.LState) int {
	id := L.CheckString(1)
	req, err := turnOnFromLua(L.OptTable(2, nil))
	if err != nil {
		return pushFailure(L, err)
	}
	return m.invoke(L, id, func(ctx context.Context, e entity.Entity) error {
		return entity.TurnOn(ctx, e, req)
	})
}

// turn_off(id, {transition=}) -> (ok, err)
func (m *WLEDModule) turnOff(L *lua.LState) int {
	id := L.CheckString(1)
	req, err := turnOffFromLua(L.OptTable(2, nil))
	if err != nil {
		return pushFailure(L, err)
	}
	return m.invoke(L, id, func(ctx context.Context, e entity.Entity) error {
		return entity.TurnOff(ctx, e, req)
	})
}

// select(id, option) -> (ok, err)
func (m *WLEDModule) selectOption(L *lua.LState) int {
	id := L.CheckString(1)
	option := L.CheckString(2)
	return m.invoke(L, id, func(ctx context.Context, e entity.Entity) error {
		return entity.SelectOption(ctx, e, entity.SelectRequest{Option: option})
	})
}

// set_colors(id, {primary={r,g,b}, secondary_name="navy", ...}) -> (ok, err)
func (m *WLEDModule) setColors(L *lua.LState) int {
	id := L.CheckString(1)
	tbl := L.CheckTable(2)

	req, err := colorsFromLua(tbl)
	if err != nil {
		return pushFailure(L, err)
	}
	return m.invoke(L, id, func(ctx context.Context, e entity.Entity) error {
		return entity.SetColors(ctx, e, req)
	})
}

func (m *WLEDModule) invoke(L *lua.LState, id string, fn func(context.Context, entity.Entity) error) int {
	e, ok := m.entities.Get(id)
	if !ok {
		return pushFailure(L, fmt.Errorf("unknown entity: %s", id))
	}

	ctx := L.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := fn(ctx, e); err != nil {
		log.Warn().Err(err).Str("entity", id).Str("source", "lua").Msg("Entity action failed")
		return pushFailure(L, err)
	}
	L.Push(lua.LTrue)
	L.Push(lua.LNil)
	return 2
}

// pushFailure returns (false, err) to Lua
func pushFailure(L *lua.LState, err error) int {
	L.Push(lua.LFalse)
	L.Push(lua.LString(err.Error()))
	return 2
}
