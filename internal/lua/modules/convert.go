package modules

import (
	"fmt"
	"math"

	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/wledd/internal/entity"
)

func invalidOption(key, want string) error {
	return fmt.Errorf("invalid options: %s must be %s", key, want)
}

func optNumber(tbl *lua.LTable, key string) (*float64, error) {
	switch v := tbl.RawGetString(key).(type) {
	case *lua.LNilType:
		return nil, nil
	case lua.LNumber:
		f := float64(v)
		return &f, nil
	default:
		return nil, invalidOption(key, "a number")
	}
}

func optInt(tbl *lua.LTable, key string) (*int, error) {
	f, err := optNumber(tbl, key)
	if err != nil || f == nil {
		return nil, err
	}
	if *f != math.Trunc(*f) || *f < math.MinInt32 || *f > math.MaxInt32 {
		return nil, invalidOption(key, "an integer")
	}
	n := int(*f)
	return &n, nil
}

func optString(tbl *lua.LTable, key string) (*string, error) {
	switch v := tbl.RawGetString(key).(type) {
	case *lua.LNilType:
		return nil, nil
	case lua.LString:
		s := string(v)
		return &s, nil
	default:
		return nil, invalidOption(key, "a string")
	}
}

// optInts reads an array of integers such as {0, 0, 128}
func optInts(tbl *lua.LTable, key string) ([]int, error) {
	v := tbl.RawGetString(key)
	if v == lua.LNil {
		return nil, nil
	}
	arr, ok := v.(*lua.LTable)
	if !ok {
		return nil, invalidOption(key, "a table of numbers")
	}
	out := make([]int, 0, arr.Len())
	for i := 1; i <= arr.Len(); i++ {
		n, ok := arr.RawGetInt(i).(lua.LNumber)
		if !ok || float64(n) != math.Trunc(float64(n)) {
			return nil, invalidOption(key, "a table of numbers")
		}
		out = append(out, int(n))
	}
	return out, nil
}

// turnOnFromLua reads {brightness=, transition=, rgb_color=, rgbw_color=, effect=}.
// A nil table is an empty request.
func turnOnFromLua(tbl *lua.LTable) (entity.TurnOnRequest, error) {
	var req entity.TurnOnRequest
	if tbl == nil {
		return req, nil
	}
	var err error
	if req.Brightness, err = optInt(tbl, "brightness"); err != nil {
		return req, err
	}
	if req.Transition, err = optNumber(tbl, "transition"); err != nil {
		return req, err
	}
	if req.RGBColor, err = optInts(tbl, "rgb_color"); err != nil {
		return req, err
	}
	if req.RGBWColor, err = optInts(tbl, "rgbw_color"); err != nil {
		return req, err
	}
	if req.Effect, err = optString(tbl, "effect"); err != nil {
		return req, err
	}
	return req, nil
}

func turnOffFromLua(tbl *lua.LTable) (entity.TurnOffRequest, error) {
	var req entity.TurnOffRequest
	if tbl == nil {
		return req, nil
	}
	var err error
	req.Transition, err = optNumber(tbl, "transition")
	return req, err
}

// colorsFromLua reads {primary={r,g,b[,w]}, primary_name=, secondary=, ...}
func colorsFromLua(tbl *lua.LTable) (entity.ColorsRequest, error) {
	var req entity.ColorsRequest
	slots := []struct {
		key        string
		components *[]int
		name       *string
	}{
		{"primary", &req.ColorPrimary, &req.ColorNamePrimary},
		{"secondary", &req.ColorSecondary, &req.ColorNameSecondary},
		{"tertiary", &req.ColorTertiary, &req.ColorNameTertiary},
	}

	for _, s := range slots {
		components, err := optInts(tbl, s.key)
		if err != nil {
			return req, err
		}
		*s.components = components

		name, err := optString(tbl, s.key+"_name")
		if err != nil {
			return req, err
		}
		if name != nil {
			*s.name = *name
		}
	}
	return req, nil
}

func stateToLua(L *lua.LState, st entity.State) *lua.LTable {
	tbl := L.NewTable()
	tbl.RawSetString("unique_id", lua.LString(st.UniqueID))
	tbl.RawSetString("name", lua.LString(st.Name))
	tbl.RawSetString("kind", lua.LString(st.Kind))
	tbl.RawSetString("available", lua.LBool(st.Available))
	if st.On != nil {
		tbl.RawSetString("on", lua.LBool(*st.On))
	}
	if st.Brightness != nil {
		tbl.RawSetString("brightness", lua.LNumber(*st.Brightness))
	}
	if st.Option != nil {
		tbl.RawSetString("option", lua.LString(*st.Option))
	}
	if len(st.Options) > 0 {
		tbl.RawSetString("options", stringsToLua(L, st.Options))
	}
	if len(st.Attributes) > 0 {
		attrs := L.NewTable()
		for k, v := range st.Attributes {
			attrs.RawSetString(k, attributeToLua(L, v))
		}
		tbl.RawSetString("attributes", attrs)
	}
	return tbl
}

func attributeToLua(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case string:
		return lua.LString(val)
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case uint8:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case []int:
		tbl := L.CreateTable(len(val), 0)
		for _, n := range val {
			tbl.Append(lua.LNumber(n))
		}
		return tbl
	case []string:
		return stringsToLua(L, val)
	default:
		return lua.LString(fmt.Sprint(v))
	}
}

func stringsToLua(L *lua.LState, values []string) *lua.LTable {
	tbl := L.CreateTable(len(values), 0)
	for _, s := range values {
		tbl.Append(lua.LString(s))
	}
	return tbl
}
