package tools

import (
	"fmt"
	"reflect"

	lua "github.com/yuin/gopher-lua"
)

// fromLua converts a Lua value into what encoding/json understands.
// Tables with keys 1..n become slices, other tables become maps.
func fromLua(value lua.LValue) any {
	switch value.Type() {
	case lua.LTString:
		return value.String()
	case lua.LTNumber:
		return float64(value.(lua.LNumber))
	case lua.LTBool:
		return bool(value.(lua.LBool))
	case lua.LTTable:
		tbl := value.(*lua.LTable)
		n := tbl.MaxN()
		count := 0
		tbl.ForEach(func(_, _ lua.LValue) { count++ })

		if n > 0 && n == count {
			arr := make([]any, 0, n)
			for i := 1; i <= n; i++ {
				arr = append(arr, fromLua(tbl.RawGetInt(i)))
			}
			return arr
		}
		result := make(map[string]any, count)
		tbl.ForEach(func(key, val lua.LValue) {
			result[key.String()] = fromLua(val)
		})
		return result
	case lua.LTNil:
		return nil
	default:
		return value.String()
	}
}

func toLua(L *lua.LState, val any) lua.LValue {
	if val == nil {
		return lua.LNil
	}

	rv := reflect.ValueOf(val)
	rt := rv.Type()

	switch rt.Kind() {
	case reflect.String:
		return lua.LString(rv.String())
	case reflect.Bool:
		return lua.LBool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return lua.LNumber(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return lua.LNumber(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return lua.LNumber(rv.Float())
	case reflect.Slice, reflect.Array:
		tbl := L.NewTable()
		for i := 0; i < rv.Len(); i++ {
			tbl.RawSetInt(i+1, toLua(L, rv.Index(i).Interface()))
		}
		return tbl
	case reflect.Map:
		if rt.Key().Kind() == reflect.String {
			tbl := L.NewTable()
			for _, key := range rv.MapKeys() {
				tbl.RawSetString(key.String(), toLua(L, rv.MapIndex(key).Interface()))
			}
			return tbl
		}
	}
	return lua.LString(fmt.Sprintf("%v", val))
}
