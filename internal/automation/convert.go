//go:build !no_automation

package automation

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"zigbee-go-host/internal/codec"
	"zigbee-go-host/internal/zcl"
)

// goToLua converts a decoded field value to a Lua value.
func goToLua(L *lua.LState, v interface{}) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case string:
		return lua.LString(val)
	case []byte:
		return lua.LString(val)
	case int:
		return lua.LNumber(val)
	case int8:
		return lua.LNumber(val)
	case int16:
		return lua.LNumber(val)
	case int32:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case uint8:
		return lua.LNumber(val)
	case uint16:
		return lua.LNumber(val)
	case uint32:
		return lua.LNumber(val)
	case uint64:
		return lua.LNumber(val)
	case float32:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case codec.Invalid:
		return lua.LNil
	case codec.IEEEAddress:
		return lua.LString(val.String())
	case zcl.Status:
		return lua.LNumber(val)
	case zcl.AttributeRecord:
		t := L.NewTable()
		t.RawSetString("id", lua.LNumber(val.ID))
		t.RawSetString("type", lua.LNumber(val.Type))
		t.RawSetString("value", goToLua(L, val.Value))
		return t
	case zcl.ReadAttributeStatus:
		t := L.NewTable()
		t.RawSetString("id", lua.LNumber(val.ID))
		t.RawSetString("status", lua.LNumber(val.Status))
		if val.Status == zcl.StatusSuccess {
			t.RawSetString("type", lua.LNumber(val.Type))
			t.RawSetString("value", goToLua(L, val.Value))
		}
		return t
	case []zcl.AttributeRecord:
		return sliceToLua(L, val)
	case []zcl.ReadAttributeStatus:
		return sliceToLua(L, val)
	case []uint16:
		return sliceToLua(L, val)
	case []uint32:
		return sliceToLua(L, val)
	case []any:
		return sliceToLua(L, val)
	case map[string]interface{}:
		t := L.NewTable()
		for k, vv := range val {
			t.RawSetString(k, goToLua(L, vv))
		}
		return t
	default:
		return lua.LString(fmt.Sprintf("%v", val))
	}
}

func sliceToLua[T any](L *lua.LState, items []T) *lua.LTable {
	t := L.CreateTable(len(items), 0)
	for i, v := range items {
		t.RawSetInt(i+1, goToLua(L, v))
	}
	return t
}

// luaToGo converts a script argument to a value a field setter accepts.
// Sequences become []any; other tables become maps.
func luaToGo(v lua.LValue) any {
	switch val := v.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(val)
	case lua.LNumber:
		return float64(val)
	case lua.LString:
		return string(val)
	case *lua.LTable:
		if n := val.Len(); n > 0 {
			out := make([]any, 0, n)
			for i := 1; i <= n; i++ {
				out = append(out, luaToGo(val.RawGetInt(i)))
			}
			return out
		}
		out := make(map[string]any)
		val.ForEach(func(k, vv lua.LValue) {
			out[k.String()] = luaToGo(vv)
		})
		return out
	}
	return v.String()
}
