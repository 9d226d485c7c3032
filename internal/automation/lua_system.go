//go:build !no_automation

package automation

import (
	"context"
	"log/slog"
	"sort"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// clock is swapped in tests.
var clock = time.Now

// datetimeParts maps system.datetime component names to their value at t.
var datetimeParts = map[string]func(t time.Time) lua.LValue{
	"hour":      func(t time.Time) lua.LValue { return lua.LNumber(t.Hour()) },
	"minute":    func(t time.Time) lua.LValue { return lua.LNumber(t.Minute()) },
	"second":    func(t time.Time) lua.LValue { return lua.LNumber(t.Second()) },
	"weekday":   func(t time.Time) lua.LValue { return lua.LNumber(t.Weekday()) },
	"day":       func(t time.Time) lua.LValue { return lua.LNumber(t.Day()) },
	"month":     func(t time.Time) lua.LValue { return lua.LNumber(t.Month()) },
	"year":      func(t time.Time) lua.LValue { return lua.LNumber(t.Year()) },
	"timestamp": func(t time.Time) lua.LValue { return lua.LNumber(t.Unix()) },
	"time_str":  func(t time.Time) lua.LValue { return lua.LString(t.Format(time.TimeOnly)) },
	"date_str":  func(t time.Time) lua.LValue { return lua.LString(t.Format(time.DateOnly)) },
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// registerSystemModule installs the `system` table:
//
//	system.datetime(component)        current hour, minute, ..., date_str
//	system.time_between(from, to)     current hour in [from, to), wrapping midnight
//	system.log(level, msg [, attrs])  write to the host log
func registerSystemModule(L *lua.LState, logger *slog.Logger) {
	L.SetGlobal("system", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"datetime": func(L *lua.LState) int {
			name := L.CheckString(1)
			part, ok := datetimeParts[name]
			if !ok {
				L.ArgError(1, "unknown component: "+name)
				return 0
			}
			L.Push(part(clock()))
			return 1
		},
		"time_between": func(L *lua.LState) int {
			L.Push(lua.LBool(hourBetween(clock().Hour(), L.CheckInt(1), L.CheckInt(2))))
			return 1
		},
		"log": func(L *lua.LState) int {
			level, ok := logLevels[L.CheckString(1)]
			if !ok {
				level = slog.LevelInfo
			}
			msg := L.CheckString(2)
			logger.Log(context.Background(), level, "script log", append([]any{"msg", msg}, logAttrs(L.OptTable(3, nil))...)...)
			return 0
		},
	}))
}

func hourBetween(hour, from, to int) bool {
	if from <= to {
		return hour >= from && hour < to
	}
	return hour >= from || hour < to
}

// logAttrs flattens a Lua table of string keys into sorted slog key/value
// pairs.
func logAttrs(tbl *lua.LTable) []any {
	if tbl == nil {
		return nil
	}
	var keys []string
	vals := map[string]any{}
	tbl.ForEach(func(k, v lua.LValue) {
		if ks, ok := k.(lua.LString); ok {
			keys = append(keys, string(ks))
			vals[string(ks)] = luaToGo(v)
		}
	})
	sort.Strings(keys)
	out := make([]any, 0, 2*len(keys))
	for _, k := range keys {
		out = append(out, k, vals[k])
	}
	return out
}
