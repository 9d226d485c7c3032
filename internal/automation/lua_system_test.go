//go:build !no_automation

package automation

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	lua "github.com/yuin/gopher-lua"
)

func newSystemState(t *testing.T) *lua.LState {
	t.Helper()
	L := lua.NewState()
	t.Cleanup(L.Close)
	registerSystemModule(L, testLogger())
	return L
}

func TestSystemDatetimeComponents(t *testing.T) {
	L := newSystemState(t)

	want := map[string]lua.LValueType{
		"hour":      lua.LTNumber,
		"minute":    lua.LTNumber,
		"second":    lua.LTNumber,
		"weekday":   lua.LTNumber,
		"day":       lua.LTNumber,
		"month":     lua.LTNumber,
		"year":      lua.LTNumber,
		"timestamp": lua.LTNumber,
		"time_str":  lua.LTString,
		"date_str":  lua.LTString,
	}
	for comp, typ := range want {
		L.SetGlobal("_comp", lua.LString(comp))
		if err := L.DoString(`_result = system.datetime(_comp)`); err != nil {
			t.Fatalf("system.datetime(%q) error: %v", comp, err)
		}
		if got := L.GetGlobal("_result").Type(); got != typ {
			t.Errorf("system.datetime(%q) type = %v, want %v", comp, got, typ)
		}
	}
}

func TestSystemDatetimeHourRange(t *testing.T) {
	L := newSystemState(t)

	if err := L.DoString(`_hour = system.datetime("hour")`); err != nil {
		t.Fatal(err)
	}
	hour := int(L.GetGlobal("_hour").(lua.LNumber))
	if hour < 0 || hour > 23 {
		t.Errorf("hour = %d, want 0-23", hour)
	}
}

func TestSystemDatetimeUnknownComponent(t *testing.T) {
	L := newSystemState(t)
	if err := L.DoString(`system.datetime("fortnight")`); err == nil {
		t.Error("expected error for unknown component")
	}
}

func TestHourBetween(t *testing.T) {
	tests := []struct {
		hour, from, to int
		want           bool
	}{
		{10, 8, 18, true},
		{8, 8, 18, true},
		{18, 8, 18, false},
		{7, 8, 18, false},
		{23, 22, 6, true},
		{0, 22, 6, true},
		{5, 22, 6, true},
		{6, 22, 6, false},
		{12, 22, 6, false},
		{3, 3, 3, false},
	}
	for _, tt := range tests {
		if got := hourBetween(tt.hour, tt.from, tt.to); got != tt.want {
			t.Errorf("hourBetween(%d, %d, %d) = %v, want %v", tt.hour, tt.from, tt.to, got, tt.want)
		}
	}
}

func TestSystemTimeBetweenCurrentHour(t *testing.T) {
	L := newSystemState(t)

	hour := time.Now().Hour()
	from := (hour + 23) % 24
	to := (hour + 2) % 24

	L.SetGlobal("_from", lua.LNumber(from))
	L.SetGlobal("_to", lua.LNumber(to))
	if err := L.DoString(`_result = system.time_between(_from, _to)`); err != nil {
		t.Fatal(err)
	}
	if result := L.GetGlobal("_result"); result != lua.LTrue {
		t.Errorf("time_between(%d, %d) at hour %d = false, want true", from, to, hour)
	}
}

func TestSystemLogLevels(t *testing.T) {
	L := newSystemState(t)
	for _, level := range []string{"debug", "info", "warn", "error", "other"} {
		L.SetGlobal("_level", lua.LString(level))
		if err := L.DoString(`system.log(_level, "hello")`); err != nil {
			t.Errorf("system.log(%q): %v", level, err)
		}
	}
}

func TestSystemDatetimeFixedClock(t *testing.T) {
	clock = func() time.Time { return time.Date(2024, time.March, 9, 21, 5, 7, 0, time.UTC) }
	t.Cleanup(func() { clock = time.Now })
	L := newSystemState(t)

	tests := []struct {
		component string
		want      lua.LValue
	}{
		{"hour", lua.LNumber(21)},
		{"minute", lua.LNumber(5)},
		{"weekday", lua.LNumber(time.Saturday)},
		{"month", lua.LNumber(3)},
		{"time_str", lua.LString("21:05:07")},
		{"date_str", lua.LString("2024-03-09")},
	}
	for _, tt := range tests {
		L.SetGlobal("_comp", lua.LString(tt.component))
		if err := L.DoString(`_result = system.datetime(_comp)`); err != nil {
			t.Fatal(err)
		}
		if got := L.GetGlobal("_result"); got != tt.want {
			t.Errorf("datetime(%q) = %v, want %v", tt.component, got, tt.want)
		}
	}

	if err := L.DoString(`_result = system.time_between(22, 6)`); err != nil {
		t.Fatal(err)
	}
	if L.GetGlobal("_result") != lua.LFalse {
		t.Error("time_between(22, 6) at 21:05 = true")
	}
}

func TestSystemLogAttributes(t *testing.T) {
	var buf bytes.Buffer
	L := lua.NewState()
	t.Cleanup(L.Close)
	registerSystemModule(L, slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	if err := L.DoString(`system.log("warn", "door open", {zone = "hall", seconds = 30})`); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"level=WARN", `msg="door open"`, "seconds=30", "zone=hall"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q missing %q", out, want)
		}
	}
}
