//go:build !no_automation

package automation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	lua "github.com/yuin/gopher-lua"

	"zigbee-go-host/internal/endpoint"
	"zigbee-go-host/internal/zcl"
	"zigbee-go-host/internal/zcl/clusters"
)

type fakeCommander struct {
	reg  *zcl.Registry
	tsn  uint8
	sent chan *zcl.Command
}

func newFakeCommander() *fakeCommander {
	reg := zcl.NewRegistry(testLogger())
	clusters.RegisterAll(reg)
	return &fakeCommander{reg: reg, sent: make(chan *zcl.Command, 8)}
}

func (f *fakeCommander) Registry() *zcl.Registry { return f.reg }

func (f *fakeCommander) Prepare(cmd *zcl.Command) *zcl.Command {
	f.tsn++
	cmd.TransactionID = f.tsn
	return cmd
}

func (f *fakeCommander) SendCommand(_ context.Context, cmd *zcl.Command) error {
	f.sent <- cmd
	return nil
}

func newTestApp(t *testing.T, code string) (*App, *fakeCommander) {
	t.Helper()
	cmdr := newFakeCommander()
	app, err := NewApp(&Script{ID: "test", LuaCode: code}, cmdr, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(app.release)
	return app, cmdr
}

func onOffCluster(t *testing.T, reg *zcl.Registry) *endpoint.Cluster {
	t.Helper()
	ep := endpoint.New(endpoint.Key{Network: 0x1234, Endpoint: 1}, reg, testLogger())
	ep.SetInputClusterIDs([]uint16{0x0006})
	c := ep.InputCluster(0x0006)
	if c == nil {
		t.Fatal("no input cluster")
	}
	return c
}

func global(t *testing.T, app *App, name string) lua.LValue {
	t.Helper()
	var v lua.LValue
	if err := app.run(func(L *lua.LState) error {
		v = L.GetGlobal(name)
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	return v
}

func reportOnOff(t *testing.T, reg *zcl.Registry) *zcl.Command {
	t.Helper()
	cmd, err := zcl.Unmarshal(reg, 0x0006, []byte{0x18, 0x05, 0x0A, 0x00, 0x00, 0x10, 0x01})
	if err != nil {
		t.Fatal(err)
	}
	cmd.Source = zcl.Address{Network: 0x1234, Endpoint: 1}
	return cmd
}

func TestNewAppReadsCluster(t *testing.T) {
	app, _ := newTestApp(t, "cluster = 0x0006")
	if app.ClusterID() != 0x0006 {
		t.Errorf("cluster = 0x%04X, want 0x0006", app.ClusterID())
	}
}

func TestNewAppRejectsBadScripts(t *testing.T) {
	tests := []struct {
		name string
		code string
		want string
	}{
		{"no cluster", `x = 1`, "cluster"},
		{"string cluster", `cluster = "six"`, "cluster"},
		{"out of range", `cluster = 70000`, "out of range"},
		{"fractional", `cluster = 6.5`, "out of range"},
		{"syntax", `cluster = `, "load"},
		{"runtime", `error("boom")`, "boom"},
		{"sandboxed os", `os.exit(1)`, "load"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewApp(&Script{ID: "bad", LuaCode: tt.code}, newFakeCommander(), testLogger())
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestAppStartupSeesCluster(t *testing.T) {
	app, cmdr := newTestApp(t, `
cluster = 6
function on_startup(c)
    started = c.name .. " " .. c.role .. " " .. c.network .. "/" .. c.endpoint
end
`)
	if err := app.AppStartup(onOffCluster(t, cmdr.reg)); err != nil {
		t.Fatal(err)
	}
	if got := global(t, app, "started").String(); got != "On/Off server 4660/1" {
		t.Errorf("started = %q", got)
	}
	if app.Key() != (endpoint.Key{Network: 0x1234, Endpoint: 1}) {
		t.Errorf("key = %s", app.Key())
	}
}

func TestAppCommandReceived(t *testing.T) {
	app, cmdr := newTestApp(t, `
cluster = 6
function on_command(cmd)
    last_name = cmd.name
    last_tsn = cmd.tsn
    last_value = cmd.fields.records[1].value
    zigbee.send(cmd.source.network, cmd.source.endpoint, 6, "Off")
end
`)
	if err := app.CommandReceived(reportOnOff(t, cmdr.reg)); err != nil {
		t.Fatal(err)
	}
	if got := global(t, app, "last_name").String(); got != "ReportAttributes" {
		t.Errorf("name = %q", got)
	}
	if got := global(t, app, "last_tsn"); got != lua.LNumber(5) {
		t.Errorf("tsn = %v", got)
	}
	if got := global(t, app, "last_value"); got != lua.LTrue {
		t.Errorf("value = %v", got)
	}

	select {
	case cmd := <-cmdr.sent:
		if cmd.Name() != "Off" || cmd.ClusterID() != 0x0006 {
			t.Errorf("sent %s", cmd)
		}
		if cmd.Destination != (zcl.Address{Network: 0x1234, Endpoint: 1}) {
			t.Errorf("destination = %s", cmd.Destination)
		}
		if cmd.TransactionID == 0 {
			t.Error("command was not prepared")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("command not sent")
	}
}

func TestAppSendWithFields(t *testing.T) {
	app, cmdr := newTestApp(t, `
cluster = 8
function on_command(cmd)
    zigbee.send(0x2000, 2, 8, "MoveToLevel", {level = 128, transitionTime = 10})
end
`)
	if err := app.CommandReceived(reportOnOff(t, cmdr.reg)); err != nil {
		t.Fatal(err)
	}
	select {
	case cmd := <-cmdr.sent:
		if cmd.Uint8("level") != 128 || cmd.Uint16("transitionTime") != 10 {
			t.Errorf("fields = %v", cmd.FieldMap())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("command not sent")
	}
}

func TestAppSendToBoundEndpoint(t *testing.T) {
	app, cmdr := newTestApp(t, `
cluster = 6
function on_command(cmd)
    zigbee.send(6, "On", {})
end
`)
	if err := app.AppStartup(onOffCluster(t, cmdr.reg)); err != nil {
		t.Fatal(err)
	}
	if err := app.CommandReceived(reportOnOff(t, cmdr.reg)); err != nil {
		t.Fatal(err)
	}
	select {
	case cmd := <-cmdr.sent:
		if cmd.Name() != "On" {
			t.Errorf("sent %s", cmd)
		}
		if cmd.Destination != (zcl.Address{Network: 0x1234, Endpoint: 1}) {
			t.Errorf("destination = %s", cmd.Destination)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("command not sent")
	}
}

func TestAppSendToBoundEndpointBeforeStartup(t *testing.T) {
	app, cmdr := newTestApp(t, `
cluster = 6
function on_command(cmd)
    zigbee.send(6, "On")
end
`)
	err := app.CommandReceived(reportOnOff(t, cmdr.reg))
	if err == nil || !strings.Contains(err.Error(), "not bound") {
		t.Errorf("err = %v", err)
	}
}

func TestAppSendUnknownCommandFails(t *testing.T) {
	app, cmdr := newTestApp(t, `
cluster = 6
function on_command(cmd)
    zigbee.send(1, 1, 6, "Explode")
end
`)
	err := app.CommandReceived(reportOnOff(t, cmdr.reg))
	if err == nil || !strings.Contains(err.Error(), "Explode") {
		t.Errorf("err = %v", err)
	}
}

func TestAppScriptErrorSurfaces(t *testing.T) {
	app, cmdr := newTestApp(t, `
cluster = 6
function on_command(cmd)
    error("bad payload")
end
`)
	err := app.CommandReceived(reportOnOff(t, cmdr.reg))
	if err == nil || !strings.Contains(err.Error(), "bad payload") {
		t.Errorf("err = %v", err)
	}
	// The VM stays usable.
	if err := app.CommandReceived(reportOnOff(t, cmdr.reg)); err == nil {
		t.Error("second call should fail the same way")
	}
}

func TestAppRunawayScriptTimesOut(t *testing.T) {
	app, cmdr := newTestApp(t, `
cluster = 6
function on_command(cmd)
    while true do end
end
`)
	app.timeout = 50 * time.Millisecond
	start := time.Now()
	if err := app.CommandReceived(reportOnOff(t, cmdr.reg)); err == nil {
		t.Fatal("expected timeout error")
	}
	if d := time.Since(start); d > 2*time.Second {
		t.Errorf("took %v", d)
	}
}

func TestAppAfter(t *testing.T) {
	app, cmdr := newTestApp(t, `
cluster = 6
function on_startup(c)
    zigbee.after(0.01, function() zigbee.send(1, 1, 6, "Toggle") end)
end
`)
	if err := app.AppStartup(onOffCluster(t, cmdr.reg)); err != nil {
		t.Fatal(err)
	}
	select {
	case cmd := <-cmdr.sent:
		if cmd.Name() != "Toggle" {
			t.Errorf("sent %s", cmd.Name())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestAppShutdown(t *testing.T) {
	app, cmdr := newTestApp(t, `
cluster = 6
function on_shutdown()
    zigbee.log("bye")
end
`)
	app.AppShutdown()
	err := app.CommandReceived(reportOnOff(t, cmdr.reg))
	if !errors.Is(err, ErrStopped) {
		t.Errorf("err = %v, want ErrStopped", err)
	}
	// A second shutdown is harmless.
	app.AppShutdown()
}

func TestAppOnEndpoint(t *testing.T) {
	cmdr := newFakeCommander()
	app, err := NewApp(&Script{ID: "ep", LuaCode: "cluster = 6"}, cmdr, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	ep := endpoint.New(endpoint.Key{Network: 0x1234, Endpoint: 1}, cmdr.reg, testLogger())
	ep.SetInputClusterIDs([]uint16{0x0006})
	if err := ep.AddApplication(app); err != nil {
		t.Fatal(err)
	}
	if out := ep.CommandReceived(reportOnOff(t, cmdr.reg)); out != endpoint.Delivered {
		t.Errorf("outcome = %s, want application", out)
	}
	if !ep.RemoveApplication(app) {
		t.Fatal("application was not bound")
	}
	if !app.closed {
		t.Error("VM not released on removal")
	}
}
