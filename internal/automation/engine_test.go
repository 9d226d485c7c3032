//go:build !no_automation

package automation

import (
	"context"
	"testing"

	"zigbee-go-host/internal/codec"
	"zigbee-go-host/internal/endpoint"
	"zigbee-go-host/internal/host"
	"zigbee-go-host/internal/transport"
	"zigbee-go-host/internal/zcl"
	"zigbee-go-host/internal/zcl/clusters"
)

func newTestHost(t *testing.T) *host.Host {
	t.Helper()
	local, _ := transport.Pipe()
	reg := zcl.NewRegistry(testLogger())
	clusters.RegisterAll(reg)
	h := host.New(local, reg, nil, nil, host.DefaultConfig(), testLogger())
	if err := h.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(h.Stop)
	return h
}

var (
	lampIEEE   = codec.IEEEAddress{0, 0x0B, 0x57, 0xFF, 0xFE, 0, 0, 1}
	switchIEEE = codec.IEEEAddress{0, 0x0B, 0x57, 0xFF, 0xFE, 0, 0, 2}
)

func addOnOffNode(t *testing.T, h *host.Host, ieee codec.IEEEAddress, network uint16) {
	t.Helper()
	_, err := h.AddEndpoint(ieee, network, endpoint.Descriptor{
		EndpointID:      1,
		ProfileID:       0x0104,
		DeviceID:        0x0100,
		InputClusterIDs: []uint16{0x0000, 0x0006},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func saveScript(t *testing.T, m *Manager, name string, enabled bool, endpoints ...string) *Script {
	t.Helper()
	s, err := m.Save(&Script{
		Meta:    ScriptMeta{Name: name, Enabled: enabled, Endpoints: endpoints},
		LuaCode: "cluster = 6\nfunction on_command(cmd) count = (count or 0) + 1 end\n",
	})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestEngineBindsExistingAndNewEndpoints(t *testing.T) {
	h := newTestHost(t)
	m := newTestManager(t)
	s := saveScript(t, m, "Lamp", true)
	addOnOffNode(t, h, lampIEEE, 0x1234)

	e := NewEngine(h, m, testLogger())
	e.Start()
	defer e.Stop()

	lamp := endpoint.Key{Network: 0x1234, Endpoint: 1}
	if got := e.Bindings()[s.ID]; len(got) != 1 || got[0] != lamp {
		t.Fatalf("bindings = %v, want [%s]", got, lamp)
	}
	if h.Endpoints().Endpoint(lamp).Application(0x0006) == nil {
		t.Error("application not bound to endpoint")
	}

	addOnOffNode(t, h, switchIEEE, 0x5678)
	if got := e.Bindings()[s.ID]; len(got) != 2 {
		t.Errorf("bindings after new endpoint = %v", got)
	}

	if err := h.RemoveNode(switchIEEE); err != nil {
		t.Fatal(err)
	}
	if got := e.Bindings()[s.ID]; len(got) != 1 {
		t.Errorf("bindings after removal = %v", got)
	}
}

func TestEngineSkipsDisabledAndFilteredScripts(t *testing.T) {
	h := newTestHost(t)
	m := newTestManager(t)
	disabled := saveScript(t, m, "Off", false)
	filtered := saveScript(t, m, "Only Switch", true, "0x5678/1")
	addOnOffNode(t, h, lampIEEE, 0x1234)
	addOnOffNode(t, h, switchIEEE, 0x5678)

	e := NewEngine(h, m, testLogger())
	e.Start()
	defer e.Stop()

	b := e.Bindings()
	if _, ok := b[disabled.ID]; ok {
		t.Error("disabled script was started")
	}
	want := endpoint.Key{Network: 0x5678, Endpoint: 1}
	if got := b[filtered.ID]; len(got) != 1 || got[0] != want {
		t.Errorf("filtered bindings = %v, want [%s]", got, want)
	}
}

func TestEngineSkipsEndpointsWithoutCluster(t *testing.T) {
	h := newTestHost(t)
	m := newTestManager(t)
	s := saveScript(t, m, "Lamp", true)
	if _, err := h.AddEndpoint(lampIEEE, 0x1234, endpoint.Descriptor{
		EndpointID:      1,
		ProfileID:       0x0104,
		InputClusterIDs: []uint16{0x0402},
	}); err != nil {
		t.Fatal(err)
	}

	e := NewEngine(h, m, testLogger())
	e.Start()
	defer e.Stop()

	if got := e.Bindings()[s.ID]; len(got) != 0 {
		t.Errorf("bindings = %v, want none", got)
	}
}

func TestEngineStopAndReload(t *testing.T) {
	h := newTestHost(t)
	m := newTestManager(t)
	s := saveScript(t, m, "Lamp", true)
	addOnOffNode(t, h, lampIEEE, 0x1234)

	e := NewEngine(h, m, testLogger())
	e.Start()
	defer e.Stop()

	lamp := endpoint.Key{Network: 0x1234, Endpoint: 1}
	e.StopScript(s.ID)
	if _, ok := e.Bindings()[s.ID]; ok {
		t.Error("script still bound after stop")
	}
	if h.Endpoints().Endpoint(lamp).Application(0x0006) != nil {
		t.Error("application still on endpoint after stop")
	}

	if err := e.ReloadScript(s.ID); err != nil {
		t.Fatal(err)
	}
	if got := e.Bindings()[s.ID]; len(got) != 1 {
		t.Errorf("bindings after reload = %v", got)
	}
}

func TestEngineRejectsBrokenScript(t *testing.T) {
	h := newTestHost(t)
	m := newTestManager(t)
	s, err := m.Save(&Script{Meta: ScriptMeta{Name: "Broken", Enabled: true}, LuaCode: "cluster = "})
	if err != nil {
		t.Fatal(err)
	}
	e := NewEngine(h, m, testLogger())
	if err := e.startScript(s); err == nil {
		t.Error("expected load error")
	}
}
