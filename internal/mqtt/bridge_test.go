//go:build !no_mqtt

package mqtt

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"zigbee-go-host/internal/codec"
	"zigbee-go-host/internal/endpoint"
	"zigbee-go-host/internal/host"
	"zigbee-go-host/internal/transport"
	"zigbee-go-host/internal/zcl"
	"zigbee-go-host/internal/zcl/clusters"
)

type doneToken struct{}

func (doneToken) Wait() bool                     { return true }
func (doneToken) WaitTimeout(time.Duration) bool { return true }
func (doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (doneToken) Error() error { return nil }

type published struct {
	topic    string
	payload  []byte
	retained bool
}

// fakeClient records publishes. Methods the bridge does not call panic
// through the nil embedded interface.
type fakeClient struct {
	pahomqtt.Client
	mu   sync.Mutex
	msgs []published
}

func (f *fakeClient) Publish(topic string, _ byte, retained bool, payload interface{}) pahomqtt.Token {
	var data []byte
	switch p := payload.(type) {
	case []byte:
		data = p
	case string:
		data = []byte(p)
	}
	f.mu.Lock()
	f.msgs = append(f.msgs, published{topic: topic, payload: data, retained: retained})
	f.mu.Unlock()
	return doneToken{}
}

func (f *fakeClient) find(topic string) (published, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.msgs) - 1; i >= 0; i-- {
		if f.msgs[i].topic == topic {
			return f.msgs[i], true
		}
	}
	return published{}, false
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var lampIEEE = codec.IEEEAddress{0x00, 0x15, 0x8D, 0x00, 0x01, 0x2A, 0x3B, 0x4C}

func newTestBridge(t *testing.T) (*Bridge, *fakeClient, *host.Host) {
	t.Helper()
	local, _ := transport.Pipe()
	reg := zcl.NewRegistry(testLogger())
	clusters.RegisterAll(reg)
	h := host.New(local, reg, nil, nil, host.DefaultConfig(), testLogger())
	if _, err := h.AddEndpoint(lampIEEE, 0x1234, endpoint.Descriptor{
		EndpointID:      1,
		ProfileID:       0x0104,
		InputClusterIDs: []uint16{0x0006, 0x0008},
	}); err != nil {
		t.Fatal(err)
	}
	fc := &fakeClient{}
	b := newBridge(fc, h, "zigbee/", testLogger())
	b.Start()
	t.Cleanup(func() { b.unsub() })
	return b, fc, h
}

func TestSanitize(t *testing.T) {
	tests := []struct{ in, want string }{
		{"On/Off", "on_off"},
		{"Level Control", "level_control"},
		{"ReportAttributes", "reportattributes"},
		{"0x0006", "0x0006"},
		{"a+b#c", "a_b_c"},
	}
	for _, tt := range tests {
		if got := sanitize(tt.in); got != tt.want {
			t.Errorf("sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCommandTopic(t *testing.T) {
	ev := host.CommandEvent{
		IEEE:    "00158D00012A3B4C",
		Source:  zcl.Address{Network: 0x1234, Endpoint: 1},
		Cluster: "On/Off",
		Command: "ReportAttributes",
	}
	if got, want := commandTopic("zigbee", ev), "zigbee/00158D00012A3B4C/1/on_off/reportattributes"; got != want {
		t.Errorf("topic = %q, want %q", got, want)
	}
	ev.IEEE = ""
	if got, want := commandTopic("zigbee", ev), "zigbee/nwk_1234/1/on_off/reportattributes"; got != want {
		t.Errorf("topic = %q, want %q", got, want)
	}
}

func TestParseSetTopic(t *testing.T) {
	req, err := parseSetTopic("zigbee", "zigbee/00158D00012A3B4C/1/on_off/toggle/set")
	if err != nil {
		t.Fatal(err)
	}
	want := setRequest{Node: "00158D00012A3B4C", Endpoint: 1, Cluster: "on_off", Command: "toggle"}
	if req != want {
		t.Errorf("got %+v, want %+v", req, want)
	}

	for _, bad := range []string{
		"other/00158D00012A3B4C/1/on_off/toggle/set",
		"zigbee/00158D00012A3B4C/1/on_off/toggle",
		"zigbee/00158D00012A3B4C/300/on_off/toggle/set",
		"zigbee/00158D00012A3B4C/1/on_off/toggle/get",
	} {
		if _, err := parseSetTopic("zigbee", bad); err == nil {
			t.Errorf("parseSetTopic(%q) should fail", bad)
		}
	}
}

func TestBridgePublishesEndpointInfo(t *testing.T) {
	_, fc, h := newTestBridge(t)

	// Added before Start, so publish on demand like the connect handler does.
	if _, ok := fc.find("zigbee/00158D00012A3B4C/1/info"); ok {
		t.Fatal("info published before any event")
	}
	if _, err := h.AddEndpoint(lampIEEE, 0x1234, endpoint.Descriptor{EndpointID: 2, ProfileID: 0x0104, InputClusterIDs: []uint16{0x0402}}); err != nil {
		t.Fatal(err)
	}
	msg, ok := fc.find("zigbee/00158D00012A3B4C/2/info")
	if !ok {
		t.Fatal("info not published")
	}
	if !msg.retained {
		t.Error("info should be retained")
	}
	var info endpointInfo
	if err := json.Unmarshal(msg.payload, &info); err != nil {
		t.Fatal(err)
	}
	if info.Network != "0x1234" || info.Endpoint != 2 || len(info.Clusters) != 1 || info.Clusters[0].ID != "0x0402" {
		t.Errorf("info = %+v", info)
	}

	if err := h.RemoveNode(lampIEEE); err != nil {
		t.Fatal(err)
	}
	msg, ok = fc.find("zigbee/00158D00012A3B4C/2/info")
	if !ok || len(msg.payload) != 0 || !msg.retained {
		t.Errorf("removal should clear the retained info, got %+v", msg)
	}
}

func TestBridgePublishesCommandsAndTimeouts(t *testing.T) {
	_, fc, h := newTestBridge(t)

	h.Events().Emit(host.Event{Type: host.EventCommandReceived, Data: host.CommandEvent{
		IEEE:    lampIEEE.String(),
		Source:  zcl.Address{Network: 0x1234, Endpoint: 1},
		Cluster: "On/Off",
		Command: "ReportAttributes",
		Outcome: "application",
	}})
	msg, ok := fc.find("zigbee/00158D00012A3B4C/1/on_off/reportattributes")
	if !ok {
		t.Fatal("command not published")
	}
	if msg.retained {
		t.Error("commands should not be retained")
	}
	var ev struct {
		Type string         `json:"type"`
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(msg.payload, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != host.EventCommandReceived || ev.Data["outcome"] != "application" {
		t.Errorf("payload = %s", msg.payload)
	}

	h.Events().Emit(host.Event{Type: host.EventTransactionTimeout, Data: host.TransactionEvent{ID: "abc"}})
	if _, ok := fc.find("zigbee/bridge/timeout"); !ok {
		t.Error("timeout not published")
	}

	// Matches and routing misses are not mirrored.
	before := len(fc.msgs)
	h.Events().Emit(host.Event{Type: host.EventTransactionMatched, Data: host.TransactionEvent{ID: "abc"}})
	h.Events().Emit(host.Event{Type: host.EventRoutingMiss, Data: host.CommandEvent{Cluster: "On/Off", Command: "On"}})
	if len(fc.msgs) != before {
		t.Errorf("unexpected publishes: %+v", fc.msgs[before:])
	}
}

func TestBridgeBuildCommand(t *testing.T) {
	b, _, _ := newTestBridge(t)

	tests := []struct {
		topic   string
		payload string
		name    string
		cluster uint16
	}{
		{"zigbee/00158D00012A3B4C/1/on_off/toggle/set", "", "Toggle", 0x0006},
		{"zigbee/00158D00012A3B4C/1/0x0006/On/set", "", "On", 0x0006},
		{"zigbee/nwk_1234/1/8/movetolevel/set", `{"level": 200, "transitionTime": 5}`, "MoveToLevel", 0x0008},
	}
	for _, tt := range tests {
		cmd, err := b.buildCommand(tt.topic, []byte(tt.payload))
		if err != nil {
			t.Errorf("%s: %v", tt.topic, err)
			continue
		}
		if cmd.Name() != tt.name || cmd.ClusterID() != tt.cluster {
			t.Errorf("%s: got %s", tt.topic, cmd)
		}
		if cmd.Destination != (zcl.Address{Network: 0x1234, Endpoint: 1}) {
			t.Errorf("%s: destination = %s", tt.topic, cmd.Destination)
		}
	}

	cmd, err := b.buildCommand("zigbee/nwk_1234/1/level_control/movetolevel/set", []byte(`{"level": 200}`))
	if err != nil {
		t.Fatal(err)
	}
	if cmd.Uint8("level") != 200 {
		t.Errorf("level = %d", cmd.Uint8("level"))
	}
}

func TestBridgeBuildCommandErrors(t *testing.T) {
	b, _, _ := newTestBridge(t)

	_, err := b.buildCommand("zigbee/00158D00012A3B4C/9/on_off/on/set", nil)
	if !errors.Is(err, host.ErrUnknownEndpoint) {
		t.Errorf("unknown endpoint: err = %v", err)
	}
	for _, tc := range []struct{ topic, payload string }{
		{"zigbee/nwk_1234/1/no_such_cluster/on/set", ""},
		{"zigbee/nwk_1234/1/on_off/explode/set", ""},
		{"zigbee/nwk_1234/1/level_control/movetolevel/set", `{"level": 300}`},
		{"zigbee/nwk_1234/1/level_control/movetolevel/set", `not json`},
		{"zigbee/not-an-ieee/1/on_off/on/set", ""},
	} {
		if _, err := b.buildCommand(tc.topic, []byte(tc.payload)); err == nil {
			t.Errorf("%s %s: expected error", tc.topic, tc.payload)
		}
	}
}

func TestMustJSON(t *testing.T) {
	if got := string(mustJSON(map[string]int{"a": 1})); got != `{"a":1}` {
		t.Errorf("mustJSON = %s", got)
	}
	if got := string(mustJSON(make(chan int))); got != "{}" {
		t.Errorf("mustJSON(chan) = %s", got)
	}
}
