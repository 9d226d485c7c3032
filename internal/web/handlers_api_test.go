package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"zigbee-go-host/internal/automation"
	"zigbee-go-host/internal/codec"
	"zigbee-go-host/internal/endpoint"
	"zigbee-go-host/internal/host"
	"zigbee-go-host/internal/store"
	"zigbee-go-host/internal/transport"
	"zigbee-go-host/internal/zcl"
	"zigbee-go-host/internal/zcl/clusters"
)

var lampIEEE = codec.IEEEAddress{0x00, 0x12, 0x4B, 0x00, 0x01, 0x02, 0x03, 0x04}

// setupTestServer returns a server over a started host whose co-processor
// never answers, with one On/Off endpoint registered.
func setupTestServer(t *testing.T, opts ...ServerOption) (*Server, *host.Host) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := zcl.NewRegistry(logger)
	clusters.RegisterAll(registry)

	db, err := store.NewBoltStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	local, _ := transport.Pipe()
	cfg := host.DefaultConfig()
	cfg.SendTimeout = 50 * time.Millisecond
	h := host.New(local, registry, db, nil, cfg, logger)
	if err := h.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(h.Stop)

	if _, err := h.AddEndpoint(lampIEEE, 0x1234, endpoint.Descriptor{
		EndpointID:      1,
		ProfileID:       0x0104,
		DeviceID:        0x0100,
		InputClusterIDs: []uint16{0x0000, 0x0006},
	}); err != nil {
		t.Fatal(err)
	}

	s := NewServer(h, logger, opts...)
	t.Cleanup(s.Stop)
	return s, h
}

func doRequest(s *Server, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func TestAPIHealth(t *testing.T) {
	s, _ := setupTestServer(t, WithVersion("1.2.3"))
	w := doRequest(s, "GET", "/api/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got["status"] != "ok" || got["version"] != "1.2.3" || got["endpoints"] != float64(1) || got["transactions"] != float64(0) {
		t.Errorf("health = %v", got)
	}
}

func TestAPIListAndGetEndpoints(t *testing.T) {
	s, _ := setupTestServer(t)

	w := doRequest(s, "GET", "/api/endpoints", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var list []endpointView
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Key != "0x1234/1" || list[0].IEEE != "00124B0001020304" {
		t.Fatalf("endpoints = %+v", list)
	}
	if len(list[0].Clusters) != 2 {
		t.Errorf("clusters = %+v", list[0].Clusters)
	}

	for _, path := range []string{"/api/endpoints/0x1234/1", "/api/endpoints/4660/1"} {
		w = doRequest(s, "GET", path, nil)
		if w.Code != http.StatusOK {
			t.Errorf("GET %s: status = %d", path, w.Code)
		}
	}

	tests := []struct {
		path string
		code int
	}{
		{"/api/endpoints/0x1234/2", http.StatusNotFound},
		{"/api/endpoints/zz/1", http.StatusBadRequest},
		{"/api/endpoints/0x1234/999", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if w := doRequest(s, "GET", tt.path, nil); w.Code != tt.code {
			t.Errorf("GET %s: status = %d, want %d", tt.path, w.Code, tt.code)
		}
	}
}

func TestAPIAddEndpointAndRemoveNode(t *testing.T) {
	s, h := setupTestServer(t)

	body := addEndpointRequest{
		IEEE:    "00:12:4B:00:0A:0B:0C:0D",
		Network: 0x5678,
		Descriptor: endpoint.Descriptor{
			EndpointID:      2,
			ProfileID:       0x0104,
			InputClusterIDs: []uint16{0x0402},
		},
	}
	w := doRequest(s, "POST", "/api/endpoints", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	if h.Endpoints().Endpoint(endpoint.Key{Network: 0x5678, Endpoint: 2}) == nil {
		t.Fatal("endpoint not registered")
	}
	node, err := h.Store().GetNode(codec.IEEEAddress{0x00, 0x12, 0x4B, 0x00, 0x0A, 0x0B, 0x0C, 0x0D})
	if err != nil || len(node.Endpoints) != 1 {
		t.Errorf("stored node = %+v, %v", node, err)
	}

	w = doRequest(s, "DELETE", "/api/nodes/00124B000A0B0C0D", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
	if h.Endpoints().Endpoint(endpoint.Key{Network: 0x5678, Endpoint: 2}) != nil {
		t.Error("endpoint still registered")
	}

	if w := doRequest(s, "POST", "/api/endpoints", addEndpointRequest{IEEE: "xyz"}); w.Code != http.StatusBadRequest {
		t.Errorf("bad ieee: status = %d", w.Code)
	}
	if w := doRequest(s, "DELETE", "/api/nodes/nope", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad ieee delete: status = %d", w.Code)
	}
}

func TestAPIReadAttributesValidation(t *testing.T) {
	s, _ := setupTestServer(t)

	tests := []struct {
		name string
		body any
		code int
	}{
		{"empty ids", readAttributesRequest{ClusterID: 6}, http.StatusBadRequest},
		{"too many", readAttributesRequest{ClusterID: 6, AttrIDs: make([]uint16, 51)}, http.StatusBadRequest},
		{"bad body", "not an object", http.StatusBadRequest},
		// The co-processor never acknowledges the send.
		{"no co-processor", readAttributesRequest{ClusterID: 6, AttrIDs: []uint16{0}}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(s, "POST", "/api/endpoints/0x1234/1/read", tt.body)
			if w.Code != tt.code {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.code, w.Body)
			}
		})
	}
}

func TestAPISendCommandValidation(t *testing.T) {
	s, _ := setupTestServer(t)

	tests := []struct {
		name string
		path string
		body any
		code int
	}{
		{"unknown endpoint", "/api/endpoints/0x9999/1/command", sendCommandRequest{ClusterID: 6, Command: "On"}, http.StatusNotFound},
		{"unknown command", "/api/endpoints/0x1234/1/command", sendCommandRequest{ClusterID: 6, Command: "Explode"}, http.StatusBadRequest},
		{"bad field", "/api/endpoints/0x1234/1/command", sendCommandRequest{ClusterID: 8, Command: "MoveToLevel", Fields: map[string]any{"level": 300}}, http.StatusBadRequest},
		{"unknown field", "/api/endpoints/0x1234/1/command", sendCommandRequest{ClusterID: 6, Command: "On", Fields: map[string]any{"nope": 1}}, http.StatusBadRequest},
		{"no co-processor", "/api/endpoints/0x1234/1/command", sendCommandRequest{ClusterID: 6, Command: "On"}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(s, "POST", tt.path, tt.body)
			if w.Code != tt.code {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.code, w.Body)
			}
		})
	}
}

func TestAPIListTransactionsAndClusters(t *testing.T) {
	s, _ := setupTestServer(t)

	w := doRequest(s, "GET", "/api/transactions", nil)
	if w.Code != http.StatusOK || bytes.TrimSpace(w.Body.Bytes())[0] != '[' {
		t.Errorf("transactions: %d %s", w.Code, w.Body)
	}

	w = doRequest(s, "GET", "/api/clusters", nil)
	var defs []zcl.ClusterDef
	if err := json.Unmarshal(w.Body.Bytes(), &defs); err != nil {
		t.Fatal(err)
	}
	if len(defs) == 0 {
		t.Error("no clusters listed")
	}
}

func TestAPIKeyAuth(t *testing.T) {
	s, _ := setupTestServer(t, WithAPIKey("secret"))

	if w := doRequest(s, "GET", "/api/endpoints", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("no key: status = %d", w.Code)
	}
	if w := doRequest(s, "GET", "/api/endpoints", nil, "X-API-Key", "wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong key: status = %d", w.Code)
	}
	if w := doRequest(s, "GET", "/api/endpoints", nil, "X-API-Key", "secret"); w.Code != http.StatusOK {
		t.Errorf("right key: status = %d", w.Code)
	}
	if w := doRequest(s, "GET", "/api/health", nil); w.Code != http.StatusOK {
		t.Errorf("health should be open: status = %d", w.Code)
	}
}

func TestAPICORS(t *testing.T) {
	s, _ := setupTestServer(t, WithAllowedOrigins([]string{"http://ok.example"}))

	w := doRequest(s, "OPTIONS", "/api/endpoints", nil, "Origin", "http://ok.example")
	if w.Code != http.StatusNoContent || w.Header().Get("Access-Control-Allow-Origin") != "http://ok.example" {
		t.Errorf("preflight: %d %v", w.Code, w.Header())
	}
	if w := doRequest(s, "OPTIONS", "/api/endpoints", nil, "Origin", "http://evil.example"); w.Code != http.StatusForbidden {
		t.Errorf("bad preflight: status = %d", w.Code)
	}
	if w := doRequest(s, "DELETE", "/api/nodes/00124B0001020304", nil, "Origin", "http://evil.example"); w.Code != http.StatusForbidden {
		t.Errorf("cross-origin delete: status = %d", w.Code)
	}
	if w := doRequest(s, "GET", "/api/endpoints", nil, "Origin", "http://evil.example"); w.Code != http.StatusOK {
		t.Errorf("cross-origin get: status = %d", w.Code)
	}
}

func TestAPIAutomations(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mgr, err := automation.NewManager(filepath.Join(t.TempDir(), "scripts"), logger)
	if err != nil {
		t.Fatal(err)
	}
	var engine *automation.Engine
	s, h := setupTestServer(t, func(s *Server) {
		engine = automation.NewEngine(s.host, mgr, logger)
		WithAutomation(engine, mgr)(s)
	})
	engine.Start()
	defer engine.Stop()

	if mgr == nil {
		// Built without automation.
		if w := doRequest(s, "GET", "/api/automations", nil); w.Code != http.StatusOK {
			t.Errorf("list status = %d", w.Code)
		}
		return
	}

	w := doRequest(s, "POST", "/api/automations", saveAutomationRequest{
		Name:    "Lamp Mirror",
		LuaCode: "cluster = 6\n",
		Enabled: true,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", w.Code, w.Body)
	}
	var saved automation.Script
	if err := json.Unmarshal(w.Body.Bytes(), &saved); err != nil {
		t.Fatal(err)
	}
	if saved.ID != "lamp_mirror" {
		t.Errorf("id = %q", saved.ID)
	}

	w = doRequest(s, "GET", "/api/automations/bindings", nil)
	var bindings map[string][]string
	if err := json.Unmarshal(w.Body.Bytes(), &bindings); err != nil {
		t.Fatal(err)
	}
	if got := bindings["lamp_mirror"]; len(got) != 1 || got[0] != "0x1234/1" {
		t.Errorf("bindings = %v", bindings)
	}
	if h.Endpoints().Endpoint(endpoint.Key{Network: 0x1234, Endpoint: 1}).Application(6) == nil {
		t.Error("script not bound on the endpoint")
	}

	if w := doRequest(s, "POST", "/api/automations", saveAutomationRequest{LuaCode: "cluster = 6"}); w.Code != http.StatusBadRequest {
		t.Errorf("nameless create: status = %d", w.Code)
	}

	w = doRequest(s, "PUT", "/api/automations/lamp_mirror", saveAutomationRequest{Name: "Lamp Mirror", LuaCode: "cluster = ", Enabled: true})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("broken update: status = %d", w.Code)
	}

	w = doRequest(s, "POST", "/api/automations/lamp_mirror/toggle", nil)
	if w.Code != http.StatusOK {
		t.Errorf("toggle status = %d", w.Code)
	}
	if _, ok := engine.Bindings()["lamp_mirror"]; ok {
		t.Error("disabled script still bound")
	}

	if w := doRequest(s, "GET", "/api/automations/lamp_mirror", nil); w.Code != http.StatusOK {
		t.Errorf("get status = %d", w.Code)
	}
	if w := doRequest(s, "DELETE", "/api/automations/lamp_mirror", nil); w.Code != http.StatusOK {
		t.Errorf("delete status = %d", w.Code)
	}
	if w := doRequest(s, "GET", "/api/automations/lamp_mirror", nil); w.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d", w.Code)
	}
}
