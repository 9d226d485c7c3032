package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"zigbee-go-host/internal/codec"
	"zigbee-go-host/internal/endpoint"
	"zigbee-go-host/internal/transaction"
	"zigbee-go-host/internal/zcl"
)

const requestTimeout = 15 * time.Second

type endpointView struct {
	Key          string              `json:"key"`
	IEEE         string              `json:"ieee,omitempty"`
	Network      string              `json:"network"`
	Endpoint     uint8               `json:"endpoint"`
	Descriptor   endpoint.Descriptor `json:"descriptor"`
	Clusters     []clusterView       `json:"clusters"`
	Applications []string            `json:"applications,omitempty"`
}

type clusterView struct {
	ID         string               `json:"id"`
	Name       string               `json:"name"`
	Role       string               `json:"role"`
	Attributes []endpoint.Attribute `json:"attributes,omitempty"`
}

func viewEndpoint(e *endpoint.Endpoint) endpointView {
	v := endpointView{
		Key:        e.Key().String(),
		Network:    fmt.Sprintf("0x%04X", e.Network()),
		Endpoint:   e.ID(),
		Descriptor: e.Descriptor(),
		Clusters:   []clusterView{},
	}
	if ieee := e.IEEE(); !ieee.IsZero() {
		v.IEEE = ieee.String()
	}
	for _, c := range e.Clusters() {
		v.Clusters = append(v.Clusters, clusterView{
			ID:         fmt.Sprintf("0x%04X", c.ID()),
			Name:       c.Name(),
			Role:       c.Role().String(),
			Attributes: c.Attributes(),
		})
	}
	for _, app := range e.Applications() {
		v.Applications = append(v.Applications, fmt.Sprintf("0x%04X", app.ClusterID()))
	}
	return v
}

func (s *Server) handleAPIHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"version":      s.version,
		"uptime":       time.Since(s.started).Round(time.Second).String(),
		"endpoints":    s.host.Endpoints().Len(),
		"transactions": s.host.Transactions().Pending(),
	})
}

func (s *Server) handleAPIListEndpoints(w http.ResponseWriter, r *http.Request) {
	all := s.host.Endpoints().All()
	views := make([]endpointView, 0, len(all))
	for _, e := range all {
		views = append(views, viewEndpoint(e))
	}
	s.writeJSON(w, http.StatusOK, views)
}

// endpointFromPath resolves {network}/{ep}. The network accepts decimal or
// 0x-prefixed hex.
func (s *Server) endpointFromPath(w http.ResponseWriter, r *http.Request) *endpoint.Endpoint {
	network, err := strconv.ParseUint(r.PathValue("network"), 0, 16)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid network address"})
		return nil
	}
	ep, err := strconv.ParseUint(r.PathValue("ep"), 10, 8)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid endpoint"})
		return nil
	}
	e := s.host.Endpoints().Endpoint(endpoint.Key{Network: uint16(network), Endpoint: uint8(ep)})
	if e == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "endpoint not found"})
		return nil
	}
	return e
}

func (s *Server) handleAPIGetEndpoint(w http.ResponseWriter, r *http.Request) {
	e := s.endpointFromPath(w, r)
	if e == nil {
		return
	}
	s.writeJSON(w, http.StatusOK, viewEndpoint(e))
}

type addEndpointRequest struct {
	IEEE       string              `json:"ieee"`
	Network    uint16              `json:"network"`
	Descriptor endpoint.Descriptor `json:"descriptor"`
}

func (s *Server) handleAPIAddEndpoint(w http.ResponseWriter, r *http.Request) {
	var req addEndpointRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	var ieee codec.IEEEAddress
	if req.IEEE != "" {
		var err error
		if ieee, err = codec.ParseIEEE(req.IEEE); err != nil {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
	}
	e, err := s.host.AddEndpoint(ieee, req.Network, req.Descriptor)
	if e == nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		// Registered but not persisted.
		s.logger.Error("add endpoint", "endpoint", e.Key(), "err", err)
	}
	s.writeJSON(w, http.StatusCreated, viewEndpoint(e))
}

func (s *Server) handleAPIRemoveNode(w http.ResponseWriter, r *http.Request) {
	ieee, err := codec.ParseIEEE(r.PathValue("ieee"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := s.host.RemoveNode(ieee); err != nil {
		s.logger.Error("remove node", "err", err, "ieee", ieee)
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type readAttributesRequest struct {
	ClusterID uint16   `json:"cluster_id"`
	AttrIDs   []uint16 `json:"attr_ids"`
}

func (s *Server) handleAPIReadAttributes(w http.ResponseWriter, r *http.Request) {
	e := s.endpointFromPath(w, r)
	if e == nil {
		return
	}

	var req readAttributesRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if len(req.AttrIDs) == 0 {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "attr_ids must not be empty"})
		return
	}
	if len(req.AttrIDs) > 50 {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "attr_ids limited to 50"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	dst := zcl.Address{Network: e.Network(), Endpoint: e.ID()}
	results, err := s.host.ReadAttributes(ctx, dst, req.ClusterID, req.AttrIDs...)
	if err != nil {
		s.writeRequestError(w, "read attributes", e.Key(), err)
		return
	}
	s.writeJSON(w, http.StatusOK, results)
}

type sendCommandRequest struct {
	ClusterID uint16         `json:"cluster_id"`
	Command   string         `json:"command"`
	Fields    map[string]any `json:"fields,omitempty"`
	// Wait blocks until the endpoint answers with a DefaultResponse.
	Wait bool `json:"wait,omitempty"`
}

type commandView struct {
	Name          string         `json:"name"`
	TransactionID uint8          `json:"transaction_id"`
	Fields        map[string]any `json:"fields,omitempty"`
}

func (s *Server) handleAPISendCommand(w http.ResponseWriter, r *http.Request) {
	e := s.endpointFromPath(w, r)
	if e == nil {
		return
	}

	var req sendCommandRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	cmd, err := s.host.Registry().NewClusterCommand(req.ClusterID, req.Command)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	for name, v := range req.Fields {
		if err := cmd.Set(name, v); err != nil {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
	}
	cmd.Destination = zcl.Address{Network: e.Network(), Endpoint: e.ID()}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	if req.Wait {
		resp, err := s.host.Request(ctx, cmd, nil)
		if err != nil {
			s.writeRequestError(w, "send command", e.Key(), err)
			return
		}
		s.writeJSON(w, http.StatusOK, commandView{Name: resp.Name(), TransactionID: resp.TransactionID, Fields: resp.FieldMap()})
		return
	}
	s.host.Prepare(cmd)
	if err := s.host.SendCommand(ctx, cmd); err != nil {
		s.writeRequestError(w, "send command", e.Key(), err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "transaction_id": cmd.TransactionID})
}

// writeRequestError maps a failed exchange with a device to a gateway status.
func (s *Server) writeRequestError(w http.ResponseWriter, op string, key endpoint.Key, err error) {
	s.logger.Warn(op, "endpoint", key, "err", err)
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, transaction.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	case errors.Is(err, transaction.ErrClosed):
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

type transactionView struct {
	ID       string    `json:"id"`
	Matcher  string    `json:"matcher"`
	Created  time.Time `json:"created"`
	Deadline time.Time `json:"deadline"`
}

func (s *Server) handleAPIListTransactions(w http.ResponseWriter, r *http.Request) {
	records := s.host.Transactions().Snapshot()
	views := make([]transactionView, 0, len(records))
	for _, rec := range records {
		views = append(views, transactionView{
			ID:       rec.ID().String(),
			Matcher:  fmt.Sprint(rec.Matcher()),
			Created:  rec.Created(),
			Deadline: rec.Deadline(),
		})
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleAPIListClusters(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.host.Registry().All())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("writeJSON encode failed", "err", err)
	}
}
