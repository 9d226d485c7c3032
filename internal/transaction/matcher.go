package transaction

import (
	"fmt"

	"zigbee-go-host/internal/zcl"
)

// Matcher decides whether an inbound command answers a pending request.
type Matcher interface {
	Matches(cmd *zcl.Command) bool
}

// MatcherFunc adapts a plain function to Matcher.
type MatcherFunc func(cmd *zcl.Command) bool

func (f MatcherFunc) Matches(cmd *zcl.Command) bool { return f(cmd) }

// ResponseMatcher is the usual match rule: a response from one address on one
// cluster, identified by command id and optionally by transaction sequence.
type ResponseMatcher struct {
	Network   uint16
	Endpoint  uint8 // 0 matches any endpoint
	ClusterID uint16
	CommandID uint8
	Generic   bool

	TransactionID      uint8
	MatchTransactionID bool

	// AcceptDefaultResponse also accepts a default response whose
	// commandIdentifier equals RequestCommandID.
	AcceptDefaultResponse bool
	RequestCommandID      uint8
}

// MatchResponse matches the response commandID to req, sent back by the
// device req was addressed to and carrying the same transaction sequence.
func MatchResponse(req *zcl.Command, commandID uint8, generic bool) *ResponseMatcher {
	return &ResponseMatcher{
		Network:            req.Destination.Network,
		Endpoint:           req.Destination.Endpoint,
		ClusterID:          req.ClusterID(),
		CommandID:          commandID,
		Generic:            generic,
		TransactionID:      req.TransactionID,
		MatchTransactionID: true,
		RequestCommandID:   req.CommandID(),
	}
}

// MatchDefaultResponse matches the default response to req.
func MatchDefaultResponse(req *zcl.Command) *ResponseMatcher {
	m := MatchResponse(req, zcl.FoundationDefaultResponse, true)
	m.AcceptDefaultResponse = true
	return m
}

// OrDefaultResponse makes m also accept a default response to the request,
// which devices send instead of the specific response on failure.
func (m *ResponseMatcher) OrDefaultResponse() *ResponseMatcher {
	m.AcceptDefaultResponse = true
	return m
}

func (m *ResponseMatcher) Matches(cmd *zcl.Command) bool {
	if cmd.Source.Network != m.Network || cmd.ClusterID() != m.ClusterID {
		return false
	}
	if m.Endpoint != 0 && cmd.Source.Endpoint != m.Endpoint {
		return false
	}
	if m.MatchTransactionID && cmd.TransactionID != m.TransactionID {
		return false
	}
	if m.AcceptDefaultResponse && cmd.Generic() && cmd.CommandID() == zcl.FoundationDefaultResponse {
		return cmd.Uint8("commandIdentifier") == m.RequestCommandID
	}
	return cmd.Generic() == m.Generic && cmd.CommandID() == m.CommandID
}

func (m *ResponseMatcher) String() string {
	s := fmt.Sprintf("response[src=0x%04X/%d cluster=0x%04X cmd=0x%02X generic=%v", m.Network, m.Endpoint, m.ClusterID, m.CommandID, m.Generic)
	if m.MatchTransactionID {
		s += fmt.Sprintf(" tsn=%d", m.TransactionID)
	}
	if m.AcceptDefaultResponse {
		s += fmt.Sprintf(" default-for=0x%02X", m.RequestCommandID)
	}
	return s + "]"
}
