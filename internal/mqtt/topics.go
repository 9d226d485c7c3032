//go:build !no_mqtt

package mqtt

import (
	"fmt"
	"strconv"
	"strings"

	"zigbee-go-host/internal/endpoint"
	"zigbee-go-host/internal/host"
)

// Topic layout under the configured prefix:
//
//	<prefix>/bridge/state                              online/offline (retained)
//	<prefix>/bridge/timeout                            transaction timeouts
//	<prefix>/<node>/<ep>/info                          endpoint descriptor (retained)
//	<prefix>/<node>/<ep>/<cluster>/<command>           received commands
//	<prefix>/<node>/<ep>/<cluster>/<command>/set       commands to send
//
// <node> is the IEEE address when known, else the network address as nwk_XXXX.

// sanitize lowercases s and keeps only characters safe in a topic level.
func sanitize(s string) string {
	s = strings.ToLower(s)
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, s)
}

func nodeName(ieee string, network uint16) string {
	if ieee != "" {
		return ieee
	}
	return fmt.Sprintf("nwk_%04X", network)
}

func endpointTopic(prefix, ieee string, network uint16, ep uint8) string {
	return fmt.Sprintf("%s/%s/%d", prefix, nodeName(ieee, network), ep)
}

func infoTopic(prefix, ieee string, network uint16, ep uint8) string {
	return endpointTopic(prefix, ieee, network, ep) + "/info"
}

func commandTopic(prefix string, ev host.CommandEvent) string {
	return fmt.Sprintf("%s/%s/%s", endpointTopic(prefix, ev.IEEE, ev.Source.Network, ev.Source.Endpoint),
		sanitize(ev.Cluster), sanitize(ev.Command))
}

// setRequest is a parsed .../set topic.
type setRequest struct {
	Node     string
	Endpoint uint8
	Cluster  string
	Command  string
}

func parseSetTopic(prefix, topic string) (setRequest, error) {
	rest, ok := strings.CutPrefix(topic, prefix+"/")
	if !ok {
		return setRequest{}, fmt.Errorf("topic %q outside prefix %q", topic, prefix)
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 5 || parts[4] != "set" {
		return setRequest{}, fmt.Errorf("topic %q is not <node>/<ep>/<cluster>/<command>/set", topic)
	}
	ep, err := strconv.ParseUint(parts[1], 10, 8)
	if err != nil {
		return setRequest{}, fmt.Errorf("endpoint %q: %w", parts[1], err)
	}
	return setRequest{Node: parts[0], Endpoint: uint8(ep), Cluster: parts[2], Command: parts[3]}, nil
}

// endpointInfo is the retained payload describing one endpoint.
type endpointInfo struct {
	IEEE       string              `json:"ieee,omitempty"`
	Network    string              `json:"network"`
	Endpoint   uint8               `json:"endpoint"`
	Descriptor endpoint.Descriptor `json:"descriptor"`
	Clusters   []clusterInfo       `json:"clusters"`
}

type clusterInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

func buildEndpointInfo(e *endpoint.Endpoint) endpointInfo {
	info := endpointInfo{
		Network:    fmt.Sprintf("0x%04X", e.Network()),
		Endpoint:   e.ID(),
		Descriptor: e.Descriptor(),
	}
	if ieee := e.IEEE(); !ieee.IsZero() {
		info.IEEE = ieee.String()
	}
	for _, c := range e.Clusters() {
		info.Clusters = append(info.Clusters, clusterInfo{
			ID:   fmt.Sprintf("0x%04X", c.ID()),
			Name: c.Name(),
			Role: c.Role().String(),
		})
	}
	return info
}
