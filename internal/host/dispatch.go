package host

import (
	"context"
	"errors"
	"fmt"
	"time"

	"zigbee-go-host/internal/codec"
	"zigbee-go-host/internal/endpoint"
	"zigbee-go-host/internal/ezsp"
	"zigbee-go-host/internal/transport"
	"zigbee-go-host/internal/zcl"
)

// readLoop is the only goroutine that decodes inbound frames, so commands are
// dispatched in arrival order.
func (h *Host) readLoop(ctx context.Context) {
	for {
		data, err := h.transport.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, transport.ErrClosed) {
				return
			}
			h.logger.Warn("receive failed", "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}
		h.handleFrame(data)
	}
}

func (h *Host) handleFrame(data []byte) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("frame handling panic", "frame", fmt.Sprintf("% X", data), "panic", r)
		}
	}()
	f, err := ezsp.ParseFrame(data)
	if err != nil {
		h.frameError(0, 0, data, err)
		return
	}
	d := codec.NewDeserializer(f.Payload)
	switch f.ID {
	case ezsp.FrameIncomingMessageHandler:
		var msg ezsp.IncomingMessage
		if err := msg.Deserialize(d); err != nil {
			h.frameError(0, 0, data, err)
			return
		}
		h.handleIncoming(&msg)

	case ezsp.FrameSendUnicast:
		var resp ezsp.SendUnicastResponse
		if err := resp.Deserialize(d); err != nil {
			h.frameError(0, 0, data, err)
			return
		}
		h.completeSend(f.Sequence, resp.Status)

	case ezsp.FrameMessageSentHandler:
		var sent ezsp.MessageSent
		if err := sent.Deserialize(d); err != nil {
			h.frameError(0, 0, data, err)
			return
		}
		if sent.Status != ezsp.StatusSuccess {
			h.logger.Warn("message delivery failed", "dst", fmt.Sprintf("0x%04X", sent.IndexOrDestination),
				"cluster", fmt.Sprintf("0x%04X", sent.ApsFrame.ClusterID), "status", sent.Status)
		} else {
			h.logger.Debug("message sent", "dst", fmt.Sprintf("0x%04X", sent.IndexOrDestination), "tag", sent.MessageTag)
		}

	default:
		h.logger.Debug("unhandled frame", "id", fmt.Sprintf("0x%04X", f.ID), "seq", f.Sequence)
	}
}

// handleIncoming decodes the ZCL payload of an incoming message and routes it
// to the endpoint it came from. Commands from unknown endpoints are still
// offered to the transaction engine.
func (h *Host) handleIncoming(msg *ezsp.IncomingMessage) {
	aps := msg.ApsFrame
	cmd, err := zcl.Unmarshal(h.catalog, aps.ClusterID, msg.Message)
	if err != nil {
		h.frameError(msg.Sender, aps.ClusterID, msg.Message, err)
		return
	}
	cmd.Source = zcl.Address{Network: msg.Sender, Endpoint: aps.SourceEndpoint}
	cmd.Destination = zcl.Address{Network: 0x0000, Endpoint: aps.DestinationEndpoint}
	cmd.ProfileID = aps.ProfileID

	key := endpoint.KeyOf(cmd.Source)
	var ieee string
	outcome := endpoint.Unclaimed
	if e := h.endpoints.Endpoint(key); e != nil {
		ieee = ieeeString(e.IEEE())
		outcome = e.CommandReceived(cmd)
	} else if h.tx.HandleCommand(cmd) {
		outcome = endpoint.Transaction
	}

	h.logger.Debug("command received", "src", cmd.Source, "cmd", cmd.Name(),
		"cluster", fmt.Sprintf("0x%04X", aps.ClusterID), "tsn", cmd.TransactionID, "outcome", outcome)
	h.events.Emit(Event{Type: EventCommandReceived, Data: CommandEvent{
		IEEE:          ieee,
		Source:        cmd.Source,
		Destination:   cmd.Destination,
		ClusterID:     cmd.ClusterID(),
		Cluster:       h.catalog.ClusterName(cmd.ClusterID()),
		CommandID:     cmd.CommandID(),
		Command:       cmd.Name(),
		Generic:       cmd.Generic(),
		Direction:     cmd.Direction().String(),
		TransactionID: cmd.TransactionID,
		Fields:        cmd.FieldMap(),
		Outcome:       outcome.String(),
		LQI:           msg.LastHopLqi,
		RSSI:          msg.LastHopRssi,
	}})
	if outcome == endpoint.Unclaimed {
		h.logger.Debug("routing miss", "endpoint", key, "cmd", cmd.Name())
		h.events.Emit(Event{Type: EventRoutingMiss, Data: CommandEvent{
			IEEE:      ieee,
			Source:    cmd.Source,
			ClusterID: cmd.ClusterID(),
			Cluster:   h.catalog.ClusterName(cmd.ClusterID()),
			CommandID: cmd.CommandID(),
			Command:   cmd.Name(),
			Outcome:   outcome.String(),
		}})
	}
}

func (h *Host) frameError(sender, cluster uint16, data []byte, err error) {
	h.logger.Warn("frame discarded", "sender", fmt.Sprintf("0x%04X", sender), "err", err)
	h.events.Emit(Event{Type: EventFrameError, Data: FrameErrorEvent{
		Sender:    sender,
		ClusterID: cluster,
		Error:     err.Error(),
		Frame:     fmt.Sprintf("% X", data),
	}})
}
