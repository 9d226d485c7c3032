package host

import (
	"context"
	"fmt"
	"time"

	"zigbee-go-host/internal/codec"
	"zigbee-go-host/internal/ezsp"
	"zigbee-go-host/internal/transaction"
	"zigbee-go-host/internal/zcl"
)

// Prepare stamps cmd with the next transaction sequence number and fills in
// the profile and local source endpoint when unset. Matchers that compare
// transaction sequence numbers must be built after Prepare.
func (h *Host) Prepare(cmd *zcl.Command) *zcl.Command {
	h.seqMu.Lock()
	h.tsn++
	cmd.TransactionID = h.tsn
	h.seqMu.Unlock()
	if cmd.ProfileID == 0 {
		cmd.ProfileID = h.config.ProfileID
	}
	if cmd.Source.Endpoint == 0 {
		cmd.Source = zcl.Address{Network: 0x0000, Endpoint: h.config.LocalEndpoint}
	}
	return cmd
}

// SendCommand writes cmd to its destination as a unicast and waits for the
// co-processor to accept it. cmd is sent as is; see Prepare.
func (h *Host) SendCommand(ctx context.Context, cmd *zcl.Command) error {
	message, err := cmd.Marshal()
	if err != nil {
		return fmt.Errorf("host: encode %s: %w", cmd.Name(), err)
	}

	apsSeq, seq, wait, err := h.reserveSend()
	if err != nil {
		return err
	}
	defer func() {
		h.seqMu.Lock()
		delete(h.sendWait, seq)
		h.seqMu.Unlock()
	}()

	req := ezsp.SendUnicast{
		Type:               ezsp.OutgoingDirect,
		IndexOrDestination: cmd.Destination.Network,
		ApsFrame: ezsp.ApsFrame{
			ProfileID:           cmd.ProfileID,
			ClusterID:           cmd.ClusterID(),
			SourceEndpoint:      cmd.Source.Endpoint,
			DestinationEndpoint: cmd.Destination.Endpoint,
			Options:             ezsp.DefaultApsOptions,
			Sequence:            apsSeq,
		},
		MessageTag: apsSeq,
		Message:    message,
	}
	s := codec.NewSerializer()
	if err := req.Serialize(s); err != nil {
		return fmt.Errorf("host: encode %s: %w", cmd.Name(), err)
	}
	frame := ezsp.Frame{
		Header:  ezsp.Header{Sequence: seq, ID: ezsp.FrameSendUnicast},
		Payload: s.Bytes(),
	}

	h.logger.Debug("send", "dst", cmd.Destination, "cmd", cmd.Name(), "tsn", cmd.TransactionID, "seq", seq)
	if err := h.transport.Send(ctx, frame.Marshal()); err != nil {
		return fmt.Errorf("host: send %s: %w", cmd.Name(), err)
	}

	timer := time.NewTimer(h.config.SendTimeout)
	defer timer.Stop()
	select {
	case status := <-wait:
		if err := status.Err(); err != nil {
			return fmt.Errorf("host: send %s to %s: %w", cmd.Name(), cmd.Destination, err)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("host: send %s to %s: no response from co-processor", cmd.Name(), cmd.Destination)
	case <-ctx.Done():
		return ctx.Err()
	case <-h.ctx.Done():
		return transaction.ErrClosed
	}
}

// reserveSend allocates sequence numbers for an outgoing unicast. Frame
// sequence numbers still waiting for a send status are skipped.
func (h *Host) reserveSend() (apsSeq, seq uint8, wait chan ezsp.Status, err error) {
	h.seqMu.Lock()
	defer h.seqMu.Unlock()
	if len(h.sendWait) > 0xFF {
		return 0, 0, nil, ErrSendsBusy
	}
	h.frameSeq++
	for h.sendWait[h.frameSeq] != nil {
		h.frameSeq++
	}
	h.apsSeq++
	wait = make(chan ezsp.Status, 1)
	h.sendWait[h.frameSeq] = wait
	return h.apsSeq, h.frameSeq, wait, nil
}

func (h *Host) completeSend(seq uint8, status ezsp.Status) {
	h.seqMu.Lock()
	wait := h.sendWait[seq]
	h.seqMu.Unlock()
	if wait == nil {
		h.logger.Debug("unsolicited send status", "seq", seq, "status", status)
		return
	}
	select {
	case wait <- status:
	default:
	}
}

// SendTransaction sends cmd and registers matcher for its response. cmd must
// already be prepared.
func (h *Host) SendTransaction(ctx context.Context, cmd *zcl.Command, matcher transaction.Matcher) (*transaction.Record, error) {
	return h.tx.SendTransaction(ctx, cmd, matcher)
}

// Request prepares and sends cmd, then waits for the response. A nil matcher
// waits for the default response to cmd.
func (h *Host) Request(ctx context.Context, cmd *zcl.Command, matcher transaction.Matcher) (*zcl.Command, error) {
	h.Prepare(cmd)
	if matcher == nil {
		matcher = transaction.MatchDefaultResponse(cmd)
	}
	rec, err := h.tx.SendTransaction(ctx, cmd, matcher)
	if err != nil {
		return nil, err
	}
	return rec.Wait(ctx)
}

// ReadAttributes reads attributes from a remote server cluster and returns
// the per-attribute records of the response.
func (h *Host) ReadAttributes(ctx context.Context, dst zcl.Address, cluster uint16, ids ...uint16) ([]zcl.ReadAttributeStatus, error) {
	cmd := zcl.NewReadAttributes(cluster, ids...)
	cmd.Destination = dst
	h.Prepare(cmd)
	matcher := transaction.MatchResponse(cmd, zcl.FoundationReadAttributesResponse, true).OrDefaultResponse()
	rec, err := h.tx.SendTransaction(ctx, cmd, matcher)
	if err != nil {
		return nil, err
	}
	resp, err := rec.Wait(ctx)
	if err != nil {
		return nil, err
	}
	if resp.CommandID() == zcl.FoundationDefaultResponse {
		return nil, fmt.Errorf("host: read attributes from %s: %s", dst, zcl.Status(resp.Uint8("statusCode")))
	}
	v, _ := resp.Get("records")
	records, _ := v.([]zcl.ReadAttributeStatus)
	return records, nil
}
