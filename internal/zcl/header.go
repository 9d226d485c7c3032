package zcl

import (
	"fmt"

	"zigbee-go-host/internal/codec"
)

// FrameType is the frame-type field of the ZCL frame control byte.
type FrameType uint8

const (
	FrameGeneric         FrameType = 0x00 // profile-wide command
	FrameClusterSpecific FrameType = 0x01
)

// Frame control bits
const (
	fcFrameTypeMask    = 0x03
	fcManufacturer     = 0x04
	fcDirection        = 0x08
	fcDisableDefResp   = 0x10
	fcReservedBitsMask = 0xE0
)

// Header is the ZCL frame header preceding every command payload.
type Header struct {
	FrameType              FrameType
	ManufacturerSpecific   bool
	ManufacturerCode       uint16
	Direction              Direction
	DisableDefaultResponse bool
	TransactionID          uint8
	CommandID              uint8
}

// Encode writes the header.
func (h Header) Encode(s *codec.Serializer) {
	fc := uint8(h.FrameType) & fcFrameTypeMask
	if h.ManufacturerSpecific {
		fc |= fcManufacturer
	}
	if h.Direction == ServerToClient {
		fc |= fcDirection
	}
	if h.DisableDefaultResponse {
		fc |= fcDisableDefResp
	}
	s.WriteUint8(fc)
	if h.ManufacturerSpecific {
		s.WriteUint16(h.ManufacturerCode)
	}
	s.WriteUint8(h.TransactionID)
	s.WriteUint8(h.CommandID)
}

// DecodeHeader reads a ZCL frame header. Reserved frame types are rejected;
// reserved frame control bits are ignored.
func DecodeHeader(d *codec.Deserializer) (Header, error) {
	var h Header
	fc, err := d.ReadBitmap(codec.TypeBitmap8)
	if err != nil {
		return h, fmt.Errorf("zcl: frame control: %w", err)
	}
	h.FrameType = FrameType(fc & fcFrameTypeMask)
	if h.FrameType > FrameClusterSpecific {
		return h, &codec.FormatError{Type: codec.TypeBitmap8, Reason: fmt.Sprintf("reserved frame type %d", h.FrameType)}
	}
	h.ManufacturerSpecific = fc&fcManufacturer != 0
	if fc&fcDirection != 0 {
		h.Direction = ServerToClient
	}
	h.DisableDefaultResponse = fc&fcDisableDefResp != 0
	if h.ManufacturerSpecific {
		if h.ManufacturerCode, err = d.ReadUint16(); err != nil {
			return h, fmt.Errorf("zcl: manufacturer code: %w", err)
		}
	}
	if h.TransactionID, err = d.ReadUint8(); err != nil {
		return h, fmt.Errorf("zcl: transaction id: %w", err)
	}
	if h.CommandID, err = d.ReadUint8(); err != nil {
		return h, fmt.Errorf("zcl: command id: %w", err)
	}
	return h, nil
}

// Generic reports whether the header carries a profile-wide command.
func (h Header) Generic() bool { return h.FrameType == FrameGeneric }
