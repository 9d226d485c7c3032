package transport

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// Low-level framing: sig(2) + size(2) + type(1) + flags(1) + crc8(1), then a
// body of crc16(2) + payload. size counts itself, type, flags and crc8 plus
// the body.
const (
	sig0         = 0xDE
	sig1         = 0xAD
	headerSize   = 7
	bodyCRCSize  = 2
	frameType    = 0x06
	maxFrameSize = 0xFFFF
)

// Flag bits.
const (
	flagACK       = 0x01
	flagRetrans   = 0x02
	flagSeqMask   = 0x0C
	flagSeqShift  = 2
	flagAckMask   = 0x30
	flagAckShift  = 4
	flagFirstFrag = 0x40
	flagLastFrag  = 0x80
)

type frame struct {
	flags   uint8
	payload []byte
}

func (f frame) isACK() bool { return f.flags&flagACK != 0 }
func (f frame) seq() uint8 { return (f.flags >> flagSeqShift) & 0x03 }
func (f frame) ackSeq() uint8 { return (f.flags >> flagAckShift) & 0x03 }

// CRC-8/KOOP: reflected poly 0xB2, init 0xFF, xorout 0xFF.
var crc8Table [256]uint8

// CRC-16 reflected poly 0x8408, init 0x0000.
var crc16Table [256]uint16

func init() {
	for i := 0; i < 256; i++ {
		c8 := uint8(i)
		c16 := uint16(i)
		for bit := 0; bit < 8; bit++ {
			if c8&1 != 0 {
				c8 = (c8 >> 1) ^ 0xB2
			} else {
				c8 >>= 1
			}
			if c16&1 != 0 {
				c16 = (c16 >> 1) ^ 0x8408
			} else {
				c16 >>= 1
			}
		}
		crc8Table[i] = c8
		crc16Table[i] = c16
	}
}

func crc8(data []byte) uint8 {
	crc := uint8(0xFF)
	for _, b := range data {
		crc = crc8Table[crc^b]
	}
	return crc ^ 0xFF
}

func crc16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc = (crc >> 8) ^ crc16Table[(crc^uint16(b))&0xFF]
	}
	return crc
}

// encodeData wraps payload in a data frame with the 2-bit sequence seq.
func encodeData(seq uint8, payload []byte, retransmit bool) ([]byte, error) {
	size := 5 + bodyCRCSize + len(payload)
	if size > maxFrameSize {
		return nil, fmt.Errorf("transport: payload of %d bytes does not fit a frame", len(payload))
	}
	flags := uint8(flagFirstFrag|flagLastFrag) | (seq<<flagSeqShift)&flagSeqMask
	if retransmit {
		flags |= flagRetrans
	}
	out := make([]byte, 2+size)
	out[0], out[1] = sig0, sig1
	binary.LittleEndian.PutUint16(out[2:4], uint16(size))
	out[4] = frameType
	out[5] = flags
	out[6] = crc8(out[2:6])
	binary.LittleEndian.PutUint16(out[7:9], crc16(payload))
	copy(out[9:], payload)
	return out, nil
}

// encodeACK builds a bodyless acknowledgement of seq.
func encodeACK(seq uint8) []byte {
	out := make([]byte, headerSize)
	out[0], out[1] = sig0, sig1
	binary.LittleEndian.PutUint16(out[2:4], 5)
	out[4] = frameType
	out[5] = flagACK | (seq<<flagAckShift)&flagAckMask
	out[6] = crc8(out[2:6])
	return out
}

// decodeFrame checks and unwraps one complete frame.
func decodeFrame(data []byte) (frame, error) {
	if len(data) < headerSize {
		return frame{}, fmt.Errorf("transport: frame too short: %d bytes", len(data))
	}
	if data[0] != sig0 || data[1] != sig1 {
		return frame{}, fmt.Errorf("transport: bad signature 0x%02X%02X", data[0], data[1])
	}
	if got := crc8(data[2:6]); got != data[6] {
		return frame{}, fmt.Errorf("transport: header crc 0x%02X, want 0x%02X", data[6], got)
	}
	if data[4] != frameType {
		return frame{}, fmt.Errorf("transport: unexpected frame type 0x%02X", data[4])
	}
	size := int(binary.LittleEndian.Uint16(data[2:4]))
	if size+2 > len(data) {
		return frame{}, fmt.Errorf("transport: frame truncated: need %d, have %d", size+2, len(data))
	}
	f := frame{flags: data[5]}
	if f.isACK() {
		return f, nil
	}
	body := data[headerSize : 2+size]
	if len(body) < bodyCRCSize {
		return frame{}, fmt.Errorf("transport: body too short for crc: %d bytes", len(body))
	}
	want := binary.LittleEndian.Uint16(body[:2])
	if got := crc16(body[2:]); got != want {
		return frame{}, fmt.Errorf("transport: body crc 0x%04X, want 0x%04X", want, got)
	}
	f.payload = append([]byte(nil), body[2:]...)
	return f, nil
}

// readFrame reads the next raw frame, skipping bytes until a signature.
func readFrame(r *bufio.Reader) ([]byte, error) {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b != sig0 {
			continue
		}
		next, err := r.Peek(1)
		if err != nil {
			return nil, err
		}
		if next[0] != sig1 {
			continue
		}
		_, _ = r.ReadByte()

		var hdr [5]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return nil, err
		}
		size := int(binary.LittleEndian.Uint16(hdr[0:2]))
		if size < 5 {
			continue
		}
		out := make([]byte, 2+size)
		out[0], out[1] = sig0, sig1
		copy(out[2:], hdr[:])
		if _, err := io.ReadFull(r, out[headerSize:]); err != nil {
			return nil, err
		}
		return out, nil
	}
}
