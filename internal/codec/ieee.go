package codec

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// IEEEAddress is a 64-bit extended address in wire byte order.
type IEEEAddress [8]byte

// ParseIEEE parses "DD:DD:DD:DD:DD:DD:DD:DD" or "DDDDDDDDDDDDDDDD".
func ParseIEEE(s string) (IEEEAddress, error) {
	var result IEEEAddress
	b, err := hex.DecodeString(strings.ReplaceAll(s, ":", ""))
	if err != nil {
		return result, fmt.Errorf("parse ieee address: %w", err)
	}
	if len(b) != 8 {
		return result, fmt.Errorf("ieee address must be 8 bytes, got %d", len(b))
	}
	copy(result[:], b)
	return result, nil
}

func (a IEEEAddress) String() string {
	return fmt.Sprintf("%X", a[:])
}

// IsZero reports whether the address is unset.
func (a IEEEAddress) IsZero() bool {
	return a == IEEEAddress{}
}
