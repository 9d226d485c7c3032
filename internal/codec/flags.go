package codec

import (
	"fmt"
	"math/bits"
	"strings"
)

// Bits is the set of integer kinds a FlagSet can be backed by.
type Bits interface {
	~uint8 | ~uint16 | ~uint32
}

// FlagSet is a fixed-size set of bit flags packed into one integer.
// Flags are values of T with one or more bits set; membership requires all of
// a flag's bits.
type FlagSet[T Bits] struct {
	bits T
}

// FlagSetOf returns a set holding the given flags.
func FlagSetOf[T Bits](flags ...T) FlagSet[T] {
	var s FlagSet[T]
	for _, f := range flags {
		s.bits |= f
	}
	return s
}

// ParseFlagSet builds a set from a raw wire value, dropping bits outside known.
func ParseFlagSet[T Bits](raw, known T) FlagSet[T] {
	return FlagSet[T]{bits: raw & known}
}

// Has reports whether every bit of f is set.
func (s FlagSet[T]) Has(f T) bool {
	return f != 0 && s.bits&f == f
}

// Add returns a copy of s with f added.
func (s FlagSet[T]) Add(f T) FlagSet[T] {
	return FlagSet[T]{bits: s.bits | f}
}

// Remove returns a copy of s with f removed.
func (s FlagSet[T]) Remove(f T) FlagSet[T] {
	return FlagSet[T]{bits: s.bits &^ f}
}

// Union returns the flags present in either set.
func (s FlagSet[T]) Union(o FlagSet[T]) FlagSet[T] {
	return FlagSet[T]{bits: s.bits | o.bits}
}

// Difference returns the flags of s that are not in o.
func (s FlagSet[T]) Difference(o FlagSet[T]) FlagSet[T] {
	return FlagSet[T]{bits: s.bits &^ o.bits}
}

// Intersect returns the flags present in both sets.
func (s FlagSet[T]) Intersect(o FlagSet[T]) FlagSet[T] {
	return FlagSet[T]{bits: s.bits & o.bits}
}

// Raw returns the packed wire value.
func (s FlagSet[T]) Raw() T { return s.bits }

// Empty reports whether no bit is set.
func (s FlagSet[T]) Empty() bool { return s.bits == 0 }

// Len returns the number of set bits.
func (s FlagSet[T]) Len() int { return bits.OnesCount64(uint64(s.bits)) }

// Flags returns each set bit as its own flag, lowest bit first.
func (s FlagSet[T]) Flags() []T {
	out := make([]T, 0, s.Len())
	for v := uint64(s.bits); v != 0; v &= v - 1 {
		out = append(out, T(v&-v))
	}
	return out
}

func (s FlagSet[T]) String() string {
	flags := s.Flags()
	parts := make([]string, len(flags))
	for i, f := range flags {
		if st, ok := any(f).(fmt.Stringer); ok {
			parts[i] = st.String()
		} else {
			parts[i] = fmt.Sprintf("0x%X", uint64(f))
		}
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (s FlagSet[T]) rawBits() uint64 { return uint64(s.bits) }

// rawBitser lets Write accept any FlagSet without knowing T.
type rawBitser interface {
	rawBits() uint64
}

// flagWidth returns the byte width of T.
func flagWidth[T Bits]() int {
	var zero T
	switch max := uint64(^zero); {
	case max > 0xFFFF:
		return 4
	case max > 0xFF:
		return 2
	default:
		return 1
	}
}

// WriteFlags appends a flag set using the width of its backing integer.
func WriteFlags[T Bits](s *Serializer, set FlagSet[T]) {
	v := uint64(set.bits)
	switch flagWidth[T]() {
	case 4:
		s.WriteUint32(uint32(v))
	case 2:
		s.WriteUint16(uint16(v))
	default:
		s.WriteUint8(uint8(v))
	}
}

// ReadFlags consumes a flag set, ignoring bits outside known.
func ReadFlags[T Bits](d *Deserializer, known T) (FlagSet[T], error) {
	var raw uint64
	var err error
	switch flagWidth[T]() {
	case 4:
		var v uint32
		v, err = d.ReadUint32()
		raw = uint64(v)
	case 2:
		var v uint16
		v, err = d.ReadUint16()
		raw = uint64(v)
	default:
		var v uint8
		v, err = d.ReadUint8()
		raw = uint64(v)
	}
	if err != nil {
		return FlagSet[T]{}, err
	}
	return ParseFlagSet(T(raw), known), nil
}
