package zcl

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"zigbee-go-host/internal/codec"
)

// ErrUnknownField is returned by Set for a name the layout does not declare.
var ErrUnknownField = errors.New("zcl: unknown field")

// Address is the network address and endpoint a command came from or goes to.
type Address struct {
	Network  uint16 `json:"network"`
	Endpoint uint8  `json:"endpoint"`
}

func (a Address) String() string {
	return fmt.Sprintf("0x%04X/%d", a.Network, a.Endpoint)
}

// Command is a ZCL command bound to one cluster and command id. Its identity
// is fixed by NewCommand; payload fields start absent and are filled with Set
// or Deserialize.
type Command struct {
	clusterID uint16
	commandID uint8
	direction Direction
	generic   bool
	def       *CommandDef // nil for commands without a known layout

	values  []any
	present []bool
	raw     []byte

	// Addressing metadata, not part of the payload.
	Source                 Address
	Destination            Address
	ProfileID              uint16
	TransactionID          uint8
	ManufacturerCode       uint16 // 0 when not manufacturer specific
	DisableDefaultResponse bool
}

// NewCommand creates a command for the given layout. generic marks a
// profile-wide command; clusterID is still carried for addressing.
func NewCommand(clusterID uint16, def *CommandDef, generic bool) *Command {
	return newCommand(clusterID, def, generic, def.Direction)
}

// NewGenericCommand creates a foundation command travelling in dir.
// It returns nil for an unknown generic command id.
func NewGenericCommand(clusterID uint16, id uint8, dir Direction) *Command {
	def := foundationByID[id]
	if def == nil {
		return nil
	}
	return newCommand(clusterID, def, true, dir)
}

// NewRawCommand creates a command with no known layout. The payload is kept
// verbatim in Raw.
func NewRawCommand(clusterID uint16, commandID uint8, dir Direction, generic bool, payload []byte) *Command {
	return &Command{
		clusterID: clusterID,
		commandID: commandID,
		direction: dir,
		generic:   generic,
		raw:       payload,
	}
}

func newCommand(clusterID uint16, def *CommandDef, generic bool, dir Direction) *Command {
	return &Command{
		clusterID: clusterID,
		commandID: def.ID,
		direction: dir,
		generic:   generic,
		def:       def,
		values:    make([]any, len(def.Fields)),
		present:   make([]bool, len(def.Fields)),
	}
}

func (c *Command) ClusterID() uint16    { return c.clusterID }
func (c *Command) CommandID() uint8     { return c.commandID }
func (c *Command) Direction() Direction { return c.direction }
func (c *Command) Generic() bool        { return c.generic }
func (c *Command) Def() *CommandDef     { return c.def }

// Raw returns the undecoded payload of a command without a known layout.
func (c *Command) Raw() []byte { return c.raw }

// Name returns the layout name, or a placeholder for raw commands.
func (c *Command) Name() string {
	if c.def != nil {
		return c.def.Name
	}
	if c.generic {
		return fmt.Sprintf("Generic(0x%02X)", c.commandID)
	}
	return fmt.Sprintf("Command(0x%02X)", c.commandID)
}

// Set assigns a field value. The value is range-checked against the field's
// declared type immediately.
func (c *Command) Set(name string, v any) error {
	i := c.index(name)
	if i < 0 {
		return fmt.Errorf("%w %q in %s", ErrUnknownField, name, c.Name())
	}
	if err := c.def.Fields[i].Check(v); err != nil {
		return fmt.Errorf("zcl: %s.%s: %w", c.Name(), name, err)
	}
	c.values[i] = v
	c.present[i] = true
	return nil
}

// MustSet is Set for values known to be valid, such as constants.
func (c *Command) MustSet(name string, v any) *Command {
	if err := c.Set(name, v); err != nil {
		panic(err)
	}
	return c
}

// Clear marks a field absent again.
func (c *Command) Clear(name string) {
	if i := c.index(name); i >= 0 {
		c.values[i] = nil
		c.present[i] = false
	}
}

// Get returns a field value and whether it is present.
func (c *Command) Get(name string) (any, bool) {
	i := c.index(name)
	if i < 0 || !c.present[i] {
		return nil, false
	}
	return c.values[i], true
}

// Has reports whether a field is present.
func (c *Command) Has(name string) bool {
	_, ok := c.Get(name)
	return ok
}

func (c *Command) Uint8(name string) uint8   { return uint8(c.uint(name)) }
func (c *Command) Uint16(name string) uint16 { return uint16(c.uint(name)) }
func (c *Command) Uint32(name string) uint32 { return uint32(c.uint(name)) }
func (c *Command) Uint64(name string) uint64 { return c.uint(name) }

func (c *Command) Int32(name string) int32 {
	v, _ := c.Get(name)
	i, _ := codec.AsInt64(v)
	return int32(i)
}

func (c *Command) Bool(name string) bool {
	v, _ := c.Get(name)
	b, _ := codec.AsBool(v)
	return b
}

// Text returns a character or octet string field.
func (c *Command) Text(name string) string {
	v, _ := c.Get(name)
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	}
	return ""
}

func (c *Command) uint(name string) uint64 {
	v, _ := c.Get(name)
	u, _ := codec.AsUint64(v)
	return u
}

func (c *Command) index(name string) int {
	if c.def == nil {
		return -1
	}
	return c.def.FieldIndex(name)
}

// Field is a name and value pair in declaration order.
type Field struct {
	Name  string
	Value any
}

// Fields returns the present fields in declaration order.
func (c *Command) Fields() []Field {
	if c.def == nil {
		return nil
	}
	out := make([]Field, 0, len(c.values))
	for i, f := range c.def.Fields {
		if c.present[i] {
			out = append(out, Field{Name: f.Name, Value: c.values[i]})
		}
	}
	return out
}

// FieldMap returns the present fields keyed by name.
func (c *Command) FieldMap() map[string]any {
	m := make(map[string]any, len(c.values))
	for _, f := range c.Fields() {
		m[f.Name] = f.Value
	}
	return m
}

// Serialize writes the payload in declaration order. An absent field is
// written as its zero value, except that absent optional fields after the
// last present field are left out.
func (c *Command) Serialize(s *codec.Serializer) error {
	if c.def == nil {
		s.WriteBytes(c.raw)
		return nil
	}
	last := -1
	for i, f := range c.def.Fields {
		if c.present[i] || !f.Optional {
			last = i
		}
	}
	for i := 0; i <= last; i++ {
		f := &c.def.Fields[i]
		var err error
		if c.present[i] {
			err = f.encode(s, c.values[i])
		} else {
			err = f.encodeZero(s)
		}
		if err != nil {
			return fmt.Errorf("zcl: %s.%s: %w", c.Name(), f.Name, err)
		}
	}
	return nil
}

// Deserialize reads the payload in declaration order. Optional fields are read
// only while bytes remain.
func (c *Command) Deserialize(d *codec.Deserializer) error {
	if c.def == nil {
		c.raw = append([]byte(nil), d.Rest()...)
		return nil
	}
	for i := range c.def.Fields {
		f := &c.def.Fields[i]
		if f.Optional && d.IsEnd() {
			break
		}
		v, err := f.decode(d)
		if err != nil {
			return fmt.Errorf("zcl: %s.%s: %w", c.Name(), f.Name, err)
		}
		c.values[i] = v
		c.present[i] = true
	}
	return nil
}

// Header returns the frame header for this command.
func (c *Command) Header() Header {
	h := Header{
		FrameType:              FrameClusterSpecific,
		Direction:              c.direction,
		DisableDefaultResponse: c.DisableDefaultResponse,
		TransactionID:          c.TransactionID,
		CommandID:              c.commandID,
	}
	if c.generic {
		h.FrameType = FrameGeneric
	}
	if c.ManufacturerCode != 0 {
		h.ManufacturerSpecific = true
		h.ManufacturerCode = c.ManufacturerCode
	}
	return h
}

// Marshal returns the complete ZCL frame: header followed by payload.
func (c *Command) Marshal() ([]byte, error) {
	s := codec.NewSerializer()
	c.Header().Encode(s)
	if err := c.Serialize(s); err != nil {
		return nil, err
	}
	return s.Bytes(), nil
}

// UnmarshalFrame decodes a complete ZCL frame into c. A frame whose header
// names a different command is a format error.
func (c *Command) UnmarshalFrame(data []byte) error {
	d := codec.NewDeserializer(data)
	h, err := DecodeHeader(d)
	if err != nil {
		return err
	}
	if h.CommandID != c.commandID || h.Generic() != c.generic || h.Direction != c.direction {
		return &codec.FormatError{
			Type:   codec.TypeUint8,
			Reason: fmt.Sprintf("frame carries command 0x%02X %s (generic=%v), want %s 0x%02X %s", h.CommandID, h.Direction, h.Generic(), c.Name(), c.commandID, c.direction),
		}
	}
	c.applyHeader(h)
	return c.Deserialize(d)
}

func (c *Command) applyHeader(h Header) {
	c.TransactionID = h.TransactionID
	c.DisableDefaultResponse = h.DisableDefaultResponse
	if h.ManufacturerSpecific {
		c.ManufacturerCode = h.ManufacturerCode
	}
}

// Unmarshal decodes a complete ZCL frame received on clusterID. The layout is
// looked up in reg; frames without a known layout decode as raw commands.
func Unmarshal(reg *Registry, clusterID uint16, data []byte) (*Command, error) {
	d := codec.NewDeserializer(data)
	h, err := DecodeHeader(d)
	if err != nil {
		return nil, err
	}
	var def *CommandDef
	if h.Generic() {
		def = reg.GenericCommand(h.CommandID)
	} else {
		def = reg.ClusterCommand(clusterID, h.CommandID, h.Direction)
	}
	var cmd *Command
	if def == nil {
		cmd = NewRawCommand(clusterID, h.CommandID, h.Direction, h.Generic(), nil)
	} else {
		cmd = newCommand(clusterID, def, h.Generic(), h.Direction)
	}
	cmd.applyHeader(h)
	if err := cmd.Deserialize(d); err != nil {
		return nil, err
	}
	return cmd, nil
}

// Equal reports whether two commands have the same identity and payload.
// Addressing metadata is ignored.
func (c *Command) Equal(o *Command) bool {
	if c.clusterID != o.clusterID || c.commandID != o.commandID || c.generic != o.generic || c.direction != o.direction {
		return false
	}
	a, errA := c.payload()
	b, errB := o.payload()
	return errA == nil && errB == nil && bytes.Equal(a, b)
}

func (c *Command) payload() ([]byte, error) {
	s := codec.NewSerializer()
	err := c.Serialize(s)
	return s.Bytes(), err
}

// String returns a one-line diagnostic listing every field.
func (c *Command) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s[cluster=0x%04X cmd=0x%02X %s tsn=%d src=%s dst=%s",
		c.Name(), c.clusterID, c.commandID, c.direction, c.TransactionID, c.Source, c.Destination)
	if c.ManufacturerCode != 0 {
		fmt.Fprintf(&sb, " mfr=0x%04X", c.ManufacturerCode)
	}
	sb.WriteString("]")
	if c.def == nil {
		fmt.Fprintf(&sb, " raw=% X", c.raw)
		return sb.String()
	}
	for i, f := range c.def.Fields {
		if c.present[i] {
			fmt.Fprintf(&sb, " %s=%v", f.Name, c.values[i])
		} else {
			fmt.Fprintf(&sb, " %s=<absent>", f.Name)
		}
	}
	return sb.String()
}
