package ezsp

import (
	"fmt"

	"zigbee-go-host/internal/codec"
)

// Frame ids of the commands and callbacks this host uses.
const (
	FrameSendUnicast            uint16 = 0x0034
	FrameMessageSentHandler     uint16 = 0x003F
	FrameIncomingMessageHandler uint16 = 0x0045
)

// ControlResponse marks a frame sent by the co-processor.
const ControlResponse uint16 = 0x0080

// Header prefixes every frame exchanged with the co-processor.
type Header struct {
	Sequence uint8
	Control  uint16
	ID       uint16
}

func (h *Header) Serialize(s *codec.Serializer) {
	s.WriteUint8(h.Sequence)
	s.WriteUint16(h.Control)
	s.WriteUint16(h.ID)
}

func (h *Header) Deserialize(d *codec.Deserializer) error {
	var err error
	if h.Sequence, err = d.ReadUint8(); err != nil {
		return fmt.Errorf("ezsp: header sequence: %w", err)
	}
	if h.Control, err = d.ReadUint16(); err != nil {
		return fmt.Errorf("ezsp: header control: %w", err)
	}
	if h.ID, err = d.ReadUint16(); err != nil {
		return fmt.Errorf("ezsp: header frame id: %w", err)
	}
	return nil
}

// IsResponse reports whether the frame came from the co-processor.
func (h Header) IsResponse() bool { return h.Control&ControlResponse != 0 }

// Frame is a header plus the encoded parameters that follow it.
type Frame struct {
	Header
	Payload []byte
}

// Marshal encodes a frame for the transport.
func (f *Frame) Marshal() []byte {
	s := codec.NewSerializer()
	f.Header.Serialize(s)
	s.WriteBytes(f.Payload)
	return s.Bytes()
}

// ParseFrame splits raw transport bytes into header and parameters.
func ParseFrame(data []byte) (*Frame, error) {
	d := codec.NewDeserializer(data)
	var f Frame
	if err := f.Header.Deserialize(d); err != nil {
		return nil, err
	}
	f.Payload = d.Rest()
	return &f, nil
}

// IncomingMessage is the incomingMessageHandler callback.
type IncomingMessage struct {
	Type         IncomingMessageType
	ApsFrame     ApsFrame
	LastHopLqi   uint8
	LastHopRssi  int8
	Sender       uint16
	BindingIndex uint8
	AddressIndex uint8
	Message      []byte
}

func (m *IncomingMessage) Serialize(s *codec.Serializer) error {
	s.WriteEnum8(uint8(m.Type))
	m.ApsFrame.Serialize(s)
	s.WriteUint8(m.LastHopLqi)
	s.WriteInt8(m.LastHopRssi)
	s.WriteUint16(m.Sender)
	s.WriteUint8(m.BindingIndex)
	s.WriteUint8(m.AddressIndex)
	if err := s.WriteOctets(m.Message); err != nil {
		return fmt.Errorf("ezsp: incoming message: %w", err)
	}
	return nil
}

// Deserialize reads the callback parameters. An unknown message type is kept
// raw and recorded on d.
func (m *IncomingMessage) Deserialize(d *codec.Deserializer) error {
	t, err := d.ReadEnum8(func(v uint8) bool { return IncomingMessageType(v).Known() })
	if err != nil {
		return fmt.Errorf("ezsp: incoming type: %w", err)
	}
	m.Type = IncomingMessageType(t)
	if err := m.ApsFrame.Deserialize(d); err != nil {
		return err
	}
	if m.LastHopLqi, err = d.ReadUint8(); err != nil {
		return fmt.Errorf("ezsp: incoming lqi: %w", err)
	}
	if m.LastHopRssi, err = d.ReadInt8(); err != nil {
		return fmt.Errorf("ezsp: incoming rssi: %w", err)
	}
	if m.Sender, err = d.ReadUint16(); err != nil {
		return fmt.Errorf("ezsp: incoming sender: %w", err)
	}
	if m.BindingIndex, err = d.ReadUint8(); err != nil {
		return fmt.Errorf("ezsp: incoming binding index: %w", err)
	}
	if m.AddressIndex, err = d.ReadUint8(); err != nil {
		return fmt.Errorf("ezsp: incoming address index: %w", err)
	}
	if m.Message, err = d.ReadOctets(); err != nil {
		return fmt.Errorf("ezsp: incoming message: %w", err)
	}
	return nil
}

func (m IncomingMessage) String() string {
	return fmt.Sprintf("IncomingMessage [type=%s, apsFrame=%s, lastHopLqi=%d, lastHopRssi=%d, sender=0x%04X, bindingIndex=%d, addressIndex=%d, message=% X]",
		m.Type, m.ApsFrame, m.LastHopLqi, m.LastHopRssi, m.Sender, m.BindingIndex, m.AddressIndex, m.Message)
}

// SendUnicast is the sendUnicast request.
type SendUnicast struct {
	Type               OutgoingMessageType
	IndexOrDestination uint16
	ApsFrame           ApsFrame
	MessageTag         uint8
	Message            []byte
}

func (m *SendUnicast) Serialize(s *codec.Serializer) error {
	s.WriteEnum8(uint8(m.Type))
	s.WriteUint16(m.IndexOrDestination)
	m.ApsFrame.Serialize(s)
	s.WriteUint8(m.MessageTag)
	if err := s.WriteOctets(m.Message); err != nil {
		return fmt.Errorf("ezsp: unicast message: %w", err)
	}
	return nil
}

func (m *SendUnicast) Deserialize(d *codec.Deserializer) error {
	t, err := d.ReadEnum8(func(v uint8) bool { return OutgoingMessageType(v).Known() })
	if err != nil {
		return fmt.Errorf("ezsp: unicast type: %w", err)
	}
	m.Type = OutgoingMessageType(t)
	if m.IndexOrDestination, err = d.ReadUint16(); err != nil {
		return fmt.Errorf("ezsp: unicast destination: %w", err)
	}
	if err := m.ApsFrame.Deserialize(d); err != nil {
		return err
	}
	if m.MessageTag, err = d.ReadUint8(); err != nil {
		return fmt.Errorf("ezsp: unicast tag: %w", err)
	}
	if m.Message, err = d.ReadOctets(); err != nil {
		return fmt.Errorf("ezsp: unicast message: %w", err)
	}
	return nil
}

func (m SendUnicast) String() string {
	return fmt.Sprintf("SendUnicast [type=%s, indexOrDestination=0x%04X, apsFrame=%s, messageTag=%d, message=% X]",
		m.Type, m.IndexOrDestination, m.ApsFrame, m.MessageTag, m.Message)
}

// SendUnicastResponse carries the outcome of a sendUnicast request.
type SendUnicastResponse struct {
	Status   Status
	Sequence uint8
}

func (m *SendUnicastResponse) Serialize(s *codec.Serializer) {
	s.WriteEnum8(uint8(m.Status))
	s.WriteUint8(m.Sequence)
}

func (m *SendUnicastResponse) Deserialize(d *codec.Deserializer) error {
	st, err := d.ReadEnum8(func(v uint8) bool { return Status(v).Known() })
	if err != nil {
		return fmt.Errorf("ezsp: unicast status: %w", err)
	}
	m.Status = Status(st)
	if m.Sequence, err = d.ReadUint8(); err != nil {
		return fmt.Errorf("ezsp: unicast sequence: %w", err)
	}
	return nil
}

func (m SendUnicastResponse) String() string {
	return fmt.Sprintf("SendUnicastResponse [status=%s, sequence=%d]", m.Status, m.Sequence)
}

// MessageSent is the messageSentHandler callback reporting delivery.
type MessageSent struct {
	Type               OutgoingMessageType
	IndexOrDestination uint16
	ApsFrame           ApsFrame
	MessageTag         uint8
	Status             Status
	Message            []byte
}

func (m *MessageSent) Serialize(s *codec.Serializer) error {
	s.WriteEnum8(uint8(m.Type))
	s.WriteUint16(m.IndexOrDestination)
	m.ApsFrame.Serialize(s)
	s.WriteUint8(m.MessageTag)
	s.WriteEnum8(uint8(m.Status))
	if err := s.WriteOctets(m.Message); err != nil {
		return fmt.Errorf("ezsp: sent message: %w", err)
	}
	return nil
}

func (m *MessageSent) Deserialize(d *codec.Deserializer) error {
	t, err := d.ReadEnum8(func(v uint8) bool { return OutgoingMessageType(v).Known() })
	if err != nil {
		return fmt.Errorf("ezsp: sent type: %w", err)
	}
	m.Type = OutgoingMessageType(t)
	if m.IndexOrDestination, err = d.ReadUint16(); err != nil {
		return fmt.Errorf("ezsp: sent destination: %w", err)
	}
	if err := m.ApsFrame.Deserialize(d); err != nil {
		return err
	}
	if m.MessageTag, err = d.ReadUint8(); err != nil {
		return fmt.Errorf("ezsp: sent tag: %w", err)
	}
	st, err := d.ReadEnum8(func(v uint8) bool { return Status(v).Known() })
	if err != nil {
		return fmt.Errorf("ezsp: sent status: %w", err)
	}
	m.Status = Status(st)
	if m.Message, err = d.ReadOctets(); err != nil {
		return fmt.Errorf("ezsp: sent message: %w", err)
	}
	return nil
}

func (m MessageSent) String() string {
	return fmt.Sprintf("MessageSent [type=%s, indexOrDestination=0x%04X, apsFrame=%s, messageTag=%d, status=%s, message=% X]",
		m.Type, m.IndexOrDestination, m.ApsFrame, m.MessageTag, m.Status, m.Message)
}
