package ezsp

import "fmt"

// Status is an EmberStatus code. Codes without a name are kept raw.
type Status uint8

const (
	StatusSuccess               Status = 0x00
	StatusErrFatal              Status = 0x01
	StatusBadArgument           Status = 0x02
	StatusNotFound              Status = 0x03
	StatusNoBuffers             Status = 0x18
	StatusSerialInvalidBaudRate Status = 0x20
	StatusSerialTxOverflow      Status = 0x22
	StatusMacNoData             Status = 0x31
	StatusMacNoAckReceived      Status = 0x40
	StatusMacIndirectTimeout    Status = 0x42
	StatusDeliveryFailed        Status = 0x66
	StatusInvalidCall           Status = 0x70
	StatusMessageTooLong        Status = 0x74
	StatusNetworkUp             Status = 0x90
	StatusNetworkDown           Status = 0x91
	StatusNotJoined             Status = 0x93
	StatusNetworkBusy           Status = 0xA1
	StatusIndexOutOfRange       Status = 0xB1
	StatusTableFull             Status = 0xB4
)

var statusNames = map[Status]string{
	StatusSuccess:               "SUCCESS",
	StatusErrFatal:              "ERR_FATAL",
	StatusBadArgument:           "BAD_ARGUMENT",
	StatusNotFound:              "NOT_FOUND",
	StatusNoBuffers:             "NO_BUFFERS",
	StatusSerialInvalidBaudRate: "SERIAL_INVALID_BAUD_RATE",
	StatusSerialTxOverflow:      "SERIAL_TX_OVERFLOW",
	StatusMacNoData:             "MAC_NO_DATA",
	StatusMacNoAckReceived:      "MAC_NO_ACK_RECEIVED",
	StatusMacIndirectTimeout:    "MAC_INDIRECT_TIMEOUT",
	StatusDeliveryFailed:        "DELIVERY_FAILED",
	StatusInvalidCall:           "INVALID_CALL",
	StatusMessageTooLong:        "MESSAGE_TOO_LONG",
	StatusNetworkUp:             "NETWORK_UP",
	StatusNetworkDown:           "NETWORK_DOWN",
	StatusNotJoined:             "NOT_JOINED",
	StatusNetworkBusy:           "NETWORK_BUSY",
	StatusIndexOutOfRange:       "INDEX_OUT_OF_RANGE",
	StatusTableFull:             "TABLE_FULL",
}

func (s Status) Known() bool {
	_, ok := statusNames[s]
	return ok
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(0x%02X)", uint8(s))
}

// Err returns nil for SUCCESS and a StatusError otherwise.
func (s Status) Err() error {
	if s == StatusSuccess {
		return nil
	}
	return &StatusError{Status: s}
}

// StatusError is a non-success status returned by the co-processor.
type StatusError struct {
	Status Status
}

func (e *StatusError) Error() string { return "ezsp: status " + e.Status.String() }

// IncomingMessageType describes how an incoming message was addressed.
type IncomingMessageType uint8

const (
	IncomingUnicast               IncomingMessageType = 0x00
	IncomingUnicastReply          IncomingMessageType = 0x01
	IncomingMulticast             IncomingMessageType = 0x02
	IncomingMulticastLoopback     IncomingMessageType = 0x03
	IncomingBroadcast             IncomingMessageType = 0x04
	IncomingBroadcastLoopback     IncomingMessageType = 0x05
	IncomingManyToOneRouteRequest IncomingMessageType = 0x06
)

var incomingNames = [...]string{
	"UNICAST", "UNICAST_REPLY", "MULTICAST", "MULTICAST_LOOPBACK",
	"BROADCAST", "BROADCAST_LOOPBACK", "MANY_TO_ONE_ROUTE_REQUEST",
}

func (t IncomingMessageType) Known() bool { return int(t) < len(incomingNames) }

func (t IncomingMessageType) String() string {
	if t.Known() {
		return incomingNames[t]
	}
	return fmt.Sprintf("UNKNOWN(0x%02X)", uint8(t))
}

// OutgoingMessageType selects how an outgoing unicast is addressed.
type OutgoingMessageType uint8

const (
	OutgoingDirect          OutgoingMessageType = 0x00
	OutgoingViaAddressTable OutgoingMessageType = 0x01
	OutgoingViaBinding      OutgoingMessageType = 0x02
	OutgoingMulticast       OutgoingMessageType = 0x03
	OutgoingBroadcast       OutgoingMessageType = 0x04
)

var outgoingNames = [...]string{"DIRECT", "VIA_ADDRESS_TABLE", "VIA_BINDING", "MULTICAST", "BROADCAST"}

func (t OutgoingMessageType) Known() bool { return int(t) < len(outgoingNames) }

func (t OutgoingMessageType) String() string {
	if t.Known() {
		return outgoingNames[t]
	}
	return fmt.Sprintf("UNKNOWN(0x%02X)", uint8(t))
}
