package zcl

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"zigbee-go-host/internal/codec"
)

func timedOffDef() *CommandDef {
	return &testOnOff.Commands[2]
}

func TestHeaderEncodeDecode(t *testing.T) {
	tests := []struct {
		name string
		h    Header
		wire []byte
	}{
		{"cluster specific", Header{FrameType: FrameClusterSpecific, TransactionID: 5, CommandID: 0x01}, []byte{0x01, 0x05, 0x01}},
		{"generic from server", Header{FrameType: FrameGeneric, Direction: ServerToClient, DisableDefaultResponse: true, TransactionID: 9, CommandID: 0x0A}, []byte{0x18, 0x09, 0x0A}},
		{"manufacturer", Header{FrameType: FrameClusterSpecific, ManufacturerSpecific: true, ManufacturerCode: 0x115F, TransactionID: 1, CommandID: 2}, []byte{0x05, 0x5F, 0x11, 0x01, 0x02}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := codec.NewSerializer()
			tt.h.Encode(s)
			if !bytes.Equal(s.Bytes(), tt.wire) {
				t.Fatalf("encoded % X, want % X", s.Bytes(), tt.wire)
			}
			got, err := DecodeHeader(codec.NewDeserializer(tt.wire))
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.h {
				t.Errorf("got %+v, want %+v", got, tt.h)
			}
		})
	}
}

func TestHeaderRejectsReservedFrameType(t *testing.T) {
	_, err := DecodeHeader(codec.NewDeserializer([]byte{0x02, 0x00, 0x00}))
	if !errors.Is(err, codec.ErrFormat) {
		t.Errorf("err = %v, want ErrFormat", err)
	}
	_, err = DecodeHeader(codec.NewDeserializer([]byte{0x01, 0x00}))
	if !errors.Is(err, codec.ErrFormat) {
		t.Errorf("truncated: err = %v, want ErrFormat", err)
	}
}

func TestCommandSetRangeChecked(t *testing.T) {
	cmd := NewCommand(0x0006, timedOffDef(), false)
	if err := cmd.Set("onTime", 0x10000); !errors.Is(err, codec.ErrRange) {
		t.Errorf("onTime overflow: err = %v, want ErrRange", err)
	}
	if cmd.Has("onTime") {
		t.Error("rejected value must not be stored")
	}
	if err := cmd.Set("colour", 1); !errors.Is(err, ErrUnknownField) {
		t.Errorf("unknown field: err = %v", err)
	}
	if err := cmd.Set("onTime", 600); err != nil {
		t.Fatal(err)
	}
	if cmd.Uint16("onTime") != 600 {
		t.Errorf("onTime = %d", cmd.Uint16("onTime"))
	}
}

func TestFixedArrayAcceptsTypedSlices(t *testing.T) {
	bytesField := FieldDef{Name: "levels", Type: codec.TypeUint8, Array: codec.Fixed, Count: 3}
	for _, v := range []any{[]int{1, 2, 3}, []int16{1, 2, 3}, []uint64{1, 2, 3}, []any{1, 2, 3}} {
		if err := bytesField.Check(v); err != nil {
			t.Errorf("%T: %v", v, err)
		}
	}
	if err := bytesField.Check([]int{1, 2}); !errors.Is(err, codec.ErrRange) {
		t.Errorf("short slice: err = %v, want ErrRange", err)
	}
	flags := FieldDef{Name: "flags", Type: codec.TypeBool, Array: codec.Fixed, Count: 2}
	if err := flags.Check([]bool{true, false}); err != nil {
		t.Errorf("[]bool: %v", err)
	}
	addrs := FieldDef{Name: "addrs", Type: codec.TypeEUI64, Array: codec.Fixed, Count: 1}
	if err := addrs.Check([]codec.IEEEAddress{{1, 2, 3, 4, 5, 6, 7, 8}}); err != nil {
		t.Errorf("[]IEEEAddress: %v", err)
	}
}

func TestCommandSerializeDeclarationOrder(t *testing.T) {
	cmd := NewCommand(0x0006, timedOffDef(), false)
	// Set out of order; the wire follows the layout.
	cmd.MustSet("offWaitTime", uint16(0x0304))
	cmd.MustSet("onOffControl", uint8(0x01))
	cmd.MustSet("onTime", uint16(0x0102))

	s := codec.NewSerializer()
	if err := cmd.Serialize(s); err != nil {
		t.Fatal(err)
	}
	want := []byte{0x01, 0x02, 0x01, 0x04, 0x03}
	if !bytes.Equal(s.Bytes(), want) {
		t.Errorf("payload % X, want % X", s.Bytes(), want)
	}

	names := []string{}
	for _, f := range cmd.Fields() {
		names = append(names, f.Name)
	}
	if strings.Join(names, ",") != "onOffControl,onTime,offWaitTime" {
		t.Errorf("Fields order = %v", names)
	}
}

func TestCommandAbsentFieldsWriteZero(t *testing.T) {
	cmd := NewCommand(0x0006, timedOffDef(), false)
	cmd.MustSet("onTime", uint16(5))
	s := codec.NewSerializer()
	if err := cmd.Serialize(s); err != nil {
		t.Fatal(err)
	}
	if want := []byte{0x00, 0x05, 0x00, 0x00, 0x00}; !bytes.Equal(s.Bytes(), want) {
		t.Errorf("payload % X, want % X", s.Bytes(), want)
	}
}

func TestCommandOptionalTrailingFields(t *testing.T) {
	def := &CommandDef{ID: 0x00, Name: "MoveToLevel", Fields: []FieldDef{
		{Name: "level", Type: codec.TypeUint8},
		{Name: "transitionTime", Type: codec.TypeUint16},
		{Name: "optionsMask", Type: codec.TypeBitmap8, Optional: true},
		{Name: "optionsOverride", Type: codec.TypeBitmap8, Optional: true},
	}}
	cmd := NewCommand(0x0008, def, false)
	cmd.MustSet("level", uint8(200))
	cmd.MustSet("transitionTime", uint16(10))
	s := codec.NewSerializer()
	if err := cmd.Serialize(s); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 3 {
		t.Fatalf("absent trailing optionals should be omitted, got % X", s.Bytes())
	}

	back := NewCommand(0x0008, def, false)
	if err := back.Deserialize(codec.NewDeserializer(s.Bytes())); err != nil {
		t.Fatal(err)
	}
	if back.Has("optionsMask") {
		t.Error("optionsMask should stay absent")
	}

	cmd.MustSet("optionsOverride", uint8(1))
	s.Reset()
	if err := cmd.Serialize(s); err != nil {
		t.Fatal(err)
	}
	if want := []byte{200, 10, 0, 0, 1}; !bytes.Equal(s.Bytes(), want) {
		t.Errorf("payload % X, want % X", s.Bytes(), want)
	}
}

func TestCommandMarshalRoundTrip(t *testing.T) {
	r := NewRegistry(newTestLogger())
	r.Register(testOnOff)

	cmd := NewCommand(0x0006, timedOffDef(), false)
	cmd.TransactionID = 0x21
	cmd.MustSet("onOffControl", uint8(0))
	cmd.MustSet("onTime", uint16(300))
	cmd.MustSet("offWaitTime", uint16(0))
	data, err := cmd.Marshal()
	if err != nil {
		t.Fatal(err)
	}

	got, err := Unmarshal(r, 0x0006, data)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name() != "OnWithTimedOff" || got.TransactionID != 0x21 {
		t.Errorf("decoded %s", got)
	}
	if !got.Equal(cmd) {
		t.Errorf("round trip mismatch:\n got %s\nwant %s", got, cmd)
	}
	again, err := got.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(again, data) {
		t.Errorf("re-encoded % X, want % X", again, data)
	}
}

func TestUnmarshalFrameRejectsOtherCommand(t *testing.T) {
	on := NewCommand(0x0006, &testOnOff.Commands[1], false)
	err := on.UnmarshalFrame([]byte{0x01, 0x00, 0x00})
	if !errors.Is(err, codec.ErrFormat) {
		t.Errorf("err = %v, want ErrFormat", err)
	}
	if on.CommandID() != 0x01 {
		t.Error("identity changed")
	}
}

func TestUnmarshalUnknownCommandIsRaw(t *testing.T) {
	r := NewRegistry(newTestLogger())
	cmd, err := Unmarshal(r, 0xFC00, []byte{0x01, 0x07, 0x33, 0xAA, 0xBB})
	if err != nil {
		t.Fatal(err)
	}
	if cmd.Def() != nil || cmd.CommandID() != 0x33 || !bytes.Equal(cmd.Raw(), []byte{0xAA, 0xBB}) {
		t.Errorf("got %s", cmd)
	}
	data, err := cmd.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, []byte{0x01, 0x07, 0x33, 0xAA, 0xBB}) {
		t.Errorf("raw re-encode % X", data)
	}
}

func TestUnmarshalTruncatedPayload(t *testing.T) {
	r := NewRegistry(newTestLogger())
	r.Register(testOnOff)
	_, err := Unmarshal(r, 0x0006, []byte{0x01, 0x00, 0x42, 0x00, 0x01})
	if !errors.Is(err, codec.ErrFormat) {
		t.Errorf("err = %v, want ErrFormat", err)
	}
}

func TestReadAttributesResponse(t *testing.T) {
	r := NewRegistry(newTestLogger())
	wire := []byte{
		0x18, 0x04, 0x01, // generic, server to client, tsn 4, cmd 0x01
		0x00, 0x00, 0x00, 0x10, 0x01, // OnOff: success, bool true
		0x05, 0x00, 0x86, // ModelIdentifier: unsupported attribute
		0x06, 0x00, 0x00, 0x42, 0x03, 'a', 'b', 'c', // DateCode: "abc"
	}
	cmd, err := Unmarshal(r, 0x0000, wire)
	if err != nil {
		t.Fatal(err)
	}
	v, ok := cmd.Get("records")
	if !ok {
		t.Fatal("records missing")
	}
	want := []ReadAttributeStatus{
		{ID: 0x0000, Status: StatusSuccess, Type: codec.TypeBool, Value: true},
		{ID: 0x0005, Status: StatusUnsupportedAttr},
		{ID: 0x0006, Status: StatusSuccess, Type: codec.TypeCharStr, Value: "abc"},
	}
	if !reflect.DeepEqual(v, want) {
		t.Errorf("records = %+v", v)
	}
	data, err := cmd.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, wire) {
		t.Errorf("re-encoded % X\nwant         % X", data, wire)
	}
}

func TestWriteAttributesResponseAllSuccess(t *testing.T) {
	cmd := NewGenericCommand(0x0006, FoundationWriteAttributesResp, ServerToClient)
	cmd.MustSet("records", []WriteAttributeStatus{})
	s := codec.NewSerializer()
	if err := cmd.Serialize(s); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(s.Bytes(), []byte{0x00}) {
		t.Errorf("all-success payload % X, want 00", s.Bytes())
	}

	fail := NewGenericCommand(0x0006, FoundationWriteAttributesResp, ServerToClient)
	if err := fail.Deserialize(codec.NewDeserializer([]byte{0x88, 0x00, 0x40})); err != nil {
		t.Fatal(err)
	}
	v, _ := fail.Get("records")
	recs := v.([]WriteAttributeStatus)
	if len(recs) != 1 || recs[0].Status != StatusReadOnly || recs[0].ID != 0x4000 {
		t.Errorf("records = %+v", recs)
	}
}

func TestConfigureReportingRecords(t *testing.T) {
	cmd := NewGenericCommand(0x0402, FoundationConfigReporting, ClientToServer)
	cmd.MustSet("records", []ReportingConfig{
		{Direction: ReportingSend, ID: 0x0000, Type: codec.TypeInt16, MinInterval: 10, MaxInterval: 300, ReportableChange: int16(50)},
		{Direction: ReportingSend, ID: 0x0001, Type: codec.TypeBool, MinInterval: 0, MaxInterval: 60},
		{Direction: ReportingReceive, ID: 0x0002, Timeout: 120},
	})
	s := codec.NewSerializer()
	if err := cmd.Serialize(s); err != nil {
		t.Fatal(err)
	}
	want := []byte{
		0x00, 0x00, 0x00, 0x29, 0x0A, 0x00, 0x2C, 0x01, 0x32, 0x00,
		0x00, 0x01, 0x00, 0x10, 0x00, 0x00, 0x3C, 0x00,
		0x01, 0x02, 0x00, 0x78, 0x00,
	}
	if !bytes.Equal(s.Bytes(), want) {
		t.Fatalf("payload % X\nwant    % X", s.Bytes(), want)
	}
	back := NewGenericCommand(0x0402, FoundationConfigReporting, ClientToServer)
	if err := back.Deserialize(codec.NewDeserializer(want)); err != nil {
		t.Fatal(err)
	}
	if !back.Equal(cmd) {
		t.Errorf("round trip mismatch: %s", back)
	}
}

func TestDefaultResponse(t *testing.T) {
	req := NewCommand(0x0006, &testOnOff.Commands[1], false)
	req.TransactionID = 7
	req.Source = Address{Network: 0x0000, Endpoint: 1}
	req.Destination = Address{Network: 0x1234, Endpoint: 11}

	rsp := NewDefaultResponse(req, StatusSuccess)
	if !rsp.Generic() || rsp.CommandID() != FoundationDefaultResponse {
		t.Fatalf("got %s", rsp)
	}
	if rsp.Direction() != ServerToClient || rsp.TransactionID != 7 {
		t.Errorf("direction %s tsn %d", rsp.Direction(), rsp.TransactionID)
	}
	if rsp.Uint8("commandIdentifier") != 0x01 || Status(rsp.Uint8("statusCode")) != StatusSuccess {
		t.Errorf("fields: %s", rsp)
	}
	if rsp.Source != req.Destination {
		t.Errorf("source = %s", rsp.Source)
	}
}

func TestStatusString(t *testing.T) {
	if StatusUnsupportedAttr.String() != "UNSUPPORTED_ATTRIBUTE" {
		t.Errorf("got %s", StatusUnsupportedAttr)
	}
	if Status(0x7F).String() != "UNKNOWN(0x7F)" {
		t.Errorf("got %s", Status(0x7F))
	}
}

func TestCommandStringListsFields(t *testing.T) {
	cmd := NewCommand(0x0006, timedOffDef(), false)
	cmd.MustSet("onTime", uint16(30))
	s := cmd.String()
	for _, want := range []string{"OnWithTimedOff", "cluster=0x0006", "onTime=30", "offWaitTime=<absent>"} {
		if !strings.Contains(s, want) {
			t.Errorf("%q missing %q", s, want)
		}
	}
}
