package zcl

import (
	"fmt"

	"zigbee-go-host/internal/codec"
)

// Foundation ZCL command IDs (global, not cluster-specific).
const (
	FoundationReadAttributes            uint8 = 0x00
	FoundationReadAttributesResponse    uint8 = 0x01
	FoundationWriteAttributes           uint8 = 0x02
	FoundationWriteAttributesUndivided  uint8 = 0x03
	FoundationWriteAttributesResp       uint8 = 0x04
	FoundationWriteAttributesNoResponse uint8 = 0x05
	FoundationConfigReporting           uint8 = 0x06
	FoundationConfigReportingResp       uint8 = 0x07
	FoundationReadReportingConfig       uint8 = 0x08
	FoundationReadReportingConfigResp   uint8 = 0x09
	FoundationReportAttributes          uint8 = 0x0A
	FoundationDefaultResponse           uint8 = 0x0B
	FoundationDiscoverAttributes        uint8 = 0x0C
	FoundationDiscoverAttributesResp    uint8 = 0x0D
)

// Status is a ZCL status code. Values without a name are kept as is.
type Status uint8

// ZCL status codes
const (
	StatusSuccess             Status = 0x00
	StatusFailure             Status = 0x01
	StatusNotAuthorized       Status = 0x7E
	StatusMalformedCommand    Status = 0x80
	StatusUnsupClusterCommand Status = 0x81
	StatusUnsupGeneralCommand Status = 0x82
	StatusInvalidField        Status = 0x85
	StatusUnsupportedAttr     Status = 0x86
	StatusInvalidValue        Status = 0x87
	StatusReadOnly            Status = 0x88
	StatusInsufficientSpace   Status = 0x89
	StatusNotFound            Status = 0x8B
	StatusUnreportable        Status = 0x8C
	StatusInvalidDataType     Status = 0x8D
	StatusWriteOnly           Status = 0x8F
	StatusTimeout             Status = 0x94
	StatusHardwareFailure     Status = 0xC0
)

var statusNames = map[Status]string{
	StatusSuccess:             "SUCCESS",
	StatusFailure:             "FAILURE",
	StatusNotAuthorized:       "NOT_AUTHORIZED",
	StatusMalformedCommand:    "MALFORMED_COMMAND",
	StatusUnsupClusterCommand: "UNSUP_CLUSTER_COMMAND",
	StatusUnsupGeneralCommand: "UNSUP_GENERAL_COMMAND",
	StatusInvalidField:        "INVALID_FIELD",
	StatusUnsupportedAttr:     "UNSUPPORTED_ATTRIBUTE",
	StatusInvalidValue:        "INVALID_VALUE",
	StatusReadOnly:            "READ_ONLY",
	StatusInsufficientSpace:   "INSUFFICIENT_SPACE",
	StatusNotFound:            "NOT_FOUND",
	StatusUnreportable:        "UNREPORTABLE_ATTRIBUTE",
	StatusInvalidDataType:     "INVALID_DATA_TYPE",
	StatusWriteOnly:           "WRITE_ONLY",
	StatusTimeout:             "TIMEOUT",
	StatusHardwareFailure:     "HARDWARE_FAILURE",
}

// Known reports whether s has a name.
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

func knownStatus(v uint8) bool { return Status(v).Known() }

// AttributeRecord is an attribute id with a typed value, as carried by
// write-attributes and report-attributes.
type AttributeRecord struct {
	ID    uint16
	Type  codec.DataType
	Value any
}

// ReadAttributeStatus is one entry of a read-attributes response. Type and
// Value are only meaningful on success.
type ReadAttributeStatus struct {
	ID     uint16
	Status Status
	Type   codec.DataType
	Value  any
}

// WriteAttributeStatus is one entry of a write-attributes response.
type WriteAttributeStatus struct {
	Status Status
	ID     uint16
}

// AttributeInfo is one entry of a discover-attributes response.
type AttributeInfo struct {
	ID   uint16
	Type codec.DataType
}

// Reporting directions
const (
	ReportingSend    uint8 = 0x00 // the receiver reports the attribute
	ReportingReceive uint8 = 0x01 // the receiver expects reports
)

// ReportingConfig is an attribute reporting configuration record.
// ReportableChange is only carried for analog types.
type ReportingConfig struct {
	Direction        uint8
	ID               uint16
	Type             codec.DataType
	MinInterval      uint16
	MaxInterval      uint16
	ReportableChange any
	Timeout          uint16
}

// ReportingConfigStatus is one entry of a configure-reporting response.
type ReportingConfigStatus struct {
	Status    Status
	Direction uint8
	ID        uint16
}

// ReportingConfigRecord identifies a configuration to read back.
type ReportingConfigRecord struct {
	Direction uint8
	ID        uint16
}

// ReportingConfigResponse is one entry of a read-reporting-configuration
// response.
type ReportingConfigResponse struct {
	Status Status
	ReportingConfig
}

// IsAnalog reports whether reports of t carry a reportable change.
func IsAnalog(t codec.DataType) bool {
	switch t {
	case codec.TypeUint8, codec.TypeUint16, codec.TypeUint24, codec.TypeUint32,
		codec.TypeUint40, codec.TypeUint48, codec.TypeUint64,
		codec.TypeInt8, codec.TypeInt16, codec.TypeInt24, codec.TypeInt32,
		codec.TypeFloat32, codec.TypeFloat64, codec.TypeUTC:
		return true
	}
	return false
}

// readType reads a data type id and rejects ids the codec cannot size.
func readType(d *codec.Deserializer) (codec.DataType, error) {
	v, err := d.ReadUint8()
	if err != nil {
		return 0, err
	}
	t := codec.DataType(v)
	if !t.Valid() {
		return t, &codec.FormatError{Type: t, Reason: "unsupported attribute data type"}
	}
	return t, nil
}

// recordList builds a RecordCodec for a list of T running to the end of the
// payload.
func recordList[T any](name string, enc func(*codec.Serializer, T) error, dec func(*codec.Deserializer) (T, error)) *RecordCodec {
	return &RecordCodec{
		Name: "[]" + name,
		Encode: func(s *codec.Serializer, v any) error {
			if v == nil {
				return nil
			}
			list, ok := v.([]T)
			if !ok {
				return fmt.Errorf("zcl: %s list: cannot encode %T", name, v)
			}
			for i, rec := range list {
				if err := enc(s, rec); err != nil {
					return fmt.Errorf("zcl: %s %d: %w", name, i, err)
				}
			}
			return nil
		},
		Decode: func(d *codec.Deserializer) (any, error) {
			list := []T{}
			for !d.IsEnd() {
				rec, err := dec(d)
				if err != nil {
					return nil, fmt.Errorf("zcl: %s %d: %w", name, len(list), err)
				}
				list = append(list, rec)
			}
			return list, nil
		},
	}
}

var attributeRecords = recordList("AttributeRecord",
	func(s *codec.Serializer, r AttributeRecord) error {
		s.WriteUint16(r.ID)
		s.WriteUint8(uint8(r.Type))
		return s.Write(r.Type, r.Value)
	},
	func(d *codec.Deserializer) (AttributeRecord, error) {
		var r AttributeRecord
		var err error
		if r.ID, err = d.ReadUint16(); err != nil {
			return r, err
		}
		if r.Type, err = readType(d); err != nil {
			return r, err
		}
		r.Value, err = d.Read(r.Type)
		return r, err
	})

var readAttributeStatusRecords = recordList("ReadAttributeStatus",
	func(s *codec.Serializer, r ReadAttributeStatus) error {
		s.WriteUint16(r.ID)
		s.WriteEnum8(uint8(r.Status))
		if r.Status != StatusSuccess {
			return nil
		}
		s.WriteUint8(uint8(r.Type))
		return s.Write(r.Type, r.Value)
	},
	func(d *codec.Deserializer) (ReadAttributeStatus, error) {
		var r ReadAttributeStatus
		var err error
		if r.ID, err = d.ReadUint16(); err != nil {
			return r, err
		}
		st, err := d.ReadEnum8(knownStatus)
		if err != nil {
			return r, err
		}
		r.Status = Status(st)
		if r.Status != StatusSuccess {
			return r, nil
		}
		if r.Type, err = readType(d); err != nil {
			return r, err
		}
		r.Value, err = d.Read(r.Type)
		return r, err
	})

// writeStatusRecords collapses an all-success response into the single
// status byte the protocol uses for it.
var writeStatusRecords = &RecordCodec{
	Name: "[]WriteAttributeStatus",
	Encode: func(s *codec.Serializer, v any) error {
		list, ok := v.([]WriteAttributeStatus)
		if !ok && v != nil {
			return fmt.Errorf("zcl: WriteAttributeStatus list: cannot encode %T", v)
		}
		if allSuccess(list, func(r WriteAttributeStatus) Status { return r.Status }) {
			s.WriteEnum8(uint8(StatusSuccess))
			return nil
		}
		for _, r := range list {
			s.WriteEnum8(uint8(r.Status))
			s.WriteUint16(r.ID)
		}
		return nil
	},
	Decode: func(d *codec.Deserializer) (any, error) {
		list := []WriteAttributeStatus{}
		if d.Remaining() == 1 {
			st, err := d.ReadEnum8(knownStatus)
			if err != nil {
				return nil, err
			}
			return append(list, WriteAttributeStatus{Status: Status(st)}), nil
		}
		for !d.IsEnd() {
			st, err := d.ReadEnum8(knownStatus)
			if err != nil {
				return nil, err
			}
			id, err := d.ReadUint16()
			if err != nil {
				return nil, err
			}
			list = append(list, WriteAttributeStatus{Status: Status(st), ID: id})
		}
		return list, nil
	},
}

func encodeReportingConfig(s *codec.Serializer, r ReportingConfig) error {
	s.WriteUint8(r.Direction)
	s.WriteUint16(r.ID)
	if r.Direction == ReportingReceive {
		s.WriteUint16(r.Timeout)
		return nil
	}
	s.WriteUint8(uint8(r.Type))
	s.WriteUint16(r.MinInterval)
	s.WriteUint16(r.MaxInterval)
	if IsAnalog(r.Type) {
		change := r.ReportableChange
		if change == nil {
			change = 0
		}
		return s.Write(r.Type, change)
	}
	return nil
}

func decodeReportingConfig(d *codec.Deserializer) (ReportingConfig, error) {
	var r ReportingConfig
	var err error
	if r.Direction, err = d.ReadUint8(); err != nil {
		return r, err
	}
	if r.ID, err = d.ReadUint16(); err != nil {
		return r, err
	}
	if r.Direction == ReportingReceive {
		r.Timeout, err = d.ReadUint16()
		return r, err
	}
	if r.Type, err = readType(d); err != nil {
		return r, err
	}
	if r.MinInterval, err = d.ReadUint16(); err != nil {
		return r, err
	}
	if r.MaxInterval, err = d.ReadUint16(); err != nil {
		return r, err
	}
	if IsAnalog(r.Type) {
		r.ReportableChange, err = d.Read(r.Type)
	}
	return r, err
}

var reportingConfigRecords = recordList("ReportingConfig", encodeReportingConfig, decodeReportingConfig)

var reportingStatusRecords = &RecordCodec{
	Name: "[]ReportingConfigStatus",
	Encode: func(s *codec.Serializer, v any) error {
		list, ok := v.([]ReportingConfigStatus)
		if !ok && v != nil {
			return fmt.Errorf("zcl: ReportingConfigStatus list: cannot encode %T", v)
		}
		if allSuccess(list, func(r ReportingConfigStatus) Status { return r.Status }) {
			s.WriteEnum8(uint8(StatusSuccess))
			return nil
		}
		for _, r := range list {
			s.WriteEnum8(uint8(r.Status))
			s.WriteUint8(r.Direction)
			s.WriteUint16(r.ID)
		}
		return nil
	},
	Decode: func(d *codec.Deserializer) (any, error) {
		list := []ReportingConfigStatus{}
		if d.Remaining() == 1 {
			st, err := d.ReadEnum8(knownStatus)
			if err != nil {
				return nil, err
			}
			return append(list, ReportingConfigStatus{Status: Status(st)}), nil
		}
		for !d.IsEnd() {
			var r ReportingConfigStatus
			st, err := d.ReadEnum8(knownStatus)
			if err != nil {
				return nil, err
			}
			r.Status = Status(st)
			if r.Direction, err = d.ReadUint8(); err != nil {
				return nil, err
			}
			if r.ID, err = d.ReadUint16(); err != nil {
				return nil, err
			}
			list = append(list, r)
		}
		return list, nil
	},
}

var reportingRecordIDs = recordList("ReportingConfigRecord",
	func(s *codec.Serializer, r ReportingConfigRecord) error {
		s.WriteUint8(r.Direction)
		s.WriteUint16(r.ID)
		return nil
	},
	func(d *codec.Deserializer) (ReportingConfigRecord, error) {
		var r ReportingConfigRecord
		var err error
		if r.Direction, err = d.ReadUint8(); err != nil {
			return r, err
		}
		r.ID, err = d.ReadUint16()
		return r, err
	})

var reportingConfigResponses = recordList("ReportingConfigResponse",
	func(s *codec.Serializer, r ReportingConfigResponse) error {
		s.WriteEnum8(uint8(r.Status))
		if r.Status != StatusSuccess {
			s.WriteUint8(r.Direction)
			s.WriteUint16(r.ID)
			return nil
		}
		return encodeReportingConfig(s, r.ReportingConfig)
	},
	func(d *codec.Deserializer) (ReportingConfigResponse, error) {
		var r ReportingConfigResponse
		st, err := d.ReadEnum8(knownStatus)
		if err != nil {
			return r, err
		}
		r.Status = Status(st)
		if r.Status != StatusSuccess {
			if r.Direction, err = d.ReadUint8(); err != nil {
				return r, err
			}
			r.ID, err = d.ReadUint16()
			return r, err
		}
		r.ReportingConfig, err = decodeReportingConfig(d)
		return r, err
	})

var attributeInfoRecords = recordList("AttributeInfo",
	func(s *codec.Serializer, r AttributeInfo) error {
		s.WriteUint16(r.ID)
		s.WriteUint8(uint8(r.Type))
		return nil
	},
	func(d *codec.Deserializer) (AttributeInfo, error) {
		var r AttributeInfo
		var err error
		if r.ID, err = d.ReadUint16(); err != nil {
			return r, err
		}
		t, err := d.ReadUint8()
		r.Type = codec.DataType(t)
		return r, err
	})

func allSuccess[T any](list []T, status func(T) Status) bool {
	for _, r := range list {
		if status(r) != StatusSuccess {
			return false
		}
	}
	return true
}

func writeAttributesDef(id uint8, name string) *CommandDef {
	return &CommandDef{ID: id, Name: name, Direction: ClientToServer, Fields: []FieldDef{
		{Name: "records", Record: attributeRecords},
	}}
}

// Foundation command layouts, keyed by generic command id.
var foundationByID = map[uint8]*CommandDef{
	FoundationReadAttributes: {ID: FoundationReadAttributes, Name: "ReadAttributes", Direction: ClientToServer, Fields: []FieldDef{
		{Name: "identifiers", Type: codec.TypeAttrID, Array: codec.Remaining},
	}},
	FoundationReadAttributesResponse: {ID: FoundationReadAttributesResponse, Name: "ReadAttributesResponse", Direction: ServerToClient, Fields: []FieldDef{
		{Name: "records", Record: readAttributeStatusRecords},
	}},
	FoundationWriteAttributes:           writeAttributesDef(FoundationWriteAttributes, "WriteAttributes"),
	FoundationWriteAttributesUndivided:  writeAttributesDef(FoundationWriteAttributesUndivided, "WriteAttributesUndivided"),
	FoundationWriteAttributesNoResponse: writeAttributesDef(FoundationWriteAttributesNoResponse, "WriteAttributesNoResponse"),
	FoundationWriteAttributesResp: {ID: FoundationWriteAttributesResp, Name: "WriteAttributesResponse", Direction: ServerToClient, Fields: []FieldDef{
		{Name: "records", Record: writeStatusRecords},
	}},
	FoundationConfigReporting: {ID: FoundationConfigReporting, Name: "ConfigureReporting", Direction: ClientToServer, Fields: []FieldDef{
		{Name: "records", Record: reportingConfigRecords},
	}},
	FoundationConfigReportingResp: {ID: FoundationConfigReportingResp, Name: "ConfigureReportingResponse", Direction: ServerToClient, Fields: []FieldDef{
		{Name: "records", Record: reportingStatusRecords},
	}},
	FoundationReadReportingConfig: {ID: FoundationReadReportingConfig, Name: "ReadReportingConfiguration", Direction: ClientToServer, Fields: []FieldDef{
		{Name: "records", Record: reportingRecordIDs},
	}},
	FoundationReadReportingConfigResp: {ID: FoundationReadReportingConfigResp, Name: "ReadReportingConfigurationResponse", Direction: ServerToClient, Fields: []FieldDef{
		{Name: "records", Record: reportingConfigResponses},
	}},
	FoundationReportAttributes: {ID: FoundationReportAttributes, Name: "ReportAttributes", Direction: ServerToClient, Fields: []FieldDef{
		{Name: "records", Record: attributeRecords},
	}},
	FoundationDefaultResponse: {ID: FoundationDefaultResponse, Name: "DefaultResponse", Direction: ServerToClient, Fields: []FieldDef{
		{Name: "commandIdentifier", Type: codec.TypeUint8},
		{Name: "statusCode", Type: codec.TypeEnum8},
	}},
	FoundationDiscoverAttributes: {ID: FoundationDiscoverAttributes, Name: "DiscoverAttributes", Direction: ClientToServer, Fields: []FieldDef{
		{Name: "startAttributeIdentifier", Type: codec.TypeAttrID},
		{Name: "maximumAttributeIdentifiers", Type: codec.TypeUint8},
	}},
	FoundationDiscoverAttributesResp: {ID: FoundationDiscoverAttributesResp, Name: "DiscoverAttributesResponse", Direction: ServerToClient, Fields: []FieldDef{
		{Name: "discoveryComplete", Type: codec.TypeBool},
		{Name: "records", Record: attributeInfoRecords},
	}},
}

// FoundationCommand returns the layout of a generic command, or nil.
func FoundationCommand(id uint8) *CommandDef { return foundationByID[id] }

// NewDefaultResponse builds the default response to req with the given status.
func NewDefaultResponse(req *Command, status Status) *Command {
	cmd := NewGenericCommand(req.ClusterID(), FoundationDefaultResponse, req.Direction().Inverse())
	cmd.MustSet("commandIdentifier", req.CommandID())
	cmd.MustSet("statusCode", uint8(status))
	cmd.TransactionID = req.TransactionID
	cmd.ProfileID = req.ProfileID
	cmd.ManufacturerCode = req.ManufacturerCode
	cmd.Source, cmd.Destination = req.Destination, req.Source
	cmd.DisableDefaultResponse = true
	return cmd
}

// NewReadAttributes builds a read-attributes request.
func NewReadAttributes(cluster uint16, ids ...uint16) *Command {
	cmd := NewGenericCommand(cluster, FoundationReadAttributes, ClientToServer)
	cmd.MustSet("identifiers", ids)
	return cmd
}
