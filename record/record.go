// Package record decodes captured request and response payloads into JSON
// values. Each payload is a raw byte buffer tagged with the data type the
// collector declared for it.
package record

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownDataType is returned for a type tag outside the supported set.
	ErrUnknownDataType = errors.New("unknown data type")

	// ErrMalformedBuffer is returned when a fixed-width buffer is not a
	// whole number of elements long.
	ErrMalformedBuffer = errors.New("malformed buffer length")
)

// DataType identifies how a captured buffer is decoded.
type DataType uint8

const (
	TypeInvalid DataType = iota
	TypeBytes
	TypeJSON
	TypeBool
	TypeUint8
	TypeUint16
	TypeUint32
	TypeUint64
	TypeInt8
	TypeInt16
	TypeInt32
	TypeInt64
	TypeFP32
	TypeFP64
)

var typeNames = map[DataType]string{
	TypeBytes:  "BYTES",
	TypeJSON:   "JSON",
	TypeBool:   "BOOL",
	TypeUint8:  "UINT8",
	TypeUint16: "UINT16",
	TypeUint32: "UINT32",
	TypeUint64: "UINT64",
	TypeInt8:   "INT8",
	TypeInt16:  "INT16",
	TypeInt32:  "INT32",
	TypeInt64:  "INT64",
	TypeFP32:   "FP32",
	TypeFP64:   "FP64",
}

var typesByName = func() map[string]DataType {
	m := make(map[string]DataType, len(typeNames))
	for t, name := range typeNames {
		m[name] = t
	}

	return m
}()

// ParseDataType maps a wire tag such as "INT32" to its DataType.
func ParseDataType(name string) (DataType, error) {
	t, ok := typesByName[name]
	if !ok {
		return TypeInvalid, fmt.Errorf("%w %q", ErrUnknownDataType, name)
	}

	return t, nil
}

// String returns the wire tag, or a placeholder for unknown values.
func (t DataType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}

	return fmt.Sprintf("DataType(%d)", uint8(t))
}

// Width returns the element size in bytes for fixed-width types and 0 for
// the variable-length BYTES and JSON types.
func (t DataType) Width() int {
	switch t {
	case TypeBool, TypeUint8, TypeInt8:
		return 1
	case TypeUint16, TypeInt16:
		return 2
	case TypeUint32, TypeInt32, TypeFP32:
		return 4
	case TypeUint64, TypeInt64, TypeFP64:
		return 8
	default:
		return 0
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t DataType) MarshalText() ([]byte, error) {
	name, ok := typeNames[t]
	if !ok {
		return nil, fmt.Errorf("%w %d", ErrUnknownDataType, uint8(t))
	}

	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *DataType) UnmarshalText(text []byte) error {
	parsed, err := ParseDataType(string(text))
	if err != nil {
		return err
	}

	*t = parsed

	return nil
}

// RecordData is one captured field: its raw bytes and declared type.
type RecordData struct {
	Buf  []byte
	Type DataType
}

// New returns a RecordData for buf, parsing the wire tag.
func New(buf []byte, tag string) (RecordData, error) {
	t, err := ParseDataType(tag)
	if err != nil {
		return RecordData{}, err
	}

	return RecordData{Buf: buf, Type: t}, nil
}

// Value decodes the field into a JSON value.
func (d RecordData) Value() (any, error) {
	return Decode(d.Buf, d.Type)
}
