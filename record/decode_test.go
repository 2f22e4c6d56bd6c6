package record

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var order = binary.NativeEndian

func u16s(vals ...uint16) []byte {
	var buf []byte
	for _, v := range vals {
		buf = order.AppendUint16(buf, v)
	}

	return buf
}

func u32s(vals ...uint32) []byte {
	var buf []byte
	for _, v := range vals {
		buf = order.AppendUint32(buf, v)
	}

	return buf
}

func u64s(vals ...uint64) []byte {
	var buf []byte
	for _, v := range vals {
		buf = order.AppendUint64(buf, v)
	}

	return buf
}

func TestDecodeText(t *testing.T) {
	tests := []struct {
		name string
		typ  DataType
		buf  string
	}{
		{"bytes", TypeBytes, "abc123"},
		{"json", TypeJSON, `{"abc":"def"}`},
		{"malformed json kept verbatim", TypeJSON, `{"abc":`},
		{"empty bytes", TypeBytes, ""},
		{"bytes length not a multiple of anything", TypeBytes, "abcdefg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.buf), tt.typ)
			require.NoError(t, err)
			assert.Equal(t, tt.buf, got)
		})
	}
}

func TestDecodeArrays(t *testing.T) {
	tests := []struct {
		name string
		typ  DataType
		buf  []byte
		want any
	}{
		{"bool", TypeBool, []byte{1, 0, 1}, []bool{true, false, true}},
		{"bool nonzero is true", TypeBool, []byte{7, 0}, []bool{true, false}},
		{"uint8", TypeUint8, []byte{1, 2, 3}, []uint{1, 2, 3}},
		{"uint16", TypeUint16, u16s(4, 5, 6), []uint16{4, 5, 6}},
		{"uint32", TypeUint32, u32s(7, 8, 9), []uint32{7, 8, 9}},
		{"uint64", TypeUint64, u64s(10, 11, 12), []uint64{10, 11, 12}},
		{"int8", TypeInt8, []byte{1, 0xfe, 3}, []int8{1, -2, 3}},
		{
			"int16", TypeInt16,
			u16s(4, uint16(0xffff-4), 6), // -5
			[]int16{4, -5, 6},
		},
		{
			"int32", TypeInt32,
			u32s(7, uint32(0xffffffff-7), 9), // -8
			[]int32{7, -8, 9},
		},
		{
			"int64", TypeInt64,
			u64s(10, math.MaxUint64-10, 12), // -11
			[]int64{10, -11, 12},
		},
		{
			"fp32", TypeFP32,
			u32s(math.Float32bits(1), math.Float32bits(-2), math.Float32bits(3)),
			[]float32{1, -2, 3},
		},
		{
			"fp64", TypeFP64,
			u64s(math.Float64bits(4), math.Float64bits(-5), math.Float64bits(6)),
			[]float64{4, -5, 6},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.buf, tt.typ)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeScalars(t *testing.T) {
	tests := []struct {
		name string
		typ  DataType
		buf  []byte
		want any
	}{
		{"bool true", TypeBool, []byte{1}, true},
		{"bool false", TypeBool, []byte{0}, false},
		{"uint8", TypeUint8, []byte{200}, uint(200)},
		{"uint16", TypeUint16, u16s(65535), uint16(65535)},
		{"uint32", TypeUint32, u32s(456), uint32(456)},
		{"uint64", TypeUint64, u64s(1 << 40), uint64(1 << 40)},
		{"int8", TypeInt8, []byte{0x80}, int8(-128)},
		{"int32", TypeInt32, u32s(456), int32(456)},
		{"fp32", TypeFP32, u32s(math.Float32bits(0.5)), float32(0.5)},
		{"fp64", TypeFP64, u64s(math.Float64bits(23.5)), 23.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.buf, tt.typ)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodePreservesByteOrder(t *testing.T) {
	buf := u32s(1, 2, 3, 4)

	got, err := Decode(buf, TypeUint32)
	require.NoError(t, err)

	// Reversing the elements must reverse the decoded array.
	rev := u32s(4, 3, 2, 1)
	gotRev, err := Decode(rev, TypeUint32)
	require.NoError(t, err)

	assert.Equal(t, []uint32{1, 2, 3, 4}, got)
	assert.Equal(t, []uint32{4, 3, 2, 1}, gotRev)
}

func TestDecodeEmptyFixedWidth(t *testing.T) {
	got, err := Decode(nil, TypeInt32)
	require.NoError(t, err)

	out, err := json.Marshal(got)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(out))
}

func TestDecodeMalformedLength(t *testing.T) {
	tests := []struct {
		typ DataType
		len int
	}{
		{TypeUint16, 3},
		{TypeInt16, 1},
		{TypeUint32, 6},
		{TypeInt32, 3},
		{TypeFP32, 5},
		{TypeUint64, 12},
		{TypeInt64, 7},
		{TypeFP64, 9},
	}

	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			_, err := Decode(make([]byte, tt.len), tt.typ)
			require.ErrorIs(t, err, ErrMalformedBuffer)
		})
	}
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := Decode([]byte{1}, TypeInvalid)
	require.ErrorIs(t, err, ErrUnknownDataType)

	_, err = Decode([]byte{1}, DataType(99))
	require.ErrorIs(t, err, ErrUnknownDataType)
}

func TestDecodeUint8EncodesAsNumbers(t *testing.T) {
	got, err := Decode([]byte{1, 2, 3}, TypeUint8)
	require.NoError(t, err)

	out, err := json.Marshal(got)
	require.NoError(t, err)
	assert.Equal(t, "[1,2,3]", string(out))
}

func TestDecodeNonFiniteFloats(t *testing.T) {
	nan32 := math.Float32bits(float32(math.NaN()))
	inf32 := math.Float32bits(float32(math.Inf(1)))

	got, err := Decode(u32s(nan32), TypeFP32)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = Decode(u64s(math.Float64bits(math.Inf(-1))), TypeFP64)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = Decode(u32s(math.Float32bits(1.5), nan32, inf32), TypeFP32)
	require.NoError(t, err)
	assert.Equal(t, []any{float32(1.5), nil, nil}, got)

	out, err := json.Marshal(got)
	require.NoError(t, err)
	assert.Equal(t, `[1.5,null,null]`, string(out))
}
