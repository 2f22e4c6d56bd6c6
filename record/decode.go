package record

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"
)

// Decode converts buf into a JSON-encodable value according to t.
//
// BYTES and JSON buffers become a single string holding the buffer text;
// JSON text is kept verbatim and never parsed. Fixed-width buffers are read
// element by element in native byte order: one element yields a scalar,
// any other count yields a slice in buffer order. NaN and infinite floats
// have no JSON form and decode as nil, which encodes as null.
func Decode(buf []byte, t DataType) (any, error) {
	order := binary.NativeEndian

	switch t {
	case TypeBytes, TypeJSON:
		return string(buf), nil
	case TypeBool:
		return decodeFixed(buf, t, func(b []byte) bool { return b[0] != 0 })
	case TypeUint8:
		// Widened so slices encode as numbers rather than base64.
		return decodeFixed(buf, t, func(b []byte) uint { return uint(b[0]) })
	case TypeUint16:
		return decodeFixed(buf, t, order.Uint16)
	case TypeUint32:
		return decodeFixed(buf, t, order.Uint32)
	case TypeUint64:
		return decodeFixed(buf, t, order.Uint64)
	case TypeInt8:
		return decodeFixed(buf, t, func(b []byte) int8 { return int8(b[0]) })
	case TypeInt16:
		return decodeFixed(buf, t, func(b []byte) int16 { return int16(order.Uint16(b)) })
	case TypeInt32:
		return decodeFixed(buf, t, func(b []byte) int32 { return int32(order.Uint32(b)) })
	case TypeInt64:
		return decodeFixed(buf, t, func(b []byte) int64 { return int64(order.Uint64(b)) })
	case TypeFP32:
		return finite[float32](decodeFixed(buf, t, func(b []byte) float32 {
			return math.Float32frombits(order.Uint32(b))
		}))
	case TypeFP64:
		return finite[float64](decodeFixed(buf, t, func(b []byte) float64 {
			return math.Float64frombits(order.Uint64(b))
		}))
	default:
		return nil, fmt.Errorf("decode: %w %s", ErrUnknownDataType, t)
	}
}

func decodeFixed[T any](buf []byte, t DataType, read func([]byte) T) (any, error) {
	width := t.Width()
	if len(buf)%width != 0 {
		return nil, fmt.Errorf(
			"decode %s: %w: %d bytes is not a multiple of %d",
			t, ErrMalformedBuffer, len(buf), width,
		)
	}

	values := make([]T, len(buf)/width)
	for i := range values {
		values[i] = read(buf[i*width : (i+1)*width])
	}

	if len(values) == 1 {
		return values[0], nil
	}

	return values, nil
}

// finite replaces NaN and infinite values in a decoded float scalar or
// slice with nil. Slices holding such values become []any.
func finite[T float32 | float64](v any, err error) (any, error) {
	if err != nil {
		return nil, err
	}

	isFinite := func(f T) bool {
		return !math.IsNaN(float64(f)) && !math.IsInf(float64(f), 0)
	}

	switch x := v.(type) {
	case T:
		if !isFinite(x) {
			return nil, nil
		}
	case []T:
		if slices.IndexFunc(x, func(f T) bool { return !isFinite(f) }) < 0 {
			return x, nil
		}

		out := make([]any, len(x))
		for i, f := range x {
			if isFinite(f) {
				out[i] = f
			}
		}

		return out, nil
	}

	return v, nil
}
