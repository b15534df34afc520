package dtype

import (
	"errors"
	"fmt"
	"math"
)

// ErrConversion is returned for every conversion failure
var ErrConversion = errors.New("datatype conversion failed")

// --------------------------------------------------------------------------
// Value Shape
// --------------------------------------------------------------------------

// Shape tells whether a value has a size fixed by its type or is variable length.
// It is decided once per value by AdjustBuffer.
type Shape struct {
	variable bool
	size     uint64
}

// FixedShape is a value of n bytes after conversion
func FixedShape(n uint64) Shape {
	return Shape{size: n}
}

// VariableShape is a value stored verbatim with its observed length
func VariableShape() Shape {
	return Shape{variable: true}
}

func (s Shape) IsVariable() bool {
	return s.variable
}

// Len is the converted size of a fixed value. It is 0 for variable values.
func (s Shape) Len() uint64 {
	return s.size
}

func (s Shape) String() string {
	if s.variable {
		return "Variable"
	}
	return fmt.Sprintf("Fixed(%d)", s.size)
}

// --------------------------------------------------------------------------
// Conversion Bridge
// --------------------------------------------------------------------------

// AdjustBuffer decides the shape of n elements in buf converted from src to dst.
// Variable length types are never converted and leave buf as it is. For fixed types
// buf must hold exactly n src elements, the returned buffer has room for the
// conversion in place.
func AdjustBuffer(src, dst Type, n uint64, buf []byte) (Shape, []byte, error) {
	if src.IsVariable() || dst.IsVariable() {
		if src.IsVariable() != dst.IsVariable() {
			return Shape{}, buf, fmt.Errorf("%w: cannot convert %s to %s", ErrConversion, src, dst)
		}
		return VariableShape(), buf, nil
	}

	srcLen := n * uint64(src.Size)
	dstLen := n * uint64(dst.Size)
	if uint64(len(buf)) != srcLen {
		return Shape{}, buf, fmt.Errorf("%w: buffer holds %d bytes, %d elements of %s need %d",
			ErrConversion, len(buf), n, src, srcLen)
	}

	if dstLen > uint64(cap(buf)) {
		grown := make([]byte, srcLen, dstLen)
		copy(grown, buf)
		buf = grown
	}
	return FixedShape(dstLen), buf, nil
}

// Convert converts n elements in buf from src to dst in place and returns the
// converted bytes. buf must come from AdjustBuffer (or otherwise have capacity for
// n dst elements). Integers are clamped to the destination range, floats converted
// to integers are truncated toward zero and clamped, NaN becomes 0.
func Convert(src, dst Type, n uint64, buf []byte) ([]byte, error) {
	if src.IsVariable() || dst.IsVariable() {
		return nil, fmt.Errorf("%w: variable length types are stored verbatim", ErrConversion)
	}
	srcSize, dstSize := uint64(src.Size), uint64(dst.Size)
	if uint64(len(buf)) < n*srcSize || uint64(cap(buf)) < n*dstSize {
		return nil, fmt.Errorf("%w: buffer too small for %d elements", ErrConversion, n)
	}
	if src.Equal(dst) {
		return buf[:n*dstSize], nil
	}

	conv, err := converter(src, dst)
	if err != nil {
		return nil, err
	}

	out := buf[:max(n*srcSize, n*dstSize)]
	if dstSize > srcSize {
		// growing: walk backwards so no element is overwritten before it is read
		for i := n; i > 0; i-- {
			conv(out[(i-1)*srcSize:i*srcSize], out[(i-1)*dstSize:i*dstSize])
		}
	} else {
		for i := uint64(0); i < n; i++ {
			conv(out[i*srcSize:(i+1)*srcSize], out[i*dstSize:(i+1)*dstSize])
		}
	}
	return out[:n*dstSize], nil
}

// elemConv converts one element. src and dst may overlap.
type elemConv func(src, dst []byte)

func converter(src, dst Type) (elemConv, error) {
	if !numericSize(src) || !numericSize(dst) {
		return nil, fmt.Errorf("%w: unsupported element size converting %s (%d bytes) to %s (%d bytes)",
			ErrConversion, src, src.Size, dst, dst.Size)
	}

	switch {
	case src.Class == ClassInteger && dst.Class == ClassInteger:
		return func(s, d []byte) {
			if src.Signed {
				writeInt(dst, d, readInt(src, s))
			} else {
				writeUint(dst, d, readUint(src, s))
			}
		}, nil

	case src.Class == ClassFloat && dst.Class == ClassFloat:
		return func(s, d []byte) { writeFloat(dst, d, readFloat(src, s)) }, nil

	case src.Class == ClassInteger && dst.Class == ClassFloat:
		return func(s, d []byte) {
			if src.Signed {
				writeFloat(dst, d, float64(readInt(src, s)))
			} else {
				writeFloat(dst, d, float64(readUint(src, s)))
			}
		}, nil

	case src.Class == ClassFloat && dst.Class == ClassInteger:
		return func(s, d []byte) {
			f := math.Trunc(readFloat(src, s))
			switch {
			case math.IsNaN(f):
				writeInt(dst, d, 0)
			case f < 0:
				writeInt(dst, d, int64(math.Max(f, math.MinInt64)))
			case f >= math.MaxUint64:
				writeUint(dst, d, math.MaxUint64)
			default:
				writeUint(dst, d, uint64(f))
			}
		}, nil

	case src.Class == ClassString && dst.Class == ClassString:
		// fixed strings are truncated or padded with NUL
		return func(s, d []byte) {
			tmp := make([]byte, len(d))
			copy(tmp, s)
			copy(d, tmp)
		}, nil
	}

	return nil, fmt.Errorf("%w: no conversion from %s to %s", ErrConversion, src, dst)
}

// numericSize reports whether the element accessors below can handle t.
// Non numeric classes are accepted here and sorted out by converter.
func numericSize(t Type) bool {
	switch t.Class {
	case ClassInteger:
		return validIntBits(t.Size * 8)
	case ClassFloat:
		return validFloatSize(t.Size)
	default:
		return true
	}
}

// --------------------------------------------------------------------------
// Element Access
// --------------------------------------------------------------------------

func readUint(t Type, b []byte) uint64 {
	o := t.Order.binary()
	switch t.Size {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(o.Uint16(b))
	case 4:
		return uint64(o.Uint32(b))
	default:
		return o.Uint64(b)
	}
}

func readInt(t Type, b []byte) int64 {
	u := readUint(t, b)
	switch t.Size {
	case 1:
		return int64(int8(u))
	case 2:
		return int64(int16(u))
	case 4:
		return int64(int32(u))
	default:
		return int64(u)
	}
}

// intRange returns the bounds of an integer type as int64 and uint64 limits
func intRange(t Type) (lo int64, hi uint64) {
	bits := t.Size * 8
	if t.Signed {
		return -1 << (bits - 1), 1<<(bits-1) - 1
	}
	if bits == 64 {
		return 0, math.MaxUint64
	}
	return 0, 1<<bits - 1
}

func putUint(t Type, b []byte, v uint64) {
	o := t.Order.binary()
	switch t.Size {
	case 1:
		b[0] = byte(v)
	case 2:
		o.PutUint16(b, uint16(v))
	case 4:
		o.PutUint32(b, uint32(v))
	default:
		o.PutUint64(b, v)
	}
}

// writeInt stores a signed value clamped to the range of t
func writeInt(t Type, b []byte, v int64) {
	lo, hi := intRange(t)
	switch {
	case v < lo:
		v = lo
	case v > 0 && uint64(v) > hi:
		putUint(t, b, hi)
		return
	}
	putUint(t, b, uint64(v))
}

// writeUint stores an unsigned value clamped to the range of t
func writeUint(t Type, b []byte, v uint64) {
	_, hi := intRange(t)
	if v > hi {
		v = hi
	}
	putUint(t, b, v)
}

func readFloat(t Type, b []byte) float64 {
	o := t.Order.binary()
	if t.Size == 4 {
		return float64(math.Float32frombits(o.Uint32(b)))
	}
	return math.Float64frombits(o.Uint64(b))
}

func writeFloat(t Type, b []byte, f float64) {
	o := t.Order.binary()
	if t.Size == 4 {
		o.PutUint32(b, math.Float32bits(float32(f)))
		return
	}
	o.PutUint64(b, math.Float64bits(f))
}
