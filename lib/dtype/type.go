package dtype

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// --------------------------------------------------------------------------
// Type Descriptor
// --------------------------------------------------------------------------

// Class is the datatype class
type Class uint8

const (
	ClassInteger Class = iota + 1
	ClassFloat
	ClassString
	ClassVLen
)

func (c Class) String() string {
	switch c {
	case ClassInteger:
		return "integer"
	case ClassFloat:
		return "float"
	case ClassString:
		return "string"
	case ClassVLen:
		return "vlen"
	default:
		return "unknown"
	}
}

// ByteOrder of multi byte numeric types
type ByteOrder uint8

const (
	LittleEndian ByteOrder = iota
	BigEndian
)

func (o ByteOrder) binary() binary.ByteOrder {
	if o == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// NativeOrder is the byte order of the machine
var NativeOrder = func() ByteOrder {
	var b [2]byte
	binary.NativeEndian.PutUint16(b[:], 1)
	if b[0] == 1 {
		return LittleEndian
	}
	return BigEndian
}()

// Type describes how a value is laid out in memory or in a map.
// Size is the element size in bytes, 0 for strings of variable length.
// Base is the element type of a VLen sequence.
type Type struct {
	Class  Class
	Size   uint32
	Order  ByteOrder
	Signed bool
	Base   *Type
}

// IsVariable reports whether values of the type have no fixed size
func (t Type) IsVariable() bool {
	return t.Class == ClassVLen || (t.Class == ClassString && t.Size == 0)
}

// Equal compares two descriptors including their base types
func (t Type) Equal(o Type) bool {
	if t.Class != o.Class || t.Size != o.Size || t.Order != o.Order || t.Signed != o.Signed {
		return false
	}
	if t.Base == nil || o.Base == nil {
		return t.Base == o.Base
	}
	return t.Base.Equal(*o.Base)
}

func (t Type) String() string {
	order := "le"
	if t.Order == BigEndian {
		order = "be"
	}
	switch t.Class {
	case ClassInteger:
		prefix := "uint"
		if t.Signed {
			prefix = "int"
		}
		return fmt.Sprintf("%s%d%s", prefix, t.Size*8, order)
	case ClassFloat:
		return fmt.Sprintf("float%d%s", t.Size*8, order)
	case ClassString:
		if t.Size == 0 {
			return "string"
		}
		return fmt.Sprintf("string%d", t.Size)
	case ClassVLen:
		if t.Base == nil {
			return "vlen(?)"
		}
		return "vlen(" + t.Base.String() + ")"
	default:
		return "unknown"
	}
}

// Validate checks that the descriptor can be converted and stored:
// integers of 1, 2, 4 or 8 bytes, floats of 4 or 8 bytes, a known byte order
// and a base type on (and only on) VLen sequences.
func (t Type) Validate() error {
	if t.Order != LittleEndian && t.Order != BigEndian {
		return fmt.Errorf("invalid byte order %d", t.Order)
	}
	if t.Class != ClassVLen && t.Base != nil {
		return fmt.Errorf("%s datatype cannot have a base type", t.Class)
	}
	switch t.Class {
	case ClassInteger:
		if !validIntBits(t.Size * 8) {
			return fmt.Errorf("invalid integer size %d", t.Size)
		}
	case ClassFloat:
		if !validFloatSize(t.Size) {
			return fmt.Errorf("invalid float size %d", t.Size)
		}
	case ClassString:
	case ClassVLen:
		if t.Base == nil {
			return errors.New("vlen datatype without base type")
		}
		return t.Base.Validate()
	default:
		return fmt.Errorf("unknown datatype class %d", t.Class)
	}
	return nil
}

// --------------------------------------------------------------------------
// Predefined Types
// --------------------------------------------------------------------------

func integer(size uint32, signed bool, order ByteOrder) Type {
	return Type{Class: ClassInteger, Size: size, Signed: signed, Order: order}
}

func float(size uint32, order ByteOrder) Type {
	return Type{Class: ClassFloat, Size: size, Order: order}
}

var (
	NativeInt8   = integer(1, true, NativeOrder)
	NativeInt16  = integer(2, true, NativeOrder)
	NativeInt32  = integer(4, true, NativeOrder)
	NativeInt64  = integer(8, true, NativeOrder)
	NativeUint8  = integer(1, false, NativeOrder)
	NativeUint16 = integer(2, false, NativeOrder)
	NativeUint32 = integer(4, false, NativeOrder)
	NativeUint64 = integer(8, false, NativeOrder)
	NativeInt    = NativeInt32

	StdI32LE = integer(4, true, LittleEndian)
	StdI32BE = integer(4, true, BigEndian)
	StdI64LE = integer(8, true, LittleEndian)
	StdI64BE = integer(8, true, BigEndian)

	NativeFloat  = float(4, NativeOrder)
	NativeDouble = float(8, NativeOrder)
	IeeeF32LE    = float(4, LittleEndian)
	IeeeF32BE    = float(4, BigEndian)
	IeeeF64LE    = float(8, LittleEndian)
	IeeeF64BE    = float(8, BigEndian)

	// CString is a variable length string
	CString = Type{Class: ClassString}
)

// FixedString returns a string type of n bytes
func FixedString(n uint32) Type {
	return Type{Class: ClassString, Size: n}
}

// VLenOf returns a variable length sequence of base
func VLenOf(base Type) Type {
	b := base
	return Type{Class: ClassVLen, Base: &b}
}

// Parse parses the names produced by Type.String and the short forms
// "int32", "uint8", "float64", "double", "string", "vlen(int32)".
// Integers and floats without an order suffix are native.
func Parse(s string) (Type, error) {
	s = strings.ToLower(strings.TrimSpace(s))

	if strings.HasPrefix(s, "vlen(") && strings.HasSuffix(s, ")") {
		base, err := Parse(s[5 : len(s)-1])
		if err != nil {
			return Type{}, err
		}
		return VLenOf(base), nil
	}

	switch s {
	case "string":
		return CString, nil
	case "int":
		return NativeInt, nil
	case "float":
		return NativeFloat, nil
	case "double":
		return NativeDouble, nil
	}

	order := NativeOrder
	switch {
	case strings.HasSuffix(s, "le"):
		order, s = LittleEndian, strings.TrimSuffix(s, "le")
	case strings.HasSuffix(s, "be"):
		order, s = BigEndian, strings.TrimSuffix(s, "be")
	}

	var bits uint32
	switch {
	case sscan(s, "uint%d", &bits):
		if validIntBits(bits) {
			return integer(bits/8, false, order), nil
		}
	case sscan(s, "int%d", &bits):
		if validIntBits(bits) {
			return integer(bits/8, true, order), nil
		}
	case sscan(s, "float%d", &bits):
		if bits == 32 || bits == 64 {
			return float(bits/8, order), nil
		}
	case sscan(s, "string%d", &bits):
		if bits > 0 {
			return FixedString(bits), nil
		}
	}
	return Type{}, fmt.Errorf("unknown datatype %q", s)
}

func sscan(s, format string, v *uint32) bool {
	var rest string
	n, _ := fmt.Sscanf(s+" .", format+" %s", v, &rest)
	return n == 2 && rest == "."
}

func validIntBits(bits uint32) bool {
	return bits == 8 || bits == 16 || bits == 32 || bits == 64
}

func validFloatSize(size uint32) bool {
	return size == 4 || size == 8
}

// --------------------------------------------------------------------------
// Binary Encoding
// --------------------------------------------------------------------------

var errShortType = errors.New("datatype encoding too short")

// Encode returns the binary form of the descriptor:
// class (1), size (4, big endian), order (1), signed (1), has base (1), base (recursive)
func (t Type) Encode() []byte {
	buf := make([]byte, 8, 16)
	buf[0] = byte(t.Class)
	binary.BigEndian.PutUint32(buf[1:5], t.Size)
	buf[5] = byte(t.Order)
	if t.Signed {
		buf[6] = 1
	}
	if t.Base != nil {
		buf[7] = 1
		buf = append(buf, t.Base.Encode()...)
	}
	return buf
}

// Decode parses a descriptor produced by Encode. Descriptors that fail
// Validate are rejected.
func Decode(buf []byte) (Type, error) {
	t, rest, err := decode(buf, 0)
	if err != nil {
		return Type{}, err
	}
	if len(rest) != 0 {
		return Type{}, fmt.Errorf("%d trailing bytes after datatype", len(rest))
	}
	if err := t.Validate(); err != nil {
		return Type{}, err
	}
	return t, nil
}

func decode(buf []byte, depth int) (Type, []byte, error) {
	if depth > 8 {
		return Type{}, nil, fmt.Errorf("datatype nesting too deep")
	}
	if len(buf) < 8 {
		return Type{}, nil, errShortType
	}
	t := Type{
		Class:  Class(buf[0]),
		Size:   binary.BigEndian.Uint32(buf[1:5]),
		Order:  ByteOrder(buf[5]),
		Signed: buf[6] == 1,
	}
	if t.Class < ClassInteger || t.Class > ClassVLen {
		return Type{}, nil, fmt.Errorf("unknown datatype class %d", buf[0])
	}
	rest := buf[8:]
	if buf[7] == 1 {
		base, r, err := decode(rest, depth+1)
		if err != nil {
			return Type{}, nil, err
		}
		t.Base, rest = &base, r
	}
	return t, rest, nil
}
