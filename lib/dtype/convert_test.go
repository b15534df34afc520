package dtype

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func int32sLE(vs ...int32) []byte {
	buf := make([]byte, 0, 4*len(vs))
	for _, v := range vs {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(v))
	}
	return buf
}

func TestAdjustBuffer(t *testing.T) {
	buf := int32sLE(1024)

	shape, out, err := AdjustBuffer(StdI32LE, StdI32LE, 1, buf)
	require.NoError(t, err)
	require.Equal(t, FixedShape(4), shape)
	require.Equal(t, buf, out)

	shape, out, err = AdjustBuffer(StdI32LE, StdI64BE, 1, buf)
	require.NoError(t, err)
	require.Equal(t, uint64(8), shape.Len())
	require.GreaterOrEqual(t, cap(out), 8)

	shape, _, err = AdjustBuffer(CString, CString, 1, []byte("hello"))
	require.NoError(t, err)
	require.True(t, shape.IsVariable())
	require.Equal(t, "Variable", shape.String())

	_, _, err = AdjustBuffer(StdI32LE, StdI32LE, 2, buf)
	require.ErrorIs(t, err, ErrConversion)

	_, _, err = AdjustBuffer(CString, StdI32LE, 1, buf)
	require.ErrorIs(t, err, ErrConversion)
}

func TestConvertIntegers(t *testing.T) {
	src := int32sLE(1024, -7, math.MaxInt32)
	_, buf, err := AdjustBuffer(StdI32LE, StdI64BE, 3, src)
	require.NoError(t, err)

	out, err := Convert(StdI32LE, StdI64BE, 3, buf)
	require.NoError(t, err)
	require.Len(t, out, 24)
	require.Equal(t, int64(1024), int64(binary.BigEndian.Uint64(out[0:])))
	require.Equal(t, int64(-7), int64(binary.BigEndian.Uint64(out[8:])))
	require.Equal(t, int64(math.MaxInt32), int64(binary.BigEndian.Uint64(out[16:])))

	// and back, shrinking in place
	back, err := Convert(StdI64BE, StdI32LE, 3, out)
	require.NoError(t, err)
	require.Equal(t, int32sLE(1024, -7, math.MaxInt32), back)
}

func TestConvertClamps(t *testing.T) {
	buf := int32sLE(300, -5, 100)
	out, err := Convert(StdI32LE, NativeUint8, 3, buf)
	require.NoError(t, err)
	require.Equal(t, []byte{255, 0, 100}, out)

	buf = int32sLE(-300)
	out, err = Convert(StdI32LE, NativeInt8, 1, buf)
	require.NoError(t, err)
	require.Equal(t, int8(math.MinInt8), int8(out[0]))
}

func TestConvertFloats(t *testing.T) {
	buf := binary.LittleEndian.AppendUint64(nil, math.Float64bits(-2.75))
	out, err := Convert(IeeeF64LE, StdI32LE, 1, buf)
	require.NoError(t, err)
	require.Equal(t, int32sLE(-2), out)

	buf = binary.LittleEndian.AppendUint64(nil, math.Float64bits(math.NaN()))
	out, err = Convert(IeeeF64LE, StdI32LE, 1, buf)
	require.NoError(t, err)
	require.Equal(t, int32sLE(0), out)

	buf = binary.LittleEndian.AppendUint64(nil, math.Float64bits(1e20))
	out, err = Convert(IeeeF64LE, StdI32LE, 1, buf)
	require.NoError(t, err)
	require.Equal(t, int32sLE(math.MaxInt32), out)

	_, buf, err = AdjustBuffer(StdI32LE, IeeeF64BE, 1, int32sLE(12))
	require.NoError(t, err)
	out, err = Convert(StdI32LE, IeeeF64BE, 1, buf)
	require.NoError(t, err)
	require.Equal(t, 12.0, math.Float64frombits(binary.BigEndian.Uint64(out)))

	buf = binary.LittleEndian.AppendUint32(nil, math.Float32bits(1.5))
	_, buf, err = AdjustBuffer(IeeeF32LE, IeeeF64LE, 1, buf)
	require.NoError(t, err)
	out, err = Convert(IeeeF32LE, IeeeF64LE, 1, buf)
	require.NoError(t, err)
	require.Equal(t, 1.5, math.Float64frombits(binary.LittleEndian.Uint64(out)))
}

func TestConvertStrings(t *testing.T) {
	_, buf, err := AdjustBuffer(FixedString(3), FixedString(5), 2, []byte("abcxyz"))
	require.NoError(t, err)
	out, err := Convert(FixedString(3), FixedString(5), 2, buf)
	require.NoError(t, err)
	require.Equal(t, []byte("abc\x00\x00xyz\x00\x00"), out)

	out, err = Convert(FixedString(5), FixedString(2), 2, out)
	require.NoError(t, err)
	require.Equal(t, []byte("abxy"), out)
}

func TestConvertRejects(t *testing.T) {
	_, err := Convert(FixedString(4), StdI32LE, 1, []byte("abcd"))
	require.ErrorIs(t, err, ErrConversion)

	_, err = Convert(CString, CString, 1, []byte("abcd"))
	require.ErrorIs(t, err, ErrConversion)

	_, err = Convert(StdI32LE, StdI64LE, 1, int32sLE(1)[:4:4])
	require.ErrorIs(t, err, ErrConversion)
}

func TestFormatAndParseValue(t *testing.T) {
	tests := []struct {
		typ  Type
		in   string
		want string
	}{
		{StdI32LE, "1024", "1024"},
		{StdI64BE, "-5, 7", "-5,7"},
		{NativeUint8, "0x10", "16"},
		{IeeeF64LE, "2.5", "2.5"},
		{CString, "hello", `"hello"`},
		{FixedString(6), "abc", `"abc"`},
		{VLenOf(StdI32LE), "1,2,3", "[1,2,3]"},
	}

	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			buf, err := ParseValue(tt.typ, tt.in)
			require.NoError(t, err)
			require.Equal(t, tt.want, Format(tt.typ, buf))
		})
	}

	_, err := ParseValue(NativeInt8, "300")
	require.ErrorIs(t, err, ErrConversion)
	_, err = ParseValue(FixedString(2), "abc")
	require.ErrorIs(t, err, ErrConversion)

	require.Equal(t, int32sLE(1024), must(ParseValue(StdI32LE, "1024")))
}

func must(buf []byte, err error) []byte {
	if err != nil {
		panic(err)
	}
	return buf
}

func TestConvertRejectsInvalidSizes(t *testing.T) {
	int24 := Type{Class: ClassInteger, Size: 3, Signed: true}
	uint128 := Type{Class: ClassInteger, Size: 16}
	float16 := Type{Class: ClassFloat, Size: 2}

	tests := []struct {
		name     string
		src, dst Type
	}{
		{"int24 to float", int24, NativeFloat},
		{"int24 to double", int24, NativeDouble},
		{"int24 to int32", int24, NativeInt32},
		{"float to int24", NativeFloat, int24},
		{"double to uint128", NativeDouble, uint128},
		{"float16 to double", float16, NativeDouble},
		{"double to float16", NativeDouble, float16},
		{"int32 to float16", NativeInt32, float16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, buf, err := AdjustBuffer(tt.src, tt.dst, 1, make([]byte, tt.src.Size))
			require.NoError(t, err)
			_, err = Convert(tt.src, tt.dst, 1, buf)
			require.ErrorIs(t, err, ErrConversion)
		})
	}
}
