// Package dtype describes the datatypes of map keys and values and converts
// fixed size elements between them.
//
// A Type is a small descriptor (class, size, byte order, signedness) with a
// stable binary encoding so it can be stored as map metadata. Variable length
// types (strings without size, vlen sequences) are never converted, their values
// are stored verbatim.
//
// Conversion happens in two steps:
//
//	shape, buf, err := dtype.AdjustBuffer(mem, file, n, buf)  // decide shape, grow buffer
//	buf, err = dtype.Convert(mem, file, n, buf)               // convert in place
package dtype
