// Package checksum provides the checksum primitive used for end-to-end data
// integrity and the integrity scope flags that select where checks apply.
//
// Checksums are 64-bit xxhash values. The value 0 is reserved for "no checksum",
// a buffer that hashes to 0 is reported as 1.
package checksum

import (
	"encoding/binary"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/kvmkrao/hdf5/lib/db"
)

// None is the checksum value meaning that no checksum was computed
const None uint64 = 0

// Scope selects where integrity checks are performed
type Scope uint32

const (
	// ScopeTransfer checks raw data moved between client and server
	ScopeTransfer Scope = 1 << iota
	// ScopeIOD checks metadata records kept by the object store (scratch pads)
	ScopeIOD

	ScopeNone Scope = 0
	ScopeAll        = ScopeTransfer | ScopeIOD
)

// Has reports whether all flags of f are set in s
func (s Scope) Has(f Scope) bool {
	return s&f == f && f != 0
}

func (s Scope) String() string {
	if s == ScopeNone {
		return "none"
	}
	var parts []string
	if s.Has(ScopeTransfer) {
		parts = append(parts, "transfer")
	}
	if s.Has(ScopeIOD) {
		parts = append(parts, "iod")
	}
	return strings.Join(parts, "|")
}

// ParseScope parses a scope like "transfer|iod", "all" or "none"
func ParseScope(s string) (Scope, bool) {
	var scope Scope
	for _, part := range strings.Split(strings.ToLower(s), "|") {
		switch strings.TrimSpace(part) {
		case "", "none":
		case "transfer":
			scope |= ScopeTransfer
		case "iod":
			scope |= ScopeIOD
		case "all":
			scope |= ScopeAll
		default:
			return ScopeNone, false
		}
	}
	return scope, true
}

// Compute returns the checksum of buf
func Compute(buf []byte) uint64 {
	sum := xxhash.Sum64(buf)
	if sum == None {
		return 1
	}
	return sum
}

// ComputeParts returns the checksum of the concatenation of parts without copying them
func ComputeParts(parts ...[]byte) uint64 {
	d := xxhash.New()
	for _, p := range parts {
		_, _ = d.Write(p)
	}
	if sum := d.Sum64(); sum != None {
		return sum
	}
	return 1
}

// ScratchPadBytes is the byte form of a scratch pad the checksum is computed over
func ScratchPadBytes(sp db.ScratchPad) []byte {
	buf := make([]byte, 8*len(sp))
	for i, id := range sp {
		binary.LittleEndian.PutUint64(buf[8*i:], uint64(id))
	}
	return buf
}

// ScratchPad returns the checksum of a scratch pad
func ScratchPad(sp db.ScratchPad) uint64 {
	return Compute(ScratchPadBytes(sp))
}

// VerifyScratchPad reports whether cs is the checksum of sp
func VerifyScratchPad(sp db.ScratchPad, cs uint64) bool {
	return ScratchPad(sp) == cs
}
