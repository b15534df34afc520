package util

import (
	"crypto/rand"
	"encoding/binary"
	"time"

	"github.com/cespare/xxhash/v2"
)

// --------------------------------------------------------------------------
// General Utility Functions
// --------------------------------------------------------------------------

// GenerateSeed creates a random seed for internal hash distribution
func GenerateSeed() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return uint64(time.Now().UnixNano())
	}
	return binary.LittleEndian.Uint64(b[:])
}

// --------------------------------------------------------------------------
// Hash Functions
// --------------------------------------------------------------------------

// UintKey is the hashed representation of an object id used for shard placement
type UintKey uint64

// HashID spreads object ids over the full 64-bit range.
// Object ids are usually allocated sequentially, so they must be mixed before
// their bits are used for shard selection (splitmix64 finalizer).
func HashID(id uint64, seed uint64) UintKey {
	z := id ^ seed
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return UintKey(z ^ (z >> 31))
}

// HashString hashes a name (e.g. a replica id like "node-1") to a uint64
func HashString(s string, seed uint64) UintKey {
	d := xxhash.New()
	_, _ = d.Write(binary.LittleEndian.AppendUint64(nil, seed))
	_, _ = d.WriteString(s)
	return UintKey(d.Sum64())
}
