package internal

import (
	"sort"
	"sync"

	"github.com/kvmkrao/hdf5/lib/db"
	"github.com/kvmkrao/hdf5/lib/db/util"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Version Types (one write of a key or scratch pad)
// --------------------------------------------------------------------------

// Version is a single value written at Index. Deleted marks a tombstone.
type Version struct {
	Value   []byte
	Index   uint64
	Deleted bool
}

// Chain holds all versions of a key ordered by ascending index.
// Chains are never modified in place, writers always build a new slice.
type Chain []Version

// At returns the version visible at readIdx
func (c Chain) At(readIdx uint64) (Version, bool) {
	// first version newer than readIdx
	i := sort.Search(len(c), func(i int) bool { return c[i].Index > readIdx })
	if i == 0 {
		return Version{}, false
	}
	return c[i-1], true
}

// Live reports whether the key holds a value at readIdx
func (c Chain) Live(readIdx uint64) bool {
	v, ok := c.At(readIdx)
	return ok && !v.Deleted
}

// With returns a copy of the chain containing v. A version with the same index is replaced.
func (c Chain) With(v Version) Chain {
	i := sort.Search(len(c), func(i int) bool { return c[i].Index >= v.Index })
	out := make(Chain, 0, len(c)+1)
	out = append(out, c[:i]...)
	out = append(out, v)
	if i < len(c) && c[i].Index == v.Index {
		i++
	}
	return append(out, c[i:]...)
}

// Prune drops every version that no read at an index >= horizon can observe.
// The second return value is false if nothing is left.
func (c Chain) Prune(horizon uint64) (Chain, bool) {
	i := sort.Search(len(c), func(i int) bool { return c[i].Index > horizon })
	if i == 0 {
		return c, true
	}

	base := i - 1
	if c[base].Deleted {
		base++
	}
	if base == 0 {
		return c, true
	}
	if base == len(c) {
		return nil, false
	}

	out := make(Chain, len(c)-base)
	copy(out, c[base:])
	return out, true
}

// ScratchVersion is a scratch pad written at Index
type ScratchVersion struct {
	Pad      db.ScratchPad
	Checksum uint64
	Index    uint64
}

// --------------------------------------------------------------------------
// Object Type
// --------------------------------------------------------------------------

// Object is a stored object with its versioned scratch pad and entries
type Object struct {
	ID      db.ObjectID
	Type    db.ObjectType
	Created uint64

	mu      sync.RWMutex
	scratch []ScratchVersion

	Entries *xsync.MapOf[string, Chain]
}

func NewObject(id db.ObjectID, typ db.ObjectType, created uint64) *Object {
	return &Object{
		ID:      id,
		Type:    typ,
		Created: created,
		Entries: xsync.NewMapOf[string, Chain](),
	}
}

// SetScratch stores the scratch pad once
func (o *Object) SetScratch(v ScratchVersion) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.scratch) > 0 {
		return db.ErrScratchSet
	}
	o.scratch = append(o.scratch, v)
	return nil
}

// Scratch returns the scratch pad visible at readIdx
func (o *Object) Scratch(readIdx uint64) (ScratchVersion, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for i := len(o.scratch) - 1; i >= 0; i-- {
		if o.scratch[i].Index <= readIdx {
			return o.scratch[i], true
		}
	}
	return ScratchVersion{}, false
}

// ScratchVersions returns a copy of all scratch pad versions
func (o *Object) ScratchVersions() []ScratchVersion {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]ScratchVersion, len(o.scratch))
	copy(out, o.scratch)
	return out
}

// --------------------------------------------------------------------------
// Shard Type (partition of the database)
// --------------------------------------------------------------------------

// Shard represents a partition of the object id space
type Shard struct {
	Objects *xsync.MapOf[db.ObjectID, *Object]
}

func NewShard() *Shard {
	return &Shard{
		Objects: xsync.NewMapOf[db.ObjectID, *Object](),
	}
}

// GetShard returns the appropriate shard for a given key
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func GetShard[T any](key util.UintKey, shards []*T) *T {
	// Shift right by 7 bits to use higher-quality bits for distribution
	shiftedKey := uint64(key) >> 7
	shardPos := shiftedKey % uint64(len(shards))
	return shards[shardPos]
}
