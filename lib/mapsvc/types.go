package mapsvc

import (
	"math"

	"github.com/kvmkrao/hdf5/lib/bulk"
	"github.com/kvmkrao/hdf5/lib/checksum"
	"github.com/kvmkrao/hdf5/lib/db"
	"github.com/kvmkrao/hdf5/lib/dtype"
	"github.com/kvmkrao/hdf5/lib/store"
)

// CountUndefined is the count reported when GetCount fails
const CountUndefined uint64 = math.MaxUint64

// Results of Exists
const (
	ExistsUnknown int8 = -1
	ExistsFalse   int8 = 0
	ExistsTrue    int8 = 1
)

// Target is the map an operation works on. If Handle is undefined the map
// is opened by ID for the duration of the operation.
type Target struct {
	ID     db.ObjectID
	Handle store.Handle
}

// KeyTypes are the memory and map type of keys
type KeyTypes struct {
	KeyMem dtype.Type
	KeyMap dtype.Type
}

// ValueTypes are the memory and map type of values
type ValueTypes struct {
	ValueMem dtype.Type
	ValueMap dtype.Type
}

// --------------------------------------------------------------------------
// Object Lifecycle
// --------------------------------------------------------------------------

type CreateRequest struct {
	// LocID and LocHandle are the group Name is relative to
	LocID     db.ObjectID
	LocHandle store.Handle
	Name      string
	// MapID, MdkvID and AttrkvID are the desired ids, undefined ids are allocated
	MapID    db.ObjectID
	MdkvID   db.ObjectID
	AttrkvID db.ObjectID
	KeyType  dtype.Type
	ValType  dtype.Type
	Plist    []byte
	WTID     uint64
	RTID     uint64
	Scope    checksum.Scope
	// Collective opens the map instead of failing when another creator won
	Collective bool
}

type CreateResponse struct {
	ID     db.ObjectID
	Handle store.Handle
	// Created is false if the map existed and was opened (collective mode)
	Created bool
}

type OpenRequest struct {
	LocID     db.ObjectID
	LocHandle store.Handle
	Name      string
	RTID      uint64
	Scope     checksum.Scope
}

type OpenResponse struct {
	ID        db.ObjectID
	Handle    store.Handle
	KeyType   dtype.Type
	ValType   dtype.Type
	Plist     []byte
	LinkCount uint64
	MdkvID    db.ObjectID
	AttrkvID  db.ObjectID
}

type CloseRequest struct {
	Handle store.Handle
}

// --------------------------------------------------------------------------
// Entries
// --------------------------------------------------------------------------

type SetRequest struct {
	Target
	KeyTypes
	ValueTypes
	Key []byte
	// Value references the client buffer holding the value
	Value bulk.Descriptor
	// Checksum of the value as computed by the client
	Checksum uint64
	WTID     uint64
	RTID     uint64
	Scope    checksum.Scope
}

type GetRequest struct {
	Target
	KeyTypes
	ValueTypes
	Key []byte
	// ValueSize is the capacity of the client buffer, 0 for variable length
	// values asks for the size only
	ValueSize      uint64
	VariableLength bool
	Value          bulk.Descriptor
	RTID           uint64
	Scope          checksum.Scope
}

type GetResponse struct {
	Size     uint64
	Checksum uint64
}

type CountRequest struct {
	Target
	RTID uint64
}

type CountResponse struct {
	Count uint64
}

type ExistsRequest struct {
	Target
	KeyTypes
	Key  []byte
	RTID uint64
}

type ExistsResponse struct {
	Exists int8
}

type DeleteRequest struct {
	Target
	KeyTypes
	Key  []byte
	WTID uint64
	RTID uint64
}
