package store

import (
	"github.com/kvmkrao/hdf5/lib/db"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// DBFactory is a function type that creates a new db used by the store.
// This is used to abstract the creation of the db from the store implementation.
type DBFactory func() db.ObjectDB

// Mode is the access mode an object was opened with
type Mode uint8

const (
	ModeRead Mode = iota + 1
	ModeWrite
)

func (m Mode) String() string {
	switch m {
	case ModeRead:
		return "read"
	case ModeWrite:
		return "write"
	default:
		return "unknown"
	}
}

// Handle is a per-process session on an opened object.
// The zero value is UndefinedHandle.
type Handle struct {
	Cookie uint64 `json:"cookie"`
}

// UndefinedHandle marks the absence of an open session
var UndefinedHandle = Handle{}

// IsDefined reports whether the handle refers to an open session
func (h Handle) IsDefined() bool {
	return h.Cookie != 0
}

// IObjectStore is the interface to the transactional object store of one container.
// Write operations take a write transaction (wtid), read operations a read context
// (rtid). A write under wtid is visible to reads with rtid >= wtid only.
// All errors returned are of type *Error.
type IObjectStore interface {
	// CreateObject atomically creates an object. Exactly one of several racing callers
	// succeeds, the others get RetCAlreadyExists.
	CreateObject(id db.ObjectID, typ db.ObjectType, wtid uint64) (err error)
	// OpenRead opens an existing object for reading.
	OpenRead(id db.ObjectID) (h Handle, err error)
	// OpenWrite opens an existing object for reading and writing.
	OpenWrite(id db.ObjectID) (h Handle, err error)
	// Close releases a handle. Closing an unknown handle fails with RetCInvalidHandle.
	Close(h Handle) (err error)

	// SetScratch writes the scratch pad of the object. checksum 0 means none.
	SetScratch(h Handle, wtid uint64, sp db.ScratchPad, checksum uint64) (err error)
	// GetScratch reads the scratch pad and its checksum.
	GetScratch(h Handle, rtid uint64) (sp db.ScratchPad, checksum uint64, err error)

	// KVSet inserts or overwrites a key.
	KVSet(h Handle, wtid uint64, key, value []byte) (err error)
	// KVGet returns the value of a key or RetCNotFound.
	KVGet(h Handle, rtid uint64, key []byte) (value []byte, err error)
	// KVGetSize returns the stored length of a value without returning it.
	KVGetSize(h Handle, rtid uint64, key []byte) (size uint64, err error)
	// KVUnlink removes a single key.
	KVUnlink(h Handle, wtid uint64, key []byte) (err error)
	// KVCount returns the number of live keys.
	KVCount(h Handle, rtid uint64) (n uint64, err error)

	// GetDBInfo returns metadata about the database underlying the store.
	// It is not guaranteed that all fields are filled in or that the information is up-to-date!
	GetDBInfo() (info db.DatabaseInfo, err error)
}
