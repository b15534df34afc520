package client

import (
	"github.com/kvmkrao/hdf5/lib/checksum"
	"github.com/kvmkrao/hdf5/lib/mapsvc"
	"github.com/kvmkrao/hdf5/lib/store"
)

// Tx is the transaction context of an entry operation
type Tx struct {
	// WTID is the write transaction of Set and Delete
	WTID uint64
	// RTID is the read context
	RTID uint64
	// Scope selects which checksums are computed and verified
	Scope checksum.Scope
}

// IMapClient is the client side of the map service.
// Values are passed as plain byte slices in the memory type of the call, the
// client exposes them to the server for the duration of the call.
type IMapClient interface {
	// Create creates a map at req.Name relative to req.LocID and opens it for writing.
	// Undefined ids are allocated by the server.
	Create(req mapsvc.CreateRequest) (mapsvc.CreateResponse, error)

	// Open opens an existing map for reading and returns its types and metadata
	Open(req mapsvc.OpenRequest) (mapsvc.OpenResponse, error)

	// Set stores value under key. With checksum.ScopeTransfer in tx.Scope the
	// checksum of value is sent along and verified by the server.
	Set(target mapsvc.Target, kt mapsvc.KeyTypes, vt mapsvc.ValueTypes, key, value []byte, tx Tx) error

	// Get returns the value of key converted to vt.ValueMem.
	// For fixed size types capacity is the size of the receiving buffer, 0 means one
	// element of vt.ValueMem. Variable length values are sized by the server first and
	// capacity is ignored. With checksum.ScopeTransfer the value is verified.
	Get(target mapsvc.Target, kt mapsvc.KeyTypes, vt mapsvc.ValueTypes, key []byte, capacity uint64, tx Tx) ([]byte, error)

	// GetCount returns the number of entries visible at rtid
	GetCount(target mapsvc.Target, rtid uint64) (uint64, error)

	// Exists reports whether key has a value at rtid
	Exists(target mapsvc.Target, kt mapsvc.KeyTypes, key []byte, rtid uint64) (bool, error)

	// Delete removes key under tx.WTID
	Delete(target mapsvc.Target, kt mapsvc.KeyTypes, key []byte, tx Tx) error

	// Close releases a handle returned by Create or Open
	Close(h store.Handle) error

	// ContainerInfo returns the engine statistics of the container as JSON
	ContainerInfo() ([]byte, error)

	// Shutdown closes the underlying transport
	Shutdown() error
}
