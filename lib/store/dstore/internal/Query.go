package internal

import (
	"github.com/kvmkrao/hdf5/lib/db"
)

// QueryType defines the possible queries for the state machine.
type QueryType uint8

const (
	QueryTHasObject  QueryType = iota // Check whether an object exists.
	QueryTGetScratch                  // Read the scratch pad of an object.
	QueryTKVGet                       // Read the value of a key.
	QueryTKVCount                     // Count the live keys of a KV object.
	QueryTGetDBInfo                   // Retrieve metadata about the database underlying the machine.
)

func (q QueryType) String() string {
	switch q {
	case QueryTHasObject:
		return "HasObject"
	case QueryTGetScratch:
		return "GetScratch"
	case QueryTKVGet:
		return "KVGet"
	case QueryTKVCount:
		return "KVCount"
	case QueryTGetDBInfo:
		return "GetDBInfo"
	default:
		return "Unknown"
	}
}

// Query defines the structure for lookup requests (read-only) sent via SyncRead or StaleRead
type Query struct {
	Type   QueryType
	Object db.ObjectID
	Txn    uint64 // read context
	Key    string
}

// QueryResult is the result of all queries except QueryTGetDBInfo.
// Err is the database error, it is reported in the result rather than as
// the error of the lookup so it survives the read path unchanged.
type QueryResult struct {
	Ok       bool
	Value    []byte
	Pad      db.ScratchPad
	Checksum uint64
	Count    uint64
	Err      error
}
