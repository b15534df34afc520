package db

import (
	"errors"
	"io"
	"math"
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplMaple Implementation = "maple"
)

// ObjectID addresses an object inside a container
type ObjectID uint64

const (
	// RootID is the id of the root group of every container
	RootID ObjectID = 0
	// IDUndefined is returned wherever no object id could be determined
	IDUndefined ObjectID = math.MaxUint64
)

// IsDefined reports whether the id is not the undefined sentinel
func (id ObjectID) IsDefined() bool {
	return id != IDUndefined
}

// ObjectType is the storage class of an object
type ObjectType uint8

const (
	ObjectTypeKV ObjectType = iota + 1
	ObjectTypeArray
	ObjectTypeBlob
)

func (t ObjectType) String() string {
	switch t {
	case ObjectTypeKV:
		return "KV"
	case ObjectTypeArray:
		return "Array"
	case ObjectTypeBlob:
		return "Blob"
	default:
		return "Unknown"
	}
}

// ScratchPad is the fixed size record stored with an object at creation.
// Slot 0 holds the metadata container, slot 1 the attribute container.
type ScratchPad [4]ObjectID

const (
	ScratchMetadata = 0
	ScratchAttrs    = 1
)

// NewScratchPad returns a scratch pad pointing to the given containers with unused reserved slots
func NewScratchPad(mdkv, attrkv ObjectID) ScratchPad {
	return ScratchPad{mdkv, attrkv, IDUndefined, IDUndefined}
}

// Feature represents database features as bit flags
type Feature uint64

const (
	FeatureCreate     Feature = 1 << iota // Support for CreateObject operations
	FeatureScratchPad                     // Support for scratch pad operations
	FeatureSet                            // Support for Set operations
	FeatureGet                            // Support for Get operations
	FeatureDelete                         // Support for Delete operations
	FeatureCount                          // Support for Count operations
	FeatureVersioned                      // Reads are answered against a read index
	FeatureSave                           // Support for Save operations
	FeatureLoad                           // Support for Load operations
	FeaturePrune                          // Unreachable versions are pruned in the background
)

func (f Feature) String() string {
	switch f {
	case FeatureCreate:
		return "Create"
	case FeatureScratchPad:
		return "ScratchPad"
	case FeatureSet:
		return "Set"
	case FeatureGet:
		return "Get"
	case FeatureDelete:
		return "Delete"
	case FeatureCount:
		return "Count"
	case FeatureVersioned:
		return "Versioned"
	case FeatureSave:
		return "Save"
	case FeatureLoad:
		return "Load"
	case FeaturePrune:
		return "Prune"
	default:
		return "Unknown"
	}
}

type DatabaseInfo struct {
	SizeBytes         int            `json:"size_bytes"`
	DbType            Implementation `json:"db_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

var (
	ErrObjectExists   = errors.New("object already exists")
	ErrObjectNotFound = errors.New("object not found")
	ErrKeyNotFound    = errors.New("key not found")
	ErrScratchMissing = errors.New("scratch pad not set")
	ErrScratchSet     = errors.New("scratch pad already set")
	ErrWrongType      = errors.New("operation not supported by object type")
)

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// ObjectDB defines an interface for multi-version object database implementations.
//
// Every write carries a write index, every read a read index. A write made at
// index w is visible to all reads with a read index >= w and invisible to reads
// with a smaller index. Object existence itself is not versioned.
type ObjectDB interface {

	// --------------------------------------------------------------------------
	// Object Operations
	// --------------------------------------------------------------------------

	// CreateObject creates an object with the given id. If an object with this id
	// already exists ErrObjectExists is returned and nothing is changed. Of any number
	// of concurrent calls for the same id exactly one succeeds.
	CreateObject(id ObjectID, typ ObjectType, writeIdx uint64) (err error)

	// HasObject returns the type of the object and whether it exists.
	HasObject(id ObjectID) (typ ObjectType, ok bool)

	// SetScratch stores the scratch pad of an object. A checksum of 0 means none.
	// The scratch pad can only be written once (ErrScratchSet).
	SetScratch(id ObjectID, sp ScratchPad, checksum uint64, writeIdx uint64) (err error)

	// GetScratch returns the scratch pad and its checksum as seen at readIdx.
	GetScratch(id ObjectID, readIdx uint64) (sp ScratchPad, checksum uint64, err error)

	// --------------------------------------------------------------------------
	// KV Operations
	// --------------------------------------------------------------------------

	// Set inserts a new version of key in the KV object id.
	Set(id ObjectID, key string, value []byte, writeIdx uint64) (err error)

	// Get retrieves the value of key as seen at readIdx. ErrKeyNotFound is returned
	// if the key does not exist at that index. The returned value is a copy.
	Get(id ObjectID, key string, readIdx uint64) (value []byte, err error)

	// Delete writes a tombstone for key. ErrKeyNotFound is returned if the key
	// is not live at writeIdx.
	Delete(id ObjectID, key string, writeIdx uint64) (err error)

	// Count returns the number of live keys in the KV object as seen at readIdx.
	Count(id ObjectID, readIdx uint64) (n uint64, err error)

	// --------------------------------------------------------------------------
	// Persistence Operations
	// --------------------------------------------------------------------------

	// Save persists the current state of the database to the provided io.Writer.
	Save(w io.Writer) (err error)

	// Load restores the database state data provided by an io.Reader.
	Load(r io.Reader) (err error)

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the database implementation supports the specified feature.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// --------------------------------------------------------------------------
	// Write Index Operations
	// --------------------------------------------------------------------------

	// SetWriteIdx sets the current index of the database only if the provided index is greater than the current index.
	SetWriteIdx(index uint64)

	// WriteIdx returns the current index of the database.
	WriteIdx() (index uint64)

	// Close closes the database.
	Close() (err error)
}
