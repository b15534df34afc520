package iod

import (
	"encoding/binary"
	"fmt"

	"github.com/kvmkrao/hdf5/lib/dtype"
	"github.com/kvmkrao/hdf5/lib/store"
)

// Keys of the metadata container
const (
	KeyPlist         = "object_create_plist"
	KeyLinkCount     = "link_count"
	KeyObjectType    = "object_type"
	KeyKeyDatatype   = "key_datatype"
	KeyValueDatatype = "value_datatype"
)

// ObjectKind is the object type tag stored in the metadata container
type ObjectKind uint8

const (
	KindGroup ObjectKind = iota + 1
	KindDataset
	KindDatatype
	KindMap
)

func (k ObjectKind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindDataset:
		return "dataset"
	case KindDatatype:
		return "datatype"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

func insert(st store.IObjectStore, h store.Handle, wtid uint64, key string, value []byte) error {
	if err := st.KVSet(h, wtid, []byte(key), value); err != nil {
		return store.Wrap(err, store.RetCUnknown, "insert metadata "+key)
	}
	return nil
}

func get(st store.IObjectStore, h store.Handle, rtid uint64, key string) ([]byte, error) {
	val, err := st.KVGet(h, rtid, []byte(key))
	if err != nil {
		return nil, store.Wrap(err, store.RetCUnknown, "metadata "+key)
	}
	return val, nil
}

// InsertPlist stores the creation properties. They are opaque to the server.
func InsertPlist(st store.IObjectStore, h store.Handle, wtid uint64, plist []byte) error {
	if plist == nil {
		plist = []byte{}
	}
	return insert(st, h, wtid, KeyPlist, plist)
}

func InsertLinkCount(st store.IObjectStore, h store.Handle, wtid uint64, n uint64) error {
	return insert(st, h, wtid, KeyLinkCount, binary.LittleEndian.AppendUint64(nil, n))
}

func InsertObjectType(st store.IObjectStore, h store.Handle, wtid uint64, kind ObjectKind) error {
	return insert(st, h, wtid, KeyObjectType, []byte{byte(kind)})
}

// InsertDatatype stores a type descriptor under key (KeyKeyDatatype or KeyValueDatatype)
func InsertDatatype(st store.IObjectStore, h store.Handle, wtid uint64, key string, t dtype.Type) error {
	return insert(st, h, wtid, key, t.Encode())
}

func GetPlist(st store.IObjectStore, h store.Handle, rtid uint64) ([]byte, error) {
	return get(st, h, rtid, KeyPlist)
}

func GetLinkCount(st store.IObjectStore, h store.Handle, rtid uint64) (uint64, error) {
	val, err := get(st, h, rtid, KeyLinkCount)
	if err != nil {
		return 0, err
	}
	if len(val) != 8 {
		return 0, store.Errorf(store.RetCDataCorruption, "link count has %d bytes", len(val))
	}
	return binary.LittleEndian.Uint64(val), nil
}

func GetObjectType(st store.IObjectStore, h store.Handle, rtid uint64) (ObjectKind, error) {
	val, err := get(st, h, rtid, KeyObjectType)
	if err != nil {
		return 0, err
	}
	if len(val) != 1 {
		return 0, store.Errorf(store.RetCDataCorruption, "object type has %d bytes", len(val))
	}
	return ObjectKind(val[0]), nil
}

func GetDatatype(st store.IObjectStore, h store.Handle, rtid uint64, key string) (dtype.Type, error) {
	val, err := get(st, h, rtid, key)
	if err != nil {
		return dtype.Type{}, err
	}
	t, err := dtype.Decode(val)
	if err != nil {
		return dtype.Type{}, store.Errorf(store.RetCDataCorruption, "%s: %v", key, err)
	}
	return t, nil
}

// Metadata is the content of a metadata container
type Metadata struct {
	Plist     []byte
	LinkCount uint64
	Kind      ObjectKind
	KeyType   dtype.Type
	ValueType dtype.Type
}

// ReadMetadata reads the metadata of an object from its metadata container opened as h.
// Datatypes are only read for maps.
func ReadMetadata(st store.IObjectStore, h store.Handle, rtid uint64) (md Metadata, err error) {
	if md.Plist, err = GetPlist(st, h, rtid); err != nil {
		return md, err
	}
	if md.LinkCount, err = GetLinkCount(st, h, rtid); err != nil {
		return md, err
	}
	if md.Kind, err = GetObjectType(st, h, rtid); err != nil {
		return md, err
	}
	if md.Kind != KindMap {
		return md, nil
	}
	if md.KeyType, err = GetDatatype(st, h, rtid, KeyKeyDatatype); err != nil {
		return md, err
	}
	if md.ValueType, err = GetDatatype(st, h, rtid, KeyValueDatatype); err != nil {
		return md, err
	}
	return md, nil
}

func (md Metadata) String() string {
	if md.Kind == KindMap {
		return fmt.Sprintf("%s (links=%d, key=%s, value=%s, plist=%d bytes)", md.Kind, md.LinkCount, md.KeyType, md.ValueType, len(md.Plist))
	}
	return fmt.Sprintf("%s (links=%d, plist=%d bytes)", md.Kind, md.LinkCount, len(md.Plist))
}
