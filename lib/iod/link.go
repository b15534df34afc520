package iod

import (
	"encoding/binary"
	"fmt"

	"github.com/kvmkrao/hdf5/lib/db"
	"github.com/kvmkrao/hdf5/lib/store"
)

// LinkType is the kind of a link stored in a group
type LinkType uint8

const (
	LinkHard LinkType = iota + 1
	LinkSoft
)

func (t LinkType) String() string {
	switch t {
	case LinkHard:
		return "hard"
	case LinkSoft:
		return "soft"
	default:
		return "unknown"
	}
}

// Link is the value of a group entry
type Link struct {
	Type   LinkType
	Target db.ObjectID
}

const linkSize = 9

// Encode returns the stored form: type (1), target id (8, little endian)
func (l Link) Encode() []byte {
	buf := make([]byte, linkSize)
	buf[0] = byte(l.Type)
	binary.LittleEndian.PutUint64(buf[1:], uint64(l.Target))
	return buf
}

// DecodeLink parses a stored link
func DecodeLink(buf []byte) (Link, error) {
	if len(buf) != linkSize {
		return Link{}, store.Errorf(store.RetCDataCorruption, "link value has %d bytes, want %d", len(buf), linkSize)
	}
	l := Link{Type: LinkType(buf[0]), Target: db.ObjectID(binary.LittleEndian.Uint64(buf[1:]))}
	if l.Type != LinkHard && l.Type != LinkSoft {
		return Link{}, store.Errorf(store.RetCDataCorruption, "unknown link type %d", buf[0])
	}
	return l, nil
}

// InsertNewLink adds a link called name to the group opened as h
func InsertNewLink(st store.IObjectStore, h store.Handle, wtid uint64, name string, link Link) error {
	if err := st.KVSet(h, wtid, []byte(name), link.Encode()); err != nil {
		return store.Wrap(err, store.RetCUnknown, fmt.Sprintf("insert link %q", name))
	}
	return nil
}

// GetLink reads the link called name from the group opened as h
func GetLink(st store.IObjectStore, h store.Handle, rtid uint64, name string) (Link, error) {
	val, err := st.KVGet(h, rtid, []byte(name))
	if err != nil {
		return Link{}, store.Wrap(err, store.RetCUnknown, fmt.Sprintf("link %q", name))
	}
	return DecodeLink(val)
}
