package store

import (
	"sync/atomic"

	"github.com/kvmkrao/hdf5/lib/db"
	"github.com/puzpuzpuz/xsync/v3"
)

// openObject is the state behind a handle
type openObject struct {
	id   db.ObjectID
	mode Mode
}

// HandleTable issues handles and maps them back to object ids.
// Handles are local to the process that opened them, they are never replicated.
type HandleTable struct {
	next atomic.Uint64
	open *xsync.MapOf[uint64, openObject]
}

func NewHandleTable() *HandleTable {
	return &HandleTable{open: xsync.NewMapOf[uint64, openObject]()}
}

// Open registers a new session on id
func (t *HandleTable) Open(id db.ObjectID, mode Mode) Handle {
	cookie := t.next.Add(1)
	t.open.Store(cookie, openObject{id: id, mode: mode})
	return Handle{Cookie: cookie}
}

// Resolve returns the object id of an open handle. If write is set the handle
// must have been opened for writing.
func (t *HandleTable) Resolve(h Handle, write bool) (db.ObjectID, error) {
	if !h.IsDefined() {
		return db.IDUndefined, NewError(RetCInvalidHandle, "undefined handle")
	}
	o, ok := t.open.Load(h.Cookie)
	if !ok {
		return db.IDUndefined, Errorf(RetCInvalidHandle, "handle %d is not open", h.Cookie)
	}
	if write && o.mode != ModeWrite {
		return db.IDUndefined, Errorf(RetCInvalidHandle, "handle %d on object %d is opened for %s", h.Cookie, o.id, o.mode)
	}
	return o.id, nil
}

// Close forgets a handle
func (t *HandleTable) Close(h Handle) error {
	if !h.IsDefined() {
		return NewError(RetCInvalidHandle, "undefined handle")
	}
	if _, ok := t.open.LoadAndDelete(h.Cookie); !ok {
		return Errorf(RetCInvalidHandle, "handle %d is not open", h.Cookie)
	}
	return nil
}

// Len returns the number of open handles
func (t *HandleTable) Len() int {
	return t.open.Size()
}
