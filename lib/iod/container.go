package iod

import (
	"sync/atomic"

	"github.com/kvmkrao/hdf5/lib/checksum"
	"github.com/kvmkrao/hdf5/lib/db"
	"github.com/kvmkrao/hdf5/lib/db/util"
	"github.com/kvmkrao/hdf5/lib/store"
)

// --------------------------------------------------------------------------
// Object ID Allocation
// --------------------------------------------------------------------------

// IDAllocator hands out object ids that are unique for one seed.
// Allocators with different seeds are very unlikely to collide, and a collision
// is detected by CreateObject anyway.
type IDAllocator struct {
	seed uint64
	next atomic.Uint64
}

// NewIDAllocator creates an allocator. A seed of 0 picks a random one.
func NewIDAllocator(seed uint64) *IDAllocator {
	if seed == 0 {
		seed = util.GenerateSeed()
	}
	return &IDAllocator{seed: seed}
}

// Next returns a fresh id, never RootID or IDUndefined
func (a *IDAllocator) Next() db.ObjectID {
	for {
		id := db.ObjectID(util.HashID(a.next.Add(1), a.seed))
		if id != db.RootID && id.IsDefined() {
			return id
		}
	}
}

// --------------------------------------------------------------------------
// Object Setup
// --------------------------------------------------------------------------

// maxAllocAttempts bounds the retries on id collisions
const maxAllocAttempts = 8

// CreateContainer creates an empty KV object with a fresh id from alloc
func CreateContainer(st store.IObjectStore, alloc *IDAllocator, wtid uint64) (db.ObjectID, error) {
	var err error
	for range maxAllocAttempts {
		id := alloc.Next()
		if err = st.CreateObject(id, db.ObjectTypeKV, wtid); err == nil {
			return id, nil
		}
		if store.CodeOf(err) != store.RetCAlreadyExists {
			break
		}
	}
	return db.IDUndefined, store.Wrap(err, store.RetCUnknown, "create container")
}

// WriteScratchPad writes sp to the object opened as h, with a checksum if scope has ScopeIOD
func WriteScratchPad(st store.IObjectStore, h store.Handle, wtid uint64, sp db.ScratchPad, scope checksum.Scope) error {
	cs := checksum.None
	if scope.Has(checksum.ScopeIOD) {
		cs = checksum.ScratchPad(sp)
	}
	if err := st.SetScratch(h, wtid, sp, cs); err != nil {
		return store.Wrap(err, store.RetCUnknown, "set scratch pad")
	}
	return nil
}

// ReadScratchPad reads the scratch pad of the object opened as h. If scope has
// ScopeIOD and a checksum was stored, it must match or RetCIntegrityError is returned.
func ReadScratchPad(st store.IObjectStore, h store.Handle, rtid uint64, scope checksum.Scope) (db.ScratchPad, error) {
	sp, cs, err := st.GetScratch(h, rtid)
	if err != nil {
		return sp, store.Wrap(err, store.RetCUnknown, "get scratch pad")
	}
	if cs != checksum.None && scope.Has(checksum.ScopeIOD) && !checksum.VerifyScratchPad(sp, cs) {
		return sp, store.Errorf(store.RetCIntegrityError, "scratch pad failed integrity check (checksum %#x)", cs)
	}
	return sp, nil
}

// WriteMetadata opens the metadata container mdkv and stores plist, a link count of 1
// and kind. extra may add more entries while the container is open.
func WriteMetadata(st store.IObjectStore, mdkv db.ObjectID, wtid uint64, plist []byte, kind ObjectKind, extra func(h store.Handle) error) (err error) {
	h, err := st.OpenWrite(mdkv)
	if err != nil {
		return store.Wrap(err, store.RetCUnknown, "open metadata container")
	}
	defer func() {
		if cerr := st.Close(h); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err = InsertPlist(st, h, wtid, plist); err != nil {
		return err
	}
	if err = InsertLinkCount(st, h, wtid, 1); err != nil {
		return err
	}
	if err = InsertObjectType(st, h, wtid, kind); err != nil {
		return err
	}
	if extra != nil {
		return extra(h)
	}
	return nil
}

// setupObject creates the metadata and attribute containers of the object opened as h,
// writes its scratch pad and metadata
func setupObject(st store.IObjectStore, alloc *IDAllocator, h store.Handle, wtid uint64, scope checksum.Scope, kind ObjectKind, plist []byte) (db.ScratchPad, error) {
	mdkv, err := CreateContainer(st, alloc, wtid)
	if err != nil {
		return db.ScratchPad{}, err
	}
	attrkv, err := CreateContainer(st, alloc, wtid)
	if err != nil {
		return db.ScratchPad{}, err
	}

	sp := db.NewScratchPad(mdkv, attrkv)
	if err := WriteScratchPad(st, h, wtid, sp, scope); err != nil {
		return sp, err
	}
	return sp, WriteMetadata(st, mdkv, wtid, plist, kind, nil)
}

// --------------------------------------------------------------------------
// Groups
// --------------------------------------------------------------------------

// InitContainer creates the root group of a container unless it exists already.
// It is safe to call from several servers of the same container.
func InitContainer(st store.IObjectStore, alloc *IDAllocator, wtid uint64, scope checksum.Scope) error {
	err := st.CreateObject(db.RootID, db.ObjectTypeKV, wtid)
	if store.CodeOf(err) == store.RetCAlreadyExists {
		Logger.Debugf("root group exists")
		return nil
	}
	if err != nil {
		return store.Wrap(err, store.RetCUnknown, "create root group")
	}

	h, err := st.OpenWrite(db.RootID)
	if err != nil {
		return store.Wrap(err, store.RetCUnknown, "open root group")
	}
	defer closeQuietly(st, h)

	sp, err := setupObject(st, alloc, h, wtid, scope, KindGroup, nil)
	if err != nil {
		return err
	}
	Logger.Infof("created root group (metadata %d, attributes %d)", sp[db.ScratchMetadata], sp[db.ScratchAttrs])
	return nil
}

// CreateGroup creates a group called by the last component of path below loc and
// links it into its parent. It returns the id of the new group.
func CreateGroup(st store.IObjectStore, alloc *IDAllocator, loc db.ObjectID, locHandle store.Handle, path string, wtid, rtid uint64, scope checksum.Scope) (db.ObjectID, error) {
	parent, err := Traverse(st, loc, locHandle, path, rtid)
	if err != nil {
		return db.IDUndefined, err
	}
	defer func() {
		if err := parent.Close(st); err != nil {
			Logger.Warningf("failed to close group %d: %v", parent.ID, err)
		}
	}()

	var id db.ObjectID
	for range maxAllocAttempts {
		id = alloc.Next()
		if err = st.CreateObject(id, db.ObjectTypeKV, wtid); store.CodeOf(err) != store.RetCAlreadyExists {
			break
		}
	}
	if err != nil {
		return db.IDUndefined, store.Wrap(err, store.RetCUnknown, "create group")
	}

	h, err := st.OpenWrite(id)
	if err != nil {
		return db.IDUndefined, store.Wrap(err, store.RetCUnknown, "open group")
	}
	defer closeQuietly(st, h)

	if _, err := setupObject(st, alloc, h, wtid, scope, KindGroup, nil); err != nil {
		return db.IDUndefined, err
	}
	if err := InsertNewLink(st, parent.Handle, wtid, parent.Name, Link{Type: LinkHard, Target: id}); err != nil {
		return db.IDUndefined, err
	}
	return id, nil
}
