package mapsvc

import (
	"context"

	"github.com/kvmkrao/hdf5/lib/db"
	"github.com/kvmkrao/hdf5/lib/iod"
	"github.com/kvmkrao/hdf5/lib/store"
)

// Create creates a map called by the last component of req.Name below the location
// group and links it there. If another creator won the race for a requested map id,
// the map is opened instead when req.Collective is set, otherwise RetCAlreadyExists
// is returned. Ids allocated by the service are retried on collisions.
// On failure the response carries IDUndefined and UndefinedHandle.
func (s *Service) Create(ctx context.Context, req CreateRequest) (resp CreateResponse, err error) {
	sc := newScope(s.st, "create")
	defer sc.done(&err)
	defer func() {
		if err != nil {
			resp = CreateResponse{ID: db.IDUndefined, Handle: store.UndefinedHandle}
		}
	}()

	// the traversal fails if an intermediate group does not exist
	parent, err := iod.Traverse(s.st, req.LocID, req.LocHandle, req.Name, req.RTID)
	if err != nil {
		return resp, err
	}
	sc.location(parent)

	// the types are stored and must decode again on Open
	if err := req.KeyType.Validate(); err != nil {
		return resp, store.Errorf(store.RetCInvalidOperation, "invalid key datatype: %v", err)
	}
	if err := req.ValType.Validate(); err != nil {
		return resp, store.Errorf(store.RetCInvalidOperation, "invalid value datatype: %v", err)
	}

	id, created, err := s.createMapObject(req)
	if err != nil {
		return resp, err
	}

	h, err := s.st.OpenWrite(id)
	if err != nil {
		return resp, store.Wrap(err, store.RetCUnknown, "open map")
	}
	sc.handleOnFailure(h, "map")

	// only the creator sets up the scratch pad, metadata and link
	if created {
		if err := s.setupMap(h, req, parent, id); err != nil {
			// the object exists but can never be opened by path
			Logger.Errorf("map %d (%s) is orphaned, setup failed after creation: %v", id, req.Name, err)
			return resp, err
		}
	}

	return CreateResponse{ID: id, Handle: h, Created: created}, nil
}

// createMapObject creates the KV object of a map. An allocated id is retried on
// collisions and never opens an existing object. A requested id that already exists
// is only accepted (created = false) when req.Collective is set.
func (s *Service) createMapObject(req CreateRequest) (id db.ObjectID, created bool, err error) {
	if !req.MapID.IsDefined() {
		id, err = iod.CreateContainer(s.st, s.alloc, req.WTID)
		if err != nil {
			return db.IDUndefined, false, err
		}
		return id, true, nil
	}

	id = req.MapID
	err = s.st.CreateObject(id, db.ObjectTypeKV, req.WTID)
	switch {
	case err == nil:
		return id, true, nil
	case store.CodeOf(err) == store.RetCAlreadyExists && req.Collective:
		Logger.Debugf("map %d was created by another process, opening it", id)
		return id, false, nil
	case store.CodeOf(err) == store.RetCAlreadyExists:
		return db.IDUndefined, false, store.Errorf(store.RetCAlreadyExists, "map %d (%s) already exists", id, req.Name)
	default:
		return db.IDUndefined, false, store.Wrap(err, store.RetCUnknown, "create map")
	}
}

func (s *Service) setupMap(h store.Handle, req CreateRequest, parent iod.Location, id db.ObjectID) error {
	mdkv, err := s.createContainer(req.MdkvID, req.WTID)
	if err != nil {
		return err
	}
	attrkv, err := s.createContainer(req.AttrkvID, req.WTID)
	if err != nil {
		return err
	}

	sp := db.NewScratchPad(mdkv, attrkv)
	if err := iod.WriteScratchPad(s.st, h, req.WTID, sp, req.Scope); err != nil {
		return err
	}

	err = iod.WriteMetadata(s.st, mdkv, req.WTID, req.Plist, iod.KindMap, func(mh store.Handle) error {
		if err := iod.InsertDatatype(s.st, mh, req.WTID, iod.KeyKeyDatatype, req.KeyType); err != nil {
			return err
		}
		return iod.InsertDatatype(s.st, mh, req.WTID, iod.KeyValueDatatype, req.ValType)
	})
	if err != nil {
		return err
	}

	return iod.InsertNewLink(s.st, parent.Handle, req.WTID, parent.Name, iod.Link{Type: iod.LinkHard, Target: id})
}

// createContainer creates a metadata or attribute container, with the desired id if defined
func (s *Service) createContainer(desired db.ObjectID, wtid uint64) (db.ObjectID, error) {
	if !desired.IsDefined() {
		return iod.CreateContainer(s.st, s.alloc, wtid)
	}
	if err := s.st.CreateObject(desired, db.ObjectTypeKV, wtid); err != nil {
		return db.IDUndefined, store.Wrap(err, store.RetCUnknown, "create container")
	}
	return desired, nil
}

// Open resolves req.Name, opens the map for writing and reads its scratch pad and
// metadata. With ScopeIOD a stored scratch pad checksum is verified first.
func (s *Service) Open(ctx context.Context, req OpenRequest) (resp OpenResponse, err error) {
	sc := newScope(s.st, "open")
	defer sc.done(&err)
	defer func() {
		if err != nil {
			resp = OpenResponse{ID: db.IDUndefined, Handle: store.UndefinedHandle, MdkvID: db.IDUndefined, AttrkvID: db.IDUndefined}
		}
	}()

	id, h, err := iod.OpenPath(s.st, req.LocID, req.LocHandle, req.Name, req.RTID)
	if err != nil {
		return resp, err
	}
	sc.handleOnFailure(h, "map")

	sp, err := iod.ReadScratchPad(s.st, h, req.RTID, req.Scope)
	if err != nil {
		return resp, err
	}

	mh, err := s.st.OpenRead(sp[db.ScratchMetadata])
	if err != nil {
		return resp, store.Wrap(err, store.RetCUnknown, "open metadata container")
	}
	sc.handle(mh, "metadata container")

	md, err := iod.ReadMetadata(s.st, mh, req.RTID)
	if err != nil {
		return resp, err
	}
	if md.Kind != iod.KindMap {
		return resp, store.Errorf(store.RetCInvalidOperation, "%s is a %s, not a map", req.Name, md.Kind)
	}

	return OpenResponse{
		ID:        id,
		Handle:    h,
		KeyType:   md.KeyType,
		ValType:   md.ValueType,
		Plist:     md.Plist,
		LinkCount: md.LinkCount,
		MdkvID:    sp[db.ScratchMetadata],
		AttrkvID:  sp[db.ScratchAttrs],
	}, nil
}

// Close releases a handle. Without a handle there is nothing that can be closed,
// the call is logged and still succeeds.
func (s *Service) Close(ctx context.Context, req CloseRequest) error {
	if !req.Handle.IsDefined() {
		Logger.Warningf("close called without a map handle, nothing to close")
		return nil
	}
	if err := s.st.Close(req.Handle); err != nil {
		Logger.Warningf("map close failed: %v", err)
		return store.Wrap(err, store.RetCUnknown, "close map")
	}
	return nil
}
