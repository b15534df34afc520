package lstore

import (
	"github.com/kvmkrao/hdf5/lib/db"
	"github.com/kvmkrao/hdf5/lib/store"
)

type storeImpl struct {
	db      db.ObjectDB
	handles *store.HandleTable
}

// NewLocalStore creates a new local store instance.
// This store implementation is not distributed and only works on a single node.
func NewLocalStore(factory store.DBFactory) store.IObjectStore {
	return &storeImpl{
		db:      factory(),
		handles: store.NewHandleTable(),
	}
}

// require fails with RetCUnsupportedOperation if the db lacks a feature
func (s *storeImpl) require(feature db.Feature) error {
	if !s.db.SupportsFeature(feature) {
		return store.Errorf(store.RetCUnsupportedOperation, "%s operation is not supported", feature)
	}
	return nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) CreateObject(id db.ObjectID, typ db.ObjectType, wtid uint64) error {
	if err := s.require(db.FeatureCreate); err != nil {
		return err
	}
	return store.FromDB(s.db.CreateObject(id, typ, wtid))
}

func (s *storeImpl) open(id db.ObjectID, mode store.Mode) (store.Handle, error) {
	if _, ok := s.db.HasObject(id); !ok {
		return store.UndefinedHandle, store.Errorf(store.RetCNotFound, "object %d does not exist", id)
	}
	return s.handles.Open(id, mode), nil
}

func (s *storeImpl) OpenRead(id db.ObjectID) (store.Handle, error) {
	return s.open(id, store.ModeRead)
}

func (s *storeImpl) OpenWrite(id db.ObjectID) (store.Handle, error) {
	return s.open(id, store.ModeWrite)
}

func (s *storeImpl) Close(h store.Handle) error {
	return s.handles.Close(h)
}

func (s *storeImpl) SetScratch(h store.Handle, wtid uint64, sp db.ScratchPad, checksum uint64) error {
	if err := s.require(db.FeatureScratchPad); err != nil {
		return err
	}
	id, err := s.handles.Resolve(h, true)
	if err != nil {
		return err
	}
	return store.FromDB(s.db.SetScratch(id, sp, checksum, wtid))
}

func (s *storeImpl) GetScratch(h store.Handle, rtid uint64) (db.ScratchPad, uint64, error) {
	if err := s.require(db.FeatureScratchPad); err != nil {
		return db.ScratchPad{}, 0, err
	}
	id, err := s.handles.Resolve(h, false)
	if err != nil {
		return db.ScratchPad{}, 0, err
	}
	sp, cs, err := s.db.GetScratch(id, rtid)
	return sp, cs, store.FromDB(err)
}

func (s *storeImpl) KVSet(h store.Handle, wtid uint64, key, value []byte) error {
	if err := s.require(db.FeatureSet); err != nil {
		return err
	}
	id, err := s.handles.Resolve(h, true)
	if err != nil {
		return err
	}
	return store.FromDB(s.db.Set(id, string(key), value, wtid))
}

func (s *storeImpl) KVGet(h store.Handle, rtid uint64, key []byte) ([]byte, error) {
	if err := s.require(db.FeatureGet); err != nil {
		return nil, err
	}
	id, err := s.handles.Resolve(h, false)
	if err != nil {
		return nil, err
	}
	val, err := s.db.Get(id, string(key), rtid)
	return val, store.FromDB(err)
}

func (s *storeImpl) KVGetSize(h store.Handle, rtid uint64, key []byte) (uint64, error) {
	val, err := s.KVGet(h, rtid, key)
	if err != nil {
		return 0, err
	}
	return uint64(len(val)), nil
}

func (s *storeImpl) KVUnlink(h store.Handle, wtid uint64, key []byte) error {
	if err := s.require(db.FeatureDelete); err != nil {
		return err
	}
	id, err := s.handles.Resolve(h, true)
	if err != nil {
		return err
	}
	return store.FromDB(s.db.Delete(id, string(key), wtid))
}

func (s *storeImpl) KVCount(h store.Handle, rtid uint64) (uint64, error) {
	if err := s.require(db.FeatureCount); err != nil {
		return 0, err
	}
	id, err := s.handles.Resolve(h, false)
	if err != nil {
		return 0, err
	}
	n, err := s.db.Count(id, rtid)
	return n, store.FromDB(err)
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	return s.db.GetInfo(), nil
}
