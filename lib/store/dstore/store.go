package dstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kvmkrao/hdf5/lib/db"
	"github.com/kvmkrao/hdf5/lib/store"
	"github.com/kvmkrao/hdf5/lib/store/dstore/internal"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/client"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	retries = 5
	log     = logger.GetLogger("store")
)

// storeImpl is the replicated implementation of store.IObjectStore.
// It encapsulates a Dragonboat NodeHost which is used to communicate with the state machine.
// Handles are local to this node, only object state is replicated.
type storeImpl struct {
	nh      *dragonboat.NodeHost
	shardID uint64
	cs      *client.Session
	timeout time.Duration
	handles *store.HandleTable
}

// NewDistributedStore creates a new distributed store instance which uses raft consensus to ensure strict linearizability
// across multiple nodes.
func NewDistributedStore(nh *dragonboat.NodeHost, shardID uint64, timeout time.Duration) store.IObjectStore {
	return &storeImpl{
		nh:      nh,
		shardID: shardID,
		cs:      nh.GetNoOPSession(shardID),
		timeout: timeout,
		handles: store.NewHandleTable(),
	}
}

// --------------------------------------------------------------------------
// Internal write and read operations (used by interface methods)
// --------------------------------------------------------------------------

// write proposes a Command via SyncPropose.
// The state machine reports the store.RetCode in the result value.
func (s *storeImpl) write(cmd internal.Command) error {
	for i := 0; i < retries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)

		res, err := s.nh.SyncPropose(ctx, s.cs, cmd.Serialize())
		cancel()

		// Check for system busy errors
		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("SyncPropose: System busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(s.timeout / 10)
			continue
		}

		if err != nil {
			return store.NewError(store.RetCInternalError, err.Error())
		}
		if res.Value != uint64(store.RetCSuccess) {
			return store.NewError(store.RetCode(res.Value), string(res.Data))
		}
		return nil
	}
	return store.NewError(store.RetCInternalError, "timeout")
}

// read is a generic helper function that queries the statemachine
// and attempts to convert the response into the expected type R.
//
// This function uses SyncRead by default. If linearizability is not required,
// stale can be set to use the faster StaleRead function.
func read[R any](r *storeImpl, q internal.Query, stale bool) (R, error) {
	var zero R
	for i := 0; i < retries; i++ {

		var res interface{}
		var err error

		if stale {
			res, err = r.nh.StaleRead(r.shardID, q)
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
			res, err = r.nh.SyncRead(ctx, r.shardID, q)
			cancel()
		}

		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("SyncRead: System busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(r.timeout / 10)
			continue
		}

		if err != nil {
			return zero, store.Wrap(err, store.RetCInternalError, "read "+q.Type.String())
		}

		casted, ok := res.(R)
		if !ok {
			return zero, store.NewError(store.RetCInternalError,
				fmt.Sprintf("unexpected type: received %T, expected %T", res, zero))
		}
		return casted, nil
	}
	return zero, store.NewError(store.RetCInternalError, "timeout")
}

// query runs a read returning a QueryResult and converts its database error
func (s *storeImpl) query(q internal.Query) (internal.QueryResult, error) {
	res, err := read[internal.QueryResult](s, q, false)
	if err != nil {
		return res, err
	}
	return res, store.FromDB(res.Err)
}

// --------------------------------------------------------------------------
// Interface Methods (docs see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) CreateObject(id db.ObjectID, typ db.ObjectType, wtid uint64) error {
	return s.write(internal.Command{
		Type:   internal.CommandTCreateObject,
		Object: id,
		Txn:    wtid,
		Aux:    uint64(typ),
	})
}

func (s *storeImpl) open(id db.ObjectID, mode store.Mode) (store.Handle, error) {
	res, err := s.query(internal.Query{Type: internal.QueryTHasObject, Object: id})
	if err != nil {
		return store.UndefinedHandle, err
	}
	if !res.Ok {
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
	id, err := s.handles.Resolve(h, true)
	if err != nil {
		return err
	}
	return s.write(internal.Command{
		Type:   internal.CommandTSetScratch,
		Object: id,
		Txn:    wtid,
		Aux:    checksum,
		Value:  internal.EncodeScratchPad(sp),
	})
}

func (s *storeImpl) GetScratch(h store.Handle, rtid uint64) (db.ScratchPad, uint64, error) {
	id, err := s.handles.Resolve(h, false)
	if err != nil {
		return db.ScratchPad{}, 0, err
	}
	res, err := s.query(internal.Query{Type: internal.QueryTGetScratch, Object: id, Txn: rtid})
	if err != nil {
		return db.ScratchPad{}, 0, err
	}
	return res.Pad, res.Checksum, nil
}

func (s *storeImpl) KVSet(h store.Handle, wtid uint64, key, value []byte) error {
	id, err := s.handles.Resolve(h, true)
	if err != nil {
		return err
	}
	return s.write(internal.Command{
		Type:   internal.CommandTKVSet,
		Object: id,
		Txn:    wtid,
		Key:    string(key),
		Value:  value,
	})
}

func (s *storeImpl) KVGet(h store.Handle, rtid uint64, key []byte) ([]byte, error) {
	id, err := s.handles.Resolve(h, false)
	if err != nil {
		return nil, err
	}
	res, err := s.query(internal.Query{Type: internal.QueryTKVGet, Object: id, Txn: rtid, Key: string(key)})
	if err != nil {
		return nil, err
	}
	return res.Value, nil
}

func (s *storeImpl) KVGetSize(h store.Handle, rtid uint64, key []byte) (uint64, error) {
	val, err := s.KVGet(h, rtid, key)
	if err != nil {
		return 0, err
	}
	return uint64(len(val)), nil
}

func (s *storeImpl) KVUnlink(h store.Handle, wtid uint64, key []byte) error {
	id, err := s.handles.Resolve(h, true)
	if err != nil {
		return err
	}
	return s.write(internal.Command{
		Type:   internal.CommandTKVUnlink,
		Object: id,
		Txn:    wtid,
		Key:    string(key),
	})
}

func (s *storeImpl) KVCount(h store.Handle, rtid uint64) (uint64, error) {
	id, err := s.handles.Resolve(h, false)
	if err != nil {
		return 0, err
	}
	res, err := s.query(internal.Query{Type: internal.QueryTKVCount, Object: id, Txn: rtid})
	if err != nil {
		return 0, err
	}
	return res.Count, nil
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	return read[db.DatabaseInfo](
		s,
		internal.Query{Type: internal.QueryTGetDBInfo},
		true, // Note: allow for stale reads
	)
}
