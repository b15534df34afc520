package dstore

import (
	"fmt"
	"io"
	"time"

	"github.com/kvmkrao/hdf5/lib/db"
	"github.com/kvmkrao/hdf5/lib/store"
	"github.com/kvmkrao/hdf5/lib/store/dstore/internal"
	sm "github.com/lni/dragonboat/v4/statemachine"
)

// --------------------------------------------------------------------------
// State Machine Implementation
// --------------------------------------------------------------------------

// ObjectStateMachine is a state machine implementation for Dragonboat RAFT
type ObjectStateMachine struct {
	replicaID uint64
	shardID   uint64
	database  db.ObjectDB
}

// CreateStateMachineFactory returns a function that can be used by dragonboat to create a new state machine for a node host
// The factory pattern is used to enable the caller to pass an interchangeable dbFactory
func CreateStateMachineFactory(dbFactory store.DBFactory) func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
	return func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
		return &ObjectStateMachine{
			replicaID: replicaID,
			shardID:   shardID,
			database:  dbFactory(),
		}
	}
}

// Lookup handles read-only queries by mapping each Query to the corresponding ObjectDB method.
func (fsm *ObjectStateMachine) Lookup(itf interface{}) (interface{}, error) {
	q, ok := itf.(internal.Query)
	if !ok {
		return nil, store.NewError(store.RetCInternalError, fmt.Sprintf("invalid Query type: %T", itf))
	}

	switch q.Type {
	case internal.QueryTHasObject:
		_, ok := fsm.database.HasObject(q.Object)
		return internal.QueryResult{Ok: ok}, nil
	case internal.QueryTGetScratch:
		sp, cs, err := fsm.database.GetScratch(q.Object, q.Txn)
		return internal.QueryResult{Ok: err == nil, Pad: sp, Checksum: cs, Err: err}, nil
	case internal.QueryTKVGet:
		val, err := fsm.database.Get(q.Object, q.Key, q.Txn)
		return internal.QueryResult{Ok: err == nil, Value: val, Err: err}, nil
	case internal.QueryTKVCount:
		n, err := fsm.database.Count(q.Object, q.Txn)
		return internal.QueryResult{Ok: err == nil, Count: n, Err: err}, nil
	case internal.QueryTGetDBInfo:
		return fsm.database.GetInfo(), nil
	default:
		return nil, store.NewError(store.RetCInvalidOperation, fmt.Sprintf("unknown Query operation: %d", q.Type))
	}
}

// result builds the raft result for a database error
func result(err error, format string, args ...any) sm.Result {
	if err != nil {
		return sm.Result{Value: uint64(store.CodeOf(store.FromDB(err))), Data: []byte(err.Error())}
	}
	return sm.Result{Value: uint64(store.RetCSuccess), Data: []byte(fmt.Sprintf(format, args...))}
}

// Update applies write commands to the ObjectDB instance.
// The write index of every command is its transaction number, not the raft index.
func (fsm *ObjectStateMachine) Update(entries []sm.Entry) ([]sm.Entry, error) {
	if len(entries) == 0 {
		return entries, nil
	}

	start := time.Now()

	for idx, e := range entries {
		if len(e.Cmd) == 0 {
			entries[idx].Result = sm.Result{Value: uint64(store.RetCInvalidOperation), Data: []byte("empty command ignored")}
			continue
		}

		cmd := internal.Command{}
		if err := cmd.Deserialize(e.Cmd); err != nil {
			entries[idx].Result = sm.Result{Value: uint64(store.RetCInternalError), Data: []byte(fmt.Sprintf("failed to deserialize command: %v", err))}
			continue
		}

		feat, err := cmd.Type.ToDBFeature()
		if err != nil {
			entries[idx].Result = sm.Result{
				Value: uint64(store.RetCInvalidOperation),
				Data:  []byte(fmt.Sprintf("unknown Command operation: %s", cmd.Type)),
			}
			continue
		}
		if !fsm.database.SupportsFeature(feat) {
			entries[idx].Result = sm.Result{
				Value: uint64(store.RetCUnsupportedOperation),
				Data:  []byte(fmt.Sprintf("%s operation is not supported", cmd.Type)),
			}
			continue
		}

		switch cmd.Type {
		case internal.CommandTCreateObject:
			err := fsm.database.CreateObject(cmd.Object, db.ObjectType(cmd.Aux), cmd.Txn)
			entries[idx].Result = result(err, "created object=%d", cmd.Object)
		case internal.CommandTSetScratch:
			sp, err := internal.DecodeScratchPad(cmd.Value)
			if err == nil {
				err = fsm.database.SetScratch(cmd.Object, sp, cmd.Aux, cmd.Txn)
			}
			entries[idx].Result = result(err, "scratch pad set: object=%d", cmd.Object)
		case internal.CommandTKVSet:
			err := fsm.database.Set(cmd.Object, cmd.Key, cmd.Value, cmd.Txn)
			entries[idx].Result = result(err, "set: object=%d", cmd.Object)
		case internal.CommandTKVUnlink:
			err := fsm.database.Delete(cmd.Object, cmd.Key, cmd.Txn)
			entries[idx].Result = result(err, "unlinked: object=%d", cmd.Object)
		}
	}

	if elapsed := time.Since(start); elapsed > time.Millisecond {
		log.Infof("State machine took long to update. Batch updated %d entries, took %.2fms", len(entries), float64(elapsed)/float64(time.Millisecond))
	}
	return entries, nil
}

// PrepareSnapshot is not used. We don't need to prepare anything since we use fuzzy snapshotting
func (fsm *ObjectStateMachine) PrepareSnapshot() (interface{}, error) {
	return nil, nil
}

// SaveSnapshot saves a fuzzy db snapshot to the writer
func (fsm *ObjectStateMachine) SaveSnapshot(_ interface{}, writer io.Writer, _ sm.ISnapshotFileCollection, _ <-chan struct{}) error {
	if !fsm.database.SupportsFeature(db.FeatureSave) {
		return fmt.Errorf("the used ObjectDB implementation does not support Save() operations")
	}
	return fsm.database.Save(writer)
}

// RecoverFromSnapshot restores the database from a snapshot
func (fsm *ObjectStateMachine) RecoverFromSnapshot(r io.Reader, _ []sm.SnapshotFile, _ <-chan struct{}) error {
	if !fsm.database.SupportsFeature(db.FeatureLoad) {
		return fmt.Errorf("the used ObjectDB implementation does not support Load() operations")
	}
	return fsm.database.Load(r)
}

// Close performs any necessary cleanup.
func (fsm *ObjectStateMachine) Close() error {
	return fsm.database.Close()
}
