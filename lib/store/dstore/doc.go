// Package dstore implements a replicated object store on top of the Dragonboat
// RAFT consensus library. It satisfies store.IObjectStore and keeps every
// container replica in the same state.
//
// Architecture:
//
//   - Store Client: turns object store calls into Commands (writes) and Queries
//     (reads) and sends them to the RAFT shard of the container.
//
//   - State Machine: a Dragonboat IConcurrentStateMachine that owns a db.ObjectDB
//     and applies the commands in log order.
//
//   - Handles: open handles live in a HandleTable on the serving node. Opening
//     an object is a linearizable existence check, the handle itself is never
//     replicated.
//
// Consensus Model:
//
//	All writes go through SyncPropose and are applied in the same order on every
//	replica. Object creation races are therefore decided by the log: the first
//	CreateObject for an id wins on every node and all later ones see
//	RetCAlreadyExists.
//
//	The write index used by the database is the transaction number carried by the
//	command, not the RAFT log index. Reads pass their read context the same way.
//
// Read Operations:
//
//	Object reads use SyncRead and see every committed write. GetDBInfo uses
//	StaleRead since it only reports statistics.
//
// Error Handling and Retries:
//
//	ErrSystemBusy from Dragonboat is retried up to five times with a short pause.
//	Database errors are reported by the state machine as store.RetCode values in
//	the RAFT result (writes) or inside the QueryResult (reads).
//
// Snapshotting and Recovery:
//
//	SaveSnapshot and RecoverFromSnapshot delegate to the ObjectDB's Save and Load.
//
// Usage:
//
//	nh, err := dragonboat.NewNodeHost(nodeHostConfig)
//	if err != nil { ... }
//
//	dbFactory := func() db.ObjectDB { return maple.NewMapleDB(nil) }
//	err = nh.StartConcurrentReplica(members, false,
//	    dstore.CreateStateMachineFactory(dbFactory), shardConfig)
//	if err != nil { ... }
//
//	s := dstore.NewDistributedStore(nh, shardID, 5*time.Second)
package dstore
