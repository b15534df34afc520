// Package store provides the transactional object store a container is served
// from. It sits on top of a db.ObjectDB and adds per-process handles and a
// uniform error type.
//
// Key Components:
//
//   - IObjectStore: create/open/close of objects, scratch pad get/set and
//     key/value get/set/unlink/count on KV objects. Write operations take a write
//     transaction, reads a read context.
//
//   - Handle: a typed session cookie. UndefinedHandle (the zero value) is the
//     sentinel for "no open session". Handles are issued by a HandleTable and are
//     local to the serving process.
//
//   - Error: a return code plus message. CodeOf extracts the code of any error and
//     the Err* sentinels work with errors.Is.
//
// Implementations:
//
//   - Local Store (lstore): directly uses a db.ObjectDB on a single node.
//
//   - Distributed Store (dstore): replicates every write through the Dragonboat
//     RAFT library. Object creation races are decided by the replicated log, so
//     exactly one creator wins cluster wide.
package store
