// Package internal provides the command and query structures exchanged between
// the dstore client side and the replicated state machine.
//
// Commands are write operations. They are serialized into the RAFT log in a
// compact big endian format:
//
//   - 1 byte: command type (CreateObject, SetScratch, KVSet, KVUnlink)
//   - 8 bytes: object id
//   - 8 bytes: write transaction
//   - 8 bytes: auxiliary value (object type or scratch pad checksum)
//   - 4 bytes: key length
//   - N bytes: key
//   - M bytes: value or encoded scratch pad (optional)
//
// Queries are read operations executed locally on the state machine through
// SyncRead and therefore never serialized.
//
// The types in this package are not thread-safe. The RAFT protocol applies
// commands sequentially, so this is not an issue for the state machine.
package internal
