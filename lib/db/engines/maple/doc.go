// Package maple implements db.ObjectDB as a sharded in-memory database.
//
// Objects are spread over shards by a mixed hash of their id. Every shard is an
// xsync.MapOf from object id to object, and every KV object keeps its entries in
// its own xsync.MapOf from key to version chain. A chain is an immutable slice of
// versions ordered by write index; writers replace the whole slice inside
// MapOf.Compute so readers never observe a partially updated chain.
//
// Reads pick the newest version with an index <= the read index. Deletes append
// a tombstone version, so a read context older than the delete still sees the
// value.
//
// Version pruning:
//
// With DBOptions.VersionRetention > 0 a background goroutine periodically
// computes horizon = WriteIdx() - VersionRetention and collapses each chain to
// the versions a read at an index >= horizon can observe. Chains that end in a
// tombstone below the horizon are removed together with their key. Reads older
// than the horizon are no longer guaranteed to see their snapshot.
//
// Persistence format (little endian):
//  1. Magic number "MAPLEDB\x00" and version byte (4)
//  2. seed, write index, object count
//  3. per object: id, type, creation index, scratch pad versions
//     (index, checksum, 4 slots) and entries (key, versions of index,
//     tombstone flag, value)
//
// Save takes a fuzzy snapshot without locking. The replicated store only calls it
// from the state machine's snapshot path where no updates are applied concurrently.
package maple
