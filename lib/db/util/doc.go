// Package util holds helpers shared by db.ObjectDB implementations:
// seed generation, object id mixing for shard placement, name hashing and the
// statistics reported by GetInfo.
package util
