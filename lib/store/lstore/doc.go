// Package lstore implements a local, in-memory, single-node object store based on
// the store.IObjectStore interface. It is a thin wrapper around any db.ObjectDB
// implementation that adds a handle table and maps database errors to store errors.
//
// Write transactions and read contexts are passed straight through as write and
// read indices of the database. Creation races are decided by the database's
// atomic CreateObject.
//
// Usage Example:
//
//	factory := func() db.ObjectDB { return maple.NewMapleDB(nil) }
//	s := lstore.NewLocalStore(factory)
//
//	_ = s.CreateObject(7, db.ObjectTypeKV, 1)
//	h, _ := s.OpenWrite(7)
//	_ = s.KVSet(h, 1, []byte("k"), []byte("v"))
//	v, _ := s.KVGet(h, 1, []byte("k"))
//	_ = s.Close(h)
//
// Data is not persisted between process restarts. For replicated containers use
// the dstore package.
package lstore
