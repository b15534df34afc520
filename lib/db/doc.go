// Package db defines the ObjectDB interface, the storage engine below the
// object stores of this repository.
//
// An ObjectDB holds objects addressed by 64-bit ids. Every object has a type
// and may carry a scratch pad, a small fixed record written once at creation.
// KV objects additionally hold key/value entries.
//
// Entries and scratch pads are multi-version: every write carries a write index
// (the write transaction) and every read a read index (the read context). A
// read at index r sees the newest version written at an index <= r. Deletion
// writes a tombstone version, so older read contexts still see the entry.
//
// Object creation is the one operation that is not versioned. CreateObject is
// an atomic create-or-fail and returns ErrObjectExists to every caller but one
// when several race for the same id.
//
// The engines/maple package provides the in-memory implementation used by the
// stores. The testing package provides RunObjectDBTests, a conformance suite
// every implementation must pass.
package db
