// Package testing provides the conformance tests and benchmarks every
// db.ObjectDB implementation is expected to pass.
//
// Example usage:
//
//	factory := func() db.ObjectDB {
//		return NewMyDatabase()
//	}
//
//	dbtesting.RunObjectDBTests(t, "MyDatabase", factory)
//	dbtesting.RunObjectDBBenchmarks(b, "MyDatabase", factory)
package testing
