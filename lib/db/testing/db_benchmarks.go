package testing

import (
	"bytes"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/kvmkrao/hdf5/lib/db"
)

// RunObjectDBBenchmarks runs all benchmarks for an ObjectDB implementation
func RunObjectDBBenchmarks(b *testing.B, name string, factory DBFactory) {

	b.Run("Set", func(b *testing.B) {
		benchmarkSet(b, factory())
	})

	b.Run("Get", func(b *testing.B) {
		benchmarkGet(b, factory())
	})

	b.Run("GetOldVersion", func(b *testing.B) {
		benchmarkGetOldVersion(b, factory())
	})

	b.Run("CreateObject", func(b *testing.B) {
		benchmarkCreateObject(b, factory())
	})

	b.Run("Count", func(b *testing.B) {
		benchmarkCount(b, factory())
	})

	b.Run("SaveLoad", func(b *testing.B) {
		benchmarkSaveLoad(b, factory)
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

func benchmarkSet(b *testing.B, database db.ObjectDB) {
	b.Cleanup(func() { _ = database.Close() })
	mustCreateKV(b, database, 1, 1)

	var idx atomic.Uint64
	value := []byte("benchmark-value")

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			_ = database.Set(1, fmt.Sprintf("key-%d", counter%1000), value, idx.Add(1))
			counter++
		}
	})
}

func benchmarkGet(b *testing.B, database db.ObjectDB) {
	b.Cleanup(func() { _ = database.Close() })
	mustCreateKV(b, database, 1, 1)
	for i := 0; i < 1000; i++ {
		_ = database.Set(1, fmt.Sprintf("key-%d", i), []byte("benchmark-value"), 2)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			_, _ = database.Get(1, fmt.Sprintf("key-%d", counter%1000), 2)
			counter++
		}
	})
}

func benchmarkGetOldVersion(b *testing.B, database db.ObjectDB) {
	b.Cleanup(func() { _ = database.Close() })
	mustCreateKV(b, database, 1, 1)
	for i := uint64(2); i < 258; i++ {
		_ = database.Set(1, "hot", []byte(fmt.Sprintf("v%d", i)), i)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = database.Get(1, "hot", uint64(2+i%256))
	}
}

func benchmarkCreateObject(b *testing.B, database db.ObjectDB) {
	b.Cleanup(func() { _ = database.Close() })

	var id atomic.Uint64
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = database.CreateObject(db.ObjectID(id.Add(1)), db.ObjectTypeKV, 1)
		}
	})
}

func benchmarkCount(b *testing.B, database db.ObjectDB) {
	b.Cleanup(func() { _ = database.Close() })
	mustCreateKV(b, database, 1, 1)
	for i := 0; i < 1000; i++ {
		_ = database.Set(1, fmt.Sprintf("key-%d", i), []byte{1}, 2)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = database.Count(1, 2)
	}
}

func benchmarkSaveLoad(b *testing.B, factory DBFactory) {
	database := factory()
	b.Cleanup(func() { _ = database.Close() })

	for o := 0; o < 100; o++ {
		mustCreateKV(b, database, db.ObjectID(o+1), 1)
		for k := 0; k < 100; k++ {
			_ = database.Set(db.ObjectID(o+1), fmt.Sprintf("key-%d", k), []byte("benchmark-value"), 2)
		}
	}

	var buf bytes.Buffer
	b.Run("Save", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			buf.Reset()
			_ = database.Save(&buf)
		}
	})

	snapshot := buf.Bytes()
	b.Run("Load", func(b *testing.B) {
		loaded := factory()
		defer loaded.Close()
		for i := 0; i < b.N; i++ {
			_ = loaded.Load(bytes.NewReader(snapshot))
		}
	})
}
