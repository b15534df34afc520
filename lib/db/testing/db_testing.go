package testing

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/kvmkrao/hdf5/lib/db"
)

// DBFactory is a function that creates a new instance of an ObjectDB implementation
type DBFactory func() db.ObjectDB

// RunObjectDBTests runs the conformance test suite for an ObjectDB implementation.
func RunObjectDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("CreateObject", func(t *testing.T) {
			testCreateObject(t, factory())
		})

		t.Run("CreateRace", func(t *testing.T) {
			testCreateRace(t, factory())
		})

		t.Run("ScratchPad", func(t *testing.T) {
			testScratchPad(t, factory())
		})

		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, factory())
		})

		t.Run("ReadContext", func(t *testing.T) {
			testReadContext(t, factory())
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory())
		})

		t.Run("Count", func(t *testing.T) {
			testCount(t, factory())
		})

		t.Run("WrongType", func(t *testing.T) {
			testWrongType(t, factory())
		})

		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, factory)
		})

		t.Run("WriteIdx", func(t *testing.T) {
			testWriteIdx(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the database supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, database db.ObjectDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skip()
	}
}

// mustCreateKV creates a KV object or fails the test
func mustCreateKV(t testing.TB, database db.ObjectDB, id db.ObjectID, writeIdx uint64) {
	if err := database.CreateObject(id, db.ObjectTypeKV, writeIdx); err != nil {
		t.Fatalf("CreateObject(%d) failed: %v", id, err)
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testCreateObject(t *testing.T, database db.ObjectDB) {
	defer database.Close()
	requireFeature(t, database, db.FeatureCreate)

	if _, ok := database.HasObject(7); ok {
		t.Errorf("Object 7 should not exist before creation")
	}

	mustCreateKV(t, database, 7, 1)

	typ, ok := database.HasObject(7)
	if !ok {
		t.Fatalf("Object 7 should exist after creation")
	}
	if typ != db.ObjectTypeKV {
		t.Errorf("Expected type %s, got %s", db.ObjectTypeKV, typ)
	}

	err := database.CreateObject(7, db.ObjectTypeBlob, 2)
	if !errors.Is(err, db.ErrObjectExists) {
		t.Errorf("Expected ErrObjectExists on second create, got %v", err)
	}
	if typ, _ := database.HasObject(7); typ != db.ObjectTypeKV {
		t.Errorf("Failed create must not change the object type, got %s", typ)
	}

	if err := database.CreateObject(db.IDUndefined, db.ObjectTypeKV, 3); err == nil {
		t.Errorf("Creating an object with the undefined id should fail")
	}
}

func testCreateRace(t *testing.T, database db.ObjectDB) {
	defer database.Close()
	requireFeature(t, database, db.FeatureCreate)

	const workers = 32
	var (
		wg      sync.WaitGroup
		winners atomic.Int32
		exists  atomic.Int32
	)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			err := database.CreateObject(42, db.ObjectTypeKV, 1)
			switch {
			case err == nil:
				winners.Add(1)
			case errors.Is(err, db.ErrObjectExists):
				exists.Add(1)
			default:
				t.Errorf("Unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if winners.Load() != 1 {
		t.Errorf("Expected exactly one creator, got %d", winners.Load())
	}
	if exists.Load() != workers-1 {
		t.Errorf("Expected %d ErrObjectExists, got %d", workers-1, exists.Load())
	}
}

func testScratchPad(t *testing.T, database db.ObjectDB) {
	defer database.Close()
	requireFeature(t, database, db.FeatureScratchPad)

	mustCreateKV(t, database, 1, 1)
	sp := db.NewScratchPad(2, 3)

	if _, _, err := database.GetScratch(1, 10); !errors.Is(err, db.ErrScratchMissing) {
		t.Errorf("Expected ErrScratchMissing before SetScratch, got %v", err)
	}

	if err := database.SetScratch(1, sp, 0xabc, 5); err != nil {
		t.Fatalf("SetScratch failed: %v", err)
	}

	got, cs, err := database.GetScratch(1, 5)
	if err != nil {
		t.Fatalf("GetScratch failed: %v", err)
	}
	if got != sp || cs != 0xabc {
		t.Errorf("Expected %v/%x, got %v/%x", sp, 0xabc, got, cs)
	}

	if _, _, err := database.GetScratch(1, 4); !errors.Is(err, db.ErrScratchMissing) {
		t.Errorf("Scratch pad written at 5 must not be visible at 4, got %v", err)
	}

	if err := database.SetScratch(1, db.NewScratchPad(8, 9), 0, 6); !errors.Is(err, db.ErrScratchSet) {
		t.Errorf("Expected ErrScratchSet on second write, got %v", err)
	}

	if _, _, err := database.GetScratch(99, 10); !errors.Is(err, db.ErrObjectNotFound) {
		t.Errorf("Expected ErrObjectNotFound, got %v", err)
	}
}

func testSetGet(t *testing.T, database db.ObjectDB) {
	defer database.Close()
	requireFeature(t, database, db.FeatureSet|db.FeatureGet)

	mustCreateKV(t, database, 1, 1)

	testKey := "test-key"
	testValue1 := []byte("test-value1")
	testValue2 := []byte("test-value2")

	if err := database.Set(1, testKey, testValue1, 2); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	result, err := database.Get(1, testKey, 2)
	if err != nil {
		t.Errorf("Expected key %s to exist after Set: %v", testKey, err)
	}
	if !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result)
	}

	_ = database.Set(1, testKey, testValue2, 3)
	result, _ = database.Get(1, testKey, 3)
	if !bytes.Equal(result, testValue2) {
		t.Errorf("Expected value %s, got %s", testValue2, result)
	}

	if _, err := database.Get(1, "nonexistent-key", 3); !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("Expected ErrKeyNotFound for nonexistent key, got %v", err)
	}

	retrievedValue, _ := database.Get(1, testKey, 3)
	retrievedValue[0] = 'X'
	originalValue, _ := database.Get(1, testKey, 3)
	if bytes.Equal(retrievedValue, originalValue) {
		t.Errorf("Get should return a copy, not a reference to the stored value")
	}

	input := []byte("mutable")
	_ = database.Set(1, "copy", input, 4)
	input[0] = 'X'
	if stored, _ := database.Get(1, "copy", 4); string(stored) != "mutable" {
		t.Errorf("Set should copy the value, got %s", stored)
	}

	if err := database.Set(99, testKey, testValue1, 5); !errors.Is(err, db.ErrObjectNotFound) {
		t.Errorf("Expected ErrObjectNotFound on missing object, got %v", err)
	}

	// empty values are values
	_ = database.Set(1, "empty", nil, 6)
	if v, err := database.Get(1, "empty", 6); err != nil || len(v) != 0 {
		t.Errorf("Expected empty value, got %v / %v", v, err)
	}
}

func testReadContext(t *testing.T, database db.ObjectDB) {
	defer database.Close()
	requireFeature(t, database, db.FeatureVersioned)

	mustCreateKV(t, database, 1, 1)

	_ = database.Set(1, "k", []byte("v10"), 10)
	_ = database.Set(1, "k", []byte("v20"), 20)
	// an out of order write is placed by its index
	_ = database.Set(1, "k", []byte("v15"), 15)

	tests := []struct {
		readIdx uint64
		want    string
		found   bool
	}{
		{9, "", false},
		{10, "v10", true},
		{14, "v10", true},
		{15, "v15", true},
		{19, "v15", true},
		{20, "v20", true},
		{1000, "v20", true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("read@%d", tt.readIdx), func(t *testing.T) {
			got, err := database.Get(1, "k", tt.readIdx)
			if tt.found != (err == nil) {
				t.Fatalf("found=%v expected %v (err %v)", err == nil, tt.found, err)
			}
			if tt.found && string(got) != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}

	// rewriting the same index replaces the version
	_ = database.Set(1, "k", []byte("v20b"), 20)
	if got, _ := database.Get(1, "k", 20); string(got) != "v20b" {
		t.Errorf("Expected v20b after rewrite, got %s", got)
	}
}

func testDelete(t *testing.T, database db.ObjectDB) {
	defer database.Close()
	requireFeature(t, database, db.FeatureDelete)

	mustCreateKV(t, database, 1, 1)
	_ = database.Set(1, "k", []byte("v"), 2)

	if err := database.Delete(1, "k", 3); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := database.Get(1, "k", 3); !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("Key should be gone at 3, got %v", err)
	}
	if v, err := database.Get(1, "k", 2); err != nil || string(v) != "v" {
		t.Errorf("Key should still be visible at 2, got %s / %v", v, err)
	}

	if err := database.Delete(1, "k", 4); !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("Deleting a deleted key should fail with ErrKeyNotFound, got %v", err)
	}
	if err := database.Delete(1, "never", 4); !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("Deleting a missing key should fail with ErrKeyNotFound, got %v", err)
	}

	// set after delete revives the key
	_ = database.Set(1, "k", []byte("again"), 5)
	if v, err := database.Get(1, "k", 5); err != nil || string(v) != "again" {
		t.Errorf("Expected revived key, got %s / %v", v, err)
	}
}

func testCount(t *testing.T, database db.ObjectDB) {
	defer database.Close()
	requireFeature(t, database, db.FeatureCount)

	mustCreateKV(t, database, 1, 1)
	for i := 0; i < 10; i++ {
		_ = database.Set(1, fmt.Sprintf("key-%d", i), []byte{byte(i)}, 2)
	}
	// overwrite does not change the count
	_ = database.Set(1, "key-0", []byte("x"), 3)
	_ = database.Delete(1, "key-1", 4)
	_ = database.Delete(1, "key-2", 4)

	tests := []struct {
		readIdx uint64
		want    uint64
	}{
		{1, 0},
		{2, 10},
		{3, 10},
		{4, 8},
	}
	for _, tt := range tests {
		n, err := database.Count(1, tt.readIdx)
		if err != nil {
			t.Fatalf("Count failed: %v", err)
		}
		if n != tt.want {
			t.Errorf("Count at %d: expected %d, got %d", tt.readIdx, tt.want, n)
		}
	}

	if _, err := database.Count(2, 4); !errors.Is(err, db.ErrObjectNotFound) {
		t.Errorf("Expected ErrObjectNotFound, got %v", err)
	}
}

func testWrongType(t *testing.T, database db.ObjectDB) {
	defer database.Close()

	if err := database.CreateObject(1, db.ObjectTypeBlob, 1); err != nil {
		t.Fatalf("CreateObject failed: %v", err)
	}
	if err := database.Set(1, "k", []byte("v"), 2); !errors.Is(err, db.ErrWrongType) {
		t.Errorf("Expected ErrWrongType for Set on blob, got %v", err)
	}
	if _, err := database.Count(1, 2); !errors.Is(err, db.ErrWrongType) {
		t.Errorf("Expected ErrWrongType for Count on blob, got %v", err)
	}
	// scratch pads work on every object type
	if err := database.SetScratch(1, db.NewScratchPad(2, 3), 0, 2); err != nil {
		t.Errorf("SetScratch on blob failed: %v", err)
	}
}

func testSaveLoad(t *testing.T, factory DBFactory) {
	database := factory()
	defer database.Close()
	requireFeature(t, database, db.FeatureSave|db.FeatureLoad)

	mustCreateKV(t, database, 1, 1)
	mustCreateKV(t, database, 2, 1)
	_ = database.SetScratch(1, db.NewScratchPad(3, 4), 77, 1)
	_ = database.Set(1, "a", []byte("a1"), 2)
	_ = database.Set(1, "a", []byte("a2"), 3)
	_ = database.Set(1, "b", []byte("b1"), 2)
	_ = database.Delete(1, "b", 4)
	_ = database.Set(2, "c", []byte("c1"), 5)

	var buf bytes.Buffer
	if err := database.Save(&buf); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded := factory()
	defer loaded.Close()
	if err := loaded.Load(&buf); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.WriteIdx() != database.WriteIdx() {
		t.Errorf("Expected write index %d, got %d", database.WriteIdx(), loaded.WriteIdx())
	}

	sp, cs, err := loaded.GetScratch(1, 10)
	if err != nil || sp != db.NewScratchPad(3, 4) || cs != 77 {
		t.Errorf("Scratch pad not restored: %v %d %v", sp, cs, err)
	}

	checks := []struct {
		id      db.ObjectID
		key     string
		readIdx uint64
		want    string
		found   bool
	}{
		{1, "a", 2, "a1", true},
		{1, "a", 3, "a2", true},
		{1, "b", 3, "b1", true},
		{1, "b", 4, "", false},
		{2, "c", 5, "c1", true},
	}
	for _, c := range checks {
		v, err := loaded.Get(c.id, c.key, c.readIdx)
		if c.found != (err == nil) || (c.found && string(v) != c.want) {
			t.Errorf("Get(%d,%s,%d): expected %s/%v, got %s/%v", c.id, c.key, c.readIdx, c.want, c.found, v, err)
		}
	}

	if err := loaded.Load(bytes.NewReader([]byte("NOTMAPLE"))); err == nil {
		t.Errorf("Load should reject an invalid header")
	}
}

func testWriteIdx(t *testing.T, database db.ObjectDB) {
	defer database.Close()

	database.SetWriteIdx(10)
	database.SetWriteIdx(5)
	if database.WriteIdx() != 10 {
		t.Errorf("Write index must never decrease, got %d", database.WriteIdx())
	}

	mustCreateKV(t, database, 1, 11)
	_ = database.Set(1, "k", []byte("v"), 20)
	if database.WriteIdx() != 20 {
		t.Errorf("Writes must advance the index, got %d", database.WriteIdx())
	}
}
