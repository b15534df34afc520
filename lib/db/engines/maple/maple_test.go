package maple

import (
	"errors"
	"reflect"
	"testing"

	"github.com/kvmkrao/hdf5/lib/db"
	"github.com/kvmkrao/hdf5/lib/db/engines/maple/internal"
)

func TestChainWith(t *testing.T) {
	var c internal.Chain
	c = c.With(internal.Version{Index: 5, Value: []byte("5")})
	c = c.With(internal.Version{Index: 1, Value: []byte("1")})
	c = c.With(internal.Version{Index: 3, Value: []byte("3")})
	c = c.With(internal.Version{Index: 3, Value: []byte("3b")})

	var indices []uint64
	for _, v := range c {
		indices = append(indices, v.Index)
	}
	if !reflect.DeepEqual(indices, []uint64{1, 3, 5}) {
		t.Fatalf("Expected sorted unique indices, got %v", indices)
	}
	if v, _ := c.At(4); string(v.Value) != "3b" {
		t.Errorf("Expected replaced version 3b, got %s", v.Value)
	}
}

func TestChainPrune(t *testing.T) {
	chain := internal.Chain{
		{Index: 1, Value: []byte("a")},
		{Index: 4, Value: []byte("b")},
		{Index: 6, Deleted: true},
		{Index: 9, Value: []byte("c")},
	}

	tests := []struct {
		name    string
		horizon uint64
		want    []uint64
		keep    bool
	}{
		{"before first", 0, []uint64{1, 4, 6, 9}, true},
		{"at first", 1, []uint64{1, 4, 6, 9}, true},
		{"between", 5, []uint64{4, 6, 9}, true},
		{"tombstone base", 7, []uint64{9}, true},
		{"past end", 20, []uint64{9}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pruned, keep := chain.Prune(tt.horizon)
			if keep != tt.keep {
				t.Fatalf("keep=%v expected %v", keep, tt.keep)
			}
			var got []uint64
			for _, v := range pruned {
				got = append(got, v.Index)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}

	gone := internal.Chain{{Index: 1, Value: []byte("a")}, {Index: 2, Deleted: true}}
	if _, keep := gone.Prune(2); keep {
		t.Errorf("A chain ending in a tombstone below the horizon should be dropped")
	}
}

func TestPruneKeepsVisibleState(t *testing.T) {
	database := NewMapleDB(&DBOptions{NumShards: 2, VersionRetention: 5}).(*mapleImpl)
	defer database.Close()

	_ = database.CreateObject(1, db.ObjectTypeKV, 1)
	_ = database.Set(1, "k", []byte("old"), 2)
	_ = database.Set(1, "k", []byte("new"), 10)
	_ = database.Set(1, "gone", []byte("x"), 3)
	_ = database.Delete(1, "gone", 4)

	database.prune(8)

	if v, err := database.Get(1, "k", 10); err != nil || string(v) != "new" {
		t.Errorf("Expected new, got %s / %v", v, err)
	}
	if v, err := database.Get(1, "k", 8); err != nil || string(v) != "old" {
		t.Errorf("Reads at the horizon must still see old, got %s / %v", v, err)
	}
	if _, err := database.Get(1, "gone", 10); !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("Expected ErrKeyNotFound, got %v", err)
	}

	obj, _ := database.object(1)
	if _, ok := obj.Entries.Load("gone"); ok {
		t.Errorf("Deleted key should be removed by pruning")
	}
	if n, _ := database.Count(1, 10); n != 1 {
		t.Errorf("Expected count 1, got %d", n)
	}
}
