package iod

import (
	"errors"
	"testing"

	"github.com/kvmkrao/hdf5/lib/checksum"
	"github.com/kvmkrao/hdf5/lib/db"
	"github.com/kvmkrao/hdf5/lib/db/engines/maple"
	"github.com/kvmkrao/hdf5/lib/dtype"
	"github.com/kvmkrao/hdf5/lib/store"
	"github.com/kvmkrao/hdf5/lib/store/lstore"
)

func newContainer(t *testing.T) (store.IObjectStore, *IDAllocator) {
	t.Helper()
	st := lstore.NewLocalStore(func() db.ObjectDB { return maple.NewMapleDB(nil) })
	alloc := NewIDAllocator(42)
	if err := InitContainer(st, alloc, 0, checksum.ScopeAll); err != nil {
		t.Fatalf("InitContainer failed: %v", err)
	}
	return st, alloc
}

func TestLinkEncoding(t *testing.T) {
	l := Link{Type: LinkHard, Target: 1234}
	got, err := DecodeLink(l.Encode())
	if err != nil || got != l {
		t.Errorf("Expected %v, got %v / %v", l, got, err)
	}
	if _, err := DecodeLink([]byte{1, 2}); store.CodeOf(err) != store.RetCDataCorruption {
		t.Errorf("Expected DataCorruption for a short link, got %v", err)
	}
	bad := l.Encode()
	bad[0] = 9
	if _, err := DecodeLink(bad); err == nil {
		t.Errorf("Expected an error for an unknown link type")
	}
}

func TestIDAllocator(t *testing.T) {
	a := NewIDAllocator(7)
	seen := make(map[db.ObjectID]bool)
	for i := 0; i < 10000; i++ {
		id := a.Next()
		if id == db.RootID || !id.IsDefined() || seen[id] {
			t.Fatalf("Bad or duplicate id %d after %d allocations", id, i)
		}
		seen[id] = true
	}
}

func TestInitContainer(t *testing.T) {
	st, alloc := newContainer(t)

	// a second bootstrap finds the root group
	if err := InitContainer(st, alloc, 1, checksum.ScopeAll); err != nil {
		t.Fatalf("Second InitContainer failed: %v", err)
	}

	h, err := st.OpenRead(db.RootID)
	if err != nil {
		t.Fatalf("Open root failed: %v", err)
	}
	defer st.Close(h)

	sp, err := ReadScratchPad(st, h, 0, checksum.ScopeIOD)
	if err != nil {
		t.Fatalf("ReadScratchPad failed: %v", err)
	}
	md, err := st.OpenRead(sp[db.ScratchMetadata])
	if err != nil {
		t.Fatalf("Open metadata failed: %v", err)
	}
	defer st.Close(md)

	meta, err := ReadMetadata(st, md, 0)
	if err != nil {
		t.Fatalf("ReadMetadata failed: %v", err)
	}
	if meta.Kind != KindGroup || meta.LinkCount != 1 {
		t.Errorf("Unexpected root metadata %s", meta)
	}
}

func TestTraverse(t *testing.T) {
	st, alloc := newContainer(t)

	a, err := CreateGroup(st, alloc, db.RootID, store.UndefinedHandle, "a", 1, 1, checksum.ScopeNone)
	if err != nil {
		t.Fatalf("CreateGroup a failed: %v", err)
	}
	b, err := CreateGroup(st, alloc, db.RootID, store.UndefinedHandle, "/a/b", 2, 2, checksum.ScopeNone)
	if err != nil {
		t.Fatalf("CreateGroup a/b failed: %v", err)
	}

	tests := []struct {
		name       string
		path       string
		rtid       uint64
		wantParent db.ObjectID
		wantName   string
		wantCode   store.RetCode
	}{
		{"single component", "x", 2, db.RootID, "x", store.RetCSuccess},
		{"nested", "a/b/x", 2, b, "x", store.RetCSuccess},
		{"absolute with dots", "/./a//x", 2, a, "x", store.RetCSuccess},
		{"missing intermediate", "a/nope/x", 2, db.IDUndefined, "", store.RetCNotFound},
		{"not yet visible", "a/b/x", 1, db.IDUndefined, "", store.RetCNotFound},
		{"empty", "/", 2, db.IDUndefined, "", store.RetCInvalidOperation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := Traverse(st, db.RootID, store.UndefinedHandle, tt.path, tt.rtid)
			if code := store.CodeOf(err); code != tt.wantCode {
				t.Fatalf("Expected %s, got %v", tt.wantCode, err)
			}
			if err != nil {
				return
			}
			defer loc.Close(st)
			if loc.ID != tt.wantParent || loc.Name != tt.wantName || !loc.Opened() {
				t.Errorf("Expected %d/%s, got %d/%s", tt.wantParent, tt.wantName, loc.ID, loc.Name)
			}
		})
	}
}

func TestTraverseWithLocationHandle(t *testing.T) {
	st, _ := newContainer(t)
	root, _ := st.OpenWrite(db.RootID)
	defer st.Close(root)

	loc, err := Traverse(st, db.RootID, root, "m", 0)
	if err != nil {
		t.Fatalf("Traverse failed: %v", err)
	}
	if loc.Opened() || loc.Handle != root {
		t.Errorf("Traversal of a single component must reuse the location handle")
	}
	if err := loc.Close(st); err != nil {
		t.Errorf("Close of a borrowed handle must be a no-op, got %v", err)
	}
	if _, err := st.KVCount(root, 0); err != nil {
		t.Errorf("Location handle was closed by the traversal: %v", err)
	}
}

func TestOpenPath(t *testing.T) {
	st, alloc := newContainer(t)
	g, _ := CreateGroup(st, alloc, db.RootID, store.UndefinedHandle, "g", 1, 1, checksum.ScopeNone)

	id, h, err := OpenPath(st, db.RootID, store.UndefinedHandle, "/g", 1)
	if err != nil || id != g {
		t.Fatalf("Expected group %d, got %d / %v", g, id, err)
	}
	_ = st.Close(h)

	if _, _, err := OpenPath(st, db.RootID, store.UndefinedHandle, "/missing", 1); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected NotFound, got %v", err)
	}
}

func TestMetadataHelpers(t *testing.T) {
	st, alloc := newContainer(t)
	id, err := CreateContainer(st, alloc, 1)
	if err != nil {
		t.Fatalf("CreateContainer failed: %v", err)
	}

	err = WriteMetadata(st, id, 1, []byte("plist"), KindMap, func(h store.Handle) error {
		if err := InsertDatatype(st, h, 1, KeyKeyDatatype, dtype.StdI32LE); err != nil {
			return err
		}
		return InsertDatatype(st, h, 1, KeyValueDatatype, dtype.CString)
	})
	if err != nil {
		t.Fatalf("WriteMetadata failed: %v", err)
	}

	h, _ := st.OpenRead(id)
	defer st.Close(h)
	md, err := ReadMetadata(st, h, 1)
	if err != nil {
		t.Fatalf("ReadMetadata failed: %v", err)
	}
	if string(md.Plist) != "plist" || md.LinkCount != 1 || md.Kind != KindMap ||
		!md.KeyType.Equal(dtype.StdI32LE) || !md.ValueType.Equal(dtype.CString) {
		t.Errorf("Unexpected metadata %s", md)
	}
}

func TestScratchPadIntegrity(t *testing.T) {
	st, _ := newContainer(t)
	_ = st.CreateObject(77, db.ObjectTypeKV, 1)
	h, _ := st.OpenWrite(77)
	defer st.Close(h)

	sp := db.NewScratchPad(1, 2)
	// store a checksum that does not belong to sp
	if err := st.SetScratch(h, 1, sp, checksum.ScratchPad(db.NewScratchPad(1, 3))); err != nil {
		t.Fatalf("SetScratch failed: %v", err)
	}
	if _, err := ReadScratchPad(st, h, 1, checksum.ScopeIOD); !errors.Is(err, store.ErrIntegrity) {
		t.Errorf("Expected IntegrityError, got %v", err)
	}
	if got, err := ReadScratchPad(st, h, 1, checksum.ScopeNone); err != nil || got != sp {
		t.Errorf("Without IOD scope the pad is trusted, got %v / %v", got, err)
	}
}
