package mapsvc

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kvmkrao/hdf5/lib/bulk"
	"github.com/kvmkrao/hdf5/lib/checksum"
	"github.com/kvmkrao/hdf5/lib/db"
	"github.com/kvmkrao/hdf5/lib/db/engines/maple"
	"github.com/kvmkrao/hdf5/lib/dtype"
	"github.com/kvmkrao/hdf5/lib/iod"
	"github.com/kvmkrao/hdf5/lib/store"
	"github.com/kvmkrao/hdf5/lib/store/lstore"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// --------------------------------------------------------------------------
// Test Environment
// --------------------------------------------------------------------------

var (
	intKeys   = KeyTypes{KeyMem: dtype.NativeInt, KeyMap: dtype.NativeInt}
	intValues = ValueTypes{ValueMem: dtype.NativeInt, ValueMap: dtype.NativeInt}
)

type testEnv struct {
	st  store.IObjectStore
	svc *Service
	reg *bulk.Registry
	ctx context.Context
}

func newTestEnv(t *testing.T, st store.IObjectStore, config Config) *testEnv {
	t.Helper()
	if st == nil {
		st = lstore.NewLocalStore(func() db.ObjectDB { return maple.NewMapleDB(nil) })
	}
	reg := bulk.NewRegistry(bulk.LocalOrigin)
	svc := NewService(st, bulk.NewAdapter(bulk.NewLocalTransport(reg), time.Second, 0), config)
	require.NoError(t, iod.InitContainer(st, svc.Allocator(), 0, checksum.ScopeAll))
	return &testEnv{st: st, svc: svc, reg: reg, ctx: context.Background()}
}

func intBytes(v int32) []byte {
	buf := make([]byte, 4)
	binary.NativeEndian.PutUint32(buf, uint32(v))
	return buf
}

// createMap creates an int/int map called name below the root group
func (e *testEnv) createMap(t *testing.T, name string, wtid uint64) CreateResponse {
	t.Helper()
	resp, err := e.svc.Create(e.ctx, CreateRequest{
		LocID: db.RootID, Name: name,
		MapID: db.IDUndefined, MdkvID: db.IDUndefined, AttrkvID: db.IDUndefined,
		KeyType: dtype.NativeInt, ValType: dtype.NativeInt,
		WTID: wtid, RTID: wtid, Scope: checksum.ScopeAll,
	})
	require.NoError(t, err)
	return resp
}

func (e *testEnv) set(target Target, key, value []byte, wtid uint64, cs uint64) error {
	desc := e.reg.Expose(value, bulk.ModeReadOnly)
	defer e.reg.Withdraw(desc)
	return e.svc.Set(e.ctx, SetRequest{
		Target: target, KeyTypes: intKeys, ValueTypes: intValues,
		Key: key, Value: desc, Checksum: cs,
		WTID: wtid, RTID: wtid, Scope: checksum.ScopeTransfer,
	})
}

func (e *testEnv) get(target Target, key []byte, capacity uint64, rtid uint64) ([]byte, GetResponse, error) {
	buf := make([]byte, capacity)
	desc := e.reg.Expose(buf, bulk.ModeWriteOnly)
	defer e.reg.Withdraw(desc)
	resp, err := e.svc.Get(e.ctx, GetRequest{
		Target: target, KeyTypes: intKeys, ValueTypes: intValues,
		Key: key, ValueSize: capacity, Value: desc,
		RTID: rtid, Scope: checksum.ScopeTransfer,
	})
	return buf[:resp.Size], resp, err
}

func (e *testEnv) exists(target Target, key []byte, rtid uint64) int8 {
	resp, _ := e.svc.Exists(e.ctx, ExistsRequest{Target: target, KeyTypes: intKeys, Key: key, RTID: rtid})
	return resp.Exists
}

// --------------------------------------------------------------------------
// Store Wrappers
// --------------------------------------------------------------------------

// corruptStore flips a byte of every scratch pad it returns
type corruptStore struct {
	store.IObjectStore
	corrupt atomic.Bool
}

func (s *corruptStore) GetScratch(h store.Handle, rtid uint64) (db.ScratchPad, uint64, error) {
	sp, cs, err := s.IObjectStore.GetScratch(h, rtid)
	if s.corrupt.Load() {
		sp[db.ScratchAttrs] ^= 0xFF
	}
	return sp, cs, err
}

// countingStore counts successful object creations and open handles
type countingStore struct {
	store.IObjectStore
	created atomic.Int64
	open    atomic.Int64
}

func (s *countingStore) CreateObject(id db.ObjectID, typ db.ObjectType, wtid uint64) error {
	err := s.IObjectStore.CreateObject(id, typ, wtid)
	if err == nil {
		s.created.Add(1)
	}
	return err
}

func (s *countingStore) OpenRead(id db.ObjectID) (store.Handle, error) {
	h, err := s.IObjectStore.OpenRead(id)
	if err == nil {
		s.open.Add(1)
	}
	return h, err
}

func (s *countingStore) OpenWrite(id db.ObjectID) (store.Handle, error) {
	h, err := s.IObjectStore.OpenWrite(id)
	if err == nil {
		s.open.Add(1)
	}
	return h, err
}

func (s *countingStore) Close(h store.Handle) error {
	err := s.IObjectStore.Close(h)
	if err == nil {
		s.open.Add(-1)
	}
	return err
}

// collidingStore reports the next armed object creations as already existing
type collidingStore struct {
	store.IObjectStore
	collisions atomic.Int32
	rejected   []db.ObjectID
}

func (s *collidingStore) CreateObject(id db.ObjectID, typ db.ObjectType, wtid uint64) error {
	if s.collisions.Add(-1) >= 0 {
		s.rejected = append(s.rejected, id)
		return store.Errorf(store.RetCAlreadyExists, "object %d already exists", id)
	}
	return s.IObjectStore.CreateObject(id, typ, wtid)
}

// failingScratchStore fails every scratch pad write once armed
type failingScratchStore struct {
	countingStore
	fail atomic.Bool
}

func (s *failingScratchStore) SetScratch(h store.Handle, wtid uint64, sp db.ScratchPad, cs uint64) error {
	if s.fail.Load() {
		return store.NewError(store.RetCInternalError, "scratch pad write failed")
	}
	return s.countingStore.SetScratch(h, wtid, sp, cs)
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestSetGetRoundTrip(t *testing.T) {
	e := newTestEnv(t, nil, Config{})
	m := e.createMap(t, "map", 1)
	require.True(t, m.Created)
	target := Target{ID: m.ID, Handle: m.Handle}

	value := intBytes(1024)
	require.NoError(t, e.set(target, intBytes(1), value, 2, checksum.Compute(value)))

	got, resp, err := e.get(target, intBytes(1), 4, 2)
	require.NoError(t, err)
	require.Equal(t, uint64(4), resp.Size)
	require.Equal(t, int32(1024), int32(binary.NativeEndian.Uint32(got)))
	require.Equal(t, checksum.Compute(value), resp.Checksum)

	// not visible before the write transaction
	_, resp, err = e.get(target, intBytes(1), 4, 1)
	require.ErrorIs(t, err, store.ErrNotFound)
	require.Equal(t, GetResponse{}, resp)

	require.NoError(t, e.svc.Close(e.ctx, CloseRequest{Handle: m.Handle}))
}

func TestGetConvertsValue(t *testing.T) {
	e := newTestEnv(t, nil, Config{})
	m := e.createMap(t, "typed", 1)
	target := Target{ID: m.ID}

	// stored as 64-bit big endian, read back as native int
	value := intBytes(-77)
	desc := e.reg.Expose(value, bulk.ModeReadOnly)
	err := e.svc.Set(e.ctx, SetRequest{
		Target: target, KeyTypes: intKeys,
		ValueTypes: ValueTypes{ValueMem: dtype.NativeInt, ValueMap: dtype.StdI64BE},
		Key:        intBytes(5), Value: desc, WTID: 2, RTID: 2,
	})
	require.NoError(t, err)
	e.reg.Withdraw(desc)

	h, _ := e.st.OpenRead(m.ID)
	stored, err := e.st.KVGet(h, 2, intBytes(5))
	require.NoError(t, err)
	require.Equal(t, uint64(0xFFFFFFFFFFFFFFB3), binary.BigEndian.Uint64(stored))
	_ = e.st.Close(h)

	buf := make([]byte, 4)
	out := e.reg.Expose(buf, bulk.ModeWriteOnly)
	resp, err := e.svc.Get(e.ctx, GetRequest{
		Target: target, KeyTypes: intKeys,
		ValueTypes: ValueTypes{ValueMem: dtype.NativeInt, ValueMap: dtype.StdI64BE},
		Key:        intBytes(5), ValueSize: 4, Value: out, RTID: 2,
	})
	require.NoError(t, err)
	require.Equal(t, uint64(4), resp.Size)
	require.Equal(t, checksum.None, resp.Checksum)
	require.Equal(t, intBytes(-77), buf)

	// a destination that is too small
	small := e.reg.Expose(make([]byte, 2), bulk.ModeWriteOnly)
	_, err = e.svc.Get(e.ctx, GetRequest{
		Target: target, KeyTypes: intKeys, ValueTypes: intValues,
		Key: intBytes(5), ValueSize: 2, Value: small, RTID: 2,
	})
	require.ErrorIs(t, err, store.ErrResourceExhausted)
}

func TestChecksumRejection(t *testing.T) {
	e := newTestEnv(t, nil, Config{})
	m := e.createMap(t, "map", 1)
	target := Target{ID: m.ID, Handle: m.Handle}

	value := intBytes(42)
	err := e.set(target, intBytes(7), value, 2, checksum.Compute(value)+1)
	require.ErrorIs(t, err, store.ErrDataCorruption)
	require.Equal(t, ExistsFalse, e.exists(target, intBytes(7), 2))
}

func TestExistsDelete(t *testing.T) {
	e := newTestEnv(t, nil, Config{})
	m := e.createMap(t, "map", 1)
	target := Target{ID: m.ID, Handle: m.Handle}
	key := intBytes(3)

	require.Equal(t, ExistsFalse, e.exists(target, key, 1))
	require.NoError(t, e.set(target, key, intBytes(9), 2, checksum.Compute(intBytes(9))))
	require.Equal(t, ExistsTrue, e.exists(target, key, 2))

	require.NoError(t, e.svc.Delete(e.ctx, DeleteRequest{Target: target, KeyTypes: intKeys, Key: key, WTID: 3, RTID: 3}))
	require.Equal(t, ExistsFalse, e.exists(target, key, 3))
	require.Equal(t, ExistsTrue, e.exists(target, key, 2))

	_, _, err := e.get(target, key, 4, 3)
	require.ErrorIs(t, err, store.ErrNotFound)

	err = e.svc.Delete(e.ctx, DeleteRequest{Target: target, KeyTypes: intKeys, Key: key, WTID: 4, RTID: 4})
	require.ErrorIs(t, err, store.ErrNotFound)

	// an unknown map is indeterminate, not absent
	resp, err := e.svc.Exists(e.ctx, ExistsRequest{Target: Target{ID: 999}, KeyTypes: intKeys, Key: key, RTID: 3})
	require.Error(t, err)
	require.Equal(t, ExistsUnknown, resp.Exists)
}

func TestGetCount(t *testing.T) {
	e := newTestEnv(t, nil, Config{})
	m := e.createMap(t, "map", 1)
	target := Target{ID: m.ID}

	for i := int32(0); i < 5; i++ {
		v := intBytes(i * 10)
		require.NoError(t, e.set(target, intBytes(i), v, 2, checksum.Compute(v)))
	}
	// overwrite does not add a key
	require.NoError(t, e.set(target, intBytes(0), intBytes(1), 3, checksum.Compute(intBytes(1))))
	require.NoError(t, e.svc.Delete(e.ctx, DeleteRequest{Target: target, KeyTypes: intKeys, Key: intBytes(4), WTID: 4}))

	tests := []struct {
		rtid uint64
		want uint64
	}{{1, 0}, {2, 5}, {3, 5}, {4, 4}}
	for _, tt := range tests {
		resp, err := e.svc.GetCount(e.ctx, CountRequest{Target: target, RTID: tt.rtid})
		require.NoError(t, err)
		require.Equal(t, tt.want, resp.Count, "count at %d", tt.rtid)
	}

	resp, err := e.svc.GetCount(e.ctx, CountRequest{Target: Target{ID: 12345}, RTID: 4})
	require.Error(t, err)
	require.Equal(t, CountUndefined, resp.Count)
}

func TestLazyOpenSymmetry(t *testing.T) {
	cs := &countingStore{IObjectStore: lstore.NewLocalStore(func() db.ObjectDB { return maple.NewMapleDB(nil) })}
	e := newTestEnv(t, cs, Config{})
	m := e.createMap(t, "map", 1)
	withHandle := Target{ID: m.ID, Handle: m.Handle}
	byID := Target{ID: m.ID}

	before := cs.open.Load()

	for i, target := range []Target{withHandle, byID} {
		key := intBytes(int32(100 + i))
		v := intBytes(int32(i))
		require.NoError(t, e.set(target, key, v, 2, checksum.Compute(v)))
		got, _, err := e.get(target, key, 4, 2)
		require.NoError(t, err)
		require.Equal(t, v, got)
		require.Equal(t, ExistsTrue, e.exists(target, key, 2))
		require.NoError(t, e.svc.Delete(e.ctx, DeleteRequest{Target: target, KeyTypes: intKeys, Key: key, WTID: 3}))
		require.Equal(t, ExistsFalse, e.exists(target, key, 3))
	}

	require.Equal(t, before, cs.open.Load(), "lazily opened handles must be closed")
}

func TestOpenRecoversScratchPad(t *testing.T) {
	cs := &corruptStore{IObjectStore: lstore.NewLocalStore(func() db.ObjectDB { return maple.NewMapleDB(nil) })}
	e := newTestEnv(t, cs, Config{})
	m := e.createMap(t, "map", 1)
	require.NoError(t, e.svc.Close(e.ctx, CloseRequest{Handle: m.Handle}))

	open := OpenRequest{LocID: db.RootID, Name: "/map", RTID: 1, Scope: checksum.ScopeIOD}
	resp, err := e.svc.Open(e.ctx, open)
	require.NoError(t, err)
	require.Equal(t, m.ID, resp.ID)
	require.True(t, resp.Handle.IsDefined())
	require.Equal(t, uint64(1), resp.LinkCount)
	require.True(t, resp.KeyType.Equal(dtype.NativeInt))
	require.True(t, resp.ValType.Equal(dtype.NativeInt))

	h, _ := e.st.OpenRead(m.ID)
	sp, _, err := e.st.GetScratch(h, 1)
	require.NoError(t, err)
	_ = e.st.Close(h)
	require.Equal(t, sp[db.ScratchMetadata], resp.MdkvID)
	require.Equal(t, sp[db.ScratchAttrs], resp.AttrkvID)
	require.NoError(t, e.svc.Close(e.ctx, CloseRequest{Handle: resp.Handle}))

	cs.corrupt.Store(true)
	resp, err = e.svc.Open(e.ctx, open)
	require.ErrorIs(t, err, store.ErrIntegrity)
	require.False(t, resp.Handle.IsDefined())
	require.Equal(t, db.IDUndefined, resp.ID)

	// without the IOD scope the pad is not verified
	open.Scope = checksum.ScopeNone
	_, err = e.svc.Open(e.ctx, open)
	require.NotErrorIs(t, err, store.ErrIntegrity)
}

func TestOpenFailures(t *testing.T) {
	e := newTestEnv(t, nil, Config{})
	_, err := iod.CreateGroup(e.st, e.svc.Allocator(), db.RootID, store.UndefinedHandle, "group", 1, 1, checksum.ScopeNone)
	require.NoError(t, err)

	_, err = e.svc.Open(e.ctx, OpenRequest{LocID: db.RootID, Name: "missing", RTID: 1})
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = e.svc.Open(e.ctx, OpenRequest{LocID: db.RootID, Name: "group", RTID: 1})
	require.Equal(t, store.RetCInvalidOperation, store.CodeOf(err))

	_, err = e.svc.Create(e.ctx, CreateRequest{
		LocID: db.RootID, Name: "missing/map", MapID: db.IDUndefined,
		MdkvID: db.IDUndefined, AttrkvID: db.IDUndefined, WTID: 2, RTID: 2,
	})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateAlreadyExists(t *testing.T) {
	e := newTestEnv(t, nil, Config{})
	req := CreateRequest{
		LocID: db.RootID, Name: "m", MapID: 500,
		MdkvID: 501, AttrkvID: 502,
		KeyType: dtype.NativeInt, ValType: dtype.NativeInt, WTID: 1, RTID: 1,
	}
	first, err := e.svc.Create(e.ctx, req)
	require.NoError(t, err)
	require.Equal(t, db.ObjectID(500), first.ID)

	resp, err := e.svc.Create(e.ctx, req)
	require.ErrorIs(t, err, store.ErrAlreadyExists)
	require.Equal(t, db.IDUndefined, resp.ID)
	require.False(t, resp.Handle.IsDefined())

	req.Collective = true
	resp, err = e.svc.Create(e.ctx, req)
	require.NoError(t, err)
	require.False(t, resp.Created)
	require.True(t, resp.Handle.IsDefined())
}

func TestCreateRace(t *testing.T) {
	cs := &countingStore{IObjectStore: lstore.NewLocalStore(func() db.ObjectDB { return maple.NewMapleDB(nil) })}
	e := newTestEnv(t, cs, Config{})
	createdBefore := cs.created.Load()

	const racers = 16
	var creators atomic.Int64
	var g errgroup.Group
	for i := 0; i < racers; i++ {
		g.Go(func() error {
			resp, err := e.svc.Create(e.ctx, CreateRequest{
				LocID: db.RootID, Name: "shared", MapID: 4242,
				MdkvID: db.IDUndefined, AttrkvID: db.IDUndefined,
				KeyType: dtype.NativeInt, ValType: dtype.NativeInt,
				WTID: 1, RTID: 1, Scope: checksum.ScopeAll, Collective: true,
			})
			if err != nil {
				return err
			}
			if resp.Created {
				creators.Add(1)
			}
			return e.svc.Close(e.ctx, CloseRequest{Handle: resp.Handle})
		})
	}
	require.NoError(t, g.Wait())

	require.Equal(t, int64(1), creators.Load())
	// map, metadata container and attribute container
	require.Equal(t, int64(3), cs.created.Load()-createdBefore)

	resp, err := e.svc.Open(e.ctx, OpenRequest{LocID: db.RootID, Name: "shared", RTID: 1, Scope: checksum.ScopeIOD})
	require.NoError(t, err)
	require.Equal(t, uint64(1), resp.LinkCount)

	root, _ := e.st.OpenRead(db.RootID)
	n, err := e.st.KVCount(root, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(1), n)
}

func TestVariableLengthValues(t *testing.T) {
	e := newTestEnv(t, nil, Config{TraceValues: true})
	m := e.createMap(t, "strings", 1)
	target := Target{ID: m.ID, Handle: m.Handle}
	strValues := ValueTypes{ValueMem: dtype.CString, ValueMap: dtype.CString}

	text := []byte("Now we are engaged in a great civil war,")
	desc := e.reg.Expose(text, bulk.ModeReadOnly)
	require.NoError(t, e.svc.Set(e.ctx, SetRequest{
		Target: target, KeyTypes: intKeys, ValueTypes: strValues,
		Key: intBytes(1), Value: desc, Checksum: checksum.Compute(text),
		WTID: 2, Scope: checksum.ScopeTransfer,
	}))

	// size probe
	resp, err := e.svc.Get(e.ctx, GetRequest{
		Target: target, KeyTypes: intKeys, ValueTypes: strValues,
		Key: intBytes(1), VariableLength: true, RTID: 2, Scope: checksum.ScopeTransfer,
	})
	require.NoError(t, err)
	require.Equal(t, uint64(len(text)), resp.Size)
	require.Equal(t, checksum.Compute(text), resp.Checksum)

	buf := make([]byte, resp.Size)
	out := e.reg.Expose(buf, bulk.ModeWriteOnly)
	resp, err = e.svc.Get(e.ctx, GetRequest{
		Target: target, KeyTypes: intKeys, ValueTypes: strValues,
		Key: intBytes(1), VariableLength: true, ValueSize: uint64(len(buf)), Value: out, RTID: 2,
	})
	require.NoError(t, err)
	require.Equal(t, text, buf)
}

func TestValueSourceInjection(t *testing.T) {
	seq := []byte{1, 0, 0, 0, 2, 0, 0, 0}
	var calls atomic.Int32
	source := func(st store.IObjectStore, h store.Handle, rtid uint64, key []byte) ([]byte, error) {
		calls.Add(1)
		return seq, nil
	}
	e := newTestEnv(t, nil, Config{VLSource: source})
	m := e.createMap(t, "vlen", 1)
	target := Target{ID: m.ID}
	require.NoError(t, e.set(target, intBytes(1), intBytes(0), 2, checksum.Compute(intBytes(0))))

	resp, err := e.svc.Get(e.ctx, GetRequest{
		Target: target, KeyTypes: intKeys,
		ValueTypes: ValueTypes{ValueMem: dtype.VLenOf(dtype.NativeInt), ValueMap: dtype.VLenOf(dtype.NativeInt)},
		Key:        intBytes(1), VariableLength: true, RTID: 2,
	})
	require.NoError(t, err)
	require.Equal(t, uint64(len(seq)), resp.Size)
	require.Equal(t, int32(1), calls.Load())
}

func TestCloseWithoutHandle(t *testing.T) {
	e := newTestEnv(t, nil, Config{})
	require.NoError(t, e.svc.Close(e.ctx, CloseRequest{}))
	require.ErrorIs(t, e.svc.Close(e.ctx, CloseRequest{Handle: store.Handle{Cookie: 99}}), store.ErrInvalidHandle)
}

func TestTransferFailure(t *testing.T) {
	e := newTestEnv(t, nil, Config{BulkTimeout: time.Second})
	m := e.createMap(t, "map", 1)

	err := e.svc.Set(e.ctx, SetRequest{
		Target: Target{ID: m.ID}, KeyTypes: intKeys, ValueTypes: intValues,
		Key: intBytes(1), Value: bulk.Descriptor{Origin: bulk.LocalOrigin, Region: "gone", Size: 4}, WTID: 2,
	})
	require.ErrorIs(t, err, store.ErrTransferFailed)

	err = e.set(Target{ID: m.ID}, []byte{1, 2}, intBytes(1), 2, checksum.Compute(intBytes(1)))
	require.ErrorIs(t, err, store.ErrTypeConversionFailed)
}

func TestCreateAllocatedIDCollision(t *testing.T) {
	cs := &collidingStore{IObjectStore: lstore.NewLocalStore(func() db.ObjectDB { return maple.NewMapleDB(nil) })}
	e := newTestEnv(t, cs, Config{})

	for _, collective := range []bool{false, true} {
		cs.collisions.Store(2)
		cs.rejected = nil
		resp, err := e.svc.Create(e.ctx, CreateRequest{
			LocID: db.RootID, Name: fmt.Sprintf("m-%t", collective),
			MapID: db.IDUndefined, MdkvID: db.IDUndefined, AttrkvID: db.IDUndefined,
			KeyType: dtype.NativeInt, ValType: dtype.NativeInt,
			WTID: 1, RTID: 1, Scope: checksum.ScopeAll, Collective: collective,
		})
		require.NoError(t, err)
		require.True(t, resp.Created)
		require.Len(t, cs.rejected, 2)
		require.NotContains(t, cs.rejected, resp.ID)

		opened, err := e.svc.Open(e.ctx, OpenRequest{LocID: db.RootID, Name: fmt.Sprintf("m-%t", collective), RTID: 1})
		require.NoError(t, err)
		require.Equal(t, resp.ID, opened.ID)
	}
}

func TestCreateSetupFailure(t *testing.T) {
	fs := &failingScratchStore{countingStore: countingStore{
		IObjectStore: lstore.NewLocalStore(func() db.ObjectDB { return maple.NewMapleDB(nil) }),
	}}
	e := newTestEnv(t, fs, Config{})
	openBefore := fs.open.Load()

	fs.fail.Store(true)
	resp, err := e.svc.Create(e.ctx, CreateRequest{
		LocID: db.RootID, Name: "broken",
		MapID: 900, MdkvID: db.IDUndefined, AttrkvID: db.IDUndefined,
		KeyType: dtype.NativeInt, ValType: dtype.NativeInt, WTID: 1, RTID: 1,
	})
	require.Equal(t, store.RetCInternalError, store.CodeOf(err))
	require.Equal(t, db.IDUndefined, resp.ID)
	require.False(t, resp.Handle.IsDefined())
	require.Equal(t, openBefore, fs.open.Load())

	// the map was never linked
	_, err = e.svc.Open(e.ctx, OpenRequest{LocID: db.RootID, Name: "broken", RTID: 1})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestOversizedValue(t *testing.T) {
	e := newTestEnv(t, nil, Config{})
	m := e.createMap(t, "map", 1)

	desc := e.reg.Expose(intBytes(1), bulk.ModeReadOnly)
	defer e.reg.Withdraw(desc)
	desc.Size = 1 << 62

	err := e.svc.Set(e.ctx, SetRequest{
		Target: Target{ID: m.ID}, KeyTypes: intKeys, ValueTypes: intValues,
		Key: intBytes(1), Value: desc, WTID: 2,
	})
	require.ErrorIs(t, err, store.ErrResourceExhausted)

	n, err := e.svc.GetCount(e.ctx, CountRequest{Target: Target{ID: m.ID}, RTID: 2})
	require.NoError(t, err)
	require.Zero(t, n.Count)
}

func TestMalformedDatatypes(t *testing.T) {
	e := newTestEnv(t, nil, Config{})

	_, err := e.svc.Create(e.ctx, CreateRequest{
		LocID: db.RootID, Name: "untyped",
		MapID: db.IDUndefined, MdkvID: db.IDUndefined, AttrkvID: db.IDUndefined,
		KeyType: dtype.NativeInt, WTID: 1, RTID: 1,
	})
	require.Equal(t, store.RetCInvalidOperation, store.CodeOf(err))

	m := e.createMap(t, "map", 1)
	target := Target{ID: m.ID}
	int24 := dtype.Type{Class: dtype.ClassInteger, Size: 3, Signed: true}
	float16 := dtype.Type{Class: dtype.ClassFloat, Size: 2}

	tests := []struct {
		name string
		keys KeyTypes
	}{
		{"int24 to float", KeyTypes{KeyMem: int24, KeyMap: dtype.NativeFloat}},
		{"float to int24", KeyTypes{KeyMem: dtype.NativeFloat, KeyMap: int24}},
		{"float16 to double", KeyTypes{KeyMem: float16, KeyMap: dtype.NativeDouble}},
		{"int32 to float16", KeyTypes{KeyMem: dtype.NativeInt32, KeyMap: float16}},
		{"int24 to int32", KeyTypes{KeyMem: int24, KeyMap: dtype.NativeInt32}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := make([]byte, tt.keys.KeyMem.Size)
			resp, err := e.svc.Exists(e.ctx, ExistsRequest{Target: target, KeyTypes: tt.keys, Key: key, RTID: 1})
			require.ErrorIs(t, err, store.ErrTypeConversionFailed)
			require.Equal(t, ExistsUnknown, resp.Exists)

			require.ErrorIs(t, e.svc.Delete(e.ctx, DeleteRequest{Target: target, KeyTypes: tt.keys, Key: key, WTID: 2}),
				store.ErrTypeConversionFailed)
		})
	}
}
