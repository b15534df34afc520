package server

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/kvmkrao/hdf5/lib/bulk"
	"github.com/kvmkrao/hdf5/lib/checksum"
	"github.com/kvmkrao/hdf5/lib/db"
	"github.com/kvmkrao/hdf5/lib/dtype"
	"github.com/kvmkrao/hdf5/lib/mapsvc"
	"github.com/kvmkrao/hdf5/lib/store"
	"github.com/kvmkrao/hdf5/rpc/common"
	"github.com/kvmkrao/hdf5/rpc/serializer"
	"github.com/kvmkrao/hdf5/rpc/transport"
	"github.com/stretchr/testify/require"
)

// nopTransport records the handler but never listens
type nopTransport struct {
	handler transport.ServerHandleFunc
}

func (t *nopTransport) RegisterHandler(handler transport.ServerHandleFunc) { t.handler = handler }
func (t *nopTransport) Listen(common.ServerConfig) error                  { return nil }
func (t *nopTransport) Close() error                                      { return nil }

// panickingAdapter fails every request with a panic
type panickingAdapter struct{}

func (panickingAdapter) Handle(context.Context, *common.Message) *common.Message {
	panic("adapter failure")
}

type testServer struct {
	srv *RPCServer
	tr  *nopTransport
	ser serializer.IRPCSerializer
	reg *bulk.Registry
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	reg := bulk.NewRegistry(bulk.LocalOrigin)
	tr := &nopTransport{}
	ser := serializer.NewBinarySerializer()
	srv := NewRPCServer(common.ServerConfig{
		Containers:        []common.ServerContainer{{ContainerID: 1, Type: common.ContainerTypeLocal}},
		TimeoutSecond:     5,
		BulkTimeoutSecond: 1,
		LogLevel:          "error",
	}, tr, ser, WithBulkTransport(bulk.NewLocalTransport(reg)))
	require.NoError(t, srv.Init())
	t.Cleanup(func() { _ = srv.Close() })
	return &testServer{srv: srv, tr: tr, ser: ser, reg: reg}
}

// call sends msg through the registered handler like a transport would
func (s *testServer) call(t *testing.T, containerID uint64, msg *common.Message) *common.Message {
	t.Helper()
	req, err := s.ser.Serialize(*msg)
	require.NoError(t, err)
	var resp common.Message
	require.NoError(t, s.ser.Deserialize(s.tr.handler(containerID, req), &resp))
	return &resp
}

func TestHandlerRegistered(t *testing.T) {
	s := newTestServer(t)
	require.NotNil(t, s.tr.handler)
}

func TestUnknownContainer(t *testing.T) {
	s := newTestServer(t)
	resp := s.call(t, 99, common.NewContainerInfoRequest())
	require.Equal(t, common.MsgTError, resp.MsgType)
	require.Equal(t, store.RetCNotFound, store.CodeOf(resp.AsError()))
}

func TestUndecodableRequest(t *testing.T) {
	s := newTestServer(t)
	var resp common.Message
	require.NoError(t, s.ser.Deserialize(s.srv.Handle(1, []byte{1}), &resp))
	require.Equal(t, common.MsgTError, resp.MsgType)
	require.Equal(t, store.RetCInvalidOperation, store.CodeOf(resp.AsError()))
}

func TestUnsupportedMessage(t *testing.T) {
	s := newTestServer(t)
	resp := s.call(t, 1, &common.Message{MsgType: common.MsgTSuccess})
	require.Equal(t, store.RetCUnsupportedOperation, store.CodeOf(resp.AsError()))
}

func TestContainerInfo(t *testing.T) {
	s := newTestServer(t)
	resp := s.call(t, 1, common.NewContainerInfoRequest())
	require.NoError(t, resp.StatusOf(common.MsgTContainerInfo))

	var info ContainerInfo
	require.NoError(t, json.Unmarshal(resp.Meta, &info))
	require.EqualValues(t, 1, info.ContainerID)
	require.NotNil(t, info.Database)
}

func TestMapRoundTrip(t *testing.T) {
	s := newTestServer(t)

	created, err := s.call(t, 1, common.NewMapCreateRequest(mapsvc.CreateRequest{
		LocID: db.RootID, Name: "/m",
		MapID: db.IDUndefined, MdkvID: db.IDUndefined, AttrkvID: db.IDUndefined,
		KeyType: dtype.NativeInt32, ValType: dtype.NativeInt32,
		WTID: 1, RTID: 0, Scope: checksum.ScopeAll,
	})).MapCreateResponse()
	require.NoError(t, err)
	require.True(t, created.Created)
	require.True(t, created.Handle.IsDefined())

	target := mapsvc.Target{ID: created.ID, Handle: created.Handle}
	kt := mapsvc.KeyTypes{KeyMem: dtype.NativeInt32, KeyMap: dtype.NativeInt32}
	vt := mapsvc.ValueTypes{ValueMem: dtype.NativeInt32, ValueMap: dtype.NativeInt32}
	key := []byte{7, 0, 0, 0}
	value := []byte{42, 0, 0, 0}

	desc := s.reg.Expose(value, bulk.ModeReadOnly)
	err = s.call(t, 1, common.NewMapSetRequest(mapsvc.SetRequest{
		Target: target, KeyTypes: kt, ValueTypes: vt,
		Key: key, Value: desc, Checksum: checksum.Compute(value),
		WTID: 1, RTID: 1, Scope: checksum.ScopeTransfer,
	})).StatusOf(common.MsgTMapSet)
	s.reg.Withdraw(desc)
	require.NoError(t, err)

	buf := make([]byte, 4)
	desc = s.reg.Expose(buf, bulk.ModeWriteOnly)
	got, err := s.call(t, 1, common.NewMapGetRequest(mapsvc.GetRequest{
		Target: target, KeyTypes: kt, ValueTypes: vt,
		Key: key, ValueSize: 4, Value: desc,
		RTID: 1, Scope: checksum.ScopeTransfer,
	})).MapGetResponse()
	s.reg.Withdraw(desc)
	require.NoError(t, err)
	require.EqualValues(t, 4, got.Size)
	require.Equal(t, checksum.Compute(value), got.Checksum)
	require.Equal(t, value, buf)

	count, err := s.call(t, 1, common.NewMapCountRequest(mapsvc.CountRequest{Target: target, RTID: 1})).MapCountResponse()
	require.NoError(t, err)
	require.EqualValues(t, 1, count.Count)

	exists, err := s.call(t, 1, common.NewMapExistsRequest(mapsvc.ExistsRequest{
		Target: target, KeyTypes: kt, Key: key, RTID: 1,
	})).MapExistsResponse()
	require.NoError(t, err)
	require.Equal(t, mapsvc.ExistsTrue, exists.Exists)

	require.NoError(t, s.call(t, 1, common.NewMapCloseRequest(mapsvc.CloseRequest{Handle: created.Handle})).
		StatusOf(common.MsgTMapClose))
	require.Equal(t, 0, s.reg.Len())
}

func TestMetricsRecorded(t *testing.T) {
	s := newTestServer(t)
	before := requestCounter(common.MsgTContainerInfo).Get()
	s.call(t, 1, common.NewContainerInfoRequest())
	require.Equal(t, before+1, requestCounter(common.MsgTContainerInfo).Get())
}

func TestCloseStopsBootstrap(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.srv.Close())

	// closing twice is harmless
	done := make(chan error, 1)
	go func() { done <- s.srv.Close() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("close blocked")
	}
}

func TestAdapterPanicRecovered(t *testing.T) {
	s := newTestServer(t)
	s.srv.containers.Store(7, serverContainer{Adapter: panickingAdapter{}})

	before := requestErrors.Get()
	resp := s.call(t, 7, common.NewContainerInfoRequest())
	require.Equal(t, common.MsgTError, resp.MsgType)
	require.Equal(t, store.RetCInternalError, store.CodeOf(resp.AsError()))
	require.Equal(t, before+1, requestErrors.Get())

	// the server keeps serving
	require.NoError(t, s.call(t, 1, common.NewContainerInfoRequest()).StatusOf(common.MsgTContainerInfo))
}

func TestMalformedDatatypeRequest(t *testing.T) {
	s := newTestServer(t)

	created, err := s.call(t, 1, common.NewMapCreateRequest(mapsvc.CreateRequest{
		LocID: db.RootID, Name: "/m",
		MapID: db.IDUndefined, MdkvID: db.IDUndefined, AttrkvID: db.IDUndefined,
		KeyType: dtype.NativeInt32, ValType: dtype.NativeInt32, WTID: 1, RTID: 0,
	})).MapCreateResponse()
	require.NoError(t, err)

	msg := common.NewMapExistsRequest(mapsvc.ExistsRequest{
		Target:   mapsvc.Target{ID: created.ID},
		KeyTypes: mapsvc.KeyTypes{KeyMem: dtype.NativeInt32, KeyMap: dtype.NativeFloat},
		Key:      []byte{1, 2, 3},
		RTID:     1,
	})
	// int24 is no valid integer size
	msg.KeyMem = dtype.Type{Class: dtype.ClassInteger, Size: 3, Signed: true}.Encode()

	exists, err := s.call(t, 1, msg).MapExistsResponse()
	require.Equal(t, store.RetCInvalidOperation, store.CodeOf(err))
	require.Equal(t, mapsvc.ExistsUnknown, exists.Exists)
}
