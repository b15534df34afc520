package client

import (
	"github.com/kvmkrao/hdf5/lib/bulk"
	"github.com/kvmkrao/hdf5/lib/checksum"
	"github.com/kvmkrao/hdf5/lib/mapsvc"
	"github.com/kvmkrao/hdf5/lib/store"
	"github.com/kvmkrao/hdf5/rpc/common"
	"github.com/kvmkrao/hdf5/rpc/serializer"
	"github.com/kvmkrao/hdf5/rpc/transport"
)

// NewRPCMapClient creates a new RPC map client
// The function takes a container ID, a config, a transport, a serializer and the
// exposer that makes value buffers reachable for the server as parameters.
// It returns an IMapClient and an error
func NewRPCMapClient(
	containerID uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
	exposer bulk.IExposer,
) (IMapClient, error) {

	// Connect the transport
	err := transport.Connect(config)
	if err != nil {
		return nil, err
	}

	// Create a new RPC map client
	c := rpcMapClient{
		rpcClientAdapter: rpcClientAdapter{
			containerID: containerID,
			config:      config,
			transport:   transport,
			serializer:  serializer,
		},
		exposer: exposer,
	}

	// Return the RPC map client
	return &c, nil
}

type rpcMapClient struct {
	rpcClientAdapter
	exposer bulk.IExposer
}

func (c *rpcMapClient) invoke(req *common.Message) (*common.Message, error) {
	return invokeRPCRequest(c.containerID, req, c.transport, c.serializer)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see IMapClient in interface.go)
// --------------------------------------------------------------------------

func (c *rpcMapClient) Create(req mapsvc.CreateRequest) (mapsvc.CreateResponse, error) {
	resp, err := c.invoke(common.NewMapCreateRequest(req))
	if err != nil {
		return mapsvc.CreateResponse{Handle: store.UndefinedHandle}, err
	}
	return resp.MapCreateResponse()
}

func (c *rpcMapClient) Open(req mapsvc.OpenRequest) (mapsvc.OpenResponse, error) {
	resp, err := c.invoke(common.NewMapOpenRequest(req))
	if err != nil {
		return mapsvc.OpenResponse{Handle: store.UndefinedHandle}, err
	}
	return resp.MapOpenResponse()
}

func (c *rpcMapClient) Set(target mapsvc.Target, kt mapsvc.KeyTypes, vt mapsvc.ValueTypes, key, value []byte, tx Tx) error {
	req := mapsvc.SetRequest{
		Target:     target,
		KeyTypes:   kt,
		ValueTypes: vt,
		Key:        key,
		WTID:       tx.WTID,
		RTID:       tx.RTID,
		Scope:      tx.Scope,
	}
	if tx.Scope.Has(checksum.ScopeTransfer) {
		req.Checksum = checksum.Compute(value)
	}

	// the server pulls the value while the request is in flight
	req.Value = c.exposer.Expose(value, bulk.ModeReadOnly)
	defer c.exposer.Withdraw(req.Value)

	resp, err := c.invoke(common.NewMapSetRequest(req))
	if err != nil {
		return err
	}
	return resp.StatusOf(common.MsgTMapSet)
}

func (c *rpcMapClient) Get(target mapsvc.Target, kt mapsvc.KeyTypes, vt mapsvc.ValueTypes, key []byte, capacity uint64, tx Tx) ([]byte, error) {
	req := mapsvc.GetRequest{
		Target:     target,
		KeyTypes:   kt,
		ValueTypes: vt,
		Key:        key,
		RTID:       tx.RTID,
		Scope:      tx.Scope,
	}

	if vt.ValueMem.IsVariable() {
		// ask for the size first
		req.VariableLength = true
		probe, err := c.get(req, nil)
		if err != nil {
			return nil, err
		}
		if probe.Size == 0 {
			return []byte{}, verify(tx.Scope, nil, probe.Checksum)
		}
		capacity = probe.Size
	} else if capacity == 0 {
		capacity = uint64(vt.ValueMem.Size)
	}

	buf := make([]byte, capacity)
	req.ValueSize = capacity
	resp, err := c.get(req, buf)
	if err != nil {
		return nil, err
	}
	if resp.Size > capacity {
		return nil, store.Errorf(store.RetCResourceExhausted, "server reported %d bytes for a buffer of %d", resp.Size, capacity)
	}
	buf = buf[:resp.Size]
	if err := verify(tx.Scope, buf, resp.Checksum); err != nil {
		return nil, err
	}
	return buf, nil
}

func (c *rpcMapClient) GetCount(target mapsvc.Target, rtid uint64) (uint64, error) {
	resp, err := c.invoke(common.NewMapCountRequest(mapsvc.CountRequest{Target: target, RTID: rtid}))
	if err != nil {
		return mapsvc.CountUndefined, err
	}
	count, err := resp.MapCountResponse()
	return count.Count, err
}

func (c *rpcMapClient) Exists(target mapsvc.Target, kt mapsvc.KeyTypes, key []byte, rtid uint64) (bool, error) {
	resp, err := c.invoke(common.NewMapExistsRequest(mapsvc.ExistsRequest{
		Target:   target,
		KeyTypes: kt,
		Key:      key,
		RTID:     rtid,
	}))
	if err != nil {
		return false, err
	}
	exists, err := resp.MapExistsResponse()
	if err != nil {
		return false, err
	}
	return exists.Exists == mapsvc.ExistsTrue, nil
}

func (c *rpcMapClient) Delete(target mapsvc.Target, kt mapsvc.KeyTypes, key []byte, tx Tx) error {
	resp, err := c.invoke(common.NewMapDeleteRequest(mapsvc.DeleteRequest{
		Target:   target,
		KeyTypes: kt,
		Key:      key,
		WTID:     tx.WTID,
		RTID:     tx.RTID,
	}))
	if err != nil {
		return err
	}
	return resp.StatusOf(common.MsgTMapDelete)
}

func (c *rpcMapClient) Close(h store.Handle) error {
	resp, err := c.invoke(common.NewMapCloseRequest(mapsvc.CloseRequest{Handle: h}))
	if err != nil {
		return err
	}
	return resp.StatusOf(common.MsgTMapClose)
}

func (c *rpcMapClient) ContainerInfo() ([]byte, error) {
	resp, err := c.invoke(common.NewContainerInfoRequest())
	if err != nil {
		return nil, err
	}
	if err := resp.StatusOf(common.MsgTContainerInfo); err != nil {
		return nil, err
	}
	return resp.Meta, nil
}

func (c *rpcMapClient) Shutdown() error {
	return c.transport.Close()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// get sends a Get request with buf exposed as destination, nil sends a size probe
func (c *rpcMapClient) get(req mapsvc.GetRequest, buf []byte) (mapsvc.GetResponse, error) {
	if buf != nil {
		req.Value = c.exposer.Expose(buf, bulk.ModeWriteOnly)
		defer c.exposer.Withdraw(req.Value)
	}
	resp, err := c.invoke(common.NewMapGetRequest(req))
	if err != nil {
		return mapsvc.GetResponse{}, err
	}
	return resp.MapGetResponse()
}

// verify compares the checksum sent by the server with the received data
func verify(scope checksum.Scope, data []byte, expected uint64) error {
	if !scope.Has(checksum.ScopeTransfer) || expected == checksum.None {
		return nil
	}
	if cs := checksum.Compute(data); cs != expected {
		Logger.Warningf("value corrupted in transfer: expected checksum %#x, got %#x", expected, cs)
		return store.Errorf(store.RetCIntegrityError, "value corrupted in transfer: expected checksum %#x, got %#x", expected, cs)
	}
	return nil
}
