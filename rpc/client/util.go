package client

import (
	"fmt"

	"github.com/kvmkrao/hdf5/rpc/common"
	"github.com/kvmkrao/hdf5/rpc/serializer"
	"github.com/kvmkrao/hdf5/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("rpc")
)

// rpcClientAdapter is a struct that stores all data needed for an implementation of an RPC client
// Used by the RPCMapClient with composition pattern
type rpcClientAdapter struct {
	containerID uint64
	config      common.ClientConfig
	transport   transport.IRPCClientTransport
	serializer  serializer.IRPCSerializer
}

// invokeRPCRequest is a helper function used for all RPC Clients to send requests
// It takes a container ID, a request message, a transport layer and a serializer as parameters
// It returns the response message. Failures of the server are left in the
// response and decoded by the typed response accessors of common.Message,
// only a generic error response (MsgTError) is turned into an error here.
func invokeRPCRequest(containerID uint64, req *common.Message, transport transport.IRPCClientTransport, serializer serializer.IRPCSerializer) (*common.Message, error) {
	// Serialize the request
	reqBytes, err := serializer.Serialize(*req)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize %s request: %w", req.MsgType, err)
	}

	// Send the request
	respBytes, err := transport.Send(containerID, reqBytes)
	if err != nil {
		return nil, err
	}

	// Deserialize the response
	resp := &common.Message{}
	if err := serializer.Deserialize(respBytes, resp); err != nil {
		return nil, fmt.Errorf("failed to deserialize %s response: %w", req.MsgType, err)
	}

	// A generic error response carries no operation specific fields
	if resp.MsgType == common.MsgTError {
		if err := resp.AsError(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("server returned an error response for %s", req.MsgType)
	}

	return resp, nil
}
