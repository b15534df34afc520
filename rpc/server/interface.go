package server

import (
	"context"

	"github.com/kvmkrao/hdf5/rpc/common"
)

// IRPCServerAdapter is the interface for all RPC server adapters
// It is responsible for handling requests and responses of one container
type IRPCServerAdapter interface {
	// Handle handles a request and returns a response
	// If an error occurs, it should be set in the response
	Handle(ctx context.Context, req *common.Message) (resp *common.Message)
}
