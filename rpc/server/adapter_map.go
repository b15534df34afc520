package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kvmkrao/hdf5/lib/mapsvc"
	"github.com/kvmkrao/hdf5/lib/store"
	"github.com/kvmkrao/hdf5/rpc/common"
)

// NewMapServerAdapter creates an adapter that executes map requests with svc.
// st is the store of the container, it answers ContainerInfo requests.
func NewMapServerAdapter(containerID uint64, st store.IObjectStore, svc *mapsvc.Service) IRPCServerAdapter {
	return &mapServerAdapterImpl{
		containerID: containerID,
		st:          st,
		svc:         svc,
	}
}

type mapServerAdapterImpl struct {
	containerID uint64
	st          store.IObjectStore
	svc         *mapsvc.Service
}

func (adapter *mapServerAdapterImpl) Handle(ctx context.Context, req *common.Message) (resp *common.Message) {
	start := time.Now()
	defer func() {
		observe(req.MsgType, resp, start)
	}()

	// Handle different message types
	switch req.MsgType {
	case common.MsgTMapCreate:
		r, err := req.MapCreateRequest()
		if err != nil {
			return common.NewMapCreateResponse(mapsvc.CreateResponse{}, err)
		}
		return common.NewMapCreateResponse(adapter.svc.Create(ctx, r))
	case common.MsgTMapOpen:
		return common.NewMapOpenResponse(adapter.svc.Open(ctx, req.MapOpenRequest()))
	case common.MsgTMapSet:
		r, err := req.MapSetRequest()
		if err != nil {
			return common.NewMapSetResponse(err)
		}
		return common.NewMapSetResponse(adapter.svc.Set(ctx, r))
	case common.MsgTMapGet:
		r, err := req.MapGetRequest()
		if err != nil {
			return common.NewMapGetResponse(mapsvc.GetResponse{}, err)
		}
		return common.NewMapGetResponse(adapter.svc.Get(ctx, r))
	case common.MsgTMapGetCount:
		return common.NewMapCountResponse(adapter.svc.GetCount(ctx, req.MapCountRequest()))
	case common.MsgTMapExists:
		r, err := req.MapExistsRequest()
		if err != nil {
			return common.NewMapExistsResponse(mapsvc.ExistsResponse{Exists: mapsvc.ExistsUnknown}, err)
		}
		return common.NewMapExistsResponse(adapter.svc.Exists(ctx, r))
	case common.MsgTMapDelete:
		r, err := req.MapDeleteRequest()
		if err != nil {
			return common.NewMapDeleteResponse(err)
		}
		return common.NewMapDeleteResponse(adapter.svc.Delete(ctx, r))
	case common.MsgTMapClose:
		return common.NewMapCloseResponse(adapter.svc.Close(ctx, req.MapCloseRequest()))
	case common.MsgTContainerInfo:
		return common.NewContainerInfoResponse(adapter.containerInfo())
	default:
		return common.NewErrorResponse(store.Errorf(store.RetCUnsupportedOperation,
			"RPC MapAdapter - Unsupported message type: %s", req.MsgType))
	}
}

// ContainerInfo is the payload of a ContainerInfo response
type ContainerInfo struct {
	ContainerID uint64 `json:"container_id"`
	Database    any    `json:"database"`
}

func (adapter *mapServerAdapterImpl) containerInfo() ([]byte, error) {
	info, err := adapter.st.GetDBInfo()
	if err != nil {
		return nil, err
	}
	meta, err := json.Marshal(ContainerInfo{ContainerID: adapter.containerID, Database: info})
	if err != nil {
		return nil, store.NewError(store.RetCInternalError, fmt.Sprintf("encode container info: %v", err))
	}
	return meta, nil
}
