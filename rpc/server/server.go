package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"runtime"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/kvmkrao/hdf5/lib/bulk"
	bulkhttp "github.com/kvmkrao/hdf5/lib/bulk/http"
	"github.com/kvmkrao/hdf5/lib/checksum"
	"github.com/kvmkrao/hdf5/lib/db"
	"github.com/kvmkrao/hdf5/lib/db/engines/maple"
	"github.com/kvmkrao/hdf5/lib/iod"
	"github.com/kvmkrao/hdf5/lib/mapsvc"
	"github.com/kvmkrao/hdf5/lib/store"
	"github.com/kvmkrao/hdf5/lib/store/dstore"
	"github.com/kvmkrao/hdf5/lib/store/lstore"
	"github.com/kvmkrao/hdf5/rpc/common"
	"github.com/kvmkrao/hdf5/rpc/serializer"
	"github.com/kvmkrao/hdf5/rpc/transport"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("rpc")

// bootstrapWTID is the write transaction the root group of a container is created in
const bootstrapWTID = 0

// serverContainer is a container hosted by the RPC server.
// It holds the store of the container and the adapter that handles requests for it.
type serverContainer struct {
	Store   store.IObjectStore
	Service *mapsvc.Service
	Adapter IRPCServerAdapter
}

// Option configures optional parts of the server
type Option func(s *RPCServer)

// WithBulkTransport replaces the transport used to move values from and to clients.
// The default reaches clients over HTTP.
func WithBulkTransport(t bulk.ITransport) Option {
	return func(s *RPCServer) {
		s.bulkTransport = t
	}
}

// WithDBFactory replaces the database used by the containers (default maple)
func WithDBFactory(factory store.DBFactory) Option {
	return func(s *RPCServer) {
		s.dbFactory = factory
	}
}

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		tcp.NewTCPDefaultServerTransport(),
//		serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	 }
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
	opts ...Option,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	s := &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		containers: xsync.NewMapOf[uint64, serverContainer](),
		bulkTransport: bulk.MultiTransport{
			"http": bulkhttp.NewTransport(),
		},
		dbFactory: func() db.ObjectDB {
			opts := maple.DefaultOptions()
			opts.VersionRetention = config.VersionRetention
			return maple.NewMapleDB(opts)
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RPCServer hosts the containers of a ServerConfig and serves map requests for them
type RPCServer struct {
	config        common.ServerConfig
	transport     transport.IRPCServerTransport
	serializer    serializer.IRPCSerializer
	containers    *xsync.MapOf[uint64, serverContainer]
	bulkTransport bulk.ITransport
	dbFactory     store.DBFactory
	nodeHost      *dragonboat.NodeHost
	metrics       *http.Server
	stop          context.CancelFunc
}

// Handle decodes a request for a container, executes it and encodes the response.
// It is registered as the handler of the transport.
func (s *RPCServer) Handle(containerID uint64, req []byte) []byte {
	var msg common.Message
	var respMsg *common.Message

	// Get appropriate container
	container, ok := s.containers.Load(containerID)

	if !ok {
		// Case container does not exist -> error
		requestErrors.Inc()
		respMsg = common.NewErrorResponse(store.Errorf(store.RetCNotFound, "container %d not found", containerID))
	} else if err := s.serializer.Deserialize(req, &msg); err != nil {
		// Case request cannot be decoded -> error
		requestErrors.Inc()
		respMsg = common.NewErrorResponse(store.Errorf(store.RetCInvalidOperation, "failed to deserialize request: %s", err))
	} else {
		// Let the adapter handle the request
		respMsg = dispatch(containerID, container.Adapter, &msg)
	}

	// Return result
	val, err := s.serializer.Serialize(*respMsg)
	if err != nil {
		requestErrors.Inc()
		Logger.Errorf("failed to serialize response: %v", err)
		val, _ = s.serializer.Serialize(*common.NewErrorResponse(
			store.Errorf(store.RetCInternalError, "failed to serialize response: %s", err)))
	}
	return val
}

// Init creates the containers and bootstraps their root groups
func (s *RPCServer) Init() error {
	// Init logger
	common.InitLoggers(s.config)

	Logger.Infof("Created RPC Server")
	Logger.Infof(s.config.String())

	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel

	// Create the Dragonboat NodeHost only if there are replicated containers
	if s.config.HasReplicatedContainer() {
		nodeHost, err := dragonboat.NewNodeHost(s.config.ToNodeHostConfig())
		if err != nil {
			return fmt.Errorf("failed to create node host: %w", err)
		}
		s.nodeHost = nodeHost
	}

	// Configure the timeout for the replicated store
	timeout := time.Duration(s.config.TimeoutSecond) * time.Second

	serviceConfig := mapsvc.Config{
		TraceValues: s.config.TraceValues,
		BulkTimeout: time.Duration(s.config.BulkTimeoutSecond) * time.Second,
	}
	adapter := bulk.NewAdapter(s.bulkTransport, serviceConfig.BulkTimeout, s.config.MaxValueSize)

	/*
		Note: A single RPC Server can host any number of local and replicated
		containers. The following loop creates the store of every container,
		the map service on top of it and bootstraps the root group.
	*/

	for _, containerConfig := range s.config.Containers {
		var st store.IObjectStore

		switch containerConfig.Type {
		case common.ContainerTypeLocal:
			st = lstore.NewLocalStore(s.dbFactory)
			Logger.Infof("created local container %d", containerConfig.ContainerID)

		case common.ContainerTypeReplicated:
			if s.nodeHost == nil {
				return fmt.Errorf("node host is nil, cannot create replicated container")
			}

			// Start Raft for the container
			if err := s.nodeHost.StartConcurrentReplica(
				s.config.ClusterMembers, false,
				dstore.CreateStateMachineFactory(s.dbFactory),
				s.config.ToDragonboatConfig(containerConfig.ContainerID),
			); err != nil {
				return fmt.Errorf("failed to start container %d: %w", containerConfig.ContainerID, err)
			}
			st = dstore.NewDistributedStore(s.nodeHost, containerConfig.ContainerID, timeout)
			Logger.Infof("created replicated container %d", containerConfig.ContainerID)

		default:
			return fmt.Errorf("invalid container type: %s", containerConfig.Type)
		}

		svc := mapsvc.NewService(st, adapter, serviceConfig)
		s.containers.Store(containerConfig.ContainerID, serverContainer{
			Store:   st,
			Service: svc,
			Adapter: NewMapServerAdapter(containerConfig.ContainerID, st, svc),
		})

		// A replicated container has no leader right after start, keep trying in the background
		if containerConfig.Type == common.ContainerTypeReplicated {
			go s.bootstrapRetry(ctx, containerConfig.ContainerID, st, svc.Allocator())
		} else if err := iod.InitContainer(st, svc.Allocator(), bootstrapWTID, checksum.ScopeAll); err != nil {
			return fmt.Errorf("failed to bootstrap container %d: %w", containerConfig.ContainerID, err)
		}
	}

	Logger.Infof("map server setup completed successfully")

	// Configure the transport layer
	s.transport.RegisterHandler(s.Handle)

	return nil
}

// Serve starts the RPC server
// This function will also initialize the server plus the containers and start the transport layer
func (s *RPCServer) Serve() error {
	if err := s.Init(); err != nil {
		return err
	}
	if s.config.MetricsEndpoint != "" {
		s.serveMetrics()
	}
	return s.transport.Listen(s.config)
}

// Close stops the transport, the metrics endpoint and the raft node host
func (s *RPCServer) Close() error {
	if s.stop != nil {
		s.stop()
	}
	err := s.transport.Close()
	if s.metrics != nil {
		err = errors.Join(err, s.metrics.Close())
	}
	if s.nodeHost != nil {
		s.nodeHost.Close()
		s.nodeHost = nil
	}
	return err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// dispatch passes msg to the adapter. A panic in the adapter is turned into an
// internal error response so a single request can not stop the server.
func dispatch(containerID uint64, adapter IRPCServerAdapter, msg *common.Message) (resp *common.Message) {
	defer func() {
		if r := recover(); r != nil {
			requestErrors.Inc()
			Logger.Errorf("panic while handling %s for container %d: %v\n%s", msg.MsgType, containerID, r, debug.Stack())
			resp = common.NewErrorResponse(store.Errorf(store.RetCInternalError,
				"internal error while handling %s: %v", msg.MsgType, r))
		}
	}()
	return adapter.Handle(context.Background(), msg)
}

// bootstrapRetry creates the root group of a replicated container once the
// container accepts writes
func (s *RPCServer) bootstrapRetry(ctx context.Context, containerID uint64, st store.IObjectStore, alloc *iod.IDAllocator) {
	backoff := 100 * time.Millisecond
	for attempt := 1; ; attempt++ {
		err := iod.InitContainer(st, alloc, bootstrapWTID, checksum.ScopeAll)
		if err == nil {
			Logger.Infof("container %d bootstrapped", containerID)
			return
		}
		Logger.Debugf("bootstrap of container %d failed (attempt %d): %v", containerID, attempt, err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(2*backoff, 5*time.Second)
	}
}

// serveMetrics exposes the metrics on the metrics endpoint
func (s *RPCServer) serveMetrics() {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /metrics", metricsHandler)
	s.metrics = &http.Server{Addr: s.config.MetricsEndpoint, Handler: mux}

	go func() {
		Logger.Infof("Serving metrics on %s", s.config.MetricsEndpoint)
		if err := s.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Logger.Errorf("metrics endpoint stopped: %v", err)
		}
	}()
}
