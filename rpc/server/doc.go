// Package server implements the RPC server of the map service.
// It hosts any number of containers and routes every request to the map
// service of the container named by the frame.
//
// Key Components:
//
//   - IRPCServerAdapter: Interface of a per container request handler,
//     turning a common.Message into exactly one response message.
//
//   - NewMapServerAdapter: Adapter that executes the map operations (Create,
//     Open, Set, Get, GetCount, Exists, Delete, Close) and ContainerInfo with a
//     mapsvc.Service.
//
//   - NewRPCServer: Factory function creating a configured server with the specified
//     transport and serializer mechanisms.
//
// Usage Example:
//
//	// Create server configuration
//	config := common.ServerConfig{
//	  Containers: []common.ServerContainer{
//	    {ContainerID: 1, Type: common.ContainerTypeLocal},
//	    {ContainerID: 2, Type: common.ContainerTypeReplicated},
//	  },
//	  Endpoint: "0.0.0.0:8080",
//	  TimeoutSecond: 5,
//	  LogLevel: "info",
//	}
//
//	// Create and start the server
//	s := server.NewRPCServer(
//	  config,
//	  tcp.NewTCPDefaultServerTransport(),
//	  serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Containers come in two types, which can be mixed within a single server:
//
//   - ContainerTypeLocal: the objects live in a local store, suitable for single-node
//     deployments or development.
//
//   - ContainerTypeReplicated: the objects live in a Raft replicated store. When using
//     this type the raft configuration (RTTMillisecond, SnapshotEntries,
//     CompactionOverhead, DataDir, ReplicaID and ClusterMembers) must be set.
//
// The root group of every container is created when the server starts. Replicated
// containers keep retrying in the background until the raft group has a leader.
//
// Values are not part of the messages. The server pulls them from and pushes them
// to the client with a bulk transport, HTTP by default (see WithBulkTransport).
//
// Request counts, durations and error codes are exported with the
// VictoriaMetrics metrics package, served on the metrics endpoint.
package server
