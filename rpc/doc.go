// Package rpc provides the remote procedure call layer of the map service.
// It carries map requests from clients to the containers hosted by a server.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities used across the RPC system,
//     including the Message protocol, configuration structures, and logging.
//
//   - transport: Network communication abstractions with pluggable implementations
//     (TCP, Unix sockets, HTTP).
//
//   - serializer: Message serialization with multiple format options (Binary, JSON, GOB)
//     for converting between Message objects and byte arrays.
//
//   - client: RPC map client implementing IMapClient. Values travel out of band,
//     the client exposes its buffers and the server pulls or pushes them.
//
//   - server: RPC server hosting local and replicated containers and routing
//     requests to the map service of each container.
package rpc
