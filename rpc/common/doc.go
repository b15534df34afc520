// Package common provides core data structures and utilities shared across
// the map server, its clients and the CLI. It defines the wire message,
// configuration structures and the logger used by all other packages.
//
// Key Components:
//
//   - Message: Core data structure for all RPC communication. One flat struct
//     carries every request and response, which fields are used depends on
//     the MessageType. The NewMapXRequest/NewMapXResponse factories build
//     messages from the typed requests of package mapsvc, the MapXRequest and
//     MapXResponse methods decode them again.
//
//   - MessageType: Enumeration of all supported operations (map lifecycle,
//     map entries, container info) plus the control messages success and error.
//
//   - ServerConfig: Configuration of a server node: hosted containers, RAFT
//     parameters for replicated containers, network settings and map service
//     options. Provides helpers to convert to Dragonboat configurations.
//
//   - ClientConfig: Configuration of a map client: target container, transport
//     endpoints, timeouts and the endpoint client buffers are exposed on.
//
//   - Logger: Custom logging implementation that integrates with Dragonboat's
//     logging system while providing consistent formatting across the application.
package common
