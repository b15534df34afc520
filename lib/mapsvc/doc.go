// Package mapsvc implements the server side handlers of map objects:
// Create, Open, Set, Get, GetCount, Exists, Delete and Close.
//
// Every handler runs to completion and returns exactly one response. Resources
// acquired on the way (pulled blocks, locally opened handles, traversal handles)
// are recorded in a scope and released in reverse order on every exit path.
//
// Handlers that take a Target accept either an open handle or only an object id.
// Without a handle the map is opened for the duration of the call and closed
// before the handler returns.
//
// Values are moved with a bulk.Adapter: Set pulls the value from the client,
// Get pushes it back. Keys travel inline. Both are converted between their
// memory type (client) and map type (stored) with package dtype, variable
// length values are stored verbatim.
package mapsvc
