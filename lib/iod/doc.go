// Package iod contains the server side helpers shared by the object handlers:
// links between groups and objects, the metadata keys kept in every metadata
// container, path traversal and the bootstrap of a container's root group.
//
// A group is a KV object whose entries map link names to encoded Link values.
// Every group and map has a scratch pad pointing to its metadata container and
// attribute container.
package iod
