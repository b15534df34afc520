// Package http moves bulk regions over plain HTTP.
//
// The owner of the buffers runs an Exposer, which serves its regions under
// GET/PUT /bulk/{region}. The other side uses the Transport returned by
// NewTransport to pull (GET) from or push (PUT) into them.
package http
