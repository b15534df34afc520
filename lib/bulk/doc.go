// Package bulk moves values that do not fit into a request out of band.
//
// The owner of a buffer exposes it as a region and sends the resulting Descriptor
// along with the request. The receiver uses an ITransport to read (pull) from or
// write (push) into that region. Every transfer is asynchronous and returns a
// *Request that must be waited on.
//
// The Adapter wraps the transports for the server side of an operation: Pull
// returns a pooled Block with the received bytes, Push sends bytes into a
// client region. Blocks must be released after use.
//
// Two origins exist:
//
//   - "local://" regions live in a Registry of the same process and are moved
//     with a LocalTransport (used by tests and single process setups)
//   - "http://host:port" regions are served by the exposer in package bulk/http
package bulk
