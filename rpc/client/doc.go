// Package client implements the RPC client of the map service.
// NewRPCMapClient returns an IMapClient that forwards map operations to a
// container of a remote server.
//
// Values are never part of a message. The client exposes the value buffer with
// a bulk.IExposer (an HTTP exposer for remote servers, a bulk.Registry in
// process), sends the descriptor and withdraws the buffer once the response
// arrived.
//
// Key Components:
//
//   - NewRPCMapClient: Factory function that creates a client implementing the
//     IMapClient interface for a single container.
//
//   - Tx: transaction ids and checksum scope of an entry operation. With
//     checksum.ScopeTransfer the client sends the checksum of every value it sets
//     and verifies the checksum of every value it gets.
//
// Usage Example:
//
//	config := common.ClientConfig{
//	  ContainerID:   1,
//	  TimeoutSecond: 5,
//	  Transport: common.ClientTransportConfig{
//	    Endpoints:              []string{"localhost:8080"},
//	    RetryCount:             3,
//	    ConnectionsPerEndpoint: 1,
//	  },
//	}
//
//	exposer, _ := bulkhttp.NewExposer("0.0.0.0:8090")
//	defer exposer.Close()
//
//	c, _ := client.NewRPCMapClient(config.ContainerID, config,
//	  tcp.NewTCPClientTransport(), serializer.NewBinarySerializer(), exposer)
//
//	m, _ := c.Create(mapsvc.CreateRequest{
//	  LocID: db.RootID, Name: "/m",
//	  MapID: db.IDUndefined, MdkvID: db.IDUndefined, AttrkvID: db.IDUndefined,
//	  KeyType: dtype.NativeInt32, ValType: dtype.CString, WTID: 1,
//	})
//	target := mapsvc.Target{ID: m.ID, Handle: m.Handle}
//	c.Set(target, keyTypes, valueTypes, key, []byte("value"), client.Tx{WTID: 1, RTID: 1})
//	value, _ := c.Get(target, keyTypes, valueTypes, key, 0, client.Tx{RTID: 1})
//
// Variable length values are fetched in two round trips: a size probe followed by
// the transfer into a buffer of exactly that size.
//
// Thread Safety:
//
//	The client is thread-safe and can be used concurrently from multiple goroutines.
package client
