// Package base implements a pub/sub transport over stream sockets,
// independent of the specific network protocol (TCP, Unix sockets). The tcp
// and unix packages extend it with protocol specific connectors.
//
// All processes connect to a hub. A client subscribes to topics and publishes
// frames, the hub forwards every published frame to the connections
// subscribed to its topic (including the publisher itself).
//
// Frame format (big endian):
//
//	8 bytes  topic id (FNV-1a hash of the topic name)
//	8 bytes  operation (1 subscribe, 2 unsubscribe, 3 publish)
//	4 bytes  payload length
//	N bytes  payload
//
// Key Components:
//
//   - IClientConnector/IServerConnector: Interfaces for protocol-specific
//     operations that allow extending the base transport with different
//     network protocols.
//
//   - clientTransport: one connection to the first reachable endpoint.
//     Publishing retries with exponential backoff. A lost connection is
//     re-established in the background and all topics are subscribed again.
//     Received messages are handed to a transport.Dispatcher, so handlers run
//     in order and may publish themselves.
//
//   - HubTransport: accepts connections and tracks their subscriptions. A
//     publish is written to all subscribers in parallel, bounded by a worker
//     semaphore per connection, and finished before the next frame of that
//     connection is read. Read buffers come from a sync.Pool.
//
// Thread Safety:
//
//	All public methods are thread-safe.
package base
