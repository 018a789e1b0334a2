// Package rpc holds the synchronization layer between config clients and the
// config server.
//
// The package is organized into several subpackages:
//
//   - common: the Message protocol, topic names, configuration structures and
//     logging.
//
//   - transport: the pub/sub abstraction with pluggable implementations
//     (in-process bus, NATS, TCP and Unix sockets through a relay hub).
//
//   - serializer: Message serialization (Binary, JSON, GOB).
//
//   - server: the config server owning the global configuration.
//
//   - client: the config client of one component, implementing store.IStore.
//
// Servers and clients never talk directly: every message is published on the
// topic of its type within a namespace, receivers filter by name.
package rpc
