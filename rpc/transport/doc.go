// Package transport defines the message bus used by config servers and
// config clients.
//
// Key Components:
//
//   - IPubSubTransport: topic based publish/subscribe. Implementations live in
//     the sub packages: local (in-process), nats (NATS server) and tcp / unix
//     (socket connections to a dcfg hub, see package base).
//
//   - IHubTransport: the relay process the socket transports connect to.
//
//   - Dispatcher: a serial executor the implementations use to run handlers
//     in order without blocking their read loops.
package transport
