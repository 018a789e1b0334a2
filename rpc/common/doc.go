// Package common provides the data structures shared by the config server,
// the config clients and the transports.
//
// Key Components:
//
//   - Message: the single envelope of the sync protocol. A factory exists for
//     each of the six message types (full config request/response, single
//     value request/response, client config request/response).
//
//   - MessageType and Topic: every message type is published on its own topic
//     below a namespace, e.g. "dcfg.requestFullConfig".
//
//   - ServerConfig, ClientConfig, TransportConfig, HubConfig: configuration
//     structs filled by the cmd package, each with a readable String().
//
//   - Logger: custom formatting for the dragonboat logger package used
//     throughout the module, plus a change hook that applies a log level
//     stored in the configuration itself.
package common
