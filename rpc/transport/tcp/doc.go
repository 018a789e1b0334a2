// Package tcp implements the socket pub/sub transport over TCP. It provides
// the TCP specific connectors for the base package, see there for the frame
// format and the hub.
//
// Key Components:
//
//   - clientConnector: TCP specific implementation of base.IClientConnector
//
//   - serverConnector: TCP specific implementation of base.IServerConnector
//
// Connections disable Nagle's algorithm and use TCP keep-alive. The default
// hub buffer size is 512 KB.
package tcp
