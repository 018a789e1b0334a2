// Package unix implements the socket pub/sub transport over Unix domain
// sockets, for a hub and its clients running on the same machine.
//
// Key Components:
//
//   - clientConnector: Establishes connections using Unix domain sockets
//
//   - serverConnector: Creates the hub listener, an existing socket file at
//     the endpoint is removed first
//
// The default hub buffer size is 64 KB.
package unix
