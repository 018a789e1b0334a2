// Package nats implements the pub/sub transport on top of a NATS server.
//
// Endpoints are NATS urls (several are joined into a server list), topics are
// used as subjects. The connection reconnects on its own; Close drains
// pending messages before closing.
package nats
