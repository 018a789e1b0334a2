// Package server implements the config server.
//
// A ConfigServer holds the global configuration in an unfiltered overlay
// store that is finalized right away, so every change runs the change hooks.
// It subscribes to the client topics of its namespace:
//
//   - requestFullConfig: the complete configuration is sent to the requester
//   - requestSingleValue: the value is resolved with the default of the
//     requester and sent back, Found tells whether the server had a value
//   - sendClientConfig: the configuration of a client is merged in, without
//     checking who sent it
//
// Message handling is serialized by a single mutex. Every server instance
// gets a unique name (prefix plus uuid) and its own VictoriaMetrics set.
// With an admin endpoint configured, Serve also runs a small HTTP API for
// metrics and configuration dumps, see AdminHandler.
package server
