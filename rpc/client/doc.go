// Package client implements the config client of one component.
//
// A ConfigClient wraps a layered overlay store (see ostore) that only keeps
// the component named like the client. During initialization values are
// collected from the command line, config files and the config server; after
// FinishInit every change is written to the merged tree and marks it dirty.
// A background goroutine pushes a dirty tree to the server once per push
// interval. Flush and a probe of the server push right away.
//
// Reads of other components are answered by the config server: on a local
// miss a single value request is published and the reply is awaited up to the
// response timeout, but only if a server is known. A reply is accepted if it
// is addressed to this client and matches key and type of the request.
//
// The client implements store.IStore, so the typed helpers of the store
// package work on it:
//
//	c, _ := client.NewConfigClient(common.ClientConfig{Name: "camera"}, t, s)
//	defer c.Close()
//
//	store.PutInt(c, "camera:fps", 30)
//	c.FinishInit()
//
//	port, ok := store.GetInt(c, "database:port", 5432)
//
// Counters (pushes, value requests, timeouts, received configs and the reply
// latency) are kept in a go-metrics registry, see Stats.
package client
