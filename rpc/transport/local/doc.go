// Package local implements an in-process pub/sub transport.
//
// All transports created for the same Bus exchange messages. Every
// subscription gets its own dispatcher goroutine, deliveries to one
// subscription keep the publish order. The package level Default bus lets a
// config server and its clients run in a single binary.
package local
