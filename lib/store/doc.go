// Package store defines the interfaces through which configuration values are
// read and written, independent of where the values live.
//
// Key Components:
//
//   - IStore Interface: The typed read/write surface. There is a single
//     generic Put and Get over db.Cell; the kind of the default passed to Get
//     selects the coercion applied to the stored value. Package level helpers
//     (Get[T], Put[T], GetInt, PutString, ...) provide the typed API.
//
//   - IDatabase Interface: An IStore holding the trees of several components,
//     with component registration, an optional component filter, traversal
//     and key by key merging of another database.
//
//   - Error System: Error wraps a RetCode and a message. Domain misuse is
//     never reported as an error (it is logged and ignored); Error is used
//     where a failure has to cross a boundary, e.g. a file that could not be
//     parsed or a transport that failed.
//
// Implementations:
//
//   - Local Store (lstore): The in-memory IDatabase built from one lib/tree
//     tree per component.
//
//   - Overlay Store (ostore): A facade over four lstore databases, one per
//     configuration source, that merges them once initialization is
//     finished and runs change hooks afterwards.
//
// The rpc/client package provides a third IStore that transparently asks a
// config server for values of other components.
package store
