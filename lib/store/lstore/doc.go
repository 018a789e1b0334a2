// Package lstore implements store.IDatabase: a local, in-memory collection of
// component trees (lib/tree) guarded by a single read/write mutex.
//
// Key Features:
//   - One tree per component, created explicitly (AddComponent) or on first
//     write when the component filter is disabled
//   - Component filter: when enabled, writes and merges addressed at unknown
//     components are dropped with a debug log
//   - Key by key merging of one database into another (Insert), used to
//     collapse the layered sources of the overlay facade
//   - Pluggable value storage through store.DBFactory (maple by default)
//
// Implementation Details:
//
//   - Locking: Every public method takes the database lock exactly once and
//     delegates to an unexported helper suffixed with Locked. Helpers call
//     each other freely, which replaces the need for a reentrant mutex.
//     There is no atomicity across databases; Insert takes the lock of the
//     target only and reads the source through its public (locking) API.
//
//   - Reads of unknown components return the supplied default and log at
//     debug level, since every read carries an explicit default and misses
//     are expected during startup.
package lstore
