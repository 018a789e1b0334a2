// Package db provides the storage layer underneath a configuration tree:
// a typed value cell and the ValueDB interface that maps a key path to a
// growable array of such cells.
//
// Key Components:
//
//   - Cell: A closed sum type holding exactly one of unset, bool, int32,
//     float32 or string. The zero value is unset. Cells are created with
//     BoolCell, IntCell, FloatCell, StringCell or the generic CellOf and read
//     back with the generic As.
//
//   - Coercion: Cell.Convert implements the conversion matrix used by every
//     typed read. A value stored as string "42" can be read as int, a bool
//     true reads as string "1" and a float reads as string with six
//     decimals. Conversions that would lose meaning (e.g. int 2 to bool)
//     fail instead.
//
//   - ValueDB Interface: Put grows the array and fills gaps with unset cells,
//     Get fails for missing paths and out-of-range indices, Values hands out
//     copies. Implementations advertise their capabilities through Feature
//     flags and report statistics through GetInfo.
//
//   - Implementation Identifiers: The Implementation type names the
//     available backends (currently "maple").
//
// Related Packages:
//
// The engines/maple package (github.com/ValentinKolb/dCfg/lib/db/engines/maple)
// provides a sharded, lock-free in-memory ValueDB with binary snapshots.
//
// The util package (github.com/ValentinKolb/dCfg/lib/db/util) holds the hash
// function and the statistics helpers used by engines.
//
// The testing package (github.com/ValentinKolb/dCfg/lib/db/testing) provides
// standardized tests and benchmarks for ValueDB implementations:
//   - RunValueDBTests: Runs a standardized test suite to validate implementations
//   - RunValueDBBenchmarks: Provides performance benchmarks for comparing implementations
package db
