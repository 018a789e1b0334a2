// Package maple implements db.ValueDB as a sharded in-memory store for the
// value arrays of a configuration tree.
//
// Key Components:
//
//   - mapleImpl: The database structure implementing db.ValueDB. It owns a
//     fixed number of shards (runtime.NumCPU() by default) and a monotonic
//     write counter that stamps every modification.
//
//   - Shard: A partition of the key space backed by an xsync.MapOf. Paths are
//     assigned to shards by hashing them with a per-instance seed
//     (util.HashString) and using the higher bits of the hash.
//
//   - Entry: The value array of one path together with the write index of its
//     last modification.
//
// Internal Mechanisms:
//
//   - Copy on write: An entry's cell slice is never modified after it has been
//     stored. Put builds a new slice inside xsync's atomic Compute and swaps
//     it in, so readers can hand out the stored slice to Values (as a copy)
//     without taking locks and concurrent writers to the same path serialize
//     on the map bucket.
//
//   - Persistence Format: Snapshots use a compact little-endian format:
//     1. Magic number "MAPLECFG"
//     2. Version number (currently 1)
//     3. Current write index
//     4. Number of entries
//     5. For each entry: path length, path, modification index, cell count,
//     cells (kind byte followed by the payload)
//     Save captures a fuzzy snapshot. Load decodes into fresh shards and
//     swaps them in only after the whole snapshot was read.
//
//   - Metrics: GetInfo samples up to 100 entries per shard to estimate the
//     memory footprint and reports the shard distribution quality.
package maple
