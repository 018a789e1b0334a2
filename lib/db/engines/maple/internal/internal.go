package internal

import (
	"github.com/ValentinKolb/dCfg/lib/db"
	"github.com/ValentinKolb/dCfg/lib/db/util"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Entry Type (value array with metadata)
// --------------------------------------------------------------------------

// Entry stores the value array of one path.
// Cells is never mutated after the entry was published to a shard, writers
// replace the whole slice (copy on write).
type Entry struct {
	Cells []db.Cell // Value array, unset cells mark gaps
	Index uint64    // Write index of the last modification
}

// With returns a copy of the entry with value stored at idx.
// The array grows as needed, new cells are unset.
func (e Entry) With(idx int, value db.Cell, writeIdx uint64) Entry {
	size := len(e.Cells)
	if idx >= size {
		size = idx + 1
	}
	cells := make([]db.Cell, size)
	copy(cells, e.Cells)
	cells[idx] = value
	return Entry{Cells: cells, Index: writeIdx}
}

// CopyCells returns a copy of the value array
func (e Entry) CopyCells() []db.Cell {
	out := make([]db.Cell, len(e.Cells))
	copy(out, e.Cells)
	return out
}

// --------------------------------------------------------------------------
// Shard Type (partition of the database)
// --------------------------------------------------------------------------

// Shard represents a partition of the database
type Shard struct {
	Data *xsync.MapOf[string, Entry] // Map of path to value array
}

// NewShard creates a new empty shard
func NewShard() *Shard {
	return &Shard{
		Data: xsync.NewMapOf[string, Entry](),
	}
}

// GetShard returns the appropriate shard for a given hashed key
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func GetShard[T any](key util.UintKey, shards []*T) *T {
	// Shift right by 7 bits to use higher-quality bits for distribution
	shiftedKey := uint64(key) >> 7
	shardPos := shiftedKey % uint64(len(shards))
	return shards[shardPos]
}
