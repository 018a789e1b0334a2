package maple

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/dCfg/lib/db"
	"github.com/ValentinKolb/dCfg/lib/db/engines/maple/internal"
	"github.com/ValentinKolb/dCfg/lib/db/util"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

// Constants for database behavior and structure
const (
	magicNum     = "MAPLECFG" // File format identifier
	mapleVersion = 1          // Snapshot version
)

// --------------------------------------------------------------------------
// Core Maple database structure
// --------------------------------------------------------------------------

// mapleImpl implements a sharded in-memory value array store
type mapleImpl struct {
	numShards int               // Number of shards
	seed      uint64            // Seed for hash function
	shards    []*internal.Shard // Array of shards
	currIndex atomic.Uint64     // Monotonic write counter
}

// DBOptions configures the mapleImpl behavior during initialization
type DBOptions struct {
	NumShards int // Number of shards (0 = auto)
}

// DefaultOptions returns the default mapleImpl options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		NumShards: runtime.NumCPU(), // Auto-determine based on CPU count
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewMapleDB creates a new MapleDB instance with the specified options (optional)
func NewMapleDB(opts *DBOptions) db.ValueDB {

	// Generate default options if not provided
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.NumShards <= 0 {
		opts.NumShards = runtime.NumCPU()
	}

	return &mapleImpl{
		numShards: opts.NumShards,
		seed:      util.GenerateSeed(),
		shards:    newShards(opts.NumShards),
	}
}

// Factory returns a db.Factory producing maple databases with the given options
func Factory(opts *DBOptions) db.Factory {
	return func() db.ValueDB {
		return NewMapleDB(opts)
	}
}

func newShards(n int) []*internal.Shard {
	shards := make([]*internal.Shard, n)
	for i := range shards {
		shards[i] = internal.NewShard()
	}
	return shards
}

// shard returns the shard responsible for path
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) shard(path string) *internal.Shard {
	return internal.GetShard(util.HashString(path, maple.seed), maple.shards)
}

// --------------------------------------------------------------------------
// ValueDB Interface Methods - Write Operations
// --------------------------------------------------------------------------

// Put stores value at index of the array for path.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
// Concurrent writes to the same path are serialized by the shard map, each
// writer sees the result of the previous one.
func (maple *mapleImpl) Put(path string, index int, value db.Cell) {
	if index < 0 {
		return
	}
	writeIdx := maple.currIndex.Add(1)
	maple.shard(path).Data.Compute(path, func(old internal.Entry, _ bool) (internal.Entry, bool) {
		return old.With(index, value, writeIdx), false
	})
}

// Delete removes the array stored for path.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Delete(path string) {
	maple.currIndex.Add(1)
	maple.shard(path).Data.Delete(path)
}

// Clear removes every path from every shard.
//
// Thread-safety: Each shard is cleared atomically, but writes running
// concurrently to Clear may survive in shards that were already cleared.
func (maple *mapleImpl) Clear() {
	maple.currIndex.Add(1)
	for _, s := range maple.shards {
		s.Data.Clear()
	}
}

// --------------------------------------------------------------------------
// ValueDB Interface Methods - Read Operations
// --------------------------------------------------------------------------

// Get returns the cell at index of the array for path.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Get(path string, index int) (db.Cell, bool) {
	entry, ok := maple.shard(path).Data.Load(path)
	if !ok || index < 0 || index >= len(entry.Cells) {
		return db.Cell{}, false
	}
	return entry.Cells[index], true
}

// Values returns a copy of the array for path.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Values(path string) ([]db.Cell, bool) {
	entry, ok := maple.shard(path).Data.Load(path)
	if !ok {
		return nil, false
	}
	return entry.CopyCells(), true
}

// Size returns the array length for path.
func (maple *mapleImpl) Size(path string) int {
	entry, ok := maple.shard(path).Data.Load(path)
	if !ok {
		return 0
	}
	return len(entry.Cells)
}

// Exists reports whether a set cell is stored at index.
func (maple *mapleImpl) Exists(path string, index int) bool {
	cell, ok := maple.Get(path, index)
	return ok && !cell.IsUnset()
}

// Len returns the number of stored paths.
func (maple *mapleImpl) Len() int {
	n := 0
	for _, s := range maple.shards {
		n += s.Data.Size()
	}
	return n
}

// --------------------------------------------------------------------------
// ValueDB Interface Methods - Persistence Operations
// --------------------------------------------------------------------------

// Save writes a snapshot of the database to w
//
// The snapshot is fuzzy: writes running concurrently to Save may or may not
// be part of it. Each single array however is always captured consistently.
//
// Thread-safety: This function is thread-safe and can be called concurrently.
func (maple *mapleImpl) Save(w io.Writer) error {

	// Use a buffered writer for better performance
	bw := bufio.NewWriterSize(w, 1024*1024) // 1 MB buffer

	type entryToSave struct {
		path  string
		entry internal.Entry
	}

	// collect entries, the arrays are immutable so no deep copy is needed
	var entries []entryToSave
	for _, shard := range maple.shards {
		shard.Data.Range(func(path string, entry internal.Entry) bool {
			entries = append(entries, entryToSave{path, entry})
			return true
		})
	}

	// Write file header
	if _, err := bw.WriteString(magicNum); err != nil {
		return err
	}

	// Write maple version
	if err := binary.Write(bw, binary.LittleEndian, uint8(mapleVersion)); err != nil {
		return err
	}

	// Write current write index
	if err := binary.Write(bw, binary.LittleEndian, maple.currIndex.Load()); err != nil {
		return err
	}

	// Write total entry count
	if err := binary.Write(bw, binary.LittleEndian, uint64(len(entries))); err != nil {
		return err
	}

	var cellBuf []byte
	for _, item := range entries {

		// Write path
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(item.path))); err != nil {
			return err
		}
		if _, err := bw.WriteString(item.path); err != nil {
			return err
		}

		// Write modification index
		if err := binary.Write(bw, binary.LittleEndian, item.entry.Index); err != nil {
			return err
		}

		// Write cells
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(item.entry.Cells))); err != nil {
			return err
		}
		cellBuf = cellBuf[:0]
		for _, c := range item.entry.Cells {
			cellBuf = c.AppendBinary(cellBuf)
		}
		if _, err := bw.Write(cellBuf); err != nil {
			return err
		}
	}

	// Flush buffer to ensure all data is written
	return bw.Flush()
}

// Load replaces the database content with a snapshot read from r
//
// Thread-safety: This function is not thread-safe and should not be called concurrently
func (maple *mapleImpl) Load(r io.Reader) error {

	// Use a buffered reader for better performance
	br := bufio.NewReaderSize(r, 1024*1024) // 1 MB buffer

	// Read and verify magic number
	magicBytes := make([]byte, len(magicNum))
	if _, err := io.ReadFull(br, magicBytes); err != nil {
		return err
	}
	if string(magicBytes) != magicNum {
		return fmt.Errorf("invalid file format: magic number mismatch")
	}

	// Read and verify version
	var version uint8
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return err
	}
	if int(version) != mapleVersion {
		return fmt.Errorf("unsupported version: %d (expected %d)", version, mapleVersion)
	}

	var writeIdx uint64
	if err := binary.Read(br, binary.LittleEndian, &writeIdx); err != nil {
		return err
	}

	var count uint64
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return err
	}

	// decode into fresh shards first so a corrupt snapshot leaves the db untouched
	shards := newShards(maple.numShards)
	for i := uint64(0); i < count; i++ {
		var pathLen uint32
		if err := binary.Read(br, binary.LittleEndian, &pathLen); err != nil {
			return err
		}
		pathBytes := make([]byte, pathLen)
		if _, err := io.ReadFull(br, pathBytes); err != nil {
			return err
		}

		var entry internal.Entry
		if err := binary.Read(br, binary.LittleEndian, &entry.Index); err != nil {
			return err
		}

		var cellCount uint32
		if err := binary.Read(br, binary.LittleEndian, &cellCount); err != nil {
			return err
		}
		entry.Cells = make([]db.Cell, cellCount)
		for j := range entry.Cells {
			c, err := db.ReadCell(br)
			if err != nil {
				return fmt.Errorf("entry %d: %w", i, err)
			}
			entry.Cells[j] = c
		}

		path := string(pathBytes)
		internal.GetShard(util.HashString(path, maple.seed), shards).Data.Store(path, entry)
	}

	maple.shards = shards
	maple.currIndex.Store(writeIdx)
	return nil
}

// --------------------------------------------------------------------------
// ValueDB Interface Implementation - Features and Metadata
// --------------------------------------------------------------------------

// GetInfo returns statistics about the database
func (maple *mapleImpl) GetInfo() db.DatabaseInfo {

	// create a size histogram for the info
	histogram := util.NewSizeHistogram()
	samplesPerShard := 100
	wg := sync.WaitGroup{}
	wg.Add(len(maple.shards))

	mu := sync.Mutex{}
	samplesCount := 0
	arraysCount := 0
	shardSizes := make([]float64, len(maple.shards))

	// concurrently collect samples from all shards
	for shardIndex, shard := range maple.shards {
		go func(i int, s *internal.Shard) {
			defer wg.Done()
			count := 0
			arrays := 0
			s.Data.Range(func(path string, entry internal.Entry) bool {
				size := len(path)
				for _, c := range entry.Cells {
					size += 16 + len(c.StringValue())
				}
				histogram.AddSample(size)
				if len(entry.Cells) > 1 {
					arrays++
				}

				// only sample a few entries per shard
				count++
				return count < samplesPerShard
			})

			mu.Lock()
			defer mu.Unlock()

			samplesCount += count
			arraysCount += arrays
			shardSizes[i] = float64(s.Data.Size())
		}(shardIndex, shard)
	}

	// wait for all shards to finish
	wg.Wait()

	// estimate the total size from the sampled entry sizes
	entryOverhead := 24 // slice header
	medianSize := histogram.MedianEstimate() + entryOverhead
	avgSize := histogram.AverageSize() + entryOverhead
	sizeBytes := (medianSize*60 + avgSize*40) / 100 * maple.Len()

	var arrayRatio float64
	if samplesCount > 0 {
		arrayRatio = float64(arraysCount) / float64(samplesCount)
	}

	meta := &struct {
		CurrentWriteIndex uint64                 `json:"current_write_index"`
		Paths             int                    `json:"paths"`
		ShardCount        int                    `json:"shard_count"`
		ShardDistribution util.DistributionStats `json:"shard_distribution"`
		ArrayRatio        float64                `json:"array_ratio"`
		Info              string                 `json:"info"`
	}{
		CurrentWriteIndex: maple.currIndex.Load(),
		Paths:             maple.Len(),
		ShardCount:        len(maple.shards),
		ShardDistribution: util.NewDistributionStats(shardSizes),
		ArrayRatio:        arrayRatio,
		Info:              "SizeBytes and ArrayRatio are estimates based on sampling.",
	}

	return db.DatabaseInfo{
		SizeBytes: sizeBytes,
		DbType:    db.ImplMaple,
		SupportedFeatures: []db.Feature{
			db.FeaturePut, db.FeatureGet,
			db.FeatureDelete, db.FeatureClear,
			db.FeatureArrays,
			db.FeatureSave, db.FeatureLoad,
		},
		Metadata: meta,
	}
}

// SupportsFeature checks if this implementation supports a specific feature
func (maple *mapleImpl) SupportsFeature(feature db.Feature) bool {
	supportedFeatures := db.FeaturePut |
		db.FeatureGet |
		db.FeatureDelete |
		db.FeatureClear |
		db.FeatureArrays |
		db.FeatureSave |
		db.FeatureLoad
	return supportedFeatures&feature == feature
}

// Close is a no-op, maple holds no background resources
func (maple *mapleImpl) Close() error {
	return nil
}
