package db

import "io"

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplMaple Implementation = "maple"
)

// Feature represents database features as bit flags
type Feature uint64

const (
	FeaturePut    Feature = 1 << iota // Support for Put operations
	FeatureGet                        // Support for Get and Values operations
	FeatureDelete                     // Support for Delete operations
	FeatureClear                      // Support for Clear operations
	FeatureArrays                     // Values can hold more than one cell
	FeatureSave                       // Support for Save operations
	FeatureLoad                       // Support for Load operations
)

func (f Feature) String() string {
	switch f {
	case FeaturePut:
		return "Put"
	case FeatureGet:
		return "Get"
	case FeatureDelete:
		return "Delete"
	case FeatureClear:
		return "Clear"
	case FeatureArrays:
		return "Arrays"
	case FeatureSave:
		return "Save"
	case FeatureLoad:
		return "Load"
	default:
		return "Unknown"
	}
}

type DatabaseInfo struct {
	SizeBytes         int            `json:"size_bytes"`
	DbType            Implementation `json:"db_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// Factory creates an empty ValueDB
type Factory func() ValueDB

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// ValueDB stores a growable array of typed cells per path.
// A path is the key of a configuration value without its array suffix;
// the array index is passed separately. Implementations must be safe for
// concurrent use and must never hand out their internal arrays.
type ValueDB interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Put stores value at index of the array for path. The array is grown as
	// needed, new cells between the old end and index are unset. A cell may
	// change its kind on overwrite.
	Put(path string, index int, value Cell)

	// Delete removes the whole array stored for path.
	Delete(path string)

	// Clear removes all paths.
	Clear()

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Get returns the cell at index. loaded is false if the path does not
	// exist or the index is out of range. An in-range unset cell is returned
	// with loaded=true; callers decide how to treat it.
	Get(path string, index int) (value Cell, loaded bool)

	// Values returns a copy of the array stored for path.
	Values(path string) (values []Cell, loaded bool)

	// Size returns the array length for path, 0 if it does not exist.
	Size(path string) (size int)

	// Exists reports whether a non-unset cell is stored at index.
	Exists(path string, index int) (ok bool)

	// Len returns the number of stored paths.
	Len() (n int)

	// --------------------------------------------------------------------------
	// Persistence Operations
	// --------------------------------------------------------------------------

	// Save persists the current state of the database to the provided io.Writer.
	Save(w io.Writer) (err error)

	// Load replaces the database state with the data provided by an io.Reader.
	Load(r io.Reader) (err error)

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the database implementation supports the specified feature.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// Close releases the resources of the database.
	Close() (err error)
}
