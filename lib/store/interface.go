package store

import (
	"fmt"
	"io"

	"github.com/ValentinKolb/dCfg/lib/db"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// DBFactory is a function type that creates the value db of one component tree.
// This is used to abstract the creation of the db from the store implementation.
type DBFactory = db.Factory

// KeyInfo describes the node addressed by a key
type KeyInfo struct {
	FinalLeaf bool `json:"final_leaf"` // node has no children
	ArraySize int  `json:"array_size"` // length of the value array, 0 = no value
}

// IStore is the typed read/write surface of a configuration store.
//
// Keys have the form component:node:...:leaf[index]. Misuse (malformed keys,
// unknown components, type mismatches) never produces an error: it is
// logged and reported through the boolean results, reads fall back to the
// supplied default.
type IStore interface {
	// Put stores value under key. It returns whether the value was written.
	Put(key string, value db.Cell) (ok bool)
	// Get returns the value for key coerced to the kind of def. If the value
	// is missing or can not be coerced def is returned with available=false.
	Get(key string, def db.Cell) (value db.Cell, available bool)
	// GetStringList returns all set values of the array at key as strings
	// (only the addressed value if key has an explicit index).
	GetStringList(key string, def []string) (values []string, available bool)
	// GetChildren returns the immediate children of key, either as full key
	// paths or as bare names.
	GetChildren(key string, fullPath bool) (children []string)
	// Exists reports whether a set value is stored at key.
	Exists(key string) (ok bool)
	// KeyInfo describes the node at key. ok is false if the node does not exist.
	KeyInfo(key string) (info KeyInfo, ok bool)
}

// IDatabase is a store holding the trees of several components.
type IDatabase interface {
	IStore

	// RootName returns the name the database was created with.
	RootName() (name string)
	// ComponentNames returns the registered components in creation order.
	ComponentNames() (names []string)
	// HasComponent reports whether a tree exists for name.
	HasComponent(name string) (ok bool)
	// AddComponent registers an empty tree. It fails (with a warning) if the
	// name is invalid or already registered.
	AddComponent(name string) (ok bool)
	// FilterByComponent reports whether writes to unknown components are dropped.
	FilterByComponent() (enabled bool)
	// SetFilterByComponent switches the component filter.
	SetFilterByComponent(enabled bool)
	// ComponentData returns all leaf values of a component keyed by traversal key.
	ComponentData(name string) (data map[string]string, ok bool)
	// IsComponentEmpty reports whether a component holds no value (true for unknown components).
	IsComponentEmpty(name string) (empty bool)
	// Traverse calls fn for every leaf below key. An empty key traverses
	// every component.
	Traverse(key string, fn func(key, value string))
	// Insert merges every leaf of source into this database. With the
	// component filter enabled, components unknown to this database are
	// skipped.
	Insert(source IDatabase)
	// Clear removes all components.
	Clear()

	// Info returns the value store statistics of every component.
	Info() (info map[string]db.DatabaseInfo)
	// Save writes a snapshot of all components to w.
	Save(w io.Writer) (err error)
	// Load replaces all components with a snapshot written by Save. The
	// component filter does not apply. On error the database is unchanged.
	Load(r io.Reader) (err error)
}

// DatabaseFactory creates an empty database with the given root name and
// component filter setting.
type DatabaseFactory func(rootName string, filterByComponent bool) IDatabase

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("ConfigError (code %s): %s", e.Code, e.Msg)
}

// Is matches errors by code, so errors.Is(err, &Error{Code: RetCParseError}) works
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, format string, args ...any) *Error {
	return &Error{
		Code: code,
		Msg:  fmt.Sprintf(format, args...),
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess           RetCode = iota // 0: Operation succeeded.
	RetCInternalError                    // 1: Operation failed due to an internal error.
	RetCInvalidKey                       // 2: Key is malformed.
	RetCInvalidComponent                 // 3: Component name is malformed.
	RetCUnknownComponent                 // 4: Component is not registered.
	RetCUnsupportedFormat                // 5: File format is not supported.
	RetCParseError                       // 6: Document could not be parsed.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCInvalidKey:
		return "InvalidKey"
	case RetCInvalidComponent:
		return "InvalidComponent"
	case RetCUnknownComponent:
		return "UnknownComponent"
	case RetCUnsupportedFormat:
		return "UnsupportedFormat"
	case RetCParseError:
		return "ParseError"
	default:
		return "Unknown"
	}
}
