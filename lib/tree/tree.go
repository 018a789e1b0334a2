package tree

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/ValentinKolb/dCfg/lib/db"
	"github.com/ValentinKolb/dCfg/lib/key"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("tree")

// --------------------------------------------------------------------------
// Structure
// --------------------------------------------------------------------------

type node struct {
	name     string
	path     string
	children []*node
	byName   map[string]*node
}

func newNode(name, path string) *node {
	return &node{name: name, path: path}
}

// child returns the child with the given name, creating it if requested
func (n *node) child(name string, create bool) *node {
	if c, ok := n.byName[name]; ok {
		return c
	}
	if !create {
		return nil
	}
	if n.byName == nil {
		n.byName = make(map[string]*node)
	}
	c := newNode(name, n.path+key.Delimiter+name)
	n.children = append(n.children, c)
	n.byName[name] = c
	return c
}

// Tree is the configuration tree of one component
type Tree struct {
	name   string
	root   *node
	values db.ValueDB
}

// New creates an empty tree for the component name, storing the values in a
// database created by factory.
func New(name string, factory db.Factory) *Tree {
	return &Tree{
		name:   name,
		root:   newNode(name, name),
		values: factory(),
	}
}

// Name returns the component name
func (t *Tree) Name() string { return t.name }

// find returns the node for path, or nil
func (t *Tree) find(path string) *node {
	segments := key.Segments(path)
	if len(segments) == 0 || segments[0] != t.name {
		return nil
	}
	n := t.root
	for _, s := range segments[1:] {
		if n = n.child(s, false); n == nil {
			return nil
		}
	}
	return n
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

// Put stores value under k. The key must pass key.Check and its component
// segment must be the name of this tree. Missing structural nodes are
// created. It returns false (after logging) if the key is rejected.
func (t *Tree) Put(k string, value db.Cell) bool {
	path, index, ok := key.Check(k)
	if !ok {
		Logger.Warningf("tree %s: invalid key %q, value not stored", t.name, k)
		return false
	}

	segments := key.Segments(path)
	if segments[0] != t.name {
		Logger.Warningf("tree %s: key %q belongs to component %q", t.name, k, segments[0])
		return false
	}

	n := t.root
	for _, s := range segments[1:] {
		n = n.child(s, true)
	}

	t.values.Put(path, index, value)
	return true
}

// Clear removes all structure and values
func (t *Tree) Clear() {
	t.root = newNode(t.name, t.name)
	t.values.Clear()
}

// --------------------------------------------------------------------------
// Read Operations
// --------------------------------------------------------------------------

// Get returns the value stored for k coerced to the kind of def.
// If def is unset the stored cell is returned as is. On any miss (malformed
// key, missing path, index out of range, unset cell, failed coercion) def is
// returned with available=false.
func (t *Tree) Get(k string, def db.Cell) (db.Cell, bool) {
	path, index, _, ok := key.Extract(k)
	if !ok {
		Logger.Warningf("tree %s: invalid key %q", t.name, k)
		return def, false
	}

	cell, loaded := t.values.Get(path, index)
	if !loaded || cell.IsUnset() {
		Logger.Debugf("tree %s: no value for %q", t.name, k)
		return def, false
	}
	if def.IsUnset() {
		return cell, true
	}

	converted, ok := cell.Convert(def.Kind())
	if !ok {
		Logger.Debugf("tree %s: value %q of %q can not be read as %s", t.name, cell.String(), k, def.Kind())
		return def, false
	}
	return converted, true
}

// Exists reports whether a set value is stored for k
func (t *Tree) Exists(k string) bool {
	path, index, _, ok := key.Extract(k)
	return ok && t.values.Exists(path, index)
}

// KeyInfo reports whether k is a leaf and the size of its value array.
// ok is false if no node exists for k.
func (t *Tree) KeyInfo(k string) (finalLeaf bool, size int, ok bool) {
	path, _, _, ok := key.Extract(k)
	if !ok {
		return false, 0, false
	}
	n := t.find(path)
	if n == nil {
		return false, 0, false
	}
	return len(n.children) == 0, t.values.Size(path), true
}

// ChildrenKeys returns the immediate children of k in insertion order, as
// full key paths or as bare segment names.
func (t *Tree) ChildrenKeys(k string, fullPath bool) []string {
	path, _, _, ok := key.Extract(k)
	if !ok {
		return nil
	}
	n := t.find(path)
	if n == nil {
		return nil
	}

	out := make([]string, 0, len(n.children))
	for _, c := range n.children {
		if fullPath {
			out = append(out, c.path)
		} else {
			out = append(out, c.name)
		}
	}
	return out
}

// ValuesAsStrings returns the string form of the value(s) for k. With an
// explicit index only that cell is returned, otherwise every set cell of the
// array in index order.
func (t *Tree) ValuesAsStrings(k string) []string {
	path, index, isArray, ok := key.Extract(k)
	if !ok {
		return nil
	}

	if isArray {
		cell, loaded := t.values.Get(path, index)
		if !loaded || cell.IsUnset() {
			return nil
		}
		return []string{cell.String()}
	}

	cells, _ := t.values.Values(path)
	var out []string
	for _, c := range cells {
		if !c.IsUnset() {
			out = append(out, c.String())
		}
	}
	return out
}

// --------------------------------------------------------------------------
// Traversal
// --------------------------------------------------------------------------

// Traverse calls fn for every leaf value below k (the whole tree if k is
// empty). A single value is reported under its path, array values are
// reported as path[i] with unset cells skipped. A missing k is logged and
// results in no calls.
func (t *Tree) Traverse(k string, fn func(key, value string)) {
	start := t.root
	if k != "" {
		path, _, _, ok := key.Extract(k)
		if ok {
			start = t.find(path)
		} else {
			start = nil
		}
		if start == nil {
			Logger.Warningf("tree %s: can not traverse missing key %q", t.name, k)
			return
		}
	}
	t.walk(start, fn)
}

func (t *Tree) walk(n *node, fn func(key, value string)) {
	if len(n.children) > 0 {
		for _, c := range n.children {
			t.walk(c, fn)
		}
		return
	}

	cells, ok := t.values.Values(n.path)
	if !ok {
		return
	}
	if len(cells) == 1 {
		if !cells[0].IsUnset() {
			fn(n.path, cells[0].String())
		}
		return
	}
	for i, c := range cells {
		if !c.IsUnset() {
			fn(key.WithIndex(n.path, i), c.String())
		}
	}
}

// Pair is one traversed key with its string value
type Pair struct {
	Key   string
	Value string
}

// ValueKeyPairs collects Traverse(k) in traversal order
func (t *Tree) ValueKeyPairs(k string) []Pair {
	var out []Pair
	t.Traverse(k, func(key, value string) {
		out = append(out, Pair{Key: key, Value: value})
	})
	return out
}

// Data returns every leaf value of the tree keyed by its traversal key
func (t *Tree) Data() map[string]string {
	out := make(map[string]string)
	t.Traverse("", func(key, value string) {
		out[key] = value
	})
	return out
}

// IsEmpty reports whether no value is stored in the tree
func (t *Tree) IsEmpty() bool {
	return t.values.Len() == 0
}

// Close releases the value store
func (t *Tree) Close() error {
	return t.values.Close()
}

// Info returns the statistics of the value store
func (t *Tree) Info() db.DatabaseInfo {
	return t.values.GetInfo()
}

// --------------------------------------------------------------------------
// Snapshots
// --------------------------------------------------------------------------

// maxSnapshotPath limits the node path length accepted by Load
const maxSnapshotPath = 64 * 1024

// Save writes the node structure in pre-order followed by a snapshot of the
// value store. The child order survives a Save/Load round trip.
func (t *Tree) Save(w io.Writer) error {
	if !t.values.SupportsFeature(db.FeatureSave) {
		return fmt.Errorf("tree %s: value store can not be saved", t.name)
	}

	var paths []string
	collectPaths(t.root, &paths)

	buf := binary.LittleEndian.AppendUint32(nil, uint32(len(paths)))
	for _, p := range paths {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(p)))
		buf = append(buf, p...)
	}
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("tree %s: %w", t.name, err)
	}
	return t.values.Save(w)
}

func collectPaths(n *node, out *[]string) {
	for _, c := range n.children {
		*out = append(*out, c.path)
		collectPaths(c, out)
	}
}

// Load replaces structure and values with a snapshot written by Save. The
// value store must be the last reader of r. On error the tree is unchanged.
func (t *Tree) Load(r io.Reader) error {
	if !t.values.SupportsFeature(db.FeatureLoad) {
		return fmt.Errorf("tree %s: value store can not be loaded", t.name)
	}

	var word [4]byte
	if _, err := io.ReadFull(r, word[:]); err != nil {
		return fmt.Errorf("tree %s: %w", t.name, err)
	}
	count := binary.LittleEndian.Uint32(word[:])

	root := newNode(t.name, t.name)
	for i := uint32(0); i < count; i++ {
		if _, err := io.ReadFull(r, word[:]); err != nil {
			return fmt.Errorf("tree %s: node %d: %w", t.name, i, err)
		}
		size := binary.LittleEndian.Uint32(word[:])
		if size > maxSnapshotPath {
			return fmt.Errorf("tree %s: node %d: path of %d bytes is too long", t.name, i, size)
		}
		raw := make([]byte, size)
		if _, err := io.ReadFull(r, raw); err != nil {
			return fmt.Errorf("tree %s: node %d: %w", t.name, i, err)
		}

		segments := key.Segments(string(raw))
		if len(segments) < 2 || segments[0] != t.name {
			return fmt.Errorf("tree %s: node %q belongs to another tree", t.name, raw)
		}
		n := root
		for _, s := range segments[1:] {
			n = n.child(s, true)
		}
	}

	if err := t.values.Load(r); err != nil {
		return fmt.Errorf("tree %s: %w", t.name, err)
	}
	t.root = root
	return nil
}
