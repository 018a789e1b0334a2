package lstore

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/ValentinKolb/dCfg/lib/db"
	"github.com/ValentinKolb/dCfg/lib/db/engines/maple"
	"github.com/ValentinKolb/dCfg/lib/key"
	"github.com/ValentinKolb/dCfg/lib/store"
	"github.com/ValentinKolb/dCfg/lib/tree"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("store")

type databaseImpl struct {
	mu         sync.RWMutex
	rootName   string
	filter     bool
	factory    store.DBFactory
	components map[string]*tree.Tree
	order      []string
}

// NewLocalStore creates an empty database.
// Component trees keep their values in databases created by factory; a nil
// factory selects the maple engine.
func NewLocalStore(rootName string, filterByComponent bool, factory store.DBFactory) store.IDatabase {
	if factory == nil {
		factory = DefaultFactory()
	}
	return &databaseImpl{
		rootName:   rootName,
		filter:     filterByComponent,
		factory:    factory,
		components: make(map[string]*tree.Tree),
	}
}

// DefaultFactory returns the value db factory used when none is given.
// Configuration trees are small, so two shards per tree are enough.
func DefaultFactory() store.DBFactory {
	return maple.Factory(&maple.DBOptions{NumShards: 2})
}

// NewDatabaseFactory binds a value db factory into a store.DatabaseFactory
func NewDatabaseFactory(factory store.DBFactory) store.DatabaseFactory {
	return func(rootName string, filterByComponent bool) store.IDatabase {
		return NewLocalStore(rootName, filterByComponent, factory)
	}
}

// --------------------------------------------------------------------------
// Unlocked helpers (callers hold mu)
// --------------------------------------------------------------------------

func (d *databaseImpl) addComponentLocked(name string) bool {
	if !key.ValidComponentName(name) {
		Logger.Warningf("database %s: invalid component name %q", d.rootName, name)
		return false
	}
	if _, ok := d.components[name]; ok {
		Logger.Warningf("database %s: component %q already exists", d.rootName, name)
		return false
	}
	d.components[name] = tree.New(name, d.factory)
	d.order = append(d.order, name)
	return true
}

// treeForWriteLocked returns the tree for the component of k, creating it if
// the filter is off. nil means the write must be dropped.
func (d *databaseImpl) treeForWriteLocked(k string) *tree.Tree {
	name := key.ComponentName(k)
	if t, ok := d.components[name]; ok {
		return t
	}
	if d.filter {
		Logger.Debugf("database %s: component %q is filtered, dropping %q", d.rootName, name, k)
		return nil
	}
	if !key.ValidComponentName(name) {
		Logger.Warningf("database %s: invalid component in key %q", d.rootName, k)
		return nil
	}
	d.addComponentLocked(name)
	return d.components[name]
}

func (d *databaseImpl) putLocked(k string, value db.Cell) bool {
	// an invalid key must not create its component
	if _, _, ok := key.Check(k); !ok {
		Logger.Warningf("database %s: invalid key %q, value not stored", d.rootName, k)
		return false
	}
	t := d.treeForWriteLocked(k)
	if t == nil {
		return false
	}
	return t.Put(k, value)
}

func (d *databaseImpl) treeLocked(k string) (*tree.Tree, bool) {
	t, ok := d.components[key.ComponentName(k)]
	if !ok {
		Logger.Debugf("database %s: no component for key %q", d.rootName, k)
	}
	return t, ok
}

func (d *databaseImpl) traverseLocked(k string, fn func(key, value string)) {
	if k == "" {
		for _, name := range d.order {
			d.components[name].Traverse("", fn)
		}
		return
	}
	if t, ok := d.treeLocked(k); ok {
		t.Traverse(k, fn)
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (d *databaseImpl) Put(k string, value db.Cell) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.putLocked(k, value)
}

func (d *databaseImpl) Get(k string, def db.Cell) (db.Cell, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.treeLocked(k)
	if !ok {
		return def, false
	}
	return t.Get(k, def)
}

func (d *databaseImpl) GetStringList(k string, def []string) ([]string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.treeLocked(k)
	if !ok {
		return def, false
	}
	values := t.ValuesAsStrings(k)
	if len(values) == 0 {
		return def, false
	}
	return values, true
}

func (d *databaseImpl) GetChildren(k string, fullPath bool) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if k == "" {
		return append([]string(nil), d.order...)
	}
	t, ok := d.treeLocked(k)
	if !ok {
		return nil
	}
	return t.ChildrenKeys(k, fullPath)
}

func (d *databaseImpl) Exists(k string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.components[key.ComponentName(k)]
	return ok && t.Exists(k)
}

func (d *databaseImpl) KeyInfo(k string) (store.KeyInfo, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.components[key.ComponentName(k)]
	if !ok {
		return store.KeyInfo{}, false
	}
	leaf, size, ok := t.KeyInfo(k)
	return store.KeyInfo{FinalLeaf: leaf, ArraySize: size}, ok
}

func (d *databaseImpl) RootName() string {
	return d.rootName
}

func (d *databaseImpl) ComponentNames() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string(nil), d.order...)
}

func (d *databaseImpl) HasComponent(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.components[name]
	return ok
}

func (d *databaseImpl) AddComponent(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.addComponentLocked(name)
}

func (d *databaseImpl) FilterByComponent() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.filter
}

func (d *databaseImpl) SetFilterByComponent(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.filter = enabled
}

func (d *databaseImpl) ComponentData(name string) (map[string]string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.components[name]
	if !ok {
		return nil, false
	}
	return t.Data(), true
}

func (d *databaseImpl) IsComponentEmpty(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.components[name]
	return !ok || t.IsEmpty()
}

func (d *databaseImpl) Traverse(k string, fn func(key, value string)) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	d.traverseLocked(k, fn)
}

func (d *databaseImpl) Insert(source store.IDatabase) {
	if source == nil || source == store.IDatabase(d) {
		return
	}

	// read the source first, the source lock must not be held while
	// taking ours
	type component struct {
		name   string
		values [][2]string
	}
	var components []component
	for _, name := range source.ComponentNames() {
		c := component{name: name}
		source.Traverse(name, func(k, v string) {
			c.values = append(c.values, [2]string{k, v})
		})
		components = append(components, c)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range components {
		if _, ok := d.components[c.name]; !ok {
			if d.filter {
				Logger.Debugf("database %s: skipping filtered component %q on insert", d.rootName, c.name)
				continue
			}
			if !d.addComponentLocked(c.name) {
				continue
			}
		}
		for _, kv := range c.values {
			d.putLocked(kv[0], db.StringCell(kv[1]))
		}
	}
}

func (d *databaseImpl) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range d.components {
		_ = t.Close()
	}
	d.components = make(map[string]*tree.Tree)
	d.order = nil
}

func (d *databaseImpl) Info() map[string]db.DatabaseInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]db.DatabaseInfo, len(d.components))
	for name, t := range d.components {
		out[name] = t.Info()
	}
	return out
}

// --------------------------------------------------------------------------
// Snapshots
// --------------------------------------------------------------------------

// snapshotMagic identifies a database snapshot
const snapshotMagic = "DCFGSNAP"

// maxSnapshotSection limits the component sections accepted by Load
const maxSnapshotSection = 1 << 30

// Save writes the components in creation order. Each component is a length
// prefixed name followed by a length prefixed tree snapshot.
func (d *databaseImpl) Save(w io.Writer) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	bw := bufio.NewWriter(w)
	header := append([]byte(snapshotMagic), 0, 0, 0, 0)
	binary.LittleEndian.PutUint32(header[len(snapshotMagic):], uint32(len(d.order)))
	if _, err := bw.Write(header); err != nil {
		return store.NewError(store.RetCInternalError, "database %s: %v", d.rootName, err)
	}

	var section bytes.Buffer
	for _, name := range d.order {
		section.Reset()
		if err := d.components[name].Save(&section); err != nil {
			return store.NewError(store.RetCInternalError, "database %s: %v", d.rootName, err)
		}

		buf := binary.LittleEndian.AppendUint32(nil, uint32(len(name)))
		buf = append(buf, name...)
		buf = binary.LittleEndian.AppendUint64(buf, uint64(section.Len()))
		if _, err := bw.Write(buf); err != nil {
			return store.NewError(store.RetCInternalError, "database %s: %v", d.rootName, err)
		}
		if _, err := bw.Write(section.Bytes()); err != nil {
			return store.NewError(store.RetCInternalError, "database %s: %v", d.rootName, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return store.NewError(store.RetCInternalError, "database %s: %v", d.rootName, err)
	}
	return nil
}

func (d *databaseImpl) Load(r io.Reader) error {
	components, order, err := d.readSnapshot(bufio.NewReader(r))
	if err != nil {
		for _, t := range components {
			_ = t.Close()
		}
		return store.NewError(store.RetCParseError, "database %s: %v", d.rootName, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range d.components {
		_ = t.Close()
	}
	d.components = components
	d.order = order
	Logger.Infof("database %s: loaded %d components from snapshot", d.rootName, len(order))
	return nil
}

// readSnapshot decodes a snapshot into fresh trees. The trees created so far
// are returned on error, so the caller can release them.
func (d *databaseImpl) readSnapshot(r io.Reader) (map[string]*tree.Tree, []string, error) {
	components := make(map[string]*tree.Tree)

	header := make([]byte, len(snapshotMagic)+4)
	if _, err := io.ReadFull(r, header); err != nil {
		return components, nil, err
	}
	if string(header[:len(snapshotMagic)]) != snapshotMagic {
		return components, nil, errors.New("invalid snapshot: magic number mismatch")
	}
	count := binary.LittleEndian.Uint32(header[len(snapshotMagic):])

	var order []string
	var word [8]byte
	for i := uint32(0); i < count; i++ {
		if _, err := io.ReadFull(r, word[:4]); err != nil {
			return components, nil, err
		}
		nameLen := binary.LittleEndian.Uint32(word[:4])
		if nameLen > maxSnapshotSection {
			return components, nil, fmt.Errorf("component %d: name too long", i)
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(r, name); err != nil {
			return components, nil, err
		}
		if !key.ValidComponentName(string(name)) {
			return components, nil, fmt.Errorf("component %d: invalid name %q", i, name)
		}
		if _, ok := components[string(name)]; ok {
			return components, nil, fmt.Errorf("component %q appears twice", name)
		}

		if _, err := io.ReadFull(r, word[:]); err != nil {
			return components, nil, err
		}
		size := binary.LittleEndian.Uint64(word[:])
		if size > maxSnapshotSection {
			return components, nil, fmt.Errorf("component %q: section of %d bytes is too large", name, size)
		}
		section := make([]byte, size)
		if _, err := io.ReadFull(r, section); err != nil {
			return components, nil, err
		}

		t := tree.New(string(name), d.factory)
		components[string(name)] = t
		if err := t.Load(bytes.NewReader(section)); err != nil {
			return components, nil, err
		}
		order = append(order, string(name))
	}
	return components, order, nil
}
