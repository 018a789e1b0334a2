package ostore

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ValentinKolb/dCfg/lib/cfgio"
	"github.com/ValentinKolb/dCfg/lib/db"
	"github.com/ValentinKolb/dCfg/lib/hooks"
	"github.com/ValentinKolb/dCfg/lib/store"
	"github.com/ValentinKolb/dCfg/lib/store/lstore"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("store")

// DefaultResponseTimeout bounds WaitForResponse when callers have no better value
const DefaultResponseTimeout = 2000 * time.Millisecond

// --------------------------------------------------------------------------
// Sources and States
// --------------------------------------------------------------------------

// Source identifies where a configuration value came from
type Source uint8

const (
	SourceComponent Source = iota
	SourceCommandLineParameters
	SourceCommandLineConfigFile
	SourceConfigServer
	numSources
)

func (s Source) String() string {
	switch s {
	case SourceComponent:
		return "Component"
	case SourceCommandLineParameters:
		return "CommandLineParameters"
	case SourceCommandLineConfigFile:
		return "CommandLineConfigFile"
	case SourceConfigServer:
		return "ConfigServer"
	default:
		return "Unknown"
	}
}

// ParseSource is the case-insensitive inverse of Source.String
func ParseSource(s string) (Source, bool) {
	for src := SourceComponent; src < numSources; src++ {
		if strings.EqualFold(src.String(), s) {
			return src, true
		}
	}
	return SourceComponent, false
}

// mergeOrder lists the sources merged by FinishInitialization, later wins
var mergeOrder = []Source{SourceConfigServer, SourceCommandLineConfigFile, SourceCommandLineParameters}

type State uint8

const (
	StateUninitialized State = iota
	StateInitializing
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateInitializing:
		return "Initializing"
	case StateFinalized:
		return "Finalized"
	default:
		return "Unknown"
	}
}

// --------------------------------------------------------------------------
// Store
// --------------------------------------------------------------------------

// Store is the layered overlay facade. It implements store.IStore; Put and
// Get operate on the Component source.
type Store struct {
	mu          sync.Mutex
	state       State
	rootName    string
	sources     [numSources]store.IDatabase
	newDatabase store.DatabaseFactory
	hooks       *hooks.Registry

	response     chan struct{}
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// New creates a store in state Initializing. Every source database uses the
// given component filter setting. A nil factory selects lstore with maple.
func New(rootName string, filterByComponent bool, factory store.DatabaseFactory) *Store {
	if factory == nil {
		factory = lstore.NewDatabaseFactory(nil)
	}
	s := &Store{
		state:       StateUninitialized,
		rootName:    rootName,
		newDatabase: factory,
		hooks:       hooks.NewRegistry(),
		response:    make(chan struct{}, 1),
		shutdown:    make(chan struct{}),
	}
	for src := range s.sources {
		s.sources[src] = factory(rootName, filterByComponent)
	}
	s.state = StateInitializing
	return s
}

// current returns the database reads and finalized writes go to
func (s *Store) current() store.IDatabase {
	return s.sources[SourceComponent]
}

// target returns the database a write from src goes to and whether hooks must run
func (s *Store) target(src Source) (store.IDatabase, bool) {
	if s.state == StateFinalized {
		return s.current(), true
	}
	if src >= numSources {
		Logger.Warningf("store %s: unknown source %d, using %s", s.rootName, src, SourceComponent)
		src = SourceComponent
	}
	return s.sources[src], false
}

// --------------------------------------------------------------------------
// Writes
// --------------------------------------------------------------------------

// Put writes to the Component source (docu see store/interface.go)
func (s *Store) Put(key string, value db.Cell) bool {
	return s.PutFrom(SourceComponent, key, value)
}

// PutFrom writes value as if it came from src. After initialization the value
// goes to the merged tree and the hooks run with key.
func (s *Store) PutFrom(src Source, key string, value db.Cell) bool {
	s.mu.Lock()
	target, fire := s.target(src)
	ok := target.Put(key, value)
	s.mu.Unlock()

	if ok && fire {
		s.hooks.Fire(key)
	}
	return ok
}

// InsertJSON merges a JSON document into the Component source
func (s *Store) InsertJSON(doc string) error {
	return s.InsertJSONFrom(SourceComponent, doc)
}

// InsertJSONFrom merges a JSON document as if it came from src. After
// initialization the hooks run with hooks.FullConfigKey.
func (s *Store) InsertJSONFrom(src Source, doc string) error {
	s.mu.Lock()
	target, fire := s.target(src)
	err := cfgio.InsertJSON(target, doc)
	s.mu.Unlock()

	if err == nil && fire {
		s.hooks.Fire(hooks.FullConfigKey)
	}
	return err
}

// PutCfg imports a file into the Component source
func (s *Store) PutCfg(path string) error {
	return s.PutCfgFrom(SourceComponent, path)
}

// PutCfgFrom imports a .json or .xml file as if it came from src.
// No hooks run.
func (s *Store) PutCfgFrom(src Source, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	target, _ := s.target(src)
	return cfgio.PutCfg(target, path)
}

// Clear removes every component from every source
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.sources {
		d.Clear()
	}
}

// --------------------------------------------------------------------------
// Reads (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *Store) Get(key string, def db.Cell) (db.Cell, bool) {
	return s.current().Get(key, def)
}

func (s *Store) GetStringList(key string, def []string) ([]string, bool) {
	return s.current().GetStringList(key, def)
}

func (s *Store) GetChildren(key string, fullPath bool) []string {
	return s.current().GetChildren(key, fullPath)
}

func (s *Store) Exists(key string) bool {
	return s.current().Exists(key)
}

func (s *Store) KeyInfo(key string) (store.KeyInfo, bool) {
	return s.current().KeyInfo(key)
}

// IsList reports whether key holds more than one value
func (s *Store) IsList(key string) bool {
	return store.IsList(s.current(), key)
}

// ComponentData returns all values of a component of the merged tree
func (s *Store) ComponentData(component string) (map[string]string, bool) {
	return s.current().ComponentData(component)
}

// ComponentNames returns the components of the merged tree
func (s *Store) ComponentNames() []string {
	return s.current().ComponentNames()
}

// HasComponent reports whether the merged tree knows component
func (s *Store) HasComponent(component string) bool {
	return s.current().HasComponent(component)
}

// RootName returns the name the store was created with
func (s *Store) RootName() string {
	return s.rootName
}

// Database returns the merged database
func (s *Store) Database() store.IDatabase {
	return s.current()
}

// --------------------------------------------------------------------------
// Export
// --------------------------------------------------------------------------

// AllJSON exports every component of the merged tree
func (s *Store) AllJSON(formatted bool) string {
	return cfgio.AllJSON(s.current(), "", formatted)
}

// ComponentJSON exports one component of the merged tree
func (s *Store) ComponentJSON(component string, formatted bool) (string, bool) {
	return cfgio.ComponentJSON(s.current(), component, formatted)
}

// Differences reports the keys of doc that are missing or different in the merged tree
func (s *Store) Differences(doc string, formatted bool) string {
	return cfgio.Differences(s.current(), doc, s.newDatabase, formatted)
}

// WriteCfg saves the merged tree as a JSON file
func (s *Store) WriteCfg(path string, formatted bool) error {
	return cfgio.WriteCfg(s.current(), path, formatted)
}

// Info returns the value store statistics of the merged tree per component
func (s *Store) Info() map[string]db.DatabaseInfo {
	return s.current().Info()
}

// --------------------------------------------------------------------------
// Snapshots
// --------------------------------------------------------------------------

// SaveSnapshot writes the merged tree to path. The file is replaced
// atomically, a failed save keeps the previous snapshot.
func (s *Store) SaveSnapshot(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}

	if err := s.current().Save(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	Logger.Infof("store %s: saved snapshot to %s", s.rootName, path)
	return nil
}

// LoadSnapshot replaces the merged tree with the snapshot at path. After
// initialization the hooks run with hooks.FullConfigKey.
func (s *Store) LoadSnapshot(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	s.mu.Lock()
	err = s.current().Load(f)
	fire := s.state == StateFinalized
	s.mu.Unlock()

	if err != nil {
		return err
	}
	if fire {
		s.hooks.Fire(hooks.FullConfigKey)
	}
	return nil
}

// --------------------------------------------------------------------------
// Components and Filter
// --------------------------------------------------------------------------

// AddComponent registers component in every source. It reports whether the
// component was added to the merged tree.
func (s *Store) AddComponent(component string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok := s.current().AddComponent(component)
	for src := SourceCommandLineParameters; src < numSources; src++ {
		s.sources[src].AddComponent(component)
	}
	return ok
}

// EnableFilterByComponent switches the component filter on for every source
func (s *Store) EnableFilterByComponent() { s.setFilterAll(true) }

// DisableFilterByComponent switches the component filter off for every source
func (s *Store) DisableFilterByComponent() { s.setFilterAll(false) }

func (s *Store) setFilterAll(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.sources {
		d.SetFilterByComponent(enabled)
	}
}

// FilterByComponent reports the filter setting of the merged tree
func (s *Store) FilterByComponent() bool {
	return s.current().FilterByComponent()
}

// SetFilterByComponent changes the filter of the merged tree only
func (s *Store) SetFilterByComponent(enabled bool) {
	s.current().SetFilterByComponent(enabled)
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// FinishInitialization merges all sources into the Component source and
// finalizes the store. Calling it again has no effect beyond re-merging the
// (empty) sources.
func (s *Store) FinishInitialization() {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.current()
	for _, src := range mergeOrder {
		current.Insert(s.sources[src])
		s.sources[src].Clear()
	}

	if s.state != StateFinalized {
		Logger.Infof("store %s: initialization finished, components %v", s.rootName, current.ComponentNames())
	}
	s.state = StateFinalized
}

// IsInitFinished reports whether FinishInitialization was called
func (s *Store) IsInitFinished() bool {
	return s.State() == StateFinalized
}

// State returns the lifecycle state
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// --------------------------------------------------------------------------
// Hooks
// --------------------------------------------------------------------------

// AddChangeHook registers a hook and returns its id
func (s *Store) AddChangeHook(hook hooks.ChangeHook) uint64 {
	return s.hooks.Add(hook)
}

// RemoveChangeHook unregisters a hook, unknown ids are ignored
func (s *Store) RemoveChangeHook(id uint64) bool {
	return s.hooks.Remove(id)
}

// SetHooksActive enables or disables hook invocation
func (s *Store) SetHooksActive(active bool) { s.hooks.SetActive(active) }

// HooksActive reports whether hooks are invoked
func (s *Store) HooksActive() bool { return s.hooks.Active() }

// --------------------------------------------------------------------------
// Response wait
// --------------------------------------------------------------------------

// SetWaitForResponseFlag wakes one pending WaitForResponse. If nobody waits,
// the flag stays set until the next wait consumes it.
func (s *Store) SetWaitForResponseFlag() {
	select {
	case s.response <- struct{}{}:
	default:
	}
}

// ResetWaitForResponseFlag drops a flag nobody consumed
func (s *Store) ResetWaitForResponseFlag() {
	select {
	case <-s.response:
	default:
	}
}

// WaitForResponse blocks until the response flag is set, the timeout expires
// or the store is closed. It does not report which one happened; callers
// check the store for the value they waited for.
func (s *Store) WaitForResponse(timeout time.Duration) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-s.response:
	case <-s.shutdown:
	case <-timer.C:
		Logger.Debugf("store %s: no response within %s", s.rootName, timeout)
	}
}

// Close wakes every waiter. The store stays readable.
func (s *Store) Close() {
	s.shutdownOnce.Do(func() {
		close(s.shutdown)
	})
}
