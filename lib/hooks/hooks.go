// Package hooks provides the change hook registry of the overlay store.
//
// Hooks are plain functions receiving the key that changed, or FullConfigKey
// after a bulk insert. They run synchronously on the goroutine performing the
// write, in registration order, after the store released its locks, so a hook
// may read from (or write to) the store that invoked it.
package hooks

import (
	"sync"
	"sync/atomic"

	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("hooks")

// FullConfigKey is passed to hooks after a whole document was inserted
const FullConfigKey = "full_cfg"

// ChangeHook is called with the changed key. The result reports whether the
// hook handled the change; it is only logged.
type ChangeHook func(key string) bool

type registration struct {
	id   uint64
	hook ChangeHook
}

// Registry holds the registered hooks. The zero value is not usable, use
// NewRegistry.
type Registry struct {
	mu     sync.Mutex
	nextID uint64
	hooks  []registration
	active atomic.Bool
}

// NewRegistry creates an empty, active registry
func NewRegistry() *Registry {
	r := &Registry{}
	r.active.Store(true)
	return r
}

// Add registers hook and returns its id. Ids are never reused.
func (r *Registry) Add(hook ChangeHook) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.hooks = append(r.hooks, registration{id: r.nextID, hook: hook})
	return r.nextID
}

// Remove unregisters the hook with the given id. Unknown ids are ignored.
func (r *Registry) Remove(id uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, reg := range r.hooks {
		if reg.id == id {
			r.hooks = append(r.hooks[:i:i], r.hooks[i+1:]...)
			return true
		}
	}
	return false
}

// SetActive enables or disables hook invocation
func (r *Registry) SetActive(active bool) { r.active.Store(active) }

// Active reports whether hooks are invoked
func (r *Registry) Active() bool { return r.active.Load() }

// Len returns the number of registered hooks
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.hooks)
}

// Fire invokes every registered hook with key if the registry is active.
// The hook list is copied under the lock and the hooks run without it.
func (r *Registry) Fire(key string) {
	if !r.active.Load() {
		return
	}

	r.mu.Lock()
	snapshot := make([]registration, len(r.hooks))
	copy(snapshot, r.hooks)
	r.mu.Unlock()

	for _, reg := range snapshot {
		if !reg.hook(key) {
			Logger.Debugf("hook %d did not handle change of %q", reg.id, key)
		}
	}
}
