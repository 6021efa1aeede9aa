// Package registry implements the process-wide LRU registry mapping
// resource names to protected resources: bounded by size, with a
// min-age floor below which an entry is immune to eviction no matter how
// large the map grows.
package registry

import (
	"container/list"
	"sync"
	"time"

	"github.com/vnykmshr/resiliencecore/internal/bus"
)

// Resource is the subset of resourcecore.Resource the registry needs: an
// io.Closer with an activity signal and an access timestamp for LRU
// ordering. Kept as an interface (rather than importing resourcecore
// directly) so the registry has no dependency on what backs a resource.
type Resource interface {
	UpdatedAt() time.Time
	InUse() bool
	Close() error
}

// Config configures a Registry.
type Config struct {
	// MaxSize bounds the number of entries the registry tries to keep.
	// Zero means unbounded.
	MaxSize int

	// MinAge is the floor below which an entry is never evicted, even if
	// that means MaxSize is exceeded. Defaults to 5 minutes.
	MinAge time.Duration

	Bus *bus.Bus
}

const defaultMinAge = 5 * time.Minute

type entry struct {
	name     string
	resource Resource
}

// Registry is an LRU map from name to protected resource, re-insertion
// ordered on access, with opportunistic size-bounded garbage collection.
type Registry struct {
	maxSize int
	minAge  time.Duration
	bus     *bus.Bus

	mu    sync.Mutex
	items map[string]*list.Element
	order *list.List // front = most recently used
	gcMu  sync.Mutex
}

// New creates an empty Registry.
func New(cfg Config) *Registry {
	minAge := cfg.MinAge
	if minAge == 0 {
		minAge = defaultMinAge
	}
	return &Registry{
		maxSize: cfg.MaxSize,
		minAge:  minAge,
		bus:     cfg.Bus,
		items:   make(map[string]*list.Element),
		order:   list.New(),
	}
}

// Get returns the resource registered under name, promoting it to
// most-recently-used. Never triggers GC.
func (r *Registry) Get(name string) (Resource, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	el, ok := r.items[name]
	if !ok {
		return nil, false
	}
	r.order.MoveToFront(el)
	return el.Value.(*entry).resource, true
}

// Register inserts resource under name, replacing (and closing) any
// existing entry of the same name. Attempts an opportunistic GC sweep
// afterward.
func (r *Registry) Register(name string, resource Resource) {
	r.mu.Lock()
	if el, ok := r.items[name]; ok {
		old := el.Value.(*entry).resource
		r.order.Remove(el)
		delete(r.items, name)
		r.mu.Unlock()
		old.Close()
		r.mu.Lock()
	}

	el := r.order.PushFront(&entry{name: name, resource: resource})
	r.items[name] = el
	r.mu.Unlock()

	r.tryGC()
}

// GetOrRegister returns the existing resource for name if present
// (promoting it to MRU), or builds one via build and inserts it.
func (r *Registry) GetOrRegister(name string, build func() Resource) Resource {
	if existing, ok := r.Get(name); ok {
		return existing
	}

	r.mu.Lock()
	if el, ok := r.items[name]; ok {
		r.order.MoveToFront(el)
		res := el.Value.(*entry).resource
		r.mu.Unlock()
		return res
	}

	resource := build()
	el := r.order.PushFront(&entry{name: name, resource: resource})
	r.items[name] = el
	r.mu.Unlock()

	r.tryGC()
	return resource
}

// Unregister removes and closes the entry for name, if present.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	el, ok := r.items[name]
	if !ok {
		r.mu.Unlock()
		return
	}
	r.order.Remove(el)
	delete(r.items, name)
	r.mu.Unlock()

	el.Value.(*entry).resource.Close()
}

// Len returns the current entry count.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// tryGC attempts an opportunistic GC sweep, skipping entirely if another
// sweep is already in progress elsewhere — GC is a nice-to-have size bound,
// never worth making a Register/GetOrRegister caller wait on.
func (r *Registry) tryGC() {
	if r.maxSize <= 0 {
		return
	}
	if !r.gcMu.TryLock() {
		return
	}
	defer r.gcMu.Unlock()
	r.gcSweep()
}

// gcSweep evicts least-recently-used entries beyond MaxSize, skipping any
// entry younger than MinAge or currently InUse. Emits EventLRUGC with the
// sweep's result.
func (r *Registry) gcSweep() {
	start := time.Now()
	now := start

	r.mu.Lock()
	size := len(r.items)
	if size <= r.maxSize {
		r.mu.Unlock()
		return
	}

	var examined, cleared int
	var toClose []Resource

	el := r.order.Back()
	for el != nil && len(r.items) > r.maxSize {
		examined++
		prev := el.Prev()
		e := el.Value.(*entry)

		age := now.Sub(e.resource.UpdatedAt())
		if age >= r.minAge && !e.resource.InUse() {
			r.order.Remove(el)
			delete(r.items, e.name)
			toClose = append(toClose, e.resource)
			cleared++
		}
		el = prev
	}
	r.mu.Unlock()

	for _, res := range toClose {
		res.Close()
	}

	if r.bus != nil {
		r.bus.Notify(bus.Event{
			Kind:     bus.EventLRUGC,
			Size:     size,
			Examined: examined,
			Cleared:  cleared,
			Elapsed:  time.Since(start),
		})
	}
}

// Close unregisters and closes every entry. Used for engine-wide shutdown.
func (r *Registry) Close() error {
	r.mu.Lock()
	all := make([]Resource, 0, len(r.items))
	for _, el := range r.items {
		all = append(all, el.Value.(*entry).resource)
	}
	r.items = make(map[string]*list.Element)
	r.order = list.New()
	r.mu.Unlock()

	for _, res := range all {
		res.Close()
	}
	return nil
}
