package resiliencecore

import (
	"os"
	"sync"
	"time"

	"github.com/vnykmshr/resiliencecore/internal/bus"
	"github.com/vnykmshr/resiliencecore/internal/config"
	"github.com/vnykmshr/resiliencecore/internal/registry"
	"github.com/vnykmshr/resiliencecore/internal/resourcecore"
	"github.com/vnykmshr/resiliencecore/internal/scheduler"
)

// Environment switches read once at NewEngine, collapsing every resource's
// breaker to resourcecore.NoopBreaker regardless of its Config.
const (
	envDisableAll     = "RESILIENCE_DISABLE_ALL"
	envDisableBreaker = "RESILIENCE_DISABLE_CIRCUIT_BREAKER"
)

// EngineConfig configures an Engine's shared infrastructure: the size and
// eviction policy of its resource registry, the cadence its adaptive
// breakers are ticked at, and the pool size Config.Quota fractions are
// resolved against.
type EngineConfig struct {
	// RegistryMaxSize bounds the number of resources the engine keeps
	// alive at once. Zero means unbounded.
	RegistryMaxSize int

	// RegistryMinAge is the floor below which a resource is never evicted
	// from the registry. Defaults to 5 minutes.
	RegistryMinAge time.Duration

	// TickInterval is how often the engine's scheduler drives every
	// registered adaptive controller's Update. Defaults to 10 seconds.
	TickInterval time.Duration

	// PoolSize resolves Config.Quota fractions into a concrete ticket
	// count for bulkheads sized by quota rather than a literal count.
	PoolSize int
}

// Engine bundles one resource registry, one notification bus, and one tick
// scheduler: the process-wide (or test-scoped) home for a set of protected
// resources. The zero value is not usable; construct via NewEngine.
type Engine struct {
	bus      *bus.Bus
	sched    *scheduler.Scheduler
	registry *registry.Registry
	poolSize int

	disableAll     bool
	disableBreaker bool
}

// NewEngine constructs an Engine, starting its background tick scheduler.
// Call Shutdown when the engine is no longer needed.
func NewEngine(cfg EngineConfig) *Engine {
	interval := cfg.TickInterval
	if interval == 0 {
		interval = 10 * time.Second
	}

	b := bus.New()
	sched := scheduler.New(interval)
	sched.Start()

	reg := registry.New(registry.Config{
		MaxSize: cfg.RegistryMaxSize,
		MinAge:  cfg.RegistryMinAge,
		Bus:     b,
	})

	return &Engine{
		bus:            b,
		sched:          sched,
		registry:       reg,
		poolSize:       cfg.PoolSize,
		disableAll:     os.Getenv(envDisableAll) != "",
		disableBreaker: os.Getenv(envDisableBreaker) != "",
	}
}

// Register builds a resource from cfg and registers it under name,
// replacing (and closing) any existing resource of that name.
func (e *Engine) Register(name string, cfg config.Config) (*resourcecore.Resource, error) {
	cfg.Name = name
	resource, err := e.build(cfg)
	if err != nil {
		return nil, err
	}
	e.registry.Register(name, resource)
	return resource, nil
}

// GetOrRegister returns the existing resource named name, promoting it to
// most-recently-used, or builds and registers one from cfg. cfg is
// validated up front so a bad Config never reaches the registry's lazy
// build path.
func (e *Engine) GetOrRegister(name string, cfg config.Config) (*resourcecore.Resource, error) {
	cfg.Name = name
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	res := e.registry.GetOrRegister(name, func() registry.Resource {
		// err is nil here: cfg was already validated above, and Build's
		// own validation is the only source of error.
		resource, _ := e.build(cfg)
		return resource
	})
	return res.(*resourcecore.Resource), nil
}

// Unregister removes and closes the resource named name, if present.
func (e *Engine) Unregister(name string) {
	e.registry.Unregister(name)
}

// Bus returns the engine's shared notification bus.
func (e *Engine) Bus() *bus.Bus { return e.bus }

// Shutdown stops the tick scheduler and closes every registered resource.
func (e *Engine) Shutdown() error {
	e.sched.Stop()
	return e.registry.Close()
}

func (e *Engine) build(cfg config.Config) (*resourcecore.Resource, error) {
	disableBreaker := e.disableAll || e.disableBreaker
	if e.disableAll {
		cfg.Bulkhead = false
	}
	return cfg.Build(e.sched, e.bus, e.poolSize, disableBreaker)
}

// LazyEngine creates its wrapped Engine on first use rather than eagerly,
// so importing resiliencecore never starts a scheduler goroutine unless
// the package-level convenience functions are actually called.
type LazyEngine struct {
	cfg  EngineConfig
	once sync.Once
	eng  *Engine
}

// NewLazyEngine wraps cfg for deferred construction.
func NewLazyEngine(cfg EngineConfig) *LazyEngine {
	return &LazyEngine{cfg: cfg}
}

// Get returns the wrapped Engine, constructing it on the first call.
func (l *LazyEngine) Get() *Engine {
	l.once.Do(func() {
		l.eng = NewEngine(l.cfg)
	})
	return l.eng
}
