package source

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/directory-service/internal/apperrors"
	"github.com/teresa-solution/directory-service/internal/model"
)

// Driver queries one configured source.
type Driver interface {
	// Search returns the contacts matching term.
	Search(ctx context.Context, term string, caller Caller) ([]Result, error)
	// FirstMatch returns the contact whose number is exactly term, or nil.
	FirstMatch(ctx context.Context, term string, caller Caller) (*Result, error)
	// List returns the contacts identified by ids.
	List(ctx context.Context, ids []string, caller Caller) ([]Result, error)
}

// SingleThreaded is implemented by drivers that cannot serve concurrent
// calls. The manager serializes the calls of those that return true.
type SingleThreaded interface {
	SingleThreaded() bool
}

// Factory builds the driver of a source.
type Factory func(ctx context.Context, src model.Source) (Driver, error)

// Loader fetches source configurations.
type Loader interface {
	GetByUUID(ctx context.Context, sourceUUID string) (*model.Source, error)
}

// Manager keeps one driver per source uuid, built on first use by the
// factory registered for the source backend.
type Manager struct {
	loader Loader

	mu        sync.Mutex
	factories map[string]Factory
	drivers   map[string]Driver
	// generations counts the invalidations of each source. A driver built
	// while its source was invalidated is not cached.
	generations map[string]uint64
}

func NewManager(loader Loader) *Manager {
	return &Manager{
		loader:      loader,
		factories:   make(map[string]Factory),
		drivers:     make(map[string]Driver),
		generations: make(map[string]uint64),
	}
}

// Register sets the factory of backend, replacing any previous one.
func (m *Manager) Register(backend string, factory Factory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.factories[backend] = factory
}

// Backends returns the sorted backends with a registered factory.
func (m *Manager) Backends() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	backends := make([]string, 0, len(m.factories))
	for b := range m.factories {
		backends = append(backends, b)
	}
	sort.Strings(backends)
	return backends
}

// Get returns the driver of the source sourceUUID.
func (m *Manager) Get(ctx context.Context, sourceUUID string) (Driver, error) {
	m.mu.Lock()
	driver, ok := m.drivers[sourceUUID]
	generation := m.generations[sourceUUID]
	m.mu.Unlock()
	if ok {
		return driver, nil
	}

	src, err := m.loader.GetByUUID(ctx, sourceUUID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	factory, ok := m.factories[src.Backend]
	m.mu.Unlock()
	if !ok {
		return nil, apperrors.ErrInvalidSourceConfig.Msg(fmt.Sprintf("no driver for backend %q", src.Backend))
	}

	driver, err = factory(ctx, *src)
	if err != nil {
		return nil, err
	}
	if st, ok := driver.(SingleThreaded); ok && st.SingleThreaded() {
		driver = &serialized{driver: driver}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generations[sourceUUID] != generation {
		return driver, nil
	}
	if existing, ok := m.drivers[sourceUUID]; ok {
		return existing, nil
	}
	m.drivers[sourceUUID] = driver
	log.Ctx(ctx).Debug().Str("source_uuid", sourceUUID).Str("backend", src.Backend).Msg("Source driver loaded")
	return driver, nil
}

// Invalidate drops the driver of sourceUUID. The next Get rebuilds it from
// the current configuration.
func (m *Manager) Invalidate(sourceUUID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drivers, sourceUUID)
	m.generations[sourceUUID]++
}

// serialized runs the calls of a single threaded driver one at a time.
type serialized struct {
	mu     sync.Mutex
	driver Driver
}

func (s *serialized) Search(ctx context.Context, term string, caller Caller) ([]Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.driver.Search(ctx, term, caller)
}

func (s *serialized) FirstMatch(ctx context.Context, term string, caller Caller) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.driver.FirstMatch(ctx, term, caller)
}

func (s *serialized) List(ctx context.Context, ids []string, caller Caller) ([]Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.driver.List(ctx, ids, caller)
}
