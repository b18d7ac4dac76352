package devices

import (
	"fmt"
	"sort"
	"sync"

	"github.com/KevinKickass/OpenMTS/internal/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Link names the two sources feeding a combiner output.
type Link struct {
	Uncorrelated string `json:"ucs"`
	Correlated   string `json:"cs"`
}

// Registry owns every module of a session. Combiners never hold their
// sources; they are looked up here by name.
type Registry struct {
	modules map[string]*Module
	links   map[string]Link
	mu      sync.RWMutex
	logger  *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		modules: make(map[string]*Module),
		links:   make(map[string]Link),
		logger:  logger,
	}
}

// Add registers a module. Names and module numbers must be unique.
func (r *Registry) Add(m *Module) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.modules[m.Name]; exists {
		return fmt.Errorf("module %s already registered", m.Name)
	}
	for _, other := range r.modules {
		if other.Number == m.Number {
			return fmt.Errorf("module number %d used by both %s and %s", m.Number, other.Name, m.Name)
		}
	}

	r.modules[m.Name] = m

	r.logger.Info("Module registered",
		zap.String("name", m.Name),
		zap.Uint8("number", m.Number),
		zap.Stringer("role", m.Role),
		zap.Bool("available", m.Available),
		zap.String("id", m.ID.String()))

	return nil
}

// Link associates a combiner with its uncorrelated and correlated sources.
func (r *Registry) Link(combiner string, link Link) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	comb, ok := r.modules[combiner]
	if !ok || comb.Role != RoleCombiner {
		return fmt.Errorf("link %s: %w", combiner, types.ErrUnknownOutput)
	}
	for _, name := range []string{link.Uncorrelated, link.Correlated} {
		src, ok := r.modules[name]
		if !ok || src.Role != RoleSource {
			return fmt.Errorf("link %s to %q: %w", combiner, name, types.ErrUnknownModule)
		}
	}

	r.links[combiner] = link
	return nil
}

// Get returns a module by name.
func (r *Registry) Get(name string) (*Module, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.modules[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, types.ErrUnknownModule)
	}
	return m, nil
}

// GetByID returns a module by instance ID
func (r *Registry) GetByID(id uuid.UUID) (*Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.modules {
		if m.ID == id {
			return m, true
		}
	}
	return nil, false
}

// Combiner returns an available combiner module by name.
func (r *Registry) Combiner(name string) (*Module, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.modules[name]
	if !ok || m.Role != RoleCombiner || !m.Available {
		return nil, fmt.Errorf("output module %s: %w", name, types.ErrUnknownOutput)
	}
	return m, nil
}

// SourcesOf resolves the sources linked to a combiner.
func (r *Registry) SourcesOf(combiner string) (ucs, cs *Module, err error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	link, ok := r.links[combiner]
	if !ok {
		return nil, nil, fmt.Errorf("output module %s has no sources: %w", combiner, types.ErrUnknownOutput)
	}
	return r.modules[link.Uncorrelated], r.modules[link.Correlated], nil
}

// LinkOf returns the source names linked to a combiner.
func (r *Registry) LinkOf(combiner string) (Link, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	link, ok := r.links[combiner]
	return link, ok
}

// List returns the modules with the given role sorted by module number. A
// zero role lists everything.
func (r *Registry) List(role Role) []*Module {
	r.mu.RLock()
	defer r.mu.RUnlock()

	modules := make([]*Module, 0, len(r.modules))
	for _, m := range r.modules {
		if role == 0 || m.Role == role {
			modules = append(modules, m)
		}
	}
	sort.Slice(modules, func(i, j int) bool {
		return modules[i].Number < modules[j].Number
	})

	return modules
}
