package solver

// Note: Factory is not mockable with mockgen because Register() uses the
// unexported coreSolver type. Use DefaultFactory or manual mocks instead.

import (
	"fmt"
	"sort"
	"sync"
)

// Factory creates Solver instances by method, enabling dependency
// injection of the method set into the service and orchestration layers.
type Factory interface {
	// Create returns a new, uncached Solver for the method.
	Create(m Method) (Solver, error)

	// Get returns the cached Solver for the method, creating it on first use.
	Get(m Method) (Solver, error)

	// List returns the registered methods in enum order.
	List() []Method

	// GetAll returns every registered solver keyed by method.
	GetAll() map[Method]Solver
}

// DefaultFactory is a thread-safe registry of solver creators that caches
// the Solver built for each method. Each factory owns its registry; there
// is no process-wide instance.
type DefaultFactory struct {
	mu       sync.RWMutex
	creators map[Method]func() coreSolver
	solvers  map[Method]Solver
}

// NewDefaultFactory returns a factory with all seven methods registered.
func NewDefaultFactory() *DefaultFactory {
	f := &DefaultFactory{
		creators: make(map[Method]func() coreSolver),
		solvers:  make(map[Method]Solver),
	}
	for _, m := range Methods() {
		_ = f.Register(m, func() coreSolver {
			core, _ := coreFor(m)
			return core
		})
	}
	return f
}

// Register adds or replaces the creator of a method. A replaced method's
// cached solver is dropped so the next Get uses the new creator.
func (f *DefaultFactory) Register(m Method, creator func() coreSolver) error {
	if !m.Valid() {
		return fmt.Errorf("cannot register invalid method %v", m)
	}
	if creator == nil {
		return fmt.Errorf("nil creator for method %v", m)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	f.creators[m] = creator
	delete(f.solvers, m)
	return nil
}

// Create always builds a fresh Solver.
func (f *DefaultFactory) Create(m Method) (Solver, error) {
	f.mu.RLock()
	creator, ok := f.creators[m]
	f.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown method: %v", m)
	}
	return NewSolver(creator()), nil
}

// Get returns the cached Solver for m.
func (f *DefaultFactory) Get(m Method) (Solver, error) {
	f.mu.RLock()
	if s, exists := f.solvers[m]; exists {
		f.mu.RUnlock()
		return s, nil
	}
	f.mu.RUnlock()

	f.mu.Lock()
	defer f.mu.Unlock()

	// Double-check after acquiring write lock
	if s, exists := f.solvers[m]; exists {
		return s, nil
	}
	creator, ok := f.creators[m]
	if !ok {
		return nil, fmt.Errorf("unknown method: %v", m)
	}
	s := NewSolver(creator())
	f.solvers[m] = s
	return s, nil
}

// List returns the registered methods sorted by enum value.
func (f *DefaultFactory) List() []Method {
	f.mu.RLock()
	defer f.mu.RUnlock()

	methods := make([]Method, 0, len(f.creators))
	for m := range f.creators {
		methods = append(methods, m)
	}
	sort.Slice(methods, func(i, j int) bool { return methods[i] < methods[j] })
	return methods
}

// GetAll initializes every registered solver and returns a copy of the
// cache.
func (f *DefaultFactory) GetAll() map[Method]Solver {
	f.mu.Lock()
	defer f.mu.Unlock()

	for m, creator := range f.creators {
		if _, exists := f.solvers[m]; !exists {
			f.solvers[m] = NewSolver(creator())
		}
	}
	result := make(map[Method]Solver, len(f.solvers))
	for m, s := range f.solvers {
		result[m] = s
	}
	return result
}

// MustGet is like Get but panics if the method is not registered.
func (f *DefaultFactory) MustGet(m Method) Solver {
	s, err := f.Get(m)
	if err != nil {
		panic(fmt.Sprintf("solver: required method not registered: %v", m))
	}
	return s
}

// Has reports whether m is registered.
func (f *DefaultFactory) Has(m Method) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, exists := f.creators[m]
	return exists
}
