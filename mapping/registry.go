package mapping

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrNilDescriptor is returned when a nil descriptor is added.
	ErrNilDescriptor = errors.New("nil descriptor provided")
	// ErrDuplicatePair indicates an attempt to register a second
	// descriptor for an already-registered type pair.
	ErrDuplicatePair = errors.New("type pair already registered")
)

// Registry is a concrete Provider backed by a sync.Map: reads are
// lock-free, writes go through a mutex so the pair list stays consistent
// with the map.
type Registry struct {
	mu    sync.Mutex
	m     sync.Map // TypePair -> *TypeMap
	pairs []TypePair
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add validates tm and registers it for its type pair. Registering a pair
// twice is an error; descriptors are immutable once added.
func (r *Registry) Add(tm *TypeMap) error {
	if tm == nil {
		return ErrNilDescriptor
	}
	if err := tm.Validate(); err != nil {
		return err
	}

	pair := tm.Pair()

	// Fast path: duplicate check without locking.
	if _, ok := r.m.Load(pair); ok {
		return fmt.Errorf("%w: %s", ErrDuplicatePair, pair)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-check under lock in case another goroutine stored meanwhile.
	if _, ok := r.m.Load(pair); ok {
		return fmt.Errorf("%w: %s", ErrDuplicatePair, pair)
	}

	r.m.Store(pair, tm)
	r.pairs = append(r.pairs, pair)
	return nil
}

// MustAdd is Add for static registration blocks; it panics on error.
func (r *Registry) MustAdd(tm *TypeMap) {
	if err := r.Add(tm); err != nil {
		panic(err)
	}
}

// Resolve implements Provider.
func (r *Registry) Resolve(pair TypePair) (*TypeMap, bool) {
	v, ok := r.m.Load(pair)
	if !ok {
		return nil, false
	}
	return v.(*TypeMap), true
}

// TypePairs implements Provider. Pairs are returned in registration order.
func (r *Registry) TypePairs() []TypePair {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TypePair, len(r.pairs))
	copy(out, r.pairs)
	return out
}

// Reset removes every registered descriptor.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m = sync.Map{}
	r.pairs = nil
}

var _ Provider = (*Registry)(nil)
