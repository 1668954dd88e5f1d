package storage

import (
	"context"
	"sync"
)

// MemoryStore keeps bundles in a map. It backs artifact tests and
// embedders that build bundles in-process. It is safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	bundles map[string]Bundle
}

// NewMemoryStore creates an empty in-memory bundle store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bundles: make(map[string]Bundle),
	}
}

// Put stores a bundle under its name, replacing any existing one.
//
// Returns an error if the bundle name is invalid or if context is canceled.
func (s *MemoryStore) Put(ctx context.Context, bundle Bundle) error {
	if err := ValidateName(bundle.Name); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.bundles[bundle.Name] = bundle
	return nil
}

// GetLatest retrieves the bundle stored under name.
//
// Returns:
//   - bundle: The stored bundle (zero value if not found)
//   - found: true if a bundle exists for this name, false otherwise
//   - error: Context error if context is canceled, nil otherwise
func (s *MemoryStore) GetLatest(ctx context.Context, name string) (Bundle, bool, error) {
	select {
	case <-ctx.Done():
		return Bundle{}, false, ctx.Err()
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	bundle, found := s.bundles[name]
	return bundle, found, nil
}
