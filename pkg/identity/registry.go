package identity

import "sync/atomic"

// Registry holds the active reference index. Rebuilds publish a new Index
// with Swap; readers keep whatever instance they loaded.
type Registry struct {
	current atomic.Pointer[Index]
}

// NewRegistry creates a Registry serving idx, which may be nil.
func NewRegistry(idx *Index) *Registry {
	r := &Registry{}
	if idx != nil {
		r.current.Store(idx)
	}
	return r
}

// Load returns the active index or ErrReferenceIndexUnavailable.
func (r *Registry) Load() (*Index, error) {
	if r == nil {
		return nil, ErrReferenceIndexUnavailable
	}
	idx := r.current.Load()
	if idx == nil {
		return nil, ErrReferenceIndexUnavailable
	}
	return idx, nil
}

// Swap atomically replaces the active index and returns the previous one.
func (r *Registry) Swap(idx *Index) *Index {
	return r.current.Swap(idx)
}
