// Package routerlist caches relay descriptors keyed by (identity digest,
// descriptor digest). The voting core uses it only to cross-check the
// descriptor digests chosen during a merge; merge correctness never depends
// on it.
package routerlist

import (
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/shalisap/thesis-tor"
)

// Descriptor is a cached relay descriptor.
type Descriptor struct {
	Identity   tor.Digest
	Descriptor tor.Digest
	Published  time.Time
	Body       []byte
}

type key struct {
	identity   tor.Digest
	descriptor tor.Digest
}

// Store is a bounded descriptor cache. It is safe for concurrent use.
type Store struct {
	cache *lru.Cache
}

// New returns a store that holds at most size descriptors.
func New(size int) (*Store, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Store{cache: cache}, nil
}

// Add inserts a descriptor, evicting the least recently used entry if the
// store is full.
func (s *Store) Add(d *Descriptor) {
	s.cache.Add(key{d.Identity, d.Descriptor}, d)
}

// Get returns the descriptor for the given identity and descriptor digest.
func (s *Store) Get(identity, descriptor tor.Digest) (*Descriptor, bool) {
	v, ok := s.cache.Get(key{identity, descriptor})
	if !ok {
		return nil, false
	}
	return v.(*Descriptor), true
}

// Contains reports whether the store holds a descriptor for the given
// identity and descriptor digest without updating recency.
func (s *Store) Contains(identity, descriptor tor.Digest) bool {
	return s.cache.Contains(key{identity, descriptor})
}

// Len returns the number of cached descriptors.
func (s *Store) Len() int {
	return s.cache.Len()
}
