// Package certstore keeps the authority certificates known to one consumer
// of the voting core. The store is an explicit value passed into signature
// validation; there is no process-wide certificate state.
package certstore

import (
	"sync"

	"github.com/shalisap/thesis-tor"
	"golang.org/x/exp/slices"
)

// Store is a set of authority certificates indexed by identity digest and by
// signing key digest. It is safe for concurrent use.
type Store struct {
	mut          sync.RWMutex
	byIdentity   map[tor.Digest]*tor.AuthorityCert
	bySigningKey map[tor.Digest]*tor.AuthorityCert
}

// New returns an empty certificate store.
func New() *Store {
	return &Store{
		byIdentity:   make(map[tor.Digest]*tor.AuthorityCert),
		bySigningKey: make(map[tor.Digest]*tor.AuthorityCert),
	}
}

// Add validates cert and adds it to the store, replacing any previous
// certificate for the same identity.
func (s *Store) Add(cert *tor.AuthorityCert) error {
	if err := cert.Validate(); err != nil {
		return err
	}
	s.mut.Lock()
	defer s.mut.Unlock()
	if old, ok := s.byIdentity[cert.IdentityDigest]; ok {
		delete(s.bySigningKey, old.SigningKeyDigest)
	}
	s.byIdentity[cert.IdentityDigest] = cert
	s.bySigningKey[cert.SigningKeyDigest] = cert
	return nil
}

// ByIdentity returns the certificate for the given authority identity
// digest.
func (s *Store) ByIdentity(d tor.Digest) (*tor.AuthorityCert, bool) {
	s.mut.RLock()
	defer s.mut.RUnlock()
	cert, ok := s.byIdentity[d]
	return cert, ok
}

// BySigningKey returns the certificate whose signing key has the given
// digest.
func (s *Store) BySigningKey(d tor.Digest) (*tor.AuthorityCert, bool) {
	s.mut.RLock()
	defer s.mut.RUnlock()
	cert, ok := s.bySigningKey[d]
	return cert, ok
}

// Len returns the number of certificates in the store.
func (s *Store) Len() int {
	s.mut.RLock()
	defer s.mut.RUnlock()
	return len(s.byIdentity)
}

// All returns the stored certificates sorted by identity digest.
func (s *Store) All() []*tor.AuthorityCert {
	s.mut.RLock()
	defer s.mut.RUnlock()
	certs := make([]*tor.AuthorityCert, 0, len(s.byIdentity))
	for _, cert := range s.byIdentity {
		certs = append(certs, cert)
	}
	slices.SortFunc(certs, func(a, b *tor.AuthorityCert) bool {
		return a.IdentityDigest.Compare(b.IdentityDigest) < 0
	})
	return certs
}
