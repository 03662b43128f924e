package tor

import (
	"crypto/ed25519"
	"encoding/binary"
	"errors"
	"time"
)

// Certificate validation errors.
var (
	ErrCertExpired     = errors.New("certificate has expired")
	ErrCertNotSigned   = errors.New("certificate is not signed by its identity key")
	ErrCertNotCrossed  = errors.New("certificate is not cross-certified by its signing key")
	ErrCertKeyMismatch = errors.New("certificate fingerprint does not match its identity key")
)

// AuthorityCert binds an authority's long-term identity key to the signing
// key it currently uses for votes and consensuses. Votes carry their
// authority's certificate; consensuses do not.
type AuthorityCert struct {
	IdentityKey ed25519.PublicKey
	SigningKey  ed25519.PublicKey

	IdentityDigest   Digest
	SigningKeyDigest Digest

	Published time.Time
	Expires   time.Time

	// CrossSignature is the signing key's signature over the identity
	// digest, and CertSignature the identity key's signature over the
	// certificate body digest.
	CrossSignature []byte
	CertSignature  []byte
}

// BodyDigest returns the digest of the certificate body that CertSignature
// covers: both keys and the validity window, in a fixed byte layout.
func (c *AuthorityCert) BodyDigest() Digest {
	var b []byte
	b = append(b, c.IdentityKey...)
	b = append(b, c.SigningKey...)
	var ts [16]byte
	binary.BigEndian.PutUint64(ts[:8], uint64(c.Published.Unix()))
	binary.BigEndian.PutUint64(ts[8:], uint64(c.Expires.Unix()))
	b = append(b, ts[:]...)
	return HashBytes(b)
}

// Validate checks the certificate's internal consistency: the fingerprint
// must match the identity key, the identity key must have signed the body,
// and the signing key must have cross-certified the identity.
func (c *AuthorityCert) Validate() error {
	if KeyDigest(c.IdentityKey) != c.IdentityDigest {
		return ErrCertKeyMismatch
	}
	if KeyDigest(c.SigningKey) != c.SigningKeyDigest {
		return ErrCertKeyMismatch
	}
	digest := c.BodyDigest()
	if !ed25519.Verify(c.IdentityKey, digest[:], c.CertSignature) {
		return ErrCertNotSigned
	}
	if !ed25519.Verify(c.SigningKey, c.IdentityDigest[:], c.CrossSignature) {
		return ErrCertNotCrossed
	}
	return nil
}

// ValidAt additionally checks the certificate validity window against the
// given time.
func (c *AuthorityCert) ValidAt(now time.Time) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if now.After(c.Expires) {
		return ErrCertExpired
	}
	return nil
}

// Clone returns a deep copy of the certificate.
func (c *AuthorityCert) Clone() *AuthorityCert {
	cc := *c
	cc.IdentityKey = append(ed25519.PublicKey(nil), c.IdentityKey...)
	cc.SigningKey = append(ed25519.PublicKey(nil), c.SigningKey...)
	cc.CrossSignature = append([]byte(nil), c.CrossSignature...)
	cc.CertSignature = append([]byte(nil), c.CertSignature...)
	return &cc
}
