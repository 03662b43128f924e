// Package crypto provides the signing, verification, and key handling
// operations consumed by the directory voting core. Signatures are ed25519
// over the 20-byte document digest; the voting and codec layers treat both
// as opaque.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/shalisap/thesis-tor"
)

// Sign signs a document digest with the given signing key.
func Sign(key ed25519.PrivateKey, digest tor.Digest) []byte {
	return ed25519.Sign(key, digest[:])
}

// Verify reports whether sig is a valid signature over digest by the given
// public key.
func Verify(key ed25519.PublicKey, digest tor.Digest, sig []byte) bool {
	return ed25519.Verify(key, digest[:], sig)
}

// GenerateKey returns a new private key.
func GenerateKey() (ed25519.PrivateKey, error) {
	_, sk, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return sk, nil
}

// PublicKey returns the public half of a private key.
func PublicKey(key ed25519.PrivateKey) ed25519.PublicKey {
	return key.Public().(ed25519.PublicKey)
}

// Authority holds a directory authority's key material: the long-term
// identity key, the medium-term signing key, and the certificate binding
// them.
type Authority struct {
	IdentityKey ed25519.PrivateKey
	SigningKey  ed25519.PrivateKey
	Cert        *tor.AuthorityCert
}

// NewCert builds and signs a certificate binding signingKey to the
// authority identified by identityKey, valid from published for lifetime.
func NewCert(identityKey ed25519.PrivateKey, signingKey ed25519.PrivateKey, published time.Time, lifetime time.Duration) *tor.AuthorityCert {
	cert := &tor.AuthorityCert{
		IdentityKey: PublicKey(identityKey),
		SigningKey:  PublicKey(signingKey),
		Published:   published.UTC().Truncate(time.Second),
		Expires:     published.UTC().Add(lifetime).Truncate(time.Second),
	}
	cert.IdentityDigest = tor.KeyDigest(cert.IdentityKey)
	cert.SigningKeyDigest = tor.KeyDigest(cert.SigningKey)
	cert.CrossSignature = ed25519.Sign(signingKey, cert.IdentityDigest[:])
	cert.CertSignature = Sign(identityKey, cert.BodyDigest())
	return cert
}

// GenerateAuthority creates a fresh identity key, signing key, and
// certificate valid from now for the given lifetime.
func GenerateAuthority(now time.Time, lifetime time.Duration) (*Authority, error) {
	identityKey, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	signingKey, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	return &Authority{
		IdentityKey: identityKey,
		SigningKey:  signingKey,
		Cert:        NewCert(identityKey, signingKey, now, lifetime),
	}, nil
}
