package crypto

import (
	"crypto/ed25519"
	"encoding/pem"
	"fmt"
	"os"
)

// PEM block types for key files.
const (
	PrivateKeyFileType = "DIRECTORY PRIVATE KEY"
	PublicKeyFileType  = "DIRECTORY PUBLIC KEY"
)

// WritePrivateKeyFile writes a private key to filename in PEM form.
func WritePrivateKeyFile(key ed25519.PrivateKey, filename string) (err error) {
	f, err := os.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	block := &pem.Block{
		Type:  PrivateKeyFileType,
		Bytes: key.Seed(),
	}
	return pem.Encode(f, block)
}

// ReadPrivateKeyFile reads a PEM private key from filename.
func ReadPrivateKeyFile(filename string) (ed25519.PrivateKey, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(b)
	if block == nil {
		return nil, fmt.Errorf("%s: no PEM block found", filename)
	}
	if block.Type != PrivateKeyFileType {
		return nil, fmt.Errorf("%s: unexpected PEM block type %q", filename, block.Type)
	}
	if len(block.Bytes) != ed25519.SeedSize {
		return nil, fmt.Errorf("%s: bad key length %d", filename, len(block.Bytes))
	}
	return ed25519.NewKeyFromSeed(block.Bytes), nil
}

// WritePublicKeyFile writes a public key to filename in PEM form.
func WritePublicKeyFile(key ed25519.PublicKey, filename string) (err error) {
	f, err := os.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	block := &pem.Block{
		Type:  PublicKeyFileType,
		Bytes: key,
	}
	return pem.Encode(f, block)
}

// ReadPublicKeyFile reads a PEM public key from filename.
func ReadPublicKeyFile(filename string) (ed25519.PublicKey, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(b)
	if block == nil {
		return nil, fmt.Errorf("%s: no PEM block found", filename)
	}
	if block.Type != PublicKeyFileType {
		return nil, fmt.Errorf("%s: unexpected PEM block type %q", filename, block.Type)
	}
	if len(block.Bytes) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%s: bad key length %d", filename, len(block.Bytes))
	}
	return ed25519.PublicKey(block.Bytes), nil
}
