package crypto

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shalisap/thesis-tor"
)

func TestSignVerify(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() failed: %v", err)
	}
	digest := tor.HashBytes([]byte("a document"))
	sig := Sign(key, digest)
	if !Verify(PublicKey(key), digest, sig) {
		t.Error("Verify() rejected a valid signature")
	}
	other := tor.HashBytes([]byte("another document"))
	if Verify(PublicKey(key), other, sig) {
		t.Error("Verify() accepted a signature over a different digest")
	}
}

func TestGenerateAuthority(t *testing.T) {
	auth, err := GenerateAuthority(time.Now(), 48*time.Hour)
	if err != nil {
		t.Fatalf("GenerateAuthority() failed: %v", err)
	}
	if err := auth.Cert.Validate(); err != nil {
		t.Errorf("generated certificate does not validate: %v", err)
	}
	if auth.Cert.IdentityDigest != tor.KeyDigest(PublicKey(auth.IdentityKey)) {
		t.Error("certificate fingerprint does not match the identity key")
	}
}

func TestPrivateKeyFileRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "signing_key.pem")
	if err := WritePrivateKeyFile(key, path); err != nil {
		t.Fatalf("WritePrivateKeyFile() failed: %v", err)
	}
	got, err := ReadPrivateKeyFile(path)
	if err != nil {
		t.Fatalf("ReadPrivateKeyFile() failed: %v", err)
	}
	if diff := cmp.Diff(key, got); diff != "" {
		t.Errorf("key mismatch after round trip (-want +got):\n%s", diff)
	}
}

func TestPublicKeyFileRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "key.pub")
	if err := WritePublicKeyFile(PublicKey(key), path); err != nil {
		t.Fatalf("WritePublicKeyFile() failed: %v", err)
	}
	got, err := ReadPublicKeyFile(path)
	if err != nil {
		t.Fatalf("ReadPublicKeyFile() failed: %v", err)
	}
	if diff := cmp.Diff(PublicKey(key), got); diff != "" {
		t.Errorf("key mismatch after round trip (-want +got):\n%s", diff)
	}
}

func TestReadPrivateKeyFileErrors(t *testing.T) {
	if _, err := ReadPrivateKeyFile(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("ReadPrivateKeyFile() succeeded on a missing file")
	}
}
