package tor_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shalisap/thesis-tor"
	"github.com/shalisap/thesis-tor/crypto"
)

func fillDigest(b byte) (d tor.Digest) {
	for i := range d {
		d[i] = b
	}
	return d
}

func newTestConsensus() *tor.NetworkStatus {
	return &tor.NetworkStatus{
		Type: tor.TypeConsensus,
		Voters: []*tor.VoterInfo{
			{Nickname: "moria", Identity: fillDigest(1)},
			{Nickname: "tonga", Identity: fillDigest(2), HasLegacyID: true, LegacyID: fillDigest(3)},
			{Nickname: "tonga-legacy", Identity: fillDigest(3)},
		},
		BodyDigest: tor.HashBytes([]byte("consensus body")),
	}
}

func TestVoterByIdentity(t *testing.T) {
	ns := newTestConsensus()
	if got := ns.VoterByIdentity(fillDigest(1)); got == nil || got.Nickname != "moria" {
		t.Errorf("VoterByIdentity(1) = %v, want moria", got)
	}
	// The placeholder slot owns the legacy digest even though the real
	// voter cross-references it.
	if got := ns.VoterByIdentity(fillDigest(3)); got == nil || got.Nickname != "tonga-legacy" {
		t.Errorf("VoterByIdentity(3) = %v, want tonga-legacy", got)
	}
	if got := ns.VoterByIdentity(fillDigest(9)); got != nil {
		t.Errorf("VoterByIdentity(9) = %v, want nil", got)
	}
}

func TestAttachSignature(t *testing.T) {
	ns := newTestConsensus()
	sig := []byte("signature bytes")

	if err := ns.AttachSignature(fillDigest(1), fillDigest(11), sig); err != nil {
		t.Fatalf("AttachSignature() failed: %v", err)
	}
	if err := ns.AttachSignature(fillDigest(1), fillDigest(11), sig); err != nil {
		t.Errorf("re-attaching the same signature failed: %v", err)
	}
	if err := ns.AttachSignature(fillDigest(1), fillDigest(11), []byte("other")); !errors.Is(err, tor.ErrConflictingSignature) {
		t.Errorf("AttachSignature() = %v, want %v", err, tor.ErrConflictingSignature)
	}
	if err := ns.AttachSignature(fillDigest(9), fillDigest(11), sig); !errors.Is(err, tor.ErrNoSuchVoter) {
		t.Errorf("AttachSignature() = %v, want %v", err, tor.ErrNoSuchVoter)
	}
}

func TestAddDetachedSignatures(t *testing.T) {
	signed := newTestConsensus()
	if err := signed.AttachSignature(fillDigest(1), fillDigest(11), []byte("sig1")); err != nil {
		t.Fatalf("AttachSignature() failed: %v", err)
	}
	if err := signed.AttachSignature(fillDigest(2), fillDigest(12), []byte("sig2")); err != nil {
		t.Fatalf("AttachSignature() failed: %v", err)
	}
	ds := signed.DetachedSignatureSet()
	if len(ds.Signatures) != 2 {
		t.Fatalf("DetachedSignatureSet() has %d signatures, want 2", len(ds.Signatures))
	}

	other := newTestConsensus()
	added, err := other.AddDetachedSignatures(ds)
	if err != nil {
		t.Fatalf("AddDetachedSignatures() failed: %v", err)
	}
	if added != 2 {
		t.Errorf("AddDetachedSignatures() added %d, want 2", added)
	}

	// Merging the same set again adds nothing.
	added, err = other.AddDetachedSignatures(ds)
	if err != nil {
		t.Fatalf("AddDetachedSignatures() failed: %v", err)
	}
	if added != 0 {
		t.Errorf("AddDetachedSignatures() added %d on re-merge, want 0", added)
	}
}

func TestAddDetachedSignaturesDigestMismatch(t *testing.T) {
	signed := newTestConsensus()
	if err := signed.AttachSignature(fillDigest(1), fillDigest(11), []byte("sig1")); err != nil {
		t.Fatalf("AttachSignature() failed: %v", err)
	}
	ds := signed.DetachedSignatureSet()
	ds.ConsensusDigest = fillDigest(42)

	other := newTestConsensus()
	added, err := other.AddDetachedSignatures(ds)
	if !errors.Is(err, tor.ErrDigestMismatch) {
		t.Errorf("AddDetachedSignatures() = %v, want %v", err, tor.ErrDigestMismatch)
	}
	if added != 0 {
		t.Errorf("AddDetachedSignatures() added %d, want 0", added)
	}
	if other.Voters[0].Signed() {
		t.Error("a signature was attached despite the digest mismatch")
	}
}

func TestCheckVoterSignature(t *testing.T) {
	auth, err := crypto.GenerateAuthority(time.Now(), 48*time.Hour)
	if err != nil {
		t.Fatalf("Failed to generate authority: %v", err)
	}
	ns := newTestConsensus()
	ns.Voters[0].Identity = auth.Cert.IdentityDigest

	voter := ns.Voters[0]
	if err := ns.CheckVoterSignature(voter, auth.Cert); !errors.Is(err, tor.ErrNotSigned) {
		t.Errorf("CheckVoterSignature() = %v, want %v", err, tor.ErrNotSigned)
	}

	sig := crypto.Sign(auth.SigningKey, ns.BodyDigest)
	if err := ns.AttachSignature(voter.Identity, auth.Cert.SigningKeyDigest, sig); err != nil {
		t.Fatalf("AttachSignature() failed: %v", err)
	}

	if err := ns.CheckVoterSignature(voter, nil); !errors.Is(err, tor.ErrWrongCertificate) {
		t.Errorf("CheckVoterSignature() = %v, want %v", err, tor.ErrWrongCertificate)
	}
	if voter.GoodSignature || voter.BadSignature {
		t.Error("a failed certificate match changed the signature state")
	}

	if err := ns.CheckVoterSignature(voter, auth.Cert); err != nil {
		t.Errorf("CheckVoterSignature() failed: %v", err)
	}
	if !voter.GoodSignature {
		t.Error("GoodSignature not set after a successful check")
	}
}

func TestCheckVoterSignatureBad(t *testing.T) {
	auth, err := crypto.GenerateAuthority(time.Now(), 48*time.Hour)
	if err != nil {
		t.Fatalf("Failed to generate authority: %v", err)
	}
	ns := newTestConsensus()
	voter := ns.Voters[0]

	wrongDigest := tor.HashBytes([]byte("some other document"))
	sig := crypto.Sign(auth.SigningKey, wrongDigest)
	if err := ns.AttachSignature(voter.Identity, auth.Cert.SigningKeyDigest, sig); err != nil {
		t.Fatalf("AttachSignature() failed: %v", err)
	}
	if err := ns.CheckVoterSignature(voter, auth.Cert); !errors.Is(err, tor.ErrInvalidSignature) {
		t.Errorf("CheckVoterSignature() = %v, want %v", err, tor.ErrInvalidSignature)
	}
	if !voter.BadSignature {
		t.Error("BadSignature not set after a failed check")
	}
}

func TestNetParam(t *testing.T) {
	ns := &tor.NetworkStatus{NetParams: map[string]int32{"circwindow": 80}}
	if got := ns.NetParam("circwindow", 1000); got != 80 {
		t.Errorf("NetParam(circwindow) = %d, want 80", got)
	}
	if got := ns.NetParam("missing", 1000); got != 1000 {
		t.Errorf("NetParam(missing) = %d, want the default", got)
	}
}
