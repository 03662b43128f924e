package tor

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
)

// DocType discriminates votes from consensuses.
type DocType int

// Document types.
const (
	TypeVote DocType = iota + 1
	TypeConsensus
)

func (t DocType) String() string {
	switch t {
	case TypeVote:
		return "vote"
	case TypeConsensus:
		return "consensus"
	default:
		return fmt.Sprintf("DocType(%d)", int(t))
	}
}

// Signature state errors.
var (
	ErrNoSuchVoter          = errors.New("no voter with matching identity digest")
	ErrConflictingSignature = errors.New("a different signature is already attached for this key")
	ErrNotSigned            = errors.New("voter has no signature attached")
	ErrInvalidSignature     = errors.New("signature verification failed")
	ErrWrongCertificate     = errors.New("certificate does not match the voter's signing key digest")
	ErrDigestMismatch       = errors.New("detached signatures are bound to a different consensus digest")
)

// VoterInfo identifies one authority's slot in a vote or consensus,
// including any signature attached to it. A legacy-key placeholder slot is
// an ordinary VoterInfo whose identity digest is the authority's legacy key
// digest.
type VoterInfo struct {
	Nickname string
	Address  string
	Addr     uint32
	DirPort  uint16
	ORPort   uint16
	Contact  string

	Identity Digest

	// LegacyID cross-references the placeholder slot that holds this
	// authority's legacy-key signature, when one exists.
	HasLegacyID bool
	LegacyID    Digest

	// VoteDigest is the digest of the authority's vote; only set on
	// consensus voter entries.
	VoteDigest Digest

	SigningKeyDigest Digest
	Signature        []byte
	GoodSignature    bool
	BadSignature     bool
}

// Signed reports whether a signature is attached to the slot.
func (v *VoterInfo) Signed() bool {
	return len(v.Signature) > 0
}

// Clone returns a deep copy of the voter record.
func (v *VoterInfo) Clone() *VoterInfo {
	c := *v
	c.Signature = append([]byte(nil), v.Signature...)
	return &c
}

// DocumentSignature is one authority's signature over a consensus body, as
// carried in a detached signature set.
type DocumentSignature struct {
	Identity         Digest
	SigningKeyDigest Digest
	Signature        []byte
}

// DetachedSignatures binds a consensus body digest and validity window to a
// set of authority signatures, so that signatures can travel independently
// of the consensus text.
type DetachedSignatures struct {
	ConsensusDigest Digest
	ValidAfter      time.Time
	FreshUntil      time.Time
	ValidUntil      time.Time
	Signatures      []*DocumentSignature
}

// NetworkStatus is a vote or consensus document. All fields except the
// voters' signature state are fixed once the document has been built or
// parsed; signature attachment and validation are serialized internally.
type NetworkStatus struct {
	Type DocType

	// Published is only set on votes.
	Published  time.Time
	ValidAfter time.Time
	FreshUntil time.Time
	ValidUntil time.Time

	VoteSeconds int
	DistSeconds int

	// SupportedMethods lists the consensus methods a voting authority can
	// participate in; ConsensusMethod is the single agreed method of a
	// consensus.
	SupportedMethods []int
	ConsensusMethod  int

	ClientVersions string
	ServerVersions string

	// KnownFlags is the document's flag vocabulary, kept sorted. Flag
	// bitmask positions are derived from this ordering.
	KnownFlags []string

	NetParams map[string]int32

	Voters []*VoterInfo

	// Cert is the voting authority's certificate; present on votes only.
	Cert *AuthorityCert

	Routers []*RouterStatus

	// BodyDigest is the digest of the document text up to, and excluding,
	// the signature block. It is computed by the dirparse codec on both
	// format and parse.
	BodyDigest Digest

	mut sync.Mutex
}

// NetParam returns the value of a network parameter, or def if the document
// does not include it.
func (ns *NetworkStatus) NetParam(key string, def int32) int32 {
	if v, ok := ns.NetParams[key]; ok {
		return v
	}
	return def
}

// KnowsFlag reports whether name is part of the document's flag vocabulary.
func (ns *NetworkStatus) KnowsFlag(name string) bool {
	for _, f := range ns.KnownFlags {
		if f == name {
			return true
		}
	}
	return false
}

// RouterFlagBits returns the flag bitmask of rs under this document's
// vocabulary.
func (ns *NetworkStatus) RouterFlagBits(rs *RouterStatus) uint64 {
	return FlagBits(ns.KnownFlags, rs)
}

// VoterByIdentity returns the voter slot whose identity digest equals d. A
// voter's legacy identity digest is matched as an alternate identity, but
// only when no slot owns d as its primary identity, so that a legacy-key
// placeholder slot always wins over the cross-reference on the real voter.
func (ns *NetworkStatus) VoterByIdentity(d Digest) *VoterInfo {
	for _, v := range ns.Voters {
		if v.Identity == d {
			return v
		}
	}
	for _, v := range ns.Voters {
		if v.HasLegacyID && v.LegacyID == d {
			return v
		}
	}
	return nil
}

// AttachSignature attaches a signature to the voter slot matching the given
// identity digest. Attaching an identical signature again is a no-op;
// attaching a different signature to an already signed slot fails with
// ErrConflictingSignature.
func (ns *NetworkStatus) AttachSignature(identity, signingKeyDigest Digest, sig []byte) error {
	ns.mut.Lock()
	defer ns.mut.Unlock()
	return ns.attachSignature(identity, signingKeyDigest, sig)
}

func (ns *NetworkStatus) attachSignature(identity, signingKeyDigest Digest, sig []byte) error {
	voter := ns.VoterByIdentity(identity)
	if voter == nil {
		return fmt.Errorf("attach signature for %s: %w", identity, ErrNoSuchVoter)
	}
	if voter.Signed() {
		if voter.SigningKeyDigest == signingKeyDigest && bytes.Equal(voter.Signature, sig) {
			return nil
		}
		return fmt.Errorf("attach signature for %s: %w", identity, ErrConflictingSignature)
	}
	voter.SigningKeyDigest = signingKeyDigest
	voter.Signature = append([]byte(nil), sig...)
	voter.GoodSignature = false
	voter.BadSignature = false
	return nil
}

// AddDetachedSignatures merges a detached signature set into the consensus
// and returns the number of newly attached signatures. If the set is bound
// to a different consensus body digest, nothing is merged and the count is
// zero with ErrDigestMismatch. Signatures for unknown voters are skipped;
// conflicting signatures are reported but do not prevent the rest of the
// set from merging.
func (ns *NetworkStatus) AddDetachedSignatures(ds *DetachedSignatures) (added int, err error) {
	ns.mut.Lock()
	defer ns.mut.Unlock()

	if ds.ConsensusDigest != ns.BodyDigest {
		return 0, ErrDigestMismatch
	}
	for _, sig := range ds.Signatures {
		voter := ns.VoterByIdentity(sig.Identity)
		if voter == nil {
			continue
		}
		wasSigned := voter.Signed()
		if attachErr := ns.attachSignature(sig.Identity, sig.SigningKeyDigest, sig.Signature); attachErr != nil {
			err = multierr.Append(err, attachErr)
			continue
		}
		if !wasSigned {
			added++
		}
	}
	return added, err
}

// CheckVoterSignature verifies the signature attached to voter against the
// signing key in cert, transitioning the slot to good or bad signature
// state. An unsigned slot fails with ErrNotSigned; a certificate whose
// signing key digest differs from the one the signature was made with fails
// with ErrWrongCertificate and leaves the slot state unchanged.
func (ns *NetworkStatus) CheckVoterSignature(voter *VoterInfo, cert *AuthorityCert) error {
	ns.mut.Lock()
	defer ns.mut.Unlock()

	if !voter.Signed() {
		return ErrNotSigned
	}
	if cert == nil || cert.SigningKeyDigest != voter.SigningKeyDigest {
		return ErrWrongCertificate
	}
	if !ed25519.Verify(cert.SigningKey, ns.BodyDigest[:], voter.Signature) {
		voter.BadSignature = true
		return ErrInvalidSignature
	}
	voter.GoodSignature = true
	return nil
}

// DetachedSignatureSet extracts the consensus's attached signatures as a
// detached signature set bound to its body digest.
func (ns *NetworkStatus) DetachedSignatureSet() *DetachedSignatures {
	ns.mut.Lock()
	defer ns.mut.Unlock()

	ds := &DetachedSignatures{
		ConsensusDigest: ns.BodyDigest,
		ValidAfter:      ns.ValidAfter,
		FreshUntil:      ns.FreshUntil,
		ValidUntil:      ns.ValidUntil,
	}
	for _, voter := range ns.Voters {
		if !voter.Signed() {
			continue
		}
		ds.Signatures = append(ds.Signatures, &DocumentSignature{
			Identity:         voter.Identity,
			SigningKeyDigest: voter.SigningKeyDigest,
			Signature:        append([]byte(nil), voter.Signature...),
		})
	}
	return ds
}
