// Package testutil provides helper methods that are useful for implementing tests.
package testutil

import (
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/shalisap/thesis-tor"
	"github.com/shalisap/thesis-tor/crypto"
	"github.com/shalisap/thesis-tor/dirparse"
)

// FillDigest returns a digest with every byte set to b.
func FillDigest(b byte) tor.Digest {
	var d tor.Digest
	for i := range d {
		d[i] = b
	}
	return d
}

// HexDigest parses a fingerprint, failing the test on error.
func HexDigest(t *testing.T, s string) tor.Digest {
	t.Helper()
	d, err := tor.DigestFromHex(s)
	if err != nil {
		t.Fatalf("Failed to parse digest: %v", err)
	}
	return d
}

// NewAuthority generates an authority whose certificate is valid around now.
func NewAuthority(t *testing.T, now time.Time) *crypto.Authority {
	t.Helper()
	auth, err := crypto.GenerateAuthority(now.Add(-time.Hour), 48*time.Hour)
	if err != nil {
		t.Fatalf("Failed to generate authority: %v", err)
	}
	return auth
}

// NewVote returns a vote skeleton for the given authority with a sane
// validity window around now. Tests adjust the fields they care about.
func NewVote(t *testing.T, auth *crypto.Authority, nickname string, now time.Time) *tor.NetworkStatus {
	t.Helper()
	addr, err := tor.ParseIPv4("2.3.4.5")
	if err != nil {
		t.Fatalf("Failed to parse address: %v", err)
	}
	return &tor.NetworkStatus{
		Type:             tor.TypeVote,
		Published:        now.UTC().Truncate(time.Second),
		ValidAfter:       now.UTC().Truncate(time.Second).Add(1000 * time.Second),
		FreshUntil:       now.UTC().Truncate(time.Second).Add(2000 * time.Second),
		ValidUntil:       now.UTC().Truncate(time.Second).Add(3000 * time.Second),
		VoteSeconds:      100,
		DistSeconds:      200,
		SupportedMethods: []int{1, 2},
		ClientVersions:   "0.1.2.14",
		ServerVersions:   "0.1.2.14",
		KnownFlags: []string{
			tor.FlagAuthority, tor.FlagExit, tor.FlagFast, tor.FlagGuard,
			tor.FlagRunning, tor.FlagStable, tor.FlagV2Dir, tor.FlagValid,
		},
		Voters: []*tor.VoterInfo{{
			Nickname: nickname,
			Address:  "example.com",
			Addr:     addr,
			DirPort:  80,
			ORPort:   9000,
			Contact:  "voter@example.com",
			Identity: auth.Cert.IdentityDigest,
		}},
		Cert: auth.Cert,
	}
}

// Router returns a routerstatus entry whose identity and descriptor digests
// are filled with the given bytes.
func Router(nickname string, id, desc byte, published time.Time, flags ...string) *tor.RouterStatus {
	rs := &tor.RouterStatus{
		Nickname:   nickname,
		Identity:   FillDigest(id),
		Descriptor: FillDigest(desc),
		Published:  published.UTC().Truncate(time.Second),
		Addr:       uint32(id)<<24 | 0x020305,
		ORPort:     443,
		DirPort:    8000,
	}
	for _, f := range flags {
		rs.SetFlag(f)
	}
	return rs
}

// RoundTripVote formats and re-parses a vote, failing the test on error.
func RoundTripVote(t *testing.T, vote *tor.NetworkStatus, signingKey ed25519.PrivateKey) *tor.NetworkStatus {
	t.Helper()
	text, err := dirparse.FormatVote(vote, signingKey)
	if err != nil {
		t.Fatalf("Failed to format vote: %v", err)
	}
	parsed, err := dirparse.ParseVote(text)
	if err != nil {
		t.Fatalf("Failed to parse vote: %v", err)
	}
	return parsed
}

// ParseConsensus parses a consensus document, failing the test on error.
func ParseConsensus(t *testing.T, text string) *tor.NetworkStatus {
	t.Helper()
	con, err := dirparse.ParseConsensus(text)
	if err != nil {
		t.Fatalf("Failed to parse consensus: %v", err)
	}
	return con
}
