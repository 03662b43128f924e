// Package dirparse implements the canonical line-oriented text codec for
// directory documents: votes, consensuses, detached signature sets, and
// authority certificates. Formatting and parsing are a strict inverse pair
// for well-formed documents; every field round-trips except the raw
// signature bytes, which are validated separately.
package dirparse

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shalisap/thesis-tor"
	"github.com/shalisap/thesis-tor/crypto"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Object labels used in directory documents.
const (
	sigObjectLabel = "SIGNATURE"
	keyObjectLabel = crypto.PublicKeyFileType
)

// Format serializes a vote or consensus document. Votes are signed with
// signingKey, which must match the vote's certificate. Consensuses carry
// whatever signatures are attached to their voter slots; signingKey is
// ignored for them.
func Format(ns *tor.NetworkStatus, signingKey ed25519.PrivateKey) (string, error) {
	switch ns.Type {
	case tor.TypeVote:
		return FormatVote(ns, signingKey)
	case tor.TypeConsensus:
		return FormatConsensus(ns)
	default:
		return "", fmt.Errorf("cannot format document of type %v", ns.Type)
	}
}

// FormatVote serializes and signs a vote. The vote's body digest is
// computed and cached on ns as a side effect.
func FormatVote(ns *tor.NetworkStatus, signingKey ed25519.PrivateKey) (string, error) {
	if ns.Type != tor.TypeVote {
		return "", fmt.Errorf("cannot format %v as a vote", ns.Type)
	}
	if ns.Cert == nil {
		return "", fmt.Errorf("vote has no certificate")
	}
	if len(ns.Voters) == 0 {
		return "", fmt.Errorf("vote has no voter")
	}
	skDigest := tor.KeyDigest(crypto.PublicKey(signingKey))
	if skDigest != ns.Cert.SigningKeyDigest {
		return "", fmt.Errorf("signing key does not match the vote's certificate")
	}
	var b strings.Builder
	writeBody(&b, ns)
	ns.BodyDigest = tor.HashBytes([]byte(b.String()))
	sig := crypto.Sign(signingKey, ns.BodyDigest)
	writeSignature(&b, ns.Voters[0].Identity, skDigest, sig)
	return b.String(), nil
}

// FormatConsensusBody serializes a consensus without its signature block
// and caches the body digest on ns. Signatures attached afterwards sign
// this digest.
func FormatConsensusBody(ns *tor.NetworkStatus) (string, error) {
	if ns.Type != tor.TypeConsensus {
		return "", fmt.Errorf("cannot format %v as a consensus", ns.Type)
	}
	var b strings.Builder
	writeBody(&b, ns)
	ns.BodyDigest = tor.HashBytes([]byte(b.String()))
	return b.String(), nil
}

// FormatConsensus serializes a consensus together with one signature block
// per signed voter slot.
func FormatConsensus(ns *tor.NetworkStatus) (string, error) {
	body, err := FormatConsensusBody(ns)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(body)
	for _, voter := range ns.Voters {
		if !voter.Signed() {
			continue
		}
		writeSignature(&b, voter.Identity, voter.SigningKeyDigest, voter.Signature)
	}
	return b.String(), nil
}

// FormatDetachedSignatures serializes a detached signature set.
func FormatDetachedSignatures(ds *tor.DetachedSignatures) string {
	var b strings.Builder
	fmt.Fprintf(&b, "consensus-digest %s\n", ds.ConsensusDigest)
	writeTime(&b, "valid-after", ds.ValidAfter)
	writeTime(&b, "fresh-until", ds.FreshUntil)
	writeTime(&b, "valid-until", ds.ValidUntil)
	for _, sig := range ds.Signatures {
		writeSignature(&b, sig.Identity, sig.SigningKeyDigest, sig.Signature)
	}
	return b.String()
}

// FormatCert serializes an authority certificate.
func FormatCert(c *tor.AuthorityCert) string {
	var b strings.Builder
	writeCert(&b, c)
	return b.String()
}

// FormatParams renders a parameter map as space-separated key=value pairs
// in ascending key order.
func FormatParams(params map[string]int32) string {
	keys := maps.Keys(params)
	slices.Sort(keys)
	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = fmt.Sprintf("%s=%d", k, params[k])
	}
	return strings.Join(pairs, " ")
}

func writeBody(b *strings.Builder, ns *tor.NetworkStatus) {
	fmt.Fprintf(b, "network-status-version 3\n")
	fmt.Fprintf(b, "vote-status %s\n", ns.Type)
	if ns.Type == tor.TypeVote {
		fmt.Fprintf(b, "consensus-methods %s\n", joinInts(ns.SupportedMethods))
		writeTime(b, "published", ns.Published)
	} else {
		fmt.Fprintf(b, "consensus-method %d\n", ns.ConsensusMethod)
	}
	writeTime(b, "valid-after", ns.ValidAfter)
	writeTime(b, "fresh-until", ns.FreshUntil)
	writeTime(b, "valid-until", ns.ValidUntil)
	fmt.Fprintf(b, "voting-delay %d %d\n", ns.VoteSeconds, ns.DistSeconds)
	if ns.ClientVersions != "" {
		fmt.Fprintf(b, "client-versions %s\n", ns.ClientVersions)
	}
	if ns.ServerVersions != "" {
		fmt.Fprintf(b, "server-versions %s\n", ns.ServerVersions)
	}
	fmt.Fprintf(b, "known-flags %s\n", strings.Join(ns.KnownFlags, " "))
	if len(ns.NetParams) > 0 {
		fmt.Fprintf(b, "params %s\n", FormatParams(ns.NetParams))
	}
	for _, voter := range ns.Voters {
		writeVoter(b, ns, voter)
	}
	for _, rs := range ns.Routers {
		writeRouterStatus(b, rs)
	}
}

func writeVoter(b *strings.Builder, ns *tor.NetworkStatus, voter *tor.VoterInfo) {
	fmt.Fprintf(b, "dir-source %s %s %s %s %d %d\n",
		voter.Nickname, voter.Identity, voter.Address, tor.FormatIPv4(voter.Addr),
		voter.DirPort, voter.ORPort)
	if voter.Contact != "" {
		fmt.Fprintf(b, "contact %s\n", voter.Contact)
	}
	if voter.HasLegacyID {
		fmt.Fprintf(b, "legacy-dir-key %s\n", voter.LegacyID)
	}
	if ns.Type == tor.TypeConsensus && !voter.VoteDigest.IsZero() {
		fmt.Fprintf(b, "vote-digest %s\n", voter.VoteDigest)
	}
	if ns.Type == tor.TypeVote {
		writeCert(b, ns.Cert)
	}
}

func writeCert(b *strings.Builder, c *tor.AuthorityCert) {
	fmt.Fprintf(b, "dir-key-certificate-version 3\n")
	fmt.Fprintf(b, "fingerprint %s\n", c.IdentityDigest)
	writeTime(b, "dir-key-published", c.Published)
	writeTime(b, "dir-key-expires", c.Expires)
	b.WriteString("dir-identity-key\n")
	writeObject(b, keyObjectLabel, c.IdentityKey)
	b.WriteString("dir-signing-key\n")
	writeObject(b, keyObjectLabel, c.SigningKey)
	b.WriteString("dir-key-crosscert\n")
	writeObject(b, sigObjectLabel, c.CrossSignature)
	b.WriteString("dir-key-certification\n")
	writeObject(b, sigObjectLabel, c.CertSignature)
}

func writeRouterStatus(b *strings.Builder, rs *tor.RouterStatus) {
	fmt.Fprintf(b, "r %s %s %s %s %s %d %d\n",
		rs.Nickname, rs.Identity.Base64(), rs.Descriptor.Base64(),
		rs.Published.UTC().Format(tor.TimeLayout), tor.FormatIPv4(rs.Addr),
		rs.ORPort, rs.DirPort)
	if names := rs.FlagNames(); len(names) > 0 {
		fmt.Fprintf(b, "s %s\n", strings.Join(names, " "))
	} else {
		b.WriteString("s\n")
	}
	if rs.Version != "" {
		fmt.Fprintf(b, "v %s\n", rs.Version)
	}
	if rs.Bandwidth > 0 || rs.HasMeasuredBW {
		fmt.Fprintf(b, "w Bandwidth=%d", rs.Bandwidth)
		if rs.HasMeasuredBW {
			fmt.Fprintf(b, " Measured=%d", rs.MeasuredBW)
		}
		b.WriteByte('\n')
	}
}

func writeSignature(b *strings.Builder, identity, signingKey tor.Digest, sig []byte) {
	fmt.Fprintf(b, "directory-signature %s %s\n", identity, signingKey)
	writeObject(b, sigObjectLabel, sig)
}

func writeTime(b *strings.Builder, keyword string, t time.Time) {
	fmt.Fprintf(b, "%s %s\n", keyword, t.UTC().Format(tor.TimeLayout))
}

func writeObject(b *strings.Builder, label string, data []byte) {
	fmt.Fprintf(b, "%s%s%s\n", beginPrefix, label, armorSuffix)
	encoded := base64.StdEncoding.EncodeToString(data)
	for len(encoded) > 64 {
		b.WriteString(encoded[:64])
		b.WriteByte('\n')
		encoded = encoded[64:]
	}
	b.WriteString(encoded)
	b.WriteByte('\n')
	fmt.Fprintf(b, "%s%s%s\n", endPrefix, label, armorSuffix)
}

func joinInts(vals []int) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, " ")
}
