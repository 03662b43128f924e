package dirparse

import (
	"crypto/ed25519"
	"strconv"
	"strings"
	"time"

	"github.com/shalisap/thesis-tor"
	"github.com/shalisap/thesis-tor/crypto"
)

// docSignature is a signature block collected during parsing, attached to
// the document after the body digest is known.
type docSignature struct {
	identity   tor.Digest
	signingKey tor.Digest
	sig        []byte
	line       int
}

// Parse decodes a vote or consensus document. The document must be of the
// expected type. The body digest is computed over the text up to the first
// signature block and cached on the result. Votes must carry exactly one
// signature, which is verified against the embedded certificate; consensus
// signatures are attached unverified so that they can be checked later
// against a certificate store.
func Parse(text string, expected tor.DocType) (*tor.NetworkStatus, error) {
	items, err := scanItems(text)
	if err != nil {
		return nil, err
	}

	ns := &tor.NetworkStatus{Type: expected}
	var (
		curVoter  *tor.VoterInfo
		curRouter *tor.RouterStatus
		cp        certParser
		sigs      []docSignature
		seen      = make(map[string]bool)
	)

	for i := range items {
		it := &items[i]
		seen[it.keyword] = true
		switch it.keyword {
		case "network-status-version":
			if err := needArgs(it, 1); err != nil {
				return nil, err
			}
			if it.args[0] != "3" {
				return nil, parseErr(it.line, it.keyword, "unsupported version %q", it.args[0])
			}

		case "vote-status":
			if err := needArgs(it, 1); err != nil {
				return nil, err
			}
			if it.args[0] != expected.String() {
				return nil, parseErr(it.line, it.keyword, "got %q, expected %q", it.args[0], expected.String())
			}

		case "consensus-methods":
			if expected != tor.TypeVote {
				return nil, parseErr(it.line, it.keyword, "only allowed in votes")
			}
			for _, arg := range it.args {
				m, err := strconv.Atoi(arg)
				if err != nil {
					return nil, parseErr(it.line, it.keyword, "bad method %q", arg)
				}
				ns.SupportedMethods = append(ns.SupportedMethods, m)
			}

		case "consensus-method":
			if expected != tor.TypeConsensus {
				return nil, parseErr(it.line, it.keyword, "only allowed in consensuses")
			}
			if err := needArgs(it, 1); err != nil {
				return nil, err
			}
			m, err := strconv.Atoi(it.args[0])
			if err != nil {
				return nil, parseErr(it.line, it.keyword, "bad method %q", it.args[0])
			}
			ns.ConsensusMethod = m

		case "published":
			if expected != tor.TypeVote {
				return nil, parseErr(it.line, it.keyword, "only allowed in votes")
			}
			if ns.Published, err = parseItemTime(it, 0); err != nil {
				return nil, err
			}

		case "valid-after":
			if ns.ValidAfter, err = parseItemTime(it, 0); err != nil {
				return nil, err
			}
		case "fresh-until":
			if ns.FreshUntil, err = parseItemTime(it, 0); err != nil {
				return nil, err
			}
		case "valid-until":
			if ns.ValidUntil, err = parseItemTime(it, 0); err != nil {
				return nil, err
			}

		case "voting-delay":
			if err := needArgs(it, 2); err != nil {
				return nil, err
			}
			vote, err1 := strconv.Atoi(it.args[0])
			dist, err2 := strconv.Atoi(it.args[1])
			if err1 != nil || err2 != nil || vote < 0 || dist < 0 {
				return nil, parseErr(it.line, it.keyword, "bad delays %q %q", it.args[0], it.args[1])
			}
			ns.VoteSeconds, ns.DistSeconds = vote, dist

		case "client-versions":
			if err := needArgs(it, 1); err != nil {
				return nil, err
			}
			ns.ClientVersions = it.args[0]
		case "server-versions":
			if err := needArgs(it, 1); err != nil {
				return nil, err
			}
			ns.ServerVersions = it.args[0]

		case "known-flags":
			ns.KnownFlags = append([]string(nil), it.args...)

		case "params":
			ns.NetParams = make(map[string]int32, len(it.args))
			for _, arg := range it.args {
				k, v, ok := strings.Cut(arg, "=")
				if !ok || k == "" {
					return nil, parseErr(it.line, it.keyword, "malformed parameter %q", arg)
				}
				n, err := strconv.ParseInt(v, 10, 32)
				if err != nil {
					return nil, parseErr(it.line, it.keyword, "bad value for parameter %q", k)
				}
				ns.NetParams[k] = int32(n)
			}

		case "dir-source":
			if curRouter != nil {
				return nil, parseErr(it.line, it.keyword, "voter section after router status entries")
			}
			voter, err := parseVoter(it)
			if err != nil {
				return nil, err
			}
			curVoter = voter
			ns.Voters = append(ns.Voters, voter)

		case "contact":
			if curVoter == nil {
				return nil, parseErr(it.line, it.keyword, "no preceding dir-source")
			}
			curVoter.Contact = strings.Join(it.args, " ")

		case "legacy-dir-key":
			if curVoter == nil {
				return nil, parseErr(it.line, it.keyword, "no preceding dir-source")
			}
			if err := needArgs(it, 1); err != nil {
				return nil, err
			}
			d, err := tor.DigestFromHex(it.args[0])
			if err != nil {
				return nil, parseErr(it.line, it.keyword, "bad digest: %v", err)
			}
			curVoter.HasLegacyID = true
			curVoter.LegacyID = d

		case "vote-digest":
			if curVoter == nil {
				return nil, parseErr(it.line, it.keyword, "no preceding dir-source")
			}
			if err := needArgs(it, 1); err != nil {
				return nil, err
			}
			if curVoter.VoteDigest, err = tor.DigestFromHex(it.args[0]); err != nil {
				return nil, parseErr(it.line, it.keyword, "bad digest: %v", err)
			}

		case "dir-key-certificate-version", "fingerprint", "dir-key-published",
			"dir-key-expires", "dir-identity-key", "dir-signing-key",
			"dir-key-crosscert", "dir-key-certification":
			if expected != tor.TypeVote {
				return nil, parseErr(it.line, it.keyword, "certificates only appear in votes")
			}
			if err := cp.handle(it); err != nil {
				return nil, err
			}

		case "r":
			rs, err := parseRouterStatus(it)
			if err != nil {
				return nil, err
			}
			curRouter = rs
			ns.Routers = append(ns.Routers, rs)

		case "s":
			if curRouter == nil {
				return nil, parseErr(it.line, it.keyword, "no preceding router status entry")
			}
			for _, name := range it.args {
				curRouter.SetFlag(name)
			}

		case "v":
			if curRouter == nil {
				return nil, parseErr(it.line, it.keyword, "no preceding router status entry")
			}
			curRouter.Version = strings.Join(it.args, " ")

		case "w":
			if curRouter == nil {
				return nil, parseErr(it.line, it.keyword, "no preceding router status entry")
			}
			if err := parseBandwidth(it, curRouter); err != nil {
				return nil, err
			}

		case "directory-signature":
			sig, err := parseSignatureItem(it)
			if err != nil {
				return nil, err
			}
			sigs = append(sigs, sig)

		default:
			// Unknown keywords are ignored for forward compatibility.
		}
	}

	for _, kw := range requiredKeywords(expected) {
		if !seen[kw] {
			return nil, parseErr(0, kw, "missing required keyword")
		}
	}
	if len(ns.Voters) == 0 {
		return nil, parseErr(0, "dir-source", "document has no voter")
	}
	if expected == tor.TypeVote && len(ns.SupportedMethods) == 0 {
		ns.SupportedMethods = []int{1}
	}
	if expected == tor.TypeConsensus && ns.ConsensusMethod == 0 {
		ns.ConsensusMethod = 1
	}

	ns.BodyDigest = tor.HashBytes([]byte(bodyText(text)))

	for _, sig := range sigs {
		if err := ns.AttachSignature(sig.identity, sig.signingKey, sig.sig); err != nil {
			return nil, parseErr(sig.line, "directory-signature", "%v", err)
		}
	}

	if expected == tor.TypeVote {
		cert, err := cp.finish()
		if err != nil {
			return nil, err
		}
		ns.Cert = cert
		if err := verifyVoteSignature(ns, sigs); err != nil {
			return nil, err
		}
	}
	return ns, nil
}

// ParseVote decodes and verifies a vote document.
func ParseVote(text string) (*tor.NetworkStatus, error) {
	return Parse(text, tor.TypeVote)
}

// ParseConsensus decodes a consensus document without verifying its
// signatures.
func ParseConsensus(text string) (*tor.NetworkStatus, error) {
	return Parse(text, tor.TypeConsensus)
}

// ParseDetachedSignatures decodes a detached signature set.
func ParseDetachedSignatures(text string) (*tor.DetachedSignatures, error) {
	items, err := scanItems(text)
	if err != nil {
		return nil, err
	}
	ds := &tor.DetachedSignatures{}
	seen := make(map[string]bool)
	for i := range items {
		it := &items[i]
		seen[it.keyword] = true
		switch it.keyword {
		case "consensus-digest":
			if err := needArgs(it, 1); err != nil {
				return nil, err
			}
			if ds.ConsensusDigest, err = tor.DigestFromHex(it.args[0]); err != nil {
				return nil, parseErr(it.line, it.keyword, "bad digest: %v", err)
			}
		case "valid-after":
			if ds.ValidAfter, err = parseItemTime(it, 0); err != nil {
				return nil, err
			}
		case "fresh-until":
			if ds.FreshUntil, err = parseItemTime(it, 0); err != nil {
				return nil, err
			}
		case "valid-until":
			if ds.ValidUntil, err = parseItemTime(it, 0); err != nil {
				return nil, err
			}
		case "directory-signature":
			sig, err := parseSignatureItem(it)
			if err != nil {
				return nil, err
			}
			ds.Signatures = append(ds.Signatures, &tor.DocumentSignature{
				Identity:         sig.identity,
				SigningKeyDigest: sig.signingKey,
				Signature:        sig.sig,
			})
		}
	}
	for _, kw := range []string{"consensus-digest", "valid-after", "fresh-until", "valid-until"} {
		if !seen[kw] {
			return nil, parseErr(0, kw, "missing required keyword")
		}
	}
	return ds, nil
}

// ParseCert decodes a standalone authority certificate.
func ParseCert(text string) (*tor.AuthorityCert, error) {
	items, err := scanItems(text)
	if err != nil {
		return nil, err
	}
	var cp certParser
	for i := range items {
		if err := cp.handle(&items[i]); err != nil {
			return nil, err
		}
	}
	return cp.finish()
}

// bodyText returns the part of a document covered by its body digest:
// everything up to, and excluding, the first signature line.
func bodyText(text string) string {
	const sigKeyword = "directory-signature "
	if strings.HasPrefix(text, sigKeyword) {
		return ""
	}
	if idx := strings.Index(text, "\n"+sigKeyword); idx >= 0 {
		return text[:idx+1]
	}
	return text
}

func verifyVoteSignature(ns *tor.NetworkStatus, sigs []docSignature) error {
	if len(sigs) == 0 {
		return parseErr(0, "directory-signature", "vote is not signed")
	}
	if len(sigs) > 1 {
		return parseErr(sigs[1].line, "directory-signature", "vote has more than one signature")
	}
	sig := sigs[0]
	if sig.signingKey != ns.Cert.SigningKeyDigest {
		return parseErr(sig.line, "directory-signature", "signature was not made with the certificate's signing key")
	}
	if err := ns.Cert.Validate(); err != nil {
		return parseErr(sig.line, "directory-signature", "bad certificate: %v", err)
	}
	if !crypto.Verify(ns.Cert.SigningKey, ns.BodyDigest, sig.sig) {
		return parseErr(sig.line, "directory-signature", "signature verification failed")
	}
	voter := ns.VoterByIdentity(sig.identity)
	if voter != nil {
		voter.GoodSignature = true
	}
	return nil
}

func parseVoter(it *item) (*tor.VoterInfo, error) {
	if err := needArgs(it, 6); err != nil {
		return nil, err
	}
	identity, err := tor.DigestFromHex(it.args[1])
	if err != nil {
		return nil, parseErr(it.line, it.keyword, "bad identity digest: %v", err)
	}
	addr, err := tor.ParseIPv4(it.args[3])
	if err != nil {
		return nil, parseErr(it.line, it.keyword, "bad address: %v", err)
	}
	dirPort, err1 := parsePort(it.args[4])
	orPort, err2 := parsePort(it.args[5])
	if err1 != nil || err2 != nil {
		return nil, parseErr(it.line, it.keyword, "bad port in %q %q", it.args[4], it.args[5])
	}
	return &tor.VoterInfo{
		Nickname: it.args[0],
		Identity: identity,
		Address:  it.args[2],
		Addr:     addr,
		DirPort:  dirPort,
		ORPort:   orPort,
	}, nil
}

func parseRouterStatus(it *item) (*tor.RouterStatus, error) {
	if err := needArgs(it, 8); err != nil {
		return nil, err
	}
	identity, err := tor.DigestFromBase64(it.args[1])
	if err != nil {
		return nil, parseErr(it.line, it.keyword, "bad identity digest: %v", err)
	}
	descriptor, err := tor.DigestFromBase64(it.args[2])
	if err != nil {
		return nil, parseErr(it.line, it.keyword, "bad descriptor digest: %v", err)
	}
	published, err := parseItemTime(it, 3)
	if err != nil {
		return nil, err
	}
	addr, err := tor.ParseIPv4(it.args[5])
	if err != nil {
		return nil, parseErr(it.line, it.keyword, "bad address: %v", err)
	}
	orPort, err1 := parsePort(it.args[6])
	dirPort, err2 := parsePort(it.args[7])
	if err1 != nil || err2 != nil {
		return nil, parseErr(it.line, it.keyword, "bad port in %q %q", it.args[6], it.args[7])
	}
	return &tor.RouterStatus{
		Nickname:   it.args[0],
		Identity:   identity,
		Descriptor: descriptor,
		Published:  published,
		Addr:       addr,
		ORPort:     orPort,
		DirPort:    dirPort,
	}, nil
}

func parseBandwidth(it *item, rs *tor.RouterStatus) error {
	for _, arg := range it.args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok {
			continue
		}
		switch k {
		case "Bandwidth":
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return parseErr(it.line, it.keyword, "bad bandwidth %q", v)
			}
			rs.Bandwidth = n
		case "Measured":
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return parseErr(it.line, it.keyword, "bad measured bandwidth %q", v)
			}
			rs.MeasuredBW = n
			rs.HasMeasuredBW = true
		}
	}
	return nil
}

func parseSignatureItem(it *item) (docSignature, error) {
	if err := needArgs(it, 2); err != nil {
		return docSignature{}, err
	}
	identity, err := tor.DigestFromHex(it.args[0])
	if err != nil {
		return docSignature{}, parseErr(it.line, it.keyword, "bad identity digest: %v", err)
	}
	signingKey, err := tor.DigestFromHex(it.args[1])
	if err != nil {
		return docSignature{}, parseErr(it.line, it.keyword, "bad signing key digest: %v", err)
	}
	if it.obj == nil || it.obj.label != sigObjectLabel {
		return docSignature{}, parseErr(it.line, it.keyword, "missing signature object")
	}
	return docSignature{
		identity:   identity,
		signingKey: signingKey,
		sig:        it.obj.data,
		line:       it.line,
	}, nil
}

// certParser accumulates the keyword items of an embedded or standalone
// authority certificate.
type certParser struct {
	cert    *tor.AuthorityCert
	started bool
}

func (cp *certParser) handle(it *item) error {
	if it.keyword == "dir-key-certificate-version" {
		if cp.started {
			return parseErr(it.line, it.keyword, "multiple certificates in one document")
		}
		if err := needArgs(it, 1); err != nil {
			return err
		}
		if it.args[0] != "3" {
			return parseErr(it.line, it.keyword, "unsupported version %q", it.args[0])
		}
		cp.started = true
		cp.cert = &tor.AuthorityCert{}
		return nil
	}
	if !cp.started {
		return parseErr(it.line, it.keyword, "no preceding dir-key-certificate-version")
	}
	var err error
	switch it.keyword {
	case "fingerprint":
		if err := needArgs(it, 1); err != nil {
			return err
		}
		if cp.cert.IdentityDigest, err = tor.DigestFromHex(it.args[0]); err != nil {
			return parseErr(it.line, it.keyword, "bad digest: %v", err)
		}
	case "dir-key-published":
		if cp.cert.Published, err = parseItemTime(it, 0); err != nil {
			return err
		}
	case "dir-key-expires":
		if cp.cert.Expires, err = parseItemTime(it, 0); err != nil {
			return err
		}
	case "dir-identity-key":
		if cp.cert.IdentityKey, err = certKey(it); err != nil {
			return err
		}
	case "dir-signing-key":
		if cp.cert.SigningKey, err = certKey(it); err != nil {
			return err
		}
	case "dir-key-crosscert":
		if cp.cert.CrossSignature, err = certSig(it); err != nil {
			return err
		}
	case "dir-key-certification":
		if cp.cert.CertSignature, err = certSig(it); err != nil {
			return err
		}
	}
	return nil
}

func (cp *certParser) finish() (*tor.AuthorityCert, error) {
	if !cp.started {
		return nil, parseErr(0, "dir-key-certificate-version", "missing certificate")
	}
	c := cp.cert
	if c.IdentityKey == nil || c.SigningKey == nil ||
		len(c.CrossSignature) == 0 || len(c.CertSignature) == 0 {
		return nil, parseErr(0, "dir-key-certification", "incomplete certificate")
	}
	c.SigningKeyDigest = tor.KeyDigest(c.SigningKey)
	if got := tor.KeyDigest(c.IdentityKey); got != c.IdentityDigest {
		return nil, parseErr(0, "fingerprint", "fingerprint does not match the identity key")
	}
	return c, nil
}

func certKey(it *item) (ed25519.PublicKey, error) {
	if it.obj == nil || it.obj.label != keyObjectLabel {
		return nil, parseErr(it.line, it.keyword, "missing key object")
	}
	if len(it.obj.data) != ed25519.PublicKeySize {
		return nil, parseErr(it.line, it.keyword, "bad key length %d", len(it.obj.data))
	}
	return ed25519.PublicKey(it.obj.data), nil
}

func certSig(it *item) ([]byte, error) {
	if it.obj == nil || it.obj.label != sigObjectLabel {
		return nil, parseErr(it.line, it.keyword, "missing signature object")
	}
	return it.obj.data, nil
}

// requiredKeywords lists the keywords a document must carry. The
// consensus-method lines are not among them: an absent consensus-methods
// defaults to method 1, matching old documents.
func requiredKeywords(t tor.DocType) []string {
	common := []string{
		"network-status-version", "vote-status",
		"valid-after", "fresh-until", "valid-until",
		"voting-delay", "known-flags", "dir-source",
	}
	if t == tor.TypeVote {
		return append(common, "published")
	}
	return common
}

func parseItemTime(it *item, idx int) (time.Time, error) {
	if err := needArgs(it, idx+2); err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(tor.TimeLayout, it.args[idx]+" "+it.args[idx+1])
	if err != nil {
		return time.Time{}, parseErr(it.line, it.keyword, "bad timestamp: %v", err)
	}
	return t, nil
}

func parsePort(s string) (uint16, error) {
	n, err := strconv.ParseUint(s, 10, 16)
	return uint16(n), err
}

func needArgs(it *item, n int) error {
	if len(it.args) < n {
		return parseErr(it.line, it.keyword, "expected at least %d arguments, got %d", n, len(it.args))
	}
	return nil
}
