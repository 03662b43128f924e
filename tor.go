// Package tor defines the core value types of the v3 directory voting
// protocol: document digests, router status entries, vote and consensus
// documents, voter records, detached signature sets, and authority
// certificates. The types in this package are plain values with no I/O;
// serialization lives in the dirparse package and the voting algorithms in
// the dirvote package.
package tor

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// DigestLen is the length in bytes of a document, key, or descriptor digest.
const DigestLen = 20

// TimeLayout is the absolute time format used by all directory documents.
const TimeLayout = "2006-01-02 15:04:05"

// Digest is a 20-byte digest identifying a document, key, or descriptor.
type Digest [DigestLen]byte

// String returns the digest as an uppercase hex fingerprint.
func (d Digest) String() string {
	return strings.ToUpper(hex.EncodeToString(d[:]))
}

// Base64 returns the digest in the unpadded base64 form used on "r" lines.
func (d Digest) Base64() string {
	return base64.RawStdEncoding.EncodeToString(d[:])
}

// Compare compares two digests byte-wise as unsigned values.
func (d Digest) Compare(other Digest) int {
	return bytes.Compare(d[:], other[:])
}

// IsZero reports whether the digest is all zero bytes.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// DigestFromHex decodes a 40-character hex fingerprint.
func DigestFromHex(s string) (d Digest, err error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return d, fmt.Errorf("bad digest %q: %w", s, err)
	}
	if len(b) != DigestLen {
		return d, fmt.Errorf("bad digest %q: got %d bytes, want %d", s, len(b), DigestLen)
	}
	copy(d[:], b)
	return d, nil
}

// DigestFromBase64 decodes a digest in the unpadded base64 form.
func DigestFromBase64(s string) (d Digest, err error) {
	b, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return d, fmt.Errorf("bad digest %q: %w", s, err)
	}
	if len(b) != DigestLen {
		return d, fmt.Errorf("bad digest %q: got %d bytes, want %d", s, len(b), DigestLen)
	}
	copy(d[:], b)
	return d, nil
}

// HashBytes returns the protocol digest of b.
func HashBytes(b []byte) Digest {
	return Digest(sha1.Sum(b))
}

// KeyDigest returns the digest identifying a public key.
func KeyDigest(key ed25519.PublicKey) Digest {
	return HashBytes(key)
}

// FormatIPv4 renders a host-order IPv4 address in dotted quad form.
func FormatIPv4(addr uint32) string {
	return fmt.Sprintf("%d.%d.%d.%d", byte(addr>>24), byte(addr>>16), byte(addr>>8), byte(addr))
}

// ParseIPv4 parses a dotted quad into a host-order IPv4 address.
func ParseIPv4(s string) (uint32, error) {
	var a, b, c, d uint32
	if _, err := fmt.Sscanf(s, "%d.%d.%d.%d", &a, &b, &c, &d); err != nil {
		return 0, fmt.Errorf("bad IPv4 address %q", s)
	}
	if a > 255 || b > 255 || c > 255 || d > 255 {
		return 0, fmt.Errorf("bad IPv4 address %q", s)
	}
	return a<<24 | b<<16 | c<<8 | d, nil
}
