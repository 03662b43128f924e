package tor

import (
	"time"

	"golang.org/x/exp/slices"
)

// Flag names that every authority knows about. The known-flags vocabulary of
// a document may extend this set.
const (
	FlagAuthority = "Authority"
	FlagExit      = "Exit"
	FlagFast      = "Fast"
	FlagGuard     = "Guard"
	FlagNamed     = "Named"
	FlagRunning   = "Running"
	FlagStable    = "Stable"
	FlagV2Dir     = "V2Dir"
	FlagValid     = "Valid"
)

// RouterStatus is one relay's status entry within a vote or a consensus.
type RouterStatus struct {
	Nickname   string
	Identity   Digest
	Descriptor Digest
	Published  time.Time
	Addr       uint32
	ORPort     uint16
	DirPort    uint16

	// Flags holds the boolean attributes asserted for the relay. Only
	// names present in the enclosing document's known-flags vocabulary
	// are meaningful.
	Flags map[string]bool

	// Version is the relay's self-reported software version ("v" line),
	// empty if not reported.
	Version string

	Bandwidth     uint64
	MeasuredBW    uint64
	HasMeasuredBW bool
}

// HasFlag reports whether the given flag is asserted for the relay.
func (rs *RouterStatus) HasFlag(name string) bool {
	return rs.Flags[name]
}

// SetFlag asserts the given flag for the relay.
func (rs *RouterStatus) SetFlag(name string) {
	if rs.Flags == nil {
		rs.Flags = make(map[string]bool)
	}
	rs.Flags[name] = true
}

// FlagNames returns the asserted flags in lexicographic order.
func (rs *RouterStatus) FlagNames() []string {
	names := make([]string, 0, len(rs.Flags))
	for name, set := range rs.Flags {
		if set {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// Clone returns a deep copy of the router status.
func (rs *RouterStatus) Clone() *RouterStatus {
	c := *rs
	c.Flags = make(map[string]bool, len(rs.Flags))
	for name, set := range rs.Flags {
		c.Flags[name] = set
	}
	return &c
}

// FlagBits returns the relay's flag set as a bitmask over the sorted
// known-flags vocabulary, assigning bit positions by sorted index. The
// mapping is only valid for the document the vocabulary came from, since
// vocabularies differ between documents.
func FlagBits(knownFlags []string, rs *RouterStatus) uint64 {
	var bits uint64
	for i, name := range knownFlags {
		if i >= 64 {
			break
		}
		if rs.Flags[name] {
			bits |= 1 << uint(i)
		}
	}
	return bits
}
