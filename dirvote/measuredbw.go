package dirvote

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shalisap/thesis-tor"
)

// MeasuredBWLine is one parsed line of a bandwidth authority's measurement
// file: an identity digest and the bandwidth measured for it.
type MeasuredBWLine struct {
	NodeID tor.Digest
	BW     uint64
}

// ParseMeasuredBWLine parses one measurement line. A line must be
// newline-terminated and carry exactly one "node_id=$<40 hex>" token and
// one "bw=<decimal>" token; unknown tokens are ignored, duplicated or
// malformed ones are errors.
func ParseMeasuredBWLine(line string) (*MeasuredBWLine, error) {
	idx := strings.IndexByte(line, '\n')
	if idx < 0 {
		return nil, fmt.Errorf("incomplete measured bandwidth line %q", line)
	}
	var (
		out            MeasuredBWLine
		gotNode, gotBW bool
	)
	for _, tok := range strings.Fields(line[:idx]) {
		k, v, ok := strings.Cut(tok, "=")
		if !ok {
			continue
		}
		switch k {
		case "node_id":
			if gotNode {
				return nil, fmt.Errorf("duplicate node_id in measured bandwidth line")
			}
			if !strings.HasPrefix(v, "$") {
				return nil, fmt.Errorf("bad node_id %q in measured bandwidth line", v)
			}
			d, err := tor.DigestFromHex(v[1:])
			if err != nil {
				return nil, fmt.Errorf("bad node_id %q in measured bandwidth line", v)
			}
			out.NodeID = d
			gotNode = true
		case "bw":
			if gotBW {
				return nil, fmt.Errorf("duplicate bw in measured bandwidth line")
			}
			if !allDigits(v) {
				return nil, fmt.Errorf("bad bw %q in measured bandwidth line", v)
			}
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("bad bw %q in measured bandwidth line", v)
			}
			out.BW = n
			gotBW = true
		}
	}
	if !gotNode || !gotBW {
		return nil, fmt.Errorf("measured bandwidth line is missing node_id or bw")
	}
	return &out, nil
}

// ApplyMeasuredBW marks the routerstatus entries named by lines as measured
// and records the measured bandwidth on them. It returns the number of
// lines that matched an entry.
func ApplyMeasuredBW(routers []*tor.RouterStatus, lines []*MeasuredBWLine) int {
	byID := make(map[tor.Digest]*tor.RouterStatus, len(routers))
	for _, rs := range routers {
		byID[rs.Identity] = rs
	}
	applied := 0
	for _, line := range lines {
		rs, ok := byID[line.NodeID]
		if !ok {
			continue
		}
		rs.MeasuredBW = line.BW
		rs.HasMeasuredBW = true
		applied++
	}
	return applied
}

// MeasuredBWMap converts measurement lines into the per-identity override
// map consumed by MergeRouterstatuses.
func MeasuredBWMap(lines []*MeasuredBWLine) map[tor.Digest]uint64 {
	m := make(map[tor.Digest]uint64, len(lines))
	for _, line := range lines {
		m[line.NodeID] = line.BW
	}
	return m
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
