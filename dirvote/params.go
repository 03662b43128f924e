// Package dirvote implements the consensus computation of the v3 directory
// voting protocol: merging routerstatus lists, agreeing on network
// parameters, flag vocabularies and version lists, collecting signatures,
// and assembling a full consensus document from a set of votes.
package dirvote

import (
	"strings"

	"github.com/shalisap/thesis-tor"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// ComputeParams computes the consensus network parameters. Each parameter's
// consensus value is the lower median of the values from the votes that
// include that parameter; votes that omit a key do not dilute its median.
func ComputeParams(votes []*tor.NetworkStatus) map[string]int32 {
	byKey := make(map[string][]int32)
	for _, vote := range votes {
		for k, v := range vote.NetParams {
			byKey[k] = append(byKey[k], v)
		}
	}
	out := make(map[string]int32, len(byKey))
	for k, vals := range byKey {
		slices.Sort(vals)
		out[k] = vals[(len(vals)-1)/2]
	}
	return out
}

// ConsensusKnownFlags returns the sorted union of the votes' flag
// vocabularies.
func ConsensusKnownFlags(votes []*tor.NetworkStatus) []string {
	set := make(map[string]struct{})
	for _, vote := range votes {
		for _, f := range vote.KnownFlags {
			set[f] = struct{}{}
		}
	}
	flags := maps.Keys(set)
	slices.Sort(flags)
	return flags
}

// ConsensusVersions computes a consensus version list from per-vote
// comma-separated lists. Votes with an empty list abstain; a version is
// included when at least ⌊n/2⌋+1 of the n non-abstaining votes list it.
// The result is ordered by version ordinal.
func ConsensusVersions(lists []string) string {
	counts := make(map[string]int)
	n := 0
	for _, list := range lists {
		if list == "" {
			continue
		}
		n++
		seen := make(map[string]struct{})
		for _, v := range strings.Split(list, ",") {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			counts[v]++
		}
	}
	threshold := n/2 + 1
	var keep []string
	for v, c := range counts {
		if c >= threshold {
			keep = append(keep, v)
		}
	}
	slices.SortFunc(keep, func(a, b string) bool {
		return tor.CompareVersionStrings(a, b) < 0
	})
	return strings.Join(keep, ",")
}

// ClientVersionLists extracts the client-versions field of each vote.
func ClientVersionLists(votes []*tor.NetworkStatus) []string {
	lists := make([]string, len(votes))
	for i, vote := range votes {
		lists[i] = vote.ClientVersions
	}
	return lists
}

// ServerVersionLists extracts the server-versions field of each vote.
func ServerVersionLists(votes []*tor.NetworkStatus) []string {
	lists := make([]string, len(votes))
	for i, vote := range votes {
		lists[i] = vote.ServerVersions
	}
	return lists
}
