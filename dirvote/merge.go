package dirvote

import (
	"github.com/shalisap/thesis-tor"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// MergeRouterstatuses merges the routerstatus lists of the given votes into
// a consensus list, sorted by ascending identity digest.
//
// An identity is included only if the votes asserting Running for it form a
// strict majority of the votes that carry Running in their flag vocabulary;
// included entries always carry Running. Every other flag is set when a
// strict majority of the votes listing the identity asserts it.
//
// The entry's descriptor digest is the most frequent one among the listing
// votes, ties broken toward the lexicographically lowest digest. Nickname,
// address, ports, publication time, version, and bandwidth come from the
// listing entry that carries the chosen digest with the latest publication
// time; remaining ties resolve by voter identity order, which makes the
// merge independent of the order votes arrive in.
//
// A measured-bandwidth override, keyed by identity digest, replaces the
// bandwidth of exactly the matching entries and marks them as measured.
func MergeRouterstatuses(votes []*tor.NetworkStatus, measured map[tor.Digest]uint64) []*tor.RouterStatus {
	sorted := sortVotesByVoter(votes)

	runningVoters := 0
	for _, vote := range sorted {
		if vote.KnowsFlag(tor.FlagRunning) {
			runningVoters++
		}
	}

	byID := make(map[tor.Digest][]*tor.RouterStatus)
	for _, vote := range sorted {
		for _, rs := range vote.Routers {
			byID[rs.Identity] = append(byID[rs.Identity], rs)
		}
	}

	ids := maps.Keys(byID)
	slices.SortFunc(ids, func(a, b tor.Digest) bool {
		return a.Compare(b) < 0
	})

	var merged []*tor.RouterStatus
	for _, id := range ids {
		listing := byID[id]
		running := 0
		for _, rs := range listing {
			if rs.HasFlag(tor.FlagRunning) {
				running++
			}
		}
		if running*2 <= runningVoters {
			continue
		}

		chosen := chooseDescriptor(listing)
		var rep *tor.RouterStatus
		for _, rs := range listing {
			if rs.Descriptor != chosen {
				continue
			}
			if rep == nil || rs.Published.After(rep.Published) {
				rep = rs
			}
		}

		out := &tor.RouterStatus{
			Nickname:   rep.Nickname,
			Identity:   id,
			Descriptor: chosen,
			Published:  rep.Published,
			Addr:       rep.Addr,
			ORPort:     rep.ORPort,
			DirPort:    rep.DirPort,
			Version:    rep.Version,
			Bandwidth:  rep.Bandwidth,
		}
		counts := make(map[string]int)
		for _, rs := range listing {
			for name, set := range rs.Flags {
				if set {
					counts[name]++
				}
			}
		}
		for name, c := range counts {
			if name == tor.FlagRunning {
				continue
			}
			if c*2 > len(listing) {
				out.SetFlag(name)
			}
		}
		out.SetFlag(tor.FlagRunning)

		if bw, ok := measured[id]; ok {
			out.Bandwidth = bw
			out.MeasuredBW = bw
			out.HasMeasuredBW = true
		}
		merged = append(merged, out)
	}
	return merged
}

// chooseDescriptor returns the most frequent descriptor digest among the
// listing entries, breaking ties toward the lowest digest.
func chooseDescriptor(listing []*tor.RouterStatus) tor.Digest {
	counts := make(map[tor.Digest]int)
	for _, rs := range listing {
		counts[rs.Descriptor]++
	}
	var (
		chosen tor.Digest
		best   int
	)
	for d, c := range counts {
		if c > best || (c == best && d.Compare(chosen) < 0) {
			chosen, best = d, c
		}
	}
	return chosen
}

// sortVotesByVoter returns the votes ordered by their voter's identity
// digest. Merge tie-breaks iterate votes in this order.
func sortVotesByVoter(votes []*tor.NetworkStatus) []*tor.NetworkStatus {
	sorted := make([]*tor.NetworkStatus, len(votes))
	copy(sorted, votes)
	slices.SortFunc(sorted, func(a, b *tor.NetworkStatus) bool {
		return a.Voters[0].Identity.Compare(b.Voters[0].Identity) < 0
	})
	return sorted
}
