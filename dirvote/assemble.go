package dirvote

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/shalisap/thesis-tor"
	"github.com/shalisap/thesis-tor/crypto"
	"github.com/shalisap/thesis-tor/dirparse"
	"github.com/shalisap/thesis-tor/logging"
	"github.com/shalisap/thesis-tor/routerlist"
	"golang.org/x/exp/slices"
)

var logger = logging.New("dirvote")

// Assembly errors.
var (
	ErrNoVotes        = errors.New("no votes to assemble a consensus from")
	ErrNoCommonMethod = errors.New("no consensus method is supported by all votes")
)

// Clock supplies the current time to the assembler.
type Clock func() time.Time

// Assembler builds a consensus document from a set of parsed votes.
type Assembler struct {
	// Clock supplies the current time; nil means time.Now.
	Clock Clock

	// Measured, when set, overrides the bandwidth of matching consensus
	// entries by identity digest.
	Measured map[tor.Digest]uint64

	// Descriptors, when set, is consulted after the merge to report chosen
	// descriptor digests that are not locally cached. It never affects the
	// merge result.
	Descriptors *routerlist.Store
}

func (a *Assembler) now() time.Time {
	if a.Clock != nil {
		return a.Clock()
	}
	return time.Now()
}

// CommonConsensusMethod returns the highest consensus method supported by
// every vote.
func CommonConsensusMethod(votes []*tor.NetworkStatus) (int, error) {
	if len(votes) == 0 {
		return 0, ErrNoVotes
	}
	support := make(map[int]int)
	for _, vote := range votes {
		seen := make(map[int]struct{})
		for _, m := range vote.SupportedMethods {
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			support[m]++
		}
	}
	best := 0
	for m, c := range support {
		if c == len(votes) && m > best {
			best = m
		}
	}
	if best == 0 {
		return 0, ErrNoCommonMethod
	}
	return best, nil
}

// Assemble computes, formats, and signs a consensus from the given votes.
// The signature is attached to the voter slot matching identity; when a
// legacy identity digest and signing key are supplied, a second signature
// is attached to the legacy placeholder slot.
func (a *Assembler) Assemble(votes []*tor.NetworkStatus, identity tor.Digest, signingKey ed25519.PrivateKey, legacyID *tor.Digest, legacySigningKey ed25519.PrivateKey) (string, error) {
	if len(votes) == 0 {
		return "", ErrNoVotes
	}
	for _, vote := range votes {
		if vote.Type != tor.TypeVote {
			return "", fmt.Errorf("cannot assemble a consensus from a %v document", vote.Type)
		}
		if len(vote.Voters) == 0 {
			return "", fmt.Errorf("vote has no voter")
		}
	}
	method, err := CommonConsensusMethod(votes)
	if err != nil {
		return "", err
	}

	now := a.now()
	for _, vote := range votes {
		if vote.ValidUntil.Before(now) {
			logger.Warnf("vote from %s expired at %v", vote.Voters[0].Nickname, vote.ValidUntil)
		}
	}

	ns := &tor.NetworkStatus{
		Type:            tor.TypeConsensus,
		ConsensusMethod: method,
		ValidAfter:      maxTime(votes, func(v *tor.NetworkStatus) time.Time { return v.ValidAfter }),
		FreshUntil:      medianTime(votes, func(v *tor.NetworkStatus) time.Time { return v.FreshUntil }),
		ValidUntil:      minTime(votes, func(v *tor.NetworkStatus) time.Time { return v.ValidUntil }),
		VoteSeconds:     minInt(votes, func(v *tor.NetworkStatus) int { return v.VoteSeconds }),
		DistSeconds:     medianInt(votes, func(v *tor.NetworkStatus) int { return v.DistSeconds }),
		ClientVersions:  ConsensusVersions(ClientVersionLists(votes)),
		ServerVersions:  ConsensusVersions(ServerVersionLists(votes)),
		KnownFlags:      ConsensusKnownFlags(votes),
		NetParams:       ComputeParams(votes),
		Voters:          consensusVoters(votes),
		Routers:         MergeRouterstatuses(votes, a.Measured),
	}

	if a.Descriptors != nil {
		for _, rs := range ns.Routers {
			if !a.Descriptors.Contains(rs.Identity, rs.Descriptor) {
				logger.Debugf("no cached descriptor %s for %s", rs.Descriptor, rs.Nickname)
			}
		}
	}

	// Computes and caches the body digest the signatures cover.
	if _, err := dirparse.FormatConsensusBody(ns); err != nil {
		return "", err
	}
	skDigest := tor.KeyDigest(crypto.PublicKey(signingKey))
	if err := ns.AttachSignature(identity, skDigest, crypto.Sign(signingKey, ns.BodyDigest)); err != nil {
		return "", fmt.Errorf("sign consensus: %w", err)
	}
	if legacyID != nil && legacySigningKey != nil {
		legacySKDigest := tor.KeyDigest(crypto.PublicKey(legacySigningKey))
		if err := ns.AttachSignature(*legacyID, legacySKDigest, crypto.Sign(legacySigningKey, ns.BodyDigest)); err != nil {
			return "", fmt.Errorf("sign consensus with legacy key: %w", err)
		}
	}

	logger.Infof("assembled consensus: method %d, %d voters, %d routers",
		method, len(ns.Voters), len(ns.Routers))
	return dirparse.FormatConsensus(ns)
}

// consensusVoters builds the consensus voter list from the votes' voter
// records: one slot per voting authority carrying its vote digest, plus a
// legacy placeholder slot for each authority that reported a legacy key.
// The list is sorted by ascending identity digest.
func consensusVoters(votes []*tor.NetworkStatus) []*tor.VoterInfo {
	var voters []*tor.VoterInfo
	for _, vote := range votes {
		src := vote.Voters[0]
		voters = append(voters, &tor.VoterInfo{
			Nickname:    src.Nickname,
			Address:     src.Address,
			Addr:        src.Addr,
			DirPort:     src.DirPort,
			ORPort:      src.ORPort,
			Contact:     src.Contact,
			Identity:    src.Identity,
			HasLegacyID: src.HasLegacyID,
			LegacyID:    src.LegacyID,
			VoteDigest:  vote.BodyDigest,
		})
		if src.HasLegacyID {
			voters = append(voters, &tor.VoterInfo{
				Nickname: src.Nickname + "-legacy",
				Address:  src.Address,
				Addr:     src.Addr,
				DirPort:  src.DirPort,
				ORPort:   src.ORPort,
				Identity: src.LegacyID,
			})
		}
	}
	slices.SortFunc(voters, func(a, b *tor.VoterInfo) bool {
		return a.Identity.Compare(b.Identity) < 0
	})
	return voters
}

func maxTime(votes []*tor.NetworkStatus, get func(*tor.NetworkStatus) time.Time) time.Time {
	out := get(votes[0])
	for _, vote := range votes[1:] {
		if t := get(vote); t.After(out) {
			out = t
		}
	}
	return out
}

func minTime(votes []*tor.NetworkStatus, get func(*tor.NetworkStatus) time.Time) time.Time {
	out := get(votes[0])
	for _, vote := range votes[1:] {
		if t := get(vote); t.Before(out) {
			out = t
		}
	}
	return out
}

func medianTime(votes []*tor.NetworkStatus, get func(*tor.NetworkStatus) time.Time) time.Time {
	times := make([]time.Time, len(votes))
	for i, vote := range votes {
		times[i] = get(vote)
	}
	slices.SortFunc(times, func(a, b time.Time) bool { return a.Before(b) })
	return times[(len(times)-1)/2]
}

func minInt(votes []*tor.NetworkStatus, get func(*tor.NetworkStatus) int) int {
	out := get(votes[0])
	for _, vote := range votes[1:] {
		if v := get(vote); v < out {
			out = v
		}
	}
	return out
}

func medianInt(votes []*tor.NetworkStatus, get func(*tor.NetworkStatus) int) int {
	vals := make([]int, len(votes))
	for i, vote := range votes {
		vals[i] = get(vote)
	}
	slices.Sort(vals)
	return vals[(len(vals)-1)/2]
}
