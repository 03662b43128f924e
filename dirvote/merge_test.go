package dirvote_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shalisap/thesis-tor"
	"github.com/shalisap/thesis-tor/dirvote"
	"github.com/shalisap/thesis-tor/internal/testutil"
)

var mergeBase = time.Date(2021, 8, 26, 12, 0, 0, 0, time.UTC)

func mergeVote(voterID byte, routers ...*tor.RouterStatus) *tor.NetworkStatus {
	return &tor.NetworkStatus{
		Type: tor.TypeVote,
		KnownFlags: []string{
			tor.FlagExit, tor.FlagFast, tor.FlagGuard, tor.FlagRunning, tor.FlagValid,
		},
		Voters:  []*tor.VoterInfo{{Nickname: "voter", Identity: testutil.FillDigest(voterID)}},
		Routers: routers,
	}
}

func mergeScenario() []*tor.NetworkStatus {
	vote1 := mergeVote(0x10,
		testutil.Router("one-a", 1, 101, mergeBase, tor.FlagRunning, tor.FlagExit, tor.FlagFast),
		testutil.Router("three", 3, 103, mergeBase, tor.FlagRunning, tor.FlagFast),
		testutil.Router("lonely", 33, 133, mergeBase, tor.FlagRunning),
	)
	vote2 := mergeVote(0x20,
		testutil.Router("one-b", 1, 101, mergeBase.Add(time.Hour), tor.FlagRunning, tor.FlagExit),
		testutil.Router("three", 3, 103, mergeBase, tor.FlagRunning),
	)
	vote3 := mergeVote(0x30,
		testutil.Router("one-c", 1, 111, mergeBase.Add(2*time.Hour), tor.FlagRunning, tor.FlagExit, tor.FlagGuard),
	)
	return []*tor.NetworkStatus{vote1, vote2, vote3}
}

func TestMergeRouterstatuses(t *testing.T) {
	merged := dirvote.MergeRouterstatuses(mergeScenario(), nil)
	if len(merged) != 2 {
		t.Fatalf("merged %d entries, want 2", len(merged))
	}

	one, three := merged[0], merged[1]
	if one.Identity != testutil.FillDigest(1) || three.Identity != testutil.FillDigest(3) {
		t.Fatal("entries are not sorted by ascending identity digest")
	}

	// Descriptor 101 is listed twice, 111 once. The representative entry is
	// the latest published one carrying 101, which is vote2's.
	if one.Descriptor != testutil.FillDigest(101) {
		t.Errorf("descriptor = %s, want the most frequent digest", one.Descriptor)
	}
	if one.Nickname != "one-b" {
		t.Errorf("nickname = %q, want the latest published entry's nickname %q", one.Nickname, "one-b")
	}
	if !one.HasFlag(tor.FlagRunning) || !one.HasFlag(tor.FlagExit) {
		t.Error("a flag asserted by every listing vote is missing")
	}
	if one.HasFlag(tor.FlagFast) || one.HasFlag(tor.FlagGuard) {
		t.Error("a flag asserted by a minority of listing votes was set")
	}

	// Fast is asserted by one of three's two listing votes: no majority.
	if three.HasFlag(tor.FlagFast) {
		t.Error("Fast was set without a strict majority of the listing votes")
	}
	if !three.HasFlag(tor.FlagRunning) {
		t.Error("an included entry does not carry Running")
	}
}

func TestMergeExcludesMinorityRunning(t *testing.T) {
	merged := dirvote.MergeRouterstatuses(mergeScenario(), nil)
	for _, rs := range merged {
		if rs.Identity == testutil.FillDigest(33) {
			t.Fatal("an identity with Running from one of three votes was included")
		}
	}
}

func TestMergeOrderInvariance(t *testing.T) {
	votes := mergeScenario()
	want := dirvote.MergeRouterstatuses(votes, nil)
	permuted := []*tor.NetworkStatus{votes[2], votes[0], votes[1]}
	got := dirvote.MergeRouterstatuses(permuted, nil)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("merge result depends on vote order (-want +got):\n%s", diff)
	}
}

func TestMergeDescriptorTieBreak(t *testing.T) {
	vote1 := mergeVote(0x10,
		testutil.Router("router", 1, 150, mergeBase, tor.FlagRunning),
	)
	vote2 := mergeVote(0x20,
		testutil.Router("router", 1, 120, mergeBase, tor.FlagRunning),
	)
	merged := dirvote.MergeRouterstatuses([]*tor.NetworkStatus{vote1, vote2}, nil)
	if len(merged) != 1 {
		t.Fatalf("merged %d entries, want 1", len(merged))
	}
	// Both descriptors occur once; the lexicographically lowest wins.
	if merged[0].Descriptor != testutil.FillDigest(120) {
		t.Errorf("descriptor = %s, want the lowest digest", merged[0].Descriptor)
	}
}

func TestMergeMeasuredOverride(t *testing.T) {
	votes := mergeScenario()
	measured := map[tor.Digest]uint64{testutil.FillDigest(3): 777}
	merged := dirvote.MergeRouterstatuses(votes, measured)
	for _, rs := range merged {
		switch rs.Identity {
		case testutil.FillDigest(3):
			if !rs.HasMeasuredBW || rs.Bandwidth != 777 || rs.MeasuredBW != 777 {
				t.Errorf("override not applied: bandwidth=%d measured=%d", rs.Bandwidth, rs.MeasuredBW)
			}
		default:
			if rs.HasMeasuredBW {
				t.Errorf("entry %s marked measured without an override", rs.Identity)
			}
		}
	}
}
