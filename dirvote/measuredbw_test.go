package dirvote_test

import (
	"testing"
	"time"

	"github.com/shalisap/thesis-tor"
	"github.com/shalisap/thesis-tor/dirvote"
	"github.com/shalisap/thesis-tor/internal/testutil"
)

const nodeID = "$557365204145532d32353620696e73746561642e"

func TestParseMeasuredBWLine(t *testing.T) {
	accept := []string{
		"node_id=" + nodeID + " bw=1024\n",
		"bw=1024 node_id=" + nodeID + "\n",
		"node_id=" + nodeID + " foo=bar bw=1024 junk\n",
		"node_id=" + nodeID + " bw=0\n",
	}
	for _, line := range accept {
		t.Run("Accept/"+line, func(t *testing.T) {
			got, err := dirvote.ParseMeasuredBWLine(line)
			if err != nil {
				t.Fatalf("ParseMeasuredBWLine(%q) failed: %v", line, err)
			}
			want, _ := tor.DigestFromHex(nodeID[1:])
			if got.NodeID != want {
				t.Errorf("NodeID = %s, want %s", got.NodeID, want)
			}
		})
	}

	reject := []string{
		"node_id=" + nodeID + " bw=1024",            // no newline
		"node_id=" + nodeID + " bw=1024k\n",         // non-digit bandwidth
		"node_id=" + nodeID + " bw=-1024\n",         // negative bandwidth
		"node_id=" + nodeID + " bw=\n",              // empty bandwidth
		"node_id=" + nodeID[1:] + " bw=1024\n",      // missing $
		"node_id=$55736520 bw=1024\n",               // short digest
		"node_id=" + nodeID + "ff bw=1024\n",        // long digest
		"node_id=" + nodeID + "\n",                  // no bw
		"bw=1024\n",                                 // no node_id
		"node_id=" + nodeID + " bw=1 bw=2\n",        // duplicate bw
		"node_id=" + nodeID + " node_id=" + nodeID + " bw=1\n", // duplicate node_id
	}
	for _, line := range reject {
		t.Run("Reject/"+line, func(t *testing.T) {
			if _, err := dirvote.ParseMeasuredBWLine(line); err == nil {
				t.Errorf("ParseMeasuredBWLine(%q) succeeded, want error", line)
			}
		})
	}
}

func TestApplyMeasuredBW(t *testing.T) {
	now := time.Date(2021, 8, 26, 12, 0, 0, 0, time.UTC)
	routers := []*tor.RouterStatus{
		testutil.Router("router1", 1, 101, now, tor.FlagRunning),
		testutil.Router("router2", 2, 102, now, tor.FlagRunning),
	}
	lines := []*dirvote.MeasuredBWLine{
		{NodeID: testutil.FillDigest(2), BW: 1024},
		{NodeID: testutil.FillDigest(9), BW: 55},
	}
	if applied := dirvote.ApplyMeasuredBW(routers, lines); applied != 1 {
		t.Errorf("ApplyMeasuredBW() = %d, want 1", applied)
	}
	if routers[0].HasMeasuredBW {
		t.Error("an unmeasured entry was marked measured")
	}
	if !routers[1].HasMeasuredBW || routers[1].MeasuredBW != 1024 {
		t.Errorf("measurement not applied: measured=%v bw=%d", routers[1].HasMeasuredBW, routers[1].MeasuredBW)
	}
}

func TestMeasuredBWMap(t *testing.T) {
	lines := []*dirvote.MeasuredBWLine{
		{NodeID: testutil.FillDigest(1), BW: 10},
		{NodeID: testutil.FillDigest(2), BW: 20},
	}
	m := dirvote.MeasuredBWMap(lines)
	if len(m) != 2 || m[testutil.FillDigest(1)] != 10 || m[testutil.FillDigest(2)] != 20 {
		t.Errorf("MeasuredBWMap() = %v", m)
	}
}
