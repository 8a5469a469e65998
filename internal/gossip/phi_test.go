package gossip

import (
	"net/netip"
	"testing"
	"time"
)

func TestPhiZeroBeforeThreeSamples(t *testing.T) {
	addr := netip.MustParseAddr("10.0.1.1")
	p := NewSeedPeer(addr)
	base := time.Now()
	p.recordHeartbeat(base)
	p.recordHeartbeat(base.Add(time.Second))

	if got := p.Phi(base.Add(10 * time.Second)); got != 0 {
		t.Fatalf("expected phi 0 with fewer than 3 samples, got %v", got)
	}
}

func TestPhiRisesWithSilence(t *testing.T) {
	addr := netip.MustParseAddr("10.0.1.2")
	p := NewSeedPeer(addr)
	base := time.Now()
	for i := 0; i < 10; i++ {
		p.recordHeartbeat(base.Add(time.Duration(i) * time.Second))
	}
	last := base.Add(9 * time.Second)

	shortSilence := p.Phi(last.Add(1 * time.Second))
	longSilence := p.Phi(last.Add(30 * time.Second))

	if longSilence <= shortSilence {
		t.Fatalf("expected phi to increase with elapsed silence: short=%v long=%v", shortSilence, longSilence)
	}
}

func TestPhiMonotonicInElapsed(t *testing.T) {
	mean, stddev := 1e9, 2e8 // 1s mean interval, 200ms stddev
	var prev float64
	for _, elapsedSec := range []float64{1, 2, 5, 10, 20} {
		got := phi(time.Duration(elapsedSec*1e9), mean, stddev, 10)
		if got < prev {
			t.Fatalf("phi should be non-decreasing in elapsed time: at %vs got %v after prior %v", elapsedSec, got, prev)
		}
		prev = got
	}
}
