package gossip

import (
	"math"
	"time"
)

// Phi accrual parameters.
const (
	SuspectPhi        = 8.0
	OfflinePhi        = 12.0
	HeartbeatInterval = time.Second
	HardTimeout       = 30 * time.Second
)

// phi computes the Phi-Accrual suspicion score for a peer that has been
// silent for `elapsed`, given the incrementally maintained mean/stddev of
// its heartbeat inter-arrival window. When fewer than 3 samples exist, phi
// is reported as 0: too little history to make a decision.
func phi(elapsed time.Duration, mean, stddev float64, samples int) float64 {
	if samples < 3 {
		return 0
	}
	p := survival(float64(elapsed), mean, stddev)
	if p <= 0 {
		// Numerically indistinguishable from "will never arrive"; report a
		// very large but finite score rather than +Inf so callers can
		// still compare/sort phi values.
		return 300
	}
	return -math.Log10(p)
}

// survival returns P(X >= x) for X ~ Normal(mean, stddev), i.e. the upper
// tail probability that the next heartbeat still arrives at or after x
// nanoseconds of silence.
func survival(x, mean, stddev float64) float64 {
	z := (x - mean) / (stddev * math.Sqrt2)
	return 0.5 * math.Erfc(z)
}

// Phi returns the current suspicion score for this peer given the wall
// clock time `now`. Exported for observability/testing.
func (p *Peer) Phi(now time.Time) float64 {
	if p.LastHeartbeat.IsZero() {
		return 0
	}
	elapsed := now.Sub(p.LastHeartbeat)
	mean, stddev := p.meanStddev()
	return phi(elapsed, mean, stddev, p.sampleCount())
}
