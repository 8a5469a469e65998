// Package gossip implements the UDP-based cluster membership service: a
// Phi-Accrual style failure detector over a rolling per-peer heartbeat
// window, with epoch and generation counters driving anti-entropy of
// config and address-list state between nodes.
package gossip

import (
	"math"
	"net/netip"
	"time"
)

// HeartbeatWindow is the number of inter-arrival samples kept per peer.
const HeartbeatWindow = 64

// State is a peer's position in the membership state machine.
type State uint8

const (
	StateSeed State = iota
	StateAlive
	StateSuspected
	StateOffline
	StateLeft
)

func (s State) String() string {
	switch s {
	case StateSeed:
		return "seed"
	case StateAlive:
		return "alive"
	case StateSuspected:
		return "suspected"
	case StateOffline:
		return "offline"
	case StateLeft:
		return "left"
	default:
		return "unknown"
	}
}

// PeerStatus is the wire-only projection of a Peer exchanged in gossip
// payloads.
type PeerStatus struct {
	Addr      netip.Addr
	Epoch     uint64
	GenConfig uint64
	GenLists  uint64
	State     State
}

// Peer is the full in-memory record for one cluster member, including the
// rolling heartbeat window used for Phi-Accrual failure detection.
type Peer struct {
	Addr          netip.Addr
	Epoch         uint64
	GenConfig     uint64
	GenLists      uint64
	State         State
	LastHeartbeat time.Time

	// Anti-entropy pull markers, set when a received status carries a
	// higher generation than locally tracked; cleared by whoever performs
	// the pull.
	NeedConfigPull bool
	NeedListsPull  bool

	hbWindow [HeartbeatWindow]int64 // nanosecond inter-arrival samples
	hbPos    int
	hbFull   bool
	hbSum    float64
	hbSqSum  float64
}

// NewSeedPeer constructs a statically configured bootstrap peer: state
// Seed, epoch zero, an empty heartbeat window.
func NewSeedPeer(addr netip.Addr) *Peer {
	return &Peer{
		Addr:  addr,
		State: StateSeed,
	}
}

// NewAlivePeer constructs a peer first reified from a received PeerStatus
// entry: state Alive, current wall-instant as last heartbeat, and a fresh
// (empty) heartbeat window, since a freshly-seen peer has no local arrival
// history yet.
func NewAlivePeer(status PeerStatus, now time.Time) *Peer {
	return &Peer{
		Addr:          status.Addr,
		Epoch:         status.Epoch,
		GenConfig:     status.GenConfig,
		GenLists:      status.GenLists,
		State:         StateAlive,
		LastHeartbeat: now,
	}
}

// State predicates.
func (p *Peer) IsSeed() bool      { return p.State == StateSeed }
func (p *Peer) IsAlive() bool     { return p.State == StateAlive }
func (p *Peer) IsSuspected() bool { return p.State == StateSuspected }
func (p *Peer) IsOffline() bool   { return p.State == StateOffline }
func (p *Peer) IsLeft() bool      { return p.State == StateLeft }

// IsHealthy reports whether the peer is Alive or Suspected.
func (p *Peer) IsHealthy() bool {
	return p.State == StateAlive || p.State == StateSuspected
}

// recordHeartbeat appends one inter-arrival sample into the rolling window,
// maintaining hbSum and hbSqSum incrementally so mean/variance stay O(1).
// When the window is full, the oldest sample is first subtracted out before
// the new one is added.
func (p *Peer) recordHeartbeat(now time.Time) {
	if !p.LastHeartbeat.IsZero() {
		interval := now.Sub(p.LastHeartbeat).Nanoseconds()
		if p.hbFull {
			old := p.hbWindow[p.hbPos]
			p.hbSum -= float64(old)
			p.hbSqSum -= float64(old) * float64(old)
		}
		p.hbWindow[p.hbPos] = interval
		p.hbSum += float64(interval)
		p.hbSqSum += float64(interval) * float64(interval)
		p.hbPos++
		if p.hbPos == HeartbeatWindow {
			p.hbPos = 0
			p.hbFull = true
		}
	}
	p.LastHeartbeat = now
}

// sampleCount returns how many valid samples are currently in the window.
func (p *Peer) sampleCount() int {
	if p.hbFull {
		return HeartbeatWindow
	}
	return p.hbPos
}

// meanStddev returns the incrementally-maintained mean and standard
// deviation of the heartbeat window, flooring stddev to a small minimum to
// avoid a divide-by-near-zero explosion before the window has accumulated
// enough variance.
func (p *Peer) meanStddev() (mean, stddev float64) {
	n := float64(p.sampleCount())
	if n == 0 {
		return 0, 0
	}
	mean = p.hbSum / n
	variance := p.hbSqSum/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	stddev = math.Sqrt(variance)
	const minStddev = float64(time.Millisecond) * 10
	if stddev < minStddev {
		stddev = minStddev
	}
	return mean, stddev
}

// buildStatus materializes the wire-only projection of this peer.
func (p *Peer) buildStatus() PeerStatus {
	return PeerStatus{
		Addr:      p.Addr,
		Epoch:     p.Epoch,
		GenConfig: p.GenConfig,
		GenLists:  p.GenLists,
		State:     p.State,
	}
}
