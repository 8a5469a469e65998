package gossip

import (
	"log/slog"
	"net/netip"
	"testing"
	"time"
)

func newTestGossiper(selfAddr netip.Addr) *Gossiper {
	return &Gossiper{
		registry: NewRegistry(selfAddr),
		log:      slog.Default(),
		interval: HeartbeatInterval,
		fanout:   GossipFanout,
		inbound:  make(chan inboundDatagram, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// TestEpochMonotonicity: a peer's locally observed epoch never
// decreases, including across out-of-order / stale datagrams.
func TestEpochMonotonicity(t *testing.T) {
	self := netip.MustParseAddr("10.0.0.1")
	g := newTestGossiper(self)
	peerAddr := netip.MustParseAddr("10.0.0.2")
	now := time.Now()

	g.applyDatagram([]PeerStatus{{Addr: peerAddr, Epoch: 5, State: StateAlive}}, now)
	peer, ok := g.registry.Get(peerAddr)
	if !ok || peer.Epoch != 5 {
		t.Fatalf("expected peer epoch 5, got %#v", peer)
	}

	// Stale: lower epoch must be ignored.
	g.applyDatagram([]PeerStatus{{Addr: peerAddr, Epoch: 3, State: StateAlive}}, now.Add(time.Second))
	if peer.Epoch != 5 {
		t.Fatalf("epoch regressed: expected 5, got %d", peer.Epoch)
	}

	g.applyDatagram([]PeerStatus{{Addr: peerAddr, Epoch: 9, State: StateAlive}}, now.Add(2*time.Second))
	if peer.Epoch != 9 {
		t.Fatalf("expected epoch to advance to 9, got %d", peer.Epoch)
	}
}

func TestApplyDatagramInsertsUnknownPeerAsAlive(t *testing.T) {
	self := netip.MustParseAddr("10.0.0.1")
	g := newTestGossiper(self)
	peerAddr := netip.MustParseAddr("10.0.0.5")

	g.applyDatagram([]PeerStatus{{Addr: peerAddr, Epoch: 1, State: StateAlive}}, time.Now())

	peer, ok := g.registry.Get(peerAddr)
	if !ok {
		t.Fatalf("expected unknown peer to be inserted")
	}
	if !peer.IsAlive() {
		t.Fatalf("expected newly inserted peer to be alive")
	}
}

func TestApplyDatagramIgnoresSelf(t *testing.T) {
	self := netip.MustParseAddr("10.0.0.1")
	g := newTestGossiper(self)

	g.applyDatagram([]PeerStatus{{Addr: self, Epoch: 999, State: StateAlive}}, time.Now())

	if len(g.registry.All()) != 0 {
		t.Fatalf("expected self-referential entries to be ignored, got %d peers", len(g.registry.All()))
	}
}

func TestGenerationPropagatesIndependentlyOfEpoch(t *testing.T) {
	self := netip.MustParseAddr("10.0.0.1")
	g := newTestGossiper(self)
	peerAddr := netip.MustParseAddr("10.0.0.6")
	now := time.Now()

	g.applyDatagram([]PeerStatus{{Addr: peerAddr, Epoch: 4, GenConfig: 1, GenLists: 1, State: StateAlive}}, now)
	// Equal epoch, higher generations: still must propagate.
	g.applyDatagram([]PeerStatus{{Addr: peerAddr, Epoch: 4, GenConfig: 5, GenLists: 7, State: StateAlive}}, now)

	peer, _ := g.registry.Get(peerAddr)
	if peer.GenConfig != 5 || peer.GenLists != 7 {
		t.Fatalf("expected generations to propagate at equal epoch, got genConfig=%d genLists=%d", peer.GenConfig, peer.GenLists)
	}
}

func TestAntiEntropySubscriberNotified(t *testing.T) {
	self := netip.MustParseAddr("10.0.0.1")
	g := newTestGossiper(self)
	peerAddr := netip.MustParseAddr("10.0.0.8")
	now := time.Now()

	g.applyDatagram([]PeerStatus{{Addr: peerAddr, Epoch: 1, GenConfig: 1, State: StateAlive}}, now)

	var pulls int
	g.OnAntiEntropy(func(p *Peer) { pulls++ })

	g.applyDatagram([]PeerStatus{{Addr: peerAddr, Epoch: 1, GenConfig: 3, State: StateAlive}}, now)

	if pulls != 1 {
		t.Fatalf("expected one anti-entropy notification, got %d", pulls)
	}
	peer, _ := g.registry.Get(peerAddr)
	if !peer.NeedConfigPull || peer.NeedListsPull {
		t.Fatalf("expected only the config pull marker set, got config=%v lists=%v", peer.NeedConfigPull, peer.NeedListsPull)
	}
}

func TestLeftMarkerTransitionsPeer(t *testing.T) {
	self := netip.MustParseAddr("10.0.0.1")
	g := newTestGossiper(self)
	peerAddr := netip.MustParseAddr("10.0.0.9")
	now := time.Now()

	g.applyDatagram([]PeerStatus{{Addr: peerAddr, Epoch: 2, State: StateAlive}}, now)
	g.applyDatagram([]PeerStatus{{Addr: peerAddr, Epoch: 2, State: StateLeft}}, now.Add(time.Second))

	peer, _ := g.registry.Get(peerAddr)
	if !peer.IsLeft() {
		t.Fatalf("expected graceful-departure announcement to mark peer left, got %v", peer.State)
	}
}

func TestScanFailuresTransitionsAliveToOfflineAfterHardTimeout(t *testing.T) {
	self := netip.MustParseAddr("10.0.0.1")
	g := newTestGossiper(self)
	peerAddr := netip.MustParseAddr("10.0.0.7")
	base := time.Now()

	g.applyDatagram([]PeerStatus{{Addr: peerAddr, Epoch: 1, State: StateAlive}}, base)
	peer, _ := g.registry.Get(peerAddr)
	// Seed in a few heartbeats at ~1s apart so variance is small and a long
	// silence produces a decisive phi score.
	for i := 1; i <= 5; i++ {
		peer.recordHeartbeat(base.Add(time.Duration(i) * time.Second))
	}

	var offlineFired bool
	g.OnOffline(func(p *Peer) { offlineFired = true })

	g.scanFailures(base.Add(5*time.Second + HardTimeout + time.Second))

	if peer.State != StateOffline {
		t.Fatalf("expected peer to transition to offline after hard timeout, got %v", peer.State)
	}
	if !offlineFired {
		t.Fatalf("expected offline subscriber to be notified")
	}
}
