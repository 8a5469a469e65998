package gossip

import (
	"context"
	"log/slog"
	"math/rand"
	"net"
	"net/netip"
	"sync"
	"time"
)

// GossipFanout is the number of peers contacted on each heartbeat emit.
const GossipFanout = 3

// inboundDatagram is a decoded UDP payload queued for the owning goroutine
// to apply against the registry. All registry updates are serialized onto
// the owning goroutine so none can be lost to a race.
type inboundDatagram struct {
	statuses []PeerStatus
}

// Gossiper owns a Registry and drives the three periodic activities of
// cluster membership: heartbeat emit, heartbeat receive, and failure
// scan, all serialized onto one goroutine. The UDP read loop runs on its
// own goroutine (I/O is inherently concurrent with the timer) but only
// ever hands decoded datagrams to the owning goroutine via a channel; it
// never mutates the registry itself.
type Gossiper struct {
	registry *Registry
	conn     *net.UDPConn
	log      *slog.Logger

	interval time.Duration
	fanout   int

	inbound chan inboundDatagram
	stop    chan struct{}
	done    chan struct{}

	mu            sync.Mutex
	onOffline     []func(*Peer)
	onAntiEntropy []func(*Peer)
	decodeDrops   int
}

// NewGossiper constructs a Gossiper over an already-bound UDP socket.
func NewGossiper(registry *Registry, conn *net.UDPConn, log *slog.Logger) *Gossiper {
	if log == nil {
		log = slog.Default()
	}
	return &Gossiper{
		registry: registry,
		conn:     conn,
		log:      log,
		interval: HeartbeatInterval,
		fanout:   GossipFanout,
		inbound:  make(chan inboundDatagram, 64),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// OnOffline registers a subscriber notified whenever a peer transitions to
// Offline, so callers (cmd/coremaild logs the transition and writes the
// peer ledger here) need not poll the registry.
func (g *Gossiper) OnOffline(fn func(*Peer)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onOffline = append(g.onOffline, fn)
}

// OnAntiEntropy registers a subscriber notified whenever a received status
// carries a higher gen_config or gen_lists than locally tracked for that
// peer, meaning a config or address-list pull is due.
func (g *Gossiper) OnAntiEntropy(fn func(*Peer)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onAntiEntropy = append(g.onAntiEntropy, fn)
}

// Run starts the UDP receive loop and the timer loop, blocking until ctx is
// cancelled or Stop is called. This is the single task that owns all
// mutation of the Peer registry.
func (g *Gossiper) Run(ctx context.Context) {
	defer close(g.done)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		g.receiveLoop(ctx)
	}()

	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case <-g.stop:
			wg.Wait()
			return
		case dg := <-g.inbound:
			g.applyDatagram(dg.statuses, time.Now())
		case <-ticker.C:
			g.emitHeartbeat()
			g.scanFailures(time.Now())
		}
	}
}

// Stop requests shutdown and blocks until Run has returned. Grounded on the
// matrix client's stopCh-based clean-shutdown pattern.
func (g *Gossiper) Stop() {
	select {
	case <-g.stop:
	default:
		close(g.stop)
	}
	<-g.done
}

// receiveLoop reads UDP datagrams and decodes them off the owning
// goroutine, forwarding successfully decoded payloads. Decode failures are
// local: the datagram is dropped and a counter incremented, never
// propagated. A read error other than a deadline timeout is logged and the
// read is resumed after an exponential backoff (10ms doubling up to 1s),
// which resets after the next successful read.
func (g *Gossiper) receiveLoop(ctx context.Context) {
	buf := make([]byte, MaxDatagramBytes+64)
	var backoff time.Duration
	for {
		select {
		case <-ctx.Done():
			return
		case <-g.stop:
			return
		default:
		}

		_ = g.conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		n, _, err := g.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case <-ctx.Done():
				return
			case <-g.stop:
				return
			default:
			}
			backoff = min(max(2*backoff, 10*time.Millisecond), time.Second)
			g.log.Warn("gossip: udp read error", "error", err, "backoff", backoff)
			select {
			case <-ctx.Done():
				return
			case <-g.stop:
				return
			case <-time.After(backoff):
			}
			continue
		}
		backoff = 0

		statuses, err := DecodeStatus(buf[:n])
		if err != nil {
			g.mu.Lock()
			g.decodeDrops++
			g.mu.Unlock()
			g.log.Debug("gossip: dropped malformed datagram", "error", err)
			continue
		}

		select {
		case g.inbound <- inboundDatagram{statuses: statuses}:
		case <-ctx.Done():
			return
		case <-g.stop:
			return
		}
	}
}

// emitHeartbeat increments the local epoch and sends build_status() to a
// fanout of preferred peers.
func (g *Gossiper) emitHeartbeat() {
	self := g.registry.Self()
	g.registry.mu.Lock()
	self.Epoch++
	g.registry.mu.Unlock()

	targets := g.pickFanoutTargets()
	payload := EncodeStatus(g.registry.BuildStatus())

	for _, addr := range targets {
		udpAddr := net.UDPAddrFromAddrPort(netip.AddrPortFrom(addr, gossipPort(g.conn)))
		if _, err := g.conn.WriteToUDP(payload, udpAddr); err != nil {
			g.log.Debug("gossip: heartbeat send failed", "peer", addr, "error", err)
		}
	}
}

func gossipPort(conn *net.UDPConn) uint16 {
	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return uint16(addr.Port)
	}
	return 0
}

// pickFanoutTargets selects up to g.fanout peer addresses, preferring
// Alive, then Suspected, then Seed.
func (g *Gossiper) pickFanoutTargets() []netip.Addr {
	peers := g.registry.All()
	buckets := [3][]netip.Addr{}
	for _, p := range peers {
		switch p.State {
		case StateAlive:
			buckets[0] = append(buckets[0], p.Addr)
		case StateSuspected:
			buckets[1] = append(buckets[1], p.Addr)
		case StateSeed:
			buckets[2] = append(buckets[2], p.Addr)
		}
	}

	var ordered []netip.Addr
	for _, b := range buckets {
		shuffled := append([]netip.Addr(nil), b...)
		rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		ordered = append(ordered, shuffled...)
	}

	if len(ordered) > g.fanout {
		ordered = ordered[:g.fanout]
	}
	return ordered
}

// applyDatagram applies the heartbeat-receive rules to every
// entry in a decoded datagram. Must only ever be called from the owning
// goroutine (Run's select loop).
func (g *Gossiper) applyDatagram(statuses []PeerStatus, now time.Time) {
	self := g.registry.Self()
	for _, entry := range statuses {
		if entry.Addr == self.Addr {
			continue
		}

		peer, known := g.registry.Get(entry.Addr)
		if !known {
			g.registry.mu.Lock()
			peer = g.registry.insertAlive(entry, now)
			g.registry.mu.Unlock()
			continue
		}

		g.registry.mu.Lock()
		pullDue := g.applyEntryLocked(peer, entry, now)
		g.registry.mu.Unlock()
		if pullDue {
			g.notifyAntiEntropy(peer)
		}
	}
}

// applyEntryLocked updates peer in place from a received status entry,
// reporting whether an anti-entropy pull is now due. The caller holds
// g.registry.mu for writing.
func (g *Gossiper) applyEntryLocked(peer *Peer, entry PeerStatus, now time.Time) (pullDue bool) {
	if entry.Epoch < peer.Epoch {
		// Stale: ignore entirely, including any generation bump.
		return false
	}

	if entry.State == StateLeft && peer.IsHealthy() {
		// Graceful-departure announcement.
		peer.State = StateLeft
		return false
	}

	if entry.Epoch > peer.Epoch {
		peer.Epoch = entry.Epoch
		peer.recordHeartbeat(now)
		if peer.State == StateSeed || peer.State == StateSuspected || peer.State == StateOffline {
			peer.State = StateAlive
		}
	}

	// Generation propagation is independent of epoch monotonicity: an equal
	// epoch with a higher gen_config/gen_lists still triggers anti-entropy.
	if entry.GenConfig > peer.GenConfig {
		peer.GenConfig = entry.GenConfig
		peer.NeedConfigPull = true
		pullDue = true
	}
	if entry.GenLists > peer.GenLists {
		peer.GenLists = entry.GenLists
		peer.NeedListsPull = true
		pullDue = true
	}
	return pullDue
}

func (g *Gossiper) notifyAntiEntropy(peer *Peer) {
	g.mu.Lock()
	subs := append([]func(*Peer){}, g.onAntiEntropy...)
	g.mu.Unlock()
	for _, fn := range subs {
		fn(peer)
	}
}

// scanFailures computes Phi for every Alive/Suspected peer and applies
// state transitions.
func (g *Gossiper) scanFailures(now time.Time) {
	for _, peer := range g.registry.All() {
		g.registry.mu.Lock()
		g.scanOneLocked(peer, now)
		g.registry.mu.Unlock()
	}
}

func (g *Gossiper) scanOneLocked(peer *Peer, now time.Time) {
	if peer.State != StateAlive && peer.State != StateSuspected {
		return
	}

	elapsed := now.Sub(peer.LastHeartbeat)
	score := peer.Phi(now)

	wentOffline := false
	switch {
	case score >= OfflinePhi || elapsed > HardTimeout:
		peer.State = StateOffline
		wentOffline = true
	case score >= SuspectPhi && peer.State == StateAlive:
		peer.State = StateSuspected
	}

	if wentOffline {
		g.notifyOffline(peer)
	}
}

func (g *Gossiper) notifyOffline(peer *Peer) {
	g.logOffline(peer)

	g.mu.Lock()
	subs := append([]func(*Peer){}, g.onOffline...)
	g.mu.Unlock()
	for _, fn := range subs {
		fn(peer)
	}
}

// MarkLeft transitions a peer to Left on receipt of a graceful-departure
// announcement.
func (g *Gossiper) MarkLeft(addr netip.Addr) {
	peer, ok := g.registry.Get(addr)
	if !ok {
		return
	}
	g.registry.mu.Lock()
	peer.State = StateLeft
	g.registry.mu.Unlock()
}
