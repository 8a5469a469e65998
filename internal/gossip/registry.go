package gossip

import (
	"net/netip"
	"sync"
	"time"
)

// Registry is the in-memory set of known peers, keyed by address for
// constant-time lookup and mutation. It is owned by a single
// Gossiper goroutine; concurrent readers take a brief read lock rather than
// operate on the Gossiper's private state directly, matching the
// mutex-guarded map pattern the supervisor package uses for its client set.
type Registry struct {
	mu    sync.RWMutex
	self  *Peer
	peers map[netip.Addr]*Peer
	order []netip.Addr // insertion order, for build_status's "peers' stored order"
}

// NewRegistry creates an empty registry for the local node at selfAddr.
func NewRegistry(selfAddr netip.Addr) *Registry {
	return &Registry{
		self:  &Peer{Addr: selfAddr, State: StateAlive, LastHeartbeat: time.Now()},
		peers: make(map[netip.Addr]*Peer),
	}
}

// Self returns the local node's own peer record.
func (r *Registry) Self() *Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.self
}

// AddSeed registers a statically configured bootstrap address, if not
// already known.
func (r *Registry) AddSeed(addr netip.Addr) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if addr == r.self.Addr {
		return
	}
	if _, ok := r.peers[addr]; ok {
		return
	}
	r.peers[addr] = NewSeedPeer(addr)
	r.order = append(r.order, addr)
}

// Get returns the peer at addr and whether it is known.
func (r *Registry) Get(addr netip.Addr) (*Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.peers[addr]
	return p, ok
}

// Contains reports whether addr is a known peer.
func (r *Registry) Contains(addr netip.Addr) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.peers[addr]
	return ok
}

// Healthy reports whether the peer at addr is Alive or Suspected.
func (r *Registry) Healthy(addr netip.Addr) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.peers[addr]
	return ok && p.IsHealthy()
}

// insertAlive inserts a newly-seen peer reified from a received PeerStatus.
// Must be called with the write lock held by the caller (the Gossiper's
// single owning goroutine serializes all mutation through this type's
// exported methods, so this is only called from within the package).
func (r *Registry) insertAlive(status PeerStatus, now time.Time) *Peer {
	p := NewAlivePeer(status, now)
	r.peers[status.Addr] = p
	r.order = append(r.order, status.Addr)
	return p
}

// All returns a snapshot slice of every known peer in registry order,
// excluding the local node.
func (r *Registry) All() []*Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Peer, 0, len(r.order))
	for _, addr := range r.order {
		out = append(out, r.peers[addr])
	}
	return out
}

// BuildStatus returns [self_status, peer_status...] in the peers' stored
// order, for transmission in a gossip datagram.
func (r *Registry) BuildStatus() []PeerStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]PeerStatus, 0, len(r.order)+1)
	out = append(out, r.self.buildStatus())
	for _, addr := range r.order {
		out = append(out, r.peers[addr].buildStatus())
	}
	return out
}
