package gossip

import (
	"time"

	"github.com/coremailer/coremail/common/spec/envelope"
)

// offlineEvent builds the normalised lifecycle envelope for a peer that just
// transitioned to Offline, for uniform logging alongside any future external
// sink (alerting webhook, audit trail).
func offlineEvent(peer *Peer) *envelope.Event {
	return &envelope.Event{
		Source: "gossip",
		Type:   "peer.offline",
		TS:     time.Now().UTC(),
		Payload: envelope.EventPayload{
			Message: "peer " + peer.Addr.String() + " marked offline",
			Data: map[string]interface{}{
				"addr":  peer.Addr.String(),
				"epoch": peer.Epoch,
			},
		},
	}
}

func (g *Gossiper) logOffline(peer *Peer) {
	evt := offlineEvent(peer)
	g.log.Warn("gossip: peer offline", "type", evt.Type, "message", evt.Payload.Message, "addr", peer.Addr.String())
}
