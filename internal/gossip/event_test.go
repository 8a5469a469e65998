package gossip

import (
	"net/netip"
	"testing"
)

func TestOfflineEventShape(t *testing.T) {
	peer := &Peer{Addr: netip.MustParseAddr("10.0.0.5"), Epoch: 7}
	evt := offlineEvent(peer)

	if evt.Source != "gossip" || evt.Type != "peer.offline" {
		t.Fatalf("unexpected event classification: %+v", evt)
	}
	if evt.Payload.Data["addr"] != "10.0.0.5" {
		t.Fatalf("expected addr in event data, got %+v", evt.Payload.Data)
	}
}
