package gossip

import (
	"net/netip"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	statuses := []PeerStatus{
		{Addr: netip.MustParseAddr("192.168.1.1"), Epoch: 1, GenConfig: 2, GenLists: 3, State: StateAlive},
		{Addr: netip.MustParseAddr("192.168.1.2"), Epoch: 5, GenConfig: 0, GenLists: 1, State: StateSuspected},
		{Addr: netip.MustParseAddr("fe80::1"), Epoch: 9, GenConfig: 9, GenLists: 9, State: StateOffline},
	}

	buf := EncodeStatus(statuses)
	decoded, err := DecodeStatus(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded) != len(statuses) {
		t.Fatalf("expected %d entries, got %d", len(statuses), len(decoded))
	}
	for i, want := range statuses {
		got := decoded[i]
		if got.Addr != want.Addr || got.Epoch != want.Epoch || got.GenConfig != want.GenConfig ||
			got.GenLists != want.GenLists || got.State != want.State {
			t.Fatalf("entry %d mismatch: want %#v got %#v", i, want, got)
		}
	}
}

func TestDecodeRejectsTruncatedDatagram(t *testing.T) {
	_, err := DecodeStatus([]byte{5, 0, 1, 2, 3})
	if err == nil {
		t.Fatalf("expected error for truncated datagram")
	}
}

func TestDecodeRejectsInvalidState(t *testing.T) {
	statuses := []PeerStatus{{Addr: netip.MustParseAddr("10.0.0.1"), State: StateAlive}}
	buf := EncodeStatus(statuses)
	buf[len(buf)-1] = 99 // corrupt the state byte
	_, err := DecodeStatus(buf)
	if err == nil {
		t.Fatalf("expected error for invalid state byte")
	}
}

func TestSelectForBudgetKeepsSelfAndPrefersHealthy(t *testing.T) {
	self := PeerStatus{Addr: netip.MustParseAddr("10.0.0.1"), State: StateAlive}
	statuses := []PeerStatus{self}
	for i := 0; i < 40; i++ {
		statuses = append(statuses, PeerStatus{
			Addr:  netip.MustParseAddr("10.0.1.1"),
			State: StateOffline,
		})
	}
	alive := PeerStatus{Addr: netip.MustParseAddr("10.0.2.1"), State: StateAlive}
	statuses = append(statuses, alive)

	selected := selectForBudget(statuses, 3)
	if len(selected) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(selected))
	}
	if selected[0] != self {
		t.Fatalf("expected self to be first entry")
	}
	found := false
	for _, s := range selected[1:] {
		if s == alive {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the alive peer to be preferred over offline peers when truncating")
	}
}
