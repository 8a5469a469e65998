package gossip

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"sort"
)

const (
	statusEntrySize = 16 + 8 + 8 + 8 + 1 // addr + epoch + gen_config + gen_lists + state
	countPrefixSize = 2
)

// MaxDatagramBytes is the largest UDP payload the gossiper will ever emit,
// chosen to fit within one Ethernet MTU with headroom for IP/UDP headers.
const MaxDatagramBytes = 1400

// EncodeStatus serializes a list of PeerStatus entries as a length-prefixed
// binary payload, truncating if necessary to fit within MaxDatagramBytes.
// The local node's entry (assumed to be statuses[0]) and healthy peers are
// preferred over Seed/Offline/Left entries when truncation is required.
func EncodeStatus(statuses []PeerStatus) []byte {
	budget := (MaxDatagramBytes - countPrefixSize) / statusEntrySize
	selected := selectForBudget(statuses, budget)

	buf := make([]byte, countPrefixSize+len(selected)*statusEntrySize)
	binary.LittleEndian.PutUint16(buf[0:2], uint16(len(selected)))
	off := countPrefixSize
	for _, s := range selected {
		encodeOne(buf[off:off+statusEntrySize], s)
		off += statusEntrySize
	}
	return buf
}

// selectForBudget keeps statuses[0] (the local node) unconditionally, then
// fills remaining capacity preferring Alive, then Suspected, then the rest,
// matching the fanout preference order used elsewhere in the protocol.
func selectForBudget(statuses []PeerStatus, budget int) []PeerStatus {
	if len(statuses) <= budget {
		return statuses
	}
	if budget <= 0 {
		return nil
	}
	self := statuses[0]
	rest := append([]PeerStatus(nil), statuses[1:]...)
	sort.SliceStable(rest, func(i, j int) bool {
		return rank(rest[i].State) < rank(rest[j].State)
	})
	out := make([]PeerStatus, 0, budget)
	out = append(out, self)
	for _, s := range rest {
		if len(out) >= budget {
			break
		}
		out = append(out, s)
	}
	return out
}

func rank(s State) int {
	switch s {
	case StateAlive:
		return 0
	case StateSuspected:
		return 1
	case StateSeed:
		return 2
	case StateOffline:
		return 3
	case StateLeft:
		return 4
	default:
		return 5
	}
}

func encodeOne(dst []byte, s PeerStatus) {
	addrBytes := s.Addr.As16()
	copy(dst[0:16], addrBytes[:])
	binary.LittleEndian.PutUint64(dst[16:24], s.Epoch)
	binary.LittleEndian.PutUint64(dst[24:32], s.GenConfig)
	binary.LittleEndian.PutUint64(dst[32:40], s.GenLists)
	dst[40] = byte(s.State)
}

// DecodeStatus parses a datagram produced by EncodeStatus. Malformed
// datagrams (truncated, bad count) are reported as an error; the gossiper
// drops them and increments a counter rather than propagating the failure.
func DecodeStatus(data []byte) ([]PeerStatus, error) {
	if len(data) < countPrefixSize {
		return nil, fmt.Errorf("gossip: datagram shorter than count prefix")
	}
	count := int(binary.LittleEndian.Uint16(data[0:2]))
	want := countPrefixSize + count*statusEntrySize
	if len(data) < want {
		return nil, fmt.Errorf("gossip: datagram truncated: want %d bytes, have %d", want, len(data))
	}
	out := make([]PeerStatus, 0, count)
	off := countPrefixSize
	for i := 0; i < count; i++ {
		s, err := decodeOne(data[off : off+statusEntrySize])
		if err != nil {
			return nil, err
		}
		out = append(out, s)
		off += statusEntrySize
	}
	return out, nil
}

func decodeOne(src []byte) (PeerStatus, error) {
	var addrBytes [16]byte
	copy(addrBytes[:], src[0:16])
	addr := netip.AddrFrom16(addrBytes).Unmap()
	state := src[40]
	if state > byte(StateLeft) {
		return PeerStatus{}, fmt.Errorf("gossip: invalid peer state byte %d", state)
	}
	return PeerStatus{
		Addr:      addr,
		Epoch:     binary.LittleEndian.Uint64(src[16:24]),
		GenConfig: binary.LittleEndian.Uint64(src[24:32]),
		GenLists:  binary.LittleEndian.Uint64(src[32:40]),
		State:     State(state),
	}, nil
}
