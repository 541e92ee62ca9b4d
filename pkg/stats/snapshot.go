// Package stats supplements the bridge with the original's health/debug
// surface: a CBOR-encoded point-in-time snapshot and an optional
// Redis-backed publisher, neither of which participate in the protocol
// itself.
package stats

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/librescoot/ndlcom-bridge/pkg/bridge"
)

// InterfaceSnapshot is one interface's counters at snapshot time.
type InterfaceSnapshot struct {
	Name         string `cbor:"name"`
	Paused       bool   `cbor:"paused"`
	BytesTx      uint64 `cbor:"bytes_tx"`
	BytesRx      uint64 `cbor:"bytes_rx"`
	CrcFailCount uint32 `cbor:"crc_fail_count"`
}

// RouteSnapshot is one routing-table entry at snapshot time.
type RouteSnapshot struct {
	DeviceID  byte   `cbor:"device_id"`
	Kind      int    `cbor:"kind"`
	Interface string `cbor:"interface,omitempty"`
}

// BridgeSnapshot is the full point-in-time record: every interface's
// counters and every non-Unknown routing entry, the same enumerable
// state the original's printStatus/printRoutingTable rendered as text.
type BridgeSnapshot struct {
	Interfaces []InterfaceSnapshot `cbor:"interfaces"`
	Routes     []RouteSnapshot     `cbor:"routes"`
}

// Snapshot builds a BridgeSnapshot from a live Bridge's Status().
func Snapshot(b *bridge.Bridge) BridgeSnapshot {
	st := b.Status()
	snap := BridgeSnapshot{
		Interfaces: make([]InterfaceSnapshot, len(st.Interfaces)),
		Routes:     make([]RouteSnapshot, len(st.Routes)),
	}
	for i, is := range st.Interfaces {
		snap.Interfaces[i] = InterfaceSnapshot{
			Name:         is.Name,
			Paused:       is.Paused,
			BytesTx:      is.BytesTx,
			BytesRx:      is.BytesRx,
			CrcFailCount: is.CrcFailCount,
		}
	}
	for i, rs := range st.Routes {
		snap.Routes[i] = RouteSnapshot{
			DeviceID:  rs.DeviceID,
			Kind:      int(rs.Kind),
			Interface: rs.Interface,
		}
	}
	return snap
}

// Encode CBOR-encodes a BridgeSnapshot. cmd/ndlcom-bridge does not call
// it; it is a library entry point for tooling.
func Encode(snap BridgeSnapshot) ([]byte, error) {
	b, err := cbor.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("stats: cbor encode snapshot: %w", err)
	}
	return b, nil
}

// Decode reverses Encode, for tooling that reads a dumped snapshot back.
func Decode(data []byte) (BridgeSnapshot, error) {
	var snap BridgeSnapshot
	if err := cbor.Unmarshal(data, &snap); err != nil {
		return BridgeSnapshot{}, fmt.Errorf("stats: cbor decode snapshot: %w", err)
	}
	return snap, nil
}
