package bridge

import "github.com/librescoot/ndlcom-bridge/pkg/ndlcom"

// InterfaceStatus is a point-in-time snapshot of one interface's
// observable state, for status reporting — it carries no protocol
// behavior of its own.
type InterfaceStatus struct {
	Name         string
	Flags        IfaceFlags
	Paused       bool
	BytesTx      uint64
	BytesRx      uint64
	CrcFailCount uint32
}

// RouteStatus is a point-in-time snapshot of one routing-table entry.
type RouteStatus struct {
	DeviceID  byte
	Kind      ndlcom.DestinationKind
	Interface string // empty unless Kind == ToInterface
}

// Status is a structured, point-in-time view of a Bridge, the
// replacement for the original implementation's text-formatted
// printStatus/printRoutingTable: the same enumerable state, returned as
// data so callers (a CLI, a CBOR snapshot, a Redis exporter) can render
// it however they like.
type Status struct {
	Interfaces []InterfaceStatus
	Routes     []RouteStatus
}

// Status returns a snapshot of the bridge's interfaces and routing
// table.
func (b *Bridge) Status() Status {
	st := Status{
		Interfaces: make([]InterfaceStatus, len(b.interfaces)),
	}
	for i, iface := range b.interfaces {
		st.Interfaces[i] = InterfaceStatus{
			Name:         iface.name,
			Flags:        iface.flags,
			Paused:       iface.paused,
			BytesTx:      iface.bytesTx,
			BytesRx:      iface.bytesRx,
			CrcFailCount: iface.parser.CrcFailCount(),
		}
	}
	for id, d := range b.routing.Snapshot() {
		rs := RouteStatus{DeviceID: id, Kind: d.Kind}
		if d.Kind == ndlcom.ToInterface && d.Handle != nil {
			rs.Interface = d.Handle.name
		}
		st.Routes = append(st.Routes, rs)
	}
	return st
}
