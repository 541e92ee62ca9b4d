// Package node implements the Node abstraction: a named participant on a
// Bridge with its own device identifier, a per-receiver packet counter,
// and a filter that dispatches incoming traffic addressed to that
// identifier (or broadcast) to registered handlers.
package node

import (
	"github.com/librescoot/ndlcom-bridge/pkg/bridge"
	"github.com/librescoot/ndlcom-bridge/pkg/ndlcom"
)

// HandlerFunc is called once per frame addressed to this node's device
// id or to broadcast. origin is the interface the frame arrived on, or
// nil for internally-originated frames (including, notably, this node's
// own sends — see Node's reentrancy note below).
type HandlerFunc func(header ndlcom.Header, payload []byte, origin *bridge.ExternalInterface)

// NodeHandler is an opaque registration handle returned by
// Node.RegisterHandler. It carries only what the node needs to dispatch
// to and later deregister it, the same shape bridge.BridgeHandler uses.
type NodeHandler struct {
	fn HandlerFunc
}

// Node is registered on exactly one Bridge for its lifetime between New
// and Close.
//
// A node must not reply from inside its own receive callback in a way
// that would pull its own just-sent frame back into that same callback
// before the outer call returns: the bridge's process loop does deliver
// internally-originated traffic to matching node handlers (that's the
// whole point of registering a node for its own device id), so a naive
// "echo what I receive" handler on a node sending to itself would
// recurse. Guard against this in the handler, not in Node.
type Node struct {
	bridge   *bridge.Bridge
	deviceID byte
	header   *ndlcom.HeaderConfig

	handlers []*NodeHandler
	bh       *bridge.BridgeHandler
}

// New creates a Node for deviceID on b: it initializes a HeaderConfig,
// registers a BridgeHandler that filters for deviceID and broadcast, and
// marks deviceID Internal in b's routing table so it is never egressed.
func New(b *bridge.Bridge, deviceID byte) *Node {
	n := &Node{
		bridge:   b,
		deviceID: deviceID,
		header:   ndlcom.NewHeaderConfig(deviceID),
	}
	n.bh = b.RegisterHandler(n.onFrame, 0)
	b.RoutingTable().MarkInternal(deviceID)
	return n
}

// DeviceID returns the node's current device id.
func (n *Node) DeviceID() byte { return n.deviceID }

// SetDeviceID changes the node's device id: the per-receiver counter
// table is zeroed (REDESIGN: a change of identity invalidates any
// outstanding sequence), the old id is cleared from Internal, and the
// new id is marked Internal. Any mirror flags or other internals on the
// routing table are untouched.
func (n *Node) SetDeviceID(newID byte) {
	rt := n.bridge.RoutingTable()
	rt.ClearInternal(n.deviceID)
	n.header.SetOwnSenderID(newID)
	n.deviceID = newID
	rt.MarkInternal(newID)
}

func (n *Node) onFrame(header ndlcom.Header, payload []byte, origin *bridge.ExternalInterface) {
	if header.ReceiverID != n.deviceID && header.ReceiverID != ndlcom.IDBroadcast {
		return
	}
	for _, h := range n.handlers {
		h.fn(header, payload, origin)
	}
}

// RegisterHandler adds a NodeHandler, called for every frame addressed
// to this node's device id or to broadcast, in registration order, and
// returns an opaque token for later deregistration.
func (n *Node) RegisterHandler(h HandlerFunc) *NodeHandler {
	nh := &NodeHandler{fn: h}
	n.handlers = append(n.handlers, nh)
	return nh
}

// DeregisterHandler removes exactly the handler previously returned by
// RegisterHandler. After this call returns, h is guaranteed not to be
// invoked again.
func (n *Node) DeregisterHandler(h *NodeHandler) {
	for i, it := range n.handlers {
		if it == h {
			n.handlers = append(n.handlers[:i], n.handlers[i+1:]...)
			return
		}
	}
}

// Send allocates a header with the next per-receiver counter for
// receiverID and hands it to the bridge's internal-origin send path.
func (n *Node) Send(receiverID byte, payload []byte) error {
	header := n.header.Prepare(receiverID, byte(len(payload)))
	return n.bridge.SendRaw(header, payload)
}

// Close deregisters the node's bridge handler and clears its Internal
// routing-table reservation. After Close returns, the node's handlers
// are guaranteed not to be invoked again.
func (n *Node) Close() {
	n.bridge.DeregisterHandler(n.bh)
	n.bridge.RoutingTable().ClearInternal(n.deviceID)
}
