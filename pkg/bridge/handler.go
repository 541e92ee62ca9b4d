package bridge

import "github.com/librescoot/ndlcom-bridge/pkg/ndlcom"

// HandlerFunc is called once per decoded frame. origin is the interface
// the frame arrived on, or nil for internally-originated frames.
type HandlerFunc func(header ndlcom.Header, payload []byte, origin *ExternalInterface)

// HandlerFlags gates optional BridgeHandler behavior.
type HandlerFlags uint8

const (
	// NoInternal excludes a handler from frames whose origin is nil
	// (internally originated, e.g. via Bridge.SendRaw).
	NoInternal HandlerFlags = 1 << 0
)

// BridgeHandler is an opaque registration handle returned by
// Bridge.RegisterHandler. It carries only what the bridge needs to
// dispatch to and later deregister it.
type BridgeHandler struct {
	fn    HandlerFunc
	flags HandlerFlags
}

func (h *BridgeHandler) wants(origin *ExternalInterface) bool {
	return origin != nil || h.flags&NoInternal == 0
}
