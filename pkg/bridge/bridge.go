// Package bridge implements the NDLCom routing engine: a set of external
// byte-stream interfaces plus internal handlers, on-the-fly decode,
// dynamic source-learning routing, forwarding, loop suppression, and
// re-encoding onto the chosen egress interface(s).
//
// A Bridge is single-threaded cooperative: exactly one goroutine may
// call ProcessOnce/Process/SendRaw/register-deregister methods at a
// time, and none of those methods may be re-entered transitively from a
// HandlerFunc the bridge itself invokes.
package bridge

import (
	"log"
	"os"

	"github.com/librescoot/ndlcom-bridge/pkg/ndlcom"
)

// Flags gates bridge-wide behavior.
type Flags uint8

const (
	// ForwardingEnabled controls whether decoded frames are re-encoded
	// onto egress interfaces. It is on by default; when off, frames
	// still fan out to bridge handlers (and, transitively, node
	// handlers), but nothing is written to any ExternalInterface.
	ForwardingEnabled Flags = 1 << 0
)

// Bridge owns a routing table, a list of external interfaces, and a list
// of bridge handlers. It is not shared between threads.
type Bridge struct {
	routing    *ndlcom.RoutingTable[*ExternalInterface]
	interfaces []*ExternalInterface
	handlers   []*BridgeHandler
	flags      Flags
	logger     *log.Logger

	defaultErrorPolicy ErrorPolicy
}

// Option configures a Bridge at construction time.
type Option func(*Bridge)

// WithLogger overrides the bridge's logger (default: a logger writing to
// os.Stderr, mirroring the timestamped format the teacher service sets
// on the package-global logger in main).
func WithLogger(l *log.Logger) Option {
	return func(b *Bridge) { b.logger = l }
}

// WithFlags sets the bridge's initial flag word (default: ForwardingEnabled).
func WithFlags(f Flags) Option {
	return func(b *Bridge) { b.flags = f }
}

// WithDefaultErrorPolicy overrides the error policy used by interfaces
// that don't specify their own (default: FatalOnError).
func WithDefaultErrorPolicy(p ErrorPolicy) Option {
	return func(b *Bridge) { b.defaultErrorPolicy = p }
}

// New returns an empty Bridge with forwarding enabled.
func New(opts ...Option) *Bridge {
	b := &Bridge{
		routing:            ndlcom.NewRoutingTable[*ExternalInterface](),
		flags:              ForwardingEnabled,
		logger:             log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lmicroseconds),
		defaultErrorPolicy: FatalOnError,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Flags returns the bridge's current flag word.
func (b *Bridge) Flags() Flags { return b.flags }

// SetFlags replaces the bridge's flag word.
func (b *Bridge) SetFlags(f Flags) { b.flags = f }

// RoutingTable exposes the bridge's routing table for inspection
// (e.g. by a Node on registration, or a status/snapshot exporter).
func (b *Bridge) RoutingTable() *ndlcom.RoutingTable[*ExternalInterface] {
	return b.routing
}

// Interfaces returns the bridge's interfaces in registration order. The
// returned slice is owned by the caller but aliases no internal state
// that registration order matters for.
func (b *Bridge) Interfaces() []*ExternalInterface {
	out := make([]*ExternalInterface, len(b.interfaces))
	copy(out, b.interfaces)
	return out
}

// AddInterface wraps a transport's read/write callbacks into a new
// ExternalInterface, registers it in order, and returns it.
func (b *Bridge) AddInterface(name string, read ReadFunc, write WriteFunc, flags IfaceFlags, opts ...InterfaceOption) *ExternalInterface {
	iface := newExternalInterface(name, read, write, flags, b.defaultErrorPolicy)
	for _, opt := range opts {
		opt(iface)
	}
	b.interfaces = append(b.interfaces, iface)
	return iface
}

// InterfaceOption configures an ExternalInterface at AddInterface time.
type InterfaceOption func(*ExternalInterface)

// WithErrorPolicy overrides the error policy for one interface.
func WithErrorPolicy(p ErrorPolicy) InterfaceOption {
	return func(e *ExternalInterface) { e.errorPolicy = p }
}

// RemoveInterface deregisters iface: it is removed from the interface
// list and every routing-table entry pointing at it is invalidated back
// to Unknown, so no stale destination ever remains.
func (b *Bridge) RemoveInterface(iface *ExternalInterface) {
	b.routing.Invalidate(iface)
	for i, it := range b.interfaces {
		if it == iface {
			b.interfaces = append(b.interfaces[:i], b.interfaces[i+1:]...)
			return
		}
	}
}

// RegisterHandler adds a BridgeHandler, called for every decoded frame
// (subject to flags), in registration order relative to other handlers.
func (b *Bridge) RegisterHandler(fn HandlerFunc, flags HandlerFlags) *BridgeHandler {
	h := &BridgeHandler{fn: fn, flags: flags}
	b.handlers = append(b.handlers, h)
	return h
}

// DeregisterHandler removes h. After this call returns, h is guaranteed
// not to be invoked again.
func (b *Bridge) DeregisterHandler(h *BridgeHandler) {
	for i, it := range b.handlers {
		if it == h {
			b.handlers = append(b.handlers[:i], b.handlers[i+1:]...)
			return
		}
	}
}

func (b *Bridge) dispatch(header ndlcom.Header, payload []byte, origin *ExternalInterface) {
	for _, h := range b.handlers {
		if h.wants(origin) {
			h.fn(header, payload, origin)
		}
	}
}

// SendRaw is the internal-origin entry point: it dispatches header/
// payload to bridge handlers with a nil origin, then — if forwarding is
// enabled — enters the forwarding stage with the same nil sentinel,
// which is distinct from every real interface pointer and so is never
// loop-suppressed against any interface.
func (b *Bridge) SendRaw(header ndlcom.Header, payload []byte) error {
	b.dispatch(header, payload, nil)
	if b.flags&ForwardingEnabled == 0 {
		return nil
	}
	return b.forward(header, payload, nil)
}

// ProcessOnce reads once from every interface in registration order,
// feeds every consumed byte to that interface's parser, and for every
// completed frame: learns the route (unless the interface is a mirror),
// dispatches to bridge handlers, forwards if enabled, and resets the
// parser. It returns the total bytes consumed across all interfaces in
// this pass.
func (b *Bridge) ProcessOnce() (int, error) {
	total := 0
	for _, iface := range b.interfaces {
		n, err := b.processInterface(iface)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Process repeatedly calls ProcessOnce until a pass consumes zero bytes.
func (b *Bridge) Process() error {
	for {
		n, err := b.ProcessOnce()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
	}
}

func (b *Bridge) processInterface(iface *ExternalInterface) (int, error) {
	n, err := iface.read(iface.scratch)
	if err != nil {
		// Transport-fatal: the caller (embedder) is responsible for
		// closing/deregistering the interface; the bridge itself does
		// not attempt recovery.
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	iface.bytesRx += uint64(n)

	if iface.paused {
		// Drains the transport but discards; no parser activity.
		return n, nil
	}

	consumed := 0
	for consumed < n {
		c := iface.parser.Receive(iface.scratch[consumed:n])
		consumed += c
		if !iface.parser.HasPacket() {
			if c == 0 {
				break
			}
			continue
		}

		header := iface.parser.Header()
		// Copy out: the parser reuses its payload buffer on reset.
		payload := append([]byte(nil), iface.parser.Payload()...)

		if !iface.IsMirror() {
			b.routing.Learn(header.SenderID, iface)
		}

		b.dispatch(header, payload, iface)

		if b.flags&ForwardingEnabled != 0 {
			if ferr := b.forward(header, payload, iface); ferr != nil {
				iface.parser.ResetPacket()
				return n, ferr
			}
		}

		iface.parser.ResetPacket()
	}
	return n, nil
}

// forward implements the forwarding algorithm of §4.8: internal
// destinations never egress; broadcast/unknown destinations fan out to
// every interface but origin; a known unicast destination gets the
// frame unless it equals origin (a loopback, dropped with a log line),
// and mirrors always get a copy except when they are the origin.
func (b *Bridge) forward(header ndlcom.Header, payload []byte, origin *ExternalInterface) error {
	if b.routing.Lookup(header.ReceiverID).Kind == ndlcom.Internal {
		return nil
	}

	encoded := make([]byte, ndlcom.EncodedSize(int(header.DataLen)))
	n, err := ndlcom.Encode(header, payload, encoded)
	if err != nil {
		return err
	}
	encoded = encoded[:n]

	dest := b.routing.Lookup(header.ReceiverID)

	if header.ReceiverID == ndlcom.IDBroadcast || dest.Kind == ndlcom.Unknown {
		for _, iface := range b.interfaces {
			if iface == origin {
				continue
			}
			if err := iface.writeBytes(encoded); err != nil {
				return err
			}
		}
		return nil
	}

	target := dest.Handle
	loopback := target == origin
	if loopback {
		b.logger.Printf("ndlcom: bridge: dropping forward of recv=%#x back to its own origin %q", header.ReceiverID, originName(origin))
	} else if err := target.writeBytes(encoded); err != nil {
		return err
	}

	for _, iface := range b.interfaces {
		if iface == origin || !iface.IsMirror() {
			continue
		}
		if iface == target && !loopback {
			continue
		}
		if err := iface.writeBytes(encoded); err != nil {
			return err
		}
	}
	return nil
}

func originName(origin *ExternalInterface) string {
	if origin == nil {
		return "<internal>"
	}
	return origin.name
}
