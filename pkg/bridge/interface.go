package bridge

import "github.com/librescoot/ndlcom-bridge/pkg/ndlcom"

// IfaceFlags gates optional ExternalInterface behavior.
type IfaceFlags uint8

const (
	// Mirror interfaces never update the routing table on receive, and
	// see a copy of every frame the bridge forwards regardless of
	// routing.
	Mirror IfaceFlags = 1 << 0
)

// ReadFunc is a non-blocking transport read: it returns 0 when no data is
// ready now, and never blocks longer than a context switch.
type ReadFunc func(buf []byte) (int, error)

// WriteFunc attempts to deliver buf to the transport. It may drop bytes
// silently on a full downstream buffer; transport-fatal conditions are
// reported via the returned error and handled by the interface's
// ErrorPolicy.
type WriteFunc func(buf []byte) error

// ErrorPolicy decides what happens when write returns an error: returning
// nil demotes the failure to a dropped write (the interface itself logs
// nothing; any logging is done by the policy); returning a non-nil error
// (typically err itself) makes it propagate out of ProcessOnce as fatal.
type ErrorPolicy func(iface *ExternalInterface, err error) error

// FatalOnError is the default ErrorPolicy: every write error is fatal.
func FatalOnError(_ *ExternalInterface, err error) error { return err }

// ExternalInterface wraps one transport into the uniform shape the
// bridge consumes: a parser, read/write callbacks, flags, byte counters,
// and a paused flag. It is only ever owned by one Bridge at a time.
type ExternalInterface struct {
	name string

	read  ReadFunc
	write WriteFunc

	parser  *ndlcom.Parser
	scratch []byte

	flags       IfaceFlags
	paused      bool
	errorPolicy ErrorPolicy

	bytesTx uint64
	bytesRx uint64
}

// Name returns the interface's label, used only for logging and
// snapshots; it has no protocol meaning.
func (e *ExternalInterface) Name() string { return e.name }

// Flags returns the interface's flag word.
func (e *ExternalInterface) Flags() IfaceFlags { return e.flags }

// IsMirror reports whether the Mirror bit is set.
func (e *ExternalInterface) IsMirror() bool { return e.flags&Mirror != 0 }

// Paused reports whether writes are currently suppressed.
func (e *ExternalInterface) Paused() bool { return e.paused }

// SetPaused pauses or resumes the interface. While paused, read still
// drains the transport (bytes are discarded) but write is suppressed.
func (e *ExternalInterface) SetPaused(p bool) { e.paused = p }

// BytesTx / BytesRx report the raw, encoded byte counts actually written
// to / read from the transport.
func (e *ExternalInterface) BytesTx() uint64 { return e.bytesTx }
func (e *ExternalInterface) BytesRx() uint64 { return e.bytesRx }

// CrcFailCount reports this interface's parser's checksum failure count.
func (e *ExternalInterface) CrcFailCount() uint32 { return e.parser.CrcFailCount() }

func newExternalInterface(name string, read ReadFunc, write WriteFunc, flags IfaceFlags, policy ErrorPolicy) *ExternalInterface {
	if policy == nil {
		policy = FatalOnError
	}
	return &ExternalInterface{
		name:        name,
		read:        read,
		write:       write,
		parser:      ndlcom.NewParser(),
		scratch:     make([]byte, ndlcom.EncodedSize(ndlcom.MaxPayloadLen)),
		flags:       flags,
		errorPolicy: policy,
	}
}

func (e *ExternalInterface) writeBytes(buf []byte) error {
	if e.paused {
		return nil
	}
	if err := e.write(buf); err != nil {
		if perr := e.errorPolicy(e, err); perr != nil {
			return perr
		}
		return nil
	}
	e.bytesTx += uint64(len(buf))
	return nil
}
