package bridge

import (
	"errors"
	"testing"

	"github.com/librescoot/ndlcom-bridge/pkg/ndlcom"
)

// scriptedReader feeds a fixed sequence of byte chunks, one per call to
// its ReadFunc, then returns (0, nil) forever.
type scriptedReader struct {
	chunks [][]byte
	pos    int
}

func (r *scriptedReader) read(buf []byte) (int, error) {
	if r.pos >= len(r.chunks) {
		return 0, nil
	}
	n := copy(buf, r.chunks[r.pos])
	r.pos++
	return n, nil
}

// recordingWriter appends every write it sees.
type recordingWriter struct {
	writes [][]byte
}

func (w *recordingWriter) write(buf []byte) error {
	cp := append([]byte(nil), buf...)
	w.writes = append(w.writes, cp)
	return nil
}

func encodeFrame(t *testing.T, header ndlcom.Header, payload []byte) []byte {
	t.Helper()
	out := make([]byte, ndlcom.EncodedSize(len(payload)))
	n, err := ndlcom.Encode(header, payload, out)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return out[:n]
}

func mkHeader(receiver, sender, counter, dataLen byte) ndlcom.Header {
	return ndlcom.Header{ReceiverID: receiver, SenderID: sender, Counter: counter, DataLen: dataLen}
}

// TestBridgeSourceLearning covers property 6: receiving a frame from
// sender S on interface A records a route so a later unicast to S goes
// only to A.
func TestBridgeSourceLearning(t *testing.T) {
	b := New()

	rdA := &scriptedReader{chunks: [][]byte{encodeFrame(t, mkHeader(0xFF, 0x10, 0, 0), nil)}}
	wrA := &recordingWriter{}
	ifA := b.AddInterface("a", rdA.read, wrA.write, 0)

	rdB := &scriptedReader{}
	wrB := &recordingWriter{}
	b.AddInterface("b", rdB.read, wrB.write, 0)

	if _, err := b.ProcessOnce(); err != nil {
		t.Fatalf("ProcessOnce: %v", err)
	}

	dest := b.RoutingTable().Lookup(0x10)
	if dest.Kind != ndlcom.ToInterface || dest.Handle != ifA {
		t.Fatalf("expected 0x10 learned as ToInterface(a), got %+v", dest)
	}

	// Now send internally to 0x10: only interface a should receive it.
	if err := b.SendRaw(mkHeader(0x10, 0x00, 0, 0), nil); err != nil {
		t.Fatalf("SendRaw: %v", err)
	}
	if len(wrA.writes) != 1 {
		t.Fatalf("expected 1 write to a, got %d", len(wrA.writes))
	}
	// The learning frame was itself a broadcast, so b already holds that
	// one forwarded copy; the unicast to 0x10 must add nothing to b.
	if len(wrB.writes) != 1 {
		t.Fatalf("expected only the earlier broadcast copy on b, got %d writes", len(wrB.writes))
	}
}

// TestBridgeLoopSuppression covers property 7: a frame is never forwarded
// back onto the interface it arrived on, even when that interface is the
// learned destination.
func TestBridgeLoopSuppression(t *testing.T) {
	b := New()

	// First frame teaches the route 0x10 -> a.
	rdA := &scriptedReader{chunks: [][]byte{
		encodeFrame(t, mkHeader(0xFF, 0x10, 0, 0), nil),
		encodeFrame(t, mkHeader(0x10, 0x10, 1, 0), nil),
	}}
	wrA := &recordingWriter{}
	b.AddInterface("a", rdA.read, wrA.write, 0)

	if _, err := b.ProcessOnce(); err != nil {
		t.Fatalf("ProcessOnce #1: %v", err)
	}
	if _, err := b.ProcessOnce(); err != nil {
		t.Fatalf("ProcessOnce #2: %v", err)
	}

	if len(wrA.writes) != 0 {
		t.Fatalf("expected loopback to be suppressed, got %d writes", len(wrA.writes))
	}
}

// TestBridgeInternalIsolation covers property 8: a receiver id marked
// Internal never egresses to any interface, even broadcast.
func TestBridgeInternalIsolation(t *testing.T) {
	b := New()
	b.RoutingTable().MarkInternal(0x05)

	rdA := &scriptedReader{chunks: [][]byte{encodeFrame(t, mkHeader(0x05, 0x20, 0, 3), []byte{1, 2, 3})}}
	wrA := &recordingWriter{}
	b.AddInterface("a", rdA.read, wrA.write, 0)

	rdB := &scriptedReader{}
	wrB := &recordingWriter{}
	b.AddInterface("b", rdB.read, wrB.write, 0)

	if _, err := b.ProcessOnce(); err != nil {
		t.Fatalf("ProcessOnce: %v", err)
	}
	if len(wrB.writes) != 0 {
		t.Fatalf("expected internal receiver id to never egress, got %d writes on b", len(wrB.writes))
	}
}

// TestBridgeBroadcastWithMirror covers scenario S5: a broadcast frame
// from interface a fans out to every other non-mirror interface and to
// every mirror interface except the origin.
func TestBridgeBroadcastWithMirror(t *testing.T) {
	b := New()

	rdA := &scriptedReader{chunks: [][]byte{encodeFrame(t, mkHeader(ndlcom.IDBroadcast, 0x01, 0, 1), []byte{0x42})}}
	wrA := &recordingWriter{}
	b.AddInterface("a", rdA.read, wrA.write, 0)

	rdB := &scriptedReader{}
	wrB := &recordingWriter{}
	b.AddInterface("b", rdB.read, wrB.write, 0)

	rdM := &scriptedReader{}
	wrM := &recordingWriter{}
	b.AddInterface("mirror", rdM.read, wrM.write, Mirror)

	if _, err := b.ProcessOnce(); err != nil {
		t.Fatalf("ProcessOnce: %v", err)
	}

	if len(wrA.writes) != 0 {
		t.Fatalf("origin must never receive its own broadcast back, got %d", len(wrA.writes))
	}
	if len(wrB.writes) != 1 {
		t.Fatalf("expected 1 write to b, got %d", len(wrB.writes))
	}
	if len(wrM.writes) != 1 {
		t.Fatalf("expected 1 write to mirror, got %d", len(wrM.writes))
	}
}

// TestBridgeMirrorNeverLearns checks that a mirror interface's traffic
// never updates the routing table, so it can observe without becoming a
// candidate unicast destination.
func TestBridgeMirrorNeverLearns(t *testing.T) {
	b := New()

	rdM := &scriptedReader{chunks: [][]byte{encodeFrame(t, mkHeader(0xFF, 0x30, 0, 0), nil)}}
	wrM := &recordingWriter{}
	b.AddInterface("mirror", rdM.read, wrM.write, Mirror)

	if _, err := b.ProcessOnce(); err != nil {
		t.Fatalf("ProcessOnce: %v", err)
	}

	if dest := b.RoutingTable().Lookup(0x30); dest.Kind != ndlcom.Unknown {
		t.Fatalf("expected mirror interface traffic to leave routing table untouched, got %+v", dest)
	}
}

// TestBridgeUnicastUnknownFansOut covers the "Unknown destination" half
// of forward: with no prior learning, a unicast frame fans out like
// broadcast.
func TestBridgeUnicastUnknownFansOut(t *testing.T) {
	b := New()

	rdA := &scriptedReader{chunks: [][]byte{encodeFrame(t, mkHeader(0x99, 0x01, 0, 0), nil)}}
	wrA := &recordingWriter{}
	b.AddInterface("a", rdA.read, wrA.write, 0)

	rdB := &scriptedReader{}
	wrB := &recordingWriter{}
	b.AddInterface("b", rdB.read, wrB.write, 0)

	if _, err := b.ProcessOnce(); err != nil {
		t.Fatalf("ProcessOnce: %v", err)
	}
	if len(wrB.writes) != 1 {
		t.Fatalf("expected unknown-destination unicast to fan out to b, got %d", len(wrB.writes))
	}
}

// TestBridgePauseSuppressesWriteButNotRead covers property 10: a paused
// interface still has its transport drained (read consumes bytes) but
// never receives a write, and its parser does not run so no route is
// learned from it.
func TestBridgePauseSuppressesWriteButNotRead(t *testing.T) {
	b := New()

	rdA := &scriptedReader{chunks: [][]byte{encodeFrame(t, mkHeader(0xFF, 0x10, 0, 0), nil)}}
	wrA := &recordingWriter{}
	ifA := b.AddInterface("a", rdA.read, wrA.write, 0)

	rdB := &scriptedReader{chunks: [][]byte{encodeFrame(t, mkHeader(0xFF, 0x20, 0, 0), nil)}}
	wrB := &recordingWriter{}
	ifB := b.AddInterface("b", rdB.read, wrB.write, 0)
	ifB.SetPaused(true)

	n, err := b.ProcessOnce()
	if err != nil {
		t.Fatalf("ProcessOnce: %v", err)
	}
	if n == 0 {
		t.Fatalf("expected paused interface's transport to still be drained")
	}

	if dest := b.RoutingTable().Lookup(0x20); dest.Kind != ndlcom.Unknown {
		t.Fatalf("expected paused interface's traffic not to be parsed/learned, got %+v", dest)
	}

	// Send broadcast internally: the paused interface b must not be
	// written to, while a (not paused) must be.
	if err := b.SendRaw(mkHeader(ndlcom.IDBroadcast, 0, 0, 0), nil); err != nil {
		t.Fatalf("SendRaw: %v", err)
	}
	if len(wrA.writes) != 1 {
		t.Fatalf("expected 1 write to unpaused a, got %d", len(wrA.writes))
	}
	if len(wrB.writes) != 0 {
		t.Fatalf("expected paused b to receive no writes, got %d", len(wrB.writes))
	}
	_ = ifA
}

// TestBridgeRemoveInterfaceInvalidatesRoutes ensures a learned route
// pointing at a removed interface reverts to Unknown rather than
// dangling.
func TestBridgeRemoveInterfaceInvalidatesRoutes(t *testing.T) {
	b := New()

	rdA := &scriptedReader{chunks: [][]byte{encodeFrame(t, mkHeader(0xFF, 0x10, 0, 0), nil)}}
	wrA := &recordingWriter{}
	ifA := b.AddInterface("a", rdA.read, wrA.write, 0)

	if _, err := b.ProcessOnce(); err != nil {
		t.Fatalf("ProcessOnce: %v", err)
	}
	if dest := b.RoutingTable().Lookup(0x10); dest.Kind != ndlcom.ToInterface {
		t.Fatalf("expected 0x10 learned, got %+v", dest)
	}

	b.RemoveInterface(ifA)

	if dest := b.RoutingTable().Lookup(0x10); dest.Kind != ndlcom.Unknown {
		t.Fatalf("expected route invalidated after interface removal, got %+v", dest)
	}
}

// TestBridgeErrorPolicyDropsInsteadOfFatal checks that a non-default
// ErrorPolicy can demote a write failure to a dropped write instead of
// propagating it out of ProcessOnce.
func TestBridgeErrorPolicyDropsInsteadOfFatal(t *testing.T) {
	b := New()

	rdA := &scriptedReader{chunks: [][]byte{encodeFrame(t, mkHeader(0xFF, 0x10, 0, 0), nil)}}
	b.AddInterface("a", rdA.read, func(buf []byte) error { return nil }, 0)

	failErr := errors.New("boom")
	b.AddInterface("b", func(buf []byte) (int, error) { return 0, nil },
		func(buf []byte) error { return failErr },
		0, WithErrorPolicy(func(iface *ExternalInterface, err error) error { return nil }))

	if _, err := b.ProcessOnce(); err != nil {
		t.Fatalf("ProcessOnce: %v", err)
	}
	if err := b.SendRaw(mkHeader(ndlcom.IDBroadcast, 0, 0, 0), nil); err != nil {
		t.Fatalf("expected write error to be dropped by ErrorPolicy, got %v", err)
	}
}

// TestBridgeFatalWriteErrorPropagates is the default-policy counterpart:
// a write failure with no override is fatal and stops forwarding.
func TestBridgeFatalWriteErrorPropagates(t *testing.T) {
	b := New()
	failErr := errors.New("boom")
	b.AddInterface("a", func(buf []byte) (int, error) { return 0, nil },
		func(buf []byte) error { return failErr }, 0)

	err := b.SendRaw(mkHeader(ndlcom.IDBroadcast, 0, 0, 0), nil)
	if !errors.Is(err, failErr) {
		t.Fatalf("expected fatal write error to propagate, got %v", err)
	}
}

// TestBridgeForwardingDisabled checks that with ForwardingEnabled
// cleared, frames are still dispatched to handlers but nothing is ever
// written to any interface.
func TestBridgeForwardingDisabled(t *testing.T) {
	b := New(WithFlags(0))

	rdA := &scriptedReader{chunks: [][]byte{encodeFrame(t, mkHeader(ndlcom.IDBroadcast, 0x01, 0, 0), nil)}}
	wrA := &recordingWriter{}
	b.AddInterface("a", rdA.read, wrA.write, 0)

	rdB := &scriptedReader{}
	wrB := &recordingWriter{}
	b.AddInterface("b", rdB.read, wrB.write, 0)

	var dispatched int
	b.RegisterHandler(func(header ndlcom.Header, payload []byte, origin *ExternalInterface) {
		dispatched++
	}, 0)

	if _, err := b.ProcessOnce(); err != nil {
		t.Fatalf("ProcessOnce: %v", err)
	}
	if dispatched != 1 {
		t.Fatalf("expected handler dispatched once, got %d", dispatched)
	}
	if len(wrB.writes) != 0 {
		t.Fatalf("expected no forwarding with ForwardingEnabled cleared, got %d writes", len(wrB.writes))
	}
}

// TestBridgeHandlerNoInternalFlag checks that HandlerFlags.NoInternal
// excludes a handler from internally-originated (nil origin) frames.
func TestBridgeHandlerNoInternalFlag(t *testing.T) {
	b := New()
	var calls int
	b.RegisterHandler(func(header ndlcom.Header, payload []byte, origin *ExternalInterface) {
		calls++
	}, NoInternal)

	if err := b.SendRaw(mkHeader(ndlcom.IDBroadcast, 0, 0, 0), nil); err != nil {
		t.Fatalf("SendRaw: %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected NoInternal handler to be skipped for internal origin, got %d calls", calls)
	}
}

// TestBridgeStatusReflectsState checks Status() surfaces interface and
// route snapshots consistent with prior activity.
func TestBridgeStatusReflectsState(t *testing.T) {
	b := New()
	rdA := &scriptedReader{chunks: [][]byte{encodeFrame(t, mkHeader(0xFF, 0x10, 0, 0), nil)}}
	wrA := &recordingWriter{}
	b.AddInterface("a", rdA.read, wrA.write, Mirror)

	if _, err := b.ProcessOnce(); err != nil {
		t.Fatalf("ProcessOnce: %v", err)
	}

	st := b.Status()
	if len(st.Interfaces) != 1 || st.Interfaces[0].Name != "a" {
		t.Fatalf("unexpected interface status: %+v", st.Interfaces)
	}
	if st.Interfaces[0].Flags&Mirror == 0 {
		t.Fatalf("expected mirror flag reflected in status")
	}
	if st.Interfaces[0].BytesRx == 0 {
		t.Fatalf("expected nonzero BytesRx after a receive")
	}
}
