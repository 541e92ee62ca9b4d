package ndlcom

import "testing"

// Property 9: per-receiver counters increment independently and wrap
// modulo 256.
func TestHeaderConfigCounterMonotonicity(t *testing.T) {
	hc := NewHeaderConfig(0x10)

	for i := 0; i < 3; i++ {
		h := hc.Prepare(0x20, 0)
		if int(h.Counter) != i {
			t.Fatalf("receiver 0x20 counter[%d] = %d, want %d", i, h.Counter, i)
		}
		if h.SenderID != 0x10 {
			t.Fatalf("sender id = %#x, want 0x10", h.SenderID)
		}
	}

	// Independent counter for a different receiver, unaffected by the above.
	h := hc.Prepare(0x21, 0)
	if h.Counter != 0 {
		t.Fatalf("receiver 0x21 counter = %d, want 0", h.Counter)
	}

	// Wraps modulo 256.
	hc2 := NewHeaderConfig(0x10)
	for i := 0; i < 256; i++ {
		hc2.Prepare(0x30, 0)
	}
	h = hc2.Prepare(0x30, 0)
	if h.Counter != 0 {
		t.Fatalf("counter after 257 prepares = %d, want wrap to 0", h.Counter)
	}
}

func TestHeaderConfigSetOwnSenderIDResetsCounters(t *testing.T) {
	hc := NewHeaderConfig(0x01)
	hc.Prepare(0x10, 0)
	hc.Prepare(0x10, 0)

	hc.SetOwnSenderID(0x02)
	h := hc.Prepare(0x10, 0)
	if h.Counter != 0 {
		t.Fatalf("counter after SetOwnSenderID = %d, want 0", h.Counter)
	}
	if h.SenderID != 0x02 {
		t.Fatalf("sender id = %#x, want 0x02", h.SenderID)
	}
}
