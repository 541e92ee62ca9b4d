package ndlcom

// HeaderConfig holds a node's own sender id and its per-receiver packet
// counters. It is mutated only by the Node that owns it.
type HeaderConfig struct {
	ownSenderID byte
	counters    [256]byte
}

// NewHeaderConfig returns a HeaderConfig for the given sender id with all
// counters at zero.
func NewHeaderConfig(ownSenderID byte) *HeaderConfig {
	return &HeaderConfig{ownSenderID: ownSenderID}
}

// OwnSenderID returns the configured sender id.
func (hc *HeaderConfig) OwnSenderID() byte { return hc.ownSenderID }

// SetOwnSenderID changes the sender id and zeroes every per-receiver
// counter, as a change of identity invalidates any outstanding sequence.
func (hc *HeaderConfig) SetOwnSenderID(id byte) {
	hc.ownSenderID = id
	hc.counters = [256]byte{}
}

// Prepare builds a Header addressed to receiverID with dataLen payload
// bytes, stamping the next counter value for that receiver and
// incrementing it (wrapping modulo 256, independently per receiver).
func (hc *HeaderConfig) Prepare(receiverID byte, dataLen byte) Header {
	h := Header{
		ReceiverID: receiverID,
		SenderID:   hc.ownSenderID,
		Counter:    hc.counters[receiverID],
		DataLen:    dataLen,
	}
	hc.counters[receiverID]++
	return h
}
