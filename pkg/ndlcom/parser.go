package ndlcom

import "math"

// State is one of the parser's life-cycle states. WaitFirstCrc and
// WaitSecondCrc are kept as distinct names for readability even though a
// frame's trailing CRC is a single decoded byte; only WaitFirstCrc is
// ever actually entered (see the zero-length-payload note in step).
type State int

const (
	StateError State = iota
	StateWaitHeader
	StateWaitData
	StateWaitFirstCrc
	StateWaitSecondCrc
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateError:
		return "Error"
	case StateWaitHeader:
		return "WaitHeader"
	case StateWaitData:
		return "WaitData"
	case StateWaitFirstCrc:
		return "WaitFirstCrc"
	case StateWaitSecondCrc:
		return "WaitSecondCrc"
	case StateComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// ParserFlags gates optional parser behavior beyond the wire-mandatory
// state machine.
type ParserFlags uint8

const (
	// FlagStrictAbort promotes an unexpected in-frame FLAG/ESC,FLAG abort
	// (normally a silent reset, §4.3 step 1) into a counted event by also
	// incrementing CrcFailCount, so abort-heavy links show up in
	// statistics. It never changes whether a frame is surfaced.
	FlagStrictAbort ParserFlags = 1 << 0
)

// Parser is a resumable, allocation-free byte-stream decoder. The zero
// value is not usable; construct one with NewParser.
type Parser struct {
	state State
	flags ParserFlags

	header    Header
	headerBuf [HeaderLen]byte
	headerLen int

	payload    [MaxPayloadLen]byte
	payloadLen int

	crc Crc

	lastWasEsc bool
	crcFails   uint32
}

// NewParser returns a Parser ready to receive bytes, starting in
// StateWaitHeader.
func NewParser() *Parser {
	p := &Parser{}
	p.ResetPacket()
	return p
}

// SetFlag / ClearFlag toggle optional parser behavior.
func (p *Parser) SetFlag(f ParserFlags)   { p.flags |= f }
func (p *Parser) ClearFlag(f ParserFlags) { p.flags &^= f }

// State reports the parser's current state.
func (p *Parser) State() State { return p.state }

// CrcFailCount is the monotonic (saturating) count of checksum failures
// observed since the last explicit reset of the counter.
func (p *Parser) CrcFailCount() uint32 { return p.crcFails }

// HasPacket reports whether a complete, verified frame is staged.
func (p *Parser) HasPacket() bool { return p.state == StateComplete }

// Header returns the staged header. Valid only when HasPacket is true.
func (p *Parser) Header() Header { return p.header }

// Payload returns the staged payload. Valid only when HasPacket is true.
// The returned slice aliases the parser's internal buffer and is only
// valid until the next ResetPacket/Receive call.
func (p *Parser) Payload() []byte { return p.payload[:p.payloadLen] }

// ResetPacket transitions the parser to StateWaitHeader from any state,
// clearing the running CRC, the escape flag, and any staged header or
// payload.
func (p *Parser) ResetPacket() {
	p.state = StateWaitHeader
	p.headerLen = 0
	p.payloadLen = 0
	p.crc = 0
	p.lastWasEsc = false
}

// ResetCrcFailCount zeroes the checksum-failure counter.
func (p *Parser) ResetCrcFailCount() { p.crcFails = 0 }

func (p *Parser) incCrcFail() {
	if p.crcFails < math.MaxUint32 {
		p.crcFails++
	}
}

// Receive feeds bytes into the parser, consuming as many as needed to
// either complete the current frame or exhaust data. It never allocates
// and supports byte-at-a-time calls. Once HasPacket is true, Receive
// consumes nothing (returns 0) until ResetPacket is called.
func (p *Parser) Receive(data []byte) int {
	consumed := 0
	for _, raw := range data {
		if p.state == StateComplete {
			break
		}
		consumed++

		b, ok := p.preprocess(raw)
		if !ok {
			continue
		}
		p.step(b)
	}
	return consumed
}

// preprocess runs the escape/flag logic common to every byte before it
// reaches the state machine. It returns the (possibly unmasked) byte and
// whether that byte should be handed to step.
func (p *Parser) preprocess(b byte) (byte, bool) {
	if p.lastWasEsc {
		p.lastWasEsc = false
		if b == Flag {
			// ESC,FLAG is an abort indicator (RFC 1662), not stuffed data.
			if p.flags&FlagStrictAbort != 0 && p.inProgress() {
				p.incCrcFail()
			}
			p.ResetPacket()
			return 0, false
		}
		return b ^ 0x20, true
	}

	if b == Esc {
		p.lastWasEsc = true
		return 0, false
	}

	if b == Flag {
		// An unescaped FLAG always (re)starts a frame. If one was already
		// in progress this is an abort, not a checksum failure.
		if p.flags&FlagStrictAbort != 0 && p.inProgress() {
			p.incCrcFail()
		}
		p.ResetPacket()
		return 0, false
	}

	return b, true
}

// inProgress reports whether a frame is actually underway: at least one
// header byte has been buffered, or the state machine has moved past
// header collection. Used by FlagStrictAbort so both abort paths (a
// bare FLAG and an ESC,FLAG) count on the same predicate instead of the
// state check alone, which stays StateWaitHeader for the whole
// header-collection window (headerLen 0..3).
func (p *Parser) inProgress() bool {
	return p.headerLen > 0 || p.state > StateWaitHeader
}

func (p *Parser) step(b byte) {
	switch p.state {
	case StateWaitHeader:
		p.headerBuf[p.headerLen] = b
		p.headerLen++
		p.crc = crcUpdate(p.crc, b)
		if p.headerLen == HeaderLen {
			p.header = Header{
				ReceiverID: p.headerBuf[0],
				SenderID:   p.headerBuf[1],
				Counter:    p.headerBuf[2],
				DataLen:    p.headerBuf[3],
			}
			p.payloadLen = 0
			if p.header.DataLen == 0 {
				// Zero-length payloads skip straight to the CRC byte; the
				// WaitFirstCrc/WaitSecondCrc split is vestigial (a single
				// CRC byte is read either way).
				p.state = StateWaitFirstCrc
			} else {
				p.state = StateWaitData
			}
		}

	case StateWaitData:
		p.payload[p.payloadLen] = b
		p.payloadLen++
		p.crc = crcUpdate(p.crc, b)
		if p.payloadLen == int(p.header.DataLen) {
			p.state = StateWaitFirstCrc
		}

	case StateWaitFirstCrc:
		if Crc(b) == p.crc {
			p.state = StateComplete
		} else {
			p.incCrcFail()
			p.ResetPacket()
		}

	case StateWaitSecondCrc:
		// Unreachable: kept only so the State enum and its String method
		// stay meaningful against the original design's two-CRC-byte name.

	case StateComplete, StateError:
		// Bytes arriving here are dropped by Receive's loop guard.
	}
}
