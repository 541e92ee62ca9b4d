package ndlcom

import (
	"errors"
	"fmt"
)

// ErrOverflow is returned by Encode/EncodeScatter when out is too small to
// hold the worst-case encoded frame. No partial success length is ever
// reported alongside it.
var ErrOverflow = errors.New("ndlcom: output buffer too small")

// Encode byte-stuffs header and payload into out, appending the trailing
// CRC and opening/closing flags, and returns the number of bytes written.
//
// Pre: len(payload) == int(header.DataLen).
func Encode(header Header, payload []byte, out []byte) (int, error) {
	return EncodeScatter(header, [][]byte{payload}, out)
}

// EncodeScatter behaves like Encode but accepts payload split across
// multiple contiguous segments whose combined length equals
// header.DataLen; it produces the identical byte sequence Encode would
// for the concatenation of segments.
func EncodeScatter(header Header, segments [][]byte, out []byte) (int, error) {
	total := 0
	for _, s := range segments {
		total += len(s)
	}
	if total != int(header.DataLen) {
		return 0, fmt.Errorf("ndlcom: payload length %d does not match header.DataLen %d", total, header.DataLen)
	}
	if len(out) < EncodedSize(total) {
		return 0, ErrOverflow
	}

	n := 0
	var crc Crc

	put := func(b byte) {
		crc = crcUpdate(crc, b)
		n += stuffByte(out[n:], b)
	}

	out[n] = Flag
	n++

	put(header.ReceiverID)
	put(header.SenderID)
	put(header.Counter)
	put(header.DataLen)
	for _, s := range segments {
		for _, b := range s {
			put(b)
		}
	}

	// The CRC byte is appended after the payload and is itself subject
	// to escaping, but it is not folded into its own computation.
	n += stuffByte(out[n:], byte(crc))

	out[n] = Flag
	n++

	return n, nil
}

// stuffByte writes the byte-stuffed form of b into out and returns the
// number of bytes written (1 or 2).
func stuffByte(out []byte, b byte) int {
	if b == Flag || b == Esc {
		out[0] = Esc
		out[1] = b ^ 0x20
		return 2
	}
	out[0] = b
	return 1
}
