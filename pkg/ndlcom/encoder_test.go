package ndlcom

import (
	"bytes"
	"testing"
)

// TestEncodeS1 is scenario S1 from the spec: an empty-payload frame.
func TestEncodeS1(t *testing.T) {
	h := Header{ReceiverID: 0x01, SenderID: 0x02, Counter: 0x01, DataLen: 0}
	out := make([]byte, EncodedSize(0))
	n, err := Encode(h, nil, out)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := []byte{0x7E, 0x01, 0x02, 0x01, 0x00, 0x02, 0x7E}
	if !bytes.Equal(out[:n], want) {
		t.Fatalf("Encode = % X, want % X", out[:n], want)
	}
}

// TestEncodeS2 is scenario S2: a frame whose payload contains an
// unescaped FLAG byte that must be stuffed. The CRC byte is stuffed only
// if it equals FLAG or ESC; for this header and payload it is 0xDE, so it
// is emitted as-is.
func TestEncodeS2(t *testing.T) {
	h := Header{ReceiverID: 1, SenderID: 2, Counter: 0xB9, DataLen: 8}
	payload := []byte{0x12, 0x00, 0x00, 0x7E, 0x00, 0x00, 0x00, 0x00}

	var crc Crc
	for _, b := range []byte{0x01, 0x02, 0xB9, 0x08, 0x12, 0x00, 0x00, 0x7E, 0x00, 0x00, 0x00, 0x00} {
		crc = crcUpdate(crc, b)
	}

	out := make([]byte, EncodedSize(len(payload)))
	n, err := Encode(h, payload, out)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	want := []byte{0x7E, 0x01, 0x02, 0xB9, 0x08, 0x12, 0x00, 0x00, 0x7D, 0x5E, 0x00, 0x00, 0x00, 0x00}
	want = append(want, stuffedCrcBytes(crc)...)
	want = append(want, 0x7E)

	if !bytes.Equal(out[:n], want) {
		t.Fatalf("Encode = % X, want % X", out[:n], want)
	}
}

func stuffedCrcBytes(crc Crc) []byte {
	buf := make([]byte, 2)
	n := stuffByte(buf, byte(crc))
	return buf[:n]
}

func TestEncodeOverflow(t *testing.T) {
	h := Header{ReceiverID: 1, SenderID: 2, Counter: 0, DataLen: 4}
	out := make([]byte, EncodedSize(4)-1)
	n, err := Encode(h, []byte{1, 2, 3, 4}, out)
	if err != ErrOverflow {
		t.Fatalf("err = %v, want ErrOverflow", err)
	}
	if n != 0 {
		t.Fatalf("n = %d, want 0 on overflow", n)
	}
}

func TestEncodeScatterMatchesEncode(t *testing.T) {
	h := Header{ReceiverID: 0x10, SenderID: 0x20, Counter: 5, DataLen: 6}
	payload := []byte{1, 2, 3, 4, 5, 6}

	flat := make([]byte, EncodedSize(len(payload)))
	n1, err := Encode(h, payload, flat)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	scattered := make([]byte, EncodedSize(len(payload)))
	n2, err := EncodeScatter(h, [][]byte{payload[:2], payload[2:4], payload[4:]}, scattered)
	if err != nil {
		t.Fatalf("EncodeScatter: %v", err)
	}

	if n1 != n2 || !bytes.Equal(flat[:n1], scattered[:n2]) {
		t.Fatalf("scatter mismatch: % X vs % X", flat[:n1], scattered[:n2])
	}
}

func TestEncodedSizeWorstCase(t *testing.T) {
	if got := EncodedSize(0); got != 2+2*(4+0+1) {
		t.Fatalf("EncodedSize(0) = %d", got)
	}
	if got := EncodedSize(255); got != 2+2*(4+255+1) {
		t.Fatalf("EncodedSize(255) = %d", got)
	}
}
