package ndlcom

// Crc is the running state of the NDLCom checksum: an 8-bit XOR over
// every decoded header and payload byte, in order. There is no
// finalization step and no table.
type Crc uint8

// crcUpdate folds one decoded byte into crc, seeded at 0x00 by the
// caller (the zero value of Crc).
func crcUpdate(crc Crc, b byte) Crc {
	return crc ^ Crc(b)
}
