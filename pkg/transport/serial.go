package transport

import (
	"fmt"

	"go.bug.st/serial"
)

// DefaultSerialBaud matches the `serial://` URI default of §6.
const DefaultSerialBaud = 115200

// Serial is a `serial://` transport: an 8N1 raw exclusive-mode serial
// port, read via a background pump (go.bug.st/serial ports block on
// Read the same way the teacher's tarm/serial port did) and written to
// directly, since writes need not be non-blocking.
type Serial struct {
	port serial.Port
	pump *pump
}

// OpenSerial opens device at baud (0 selects DefaultSerialBaud), 8 data
// bits, no parity, one stop bit, matching the original's termios setup.
func OpenSerial(device string, baud int) (*Serial, error) {
	if baud == 0 {
		baud = DefaultSerialBaud
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("transport: open serial %q: %w", device, err)
	}
	return &Serial{port: port, pump: newPump(port, 256)}, nil
}

// Read implements bridge.ReadFunc.
func (s *Serial) Read(buf []byte) (int, error) { return s.pump.read(buf) }

// Write implements bridge.WriteFunc.
func (s *Serial) Write(buf []byte) error {
	_, err := s.port.Write(buf)
	if err != nil {
		return fmt.Errorf("transport: serial write: %w", err)
	}
	return nil
}

// Close stops the read pump and closes the underlying port.
func (s *Serial) Close() error {
	s.pump.stop()
	return s.port.Close()
}
