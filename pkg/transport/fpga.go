package transport

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// DefaultFPGADevice matches the `fpga://` URI default of §6.
const DefaultFPGADevice = "/dev/NDLCom"

// FPGA is an `fpga://<device>` transport: a raw character device opened
// O_NONBLOCK, so read(2) itself already
// satisfies the bridge's non-blocking contract (EAGAIN maps to (0,
// nil)) without a background pump — the one transport here that
// doesn't need one.
type FPGA struct {
	fd int
}

// OpenFPGA opens device (default DefaultFPGADevice when empty) for
// non-blocking read/write.
func OpenFPGA(device string) (*FPGA, error) {
	if device == "" {
		device = DefaultFPGADevice
	}
	fd, err := unix.Open(device, unix.O_RDWR|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("transport: open fpga device %q: %w", device, err)
	}
	return &FPGA{fd: fd}, nil
}

// Read implements bridge.ReadFunc.
func (f *FPGA) Read(buf []byte) (int, error) {
	n, err := unix.Read(f.fd, buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, nil
		}
		return 0, fmt.Errorf("transport: fpga read: %w", err)
	}
	return n, nil
}

// Write implements bridge.WriteFunc.
func (f *FPGA) Write(buf []byte) error {
	for len(buf) > 0 {
		n, err := unix.Write(f.fd, buf)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				continue
			}
			return fmt.Errorf("transport: fpga write: %w", err)
		}
		buf = buf[n:]
	}
	return nil
}

// Close closes the device fd.
func (f *FPGA) Close() error {
	return unix.Close(f.fd)
}
