package transport

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// PTY is a `pty://<symlink>` transport: the master side of a freshly
// allocated pseudo-terminal pair, with symlink pointed at the slave
// device so an external process (a simulator, a test harness) can open
// it the way it would a real serial port.
type PTY struct {
	master *os.File
	slave  *os.File
	link   string

	pump *pump
}

// OpenPTY allocates a pty pair via openpty(3) and symlinks link to the
// slave's device path.
func OpenPTY(link string) (*PTY, error) {
	masterFd, slaveFd, slaveName, err := unix.Openpty()
	if err != nil {
		return nil, fmt.Errorf("transport: openpty: %w", err)
	}
	master := os.NewFile(uintptr(masterFd), "ptmx")
	slave := os.NewFile(uintptr(slaveFd), slaveName)

	os.Remove(link)
	if err := os.Symlink(slaveName, link); err != nil {
		master.Close()
		slave.Close()
		return nil, fmt.Errorf("transport: symlink %q -> %q: %w", link, slaveName, err)
	}

	return &PTY{master: master, slave: slave, link: link, pump: newPump(master, 256)}, nil
}

// Read implements bridge.ReadFunc.
func (p *PTY) Read(buf []byte) (int, error) { return p.pump.read(buf) }

// Write implements bridge.WriteFunc.
func (p *PTY) Write(buf []byte) error {
	if _, err := p.master.Write(buf); err != nil {
		return fmt.Errorf("transport: pty write: %w", err)
	}
	return nil
}

// Close stops the read pump, closes both ends of the pty, and removes
// the symlink.
func (p *PTY) Close() error {
	p.pump.stop()
	p.slave.Close()
	p.master.Close()
	os.Remove(p.link)
	return nil
}
