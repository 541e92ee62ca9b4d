package transport

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Pipe is a `pipe://<path>` transport: creates `<path>_rx` and
// `<path>_tx` FIFOs (per §6) and exchanges hex-encoded, newline-
// delimited byte frames over them, matching the original's
// text-pipe-friendly framing for a transport meant to be driven by
// shell scripts during development.
type Pipe struct {
	rxPath, txPath string

	rxFile *os.File
	txFile *os.File

	pump *pump

	rawPending     []byte // raw hex text not yet terminated by '\n'
	decodedPending []byte // decoded bytes not yet handed to the caller
}

// OpenPipe creates (if absent) and opens the rx/tx FIFO pair rooted at
// path.
func OpenPipe(path string) (*Pipe, error) {
	rxPath := path + "_rx"
	txPath := path + "_tx"

	for _, p := range []string{rxPath, txPath} {
		if err := unix.Mkfifo(p, 0o600); err != nil && err != unix.EEXIST {
			return nil, fmt.Errorf("transport: mkfifo %q: %w", p, err)
		}
	}

	// O_RDWR (rather than O_RDONLY) keeps the rx open()/read() from
	// blocking for a writer and immediately returning EOF once one
	// disconnects, same trick the original pipe transport relies on.
	rxFile, err := os.OpenFile(rxPath, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("transport: open rx fifo %q: %w", rxPath, err)
	}
	txFile, err := os.OpenFile(txPath, os.O_RDWR, 0)
	if err != nil {
		rxFile.Close()
		return nil, fmt.Errorf("transport: open tx fifo %q: %w", txPath, err)
	}

	p := &Pipe{rxPath: rxPath, txPath: txPath, rxFile: rxFile, txFile: txFile}
	p.pump = newPump(bufio.NewReader(rxFile), 4096)
	return p, nil
}

// Read implements bridge.ReadFunc: it drains whatever raw hex text the
// pump has accumulated, decodes every complete newline-terminated line,
// and returns previously-decoded bytes first so a caller with a small
// buf still makes progress across repeated calls.
func (p *Pipe) Read(buf []byte) (int, error) {
	if len(p.decodedPending) == 0 {
		var raw [4096]byte
		n, err := p.pump.read(raw[:])
		if n > 0 {
			p.rawPending = append(p.rawPending, raw[:n]...)
			if derr := p.decodeCompleteLines(); derr != nil {
				return 0, derr
			}
		}
		if len(p.decodedPending) == 0 {
			return 0, err
		}
	}
	n := copy(buf, p.decodedPending)
	p.decodedPending = p.decodedPending[n:]
	return n, nil
}

func (p *Pipe) decodeCompleteLines() error {
	for {
		i := bytes.IndexByte(p.rawPending, '\n')
		if i < 0 {
			return nil
		}
		line := bytes.TrimRight(p.rawPending[:i], "\r")
		p.rawPending = p.rawPending[i+1:]
		if len(line) == 0 {
			continue
		}
		decoded, err := hex.DecodeString(string(line))
		if err != nil {
			return fmt.Errorf("transport: pipe hex decode: %w", err)
		}
		p.decodedPending = append(p.decodedPending, decoded...)
	}
}

// Write implements bridge.WriteFunc: hex-encodes buf and appends a
// trailing newline.
func (p *Pipe) Write(buf []byte) error {
	line := hex.EncodeToString(buf) + "\n"
	if _, err := p.txFile.WriteString(line); err != nil {
		return fmt.Errorf("transport: pipe write: %w", err)
	}
	return nil
}

// Close stops the read pump, closes both FIFOs, and removes them.
func (p *Pipe) Close() error {
	p.pump.stop()
	p.rxFile.Close()
	p.txFile.Close()
	os.Remove(p.rxPath)
	os.Remove(p.txPath)
	return nil
}
