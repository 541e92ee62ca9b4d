package transport

import (
	"fmt"
	"net"
	"sync"
	"time"
)

// Default UDP ports per §6's `udp://` row.
const (
	DefaultUDPRxPort = 34000
	DefaultUDPTxPort = 34001
)

// UDP is a `udp://` transport. It listens on rxPort; if txAddr is the
// zero value (auto-reply mode — no explicit tx_port was given) it sends
// replies to whichever source address it last received a datagram from,
// matching §6's "auto-reply to observed src" behavior; otherwise every
// write goes to the fixed txAddr.
type UDP struct {
	conn *net.UDPConn

	mu      sync.Mutex
	auto    bool
	lastSrc *net.UDPAddr
	txAddr  *net.UDPAddr
}

// OpenUDP listens on host:rxPort. When txPort is 0, the transport
// auto-replies to the most recently observed sender; otherwise every
// write targets host:txPort.
func OpenUDP(host string, rxPort, txPort int) (*UDP, error) {
	if rxPort == 0 {
		rxPort = DefaultUDPRxPort
	}
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP(host), Port: rxPort})
	if err != nil {
		// A host that isn't a local bind address (the common case: the
		// peer's hostname) still binds to the wildcard address; rxPort is
		// what actually matters for ListenUDP.
		conn, err = net.ListenUDP("udp", &net.UDPAddr{Port: rxPort})
		if err != nil {
			return nil, fmt.Errorf("transport: listen udp :%d: %w", rxPort, err)
		}
	}

	u := &UDP{conn: conn}
	if txPort == 0 {
		u.auto = true
	} else {
		txAddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", host, txPort))
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("transport: resolve udp tx addr %s:%d: %w", host, txPort, err)
		}
		u.txAddr = txAddr
	}
	return u, nil
}

// Read implements bridge.ReadFunc: a short deadline makes ReadFromUDP
// behave as a non-blocking poll, since net.UDPConn has no true
// zero-wait read.
func (u *UDP) Read(buf []byte) (int, error) {
	if err := u.conn.SetReadDeadline(time.Now().Add(time.Millisecond)); err != nil {
		return 0, fmt.Errorf("transport: udp set deadline: %w", err)
	}
	n, src, err := u.conn.ReadFromUDP(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return 0, nil
		}
		return 0, fmt.Errorf("transport: udp read: %w", err)
	}
	if u.auto {
		u.mu.Lock()
		u.lastSrc = src
		u.mu.Unlock()
	}
	return n, nil
}

// Write implements bridge.WriteFunc.
func (u *UDP) Write(buf []byte) error {
	dst := u.txAddr
	if u.auto {
		u.mu.Lock()
		dst = u.lastSrc
		u.mu.Unlock()
		if dst == nil {
			// Nothing observed yet; silently drop, matching the bridge's
			// tolerance for transports with no peer to reply to.
			return nil
		}
	}
	if _, err := u.conn.WriteToUDP(buf, dst); err != nil {
		return fmt.Errorf("transport: udp write: %w", err)
	}
	return nil
}

// Close closes the socket.
func (u *UDP) Close() error { return u.conn.Close() }
