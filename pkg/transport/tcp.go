package transport

import (
	"fmt"
	"net"
)

// DefaultTCPClientPort matches the `tcpclient://` URI default of §6.
const DefaultTCPClientPort = 2000

// TCPClient is a `tcpclient://` transport: a blocking connect (per §6),
// then non-blocking reads off a background pump, same as Serial.
type TCPClient struct {
	conn net.Conn
	pump *pump
}

// DialTCPClient connects to host:port (port 0 selects DefaultTCPClientPort).
func DialTCPClient(host string, port int) (*TCPClient, error) {
	if port == 0 {
		port = DefaultTCPClientPort
	}
	conn, err := net.Dial("tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return nil, fmt.Errorf("transport: dial tcp %s:%d: %w", host, port, err)
	}
	return &TCPClient{conn: conn, pump: newPump(conn, 1024)}, nil
}

// Read implements bridge.ReadFunc.
func (c *TCPClient) Read(buf []byte) (int, error) { return c.pump.read(buf) }

// Write implements bridge.WriteFunc.
func (c *TCPClient) Write(buf []byte) error {
	if _, err := c.conn.Write(buf); err != nil {
		return fmt.Errorf("transport: tcp write: %w", err)
	}
	return nil
}

// Close stops the read pump and closes the connection.
func (c *TCPClient) Close() error {
	c.pump.stop()
	return c.conn.Close()
}
