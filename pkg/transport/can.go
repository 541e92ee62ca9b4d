package transport

import (
	"fmt"

	"github.com/brutella/can"
)

// CAN is a `can://<if>:<tx_id>:<rx_id>` transport: classic CAN frames
// whose data payload carries raw NDLCom bytes. rxID filters which
// arbitration ids are accepted into the read queue; txID is stamped on
// every outgoing frame. A CAN frame carries at most 8 data bytes, so a
// single NDLCom-encoded frame is typically split across several CAN
// frames; reassembly is exactly what the stream-oriented ndlcom.Parser
// already does, so the transport itself stays a dumb byte pipe.
type CAN struct {
	bus   *can.Bus
	txID  uint32
	rxID  uint32
	queue byteQueue
}

// OpenCAN opens the named SocketCAN interface (e.g. "can0") and begins
// receiving in the background.
func OpenCAN(ifname string, txID, rxID uint32) (*CAN, error) {
	bus, err := can.NewBusForInterfaceWithName(ifname)
	if err != nil {
		return nil, fmt.Errorf("transport: open can interface %q: %w", ifname, err)
	}

	c := &CAN{bus: bus, txID: txID, rxID: rxID}
	bus.SubscribeFunc(func(frame can.Frame) {
		if frame.ID != c.rxID {
			return
		}
		c.queue.feed(frame.Data[:frame.Length])
	})

	go func() {
		// ConnectAndPublish blocks until Disconnect is called; errors
		// surfacing here (interface down, permission) have no goroutine to
		// report to, so they are logged by the bus implementation itself.
		_ = bus.ConnectAndPublish()
	}()

	return c, nil
}

// Read implements bridge.ReadFunc.
func (c *CAN) Read(buf []byte) (int, error) { return c.queue.read(buf) }

// Write implements bridge.WriteFunc: buf is split into as many 8-byte
// CAN frames as needed, all stamped with txID.
func (c *CAN) Write(buf []byte) error {
	for len(buf) > 0 {
		n := len(buf)
		if n > 8 {
			n = 8
		}
		frame := can.Frame{ID: c.txID, Length: uint8(n)}
		copy(frame.Data[:], buf[:n])
		if err := c.bus.Publish(frame); err != nil {
			return fmt.Errorf("transport: can publish: %w", err)
		}
		buf = buf[n:]
	}
	return nil
}

// Close disconnects the bus.
func (c *CAN) Close() error {
	return c.bus.Disconnect()
}
