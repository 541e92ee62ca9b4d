// Package uri implements the interface-URI mini-language of §6: a
// table-driven factory that turns a URI string into a wired
// bridge.ExternalInterface, replacing the original's variadic recursive
// template dispatch (§9's design note) with a plain slice of
// (regexp, constructor) pairs tried in order.
package uri

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/librescoot/ndlcom-bridge/pkg/bridge"
	"github.com/librescoot/ndlcom-bridge/pkg/transport"
)

// ErrUnknownScheme is returned when no registered pattern matches a URI.
var ErrUnknownScheme = errors.New("uri: unrecognized interface URI")

// Opened is what Open returns: the ExternalInterface it wired into the
// bridge, plus the transport's Closer so the caller can release the
// underlying resource on interface removal.
type Opened struct {
	Interface *bridge.ExternalInterface
	Closer    interface{ Close() error }
}

type rule struct {
	name    string
	pattern *regexp.Regexp
	open    func(b *bridge.Bridge, groups []string, routes string, flags bridge.IfaceFlags) (Opened, error)
}

// rules is tried in order; the first matching pattern wins, mirroring
// the original's first-match-wins chain of interface types.
var rules = []rule{
	{
		name:    "serial",
		pattern: regexp.MustCompile(`^serial://([^:&]+)(?::(\d+))?(?:&(.*))?$`),
		open: func(b *bridge.Bridge, g []string, routes string, flags bridge.IfaceFlags) (Opened, error) {
			baud := 0
			if g[2] != "" {
				n, err := strconv.Atoi(g[2])
				if err != nil {
					return Opened{}, fmt.Errorf("uri: serial baud %q: %w", g[2], err)
				}
				baud = n
			}
			tr, err := transport.OpenSerial(g[1], baud)
			if err != nil {
				return Opened{}, err
			}
			return wire(b, fmt.Sprintf("serial:%s", g[1]), tr.Read, tr.Write, tr, flags), nil
		},
	},
	{
		name:    "udp",
		pattern: regexp.MustCompile(`^udp://([^:&]+)(?::(\d+))?(?::(\d+))?(?:&(.*))?$`),
		open: func(b *bridge.Bridge, g []string, routes string, flags bridge.IfaceFlags) (Opened, error) {
			rxPort, err := atoiDefault(g[2], 0)
			if err != nil {
				return Opened{}, fmt.Errorf("uri: udp rx port %q: %w", g[2], err)
			}
			txPort, err := atoiDefault(g[3], 0)
			if err != nil {
				return Opened{}, fmt.Errorf("uri: udp tx port %q: %w", g[3], err)
			}
			tr, err := transport.OpenUDP(g[1], rxPort, txPort)
			if err != nil {
				return Opened{}, err
			}
			return wire(b, fmt.Sprintf("udp:%s", g[1]), tr.Read, tr.Write, tr, flags), nil
		},
	},
	{
		name:    "tcpclient",
		pattern: regexp.MustCompile(`^tcpclient://([^:&]+)(?::(\d+))?(?:&(.*))?$`),
		open: func(b *bridge.Bridge, g []string, routes string, flags bridge.IfaceFlags) (Opened, error) {
			port, err := atoiDefault(g[2], 0)
			if err != nil {
				return Opened{}, fmt.Errorf("uri: tcpclient port %q: %w", g[2], err)
			}
			tr, err := transport.DialTCPClient(g[1], port)
			if err != nil {
				return Opened{}, err
			}
			return wire(b, fmt.Sprintf("tcpclient:%s", g[1]), tr.Read, tr.Write, tr, flags), nil
		},
	},
	{
		name:    "can",
		pattern: regexp.MustCompile(`^can://([^:&]+):(\d+):(\d+)(?:&(.*))?$`),
		open: func(b *bridge.Bridge, g []string, routes string, flags bridge.IfaceFlags) (Opened, error) {
			txID, err := strconv.ParseUint(g[2], 10, 32)
			if err != nil {
				return Opened{}, fmt.Errorf("uri: can tx_id %q: %w", g[2], err)
			}
			rxID, err := strconv.ParseUint(g[3], 10, 32)
			if err != nil {
				return Opened{}, fmt.Errorf("uri: can rx_id %q: %w", g[3], err)
			}
			tr, err := transport.OpenCAN(g[1], uint32(txID), uint32(rxID))
			if err != nil {
				return Opened{}, err
			}
			return wire(b, fmt.Sprintf("can:%s", g[1]), tr.Read, tr.Write, tr, flags), nil
		},
	},
	{
		name:    "pipe",
		pattern: regexp.MustCompile(`^pipe://([^&]+)(?:&(.*))?$`),
		open: func(b *bridge.Bridge, g []string, routes string, flags bridge.IfaceFlags) (Opened, error) {
			tr, err := transport.OpenPipe(g[1])
			if err != nil {
				return Opened{}, err
			}
			return wire(b, fmt.Sprintf("pipe:%s", g[1]), tr.Read, tr.Write, tr, flags), nil
		},
	},
	{
		name:    "pty",
		pattern: regexp.MustCompile(`^pty://([^&]+)(?:&(.*))?$`),
		open: func(b *bridge.Bridge, g []string, routes string, flags bridge.IfaceFlags) (Opened, error) {
			tr, err := transport.OpenPTY(g[1])
			if err != nil {
				return Opened{}, err
			}
			return wire(b, fmt.Sprintf("pty:%s", g[1]), tr.Read, tr.Write, tr, flags), nil
		},
	},
	{
		name:    "fpga",
		pattern: regexp.MustCompile(`^fpga://([^&]*)(?:&(.*))?$`),
		open: func(b *bridge.Bridge, g []string, routes string, flags bridge.IfaceFlags) (Opened, error) {
			tr, err := transport.OpenFPGA(g[1])
			if err != nil {
				return Opened{}, err
			}
			return wire(b, fmt.Sprintf("fpga:%s", g[1]), tr.Read, tr.Write, tr, flags), nil
		},
	},
}

func atoiDefault(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

func wire(b *bridge.Bridge, name string, read bridge.ReadFunc, write bridge.WriteFunc, closer interface{ Close() error }, flags bridge.IfaceFlags) Opened {
	iface := b.AddInterface(name, read, write, flags)
	return Opened{Interface: iface, Closer: closer}
}

// Open matches uriStr against every registered rule in order, opens the
// matching transport, registers it on b, and pre-seeds the routing
// table per the `&id1,id2,...` suffix if present (see routes.go).
func Open(b *bridge.Bridge, uriStr string, flags bridge.IfaceFlags) (Opened, error) {
	for _, r := range rules {
		m := r.pattern.FindStringSubmatch(uriStr)
		if m == nil {
			continue
		}
		routes := m[len(m)-1]
		opened, err := r.open(b, m, routes, flags)
		if err != nil {
			return Opened{}, fmt.Errorf("uri: open %s interface from %q: %w", r.name, uriStr, err)
		}
		if routes != "" {
			if err := seedRoutes(b, opened.Interface, routes); err != nil {
				return Opened{}, err
			}
		}
		return opened, nil
	}
	return Opened{}, fmt.Errorf("%w: %q", ErrUnknownScheme, uriStr)
}
