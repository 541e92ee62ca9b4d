package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/librescoot/ndlcom-bridge/pkg/bridge"
	"github.com/librescoot/ndlcom-bridge/pkg/node"
	"github.com/librescoot/ndlcom-bridge/pkg/stats"
	"github.com/librescoot/ndlcom-bridge/pkg/uri"
)

// ifaceList collects repeated -iface/-mirror-iface flags into an
// ordered slice; flag.Value has no built-in repeated-string type.
type ifaceList []string

func (l *ifaceList) String() string { return "" }
func (l *ifaceList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

// Configuration flags
var (
	ifaces       ifaceList
	mirrorIfaces ifaceList

	nodeID = flag.Int("node-id", -1, "register a local node at this device id (-1 disables)")

	redisAddr     = flag.String("redis-addr", "", "Redis server address for stats publishing (empty disables)")
	redisPass     = flag.String("redis-pass", "", "Redis password")
	redisDB       = flag.Int("redis-db", 0, "Redis database number")
	statsKey      = flag.String("stats-key", "ndlcom-bridge", "Redis hash key for published counters")
	statsChannel  = flag.String("stats-channel", "ndlcom-bridge", "Redis channel for stats change notifications")
	statsInterval = flag.Duration("stats-interval", 5*time.Second, "interval between stats publishes")
)

func init() {
	flag.Var(&ifaces, "iface", "interface URI to open (repeatable)")
	flag.Var(&mirrorIfaces, "mirror-iface", "interface URI to open in mirror mode (repeatable)")
}

func main() {
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Printf("Starting NDLCom bridge")

	b := bridge.New()

	for _, u := range ifaces {
		log.Printf("opening interface %q", u)
		if _, err := uri.Open(b, u, 0); err != nil {
			log.Fatalf("failed to open interface %q: %v", u, err)
		}
	}
	for _, u := range mirrorIfaces {
		log.Printf("opening mirror interface %q", u)
		if _, err := uri.Open(b, u, bridge.Mirror); err != nil {
			log.Fatalf("failed to open mirror interface %q: %v", u, err)
		}
	}

	if *nodeID >= 0 {
		node.New(b, byte(*nodeID))
		log.Printf("registered local node at device id 0x%02x", *nodeID)
	}

	var sink *stats.Sink
	if *redisAddr != "" {
		var err error
		sink, err = stats.NewSink(*redisAddr, *redisPass, *redisDB, *statsKey, *statsChannel)
		if err != nil {
			log.Fatalf("failed to connect stats sink: %v", err)
		}
		defer sink.Close()
		log.Printf("publishing stats to redis %s every %s", *redisAddr, *statsInterval)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var nextStats time.Time
	if sink != nil {
		nextStats = time.Now().Add(*statsInterval)
	}

	log.Printf("bridge running with %d interface(s)", len(b.Interfaces()))
	for {
		select {
		case <-sigCh:
			log.Printf("shutting down...")
			return
		default:
		}

		n, err := b.ProcessOnce()
		if err != nil {
			log.Printf("bridge process error: %v", err)
		}
		if n == 0 {
			time.Sleep(time.Millisecond)
		}

		if sink != nil && time.Now().After(nextStats) {
			if err := sink.Publish(b); err != nil {
				log.Printf("stats publish error: %v", err)
			}
			nextStats = time.Now().Add(*statsInterval)
		}
	}
}
