package stats

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/librescoot/ndlcom-bridge/pkg/bridge"
)

// Sink publishes a Bridge's Status() to Redis, the same
// HSet-then-Publish shape the teacher's pkg/redis/client.go used for
// vehicle-state fields, repurposed here to carry bridge health instead.
// It is wired as a periodic external call from cmd/ndlcom-bridge, never
// from inside Bridge.ProcessOnce — publishing is I/O-bound and has no
// place on the hot decode path.
type Sink struct {
	client  *redis.Client
	ctx     context.Context
	key     string
	channel string
}

// NewSink connects to addr and returns a Sink that writes bridge
// counters under key and publishes change notifications on channel.
func NewSink(addr, password string, db int, key, channel string) (*Sink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("stats: connect redis: %w", err)
	}
	return &Sink{client: client, ctx: ctx, key: key, channel: channel}, nil
}

// Publish writes every interface's counters to a Redis hash
// (field "<name>:bytes_tx" etc.) and publishes one notification per
// call, matching WriteAndPublish*'s pipeline pattern in the teacher.
func (s *Sink) Publish(b *bridge.Bridge) error {
	st := b.Status()

	pipe := s.client.Pipeline()
	for _, is := range st.Interfaces {
		pipe.HSet(s.ctx, s.key, fmt.Sprintf("%s:bytes_tx", is.Name), is.BytesTx)
		pipe.HSet(s.ctx, s.key, fmt.Sprintf("%s:bytes_rx", is.Name), is.BytesRx)
		pipe.HSet(s.ctx, s.key, fmt.Sprintf("%s:crc_fail_count", is.Name), is.CrcFailCount)
		pipe.HSet(s.ctx, s.key, fmt.Sprintf("%s:paused", is.Name), is.Paused)
	}
	pipe.Publish(s.ctx, s.channel, fmt.Sprintf("interfaces:%d", len(st.Interfaces)))

	if _, err := pipe.Exec(s.ctx); err != nil {
		return fmt.Errorf("stats: publish to redis: %w", err)
	}
	return nil
}

// Close closes the underlying Redis client.
func (s *Sink) Close() error {
	return s.client.Close()
}
