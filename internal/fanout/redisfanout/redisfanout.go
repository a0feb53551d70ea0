package redisfanout

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// One process-wide pub/sub connection, created lazily on first publish.
// The lock makes concurrent first publishers agree on a single client.
var (
	connMu   sync.Mutex
	conn     *redis.Client
	connAddr string
)

func client(addr string) *redis.Client {
	connMu.Lock()
	defer connMu.Unlock()
	if conn != nil && connAddr == addr {
		return conn
	}
	if conn != nil {
		_ = conn.Close()
	}
	conn = redis.NewClient(&redis.Options{Addr: addr})
	connAddr = addr
	return conn
}

// Close tears down the shared connection. Safe to call when nothing was
// ever published.
func Close() {
	connMu.Lock()
	defer connMu.Unlock()
	if conn != nil {
		_ = conn.Close()
		conn = nil
		connAddr = ""
	}
}

func TrackingChannel(trackingNumber string) string {
	return "tracking:" + trackingNumber
}

func UserChannel(userID uint64) string {
	return fmt.Sprintf("user:%d:shipments", userID)
}

// Publisher pushes updates to whoever is subscribed right now: at most
// once, no persistence, no replay.
type Publisher struct {
	addr string
}

func New(addr string) *Publisher {
	return &Publisher{addr: addr}
}

func (p *Publisher) PublishTracking(ctx context.Context, trackingNumber string, payload []byte) error {
	return p.publish(ctx, TrackingChannel(trackingNumber), payload)
}

func (p *Publisher) PublishUserShipments(ctx context.Context, userID uint64, payload []byte) error {
	return p.publish(ctx, UserChannel(userID), payload)
}

func (p *Publisher) publish(ctx context.Context, channel string, payload []byte) error {
	if err := client(p.addr).Publish(ctx, channel, payload).Err(); err != nil {
		return errors.Wrap(err, "redis publish")
	}
	return nil
}
