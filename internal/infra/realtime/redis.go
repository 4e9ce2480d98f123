// Package realtime mirrors billing records into Redis and announces each
// change on a pub/sub channel for live listeners.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultPrefix  = "tc:"
	DefaultChannel = "tc:changes"
)

// Change is the message published for every mirror write.
type Change struct {
	Op   string          `json:"op"`
	Path string          `json:"path"`
	Data json.RawMessage `json:"data,omitempty"`
	At   time.Time       `json:"at"`
}

type RedisMirror struct {
	client  redis.UniversalClient
	prefix  string
	channel string
}

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

func NewRedisMirror(client redis.UniversalClient) *RedisMirror {
	return &RedisMirror{client: client, prefix: DefaultPrefix, channel: DefaultChannel}
}

func (m *RedisMirror) Key(path string) string { return m.prefix + path }

func (m *RedisMirror) Put(ctx context.Context, path string, payload []byte) error {
	msg, err := json.Marshal(Change{Op: "set", Path: path, Data: payload, At: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encode change for %s: %w", path, err)
	}
	_, err = m.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, m.Key(path), payload, 0)
		p.Publish(ctx, m.channel, msg)
		return nil
	})
	if err != nil {
		return fmt.Errorf("mirror %s: %w", path, err)
	}
	return nil
}

func (m *RedisMirror) Delete(ctx context.Context, path string) error {
	msg, err := json.Marshal(Change{Op: "remove", Path: path, At: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encode change for %s: %w", path, err)
	}
	_, err = m.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, m.Key(path))
		p.Publish(ctx, m.channel, msg)
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// Get reads a mirrored record. ok is false when the path is absent.
func (m *RedisMirror) Get(ctx context.Context, path string) (json.RawMessage, bool, error) {
	b, err := m.client.Get(ctx, m.Key(path)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", path, err)
	}
	return b, true, nil
}

// Subscribe streams changes until ctx is cancelled.
func (m *RedisMirror) Subscribe(ctx context.Context) (<-chan Change, error) {
	sub := m.client.Subscribe(ctx, m.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", m.channel, err)
	}
	out := make(chan Change)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var c Change
				if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
					continue
				}
				select {
				case out <- c:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
