// Package redis carries change events between server processes over a Redis
// Pub/Sub channel.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	applog "salvadanaio/internal/log"
	"salvadanaio/internal/notify"
)

const (
	DefaultChannel = "salvadanaio.mascots"
	dialTimeout    = 5 * time.Second
)

type Transport struct {
	rdb     *goredis.Client
	channel string
	logger  *applog.Logger
}

var _ notify.Transport = (*Transport)(nil)

// New connects to addr and verifies the server with a PING.
func New(ctx context.Context, addr, channel string, logger *applog.Logger) (*Transport, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("missing redis address")
	}
	if strings.TrimSpace(channel) == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = applog.Discard()
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: dialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Transport{
		rdb:     rdb,
		channel: channel,
		logger:  logger.WithComponent(applog.ComponentRedis),
	}, nil
}

func (t *Transport) Send(ctx context.Context, msg notify.Message) error {
	raw, err := encode(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := t.rdb.Publish(ctx, t.channel, raw).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Receive subscribes to the channel and blocks until ctx is done or the
// subscription closes.
func (t *Transport) Receive(ctx context.Context, fn func(notify.Message)) error {
	sub := t.rdb.Subscribe(ctx, t.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok || m == nil {
				return errors.New("redis subscription closed")
			}
			msg, err := decode(m.Payload)
			if err != nil {
				t.logger.Warn("Bad change payload", applog.FieldError, err)
				continue
			}
			fn(msg)
		}
	}
}

func (t *Transport) Close() error {
	return t.rdb.Close()
}

func encode(msg notify.Message) ([]byte, error) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	return json.Marshal(msg)
}

func decode(payload string) (notify.Message, error) {
	var msg notify.Message
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return notify.Message{}, err
	}
	if msg.Event == "" {
		return notify.Message{}, errors.New("payload without event")
	}
	return msg, nil
}
