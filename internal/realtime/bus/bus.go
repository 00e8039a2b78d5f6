// Package bus relays progress messages between server instances over redis pub/sub so a
// stream open on one instance sees writes handled by another.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/coursehub-backend/internal/platform/logger"
	"github.com/yungbote/coursehub-backend/internal/realtime"
)

const DefaultChannel = "coursehub:progress"

type Bus interface {
	Publish(ctx context.Context, msg realtime.SSEMessage) error
	// Forward delivers every relayed message to deliver until ctx ends. It returns once
	// the subscription is confirmed.
	Forward(ctx context.Context, deliver func(realtime.SSEMessage)) error
}

// RedisBus shares its client with the rest of the process and never closes it.
type RedisBus struct {
	log     *logger.Logger
	rdb     goredis.UniversalClient
	channel string
}

func NewRedisBus(log *logger.Logger, rdb goredis.UniversalClient, channel string) (*RedisBus, error) {
	if rdb == nil {
		return nil, errors.New("bus: redis client required")
	}
	if channel = strings.TrimSpace(channel); channel == "" {
		channel = DefaultChannel
	}
	return &RedisBus{log: log.With("component", "ProgressBus", "channel", channel), rdb: rdb, channel: channel}, nil
}

func (b *RedisBus) Publish(ctx context.Context, msg realtime.SSEMessage) error {
	payload, err := encode(msg)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, payload).Err()
}

func (b *RedisBus) Forward(ctx context.Context, deliver func(realtime.SSEMessage)) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("bus: subscribe %s: %w", b.channel, err)
	}
	go func() {
		defer sub.Close()
		incoming := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-incoming:
				if !ok {
					return
				}
				msg, err := decode(m.Payload)
				if err != nil {
					b.log.Warn("dropping undecodable relay payload", "error", err)
					continue
				}
				deliver(msg)
			}
		}
	}()
	return nil
}

func encode(msg realtime.SSEMessage) ([]byte, error) {
	if msg.Channel == "" {
		return nil, errors.New("bus: message has no channel")
	}
	return json.Marshal(msg)
}

func decode(payload string) (realtime.SSEMessage, error) {
	var msg realtime.SSEMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return msg, err
	}
	if msg.Channel == "" {
		return msg, errors.New("bus: message has no channel")
	}
	return msg, nil
}
