package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultChannel is the Redis channel shared by every hub.
const DefaultChannel = "learnhub:realtime"

// RedisBackplane implements Backplane using Redis pub/sub.
type RedisBackplane struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewRedisBackplane creates a Redis pub/sub bridge for hub events.
func NewRedisBackplane(client *redis.Client, logger *zap.Logger) *RedisBackplane {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBackplane{client: client, channel: DefaultChannel, logger: logger}
}

// Publish sends an envelope to every subscribed hub.
func (r *RedisBackplane) Publish(ctx context.Context, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, body).Err()
}

// Subscribe confirms the subscription, then calls handler for each envelope until ctx is done.
func (r *RedisBackplane) Subscribe(ctx context.Context, handler func(Envelope)) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe: %w", err)
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					r.logger.Warn("backplane: bad envelope", zap.Error(err))
					continue
				}
				handler(env)
			}
		}
	}()
	return nil
}
