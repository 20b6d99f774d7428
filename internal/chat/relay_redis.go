package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisRelay пересылка кадров между инстансами через pub/sub
type RedisRelay struct {
	log     *slog.Logger
	client  *redis.Client
	channel string
	origin  string
}

func NewRedisClient(addr, password string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
}

func NewRedisRelay(log *slog.Logger, client *redis.Client, channel string) *RedisRelay {
	return &RedisRelay{
		log:     log,
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
	}
}

func (r *RedisRelay) Publish(ctx context.Context, env Envelope) error {
	env.Origin = r.origin
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return r.client.Publish(ctx, r.channel, data).Err()
}

// Run слушает канал и доставляет чужие кадры локальным получателям до отмены контекста
func (r *RedisRelay) Run(ctx context.Context, hub *Hub) error {
	const op = "chat.RedisRelay.Run"
	logger := r.log.With(slog.String("op", op), slog.String("channel", r.channel))

	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	// дожидаемся подтверждения подписки
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("%s: failed to subscribe: %w", op, err)
	}
	logger.Info("chat relay subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			logger.Info("chat relay stopped")
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			env, err := decodeEnvelope([]byte(msg.Payload))
			if err != nil {
				logger.Warn("bad relay payload", slog.Any("error", err))
				continue
			}
			if env.Origin == r.origin {
				continue
			}
			hub.DeliverLocal(env.ItemID, env.ReceiverID, env.Frame)
		}
	}
}

func (r *RedisRelay) Close() error {
	return r.client.Close()
}

func decodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, err
	}
	if env.ItemID == 0 || env.ReceiverID == 0 {
		return Envelope{}, fmt.Errorf("envelope without item or receiver")
	}
	return env, nil
}
