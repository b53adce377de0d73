package infra

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisNotifier транслирует сигналы инвалидации во все инстансы шлюза.
type RedisNotifier struct {
	rdb *redis.Client
}

func NewRedisNotifier(rdb *redis.Client) *RedisNotifier {
	return &RedisNotifier{rdb: rdb}
}

// Notify публикует сигнал в канал обновления политик.
func (n *RedisNotifier) Notify(ctx context.Context, signal string) error {
	return n.rdb.Publish(ctx, RedisChanPolicyUpdate, signal).Err()
}
