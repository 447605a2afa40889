package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"wellness-score/internal/domain"
	"wellness-score/internal/infra/metrics"
)

// RedisConsumptionQueue реализует очередь уведомлений на базе Redis lists.
// Сообщения кладутся LPUSH и забираются BRPOP; неподтверждённое возвращается в хвост.
type RedisConsumptionQueue struct {
	client *redis.Client
	key    string
	poll   time.Duration
}

var _ domain.ConsumptionQueue = (*RedisConsumptionQueue)(nil)

// NewRedisConsumptionQueue создаёт очередь по указанному ключу.
func NewRedisConsumptionQueue(client *redis.Client, key string) *RedisConsumptionQueue {
	return &RedisConsumptionQueue{client: client, key: key, poll: time.Second}
}

// Enqueue публикует уведомление.
func (q *RedisConsumptionQueue) Enqueue(ctx context.Context, msg domain.ConsumptionLogged) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return q.push(ctx, payload)
}

func (q *RedisConsumptionQueue) push(ctx context.Context, payload []byte) error {
	start := time.Now()
	err := q.client.LPush(ctx, q.key, payload).Err()
	metrics.ObserveNetworkRequest("redis", "lpush", q.key, start, err)
	if err != nil {
		return fmt.Errorf("push message: %w", err)
	}
	return nil
}

// Receive блокирующе читает уведомление.
func (q *RedisConsumptionQueue) Receive(ctx context.Context) (domain.ConsumptionLogged, domain.AckFunc, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.ConsumptionLogged{}, nil, err
		}

		res, err := q.client.BRPop(ctx, q.poll, q.key).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return domain.ConsumptionLogged{}, nil, ctx.Err()
				}
				continue
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return domain.ConsumptionLogged{}, nil, err
		}
		if len(res) != 2 {
			return domain.ConsumptionLogged{}, nil, errors.New("redis queue: unexpected response")
		}
		payload := []byte(res[1])
		var msg domain.ConsumptionLogged
		if err := json.Unmarshal(payload, &msg); err != nil {
			return domain.ConsumptionLogged{}, nil, fmt.Errorf("decode message: %w", err)
		}
		ack := func(success bool) error {
			if success {
				return nil
			}
			return q.push(context.WithoutCancel(ctx), payload)
		}
		return msg, ack, nil
	}
}
