package scorestore

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

// maxListDays ограничивает диапазон ListScores: ключи читаются одним MGET.
const maxListDays = 366

// Redis реализует domain.ScoreCacheRepo поверх Redis строк с JSON.
// Ключ записи: score:{user}:{YYYY-MM-DD}.
type Redis struct {
	client    *redis.Client
	retention time.Duration
}

var _ domain.ScoreCacheRepo = (*Redis)(nil)

// NewRedis создаёт хранилище. retention задаёт TTL ключа в Redis, 0 отключает истечение.
func NewRedis(client *redis.Client, retention time.Duration) *Redis {
	return &Redis{client: client, retention: retention}
}

// Key возвращает ключ записи для пользователя и дня.
func Key(userID string, day time.Time) string {
	return fmt.Sprintf("score:%s:%s", userID, day.Format(time.DateOnly))
}

func canonical(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

// GetScore читает запись, redis.Nil превращается в domain.ErrNotFound.
func (r *Redis) GetScore(ctx context.Context, userID string, day time.Time) (domain.CachedScoreRecord, error) {
	start := time.Now()
	payload, err := r.client.Get(ctx, Key(userID, day)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.ObserveNetworkRequest("redis", "get_score", "score_cache", start, nil)
		return domain.CachedScoreRecord{}, domain.ErrNotFound
	}
	metrics.ObserveNetworkRequest("redis", "get_score", "score_cache", start, err)
	if err != nil {
		return domain.CachedScoreRecord{}, fmt.Errorf("redis get score: %w", err)
	}
	return decodeRecord(payload)
}

// UpsertScore перезаписывает запись целиком.
func (r *Redis) UpsertScore(ctx context.Context, record domain.CachedScoreRecord) error {
	record.Day = canonical(record.Day)
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal score: %w", err)
	}
	start := time.Now()
	err = r.client.Set(ctx, Key(record.UserID, record.Day), payload, r.retention).Err()
	metrics.ObserveNetworkRequest("redis", "upsert_score", "score_cache", start, err)
	if err != nil {
		return fmt.Errorf("redis set score: %w", err)
	}
	return nil
}

// DeleteScore удаляет запись; отсутствие ключа не ошибка.
func (r *Redis) DeleteScore(ctx context.Context, userID string, day time.Time) error {
	return r.DeleteScores(ctx, userID, []time.Time{day})
}

// DeleteScores удаляет записи за несколько дней одной командой DEL.
func (r *Redis) DeleteScores(ctx context.Context, userID string, days []time.Time) error {
	if len(days) == 0 {
		return nil
	}
	keys := make([]string, 0, len(days))
	for _, day := range days {
		keys = append(keys, Key(userID, day))
	}
	start := time.Now()
	err := r.client.Del(ctx, keys...).Err()
	metrics.ObserveNetworkRequest("redis", "delete_scores", "score_cache", start, err)
	if err != nil {
		return fmt.Errorf("redis del scores: %w", err)
	}
	return nil
}

// ListScores читает записи за дни отрезка [from, to] по возрастанию дня.
func (r *Redis) ListScores(ctx context.Context, userID string, from, to time.Time) ([]domain.CachedScoreRecord, error) {
	from, to = canonical(from), canonical(to)
	if to.Before(from) {
		return nil, nil
	}
	var keys []string
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		if len(keys) == maxListDays {
			return nil, fmt.Errorf("%w: диапазон больше %d дней", domain.ErrInvalidDate, maxListDays)
		}
		keys = append(keys, Key(userID, day))
	}
	start := time.Now()
	values, err := r.client.MGet(ctx, keys...).Result()
	metrics.ObserveNetworkRequest("redis", "list_scores", "score_cache", start, err)
	if err != nil {
		return nil, fmt.Errorf("redis mget scores: %w", err)
	}
	out := make([]domain.CachedScoreRecord, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		rec, err := decodeRecord([]byte(raw))
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func decodeRecord(payload []byte) (domain.CachedScoreRecord, error) {
	var rec domain.CachedScoreRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return domain.CachedScoreRecord{}, fmt.Errorf("decode score: %w", err)
	}
	rec.Day = canonical(rec.Day)
	return rec, nil
}
