package scorestore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"wellness-score/internal/adapters/memory"
	"wellness-score/internal/domain"
	"wellness-score/internal/infra/clock"
	"wellness-score/internal/infra/config"
	"wellness-score/internal/usecase/behavior"
)

const testUser = "6f1c2b4e-8a2d-4c1e-9b3a-2f5d7e9c1a00"

func newTestRedis(t *testing.T, retention time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, retention), mr
}

func record(day time.Time, overall int) domain.CachedScoreRecord {
	return domain.CachedScoreRecord{
		UserID:            testUser,
		Day:               day,
		OverallScore:      overall,
		AngiogenesisCount: 2,
		LunchCount:        3,
		UniqueFoodCount:   4,
		VarietyScore:      16,
		DiversityIndex:    0.75,
		CreatedAt:         time.Date(2024, 5, 14, 9, 30, 0, 0, time.UTC),
	}
}

func TestRedisUpsertAndGet(t *testing.T) {
	store, mr := newTestRedis(t, 72*time.Hour)
	ctx := context.Background()
	day := time.Date(2024, 5, 14, 12, 0, 0, 0, time.UTC)

	if _, err := store.GetScore(ctx, testUser, day); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("ожидали ErrNotFound для пустого кэша, получили %v", err)
	}
	if err := store.UpsertScore(ctx, record(day, 42)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := store.GetScore(ctx, testUser, day)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.OverallScore != 42 || got.AngiogenesisCount != 2 || got.LunchCount != 3 || got.DiversityIndex != 0.75 {
		t.Fatalf("неожиданная запись: %+v", got)
	}
	if !got.Day.Equal(day) || !got.CreatedAt.Equal(record(day, 0).CreatedAt) {
		t.Fatalf("даты не сохранились: %+v", got)
	}
	key := "score:" + testUser + ":2024-05-14"
	if !mr.Exists(key) {
		t.Fatalf("ожидали ключ %s", key)
	}
	if ttl := mr.TTL(key); ttl != 72*time.Hour {
		t.Fatalf("ожидали TTL 72h, получили %v", ttl)
	}

	if err := store.UpsertScore(ctx, record(day, 77)); err != nil {
		t.Fatalf("повторный upsert: %v", err)
	}
	got, _ = store.GetScore(ctx, testUser, day)
	if got.OverallScore != 77 {
		t.Fatalf("upsert должен перезаписать запись, получили %d", got.OverallScore)
	}
}

func TestRedisRetentionExpires(t *testing.T) {
	store, mr := newTestRedis(t, time.Hour)
	ctx := context.Background()
	day := time.Date(2024, 5, 14, 12, 0, 0, 0, time.UTC)
	if err := store.UpsertScore(ctx, record(day, 10)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	mr.FastForward(2 * time.Hour)
	if _, err := store.GetScore(ctx, testUser, day); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("запись должна истечь, получили %v", err)
	}
}

func TestRedisDeleteIsIdempotent(t *testing.T) {
	store, _ := newTestRedis(t, 0)
	ctx := context.Background()
	d1 := time.Date(2024, 5, 13, 12, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 1)
	for _, d := range []time.Time{d1, d2} {
		if err := store.UpsertScore(ctx, record(d, 50)); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	if err := store.DeleteScore(ctx, testUser, d1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.DeleteScore(ctx, testUser, d1); err != nil {
		t.Fatalf("повторное удаление не должно падать: %v", err)
	}
	if err := store.DeleteScores(ctx, testUser, []time.Time{d1, d2}); err != nil {
		t.Fatalf("batch delete: %v", err)
	}
	if err := store.DeleteScores(ctx, testUser, nil); err != nil {
		t.Fatalf("пустой batch: %v", err)
	}
	if _, err := store.GetScore(ctx, testUser, d2); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("ожидали удаление второго дня, получили %v", err)
	}
}

func TestRedisListScores(t *testing.T) {
	store, _ := newTestRedis(t, 0)
	ctx := context.Background()
	from := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	for _, offset := range []int{0, 2, 4, 9} {
		if err := store.UpsertScore(ctx, record(from.AddDate(0, 0, offset), offset*10)); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	got, err := store.ListScores(ctx, testUser, from, from.AddDate(0, 0, 4))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("ожидали 3 записи в отрезке, получили %d", len(got))
	}
	for i, want := range []int{0, 20, 40} {
		if got[i].OverallScore != want {
			t.Fatalf("запись %d: %d, ожидали %d", i, got[i].OverallScore, want)
		}
	}
	if empty, err := store.ListScores(ctx, testUser, from.AddDate(0, 0, 4), from); err != nil || len(empty) != 0 {
		t.Fatalf("перевёрнутый отрезок должен быть пустым: %v %v", empty, err)
	}
	if _, err := store.ListScores(ctx, testUser, from, from.AddDate(2, 0, 0)); !errors.Is(err, domain.ErrInvalidDate) {
		t.Fatalf("ожидали ошибку слишком длинного диапазона, получили %v", err)
	}
}

func TestRedisDefaultRetentionKeepsProfileWindow(t *testing.T) {
	store, mr := newTestRedis(t, config.Load().ScoreCache.Retention)
	ctx := context.Background()
	first := time.Date(2024, 5, 5, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		overall := 100
		if i >= 7 {
			overall = 0
		}
		if err := store.UpsertScore(ctx, record(first.AddDate(0, 0, i), overall)); err != nil {
			t.Fatalf("upsert дня %d: %v", i, err)
		}
		if i < 9 {
			mr.FastForward(24 * time.Hour)
		}
	}

	mem := memory.NewStore()
	clk := &clock.Fixed{At: time.Date(2024, 5, 14, 18, 0, 0, 0, time.UTC)}
	profile, err := behavior.NewProfiler(mem, mem, store, nil, clk, behavior.Config{}, zerolog.Nop()).Profile(ctx, testUser)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if profile.AverageDailyScore != 70 {
		t.Fatalf("10 дней в окне: ожидали средний скор 70, получили %v", profile.AverageDailyScore)
	}
}
