package scorecache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"wellness-score/internal/domain"
	"wellness-score/internal/infra/clock"
	"wellness-score/internal/infra/retry"
	"wellness-score/internal/usecase/score"
)

const testUser = "6f1c2b4e-8a2d-4c1e-9b3a-2f5d7e9c1a00"

var testDay = time.Date(2024, 5, 14, 12, 0, 0, 0, time.UTC)

type stubStore struct {
	records     map[string]domain.CachedScoreRecord
	getErr      error
	upsertErr   error
	deleteErr   error
	upserts     int
	batchDelete [][]time.Time
}

func newStubStore() *stubStore {
	return &stubStore{records: make(map[string]domain.CachedScoreRecord)}
}

func key(userID string, day time.Time) string {
	return userID + ":" + day.Format(time.DateOnly)
}

func (s *stubStore) GetScore(_ context.Context, userID string, day time.Time) (domain.CachedScoreRecord, error) {
	if s.getErr != nil {
		return domain.CachedScoreRecord{}, s.getErr
	}
	rec, ok := s.records[key(userID, day)]
	if !ok {
		return domain.CachedScoreRecord{}, domain.ErrNotFound
	}
	return rec, nil
}

func (s *stubStore) UpsertScore(_ context.Context, rec domain.CachedScoreRecord) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.upserts++
	s.records[key(rec.UserID, rec.Day)] = rec
	return nil
}

func (s *stubStore) DeleteScore(_ context.Context, userID string, day time.Time) error {
	delete(s.records, key(userID, day))
	return nil
}

func (s *stubStore) DeleteScores(_ context.Context, userID string, days []time.Time) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.batchDelete = append(s.batchDelete, days)
	for _, d := range days {
		delete(s.records, key(userID, d))
	}
	return nil
}

func (s *stubStore) ListScores(context.Context, string, time.Time, time.Time) ([]domain.CachedScoreRecord, error) {
	return nil, nil
}

type stubCalc struct {
	calls    int
	failures int
	err      error
	foods    int
}

func (c *stubCalc) Calculate(_ context.Context, userID string, day time.Time) (domain.Score5x5x5, error) {
	c.calls++
	if c.calls <= c.failures {
		return domain.Score5x5x5{}, c.err
	}
	var foods []domain.FoodItem
	for i := 0; i < c.foods; i++ {
		foods = append(foods, domain.FoodItem{Name: string(rune('a' + i)), Systems: []domain.DefenseSystem{domain.SystemImmunity}})
	}
	return score.Calculate(userID, day, []domain.ConsumptionEvent{{UserID: userID, MealTime: domain.MealLunch, Foods: foods}}), nil
}

func newTestService(store *stubStore, calc *stubCalc, clk *clock.Fixed) *Service {
	return NewService(store, calc, clk, 0, zerolog.Nop()).
		WithRetryPolicy(retry.Policy{Initial: time.Millisecond, Multiplier: 2, Attempts: 3})
}

func TestGetOrCalculateReusesFreshRecord(t *testing.T) {
	store := newStubStore()
	calc := &stubCalc{foods: 3}
	clk := &clock.Fixed{At: time.Date(2024, 5, 14, 18, 0, 0, 0, time.UTC)}
	svc := newTestService(store, calc, clk)

	first, cached, err := svc.GetOrCalculate(context.Background(), testUser, testDay)
	if err != nil || cached {
		t.Fatalf("первый вызов должен считать: cached=%v err=%v", cached, err)
	}
	if store.upserts != 1 {
		t.Fatalf("ожидали одну запись в кэш, получили %d", store.upserts)
	}

	clk.Advance(DefaultTTL - time.Second)
	second, cached, err := svc.GetOrCalculate(context.Background(), testUser, testDay)
	if err != nil || !cached {
		t.Fatalf("до истечения TTL ожидали попадание в кэш: cached=%v err=%v", cached, err)
	}
	if calc.calls != 1 {
		t.Fatalf("пересчёт не ожидался, вызовов %d", calc.calls)
	}
	if second.OverallScore != first.OverallScore || second.System(domain.SystemImmunity).FoodsConsumed != 3 {
		t.Fatalf("скор из кэша не совпадает со свежим")
	}
	if len(second.System(domain.SystemImmunity).UniqueFoods) != 0 {
		t.Fatalf("скор из кэша не содержит списков продуктов")
	}
}

func TestGetOrCalculateRecomputesAtTTL(t *testing.T) {
	store := newStubStore()
	calc := &stubCalc{foods: 1}
	clk := &clock.Fixed{At: time.Date(2024, 5, 14, 18, 0, 0, 0, time.UTC)}
	svc := newTestService(store, calc, clk)

	if _, _, err := svc.GetOrCalculate(context.Background(), testUser, testDay); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	clk.Advance(DefaultTTL)
	calc.foods = 4
	got, cached, err := svc.GetOrCalculate(context.Background(), testUser, testDay)
	if err != nil || cached {
		t.Fatalf("на границе TTL ожидали пересчёт: cached=%v err=%v", cached, err)
	}
	if calc.calls != 2 || store.upserts != 2 {
		t.Fatalf("ожидали 2 расчёта и 2 записи, получили %d/%d", calc.calls, store.upserts)
	}
	rec := store.records[key(testUser, testDay)]
	if !rec.CreatedAt.Equal(clk.Now()) || rec.ImmunityCount != 4 {
		t.Fatalf("запись должна быть перезаписана: %+v", rec)
	}
	if got.System(domain.SystemImmunity).Score != 85 {
		t.Fatalf("ожидали свежий скор 85, получили %d", got.System(domain.SystemImmunity).Score)
	}
}

func TestGetOrCalculateSurvivesStoreFailures(t *testing.T) {
	store := newStubStore()
	store.getErr = errors.New("connection reset")
	store.upsertErr = errors.New("connection reset")
	calc := &stubCalc{foods: 2}
	svc := newTestService(store, calc, &clock.Fixed{At: testDay})

	got, cached, err := svc.GetOrCalculate(context.Background(), testUser, testDay)
	if err != nil || cached {
		t.Fatalf("сбой кэша не должен ломать расчёт: cached=%v err=%v", cached, err)
	}
	if got.System(domain.SystemImmunity).FoodsConsumed != 2 {
		t.Fatalf("ожидали свежий скор")
	}
}

func TestGetRejectsInvalidInputWithoutRetry(t *testing.T) {
	calc := &stubCalc{}
	svc := newTestService(newStubStore(), calc, &clock.Fixed{At: testDay})

	cases := []Request{
		{UserID: "not-a-uuid", Date: "2024-05-14"},
		{UserID: testUser, Date: "14.05.2024"},
		{UserID: testUser},
	}
	for _, req := range cases {
		res := svc.Get(context.Background(), req)
		if res.Score != nil || !domain.IsValidation(res.Err) {
			t.Fatalf("ожидали ошибку валидации для %+v, получили %+v", req, res)
		}
	}
	if calc.calls != 0 {
		t.Fatalf("при ошибке валидации расчёт не запускается")
	}
}

func TestGetRetriesTransientFailures(t *testing.T) {
	calc := &stubCalc{failures: 2, err: errors.New("timeout"), foods: 5}
	svc := newTestService(newStubStore(), calc, &clock.Fixed{At: testDay})

	res := svc.Get(context.Background(), Request{UserID: testUser, Date: "2024-05-14"})
	if res.Err != nil || res.Score == nil {
		t.Fatalf("ожидали успех после повторов, получили %+v", res)
	}
	if calc.calls != 3 {
		t.Fatalf("ожидали 3 попытки, получили %d", calc.calls)
	}
	if res.Score.System(domain.SystemImmunity).Score != 100 {
		t.Fatalf("неожиданный скор")
	}
}

func TestGetReturnsTypedFailure(t *testing.T) {
	boom := errors.New("database is down")
	calc := &stubCalc{failures: 10, err: boom}
	svc := newTestService(newStubStore(), calc, &clock.Fixed{At: testDay})

	res := svc.Get(context.Background(), Request{UserID: testUser, Date: "2024-05-14"})
	if res.Score != nil || !errors.Is(res.Err, boom) {
		t.Fatalf("ожидали типизированную ошибку, получили %+v", res)
	}
	if calc.calls != 3 {
		t.Fatalf("ожидали ровно 3 попытки, получили %d", calc.calls)
	}
}

func TestInvalidateIsIdempotent(t *testing.T) {
	store := newStubStore()
	calc := &stubCalc{foods: 1}
	svc := newTestService(store, calc, &clock.Fixed{At: testDay})

	if err := svc.Invalidate(context.Background(), testUser, testDay); err != nil {
		t.Fatalf("удаление отсутствующей записи не ошибка: %v", err)
	}
	if _, _, err := svc.GetOrCalculate(context.Background(), testUser, testDay); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	localEvening := time.Date(2024, 5, 14, 23, 30, 0, 0, time.UTC)
	if err := svc.Invalidate(context.Background(), testUser, localEvening); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if _, ok := store.records[key(testUser, testDay)]; ok {
		t.Fatalf("запись должна быть удалена")
	}
	if _, cached, _ := svc.GetOrCalculate(context.Background(), testUser, testDay); cached {
		t.Fatalf("после инвалидации ожидали пересчёт")
	}
	if err := svc.Invalidate(context.Background(), "bad", testDay); !errors.Is(err, domain.ErrInvalidUserID) {
		t.Fatalf("ожидали ErrInvalidUserID, получили %v", err)
	}
}

func TestInvalidateDaysUsesSingleBatch(t *testing.T) {
	store := newStubStore()
	svc := newTestService(store, &stubCalc{}, &clock.Fixed{At: testDay})

	days := []time.Time{testDay, testDay.Add(2 * time.Hour), testDay.AddDate(0, 0, -1)}
	if err := svc.InvalidateDays(context.Background(), testUser, days); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(store.batchDelete) != 1 || len(store.batchDelete[0]) != 2 {
		t.Fatalf("ожидали одну пакетную операцию на 2 дня, получили %v", store.batchDelete)
	}
	if err := svc.InvalidateDays(context.Background(), testUser, nil); err != nil || len(store.batchDelete) != 1 {
		t.Fatalf("пустой список не должен обращаться к хранилищу")
	}
}

func TestHandleConsumptionLogged(t *testing.T) {
	store := newStubStore()
	svc := newTestService(store, &stubCalc{}, &clock.Fixed{At: testDay})

	msg := domain.ConsumptionLogged{UserID: testUser, Date: "2024-05-14", Dates: []string{"2024-05-13", "garbage"}}
	if err := svc.HandleConsumptionLogged(context.Background(), msg); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(store.batchDelete) != 1 || len(store.batchDelete[0]) != 2 {
		t.Fatalf("ожидали инвалидацию двух дней, получили %v", store.batchDelete)
	}
	if err := svc.HandleConsumptionLogged(context.Background(), domain.ConsumptionLogged{UserID: testUser}); !domain.IsValidation(err) {
		t.Fatalf("сообщение без дат должно отклоняться, получили %v", err)
	}
}

func TestGetDoesNotRetryInvalidScore(t *testing.T) {
	store := newStubStore()
	calc := &stubCalc{failures: 5, err: fmt.Errorf("%w: overall score 101 out of range", domain.ErrInvalidScore)}
	svc := newTestService(store, calc, &clock.Fixed{At: testDay})

	res := svc.Get(context.Background(), Request{UserID: testUser, Date: "2024-05-14"})
	if !errors.Is(res.Err, domain.ErrInvalidScore) {
		t.Fatalf("ожидали ErrInvalidScore, получили %v", res.Err)
	}
	if calc.calls != 1 {
		t.Fatalf("неверный скор не повторяется, ожидали 1 расчёт, получили %d", calc.calls)
	}
}
