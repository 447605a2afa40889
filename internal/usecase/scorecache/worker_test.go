package scorecache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"wellness-score/internal/adapters/memory"
	"wellness-score/internal/domain"
	"wellness-score/internal/infra/clock"
	"wellness-score/internal/infra/retry"
)

type ackRecorder struct {
	calls []bool
}

func (a *ackRecorder) fn(success bool) error {
	a.calls = append(a.calls, success)
	return nil
}

func newTestWorker(store *stubStore) *Worker {
	svc := NewService(store, &stubCalc{}, &clock.Fixed{At: testDay}, 0, zerolog.Nop())
	w := NewWorker(memory.NewQueue(1), svc, zerolog.Nop())
	w.policy = retry.Policy{Initial: time.Millisecond, Multiplier: 1, Attempts: 1}
	w.pause = 0
	return w
}

func TestWorkerAcksProcessedMessage(t *testing.T) {
	store := newStubStore()
	store.records[key(testUser, testDay)] = domain.CachedScoreRecord{UserID: testUser, Day: testDay}
	w := newTestWorker(store)
	acks := &ackRecorder{}

	w.Handle(context.Background(), domain.ConsumptionLogged{UserID: testUser, Date: "2024-05-14", Dates: []string{"2024-05-13"}}, acks.fn)

	if len(acks.calls) != 1 || !acks.calls[0] {
		t.Fatalf("ожидали одно подтверждение, получили %v", acks.calls)
	}
	if len(store.batchDelete) != 1 || len(store.batchDelete[0]) != 2 {
		t.Fatalf("ожидали одно пакетное удаление двух дней, получили %v", store.batchDelete)
	}
	if _, ok := store.records[key(testUser, testDay)]; ok {
		t.Fatalf("запись должна быть удалена")
	}
}

func TestWorkerDropsInvalidMessage(t *testing.T) {
	store := newStubStore()
	w := newTestWorker(store)
	cases := []domain.ConsumptionLogged{
		{UserID: "nope", Date: "2024-05-14"},
		{UserID: testUser},
	}
	for _, msg := range cases {
		acks := &ackRecorder{}
		w.Handle(context.Background(), msg, acks.fn)
		if len(acks.calls) != 1 || !acks.calls[0] {
			t.Fatalf("некорректное сообщение %+v подтверждается без повтора, получили %v", msg, acks.calls)
		}
	}
	if len(store.batchDelete) != 0 {
		t.Fatalf("некорректные сообщения не трогают хранилище")
	}
}

func TestWorkerRequeuesUntilAttemptLimit(t *testing.T) {
	store := newStubStore()
	store.deleteErr = errors.New("connection refused")
	w := newTestWorker(store)
	msg := domain.ConsumptionLogged{UserID: testUser, Date: "2024-05-14", LoggedAt: testDay}

	acks := &ackRecorder{}
	for i := 0; i < maxDeliveryAttempts; i++ {
		w.Handle(context.Background(), msg, acks.fn)
	}
	want := []bool{false, false, false, false, true}
	if len(acks.calls) != len(want) {
		t.Fatalf("ожидали %d подтверждений, получили %v", len(want), acks.calls)
	}
	for i := range want {
		if acks.calls[i] != want[i] {
			t.Fatalf("подтверждение %d: %v, ожидали %v", i, acks.calls[i], want[i])
		}
	}
	if len(w.attempts) != 0 {
		t.Fatalf("после отбрасывания счётчик попыток очищается")
	}
}

type signalStore struct {
	*stubStore
	deleted chan struct{}
}

func (s signalStore) DeleteScores(ctx context.Context, userID string, days []time.Time) error {
	err := s.stubStore.DeleteScores(ctx, userID, days)
	s.deleted <- struct{}{}
	return err
}

func TestWorkerRunDrainsQueue(t *testing.T) {
	store := signalStore{stubStore: newStubStore(), deleted: make(chan struct{}, 1)}
	svc := NewService(store, &stubCalc{}, &clock.Fixed{At: testDay}, 0, zerolog.Nop())
	q := memory.NewQueue(4)
	w := NewWorker(q, svc, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := q.Enqueue(ctx, domain.ConsumptionLogged{UserID: testUser, Date: "2024-05-14"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	select {
	case <-store.deleted:
	case <-time.After(2 * time.Second):
		t.Fatalf("сообщение не обработано")
	}
	cancel()
	<-done
	if len(store.batchDelete) != 1 {
		t.Fatalf("ожидали одно удаление, получили %d", len(store.batchDelete))
	}
}

type stubPruner struct {
	retention time.Duration
	calls     int
	err       error
}

func (p *stubPruner) PruneScores(_ context.Context, retention time.Duration, _ time.Time) (int64, error) {
	p.calls++
	p.retention = retention
	return 3, p.err
}

func TestPrune(t *testing.T) {
	p := &stubPruner{}
	clk := &clock.Fixed{At: testDay}
	Prune(context.Background(), p, 72*time.Hour, clk, zerolog.Nop())
	if p.calls != 1 || p.retention != 72*time.Hour {
		t.Fatalf("ожидали один вызов с 72h, получили %d/%v", p.calls, p.retention)
	}
	Prune(context.Background(), p, 0, clk, zerolog.Nop())
	Prune(context.Background(), nil, time.Hour, clk, zerolog.Nop())
	if p.calls != 1 {
		t.Fatalf("нулевой срок хранения отключает очистку")
	}
	p.err = errors.New("timeout")
	Prune(context.Background(), p, time.Hour, clk, zerolog.Nop())
	if p.calls != 2 {
		t.Fatalf("ошибка очистки только логируется")
	}
}
