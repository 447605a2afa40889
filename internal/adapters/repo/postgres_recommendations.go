package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"

	"wellness-score/internal/domain"
	"wellness-score/internal/infra/metrics"
)

const recommendationColumns = `id::text, user_id::text, type, priority, status, title, description, reasoning,
action_label, action_url, action_data, target_system, target_meal_time, expires_at, created_at, view_count, dismiss_count`

func scanRecommendation(row pgx.Row) (domain.Recommendation, error) {
	var (
		rec          domain.Recommendation
		actionData   []byte
		targetSystem *string
		targetMeal   *string
	)
	err := row.Scan(&rec.ID, &rec.UserID, &rec.Type, &rec.Priority, &rec.Status, &rec.Title, &rec.Description, &rec.Reasoning,
		&rec.ActionLabel, &rec.ActionURL, &actionData, &targetSystem, &targetMeal, &rec.ExpiresAt, &rec.CreatedAt, &rec.ViewCount, &rec.DismissCount)
	if err != nil {
		return domain.Recommendation{}, err
	}
	if len(actionData) > 0 {
		if err := json.Unmarshal(actionData, &rec.ActionData); err != nil {
			return domain.Recommendation{}, fmt.Errorf("decode action data: %w", err)
		}
	}
	if targetSystem != nil {
		if system, ok := domain.ParseDefenseSystem(*targetSystem); ok {
			rec.TargetSystem = &system
		}
	}
	if targetMeal != nil {
		if meal, ok := domain.ParseMealTime(*targetMeal); ok {
			rec.TargetMealTime = &meal
		}
	}
	return rec, nil
}

func nullableSystem(s *domain.DefenseSystem) *string {
	if s == nil {
		return nil
	}
	v := string(*s)
	return &v
}

func nullableMeal(m *domain.MealTime) *string {
	if m == nil {
		return nil
	}
	v := string(*m)
	return &v
}

// SaveRecommendations реализует domain.RecommendationRepo: пачка и события issued пишутся в одной транзакции.
func (p *Postgres) SaveRecommendations(ctx context.Context, recs []domain.Recommendation) error {
	if len(recs) == 0 {
		return nil
	}
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	metrics.ObserveNetworkRequest("postgres", "begin_tx", "recommendations", start, err)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, rec := range recs {
		actionData, err := json.Marshal(rec.ActionData)
		if err != nil {
			return fmt.Errorf("encode action data: %w", err)
		}
		batch.Queue(`
INSERT INTO recommendations (id, user_id, type, priority, status, title, description, reasoning,
	action_label, action_url, action_data, target_system, target_meal_time, expires_at, created_at, view_count, dismiss_count)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
`, rec.ID, rec.UserID, string(rec.Type), string(rec.Priority), string(rec.Status), rec.Title, rec.Description, rec.Reasoning,
			rec.ActionLabel, rec.ActionURL, actionData, nullableSystem(rec.TargetSystem), nullableMeal(rec.TargetMealTime),
			rec.ExpiresAt, rec.CreatedAt, rec.ViewCount, rec.DismissCount)
		batch.Queue(`
INSERT INTO recommendation_events (user_id, recommendation_id, type, action, occurred_at)
VALUES ($1, $2, $3, $4, $5)
`, rec.UserID, rec.ID, string(rec.Type), string(domain.ActionIssued), rec.CreatedAt)
	}
	start = time.Now()
	br := tx.SendBatch(ctx, batch)
	metrics.ObserveNetworkRequest("postgres", "recommendations_send_batch", "recommendations", start, nil)
	for i := 0; i < batch.Len(); i++ {
		start = time.Now()
		_, err := br.Exec()
		metrics.ObserveNetworkRequest("postgres", "recommendations_batch_exec", "recommendations", start, err)
		if err != nil {
			_ = br.Close()
			return err
		}
	}
	if err := br.Close(); err != nil {
		return err
	}
	start = time.Now()
	err = tx.Commit(ctx)
	metrics.ObserveNetworkRequest("postgres", "commit", "recommendations", start, err)
	return err
}

// ListActive реализует domain.RecommendationRepo.
func (p *Postgres) ListActive(ctx context.Context, userID string, now time.Time) ([]domain.Recommendation, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT `+recommendationColumns+`
FROM recommendations
WHERE user_id = $1 AND status = 'PENDING' AND expires_at > $2
ORDER BY created_at
`, userID, now)
	metrics.ObserveNetworkRequest("postgres", "recommendations_list_active", "recommendations", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]domain.Recommendation, 0)
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetRecommendation реализует domain.RecommendationRepo.
func (p *Postgres) GetRecommendation(ctx context.Context, id string) (domain.Recommendation, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rec, err := scanRecommendation(p.pool.QueryRow(ctx, `SELECT `+recommendationColumns+` FROM recommendations WHERE id = $1`, id))
	metrics.ObserveNetworkRequest("postgres", "recommendations_get", "recommendations", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Recommendation{}, domain.ErrNotFound
	}
	return rec, err
}

// TransitionRecommendation реализует domain.RecommendationRepo.
// Переход выполняется условным UPDATE, поэтому гонка двух переходов оставляет один.
func (p *Postgres) TransitionRecommendation(ctx context.Context, id string, to domain.RecommendationStatus, at time.Time) (domain.Recommendation, error) {
	var action domain.RecommendationAction
	switch to {
	case domain.StatusAccepted:
		action = domain.ActionAccepted
	case domain.StatusDismissed:
		action = domain.ActionDismissed
	default:
		return domain.Recommendation{}, domain.ErrInvalidTransition
	}

	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	metrics.ObserveNetworkRequest("postgres", "begin_tx", "recommendations", start, err)
	if err != nil {
		return domain.Recommendation{}, err
	}
	defer tx.Rollback(ctx)

	start = time.Now()
	rec, err := scanRecommendation(tx.QueryRow(ctx, `
UPDATE recommendations
SET status = $2,
	dismiss_count = dismiss_count + CASE WHEN $2 = 'DISMISSED' THEN 1 ELSE 0 END
WHERE id = $1 AND status = 'PENDING' AND expires_at > $3
RETURNING `+recommendationColumns, id, string(to), at))
	metrics.ObserveNetworkRequest("postgres", "recommendations_transition", "recommendations", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		start = time.Now()
		err = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM recommendations WHERE id = $1)`, id).Scan(&exists)
		metrics.ObserveNetworkRequest("postgres", "recommendations_exists", "recommendations", start, err)
		if err != nil {
			return domain.Recommendation{}, err
		}
		if !exists {
			return domain.Recommendation{}, domain.ErrNotFound
		}
		return domain.Recommendation{}, domain.ErrInvalidTransition
	}
	if err != nil {
		return domain.Recommendation{}, err
	}

	start = time.Now()
	_, err = tx.Exec(ctx, `
INSERT INTO recommendation_events (user_id, recommendation_id, type, action, occurred_at)
VALUES ($1, $2, $3, $4, $5)
`, rec.UserID, rec.ID, string(rec.Type), string(action), at)
	metrics.ObserveNetworkRequest("postgres", "recommendation_events_insert", "recommendation_events", start, err)
	if err != nil {
		return domain.Recommendation{}, err
	}
	start = time.Now()
	err = tx.Commit(ctx)
	metrics.ObserveNetworkRequest("postgres", "commit", "recommendations", start, err)
	if err != nil {
		return domain.Recommendation{}, err
	}
	return rec, nil
}

// IncrementViews реализует domain.RecommendationRepo.
func (p *Postgres) IncrementViews(ctx context.Context, id string) (domain.Recommendation, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rec, err := scanRecommendation(p.pool.QueryRow(ctx, `
UPDATE recommendations SET view_count = view_count + 1 WHERE id = $1
RETURNING `+recommendationColumns, id))
	metrics.ObserveNetworkRequest("postgres", "recommendations_view", "recommendations", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Recommendation{}, domain.ErrNotFound
	}
	return rec, err
}

// ListRecommendationEvents реализует domain.RecommendationHistory.
func (p *Postgres) ListRecommendationEvents(ctx context.Context, userID string, since time.Time) ([]domain.RecommendationEvent, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT user_id::text, recommendation_id::text, type, action, occurred_at
FROM recommendation_events
WHERE user_id = $1 AND occurred_at >= $2
ORDER BY occurred_at
`, userID, since)
	metrics.ObserveNetworkRequest("postgres", "recommendation_events_list", "recommendation_events", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.RecommendationEvent
	for rows.Next() {
		var ev domain.RecommendationEvent
		if err := rows.Scan(&ev.UserID, &ev.RecommendationID, &ev.Type, &ev.Action, &ev.OccurredAt); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
