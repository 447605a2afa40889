package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"wellness-score/internal/domain"
	"wellness-score/internal/infra/metrics"
)

const scoreColumns = `user_id::text, day, overall_score,
angiogenesis_count, regeneration_count, microbiome_count, dna_protection_count, immunity_count,
breakfast_count, lunch_count, dinner_count, snack_count,
unique_food_count, variety_score, diversity_index, created_at`

func dayParam(day time.Time) string {
	return day.UTC().Format(time.DateOnly)
}

// noonUTC приводит дату из колонки date к ключу кэша.
func noonUTC(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func scanScore(row pgx.Row) (domain.CachedScoreRecord, error) {
	var rec domain.CachedScoreRecord
	err := row.Scan(&rec.UserID, &rec.Day, &rec.OverallScore,
		&rec.AngiogenesisCount, &rec.RegenerationCount, &rec.MicrobiomeCount, &rec.DNAProtectionCount, &rec.ImmunityCount,
		&rec.BreakfastCount, &rec.LunchCount, &rec.DinnerCount, &rec.SnackCount,
		&rec.UniqueFoodCount, &rec.VarietyScore, &rec.DiversityIndex, &rec.CreatedAt)
	rec.Day = noonUTC(rec.Day)
	return rec, err
}

// GetScore реализует domain.ScoreCacheRepo.
func (p *Postgres) GetScore(ctx context.Context, userID string, day time.Time) (domain.CachedScoreRecord, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rec, err := scanScore(p.pool.QueryRow(ctx, `SELECT `+scoreColumns+` FROM daily_scores WHERE user_id = $1 AND day = $2::date`, userID, dayParam(day)))
	metrics.ObserveNetworkRequest("postgres", "daily_scores_get", "daily_scores", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.CachedScoreRecord{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.CachedScoreRecord{}, err
	}
	return rec, nil
}

// UpsertScore реализует domain.ScoreCacheRepo.
func (p *Postgres) UpsertScore(ctx context.Context, rec domain.CachedScoreRecord) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO daily_scores (user_id, day, overall_score,
	angiogenesis_count, regeneration_count, microbiome_count, dna_protection_count, immunity_count,
	breakfast_count, lunch_count, dinner_count, snack_count,
	unique_food_count, variety_score, diversity_index, created_at)
VALUES ($1, $2::date, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
ON CONFLICT (user_id, day) DO UPDATE SET
	overall_score = EXCLUDED.overall_score,
	angiogenesis_count = EXCLUDED.angiogenesis_count,
	regeneration_count = EXCLUDED.regeneration_count,
	microbiome_count = EXCLUDED.microbiome_count,
	dna_protection_count = EXCLUDED.dna_protection_count,
	immunity_count = EXCLUDED.immunity_count,
	breakfast_count = EXCLUDED.breakfast_count,
	lunch_count = EXCLUDED.lunch_count,
	dinner_count = EXCLUDED.dinner_count,
	snack_count = EXCLUDED.snack_count,
	unique_food_count = EXCLUDED.unique_food_count,
	variety_score = EXCLUDED.variety_score,
	diversity_index = EXCLUDED.diversity_index,
	created_at = EXCLUDED.created_at
`, rec.UserID, dayParam(rec.Day), rec.OverallScore,
		rec.AngiogenesisCount, rec.RegenerationCount, rec.MicrobiomeCount, rec.DNAProtectionCount, rec.ImmunityCount,
		rec.BreakfastCount, rec.LunchCount, rec.DinnerCount, rec.SnackCount,
		rec.UniqueFoodCount, rec.VarietyScore, rec.DiversityIndex, rec.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "daily_scores_upsert", "daily_scores", start, err)
	return err
}

// DeleteScore реализует domain.ScoreCacheRepo.
func (p *Postgres) DeleteScore(ctx context.Context, userID string, day time.Time) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `DELETE FROM daily_scores WHERE user_id = $1 AND day = $2::date`, userID, dayParam(day))
	metrics.ObserveNetworkRequest("postgres", "daily_scores_delete", "daily_scores", start, err)
	return err
}

// DeleteScores реализует domain.ScoreCacheRepo одним запросом.
func (p *Postgres) DeleteScores(ctx context.Context, userID string, days []time.Time) error {
	if len(days) == 0 {
		return nil
	}
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	params := make([]string, 0, len(days))
	for _, d := range days {
		params = append(params, dayParam(d))
	}
	start := time.Now()
	_, err := p.pool.Exec(ctx, `DELETE FROM daily_scores WHERE user_id = $1 AND day = ANY($2::date[])`, userID, params)
	metrics.ObserveNetworkRequest("postgres", "daily_scores_delete_batch", "daily_scores", start, err)
	return err
}

// ListScores реализует domain.ScoreCacheRepo.
func (p *Postgres) ListScores(ctx context.Context, userID string, from, to time.Time) ([]domain.CachedScoreRecord, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT `+scoreColumns+`
FROM daily_scores
WHERE user_id = $1 AND day BETWEEN $2::date AND $3::date
ORDER BY day
`, userID, dayParam(from), dayParam(to))
	metrics.ObserveNetworkRequest("postgres", "daily_scores_list", "daily_scores", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.CachedScoreRecord
	for rows.Next() {
		rec, err := scanScore(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// PruneScores удаляет записи кэша старше retention. Возвращает число удалённых строк.
func (p *Postgres) PruneScores(ctx context.Context, retention time.Duration, now time.Time) (int64, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `DELETE FROM daily_scores WHERE created_at < $1`, now.Add(-retention))
	metrics.ObserveNetworkRequest("postgres", "daily_scores_prune", "daily_scores", start, err)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
