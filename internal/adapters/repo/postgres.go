package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"wellness-score/internal/domain"
	"wellness-score/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.UserRepo              = (*Postgres)(nil)
	_ domain.ConsumptionRepo       = (*Postgres)(nil)
	_ domain.ScoreCacheRepo        = (*Postgres)(nil)
	_ domain.RecommendationRepo    = (*Postgres)(nil)
	_ domain.RecommendationHistory = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func (p *Postgres) connCtxWithParent(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return p.connCtx()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// GetUser реализует domain.UserRepo.
func (p *Postgres) GetUser(ctx context.Context, userID string) (domain.User, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var (
		user         domain.User
		tz           *string
		restrictions []string
	)
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT id::text, tz, dietary_restrictions, created_at
FROM users WHERE id = $1
`, userID).Scan(&user.ID, &tz, &restrictions, &user.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "users_get", "users", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	if tz != nil {
		user.Timezone = *tz
	}
	user.DietaryRestrictions = restrictions
	return user, nil
}

// ListEvents реализует domain.ConsumptionRepo. Продукты без записи в каталоге
// возвращаются без систем.
func (p *Postgres) ListEvents(ctx context.Context, userID string, from, to time.Time) ([]domain.ConsumptionEvent, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, user_id::text, consumed_at, COALESCE(meal_time, ''), foods
FROM consumption_events
WHERE user_id = $1 AND consumed_at >= $2 AND consumed_at < $3
ORDER BY consumed_at
`, userID, from, to)
	metrics.ObserveNetworkRequest("postgres", "consumption_events_list", "consumption_events", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		events []domain.ConsumptionEvent
		names  [][]string
		keys   = make(map[string]struct{})
	)
	for rows.Next() {
		var (
			ev   domain.ConsumptionEvent
			meal string
			raw  []byte
		)
		if err := rows.Scan(&ev.ID, &ev.UserID, &ev.ConsumedAt, &meal, &raw); err != nil {
			return nil, err
		}
		if parsed, ok := domain.ParseMealTime(meal); ok {
			ev.MealTime = parsed
		}
		foods := domain.DecodeFoodNames(raw)
		for _, name := range foods {
			keys[strings.ToLower(name)] = struct{}{}
		}
		events = append(events, ev)
		names = append(names, foods)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	catalog, err := p.lookupFoodSystems(ctx, keys)
	if err != nil {
		return nil, err
	}
	for i := range events {
		items := make([]domain.FoodItem, 0, len(names[i]))
		for _, name := range names[i] {
			items = append(items, domain.FoodItem{Name: name, Systems: catalog[strings.ToLower(name)]})
		}
		events[i].Foods = items
	}
	return events, nil
}

func (p *Postgres) lookupFoodSystems(ctx context.Context, keys map[string]struct{}) (map[string][]domain.DefenseSystem, error) {
	out := make(map[string][]domain.DefenseSystem, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	list := make([]string, 0, len(keys))
	for k := range keys {
		list = append(list, k)
	}
	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT lower(name), systems FROM food_catalog WHERE lower(name) = ANY($1)`, list)
	metrics.ObserveNetworkRequest("postgres", "food_catalog_lookup", "food_catalog", start, err)
	if err != nil {
		return nil, fmt.Errorf("food catalog lookup: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			name    string
			systems []string
		)
		if err := rows.Scan(&name, &systems); err != nil {
			return nil, err
		}
		for _, raw := range systems {
			if system, ok := domain.ParseDefenseSystem(raw); ok {
				out[name] = append(out[name], system)
			}
		}
	}
	return out, rows.Err()
}
