package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	chi "github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"wellness-score/internal/domain"
	"wellness-score/internal/infra/validation"
	"wellness-score/internal/usecase/gaps"
	"wellness-score/internal/usecase/intake"
	"wellness-score/internal/usecase/score"
	"wellness-score/internal/usecase/scorecache"
)

// maxInvalidateDays ограничивает размер тела запроса инвалидации.
const maxInvalidateDays = 62

// ScoreReader отдаёт и инвалидирует дневные скоры.
type ScoreReader interface {
	Get(ctx context.Context, req scorecache.Request) scorecache.Result
	InvalidateDays(ctx context.Context, userID string, days []time.Time) error
}

// ProfileReader строит профиль поведения.
type ProfileReader interface {
	Profile(ctx context.Context, userID string) (domain.UserBehaviorProfile, error)
}

// Recommender управляет рекомендациями.
type Recommender interface {
	Generate(ctx context.Context, userID string, day time.Time) ([]domain.Recommendation, error)
	ListActive(ctx context.Context, userID string) ([]domain.Recommendation, error)
	Accept(ctx context.Context, id string) (domain.Recommendation, error)
	Dismiss(ctx context.Context, id string) (domain.Recommendation, error)
	MarkViewed(ctx context.Context, id string) (domain.Recommendation, error)
}

// Intake принимает записи потребления и профили. Подключается только в демо-режиме.
type Intake interface {
	LogConsumption(ctx context.Context, req intake.ConsumptionRequest) (domain.ConsumptionEvent, error)
	SaveUser(ctx context.Context, req intake.UserRequest) (domain.User, error)
}

// Handler публикует операции скоринга и рекомендаций по HTTP.
type Handler struct {
	scores   ScoreReader
	profiles ProfileReader
	recs     Recommender
	intake   Intake
	clock    domain.Clock
	loc      *time.Location
	log      zerolog.Logger
}

// NewHandler создаёт обработчики. loc задаёт пояс по умолчанию для «сегодня».
func NewHandler(scores ScoreReader, profiles ProfileReader, recs Recommender, clock domain.Clock, loc *time.Location, logger zerolog.Logger) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{
		scores:   scores,
		profiles: profiles,
		recs:     recs,
		clock:    clock,
		loc:      loc,
		log:      logger.With().Str("component", "httpapi").Logger(),
	}
}

// WithIntake включает маршруты записи потребления и профиля.
func (h *Handler) WithIntake(in Intake) *Handler {
	h.intake = in
	return h
}

// Register вешает маршруты на роутер.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/score", h.getScore)
			r.Post("/score/invalidate", h.invalidate)
			r.Get("/summary", h.getSummary)
			r.Get("/gaps", h.getGaps)
			r.Get("/profile", h.getProfile)
			r.Get("/recommendations", h.listActive)
			r.Post("/recommendations/generate", h.generate)
			if h.intake != nil {
				r.Put("/", h.putUser)
				r.Post("/consumption", h.logConsumption)
			}
		})
		r.Post("/recommendations/{id}/accept", h.accept)
		r.Post("/recommendations/{id}/dismiss", h.dismiss)
		r.Post("/recommendations/{id}/view", h.view)
	})
}

type scoreResponse struct {
	domain.Score5x5x5
	Cached bool   `json:"cached"`
	Error  string `json:"error,omitempty"`
}

type summaryResponse struct {
	score.Summary
	Error string `json:"error,omitempty"`
}

type consumptionResponse struct {
	ID         int64     `json:"id"`
	ConsumedAt time.Time `json:"consumedAt"`
	MealTime   string    `json:"mealTime,omitempty"`
	Foods      int       `json:"foods"`
}

type userResponse struct {
	ID                  string   `json:"id"`
	Timezone            string   `json:"timezone"`
	DietaryRestrictions []string `json:"dietaryRestrictions"`
}

type invalidateRequest struct {
	Dates []string `json:"dates"`
}

func (h *Handler) getScore(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	date, err := h.requestDate(r)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	res := h.scores.Get(r.Context(), scorecache.Request{UserID: userID, Date: date})
	if res.Err != nil {
		if domain.IsValidation(res.Err) {
			h.writeErr(w, res.Err)
			return
		}
		day, _ := score.ParseDate(date)
		writeJSON(w, http.StatusOK, scoreResponse{Score5x5x5: score.Zero(userID, day), Error: "score temporarily unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, scoreResponse{Score5x5x5: *res.Score, Cached: res.Cached})
}

func (h *Handler) getSummary(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	date, err := h.requestDate(r)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	res := h.scores.Get(r.Context(), scorecache.Request{UserID: userID, Date: date})
	var resp summaryResponse
	switch {
	case res.Err == nil:
		resp.Summary = score.BuildSummary(*res.Score)
	case domain.IsValidation(res.Err):
		h.writeErr(w, res.Err)
		return
	default:
		day, _ := score.ParseDate(date)
		resp.Summary = score.BuildSummary(score.Zero(userID, day))
		resp.Error = "score temporarily unavailable"
	}
	if r.URL.Query().Get("format") == "html" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(score.FormatSummaryHTML(resp.Summary)))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getGaps(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	date, err := h.requestDate(r)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	res := h.scores.Get(r.Context(), scorecache.Request{UserID: userID, Date: date})
	if res.Err != nil {
		h.writeErr(w, res.Err)
		return
	}
	writeJSON(w, http.StatusOK, gaps.Analyze(*res.Score))
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := validation.UserID(userID); err != nil {
		h.writeErr(w, err)
		return
	}
	profile, err := h.profiles.Profile(r.Context(), userID)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	date, err := h.requestDate(r)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	day, err := score.ParseDate(date)
	if err != nil {
		h.writeErr(w, fmt.Errorf("%w: %q", domain.ErrInvalidDate, date))
		return
	}
	batch, err := h.recs.Generate(r.Context(), userID, day)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recommendations": batch})
}

func (h *Handler) listActive(w http.ResponseWriter, r *http.Request) {
	active, err := h.recs.ListActive(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recommendations": active})
}

func (h *Handler) accept(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.recs.Accept)
}

func (h *Handler) dismiss(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.recs.Dismiss)
}

func (h *Handler) view(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.recs.MarkViewed)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) (domain.Recommendation, error)) {
	rec, err := fn(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) invalidate(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	userID := chi.URLParam(r, "userID")
	if err := validation.UserID(userID); err != nil {
		h.writeErr(w, err)
		return
	}
	var req invalidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Dates) == 0 || len(req.Dates) > maxInvalidateDays {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("dates must contain 1..%d items", maxInvalidateDays))
		return
	}
	days := make([]time.Time, 0, len(req.Dates))
	for _, raw := range req.Dates {
		day, err := score.ParseDate(raw)
		if err != nil {
			h.writeErr(w, fmt.Errorf("%w: %q", domain.ErrInvalidDate, raw))
			return
		}
		days = append(days, day)
	}
	if err := h.scores.InvalidateDays(r.Context(), userID, days); err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invalidated": len(days)})
}

func (h *Handler) logConsumption(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var req intake.ConsumptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.UserID = chi.URLParam(r, "userID")
	ev, err := h.intake.LogConsumption(r.Context(), req)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, consumptionResponse{
		ID:         ev.ID,
		ConsumedAt: ev.ConsumedAt,
		MealTime:   string(ev.MealTime),
		Foods:      len(ev.Foods),
	})
}

func (h *Handler) putUser(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var req intake.UserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.UserID = chi.URLParam(r, "userID")
	user, err := h.intake.SaveUser(r.Context(), req)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{ID: user.ID, Timezone: user.Timezone, DietaryRestrictions: user.DietaryRestrictions})
}

// requestDate берёт ?date= или «сегодня» в поясе ?tz= (по умолчанию пояс сервиса).
func (h *Handler) requestDate(r *http.Request) (string, error) {
	q := r.URL.Query()
	if date := strings.TrimSpace(q.Get("date")); date != "" {
		return date, nil
	}
	loc := h.loc
	if tz := strings.TrimSpace(q.Get("tz")); tz != "" {
		parsed, err := time.LoadLocation(tz)
		if err != nil {
			return "", fmt.Errorf("%w: unknown time zone %q", domain.ErrValidation, tz)
		}
		loc = parsed
	}
	return h.clock.Now().In(loc).Format(time.DateOnly), nil
}

func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	switch {
	case domain.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.log.Error().Err(err).Msg("httpapi: внутренняя ошибка")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
