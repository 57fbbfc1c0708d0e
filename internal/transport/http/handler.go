package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
)

// Handler serves the attempt and leaderboard API.
type Handler struct {
	attempts    *app.AttemptService
	leaderboard *app.Leaderboard
	hub         *app.Hub
	logger      *zap.Logger
	upgrader    websocket.Upgrader
}

func NewHandler(attempts *app.AttemptService, leaderboard *app.Leaderboard, hub *app.Hub, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		attempts:    attempts,
		leaderboard: leaderboard,
		hub:         hub,
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origins are enforced by the CORS layer.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

type startResponse struct {
	AttemptID    string    `json:"attemptId"`
	NumQuestions int       `json:"numQuestions"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

type submitRequest struct {
	Answers []domain.Answer `json:"answers"`
}

type historyResponse struct {
	Attempts []domain.AttemptView `json:"attempts"`
	Page     int                  `json:"page"`
	Limit    int                  `json:"limit"`
}

type rankResponse struct {
	Key  domain.GroupKey `json:"key"`
	Rank int             `json:"rank"`
}

func (h *Handler) StartAttempt(w http.ResponseWriter, r *http.Request) {
	var req app.StartRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	attempt, err := h.attempts.Start(r.Context(), IdentityFrom(r.Context()), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, startResponse{
		AttemptID:    attempt.ID,
		NumQuestions: attempt.NumQuestions,
		ExpiresAt:    attempt.ExpiresAt,
	})
}

func (h *Handler) ListAttempts(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	views, err := h.attempts.History(r.Context(), IdentityFrom(r.Context()), page, limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{Attempts: views, Page: page, Limit: limit})
}

func (h *Handler) GetAttempt(w http.ResponseWriter, r *http.Request) {
	view, err := h.attempts.Get(r.Context(), IdentityFrom(r.Context()), chi.URLParam(r, "attemptID"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) SubmitAttempt(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	view, err := h.attempts.Submit(r.Context(), IdentityFrom(r.Context()), chi.URLParam(r, "attemptID"), req.Answers)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) RetakeAttempt(w http.ResponseWriter, r *http.Request) {
	view, err := h.attempts.Retake(r.Context(), IdentityFrom(r.Context()), chi.URLParam(r, "attemptID"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	q, err := leaderboardQuery(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	page, err := h.leaderboard.Query(r.Context(), IdentityFrom(r.Context()), q)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handler) Rank(w http.ResponseWriter, r *http.Request) {
	_, key, err := groupQuery(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	who := IdentityFrom(r.Context())
	rank, found, err := h.leaderboard.RankOf(r.Context(), who.UserID, key)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if !found {
		writeError(w, r, h.logger, domain.ErrEntryNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rankResponse{Key: key, Rank: rank})
}

func leaderboardQuery(r *http.Request) (app.LeaderboardQuery, error) {
	q := app.LeaderboardQuery{
		CategoryID: r.URL.Query().Get("categoryId"),
		Difficulty: r.URL.Query().Get("difficulty"),
	}
	var err error
	if q.NumQuestions, err = queryInt(r, "numQuestions"); err != nil {
		return q, err
	}
	if q.Page, err = queryInt(r, "page"); err != nil {
		return q, err
	}
	if q.Limit, err = queryInt(r, "limit"); err != nil {
		return q, err
	}
	return q, nil
}

// groupQuery reads a query that must name exactly one leaderboard group.
func groupQuery(r *http.Request) (app.LeaderboardQuery, domain.GroupKey, error) {
	q, err := leaderboardQuery(r)
	if err != nil {
		return q, domain.GroupKey{}, err
	}
	filter, err := app.ParseFilter(q)
	if err != nil {
		return q, domain.GroupKey{}, err
	}
	if !filter.Complete() {
		return q, domain.GroupKey{}, domain.Invalid("categoryId, difficulty and numQuestions are required")
	}
	return q, filter.Key(), nil
}
