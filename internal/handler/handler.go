package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/examscore/internal/apperr"
	"github.com/pavelanni/examscore/internal/auth"
	"github.com/pavelanni/examscore/internal/bank"
	appI18n "github.com/pavelanni/examscore/internal/i18n"
	"github.com/pavelanni/examscore/internal/model"
	"github.com/pavelanni/examscore/internal/scoring"
	"github.com/pavelanni/examscore/internal/stats"
	"github.com/pavelanni/examscore/internal/store"
)

const maxBodyBytes = 1 << 20

// Store is everything the HTTP layer needs from persistence.
type Store interface {
	scoring.ExamRepository
	scoring.ResultStore
	stats.Source
	bank.Repository

	DeleteExam(ctx context.Context, id string) error

	CreateUser(ctx context.Context, u model.User) (string, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	ToggleUserActive(ctx context.Context, id string) error
	SetUserRole(ctx context.Context, id string, role model.UserRole) error

	RevokeToken(ctx context.Context, id string, expiresAt time.Time) error
	IsTokenRevoked(ctx context.Context, id string) (bool, error)
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store  Store
	engine *scoring.Engine
	stats  *stats.Aggregator
	tokens *auth.Service
	config model.ServerConfig
}

// New creates a new Handler. notifier may be nil.
func New(s Store, notifier scoring.Notifier, cfg model.ServerConfig) (*Handler, error) {
	tokens, err := auth.NewService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("create token service: %w", err)
	}
	return &Handler{
		store:  s,
		engine: scoring.NewEngine(s, s, notifier),
		stats:  stats.New(s),
		tokens: tokens,
		config: cfg,
	}, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Post("/sign-up", h.handleSignUp)
	r.Post("/sign-in", h.handleSignIn)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)

		r.Post("/logout", h.handleLogout)
		r.Get("/check-auth", h.handleCheckAuth)
		r.Get("/users/{userID}/role", h.handleGetUserRole)
		r.Get("/exams/{examID}", h.handleGetExam)
		r.Get("/results/{resultID}", h.handleGetResult)

		r.Group(func(r chi.Router) {
			r.Use(requireRole(model.UserRoleStudent))
			r.Post("/exams/{examID}/submit", h.handleSubmit)
			r.Get("/results", h.handleListResults)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireRole(model.UserRoleTeacher, model.UserRoleAdmin))
			r.Get("/students/{studentID}/results", h.handleStudentResults)
			r.Get("/exams/{examID}/statistics", h.handleStatistics)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireRole(model.UserRoleAdmin))
			r.Get("/users", h.handleListUsers)
			r.Post("/users", h.handleCreateUser)
			r.Post("/users/{userID}/toggle", h.handleToggleUserActive)
			r.Put("/users/{userID}/role", h.handleSetUserRole)
			r.Post("/exams/import", h.handleImportExams)
			r.Delete("/exams/{examID}", h.handleDeleteExam)
		})
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorBody struct {
	Kind    apperr.Kind `json:"kind"`
	Message string      `json:"message"`
	Detail  string      `json:"detail,omitempty"`
}

var errorMessageIDs = map[apperr.Kind]string{
	apperr.KindInvalidInput:    "ErrInvalidInput",
	apperr.KindNotFound:        "ErrNotFound",
	apperr.KindExamExpired:     "ErrExamExpired",
	apperr.KindServerError:     "ErrServerError",
	apperr.KindUnauthenticated: "ErrUnauthenticated",
	apperr.KindForbidden:       "ErrForbidden",
}

// writeError renders err as {"error": {...}} with a localized message.
// Causes of server errors are logged and never sent to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	body := errorBody{Kind: kind, Message: appI18n.T(r.Context(), errorMessageIDs[kind])}
	if kind == apperr.KindServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		body.Detail = apperr.MessageOf(err)
	}
	writeJSON(w, status, map[string]errorBody{"error": body})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return apperr.InvalidInput("invalid JSON body: %v", err)
	}
	return nil
}

// notFoundOr maps a store miss to a NotFound error and anything else to a
// server error.
func notFoundOr(err error, what, id string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("%s %s not found", what, id)
	}
	return apperr.Wrap(apperr.KindServerError, err, "load %s %s", what, id)
}
