package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/examscore/internal/apperr"
	"github.com/pavelanni/examscore/internal/bank"
	appI18n "github.com/pavelanni/examscore/internal/i18n"
	"github.com/pavelanni/examscore/internal/model"
	"github.com/pavelanni/examscore/internal/store"
)

const maxUploadBytes = 10 << 20

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		writeError(w, r, apperr.Wrap(apperr.KindServerError, err, "list users"))
		return
	}
	if users == nil {
		users = []model.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

type createUserRequest struct {
	signUpRequest
	Role model.UserRole `json:"role"`
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Role == "" {
		req.Role = model.UserRoleStudent
	}
	if !model.ValidRole(req.Role) {
		writeError(w, r, apperr.InvalidInput("unknown role %q", req.Role))
		return
	}

	user, err := h.createUser(r.Context(), req.signUpRequest, req.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("admin created user", "user_id", user.ID, "role", user.Role)
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": appI18n.Td(r.Context(), "UserCreated", map[string]any{"Username": user.Username}),
		"user":    user,
	})
}

func (h *Handler) handleToggleUserActive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "userID")
	if err := h.store.ToggleUserActive(r.Context(), id); err != nil {
		writeError(w, r, notFoundOr(err, "user", id))
		return
	}
	user, err := h.store.GetUserByID(r.Context(), id)
	if err != nil {
		writeError(w, r, apperr.Wrap(apperr.KindServerError, err, "load user %s", id))
		return
	}
	slog.Info("toggled user active", "user_id", id, "active", user.Active)
	writeJSON(w, http.StatusOK, user)
}

// assignableRoles are the roles that can be set on an existing account.
var assignableRoles = []model.UserRole{model.UserRoleUser, model.UserRoleStudent, model.UserRoleTeacher}

func (h *Handler) handleGetUserRole(w http.ResponseWriter, r *http.Request) {
	caller := model.UserFromContext(r.Context())
	id := chi.URLParam(r, "userID")
	if caller.ID != id && caller.Role != model.UserRoleAdmin {
		writeError(w, r, apperr.New(apperr.KindForbidden, "cannot read another user's role"))
		return
	}
	user, err := h.store.GetUserByID(r.Context(), id)
	if err != nil {
		writeError(w, r, apperr.Wrap(apperr.KindServerError, err, "load user %s", id))
		return
	}
	if user == nil {
		writeError(w, r, apperr.NotFound("user %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]model.UserRole{"role": user.Role})
}

func (h *Handler) handleSetUserRole(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "userID")
	var req struct {
		Role model.UserRole `json:"role"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if !hasRole(&model.User{Role: req.Role}, assignableRoles...) {
		writeError(w, r, apperr.InvalidInput("role must be one of user, student, teacher"))
		return
	}
	if err := h.store.SetUserRole(r.Context(), id, req.Role); err != nil {
		writeError(w, r, notFoundOr(err, "user", id))
		return
	}
	slog.Info("changed user role", "user_id", id, "role", req.Role)
	writeJSON(w, http.StatusOK, map[string]model.UserRole{"role": req.Role})
}

type importResponse struct {
	bank.Summary
	Message string `json:"message"`
}

func (h *Handler) handleImportExams(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, r, apperr.InvalidInput("file too large or not multipart"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, apperr.InvalidInput("no file uploaded"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, apperr.Wrap(apperr.KindServerError, err, "read upload"))
		return
	}

	sum, err := bank.Import(r.Context(), h.store, header.Filename, data)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := importResponse{Summary: sum}
	if sum.Unchanged {
		resp.Message = appI18n.Td(r.Context(), "ImportUnchanged", map[string]any{"File": header.Filename})
	} else {
		resp.Message = appI18n.Tp(r.Context(), "ImportSummary", sum.Added(), map[string]any{"File": header.Filename})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleDeleteExam(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "examID")
	err := h.store.DeleteExam(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, r, apperr.NotFound("exam %s not found", id))
		return
	}
	if err != nil {
		writeError(w, r, apperr.Wrap(apperr.KindServerError, err, "delete exam %s", id))
		return
	}
	slog.Info("deleted exam", "exam_id", id)
	w.WriteHeader(http.StatusNoContent)
}
