package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/examscore/internal/apperr"
	"github.com/pavelanni/examscore/internal/auth"
	appI18n "github.com/pavelanni/examscore/internal/i18n"
	"github.com/pavelanni/examscore/internal/metrics"
	"github.com/pavelanni/examscore/internal/model"
)

type claimsCtxKey struct{}

func claimsFromContext(ctx context.Context) *auth.Claims {
	c, _ := ctx.Value(claimsCtxKey{}).(*auth.Claims)
	return c
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// requireAuth is middleware that checks for a valid, unrevoked bearer token
// belonging to an active user.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, r, apperr.New(apperr.KindUnauthenticated, "no token provided"))
			return
		}
		claims, err := h.tokens.Verify(token)
		if err != nil {
			slog.Debug("rejected token", "error", err)
			writeError(w, r, apperr.New(apperr.KindUnauthenticated, "invalid token"))
			return
		}

		revoked, err := h.store.IsTokenRevoked(r.Context(), claims.ID)
		if err != nil {
			writeError(w, r, apperr.Wrap(apperr.KindServerError, err, "check token revocation"))
			return
		}
		if revoked {
			writeError(w, r, apperr.New(apperr.KindUnauthenticated, "token revoked"))
			return
		}

		user, err := h.store.GetUserByID(r.Context(), claims.UserID)
		if err != nil {
			writeError(w, r, apperr.Wrap(apperr.KindServerError, err, "load user"))
			return
		}
		if user == nil || !user.Active {
			writeError(w, r, apperr.New(apperr.KindUnauthenticated, "account is not active"))
			return
		}

		ctx := model.ContextWithUser(r.Context(), user)
		ctx = context.WithValue(ctx, claimsCtxKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole returns middleware that checks the user has one of the allowed roles.
func requireRole(allowed ...model.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := model.UserFromContext(r.Context())
			if user == nil {
				writeError(w, r, apperr.New(apperr.KindUnauthenticated, "authentication required"))
				return
			}
			if hasRole(user, allowed...) {
				next.ServeHTTP(w, r)
				return
			}
			writeError(w, r, apperr.New(apperr.KindForbidden, "role %s may not access this resource", user.Role))
		})
	}
}

func hasRole(u *model.User, allowed ...model.UserRole) bool {
	for _, role := range allowed {
		if u.Role == role {
			return true
		}
	}
	return false
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signInResponse struct {
	Token     string      `json:"token"`
	ExpiresAt int64       `json:"expiresAt"`
	Message   string      `json:"message"`
	User      *model.User `json:"user"`
}

func (h *Handler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), strings.TrimSpace(req.Email))
	if err != nil {
		writeError(w, r, apperr.Wrap(apperr.KindServerError, err, "load user"))
		return
	}
	if user == nil || !user.Active ||
		bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		metrics.ObserveLogin(false)
		writeError(w, r, apperr.New(apperr.KindUnauthenticated, "%s", appI18n.T(r.Context(), "LoginError")))
		return
	}

	token, claims, err := h.tokens.Issue(user)
	if err != nil {
		writeError(w, r, apperr.Wrap(apperr.KindServerError, err, "issue token"))
		return
	}
	metrics.ObserveLogin(true)
	slog.Info("user signed in", "user_id", user.ID, "role", user.Role)
	writeJSON(w, http.StatusOK, signInResponse{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Unix(),
		Message:   appI18n.T(r.Context(), "LoginSuccess"),
		User:      user,
	})
}

type signUpRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Password    string `json:"password"`
}

func (req signUpRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Username, validation.Required, validation.Length(3, 50)),
		validation.Field(&req.Email, validation.Required, is.EmailFormat),
		validation.Field(&req.Password, validation.Required, validation.Length(6, 72)),
	)
}

// handleSignUp registers an account with the default role.
func (h *Handler) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := h.createUser(r.Context(), req, model.UserRoleUser)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": appI18n.Td(r.Context(), "UserCreated", map[string]any{"Username": user.Username}),
		"user":    user,
	})
}

func (h *Handler) createUser(ctx context.Context, req signUpRequest, role model.UserRole) (*model.User, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.Username = strings.TrimSpace(req.Username)
	if err := req.Validate(); err != nil {
		return nil, apperr.InvalidInput("%v", err)
	}

	existing, err := h.store.GetUserByEmail(ctx, req.Email)
	if err == nil && existing == nil {
		existing, err = h.store.GetUserByUsername(ctx, req.Username)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindServerError, err, "check existing user")
	}
	if existing != nil {
		return nil, apperr.InvalidInput("email or username is already in use")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindServerError, err, "hash password")
	}
	displayName := req.DisplayName
	if displayName == "" {
		displayName = req.Username
	}
	u := model.User{
		Username:     req.Username,
		DisplayName:  displayName,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         role,
		Active:       true,
	}
	id, err := h.store.CreateUser(ctx, u)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindServerError, err, "create user")
	}
	u.ID = id
	return &u, nil
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, r, apperr.New(apperr.KindUnauthenticated, "authentication required"))
		return
	}
	if err := h.store.RevokeToken(r.Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
		writeError(w, r, apperr.Wrap(apperr.KindServerError, err, "revoke token"))
		return
	}
	slog.Info("user signed out", "user_id", claims.UserID)
	writeJSON(w, http.StatusOK, map[string]string{"message": appI18n.T(r.Context(), "LogoutSuccess")})
}

func (h *Handler) handleCheckAuth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"user": model.UserFromContext(r.Context())})
}
