package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/examprep/internal/model"
)

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

// requireAuth is middleware that checks for a valid bearer token.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, r, http.StatusUnauthorized, "Unauthorized", nil)
			return
		}

		user, err := h.store.Authenticate(r.Context(), token)
		if err != nil {
			slog.Error("failed to authenticate token", "error", err)
			writeError(w, r, http.StatusInternalServerError, "InternalError", nil)
			return
		}
		if user == nil {
			writeError(w, r, http.StatusUnauthorized, "Unauthorized", nil)
			return
		}

		ctx := model.ContextWithUser(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole returns middleware that checks the user has one of the allowed roles.
func requireRole(allowed ...model.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := model.UserFromContext(r.Context())
			if user == nil {
				writeError(w, r, http.StatusUnauthorized, "Unauthorized", nil)
				return
			}
			for _, role := range allowed {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, r, http.StatusForbidden, "Forbidden", nil)
		})
	}
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	user, err := h.store.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		slog.Error("failed to get user", "error", err)
		writeError(w, r, http.StatusInternalServerError, "InternalError", nil)
		return
	}
	if user == nil {
		writeError(w, r, http.StatusUnauthorized, "InvalidCredentials", nil)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		writeError(w, r, http.StatusUnauthorized, "InvalidCredentials", nil)
		return
	}
	if !user.Active {
		writeError(w, r, http.StatusForbidden, "AccountDisabled", nil)
		return
	}

	token, err := h.store.CreateToken(r.Context(), user.ID)
	if err != nil {
		slog.Error("failed to create token", "error", err)
		writeError(w, r, http.StatusInternalServerError, "InternalError", nil)
		return
	}
	slog.Info("user logged in", "user", user.Username)
	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: user})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.store.RevokeToken(r.Context(), bearerToken(r)); err != nil {
		slog.Warn("failed to revoke token", "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.UserFromContext(r.Context()))
}
