package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/examprep/internal/model"
	"github.com/pavelanni/examprep/internal/store"
)

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		slog.Error("failed to list users", "error", err)
		writeError(w, r, http.StatusInternalServerError, "InternalError", nil)
		return
	}
	if users == nil {
		users = []model.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

type createUserRequest struct {
	Username    string `json:"username" validate:"required,min=3,max=64,alphanum"`
	DisplayName string `json:"display_name" validate:"max=128"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	Role        string `json:"role" validate:"required,oneof=student teacher admin"`
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	existing, err := h.store.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		slog.Error("failed to look up user", "error", err)
		writeError(w, r, http.StatusInternalServerError, "InternalError", nil)
		return
	}
	if existing != nil {
		writeError(w, r, http.StatusConflict, "UserExists", map[string]any{"Username": req.Username})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("failed to hash password", "error", err)
		writeError(w, r, http.StatusInternalServerError, "InternalError", nil)
		return
	}

	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = req.Username
	}

	id, err := h.store.CreateUser(r.Context(), model.User{
		Username:     req.Username,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		Role:         model.UserRole(req.Role),
		Active:       true,
	})
	if err != nil {
		slog.Error("failed to create user", "error", err)
		writeError(w, r, http.StatusInternalServerError, "InternalError", nil)
		return
	}

	user, err := h.store.GetUserByID(r.Context(), id)
	if err != nil || user == nil {
		slog.Error("failed to load created user", "id", id, "error", err)
		writeError(w, r, http.StatusInternalServerError, "InternalError", nil)
		return
	}
	slog.Info("user created", "username", user.Username, "role", user.Role)
	writeJSON(w, http.StatusCreated, user)
}

func (h *Handler) handleToggleUserActive(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "userID")
	if !ok {
		writeError(w, r, http.StatusNotFound, "UserNotFound", nil)
		return
	}

	if _, err := h.store.ToggleUserActive(r.Context(), id); err != nil {
		if isNotFound(err) {
			writeError(w, r, http.StatusNotFound, "UserNotFound", nil)
			return
		}
		slog.Error("failed to toggle user active", "id", id, "error", err)
		writeError(w, r, http.StatusInternalServerError, "InternalError", nil)
		return
	}

	user, err := h.store.GetUserByID(r.Context(), id)
	if err != nil || user == nil {
		slog.Error("failed to load user", "id", id, "error", err)
		writeError(w, r, http.StatusInternalServerError, "InternalError", nil)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type importResponse struct {
	Imported  int  `json:"imported"`
	Duplicate bool `json:"duplicate"`
}

// handleUploadExams imports a JSON array of exams from the "exams_file"
// multipart field.
func (h *Handler) handleUploadExams(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeError(w, r, http.StatusBadRequest, "InvalidRequest", map[string]any{"Detail": "file too large"})
		return
	}

	file, header, err := r.FormFile("exams_file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "InvalidRequest", map[string]any{"Detail": "no file uploaded"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		slog.Error("failed to read upload", "error", err)
		writeError(w, r, http.StatusInternalServerError, "InternalError", nil)
		return
	}

	n, err := h.store.ImportExams(r.Context(), header.Filename, data)
	switch {
	case errors.Is(err, store.ErrAlreadyImported):
		writeJSON(w, http.StatusOK, importResponse{Duplicate: true})
		return
	case errors.Is(err, store.ErrSourceChanged):
		writeError(w, r, http.StatusConflict, "InvalidRequest", map[string]any{"Detail": err.Error()})
		return
	case err != nil:
		slog.Warn("exam import failed", "filename", header.Filename, "error", err)
		writeError(w, r, http.StatusBadRequest, "InvalidRequest", map[string]any{"Detail": err.Error()})
		return
	}

	slog.Info("uploaded exams via admin", "filename", header.Filename, "count", n)
	writeJSON(w, http.StatusCreated, importResponse{Imported: n})
}
