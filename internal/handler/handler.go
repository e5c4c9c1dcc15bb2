package handler

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/examprep/internal/model"
	"github.com/pavelanni/examprep/internal/store"
	"github.com/pavelanni/examprep/internal/translation"
)

const defaultBatchMaxSize = 200

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store  *store.Store
	svc    *translation.Service
	config model.ServerConfig
}

// New creates a new Handler.
func New(s *store.Store, svc *translation.Service, cfg model.ServerConfig) *Handler {
	if cfg.BatchMaxSize <= 0 {
		cfg.BatchMaxSize = defaultBatchMaxSize
	}
	return &Handler{store: s, svc: svc, config: cfg}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", h.handleLogin)
		r.Get("/languages", h.handleLanguages)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)
			r.Post("/logout", h.handleLogout)
			r.Get("/me", h.handleMe)

			r.Get("/exams", h.handleListExams)
			r.Get("/exams/{examID}", h.handleGetExam)
			r.Get("/exams/{examID}/translations", h.handleListTranslations)
			r.Post("/exams/{examID}/translations/{lang}", h.handleTranslate)
			r.Post("/translations/batch", h.handleBatch)

			r.Group(func(r chi.Router) {
				r.Use(requireRole(model.UserRoleTeacher, model.UserRoleAdmin))
				r.Post("/exams", h.handleCreateExam)
				r.Put("/exams/{examID}/translations/{lang}", h.handleSetManual)
			})

			r.Group(func(r chi.Router) {
				r.Use(requireRole(model.UserRoleAdmin))
				r.Delete("/exams/{examID}/translations/{lang}", h.handleInvalidate)
				r.Get("/admin/users", h.handleListUsers)
				r.Post("/admin/users", h.handleCreateUser)
				r.Post("/admin/users/{userID}/toggle", h.handleToggleUserActive)
				r.Post("/admin/exams/import", h.handleUploadExams)
				r.Get("/admin/translations/stats", h.handleTranslationStats)
			})
		})
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := h.store.ExamCount(r.Context()); err != nil {
		slog.Error("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleLanguages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.SupportedLanguages())
}

// examView is an exam with its description in the requested language.
type examView struct {
	model.Exam
	Language   string `json:"language,omitempty"`
	Translated bool   `json:"translated"`
}

// localize resolves the ?lang= parameter. An empty value keeps the original.
func (h *Handler) localize(ctx context.Context, exam model.Exam, lang string) examView {
	view := examView{Exam: exam}
	if lang == "" {
		return view
	}
	view.Language = translation.NormalizeCode(lang)
	view.Description, view.Translated = h.svc.Localize(ctx, exam, lang)
	return view
}

func (h *Handler) langQuery(w http.ResponseWriter, r *http.Request) (string, bool) {
	lang := r.URL.Query().Get("lang")
	if lang != "" && !h.svc.Languages().Supports(lang) {
		writeError(w, r, http.StatusBadRequest, "UnsupportedLanguage", map[string]any{"Code": lang})
		return "", false
	}
	return lang, true
}

func (h *Handler) handleListExams(w http.ResponseWriter, r *http.Request) {
	lang, ok := h.langQuery(w, r)
	if !ok {
		return
	}
	exams, err := h.store.ListExams(r.Context())
	if err != nil {
		slog.Error("failed to list exams", "error", err)
		writeError(w, r, http.StatusInternalServerError, "InternalError", nil)
		return
	}
	views := make([]examView, 0, len(exams))
	for _, e := range exams {
		views = append(views, h.localize(r.Context(), e, lang))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) examFromPath(w http.ResponseWriter, r *http.Request) (model.Exam, bool) {
	id, ok := idParam(r, "examID")
	if !ok {
		writeError(w, r, http.StatusNotFound, "ExamNotFound", nil)
		return model.Exam{}, false
	}
	exam, err := h.svc.Exam(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "")
		return model.Exam{}, false
	}
	return exam, true
}

func (h *Handler) handleGetExam(w http.ResponseWriter, r *http.Request) {
	lang, ok := h.langQuery(w, r)
	if !ok {
		return
	}
	exam, ok := h.examFromPath(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.localize(r.Context(), exam, lang))
}

type createExamRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=10000"`
}

func (h *Handler) handleCreateExam(w http.ResponseWriter, r *http.Request) {
	var req createExamRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	id, err := h.store.InsertExam(r.Context(), model.Exam{Name: req.Name, Description: req.Description})
	if err != nil {
		slog.Error("failed to create exam", "error", err)
		writeError(w, r, http.StatusInternalServerError, "InternalError", nil)
		return
	}
	exam, err := h.store.GetExam(r.Context(), id)
	if err != nil {
		slog.Error("failed to load created exam", "exam_id", id, "error", err)
		writeError(w, r, http.StatusInternalServerError, "InternalError", nil)
		return
	}
	slog.Info("exam created", "exam_id", id, "user", model.UserFromContext(r.Context()).Username)
	writeJSON(w, http.StatusCreated, exam)
}

func (h *Handler) handleListTranslations(w http.ResponseWriter, r *http.Request) {
	exam, ok := h.examFromPath(w, r)
	if !ok {
		return
	}
	recs, err := h.store.ListTranslations(r.Context(), exam.ID)
	if err != nil {
		slog.Error("failed to list translations", "exam_id", exam.ID, "error", err)
		writeError(w, r, http.StatusInternalServerError, "InternalError", nil)
		return
	}
	if recs == nil {
		recs = []model.TranslationRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

// handleTranslate returns the record for the pair, translating it first when
// needed. A provider failure still answers 200 with an ERROR record.
func (h *Handler) handleTranslate(w http.ResponseWriter, r *http.Request) {
	lang := chi.URLParam(r, "lang")
	if !h.svc.Languages().Supports(lang) {
		writeError(w, r, http.StatusBadRequest, "UnsupportedLanguage", map[string]any{"Code": lang})
		return
	}
	exam, ok := h.examFromPath(w, r)
	if !ok {
		return
	}
	rec, err := h.svc.Translate(r.Context(), exam, lang)
	if err != nil {
		writeServiceError(w, r, err, lang)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type manualTranslationRequest struct {
	Text string `json:"text" validate:"required,max=20000"`
}

func (h *Handler) handleSetManual(w http.ResponseWriter, r *http.Request) {
	lang := chi.URLParam(r, "lang")
	exam, ok := h.examFromPath(w, r)
	if !ok {
		return
	}
	var req manualTranslationRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	rec, err := h.svc.SetManual(r.Context(), exam, lang, req.Text)
	if err != nil {
		writeServiceError(w, r, err, lang)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	lang := chi.URLParam(r, "lang")
	exam, ok := h.examFromPath(w, r)
	if !ok {
		return
	}
	deleted, err := h.svc.Invalidate(r.Context(), exam.ID, lang)
	if err != nil {
		writeServiceError(w, r, err, lang)
		return
	}
	if !deleted {
		writeError(w, r, http.StatusNotFound, "TranslationNotFound", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type batchRequest struct {
	ExamIDs   []int64  `json:"exam_ids" validate:"required,min=1,dive,gt=0"`
	Languages []string `json:"languages" validate:"required,min=1,dive,required"`
}

func (h *Handler) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if len(req.ExamIDs)*len(req.Languages) > h.config.BatchMaxSize {
		writeError(w, r, http.StatusBadRequest, "BatchTooLarge", map[string]any{"Max": h.config.BatchMaxSize})
		return
	}
	writeJSON(w, http.StatusOK, h.svc.TranslateBatch(r.Context(), req.ExamIDs, req.Languages))
}

func (h *Handler) handleTranslationStats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.store.CountTranslationsByStatus(r.Context())
	if err != nil {
		slog.Error("failed to count translations", "error", err)
		writeError(w, r, http.StatusInternalServerError, "InternalError", nil)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
