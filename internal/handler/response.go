package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	appI18n "github.com/pavelanni/examprep/internal/i18n"
	"github.com/pavelanni/examprep/internal/translation"
)

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeError writes a localized {"error": "..."} body.
func writeError(w http.ResponseWriter, r *http.Request, status int, msgID string, data map[string]any) {
	writeJSON(w, status, errorResponse{Error: appI18n.Td(r.Context(), msgID, data)})
}

// writeServiceError maps translation service errors to HTTP statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, lang string) {
	switch {
	case errors.Is(err, translation.ErrUnsupportedLanguage):
		writeError(w, r, http.StatusBadRequest, "UnsupportedLanguage", map[string]any{"Code": lang})
	case errors.Is(err, translation.ErrEmptyManualText):
		writeError(w, r, http.StatusBadRequest, "EmptyManualText", nil)
	case errors.Is(err, translation.ErrNoSourceText):
		writeError(w, r, http.StatusUnprocessableEntity, "NoSourceText", nil)
	case errors.Is(err, translation.ErrExamNotFound):
		writeError(w, r, http.StatusNotFound, "ExamNotFound", nil)
	default:
		slog.Error("request failed", "path", r.URL.Path, "error", err)
		writeError(w, r, http.StatusInternalServerError, "InternalError", nil)
	}
}

// decodeRequest reads a JSON body into dst and validates its struct tags.
func decodeRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, "InvalidRequest", map[string]any{"Detail": err.Error()})
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, "InvalidRequest", map[string]any{"Detail": validationDetail(err)})
		return false
	}
	return true
}

func validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	if fe.Param() != "" {
		return fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
}

func idParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
