// Package translation manages AI translations of exam descriptions: a
// persisted get-or-create cache keyed by (exam, language), a
// PENDING/COMPLETED/ERROR status machine, and a fallback to the source text
// when no completed translation exists.
package translation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/time/rate"

	"github.com/pavelanni/examprep/internal/cache"
	"github.com/pavelanni/examprep/internal/llm"
	"github.com/pavelanni/examprep/internal/llm/prompts"
	"github.com/pavelanni/examprep/internal/model"
)

const (
	defaultMaxTokens    = 1000
	defaultTemperature  = 0.3
	defaultBatchWorkers = 4
)

// Store is the persistence the service needs. GetExam returns
// sql.ErrNoRows for a missing exam; GetTranslation returns nil, nil.
type Store interface {
	GetExam(ctx context.Context, id int64) (model.Exam, error)
	GetTranslation(ctx context.Context, examID int64, lang string) (*model.TranslationRecord, error)
	GetOrCreateTranslation(ctx context.Context, examID int64, lang string) (*model.TranslationRecord, bool, error)
	UpdateTranslation(ctx context.Context, rec *model.TranslationRecord) error
	UpsertTranslation(ctx context.Context, rec model.TranslationRecord) (*model.TranslationRecord, error)
	DeleteTranslation(ctx context.Context, examID int64, lang string) (bool, error)
}

// Completer is the text-generation provider.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

// Options configures a Service. Zero values select defaults.
type Options struct {
	Languages    Languages
	Cache        cache.RecordCache
	Limiter      *rate.Limiter // nil disables rate limiting
	MaxTokens    int
	Temperature  float32
	BatchWorkers int
}

// Service is the translation cache manager.
type Service struct {
	store        Store
	provider     Completer
	langs        Languages
	cache        cache.RecordCache
	limiter      *rate.Limiter
	maxTokens    int
	temperature  float32
	batchWorkers int
}

// NewService creates a translation service.
func NewService(store Store, provider Completer, opts Options) *Service {
	s := &Service{
		store:        store,
		provider:     provider,
		langs:        opts.Languages,
		cache:        opts.Cache,
		limiter:      opts.Limiter,
		maxTokens:    opts.MaxTokens,
		temperature:  opts.Temperature,
		batchWorkers: opts.BatchWorkers,
	}
	if s.langs.Len() == 0 {
		s.langs = DefaultLanguages()
	}
	if s.cache == nil {
		s.cache = cache.Nop{}
	}
	if s.maxTokens <= 0 {
		s.maxTokens = defaultMaxTokens
	}
	if s.temperature <= 0 {
		s.temperature = defaultTemperature
	}
	if s.batchWorkers <= 0 {
		s.batchWorkers = defaultBatchWorkers
	}
	return s
}

// SupportedLanguages returns a copy of the code→name table.
func (s *Service) SupportedLanguages() map[string]string {
	return s.langs.Map()
}

// Languages returns the language table.
func (s *Service) Languages() Languages {
	return s.langs
}

func (s *Service) resolveLanguage(code string) (string, string, error) {
	lang := NormalizeCode(code)
	name, ok := s.langs.Name(lang)
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, code)
	}
	return lang, name, nil
}

// Exam loads an exam, mapping a missing row to ErrExamNotFound.
func (s *Service) Exam(ctx context.Context, id int64) (model.Exam, error) {
	exam, err := s.store.GetExam(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return exam, fmt.Errorf("exam %d: %w", id, ErrExamNotFound)
	}
	if err != nil {
		slog.Error("failed to load exam", "exam_id", id, "error", err)
		return exam, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return exam, nil
}

// GetOrCreate returns the record for (exam, lang), creating a PENDING
// record when none exists. An ERROR record is reset to PENDING so the next
// translation attempt retries it.
func (s *Service) GetOrCreate(ctx context.Context, exam model.Exam, code string) (*model.TranslationRecord, error) {
	lang, _, err := s.resolveLanguage(code)
	if err != nil {
		return nil, err
	}
	return s.getOrCreate(ctx, exam.ID, lang)
}

func (s *Service) getOrCreate(ctx context.Context, examID int64, lang string) (*model.TranslationRecord, error) {
	rec, _, err := s.store.GetOrCreateTranslation(ctx, examID, lang)
	if err != nil {
		slog.Error("translation lookup failed", "exam_id", examID, "lang", lang, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	switch {
	case rec.Status == model.TranslationError:
		if err := rec.Retry(); err != nil {
			return nil, err
		}
		if err := s.persist(ctx, rec); err != nil {
			return nil, err
		}
		slog.Info("retrying failed translation", "exam_id", examID, "lang", lang)
	case rec.Status == model.TranslationCompleted && rec.TranslatedText == "":
		// A completed record without text is unusable; translate it again.
		slog.Warn("completed translation has no text, reopening", "exam_id", examID, "lang", lang)
		rec.Status = model.TranslationPending
	}
	return rec, nil
}

// Translate returns a completed translation of exam.Description into code,
// calling the provider only when no completed record exists.
//
// Provider and parse failures are not returned as errors: the record comes
// back with status ERROR and a diagnostic in TranslatedText. A description
// longer than model.MaxDescriptionRunes fails the same way without a
// provider call. Errors are
// returned only for unsupported languages, exams without a description and
// store failures.
//
// Concurrent calls for the same pair are not serialized. Both may reach the
// provider and the last write wins.
func (s *Service) Translate(ctx context.Context, exam model.Exam, code string) (*model.TranslationRecord, error) {
	lang, langName, err := s.resolveLanguage(code)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(exam.Description) == "" {
		return nil, ErrNoSourceText
	}

	if rec, ok := s.cache.Get(ctx, exam.ID, lang); ok && rec.IsCompleted() {
		slog.Debug("translation cache hit", "exam_id", exam.ID, "lang", lang)
		return rec, nil
	}

	rec, err := s.getOrCreate(ctx, exam.ID, lang)
	if err != nil {
		return nil, err
	}
	if rec.IsCompleted() {
		s.remember(ctx, rec)
		return rec, nil
	}

	raw, err := s.callProvider(ctx, exam, langName)
	if errors.Is(err, prompts.ErrSourceTooLong) {
		return s.fail(ctx, rec, err.Error())
	}
	if err != nil {
		return s.fail(ctx, rec, fmt.Sprintf("%v: %v", ErrProviderUnavailable, err))
	}

	text, err := NormalizeTranslation(raw)
	if err != nil {
		return s.fail(ctx, rec, err.Error())
	}

	if err := rec.Complete(text); err != nil {
		return nil, err
	}
	if err := s.persist(ctx, rec); err != nil {
		return nil, err
	}
	s.remember(ctx, rec)
	slog.Info("translation completed", "exam_id", exam.ID, "lang", lang, "chars", len(text))
	return rec, nil
}

func (s *Service) callProvider(ctx context.Context, exam model.Exam, langName string) (string, error) {
	system, err := prompts.TranslationSystemPrompt()
	if err != nil {
		return "", err
	}
	prompt, err := prompts.BuildTranslationPrompt(prompts.TranslationData{
		ExamName:       exam.Name,
		SourceText:     exam.Description,
		TargetLanguage: langName,
	})
	if err != nil {
		return "", err
	}

	if s.provider == nil {
		return "", llm.ErrMissingAPIKey
	}
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit: %w", err)
		}
	}

	return s.provider.Complete(ctx, llm.Request{
		System:      system,
		Prompt:      prompt,
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
	})
}

func (s *Service) fail(ctx context.Context, rec *model.TranslationRecord, diagnostic string) (*model.TranslationRecord, error) {
	if err := rec.Fail(diagnostic); err != nil {
		return nil, err
	}
	if err := s.persist(ctx, rec); err != nil {
		return nil, err
	}
	slog.Warn("translation failed", "exam_id", rec.ExamID, "lang", rec.LanguageCode, "error", diagnostic)
	return rec, nil
}

func (s *Service) persist(ctx context.Context, rec *model.TranslationRecord) error {
	if err := s.store.UpdateTranslation(ctx, rec); err != nil {
		slog.Error("failed to save translation", "exam_id", rec.ExamID, "lang", rec.LanguageCode, "status", rec.Status, "error", err)
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

func (s *Service) remember(ctx context.Context, rec *model.TranslationRecord) {
	if err := s.cache.Set(ctx, rec); err != nil {
		slog.Warn("translation cache set failed", "exam_id", rec.ExamID, "lang", rec.LanguageCode, "error", err)
	}
}

// SetManual stores a human-provided translation, replacing whatever the
// record held.
func (s *Service) SetManual(ctx context.Context, exam model.Exam, code, text string) (*model.TranslationRecord, error) {
	lang, _, err := s.resolveLanguage(code)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyManualText
	}

	rec := model.TranslationRecord{ExamID: exam.ID, LanguageCode: lang}
	rec.OverrideManual(text)
	stored, err := s.store.UpsertTranslation(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	s.remember(ctx, stored)
	slog.Info("manual translation saved", "exam_id", exam.ID, "lang", lang)
	return stored, nil
}

// Invalidate deletes the record for (examID, code) so the next Translate
// starts over. It reports whether a record existed.
func (s *Service) Invalidate(ctx context.Context, examID int64, code string) (bool, error) {
	lang, _, err := s.resolveLanguage(code)
	if err != nil {
		return false, err
	}
	if err := s.cache.Delete(ctx, examID, lang); err != nil {
		slog.Warn("translation cache delete failed", "exam_id", examID, "lang", lang, "error", err)
	}
	deleted, err := s.store.DeleteTranslation(ctx, examID, lang)
	if err != nil {
		slog.Error("failed to delete translation", "exam_id", examID, "lang", lang, "error", err)
		return false, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if deleted {
		slog.Info("translation invalidated", "exam_id", examID, "lang", lang)
	}
	return deleted, nil
}

// Localize returns the completed translation of exam.Description in code,
// or the original description and false. It never calls the provider.
func (s *Service) Localize(ctx context.Context, exam model.Exam, code string) (string, bool) {
	lang := NormalizeCode(code)
	if !s.langs.Supports(lang) {
		return exam.Description, false
	}
	if rec, ok := s.cache.Get(ctx, exam.ID, lang); ok && rec.IsCompleted() {
		return rec.TranslatedText, true
	}
	rec, err := s.store.GetTranslation(ctx, exam.ID, lang)
	if err != nil {
		slog.Warn("translation lookup failed, using original", "exam_id", exam.ID, "lang", lang, "error", err)
		return exam.Description, false
	}
	if rec == nil || !rec.IsCompleted() {
		return exam.Description, false
	}
	s.remember(ctx, rec)
	return rec.TranslatedText, true
}
