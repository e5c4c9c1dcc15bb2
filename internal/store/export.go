package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pavelanni/examprep/internal/model"
)

// ExportTranslations builds an export of every exam with its translation records.
func (s *Store) ExportTranslations(ctx context.Context, languages map[string]string) (model.TranslationExport, error) {
	export := model.TranslationExport{
		ExportedAt: time.Now().UTC(),
		Languages:  languages,
	}

	exams, err := s.ListExams(ctx)
	if err != nil {
		return export, fmt.Errorf("list exams: %w", err)
	}
	records, err := s.ListAllTranslations(ctx)
	if err != nil {
		return export, fmt.Errorf("list translations: %w", err)
	}

	byExam := make(map[int64][]model.TranslationSummary)
	for _, r := range records {
		byExam[r.ExamID] = append(byExam[r.ExamID], model.TranslationSummary{
			LanguageCode:   r.LanguageCode,
			Status:         r.Status,
			Method:         r.Method,
			TranslatedText: r.TranslatedText,
			UpdatedAt:      r.UpdatedAt,
		})
	}

	for _, e := range exams {
		translations := byExam[e.ID]
		if translations == nil {
			translations = []model.TranslationSummary{}
		}
		export.Exams = append(export.Exams, model.ExamTranslations{
			ExamID:       e.ID,
			Name:         e.Name,
			Description:  e.Description,
			Translations: translations,
		})
	}
	return export, nil
}
