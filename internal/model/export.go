package model

import "time"

// TranslationExport is the top-level JSON structure for translation export.
type TranslationExport struct {
	ExportedAt time.Time          `json:"exported_at"`
	Languages  map[string]string  `json:"languages"`
	Exams      []ExamTranslations `json:"exams"`
}

// ExamTranslations holds one exam and every translation record stored for it.
type ExamTranslations struct {
	ExamID       int64                `json:"exam_id"`
	Name         string               `json:"name"`
	Description  string               `json:"description"`
	Translations []TranslationSummary `json:"translations"`
}

// TranslationSummary is a single record in an export.
type TranslationSummary struct {
	LanguageCode   string            `json:"language_code"`
	Status         TranslationStatus `json:"status"`
	Method         TranslationMethod `json:"method"`
	TranslatedText string            `json:"translated_text"`
	UpdatedAt      time.Time         `json:"updated_at"`
}
