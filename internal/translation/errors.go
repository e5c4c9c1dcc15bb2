package translation

import "errors"

var (
	// ErrUnsupportedLanguage is returned before any work for codes outside the table.
	ErrUnsupportedLanguage = errors.New("unsupported language")
	// ErrNoSourceText is returned before any work when the exam has no description.
	ErrNoSourceText = errors.New("exam has no description to translate")
	// ErrExamNotFound is returned when an exam id does not exist.
	ErrExamNotFound = errors.New("not found")
	// ErrEmptyManualText is returned when a manual translation is blank.
	ErrEmptyManualText = errors.New("manual translation text is empty")
	// ErrPersistence wraps store failures.
	ErrPersistence = errors.New("translation store unavailable")

	// ErrProviderUnavailable prefixes the diagnostic stored in ERROR records
	// when the provider call fails.
	ErrProviderUnavailable = errors.New("translation provider unavailable")
	// ErrEmptyTranslation is the diagnostic stored when the provider output is
	// empty after normalization.
	ErrEmptyTranslation = errors.New("failed to parse translation response")
)
