package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/pavelanni/examprep/internal/model"
)

var (
	// ErrAlreadyImported is returned when the same content was imported from source before.
	ErrAlreadyImported = errors.New("file already imported")
	// ErrSourceChanged is returned when source was imported before with different content.
	ErrSourceChanged = errors.New("file changed since last import")
)

// ImportExams inserts the exams in a JSON array read from source. Each
// source is imported once; its content hash is recorded in import_metadata.
func (s *Store) ImportExams(ctx context.Context, source string, data []byte) (int, error) {
	hash := sha256sum(data)
	storedHash, err := s.GetImportedFileHash(ctx, source)
	if err != nil {
		return 0, fmt.Errorf("check import status for %s: %w", source, err)
	}
	if storedHash == hash {
		return 0, ErrAlreadyImported
	}
	if storedHash != "" {
		return 0, ErrSourceChanged
	}

	var exams []model.ExamImport
	if err := json.Unmarshal(data, &exams); err != nil {
		return 0, fmt.Errorf("parse %s: %w", source, err)
	}

	for i := range exams {
		exams[i].Name = strings.TrimSpace(exams[i].Name)
		if exams[i].Name == "" {
			return 0, fmt.Errorf("parse %s: exam %d has no name", source, i)
		}
		if n := utf8.RuneCountInString(exams[i].Description); n > model.MaxDescriptionRunes {
			return 0, fmt.Errorf("parse %s: exam %q description has %d characters, limit %d",
				source, exams[i].Name, n, model.MaxDescriptionRunes)
		}
	}
	for _, ei := range exams {
		if _, err := s.InsertExam(ctx, model.Exam{Name: ei.Name, Description: ei.Description}); err != nil {
			return 0, fmt.Errorf("insert exam from %s: %w", source, err)
		}
	}

	if err := s.SetImportedFileHash(ctx, source, hash); err != nil {
		return 0, fmt.Errorf("record import for %s: %w", source, err)
	}
	slog.Info("imported exams", "source", source, "count", len(exams))
	return len(exams), nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
