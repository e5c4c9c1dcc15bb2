package store

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/pavelanni/examprep/internal/model"
)

const translationColumns = `id, exam_id, language_code, translated_text, status, method, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTranslation(row rowScanner) (*model.TranslationRecord, error) {
	var r model.TranslationRecord
	err := row.Scan(&r.ID, &r.ExamID, &r.LanguageCode, &r.TranslatedText, &r.Status, &r.Method, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetTranslation returns the record for (examID, lang), or nil if none exists.
func (s *Store) GetTranslation(ctx context.Context, examID int64, lang string) (*model.TranslationRecord, error) {
	rec, err := scanTranslation(s.db.QueryRowContext(ctx,
		`SELECT `+translationColumns+` FROM exam_translations WHERE exam_id = ? AND language_code = ?`,
		examID, lang,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

// GetOrCreateTranslation returns the record for (examID, lang), inserting a
// PENDING/AI record first when none exists. The unique constraint on
// (exam_id, language_code) makes concurrent callers converge on one row.
func (s *Store) GetOrCreateTranslation(ctx context.Context, examID int64, lang string) (*model.TranslationRecord, bool, error) {
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO exam_translations (exam_id, language_code, translated_text, status, method, created_at, updated_at)
		 VALUES (?, ?, '', ?, ?, ?, ?)
		 ON CONFLICT(exam_id, language_code) DO NOTHING`,
		examID, lang, model.TranslationPending, model.MethodAI, now, now,
	)
	if err != nil {
		slog.Error("failed to create translation", "exam_id", examID, "lang", lang, "error", err)
		return nil, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	rec, err := s.GetTranslation(ctx, examID, lang)
	if err != nil {
		return nil, false, err
	}
	if rec == nil {
		return nil, false, sql.ErrNoRows
	}
	created := n == 1
	if created {
		slog.Info("created translation", "id", rec.ID, "exam_id", examID, "lang", lang)
	}
	return rec, created, nil
}

// UpdateTranslation writes the mutable fields of rec back to the database.
func (s *Store) UpdateTranslation(ctx context.Context, rec *model.TranslationRecord) error {
	rec.UpdatedAt = time.Now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE exam_translations SET translated_text = ?, status = ?, method = ?, updated_at = ? WHERE id = ?`,
		rec.TranslatedText, rec.Status, rec.Method, rec.UpdatedAt, rec.ID,
	)
	if err != nil {
		slog.Error("failed to update translation", "id", rec.ID, "error", err)
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpsertTranslation inserts rec or overwrites the existing row for its
// (exam, language) pair, and returns the stored record.
func (s *Store) UpsertTranslation(ctx context.Context, rec model.TranslationRecord) (*model.TranslationRecord, error) {
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exam_translations (exam_id, language_code, translated_text, status, method, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(exam_id, language_code) DO UPDATE SET
		   translated_text = excluded.translated_text,
		   status = excluded.status,
		   method = excluded.method,
		   updated_at = excluded.updated_at`,
		rec.ExamID, rec.LanguageCode, rec.TranslatedText, rec.Status, rec.Method, now, now,
	)
	if err != nil {
		slog.Error("failed to upsert translation", "exam_id", rec.ExamID, "lang", rec.LanguageCode, "error", err)
		return nil, err
	}
	return s.GetTranslation(ctx, rec.ExamID, rec.LanguageCode)
}

// DeleteTranslation removes the record for (examID, lang). It reports
// whether a row was deleted.
func (s *Store) DeleteTranslation(ctx context.Context, examID int64, lang string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM exam_translations WHERE exam_id = ? AND language_code = ?`, examID, lang,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ListTranslations returns all records for an exam ordered by language code.
func (s *Store) ListTranslations(ctx context.Context, examID int64) ([]model.TranslationRecord, error) {
	return s.queryTranslations(ctx,
		`SELECT `+translationColumns+` FROM exam_translations WHERE exam_id = ? ORDER BY language_code`, examID)
}

// ListAllTranslations returns every record ordered by exam and language.
func (s *Store) ListAllTranslations(ctx context.Context) ([]model.TranslationRecord, error) {
	return s.queryTranslations(ctx,
		`SELECT `+translationColumns+` FROM exam_translations ORDER BY exam_id, language_code`)
}

func (s *Store) queryTranslations(ctx context.Context, query string, args ...any) ([]model.TranslationRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []model.TranslationRecord
	for rows.Next() {
		rec, err := scanTranslation(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// CountTranslationsByStatus returns the number of records per status.
func (s *Store) CountTranslationsByStatus(ctx context.Context) (map[model.TranslationStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM exam_translations GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[model.TranslationStatus]int)
	for rows.Next() {
		var status model.TranslationStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
