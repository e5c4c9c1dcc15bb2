package store

import (
	"context"
	"time"

	"github.com/pavelanni/examprep/internal/model"
)

const examColumns = `id, name, description, created_at`

// InsertExam stores an exam.
func (s *Store) InsertExam(ctx context.Context, e model.Exam) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO exams (name, description, created_at) VALUES (?, ?, ?)`,
		e.Name, e.Description, time.Now(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetExam returns an exam by ID. A missing exam yields sql.ErrNoRows.
func (s *Store) GetExam(ctx context.Context, id int64) (model.Exam, error) {
	var e model.Exam
	err := s.db.QueryRowContext(ctx,
		`SELECT `+examColumns+` FROM exams WHERE id = ?`, id,
	).Scan(&e.ID, &e.Name, &e.Description, &e.CreatedAt)
	return e, err
}

// ListExams returns all exams ordered by ID.
func (s *Store) ListExams(ctx context.Context) ([]model.Exam, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+examColumns+` FROM exams ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var exams []model.Exam
	for rows.Next() {
		var e model.Exam
		if err := rows.Scan(&e.ID, &e.Name, &e.Description, &e.CreatedAt); err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}

// ExamCount returns the number of exams in the database.
func (s *Store) ExamCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM exams`).Scan(&count)
	return count, err
}
