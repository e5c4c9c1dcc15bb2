package translation

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pavelanni/examprep/internal/model"
)

// PairResult is the outcome of one (exam, language) translation in a batch.
// Exactly one of Record and Error is set.
type PairResult struct {
	Record *model.TranslationRecord
	Error  string
}

// MarshalJSON encodes the record itself or {"error": "..."}.
func (p PairResult) MarshalJSON() ([]byte, error) {
	if p.Record == nil {
		return json.Marshal(map[string]string{"error": p.Error})
	}
	return json.Marshal(p.Record)
}

// ExamResult holds the per-language outcomes for one exam, or an error that
// applied to the whole exam.
type ExamResult struct {
	Error     string
	Languages map[string]PairResult
}

// MarshalJSON encodes {"error": "..."} or a language→pair object.
func (r ExamResult) MarshalJSON() ([]byte, error) {
	if r.Error != "" {
		return json.Marshal(map[string]string{"error": r.Error})
	}
	if r.Languages == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r.Languages)
}

// BatchResult maps exam id to its result.
type BatchResult map[int64]*ExamResult

// TranslateBatch runs Translate for every exam × language pair. A missing
// exam yields an "not found" entry for that id and the rest of the batch
// continues. Language codes are normalized before deduplication and the
// results are keyed by the normalized code. Pairs run concurrently on a
// bounded number of workers.
func (s *Service) TranslateBatch(ctx context.Context, examIDs []int64, codes []string) BatchResult {
	result := make(BatchResult, len(examIDs))
	langs := dedupeCodes(codes)

	var exams []model.Exam
	for _, id := range dedupeIDs(examIDs) {
		exam, err := s.Exam(ctx, id)
		if err != nil {
			msg := err.Error()
			if errors.Is(err, ErrExamNotFound) {
				msg = ErrExamNotFound.Error()
			}
			result[id] = &ExamResult{Error: msg}
			continue
		}
		result[id] = &ExamResult{Languages: make(map[string]PairResult, len(langs))}
		exams = append(exams, exam)
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.batchWorkers)
	for _, exam := range exams {
		for _, lang := range langs {
			g.Go(func() error {
				pair := PairResult{}
				rec, err := s.Translate(ctx, exam, lang.raw)
				if err != nil {
					pair.Error = err.Error()
				} else {
					pair.Record = rec
				}
				mu.Lock()
				result[exam.ID].Languages[lang.code] = pair
				mu.Unlock()
				return nil
			})
		}
	}
	_ = g.Wait()

	slog.Info("batch translation finished", "exams", len(examIDs), "languages", len(langs))
	return result
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// batchCode keeps the first spelling of a code for error messages.
type batchCode struct {
	code string
	raw  string
}

func dedupeCodes(codes []string) []batchCode {
	seen := make(map[string]bool, len(codes))
	out := make([]batchCode, 0, len(codes))
	for _, raw := range codes {
		code := NormalizeCode(raw)
		if seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, batchCode{code: code, raw: raw})
	}
	return out
}
