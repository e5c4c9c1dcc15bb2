// Package cache provides hot caches for completed translation records.
package cache

import (
	"context"
	"fmt"

	"github.com/pavelanni/examprep/internal/model"
)

// RecordCache stores completed translation records keyed by exam and language.
// Implementations treat backend failures as misses.
type RecordCache interface {
	Get(ctx context.Context, examID int64, lang string) (*model.TranslationRecord, bool)
	Set(ctx context.Context, rec *model.TranslationRecord) error
	Delete(ctx context.Context, examID int64, lang string) error
}

// Key returns the cache key for an (exam, language) pair.
func Key(examID int64, lang string) string {
	return fmt.Sprintf("exam:%d:%s", examID, lang)
}

// Nop is a RecordCache that never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, int64, string) (*model.TranslationRecord, bool) { return nil, false }
func (Nop) Set(context.Context, *model.TranslationRecord) error                 { return nil }
func (Nop) Delete(context.Context, int64, string) error                         { return nil }

var _ RecordCache = Nop{}
