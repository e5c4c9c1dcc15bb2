package cache

import (
	"context"
	"sync"
	"time"

	"github.com/pavelanni/examprep/internal/model"
)

type memoryEntry struct {
	rec       model.TranslationRecord
	timestamp time.Time
}

// Memory is a thread-safe in-process RecordCache with optional TTL.
type Memory struct {
	entries map[string]memoryEntry
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
}

// NewMemory creates an in-memory cache. A ttl of zero or less disables expiry.
func NewMemory(ttl time.Duration) *Memory {
	if ttl < 0 {
		ttl = 0
	}
	return &Memory{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns a copy of the cached record.
func (c *Memory) Get(_ context.Context, examID int64, lang string) (*model.TranslationRecord, bool) {
	key := Key(examID, lang)
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if c.ttl > 0 && c.now().Sub(entry.timestamp) > c.ttl {
		c.mu.Lock()
		// Set may have stored a fresh entry since the read.
		if cur, ok := c.entries[key]; ok && cur.timestamp.Equal(entry.timestamp) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}

	rec := entry.rec
	return &rec, true
}

// Set stores a copy of rec.
func (c *Memory) Set(_ context.Context, rec *model.TranslationRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[Key(rec.ExamID, rec.LanguageCode)] = memoryEntry{rec: *rec, timestamp: c.now()}
	return nil
}

// Delete removes the entry for (examID, lang).
func (c *Memory) Delete(_ context.Context, examID int64, lang string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, Key(examID, lang))
	return nil
}

// Len returns the number of entries, including expired ones not yet evicted.
func (c *Memory) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

var _ RecordCache = (*Memory)(nil)
