package model

import (
	"fmt"
	"time"
)

// TranslationStatus is the lifecycle state of a translation record.
type TranslationStatus string

const (
	TranslationPending   TranslationStatus = "PENDING"
	TranslationCompleted TranslationStatus = "COMPLETED"
	TranslationError     TranslationStatus = "ERROR"
)

// TranslationMethod records how a translation was produced.
type TranslationMethod string

const (
	MethodAI     TranslationMethod = "AI"
	MethodManual TranslationMethod = "MANUAL"
)

// transitions lists the legal status changes on the AI path.
// COMPLETED has no outgoing edges; only a manual override replaces it.
var transitions = map[TranslationStatus][]TranslationStatus{
	TranslationPending: {TranslationCompleted, TranslationError},
	TranslationError:   {TranslationPending},
}

// Valid reports whether s is one of the known statuses.
func (s TranslationStatus) Valid() bool {
	switch s {
	case TranslationPending, TranslationCompleted, TranslationError:
		return true
	}
	return false
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s TranslationStatus) CanTransitionTo(next TranslationStatus) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// TransitionError is returned when a record is asked to make an illegal move.
type TransitionError struct {
	From TranslationStatus
	To   TranslationStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal translation status transition %s -> %s", e.From, e.To)
}

// TranslationRecord is the persisted translation attempt for one
// (exam, language) pair.
type TranslationRecord struct {
	ID             int64             `json:"id"`
	ExamID         int64             `json:"exam_id"`
	LanguageCode   string            `json:"language_code"`
	TranslatedText string            `json:"translated_text"`
	Status         TranslationStatus `json:"status"`
	Method         TranslationMethod `json:"method"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// IsCompleted reports whether the record holds a usable translation.
func (r *TranslationRecord) IsCompleted() bool {
	return r.Status == TranslationCompleted && r.TranslatedText != ""
}

func (r *TranslationRecord) transition(next TranslationStatus) error {
	if !r.Status.CanTransitionTo(next) {
		return &TransitionError{From: r.Status, To: next}
	}
	r.Status = next
	return nil
}

// Complete moves a PENDING record to COMPLETED with the given text.
func (r *TranslationRecord) Complete(text string) error {
	if err := r.transition(TranslationCompleted); err != nil {
		return err
	}
	r.TranslatedText = text
	r.Method = MethodAI
	return nil
}

// Fail moves a PENDING record to ERROR, keeping the diagnostic in the text field.
func (r *TranslationRecord) Fail(diagnostic string) error {
	if err := r.transition(TranslationError); err != nil {
		return err
	}
	r.TranslatedText = diagnostic
	return nil
}

// Retry moves an ERROR record back to PENDING and clears the diagnostic.
func (r *TranslationRecord) Retry() error {
	if err := r.transition(TranslationPending); err != nil {
		return err
	}
	r.TranslatedText = ""
	return nil
}

// OverrideManual replaces the record content with a human-provided
// translation regardless of the current status.
func (r *TranslationRecord) OverrideManual(text string) {
	r.Status = TranslationCompleted
	r.Method = MethodManual
	r.TranslatedText = text
}
