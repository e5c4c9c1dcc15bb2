package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/examprep/internal/model"
)

// ErrSourceTooLong is returned for source text over model.MaxDescriptionRunes.
var ErrSourceTooLong = errors.New("source text too long")

//go:embed templates/*.txt
var templateFS embed.FS

var sourceTextRegex = regexp.MustCompile(`(?i)</?\s*source-text\b[^>]*>`)

var (
	loadOnce     sync.Once
	loadErr      error
	systemPrompt string
	userTemplate *template.Template
)

// TranslationData holds template data for the translation prompt.
type TranslationData struct {
	ExamName       string
	SourceText     string
	TargetLanguage string // display name, e.g. "German"
}

// Load parses the embedded prompt templates.
// It uses sync.Once to ensure templates are loaded only once.
func Load() error {
	loadOnce.Do(func() {
		sys, err := templateFS.ReadFile("templates/translate_system.txt")
		if err != nil {
			loadErr = fmt.Errorf("read system prompt: %w", err)
			return
		}
		systemPrompt = strings.TrimSpace(string(sys))

		user, err := templateFS.ReadFile("templates/translate_user.txt")
		if err != nil {
			loadErr = fmt.Errorf("read user prompt: %w", err)
			return
		}
		userTemplate, err = template.New("translate").Parse(string(user))
		if err != nil {
			loadErr = fmt.Errorf("parse user prompt: %w", err)
		}
	})
	return loadErr
}

// TranslationSystemPrompt returns the instruction that fixes the assistant
// to a translator role.
func TranslationSystemPrompt() (string, error) {
	if err := Load(); err != nil {
		return "", err
	}
	return systemPrompt, nil
}

// BuildTranslationPrompt renders the user message for one translation.
func BuildTranslationPrompt(data TranslationData) (string, error) {
	if err := Load(); err != nil {
		return "", err
	}
	if data.TargetLanguage == "" {
		return "", errors.New("target language is required")
	}
	data.SourceText = sanitizeSource(data.SourceText)
	if n := utf8.RuneCountInString(data.SourceText); n > model.MaxDescriptionRunes {
		return "", fmt.Errorf("%w: %d characters, limit %d", ErrSourceTooLong, n, model.MaxDescriptionRunes)
	}

	var buf bytes.Buffer
	if err := userTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func sanitizeSource(text string) string {
	text = sourceTextRegex.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
