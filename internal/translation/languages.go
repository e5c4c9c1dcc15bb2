package translation

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/language"
)

var defaultLanguageNames = map[string]string{
	"de": "German",
	"fr": "French",
	"es": "Spanish",
	"it": "Italian",
	"pt": "Portuguese",
	"nl": "Dutch",
	"pl": "Polish",
	"ru": "Russian",
	"tr": "Turkish",
	"ar": "Arabic",
	"zh": "Chinese",
	"ja": "Japanese",
	"ko": "Korean",
}

// Languages is an immutable allowlist of target language codes and their
// display names.
type Languages struct {
	names map[string]string
	codes []string
}

// NewLanguages builds a table from code→name pairs. Codes must be
// two-letter ISO 639-1 identifiers; they are lower-cased.
func NewLanguages(names map[string]string) (Languages, error) {
	l := Languages{names: make(map[string]string, len(names))}
	for code, name := range names {
		norm := NormalizeCode(code)
		if len(norm) != 2 {
			return Languages{}, fmt.Errorf("language code %q: want two letters", code)
		}
		if _, err := language.ParseBase(norm); err != nil {
			return Languages{}, fmt.Errorf("language code %q: %w", code, err)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return Languages{}, fmt.Errorf("language code %q: empty display name", code)
		}
		l.names[norm] = name
		l.codes = append(l.codes, norm)
	}
	sort.Strings(l.codes)
	return l, nil
}

// DefaultLanguages returns the built-in 13-language table.
func DefaultLanguages() Languages {
	l, err := NewLanguages(defaultLanguageNames)
	if err != nil {
		panic(err)
	}
	return l
}

// NormalizeCode trims and lower-cases a language code.
func NormalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// Name returns the display name for an already normalized code.
func (l Languages) Name(code string) (string, bool) {
	name, ok := l.names[code]
	return name, ok
}

// Supports reports whether code (normalized or not) is in the table.
func (l Languages) Supports(code string) bool {
	_, ok := l.names[NormalizeCode(code)]
	return ok
}

// Codes returns the sorted language codes.
func (l Languages) Codes() []string {
	out := make([]string, len(l.codes))
	copy(out, l.codes)
	return out
}

// Map returns a copy of the code→name table.
func (l Languages) Map() map[string]string {
	out := make(map[string]string, len(l.names))
	for k, v := range l.names {
		out[k] = v
	}
	return out
}

// Len returns the number of supported languages.
func (l Languages) Len() int {
	return len(l.names)
}
