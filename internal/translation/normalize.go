package translation

import "strings"

// quotePairs are the opening/closing characters stripped from provider output.
var quotePairs = [][2]string{
	{`"`, `"`},
	{`'`, `'`},
	{"“", "”"},
	{"‘", "’"},
	{"«", "»"},
	{"„", "“"},
	{"「", "」"},
}

// NormalizeTranslation trims raw provider output and strips one layer of
// matching surrounding quotes. Output that is empty afterwards yields
// ErrEmptyTranslation.
func NormalizeTranslation(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	for _, q := range quotePairs {
		if len(text) >= len(q[0])+len(q[1]) && strings.HasPrefix(text, q[0]) && strings.HasSuffix(text, q[1]) {
			text = strings.TrimSpace(text[len(q[0]) : len(text)-len(q[1])])
			break
		}
	}
	if text == "" {
		return "", ErrEmptyTranslation
	}
	return text, nil
}
