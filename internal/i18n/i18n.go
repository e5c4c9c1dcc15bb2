// Package i18n localizes API messages from embedded go-i18n catalogs.
package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

type ctxKey struct{}

var (
	bundle      *i18n.Bundle
	defaultLang = "en"
)

// Init loads the message catalogs with lang as the bundle's default.
func Init(lang string) error {
	tag, err := language.Parse(lang)
	if err != nil {
		return fmt.Errorf("parse language %q: %w", lang, err)
	}

	b := i18n.NewBundle(tag)
	b.RegisterUnmarshalFunc("json", json.Unmarshal)

	files, err := fs.Glob(localeFS, "locales/*.json")
	if err != nil {
		return fmt.Errorf("list locale files: %w", err)
	}
	for _, name := range files {
		if _, err := b.LoadMessageFileFS(localeFS, name); err != nil {
			return fmt.Errorf("load locale file %s: %w", name, err)
		}
	}
	slog.Debug("loaded locale files", "count", len(files), "default", tag.String())

	bundle = b
	defaultLang = tag.String()
	return nil
}

// Languages lists the tags with a loaded catalog.
func Languages() []string {
	if bundle == nil {
		return nil
	}
	var out []string
	for _, tag := range bundle.LanguageTags() {
		out = append(out, tag.String())
	}
	return out
}

// NewLocalizer creates a localizer preferring langs in order, falling back
// to the default language. Each entry may be a tag or an Accept-Language
// header value.
func NewLocalizer(langs ...string) *i18n.Localizer {
	return i18n.NewLocalizer(bundle, append(langs, defaultLang)...)
}

// WithLocalizer stores a localizer in the context.
func WithLocalizer(ctx context.Context, loc *i18n.Localizer) context.Context {
	return context.WithValue(ctx, ctxKey{}, loc)
}

func localizerFromCtx(ctx context.Context) *i18n.Localizer {
	if loc, ok := ctx.Value(ctxKey{}).(*i18n.Localizer); ok {
		return loc
	}
	return NewLocalizer()
}

// T translates a message by ID.
func T(ctx context.Context, msgID string) string {
	return Td(ctx, msgID, nil)
}

// Td translates a message by ID with template data.
func Td(ctx context.Context, msgID string, data map[string]any) string {
	s, err := localizerFromCtx(ctx).Localize(&i18n.LocalizeConfig{
		MessageID:    msgID,
		TemplateData: data,
	})
	if err != nil {
		slog.Warn("missing translation", "id", msgID, "error", err)
		return msgID
	}
	return s
}

// Tp translates a pluralized message by ID.
func Tp(ctx context.Context, msgID string, count int) string {
	s, err := localizerFromCtx(ctx).Localize(&i18n.LocalizeConfig{
		MessageID:    msgID,
		PluralCount:  count,
		TemplateData: map[string]any{"Count": count},
	})
	if err != nil {
		slog.Warn("missing translation", "id", msgID, "error", err)
		return msgID
	}
	return s
}
