package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/pavelanni/examprep/internal/cache"
	"github.com/pavelanni/examprep/internal/handler"
	appI18n "github.com/pavelanni/examprep/internal/i18n"
	"github.com/pavelanni/examprep/internal/llm"
	"github.com/pavelanni/examprep/internal/llm/prompts"
	"github.com/pavelanni/examprep/internal/model"
	"github.com/pavelanni/examprep/internal/store"
	"github.com/pavelanni/examprep/internal/translation"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "examprep",
		Short: "Exam catalog with cached AI translations of exam descriptions",
	}

	serve := serveCmd()
	root.AddCommand(serve, importCmd(), translateCmd(), languagesCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addCommonFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("db", "examprep.db", "SQLite database path")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func addTranslatorFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("llm-provider", llm.ProviderOpenAI, "Translation provider (openai, anthropic)")
	f.String("llm-url", "", "Provider API base URL (empty for the provider default)")
	f.String("llm-key", "", "Provider API key (or set EXAMPREP_LLM_KEY)")
	f.String("llm-model", "", "Model name (empty for the provider default: "+llm.DefaultOpenAIModel+", "+llm.DefaultAnthropicModel+")")
	f.Duration("llm-timeout", llm.DefaultTimeout, "Timeout for a single provider call")
	f.Float64("llm-rps", 0, "Provider requests per second (0 = unlimited)")
	f.Int("llm-max-tokens", 1000, "Max tokens per translation")
	f.String("redis-url", "", "Redis URL for the translation hot cache (empty = in-process cache)")
	f.Duration("cache-ttl", time.Hour, "Hot cache entry lifetime")
	f.Int("batch-workers", 4, "Concurrent translations per batch")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.StringSlice("exams", nil, "Paths to exam JSON files imported at startup (repeatable)")
	f.StringP("lang", "l", "en", "Default API message language (en, ru)")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /prep)")
	f.Int("batch-max", 200, "Max exam x language pairs per batch request")
	f.String("admin-password", "", "Initial admin password (or set EXAMPREP_ADMIN_PASSWORD)")
	addCommonFlags(cmd)
	addTranslatorFlags(cmd)
	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import FILE...",
		Short: "Import exams from JSON files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runImport,
	}
	addCommonFlags(cmd)
	return cmd
}

func translateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Translate exam descriptions and print the batch result as JSON",
		RunE:  runTranslate,
	}
	f := cmd.Flags()
	f.Int64Slice("exam-id", nil, "Exam IDs to translate (default: all exams)")
	f.StringSlice("to", nil, "Target language codes (default: all supported)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addCommonFlags(cmd)
	addTranslatorFlags(cmd)
	return cmd
}

func languagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List supported translation languages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			langs := translation.DefaultLanguages()
			for _, code := range langs.Codes() {
				name, _ := langs.Name(code)
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", code, name)
			}
			return nil
		},
	}
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export translation records as JSON",
		RunE:  runExport,
	}
	cmd.Flags().StringP("output", "o", "-", "Output file path (- for stdout)")
	addCommonFlags(cmd)
	return cmd
}

func setupLogging(v *viper.Viper) {
	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("EXAMPREP")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("examprep")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/examprep")
	v.AddConfigPath("/etc/examprep")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func setup(cmd *cobra.Command) (*viper.Viper, *store.Store, error) {
	v := viperForCmd(cmd)
	setupLogging(v)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return v, db, nil
}

// newService wires the provider, hot cache and rate limiter. The returned
// cleanup closes the cache backend.
func newService(ctx context.Context, v *viper.Viper, db *store.Store) (*translation.Service, func(), error) {
	if err := prompts.Load(); err != nil {
		return nil, nil, fmt.Errorf("load prompts: %w", err)
	}

	completer, err := llm.NewCompleter(llm.Config{
		Provider: v.GetString("llm-provider"),
		BaseURL:  v.GetString("llm-url"),
		APIKey:   v.GetString("llm-key"),
		Model:    v.GetString("llm-model"),
		Timeout:  v.GetDuration("llm-timeout"),
	})
	if err != nil {
		return nil, nil, err
	}
	if err := completer.Ping(ctx); err != nil {
		// Translations fail into ERROR records until the provider is reachable.
		slog.Warn("translation provider check failed", "provider", completer.Name(), "error", err)
	} else {
		slog.Info("translation provider OK", "provider", completer.Name(), "model", completer.Model())
	}

	var (
		hot     cache.RecordCache
		cleanup = func() {}
	)
	if url := v.GetString("redis-url"); url != "" {
		rc, err := cache.NewRedis(ctx, cache.RedisConfig{URL: url, TTL: v.GetDuration("cache-ttl")})
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		hot = rc
		cleanup = func() { _ = rc.Close() }
		slog.Info("using redis translation cache")
	} else {
		hot = cache.NewMemory(v.GetDuration("cache-ttl"))
	}

	var limiter *rate.Limiter
	if rps := v.GetFloat64("llm-rps"); rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}

	svc := translation.NewService(db, completer, translation.Options{
		Cache:        hot,
		Limiter:      limiter,
		MaxTokens:    v.GetInt("llm-max-tokens"),
		BatchWorkers: v.GetInt("batch-workers"),
	})
	return svc, cleanup, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	v, db, err := setup(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := seedAdmin(ctx, db, v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if err := importFiles(ctx, db, v.GetStringSlice("exams")); err != nil {
		return fmt.Errorf("import exams: %w", err)
	}
	if n, err := db.PurgeExpiredTokens(ctx); err != nil {
		slog.Warn("failed to purge expired tokens", "error", err)
	} else if n > 0 {
		slog.Info("purged expired tokens", "count", n)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	svc, cleanup, err := newService(ctx, v, db)
	if err != nil {
		return err
	}
	defer cleanup()

	// Normalize base path.
	basePath := strings.TrimRight(v.GetString("base-path"), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	h := handler.New(db, svc, model.ServerConfig{
		BasePath:     basePath,
		BatchMaxSize: v.GetInt("batch-max"),
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware())

	if basePath != "" {
		r.Route(basePath, h.Routes)
	} else {
		h.Routes(r)
	}

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			"addr", addr,
			"provider", v.GetString("llm-provider"),
			"lang", lang,
			"ui_languages", appI18n.Languages(),
			"languages", svc.Languages().Len(),
			"base_path", basePath,
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runImport(cmd *cobra.Command, args []string) error {
	_, db, err := setup(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	return importFiles(cmd.Context(), db, args)
}

func runTranslate(cmd *cobra.Command, _ []string) error {
	v, db, err := setup(cmd)
	if err != nil {
		return err
	}
	defer db.Close()
	ctx := cmd.Context()

	svc, cleanup, err := newService(ctx, v, db)
	if err != nil {
		return err
	}
	defer cleanup()

	ids, err := cmd.Flags().GetInt64Slice("exam-id")
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		exams, err := db.ListExams(ctx)
		if err != nil {
			return fmt.Errorf("list exams: %w", err)
		}
		for _, e := range exams {
			ids = append(ids, e.ID)
		}
	}
	langs := v.GetStringSlice("to")
	if len(langs) == 0 {
		langs = svc.Languages().Codes()
	}

	result := svc.TranslateBatch(ctx, ids, langs)
	return writeOutput(v.GetString("output"), result)
}

func runExport(cmd *cobra.Command, _ []string) error {
	v, db, err := setup(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	export, err := db.ExportTranslations(cmd.Context(), translation.DefaultLanguages().Map())
	if err != nil {
		return fmt.Errorf("export translations: %w", err)
	}
	return writeOutput(v.GetString("output"), export)
}

func writeOutput(outPath string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)
	return nil
}

func importFiles(ctx context.Context, db *store.Store, paths []string) error {
	sort.Strings(paths)
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		_, err = db.ImportExams(ctx, path, data)
		switch {
		case errors.Is(err, store.ErrAlreadyImported):
			slog.Info("exams file unchanged, skipping", "path", path)
		case errors.Is(err, store.ErrSourceChanged):
			slog.Warn("exams file changed since last import, skipping to avoid duplicates", "path", path)
		case err != nil:
			return err
		}
	}
	return nil
}

func seedAdmin(ctx context.Context, db *store.Store, password string) error {
	count, err := db.UserCount(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if password == "" {
		return fmt.Errorf("admin password is required: set --admin-password flag or EXAMPREP_ADMIN_PASSWORD env var")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	_, err = db.CreateUser(ctx, model.User{
		Username:     "admin",
		DisplayName:  "Administrator",
		PasswordHash: string(hash),
		Role:         model.UserRoleAdmin,
		Active:       true,
	})
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	slog.Info("seeded default admin user", "username", "admin")
	return nil
}
