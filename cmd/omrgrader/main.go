package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/coderDevDev/omr-checker-bubble-sheet/internal/handler"
	appI18n "github.com/coderDevDev/omr-checker-bubble-sheet/internal/i18n"
	"github.com/coderDevDev/omr-checker-bubble-sheet/internal/model"
	"github.com/coderDevDev/omr-checker-bubble-sheet/internal/recognizer"
	"github.com/coderDevDev/omr-checker-bubble-sheet/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "omrgrader",
		Short: "Grade scanned multiple-choice answer sheets",
	}

	serve := serveCmd()
	root.AddCommand(serve, gradeCmd(), scanCmd(), importKeysCmd(), statsCmd(),
		exportCmd(), importCmd(), hashPasswordCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `omrgrader --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

// addStoreFlags registers the flags every database-backed command shares.
func addStoreFlags(f *pflag.FlagSet) {
	f.String("db", "omrgrader.db", "SQLite database path or Postgres URL")
	f.String("db-driver", string(store.DriverSQLite), "Database driver (sqlite, postgres)")
	f.Float64("passing-percentage", model.DefaultPassingPercentage, "Default passing percentage")
	f.String("option-alphabet", model.DefaultOptionAlphabet, "Allowed option labels for answer keys")
	f.Float64("default-negative-mark", model.DefaultNegativeMarkValue, "Penalty used when a key enables negative marking without a value")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func addRecognizerFlags(f *pflag.FlagSet) {
	f.String("recognizer-url", "http://localhost:5000", "Base URL of the sheet recognition service")
	f.Duration("recognizer-timeout", recognizer.DefaultTimeout, "Timeout for one recognition request")
	f.String("template", recognizer.DefaultTemplate, "Sheet template passed to the recognizer")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP grading API",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.StringSliceP("keys", "k", nil, "Answer-key files to import on startup (repeatable)")
	f.StringP("lang", "l", "en", "Fallback response language (en, ru)")
	f.String("admin-password", "", "Admin password for mutating routes (or set OMR_ADMIN_PASSWORD)")
	f.String("admin-password-hash", "", "Bcrypt hash of the admin password; takes precedence over --admin-password")
	f.StringSlice("cors-origins", []string{"*"}, "Allowed CORS origins")
	f.Int("workers", 4, "Concurrent submissions per batch (0 = unbounded)")
	f.Bool("no-recognizer", false, "Disable the scan endpoint")
	addRecognizerFlags(f)
	addStoreFlags(f)
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

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

	v.SetEnvPrefix("OMR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("omrgrader")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/omrgrader")
	v.AddConfigPath("/etc/omrgrader")
	v.AddConfigPath("/data")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// settingsFromConfig builds the default grading settings. A grading-scale
// list in the config file replaces the built-in A-F scale.
func settingsFromConfig(v *viper.Viper) (model.Settings, error) {
	s := model.DefaultSettings()
	s.PassingPercentage = v.GetFloat64("passing-percentage")
	s.OptionAlphabet = v.GetString("option-alphabet")
	s.DefaultNegativeMarkValue = v.GetFloat64("default-negative-mark")
	if v.IsSet("grading-scale") {
		var scale model.GradingScale
		if err := v.UnmarshalKey("grading-scale", &scale); err != nil {
			return s, fmt.Errorf("parse grading-scale: %w", err)
		}
		s.GradingScale = scale
	}
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

func openStore(v *viper.Viper) (*store.Store, error) {
	db, err := store.Open(store.Driver(v.GetString("db-driver")), v.GetString("db"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func newRecognizer(v *viper.Viper) *recognizer.Client {
	return recognizer.New(v.GetString("recognizer-url"), v.GetString("template"), v.GetDuration("recognizer-timeout"))
}

// adminHash returns the bcrypt hash guarding mutating routes, hashing a
// plain password when no hash is configured. Empty means no auth.
func adminHash(v *viper.Viper) (string, error) {
	if h := v.GetString("admin-password-hash"); h != "" {
		if _, err := bcrypt.Cost([]byte(h)); err != nil {
			return "", fmt.Errorf("invalid admin-password-hash: %w", err)
		}
		return h, nil
	}
	password := v.GetString("admin-password")
	if password == "" {
		return "", nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash admin password: %w", err)
	}
	return string(hash), nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	defaults, err := settingsFromConfig(v)
	if err != nil {
		return err
	}

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := importKeyFiles(db, v.GetStringSlice("keys"), defaults); err != nil {
		return fmt.Errorf("import answer keys: %w", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	hash, err := adminHash(v)
	if err != nil {
		return err
	}
	if hash == "" {
		slog.Warn("no admin password configured, mutating routes are open")
	}

	var rec handler.Recognizer
	if !v.GetBool("no-recognizer") {
		client := newRecognizer(v)
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		_, err := client.Health(ctx)
		cancel()
		if err != nil {
			slog.Warn("recognizer not reachable, scans will fail until it is up",
				"url", v.GetString("recognizer-url"), "error", err)
		} else {
			slog.Info("recognizer OK", "url", v.GetString("recognizer-url"))
		}
		rec = client
	}

	cfg := model.ServerConfig{
		AdminPasswordHash: hash,
		CORSOrigins:       v.GetStringSlice("cors-origins"),
		Template:          v.GetString("template"),
		Lang:              lang,
		Workers:           v.GetInt("workers"),
	}

	h, err := handler.New(db, rec, defaults, cfg)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	requestTimeout := 2 * v.GetDuration("recognizer-timeout")
	if requestTimeout <= 0 {
		requestTimeout = 2 * recognizer.DefaultTimeout
	}
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Language", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"db_driver", db.Driver(),
		"lang", lang,
		"template", cfg.Template,
		"workers", cfg.Workers,
		"passing_percentage", defaults.PassingPercentage,
	)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}
