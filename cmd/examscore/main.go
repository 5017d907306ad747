package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/examscore/internal/auth"
	"github.com/pavelanni/examscore/internal/event"
	"github.com/pavelanni/examscore/internal/handler"
	appI18n "github.com/pavelanni/examscore/internal/i18n"
	"github.com/pavelanni/examscore/internal/metrics"
	"github.com/pavelanni/examscore/internal/model"
	"github.com/pavelanni/examscore/internal/scoring"
	"github.com/pavelanni/examscore/internal/store"
	"github.com/pavelanni/examscore/internal/store/mongostore"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("error reading .env file", "error", err)
	}
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "examscore",
		Short:        "Exam submission and scoring service",
		SilenceUsage: true,
	}

	serve := serveCmd()
	root.AddCommand(serve, importCmd(), statsCmd(), resultsCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `examscore --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addStoreFlags(f *pflag.FlagSet) {
	f.String("store", "sqlite", "Storage backend (sqlite, mongo)")
	f.String("db", "examscore.db", "SQLite database path")
	f.String("mongo-uri", "mongodb://localhost:27017", "MongoDB connection URI")
	f.String("mongo-database", mongostore.DefaultDatabase, "MongoDB database name")
}

func addLogFlags(f *pflag.FlagSet) {
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP scoring server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	addStoreFlags(f)
	f.String("jwt-secret", "", "Secret for signing access tokens (or set EXAMSCORE_JWT_SECRET)")
	f.Duration("token-ttl", auth.DefaultTokenTTL, "Access token lifetime")
	f.String("amqp-url", "", "RabbitMQ URL for result events (empty disables events)")
	f.String("amqp-exchange", event.DefaultExchange, "Topic exchange for result events")
	f.StringSlice("cors-origins", []string{"http://localhost:4200"}, "Allowed browser origins (repeatable)")
	f.StringP("lang", "l", "en", "Default language for messages (en, vi)")
	f.String("admin-password", "", "Initial admin password (or set EXAMSCORE_ADMIN_PASSWORD)")
	f.String("admin-email", "admin@example.com", "Initial admin email")
	addLogFlags(f)
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

	v.SetEnvPrefix("EXAMSCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("examscore")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/examscore")
	v.AddConfigPath("/etc/examscore")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// appStore is implemented by both storage backends.
type appStore interface {
	handler.Store
	UserCount(ctx context.Context) (int, error)
	CleanupExpiredRevocations(ctx context.Context) error
	Close() error
}

func openStore(ctx context.Context, v *viper.Viper) (appStore, error) {
	switch backend := strings.ToLower(v.GetString("store")); backend {
	case "", "sqlite":
		s, err := store.New(v.GetString("db"))
		if err != nil {
			return nil, err
		}
		return s, nil
	case "mongo":
		s, err := mongostore.New(ctx, v.GetString("mongo-uri"), v.GetString("mongo-database"))
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store %q (want sqlite or mongo)", backend)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	secret := v.GetString("jwt-secret")
	if secret == "" {
		return fmt.Errorf("jwt secret is required: set --jwt-secret flag or EXAMSCORE_JWT_SECRET env var")
	}

	db, err := openStore(ctx, v)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	// Seed default admin user if no users exist.
	if err := seedAdmin(ctx, db, v.GetString("admin-email"), v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	var notifier scoring.Notifier
	if url := v.GetString("amqp-url"); url != "" {
		pub, err := event.NewPublisher(url, v.GetString("amqp-exchange"))
		if err != nil {
			return fmt.Errorf("connect event broker: %w", err)
		}
		defer pub.Close()
		notifier = pub
		slog.Info("publishing result events", "exchange", v.GetString("amqp-exchange"))
	}

	cfg := model.ServerConfig{
		JWTSecret:   secret,
		TokenTTL:    v.GetDuration("token-ttl"),
		Lang:        lang,
		CORSOrigins: v.GetStringSlice("cors-origins"),
	}
	h, err := handler.New(db, notifier, cfg)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Language", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Language"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(appI18n.Middleware(lang))
	r.Handle("/metrics", metrics.Handler())
	h.Routes(r)

	go cleanupRevocations(ctx, db, time.Hour)

	addr := v.GetString("addr")
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	slog.Info("starting server",
		"addr", addr,
		"store", v.GetString("store"),
		"lang", lang,
		"token_ttl", cfg.TokenTTL,
		"cors_origins", cfg.CORSOrigins,
		"events", notifier != nil,
	)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// cleanupRevocations drops expired token revocations once at startup and
// then every interval until ctx is done.
func cleanupRevocations(ctx context.Context, db appStore, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := db.CleanupExpiredRevocations(ctx); err != nil && ctx.Err() == nil {
			slog.Warn("cleanup expired revocations", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func seedAdmin(ctx context.Context, db appStore, email, password string) error {
	count, err := db.UserCount(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if password == "" {
		return fmt.Errorf("admin password is required: set --admin-password flag or EXAMSCORE_ADMIN_PASSWORD env var")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	_, err = db.CreateUser(ctx, model.User{
		Username:     "admin",
		DisplayName:  "Administrator",
		Email:        email,
		PasswordHash: string(hash),
		Role:         model.UserRoleAdmin,
		Active:       true,
	})
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	slog.Info("seeded default admin user", "username", "admin", "email", email)
	return nil
}
