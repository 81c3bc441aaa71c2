package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/msomdec/user-board/internal/client"
	"github.com/msomdec/user-board/internal/handler"
	"github.com/msomdec/user-board/internal/repository/sqlite"
	"github.com/msomdec/user-board/internal/service"
)

type config struct {
	port          string
	usersAPIURL   string // empty: serve the built-in collection endpoint
	dbPath        string
	seedUsers     bool
	apiRate       float64
	apiBurst      float64
	clientTimeout time.Duration
	logLevel      slog.Level
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logOpts := &slog.HandlerOptions{Level: cfg.logLevel}
	logger := slog.New(slog.NewMultiHandler(
		slog.NewTextHandler(os.Stdout, logOpts),
		slog.NewJSONHandler(os.Stderr, logOpts),
	))
	slog.SetDefault(logger)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// One limiter serves both surfaces: browsers are throttled at
	// POST /board/users, direct callers at POST /user.
	limiter := service.NewRateLimiter(cfg.apiRate, cfg.apiBurst)
	go limiter.Run(ctx)

	var users *handler.UserHandler
	endpoint := cfg.usersAPIURL
	if endpoint == "" {
		db, err := sqlite.New(cfg.dbPath)
		if err != nil {
			slog.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			slog.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		slog.Info("database migrations applied")

		userService := service.NewUserService(db.Users())
		if cfg.seedUsers {
			if err := userService.SeedDefaults(ctx); err != nil {
				slog.Error("failed to seed users", "error", err)
				os.Exit(1)
			}
		}

		users = handler.NewUserHandler(userService, limiter, handler.ExemptLoopback())
		endpoint = "http://127.0.0.1:" + cfg.port + "/user"
		slog.Info("serving collection endpoint", "path", "/user", "database", cfg.dbPath)
	}

	remote, err := client.New(endpoint,
		client.WithHTTPClient(&http.Client{Timeout: cfg.clientTimeout}),
		client.WithLogger(logger),
	)
	if err != nil {
		slog.Error("invalid USERS_API_URL", "error", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	boards := handler.NewBoardHandler(remote, logger, handler.WithSubmitLimiter(limiter))
	handler.RegisterRoutes(mux, boards, users)

	srv := &http.Server{
		Addr:              ":" + cfg.port,
		Handler:           handler.Wrap(mux, logger),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr, "endpoint", remote.Endpoint())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func loadConfig() (config, error) {
	cfg := config{
		port:        envOrDefault("PORT", "8080"),
		usersAPIURL: os.Getenv("USERS_API_URL"),
		dbPath:      envOrDefault("DATABASE_PATH", "users.db"),
		seedUsers:   os.Getenv("SEED_USERS") != "false",
	}

	var err error
	if cfg.apiRate, err = strconv.ParseFloat(envOrDefault("API_RATE_PER_SEC", "5"), 64); err != nil {
		return cfg, err
	}
	if cfg.apiBurst, err = strconv.ParseFloat(envOrDefault("API_BURST", "10"), 64); err != nil {
		return cfg, err
	}
	if cfg.clientTimeout, err = time.ParseDuration(envOrDefault("CLIENT_TIMEOUT", "10s")); err != nil {
		return cfg, err
	}
	if err := cfg.logLevel.UnmarshalText([]byte(envOrDefault("LOG_LEVEL", "info"))); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
