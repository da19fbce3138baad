package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/Joseda-hg/taskflow/internal/auth"
	"github.com/Joseda-hg/taskflow/internal/config"
	"github.com/Joseda-hg/taskflow/internal/db"
	"github.com/Joseda-hg/taskflow/internal/tasks"
	"github.com/Joseda-hg/taskflow/internal/web"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	configPathFlag := pflag.String("config", "", "config file path")
	dbPathFlag := pflag.String("db", "", "sqlite db path")
	portFlag := pflag.Int("port", 0, "http port")
	logLevelFlag := pflag.String("log-level", "", "log level (debug, info, warn, error)")
	pflag.Parse()

	cfgPath, err := resolveConfigPath(*configPathFlag)
	if err != nil {
		return err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	if *dbPathFlag != "" {
		cfg.DBPath = *dbPathFlag
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(filepath.Dir(cfgPath), "taskflow.db")
	}
	if *portFlag != 0 {
		cfg.Port = *portFlag
	}
	if *logLevelFlag != "" {
		cfg.LogLevel = *logLevelFlag
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); errors.Is(err, os.ErrNotExist) {
		if err := config.Save(cfgPath, cfg); err != nil {
			return err
		}
	}

	logger, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}

	sqlDB, err := openStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	issuer, err := auth.NewTokenIssuer(auth.TokenConfig{Secret: []byte(cfg.JWTSecret), TTL: cfg.TokenTTL})
	if err != nil {
		return err
	}

	store := db.NewStore(sqlDB)
	server := web.NewServer(
		auth.NewService(store, issuer, logger),
		issuer,
		tasks.NewController(store, logger),
		web.Options{
			Logger:      logger,
			CORSOrigins: cfg.CORSOrigins,
			Health:      func(ctx context.Context) error { return db.Ping(ctx, sqlDB) },
		},
	)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", httpServer.Addr, "db", cfg.DBPath)
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func resolveConfigPath(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	return config.DefaultConfigPath()
}

func newLogger(cfg config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func openStore(dbPath string) (*sql.DB, error) {
	if err := config.EnsureDir(dbPath); err != nil {
		return nil, err
	}
	return db.Open(dbPath)
}
