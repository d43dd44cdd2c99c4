// Command serve is a small HTTP server rendering jinja-lite templates from a
// directory or a SQLite database according to a JSON or YAML config file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	jinja "github.com/AlexanderGrooff/jinja-lite"
	"github.com/AlexanderGrooff/jinja-lite/internal/config"
	"github.com/AlexanderGrooff/jinja-lite/internal/store"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON or YAML config file")
	importDir := flag.String("import", "", "copy the templates below this directory into the configured database before serving")
	flag.Parse()

	baseLogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, *importDir); err != nil {
		baseLogger.Error("Server stopped with an error", "error", err)
		os.Exit(1)
	}
	baseLogger.Info("Server has shut down.")
}

func run(ctx context.Context, configPath, importDir string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Level()}))

	src, closeSrc, err := openSource(ctx, cfg, importDir, logger)
	if err != nil {
		return err
	}
	defer closeSrc()

	env := jinja.NewEnvironment(
		jinja.WithGlobals(jinja.DefaultFilters(), cfg.Globals),
		jinja.WithLogger(logger),
	)
	server, err := NewServer(cfg, store.NewLoader(env, src, logger), logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting template server", "address", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Stopping server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownSecs)*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info("HTTP server stopped.")
	return nil
}

// openSource picks the SQLite database when one is configured and the
// template directory otherwise.
func openSource(ctx context.Context, cfg *config.Config, importDir string, logger *slog.Logger) (store.Source, func(), error) {
	if cfg.Database == "" {
		if importDir != "" {
			return nil, nil, errors.New("-import requires a database in the config")
		}
		logger.Info("Serving templates from directory", "dir", cfg.TemplateDir)
		return store.NewDirSource(cfg.TemplateDir), func() {}, nil
	}

	db, err := store.OpenSQLite(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database", "error", err)
		}
	}
	if importDir != "" {
		n, err := importTemplates(ctx, db, importDir)
		if err != nil {
			closeDB()
			return nil, nil, err
		}
		logger.Info("Templates imported", "dir", importDir, "count", n)
	}
	logger.Info("Serving templates from database", "database", cfg.Database)
	return db, closeDB, nil
}

// importTemplates stores every regular file below dir under its slash
// separated relative path.
func importTemplates(ctx context.Context, db *store.SQLiteSource, dir string) (int, error) {
	count := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if err := db.Put(ctx, filepath.ToSlash(rel), string(data)); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("importing templates: %w", err)
	}
	return count, nil
}
