package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/conorfennell/chopper/internal/config"
	"github.com/conorfennell/chopper/internal/gitsource"
	"github.com/conorfennell/chopper/internal/importer"
	"github.com/conorfennell/chopper/internal/repository"
	"github.com/conorfennell/chopper/internal/seed"
	"github.com/conorfennell/chopper/internal/storage"
	"github.com/conorfennell/chopper/internal/web"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	slog.SetDefault(cfg.NewLogger(os.Stderr))

	if err := run(cfg); err != nil {
		slog.Error("Exiting", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	src, err := questionSource(cfg)
	if err != nil {
		return err
	}

	db, err := storage.Open(cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	slog.Info("Database opened successfully", "path", cfg.DB)

	repo := repository.New(db, slog.Default())
	defer repo.Close()
	imp := importer.New(repo, slog.Default())

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: web.NewServer(ctx, repo, imp, src, slog.Default()),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// A failed first import is retried on the next start; the server still runs.
		if _, err := seed.Run(gctx, db, imp, src, slog.Default()); err != nil {
			slog.Warn("First launch import did not complete", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		slog.Info("Starting web server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("web server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		slog.Info("Shutting down web server")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// questionSource picks where the question set comes from: a git repository,
// a local file, or the set bundled with the binary.
func questionSource(cfg *config.Config) (importer.Source, error) {
	switch {
	case cfg.GitURL != "":
		dir, err := gitsource.LocalPath(cfg.GitDir, cfg.GitURL)
		if err != nil {
			return nil, err
		}
		return importer.GitSource{URL: cfg.GitURL, Dir: dir, File: cfg.GitFile}, nil
	case cfg.Questions != "":
		return importer.FileSource{Path: cfg.Questions}, nil
	}
	return importer.BundledSource{}, nil
}
