package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/chatverse/internal/backend"
	"github.com/user/chatverse/internal/catalog"
	"github.com/user/chatverse/internal/config"
	"github.com/user/chatverse/internal/gateway"
	"github.com/user/chatverse/internal/group"
	"github.com/user/chatverse/internal/metrics"
	"github.com/user/chatverse/internal/models"
	"github.com/user/chatverse/internal/state"
	"github.com/user/chatverse/internal/web"
)

const shutdownTimeout = 10 * time.Second

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web UI",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func pidPath(dataDir string) string {
	return filepath.Join(dataDir, "chatverse.pid")
}

func writePIDFile(dataDir string) (string, error) {
	p := pidPath(dataDir)
	if err := os.WriteFile(p, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return p, nil
}

// catalogPaths resolves the catalog file and the directory its relative
// asset paths are read from, both as absolute paths.
func catalogPaths(cfg *config.Config) (path, baseDir string, err error) {
	path, err = filepath.Abs(cfg.Catalog.Path)
	if err != nil {
		return "", "", fmt.Errorf("resolve catalog path: %w", err)
	}
	baseDir = cfg.Catalog.BaseDir
	if baseDir == "" {
		return path, filepath.Dir(path), nil
	}
	baseDir, err = filepath.Abs(baseDir)
	if err != nil {
		return "", "", fmt.Errorf("resolve catalog base dir: %w", err)
	}
	return path, baseDir, nil
}

func openCatalog(cfg *config.Config, registry *models.Registry) (*catalog.Source, string, error) {
	path, baseDir, err := catalogPaths(cfg)
	if err != nil {
		return nil, "", err
	}
	src, err := catalog.NewSource(path, baseDir, registry)
	if err != nil {
		return nil, "", fmt.Errorf("load catalog: %w", err)
	}
	return src, path, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config %s: %w", cfgPath, err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	pidFile, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidFile)

	counter := models.DefaultCounter()
	registry := models.NewDefaultRegistry(models.OpenAIProvider, counter)
	src, catalogPath, err := openCatalog(cfg, registry)
	if err != nil {
		return err
	}

	m := metrics.New("chatverse")
	pipeline := group.New(group.Config{
		WorkspaceDir:     filepath.Join(cfg.DataDir, "workspace"),
		BaseURL:          cfg.OpenAI.BaseURL,
		Model:            cfg.OpenAI.Model,
		PricePer1KTokens: cfg.Group.PricePer1KTokens,
		Rounds:           cfg.Group.Rounds,
		NewProvider:      models.OpenAIProvider,
		Counter:          counter,
	})
	artifacts := state.NewArtifactStore(cfg.DataDir)
	b := backend.New(src, registry, pipeline, artifacts, m)
	if cfg.OpenAI.APIKey != "" {
		b.SetSharedDefaults(map[string]any{"openai_api_key": cfg.OpenAI.APIKey})
	}

	sessions := web.NewSessions(b)
	gw := gateway.New(sessions, int64(cfg.MaxConcurrent), m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gw.Start(ctx)
	defer gw.Stop()

	if cfg.Catalog.Watch {
		go func() {
			err := catalog.Watch(ctx, catalogPath, func() error {
				err := src.Reload()
				m.CatalogReloaded(err)
				return err
			})
			if err != nil {
				slog.Error("catalog watcher stopped", "error", err)
			}
		}()
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Listen,
		Handler:           web.NewServer(b, sessions, gw, artifacts, m),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	slog.Info("chatverse started",
		"listen", cfg.HTTP.Listen,
		"data_dir", cfg.DataDir,
		"catalog", catalogPath,
		"log_level", cfg.LogLevel,
		"max_concurrent", cfg.MaxConcurrent,
		"model", cfg.OpenAI.Model,
		"pid_file", pidFile,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		select {
		case err := <-serveErr:
			return fmt.Errorf("http server: %w", err)
		case sig := <-sigChan:
			if sig == syscall.SIGHUP {
				slog.Info("received SIGHUP, restarting")
				execPath, err := os.Executable()
				if err != nil {
					slog.Error("failed to get executable path", "error", err)
					continue
				}
				shutdown(httpServer)
				os.Remove(pidFile)
				if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
					return fmt.Errorf("re-exec: %w", err)
				}
			}
			slog.Info("shutting down", "signal", sig)
			shutdown(httpServer)
			return nil
		}
	}
}

func shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Warn("http shutdown incomplete", "error", err)
	}
}
