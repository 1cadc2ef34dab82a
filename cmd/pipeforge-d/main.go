package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/rmax-ai/pipeforge/pkg/api"
	"github.com/rmax-ai/pipeforge/pkg/archive"
	"github.com/rmax-ai/pipeforge/pkg/blob"
	"github.com/rmax-ai/pipeforge/pkg/ctxlog"
	"github.com/rmax-ai/pipeforge/pkg/fetch"
	"github.com/rmax-ai/pipeforge/pkg/hydrate"
	"github.com/rmax-ai/pipeforge/pkg/library"
	"github.com/rmax-ai/pipeforge/pkg/store"
	redisstore "github.com/rmax-ai/pipeforge/pkg/store/redis"
)

var (
	Version   = "v0.1.0"
	Commit    = "unknown"
	BuildTime = "unknown"
)

const (
	libraryConcurrency = 8
	maxExportRecords   = 10000
	shutdownTimeout    = 10 * time.Second
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := LoadConfig(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "pipeforge-d: %v\n", err)
		return 2
	}

	logger := ctxlog.New(os.Stdout, "pipeforge-d", cfg.LogLevel)
	logger.Info("system_started", "version", Version, "commit", Commit, "build_time", BuildTime)

	st, closeStore, err := openStore(cfg)
	if err != nil {
		logger.Error("failed_to_init_store", "store", cfg.Store, "error", err.Error())
		return 1
	}
	logger.Info("store_initialized", "store", cfg.Store, "path", cfg.DBPath)

	fetcher := fetch.NewHTTPFetcher(cfg.FetchTimeout)
	hydrator := hydrate.New(st, fetcher)
	loader := library.NewLoader(st, fetcher, hydrator, libraryConcurrency)

	srv := api.NewServer(st, hydrator, cfg.Addr)
	srv.SetLogger(logger)
	srv.SetVersion(Version)
	srv.SetLibraryLoader(loader)

	ctx, cancel := context.WithCancel(ctxlog.WithLogger(context.Background(), logger))
	defer cancel()

	if cfg.ArchiveDir != "" {
		exporter := archive.NewExporter(st, blob.NewLocalBlobStore(cfg.ArchiveDir), maxExportRecords)
		srv.SetExporter(exporter)
		logger.Info("export_enabled", "dir", cfg.ArchiveDir, "interval", cfg.ExportInterval.String())
		if cfg.ExportInterval > 0 {
			go exporter.Run(ctx, cfg.ExportInterval)
		}
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-sigs:
		logger.Info("shutdown_initiated", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			logger.Error("server_failed", "error", err.Error())
			exitCode = 1
		}
	}
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()

	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("failed_to_stop_server", "error", err.Error())
	}
	// Pending cache writes from hydration must land before the store closes.
	if err := hydrator.Flush(shutdownCtx); err != nil {
		logger.Warn("hydration_writes_pending", "error", err.Error())
	}
	if err := closeStore(); err != nil {
		logger.Error("failed_to_close_store", "error", err.Error())
	} else {
		logger.Info("store_closed")
	}

	logger.Info("shutdown_complete")
	return exitCode
}

func openStore(cfg Config) (store.ComponentStore, func() error, error) {
	switch cfg.Store {
	case "memory":
		return store.NewMemoryStore(), func() error { return nil }, nil
	case "redis":
		client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.RedisAddr, err)
		}
		return redisstore.NewComponentStore(client), client.Close, nil
	default:
		st, err := store.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	}
}
