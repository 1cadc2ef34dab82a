package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultAddr         = "127.0.0.1:8095"
	defaultStore        = "sqlite"
	defaultRedisAddr    = "127.0.0.1:6379"
	defaultFetchTimeout = 30 * time.Second
	defaultLogLevel     = "info"
)

type Config struct {
	Addr           string
	Store          string
	DBPath         string
	RedisAddr      string
	FetchTimeout   time.Duration
	ArchiveDir     string
	ExportInterval time.Duration
	LogLevel       string
}

func LoadConfig(args []string) (Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, fmt.Errorf("failed to get cwd: %w", err)
	}

	defaultDBPath := filepath.Join(cwd, "pipeforge.db")

	dbPath := envOrDefault("PIPEFORGE_DB_PATH", defaultDBPath)
	addr := addrFromEnv(defaultAddr)
	storeKind := envOrDefault("PIPEFORGE_STORE", defaultStore)
	redisAddr := envOrDefault("PIPEFORGE_REDIS_ADDR", defaultRedisAddr)
	archiveDir := os.Getenv("PIPEFORGE_ARCHIVE_DIR")
	logLevel := envOrDefault("PIPEFORGE_LOG_LEVEL", defaultLogLevel)

	fetchTimeout, err := durationFromEnv("PIPEFORGE_FETCH_TIMEOUT", defaultFetchTimeout)
	if err != nil {
		return Config{}, err
	}
	if fetchTimeout <= 0 {
		return Config{}, errors.New("PIPEFORGE_FETCH_TIMEOUT must be positive")
	}
	exportInterval, err := durationFromEnv("PIPEFORGE_EXPORT_INTERVAL", 0)
	if err != nil {
		return Config{}, err
	}

	flagSet := flag.NewFlagSet("pipeforge-d", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagAddr := flagSet.String("addr", addr, "HTTP listen address")
	flagStore := flagSet.String("store", storeKind, "component store: memory|sqlite|redis")
	flagDB := flagSet.String("db", dbPath, "path to SQLite database when store=sqlite")
	flagRedis := flagSet.String("redis-addr", redisAddr, "Redis address when store=redis")
	flagFetchTimeout := flagSet.String("fetch-timeout", fetchTimeout.String(), "timeout for fetching component text")
	flagArchive := flagSet.String("archive-dir", archiveDir, "directory for store exports; empty disables export")
	flagExportInterval := flagSet.String("export-interval", exportInterval.String(), "periodic export interval; 0 disables")
	flagLogLevel := flagSet.String("log-level", logLevel, "log level: debug|info|warn|error")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			flagSet.SetOutput(os.Stdout)
			flagSet.PrintDefaults()
			return Config{}, err
		}
		return Config{}, err
	}

	fetchTimeoutParsed, err := time.ParseDuration(*flagFetchTimeout)
	if err != nil {
		return Config{}, fmt.Errorf("invalid fetch timeout: %w", err)
	}
	if fetchTimeoutParsed <= 0 {
		return Config{}, errors.New("fetch timeout must be positive")
	}
	exportIntervalParsed, err := time.ParseDuration(*flagExportInterval)
	if err != nil {
		return Config{}, fmt.Errorf("invalid export interval: %w", err)
	}
	if exportIntervalParsed < 0 {
		return Config{}, errors.New("export interval cannot be negative")
	}

	config := Config{
		Addr:           strings.TrimSpace(*flagAddr),
		Store:          normalizeStore(*flagStore),
		DBPath:         resolvePath(*flagDB, cwd),
		RedisAddr:      strings.TrimSpace(*flagRedis),
		FetchTimeout:   fetchTimeoutParsed,
		ArchiveDir:     resolvePath(*flagArchive, cwd),
		ExportInterval: exportIntervalParsed,
		LogLevel:       strings.TrimSpace(*flagLogLevel),
	}

	if config.Addr == "" {
		return Config{}, errors.New("addr cannot be empty")
	}

	switch config.Store {
	case "memory":
	case "sqlite":
		if config.DBPath == "" {
			return Config{}, errors.New("store=sqlite requires db")
		}
	case "redis":
		if config.RedisAddr == "" {
			return Config{}, errors.New("store=redis requires redis-addr")
		}
	default:
		return Config{}, fmt.Errorf("unsupported store: %s", config.Store)
	}

	if config.ExportInterval > 0 && config.ArchiveDir == "" {
		return Config{}, errors.New("export-interval requires archive-dir")
	}

	return config, nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func addrFromEnv(fallback string) string {
	if value := os.Getenv("PIPEFORGE_ADDR"); value != "" {
		return value
	}
	if port := os.Getenv("PIPEFORGE_PORT"); port != "" {
		return fmt.Sprintf("127.0.0.1:%s", port)
	}
	return fallback
}

func resolvePath(path string, cwd string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return trimmed
	}
	if filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Join(cwd, trimmed)
}

func normalizeStore(kind string) string {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "sqlite", "sqlite3":
		return "sqlite"
	case "memory", "mem":
		return "memory"
	case "redis":
		return "redis"
	default:
		return strings.ToLower(strings.TrimSpace(kind))
	}
}
