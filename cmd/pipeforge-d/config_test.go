package main

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfig_FetchTimeoutValidation(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		envVars     map[string]string
		expectError bool
		errorSubstr string
	}{
		{
			name:        "valid fetch timeout from flag",
			args:        []string{"-fetch-timeout", "5s"},
			expectError: false,
		},
		{
			name:        "zero fetch timeout from flag",
			args:        []string{"-fetch-timeout", "0s"},
			expectError: true,
			errorSubstr: "fetch timeout must be positive",
		},
		{
			name:        "negative fetch timeout from flag",
			args:        []string{"-fetch-timeout", "-5s"},
			expectError: true,
			errorSubstr: "fetch timeout must be positive",
		},
		{
			name:        "valid fetch timeout from env",
			envVars:     map[string]string{"PIPEFORGE_FETCH_TIMEOUT": "5s"},
			expectError: false,
		},
		{
			name:        "zero fetch timeout from env",
			envVars:     map[string]string{"PIPEFORGE_FETCH_TIMEOUT": "0s"},
			expectError: true,
			errorSubstr: "PIPEFORGE_FETCH_TIMEOUT must be positive",
		},
		{
			name:        "invalid fetch timeout format from flag",
			args:        []string{"-fetch-timeout", "invalid"},
			expectError: true,
			errorSubstr: "invalid fetch timeout",
		},
		{
			name:        "invalid fetch timeout format from env",
			envVars:     map[string]string{"PIPEFORGE_FETCH_TIMEOUT": "invalid"},
			expectError: true,
			errorSubstr: "invalid PIPEFORGE_FETCH_TIMEOUT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg, err := LoadConfig(tt.args)

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error containing %q, got nil", tt.errorSubstr)
				} else if !strings.Contains(err.Error(), tt.errorSubstr) {
					t.Errorf("expected error containing %q, got %q", tt.errorSubstr, err.Error())
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				} else if cfg.FetchTimeout <= 0 {
					t.Errorf("expected positive fetch timeout, got %v", cfg.FetchTimeout)
				}
			}
		})
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig([]string{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Addr != defaultAddr {
		t.Errorf("expected default addr %s, got %s", defaultAddr, cfg.Addr)
	}
	if cfg.Store != "sqlite" {
		t.Errorf("expected sqlite store, got %s", cfg.Store)
	}
	if filepath.Base(cfg.DBPath) != "pipeforge.db" || !filepath.IsAbs(cfg.DBPath) {
		t.Errorf("expected absolute pipeforge.db path, got %s", cfg.DBPath)
	}
	if cfg.FetchTimeout != 30*time.Second {
		t.Errorf("expected default fetch timeout of 30s, got %v", cfg.FetchTimeout)
	}
	if cfg.ArchiveDir != "" || cfg.ExportInterval != 0 {
		t.Errorf("expected export disabled by default, got %q every %v", cfg.ArchiveDir, cfg.ExportInterval)
	}
}

func TestLoadConfig_PortFromEnv(t *testing.T) {
	t.Setenv("PIPEFORGE_PORT", "9001")

	cfg, err := LoadConfig(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Addr != "127.0.0.1:9001" {
		t.Errorf("expected addr from port, got %s", cfg.Addr)
	}
}

func TestLoadConfig_FlagOverridesEnv(t *testing.T) {
	t.Setenv("PIPEFORGE_STORE", "redis")

	cfg, err := LoadConfig([]string{"-store", "memory"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Store != "memory" {
		t.Errorf("expected memory store, got %s", cfg.Store)
	}
}

func TestLoadConfig_StoreValidation(t *testing.T) {
	if _, err := LoadConfig([]string{"-store", "etcd"}); err == nil || !strings.Contains(err.Error(), "unsupported store") {
		t.Errorf("expected unsupported store error, got %v", err)
	}
	if _, err := LoadConfig([]string{"-store", "redis", "-redis-addr", " "}); err == nil {
		t.Error("expected error for empty redis address")
	}
	if _, err := LoadConfig([]string{"-addr", " "}); err == nil {
		t.Error("expected error for empty addr")
	}
}

func TestLoadConfig_ExportInterval(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadConfig([]string{"-archive-dir", dir, "-export-interval", "1h"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ArchiveDir != dir || cfg.ExportInterval != time.Hour {
		t.Errorf("unexpected export config: %q every %v", cfg.ArchiveDir, cfg.ExportInterval)
	}

	if _, err := LoadConfig([]string{"-export-interval", "1h"}); err == nil {
		t.Error("expected export-interval without archive-dir to fail")
	}
	if _, err := LoadConfig([]string{"-archive-dir", dir, "-export-interval", "-1m"}); err == nil {
		t.Error("expected negative export interval to fail")
	}
}
