package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backend != BackendText {
		t.Errorf("expected default backend %q, got %q", BackendText, cfg.Backend)
	}
	if cfg.Text.Dir != "./data" || cfg.Text.Shards != 1 {
		t.Errorf("unexpected text defaults %+v", cfg.Text)
	}
	if cfg.Dynamo.TTL != "ttl" {
		t.Errorf("expected ttl default, got %q", cfg.Dynamo.TTL)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strata.yaml")
	content := "backend: sql\nsql:\n  driver: pgx\n  dsn: postgres://file\nlog:\n  level: debug\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("STRATA_SQL_DSN", "postgres://env")
	t.Setenv("STRATA_LOG_FORMAT", "json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backend != BackendSQL || cfg.SQL.Driver != "pgx" {
		t.Errorf("expected file values, got %+v", cfg)
	}
	if cfg.SQL.DSN != "postgres://env" {
		t.Errorf("expected env to override dsn, got %q", cfg.SQL.DSN)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("unexpected log config %+v", cfg.Log)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"dynamo", Config{Backend: BackendDynamo}, false},
		{"sql", Config{Backend: BackendSQL, SQL: SQL{Driver: "sqlite", DSN: "file.db"}}, false},
		{"sql without dsn", Config{Backend: BackendSQL, SQL: SQL{Driver: "sqlite"}}, true},
		{"sql unknown driver", Config{Backend: BackendSQL, SQL: SQL{Driver: "oracle", DSN: "x"}}, true},
		{"text without dir", Config{Backend: BackendText}, true},
		{"unknown backend", Config{Backend: "redis"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error=%v, got %v", tt.wantErr, err)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}
