package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(configPathEnv, "")
	t.Setenv(databaseDSNEnv, "")
	t.Setenv(logLevelEnv, "")
	t.Setenv(dumpsDirEnv, "")

	cfg := Load()

	if cfg.Pipeline.SuccessDelay != 5*time.Second || cfg.Pipeline.ErrorDelay != time.Minute {
		t.Fatalf("unexpected pipeline delays %+v", cfg.Pipeline)
	}
	if cfg.Scanner.FastSteps != 20 || cfg.Scanner.FastDelay != 15*time.Second {
		t.Fatalf("unexpected scanner defaults %+v", cfg.Scanner)
	}
	if cfg.Sites.Primary.Host() != "govnokod.ru" || cfg.Sites.Migrated.Host() != "govnokod.xyz" {
		t.Fatalf("unexpected hosts %q %q", cfg.Sites.Primary.Host(), cfg.Sites.Migrated.Host())
	}
	if cfg.Dump.Enabled {
		t.Fatalf("dumps must be disabled by default")
	}
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := `
logging:
  level: debug
database:
  driver: sqlite
  dsn: file:forum.db
pipeline:
  successDelay: 2s
scanner:
  slowDelay: 2m
sites:
  migrated:
    baseUrl: https://mirror.example
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv(configPathEnv, path)
	t.Setenv(databaseDSNEnv, "file:override.db")
	t.Setenv(dumpsDirEnv, "/tmp/dumps")
	t.Setenv(logLevelEnv, "")

	cfg := Load()

	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected level from file, got %q", cfg.Logging.Level)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.DSN != "file:override.db" {
		t.Fatalf("unexpected database config %+v", cfg.Database)
	}
	if cfg.Pipeline.SuccessDelay != 2*time.Second || cfg.Pipeline.ErrorDelay != time.Minute {
		t.Fatalf("unexpected pipeline config %+v", cfg.Pipeline)
	}
	if cfg.Scanner.SlowDelay != 2*time.Minute {
		t.Fatalf("unexpected slow delay %v", cfg.Scanner.SlowDelay)
	}
	if cfg.Sites.Migrated.Host() != "mirror.example" || cfg.Sites.Migrated.CommentsPath != "/comments/" {
		t.Fatalf("unexpected migrated site %+v", cfg.Sites.Migrated)
	}
	if !cfg.Dump.Enabled || cfg.Dump.Dir != "/tmp/dumps" {
		t.Fatalf("expected dumps enabled from env, got %+v", cfg.Dump)
	}
}

func TestLoadIgnoresBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("pipeline: [oops"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(configPathEnv, path)
	t.Setenv(databaseDSNEnv, "")

	cfg := Load()
	if cfg.Database.DSN != defaultConfig().Database.DSN {
		t.Fatalf("expected defaults on parse failure, got %+v", cfg.Database)
	}
}
