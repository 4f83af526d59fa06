package config

import (
	"os"
	"testing"
	"time"
)

// unsetenv clears a variable for the test while restoring it afterwards.
func unsetenv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("unsetenv %s: %v", key, err)
	}
}

func TestLoadDefaults(t *testing.T) {
	unsetenv(t, "SENTRA_LISTEN_ADDR")
	unsetenv(t, "SENTRA_PG_DSN")
	unsetenv(t, "SENTRA_TOKEN_TTL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("unexpected listen addr: %s", cfg.ListenAddr)
	}
	if cfg.TokenTTL != 12*time.Hour {
		t.Fatalf("unexpected token ttl: %s", cfg.TokenTTL)
	}
	if cfg.RemoteEnabled() {
		t.Fatal("remote backend should be disabled without a DSN")
	}
}

func TestRemoteEnabled(t *testing.T) {
	t.Setenv("SENTRA_PG_DSN", "postgres://sentra@localhost/sentra")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.RemoteEnabled() {
		t.Fatal("expected remote backend with DSN set")
	}
}
