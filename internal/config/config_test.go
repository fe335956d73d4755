package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FEDGATE_PRIVATE_KEY", testKey)

	cfg := Load()

	if cfg.ListenPort != ":8080" {
		t.Errorf("ListenPort = %q, want :8080", cfg.ListenPort)
	}
	if cfg.LedgerURL != "" {
		t.Errorf("LedgerURL = %q, want empty (embedded mode)", cfg.LedgerURL)
	}
	if cfg.ReceiptTimeout != 30*time.Second {
		t.Errorf("ReceiptTimeout = %v, want 30s", cfg.ReceiptTimeout)
	}
	if cfg.DomainRole != "consumer" {
		t.Errorf("DomainRole = %q, want consumer", cfg.DomainRole)
	}
	if cfg.RedisAddr != "" {
		t.Errorf("RedisAddr = %q, want empty (persistence disabled)", cfg.RedisAddr)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("FEDGATE_PRIVATE_KEY", testKey)
	t.Setenv("FEDGATE_LISTEN_PORT", ":9090")
	t.Setenv("FEDGATE_DOMAIN_ROLE", "provider")
	t.Setenv("FEDGATE_SCAN_INTERVAL", "250ms")
	t.Setenv("FEDGATE_DELIVERY_RETRIES", "5")

	cfg := Load()

	if cfg.ListenPort != ":9090" {
		t.Errorf("ListenPort = %q, want :9090", cfg.ListenPort)
	}
	if cfg.DomainRole != "provider" {
		t.Errorf("DomainRole = %q, want provider", cfg.DomainRole)
	}
	if cfg.ScanInterval != 250*time.Millisecond {
		t.Errorf("ScanInterval = %v, want 250ms", cfg.ScanInterval)
	}
	if cfg.DeliveryRetries != 5 {
		t.Errorf("DeliveryRetries = %d, want 5", cfg.DeliveryRetries)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fedgate.yaml")
	content := "FEDGATE_PRIVATE_KEY: \"" + testKey + "\"\n" +
		"FEDGATE_LISTEN_PORT: \":7070\"\n" +
		"FEDGATE_LEDGER_URL: \"http://ledger.local:8080/ledger\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	t.Setenv("FEDGATE_CONFIG_FILE", path)
	// Env wins over file.
	t.Setenv("FEDGATE_LISTEN_PORT", ":6060")

	cfg := Load()

	if cfg.PrivateKey != testKey {
		t.Errorf("PrivateKey not loaded from file")
	}
	if cfg.ListenPort != ":6060" {
		t.Errorf("ListenPort = %q, want :6060 (env overrides file)", cfg.ListenPort)
	}
	if cfg.LedgerURL != "http://ledger.local:8080/ledger" {
		t.Errorf("LedgerURL = %q, want value from file", cfg.LedgerURL)
	}
}

func TestLoadRejectsBadRole(t *testing.T) {
	t.Setenv("FEDGATE_PRIVATE_KEY", testKey)
	t.Setenv("FEDGATE_DOMAIN_ROLE", "spectator")

	defer func() {
		if recover() == nil {
			t.Error("Load() should panic on invalid FEDGATE_DOMAIN_ROLE")
		}
	}()
	Load()
}
