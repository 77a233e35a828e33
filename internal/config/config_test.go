package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTP.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.HTTP.Port)
	}
	if !cfg.Billing.Tier2Surcharge {
		t.Fatal("expected tier 2 surcharge to be enabled by default")
	}
	if cfg.Pipeline.StageTimeout != 5*time.Second {
		t.Fatalf("expected 5s stage timeout, got %s", cfg.Pipeline.StageTimeout)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("TIER2_SURCHARGE", "false")
	t.Setenv("STAGE_TIMEOUT", "750ms")
	t.Setenv("BUS_WORKERS", "8")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTP.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.HTTP.Port)
	}
	if cfg.Billing.Tier2Surcharge {
		t.Fatal("expected tier 2 surcharge to be disabled")
	}
	if cfg.Pipeline.StageTimeout != 750*time.Millisecond {
		t.Fatalf("expected 750ms, got %s", cfg.Pipeline.StageTimeout)
	}
	if cfg.Pipeline.Workers != 8 {
		t.Fatalf("expected 8 workers, got %d", cfg.Pipeline.Workers)
	}
}

func TestLoadInvalidPort(t *testing.T) {
	t.Setenv("PORT", "99999")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for out of range port")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guatepass.yaml")
	content := []byte(`
database:
  path: /var/lib/guatepass/tolls.db
billing:
  tier2_surcharge: false
  low_balance_threshold: "75.00"
pipeline:
  workers: 2
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Path != "/var/lib/guatepass/tolls.db" {
		t.Fatalf("unexpected db path %q", cfg.Database.Path)
	}
	if cfg.Billing.Tier2Surcharge {
		t.Fatal("expected file to disable tier 2 surcharge")
	}
	if cfg.Billing.LowBalanceThreshold != "75.00" {
		t.Fatalf("unexpected threshold %q", cfg.Billing.LowBalanceThreshold)
	}
	if cfg.Pipeline.Workers != 2 {
		t.Fatalf("expected 2 workers, got %d", cfg.Pipeline.Workers)
	}
	if cfg.HTTP.Port != 8080 {
		t.Fatalf("expected untouched default port, got %d", cfg.HTTP.Port)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guatepass.yaml")
	content := []byte(`
pipeline:
  workers: 2
  queue_size: 64
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("BUS_QUEUE_SIZE", "1024")
	t.Setenv("INVOICE_NODE_ID", "7")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Pipeline.QueueSize != 1024 {
		t.Fatalf("expected env queue size 1024, got %d", cfg.Pipeline.QueueSize)
	}
	if cfg.Pipeline.Workers != 2 {
		t.Fatalf("expected file workers 2, got %d", cfg.Pipeline.Workers)
	}
	if cfg.Invoice.NodeID != 7 {
		t.Fatalf("expected node id 7, got %d", cfg.Invoice.NodeID)
	}
	if cfg.Pipeline.MaxDeliveries != 3 {
		t.Fatalf("expected default max deliveries 3, got %d", cfg.Pipeline.MaxDeliveries)
	}
}

func TestLoadInvalidEnvValue(t *testing.T) {
	t.Setenv("BUS_WORKERS", "many")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for non-numeric BUS_WORKERS")
	}
}
