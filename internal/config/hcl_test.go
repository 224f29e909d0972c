// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "overlay.hcl")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTemp(t, `identity = "a1b2c3d4e5"`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SchemaVersion != CurrentSchemaVersion {
		t.Errorf("schema version = %q, want %q", cfg.SchemaVersion, CurrentSchemaVersion)
	}
	if cfg.PersistenceRoot != "/var/lib/overlay" {
		t.Errorf("persistence root = %q, want default", cfg.PersistenceRoot)
	}
}

func TestLoadNetworkBlocks(t *testing.T) {
	path := writeTemp(t, `
identity = "a1b2c3d4e5"

network "8056c2e21c000001" {
  tap_device = "zt0"
}

controller {
  endpoint = "controller.example.com:9993"
}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Networks) != 1 || cfg.Networks[0].ID != "8056c2e21c000001" {
		t.Fatalf("networks = %+v", cfg.Networks)
	}
	if cfg.Networks[0].TapDevice != "zt0" {
		t.Errorf("tap device = %q", cfg.Networks[0].TapDevice)
	}
	if cfg.Controller == nil || cfg.Controller.Endpoint != "controller.example.com:9993" {
		t.Errorf("controller = %+v", cfg.Controller)
	}
}

func TestValidateRejectsMissingIdentity(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing identity")
	}
}

func TestValidateRejectsDuplicateNetworkID(t *testing.T) {
	cfg := Default()
	cfg.Identity = "a1b2c3d4e5"
	cfg.Networks = []NetworkJoin{{ID: "1"}, {ID: "1"}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for duplicate network id")
	}
}
