package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultMatchesDocumentedConstants(t *testing.T) {
	d := Default()

	if d.Network.Group != "224.228.19.78" || d.Network.Port != 9472 {
		t.Fatalf("unexpected multicast address: %+v", d.Network)
	}
	if d.Network.TTL != 1 || d.Network.LoopbackEnabled {
		t.Fatalf("unexpected socket options: %+v", d.Network)
	}
	if d.SPT.HeartbeatSeconds != 5 || d.SPT.AdjacencyTimeout != 20 || d.SPT.NeighborhoodTimeout != 5 {
		t.Fatalf("unexpected SPT timers: %+v", d.SPT)
	}
}

func TestLoadOverlaysOntoDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hcagentd.yaml")

	yamlContent := "node_logical: 17\noverlay:\n  id: idX\nspt:\n  heartbeat_seconds: 10\n"
	if err := os.WriteFile(path, []byte(yamlContent), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.NodeLogical != 17 {
		t.Fatalf("expected node_logical 17, got %d", cfg.NodeLogical)
	}
	if cfg.Overlay.ID != "idX" {
		t.Fatalf("expected overlay id idX, got %s", cfg.Overlay.ID)
	}
	if cfg.Overlay.SecurityLevel != "plaintext" {
		t.Fatalf("expected unset field to keep its default, got %s", cfg.Overlay.SecurityLevel)
	}
	if cfg.SPT.HeartbeatSeconds != 10 {
		t.Fatalf("expected overridden heartbeat 10, got %d", cfg.SPT.HeartbeatSeconds)
	}
	if cfg.Network.Group != "224.228.19.78" {
		t.Fatalf("expected unset network section to keep its default, got %+v", cfg.Network)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
