package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, `
soupbin_server:
  username: trader
  password: secret
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.SoupBinServer.Username != "trader" {
		t.Errorf("Username = %q, want trader", cfg.SoupBinServer.Username)
	}
	if cfg.SoupBinServer.BindAddress != "0.0.0.0:18000" {
		t.Errorf("BindAddress = %q, want default", cfg.SoupBinServer.BindAddress)
	}
	if !cfg.MoldReceiver.AutoRerequest {
		t.Error("MoldReceiver.AutoRerequest should default to true")
	}
	if cfg.MoldReceiver.ServerTimeout != 15*time.Second {
		t.Errorf("MoldReceiver.ServerTimeout = %v, want 15s default", cfg.MoldReceiver.ServerTimeout)
	}
	if cfg.MoldReceiver.BufferSize != 4096 {
		t.Errorf("MoldReceiver.BufferSize = %d, want 4096 default", cfg.MoldReceiver.BufferSize)
	}
	if cfg.MoldTransmitter.RequestBind != "0.0.0.0:18001" {
		t.Errorf("MoldTransmitter.RequestBind = %q, want default", cfg.MoldTransmitter.RequestBind)
	}
	if cfg.Admin.Port != 8080 {
		t.Errorf("Admin.Port = %d, want 8080 default", cfg.Admin.Port)
	}
	if cfg.Logs.Level != "info" {
		t.Errorf("Logs.Level = %q, want info default", cfg.Logs.Level)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeTempConfig(t, `
soupbin_server:
  bind_address: "0.0.0.0:9999"
mold_receiver:
  auto_rerequest: false
  buffer_size: 1024
admin:
  port: 9090
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SoupBinServer.BindAddress != "0.0.0.0:9999" {
		t.Errorf("BindAddress = %q, want override", cfg.SoupBinServer.BindAddress)
	}
	if cfg.MoldReceiver.AutoRerequest {
		t.Error("AutoRerequest should be overridden to false")
	}
	if cfg.MoldReceiver.BufferSize != 1024 {
		t.Errorf("BufferSize = %d, want 1024 override", cfg.MoldReceiver.BufferSize)
	}
	if cfg.Admin.Port != 9090 {
		t.Errorf("Admin.Port = %d, want 9090 override", cfg.Admin.Port)
	}
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("Load of a missing file should return an error")
	}
}
