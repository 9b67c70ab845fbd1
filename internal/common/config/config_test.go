package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Name != "odometer-service" {
		t.Fatalf("unexpected default name: %s", cfg.Server.Name)
	}
	if cfg.Server.HTTPPort != 8080 || cfg.Server.GRPCPort != 50051 {
		t.Fatalf("unexpected default ports: %d / %d", cfg.Server.HTTPPort, cfg.Server.GRPCPort)
	}
	if cfg.Auth.Enabled {
		t.Fatalf("auth must default to disabled")
	}
}

func TestLoadConfigPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	body := `{
		"server": {"name": "odometer-test", "http_port": 9090},
		"ledger": {"wait_scale_millis": 3600}
	}`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Name != "odometer-test" {
		t.Fatalf("name not overridden: %s", cfg.Server.Name)
	}
	if cfg.Server.HTTPPort != 9090 {
		t.Fatalf("http_port not overridden: %d", cfg.Server.HTTPPort)
	}
	// 未出现的字段保留默认值
	if cfg.Server.GRPCPort != 50051 {
		t.Fatalf("grpc_port default lost: %d", cfg.Server.GRPCPort)
	}
	if cfg.Ledger.WaitScaleMillis != 3600 {
		t.Fatalf("wait_scale_millis not applied: %v", cfg.Ledger.WaitScaleMillis)
	}
}

func TestLoadConfigBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected parse error")
	}
}
