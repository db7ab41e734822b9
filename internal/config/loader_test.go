package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	p := writeTemp(t, "cfg.yaml", `
addr: ":9090"
models_dir: /opt/models
manifest_path: /opt/models/models.json
default_model: tinymodel
max_body_bytes: 2097152
llama:
  ctx_size: 2048
  threads: 4
stream:
  pace_ms: 10
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9090" || cfg.ModelsDir != "/opt/models" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.Llama.CtxSize != 2048 || cfg.Llama.Threads != 4 {
		t.Fatalf("unexpected llama cfg: %+v", cfg.Llama)
	}
	if cfg.Stream.PaceMs != 10 {
		t.Fatalf("unexpected stream cfg: %+v", cfg.Stream)
	}
	if cfg.MaxBodyBytes != 2097152 {
		t.Fatalf("unexpected max body bytes: %d", cfg.MaxBodyBytes)
	}
}

func TestLoadJSON(t *testing.T) {
	p := writeTemp(t, "cfg.json", `{"addr":":8000","personas_dir":"/data/personas"}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8000" || cfg.PersonasDir != "/data/personas" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadTOML(t *testing.T) {
	p := writeTemp(t, "cfg.toml", "addr = \":7070\"\n[llama]\ngpu_layers = 8\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7070" || cfg.Llama.GPULayers != 8 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadUnsupportedExtension(t *testing.T) {
	p := writeTemp(t, "cfg.ini", "addr=:1")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected error for unsupported extension")
	}
}

func TestLoadEmptyPath(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
