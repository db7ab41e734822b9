package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// LlamaConfig carries backend construction parameters.
type LlamaConfig struct {
	CtxSize   int `json:"ctx_size" yaml:"ctx_size" toml:"ctx_size"`
	Threads   int `json:"threads" yaml:"threads" toml:"threads"`
	GPULayers int `json:"gpu_layers" yaml:"gpu_layers" toml:"gpu_layers"`
}

// StreamConfig tunes streamed delivery.
type StreamConfig struct {
	// Inter-chunk pacing delay in milliseconds for proxied delivery.
	PaceMs int `json:"pace_ms" yaml:"pace_ms" toml:"pace_ms"`
}

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr         string       `json:"addr" yaml:"addr" toml:"addr"`
	ModelsDir    string       `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	ManifestPath string       `json:"manifest_path" yaml:"manifest_path" toml:"manifest_path"`
	PersonasDir  string       `json:"personas_dir" yaml:"personas_dir" toml:"personas_dir"`
	DefaultModel string       `json:"default_model" yaml:"default_model" toml:"default_model"`
	LogLevel     string       `json:"log_level" yaml:"log_level" toml:"log_level"`
	CORSOrigins  []string     `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
	MaxBodyBytes int64        `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	Llama        LlamaConfig  `json:"llama" yaml:"llama" toml:"llama"`
	Stream       StreamConfig `json:"stream" yaml:"stream" toml:"stream"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
