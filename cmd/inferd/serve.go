package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"inferd/internal/bridge"
	"inferd/internal/common/fsutil"
	"inferd/internal/config"
	"inferd/internal/engine"
	"inferd/internal/httpapi"
	"inferd/internal/manifest"
	"inferd/internal/persona"
	"inferd/internal/resolver"
)

var serveFlags struct {
	configPath   string
	addr         string
	modelsDir    string
	manifestPath string
	personasDir  string
	defaultModel string
	logLevel     string
	ctxSize      int
	threads      int
	gpuLayers    int
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the inference daemon",
	RunE:  runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveFlags.configPath, "config", envOr("INFERD_CONFIG", ""), "Config file (.yaml, .json or .toml)")
	f.StringVar(&serveFlags.addr, "addr", envOr("INFERD_ADDR", ""), "HTTP listen address, e.g. :8090")
	f.StringVar(&serveFlags.modelsDir, "models-dir", envOr("INFERD_MODELS_DIR", ""), "Directory to scan for *.gguf model files")
	f.StringVar(&serveFlags.manifestPath, "manifest", envOr("INFERD_MANIFEST", ""), "Path to the model manifest JSON")
	f.StringVar(&serveFlags.personasDir, "personas-dir", envOr("INFERD_PERSONAS_DIR", ""), "Directory holding persona JSON files")
	f.StringVar(&serveFlags.defaultModel, "default-model", envOr("INFERD_DEFAULT_MODEL", ""), "Model to load at startup")
	f.StringVar(&serveFlags.logLevel, "log-level", envOr("INFERD_LOG_LEVEL", ""), "Log level: debug, info, warn, error")
	f.IntVar(&serveFlags.ctxSize, "ctx-size", 0, "Context window size passed to the backend")
	f.IntVar(&serveFlags.threads, "threads", 0, "Backend thread count (0 = runtime default)")
	f.IntVar(&serveFlags.gpuLayers, "gpu-layers", 0, "Layers to offload to the GPU")
	rootCmd.AddCommand(serveCmd)
}

// resolveConfig layers flag values over the config file over built-in
// defaults.
func resolveConfig() (config.Config, error) {
	var cfg config.Config
	if serveFlags.configPath != "" {
		loaded, err := config.Load(serveFlags.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if serveFlags.addr != "" {
		cfg.Addr = serveFlags.addr
	}
	if serveFlags.modelsDir != "" {
		cfg.ModelsDir = serveFlags.modelsDir
	}
	if serveFlags.manifestPath != "" {
		cfg.ManifestPath = serveFlags.manifestPath
	}
	if serveFlags.personasDir != "" {
		cfg.PersonasDir = serveFlags.personasDir
	}
	if serveFlags.defaultModel != "" {
		cfg.DefaultModel = serveFlags.defaultModel
	}
	if serveFlags.logLevel != "" {
		cfg.LogLevel = serveFlags.logLevel
	}
	if serveFlags.ctxSize > 0 {
		cfg.Llama.CtxSize = serveFlags.ctxSize
	}
	if serveFlags.threads > 0 {
		cfg.Llama.Threads = serveFlags.threads
	}
	if serveFlags.gpuLayers > 0 {
		cfg.Llama.GPULayers = serveFlags.gpuLayers
	}

	if cfg.Addr == "" {
		cfg.Addr = ":8090"
	}
	if cfg.ModelsDir == "" {
		cfg.ModelsDir = "~/models/llm"
	}
	if cfg.ManifestPath == "" {
		cfg.ManifestPath = "~/models/llm/models_manifest.json"
	}
	if cfg.PersonasDir == "" {
		cfg.PersonasDir = "~/.inferd/personas"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Llama.CtxSize == 0 {
		cfg.Llama.CtxSize = 2048
	}
	return cfg, nil
}

// runtimePaths holds the fully expanded filesystem locations the daemon
// works with.
type runtimePaths struct {
	modelsDir    string
	manifestPath string
	personasDir  string
}

func expandPaths(cfg config.Config) (runtimePaths, error) {
	var p runtimePaths
	var err error
	if p.modelsDir, err = fsutil.ExpandHome(cfg.ModelsDir); err != nil {
		return p, fmt.Errorf("models dir: %w", err)
	}
	if p.manifestPath, err = fsutil.ExpandHome(cfg.ManifestPath); err != nil {
		return p, fmt.Errorf("manifest path: %w", err)
	}
	if p.personasDir, err = fsutil.ExpandHome(cfg.PersonasDir); err != nil {
		return p, fmt.Errorf("personas dir: %w", err)
	}
	return p, nil
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg.LogLevel)

	paths, err := expandPaths(cfg)
	if err != nil {
		return err
	}
	modelsDir := paths.modelsDir
	manifestPath := paths.manifestPath
	personasDir := paths.personasDir

	man := manifest.NewStore(log)
	if !man.Reconcile(modelsDir, manifestPath, true) {
		log.Warn().Str("dir", modelsDir).Msg("startup manifest reconciliation failed, using existing manifest")
	}
	catalog, err := man.Load(manifestPath)
	if err != nil {
		return fmt.Errorf("load manifest: %w", err)
	}
	log.Info().Int("models", len(catalog)).Str("dir", modelsDir).Msg("model catalog loaded")

	eng := engine.New(engine.NewLlamaAdapter(), modelsDir, catalog, engine.Options{
		CtxSize:   cfg.Llama.CtxSize,
		Threads:   cfg.Llama.Threads,
		GPULayers: cfg.Llama.GPULayers,
	}, log)

	personas := persona.NewStore(personasDir, log)
	if err := personas.Load(); err != nil {
		return fmt.Errorf("load personas: %w", err)
	}

	res := resolver.New(personas, eng, log)
	ws := bridge.NewHandler(eng, res, log)

	httpapi.SetLogger(log)
	httpapi.SetCORSOrigins(cfg.CORSOrigins)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	if cfg.Stream.PaceMs > 0 {
		httpapi.SetStreamPace(time.Duration(cfg.Stream.PaceMs) * time.Millisecond)
	}

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)

	server := httpapi.NewServer(eng, personas, res, man, modelsDir, manifestPath, ws, log)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(server),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.DefaultModel != "" {
		if eng.LoadModel(cfg.DefaultModel) {
			log.Info().Str("model", cfg.DefaultModel).Msg("default model loaded")
		} else {
			log.Warn().Str("model", cfg.DefaultModel).Msg("default model failed to load, continuing without")
		}
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	// Cancel in-flight generations first, then drain connections.
	cancelBase()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("shutdown incomplete, closing")
		_ = srv.Close()
	}
	eng.Unload()
	return nil
}
