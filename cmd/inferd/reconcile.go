package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"inferd/internal/common/fsutil"
	"inferd/internal/manifest"
)

var reconcileFlags struct {
	modelsDir    string
	manifestPath string
	preserve     bool
	logLevel     string
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile the model manifest against the models directory",
	Long: `Scans the models directory for *.gguf files, drops manifest entries whose
files are gone, and classifies newly discovered models. With --preserve,
existing entries keep their descriptions and tags.`,
	RunE: runReconcile,
}

func init() {
	f := reconcileCmd.Flags()
	f.StringVar(&reconcileFlags.modelsDir, "models-dir", envOr("INFERD_MODELS_DIR", "~/models/llm"), "Directory to scan for *.gguf model files")
	f.StringVar(&reconcileFlags.manifestPath, "manifest", envOr("INFERD_MANIFEST", "~/models/llm/models_manifest.json"), "Path to the model manifest JSON")
	f.BoolVar(&reconcileFlags.preserve, "preserve", true, "Keep existing manifest entries untouched")
	f.StringVar(&reconcileFlags.logLevel, "log-level", envOr("INFERD_LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	log := newLogger(reconcileFlags.logLevel)
	man := manifest.NewStore(log)
	dir, err := fsutil.ExpandHome(reconcileFlags.modelsDir)
	if err != nil {
		return fmt.Errorf("models dir: %w", err)
	}
	path, err := fsutil.ExpandHome(reconcileFlags.manifestPath)
	if err != nil {
		return fmt.Errorf("manifest path: %w", err)
	}
	if !man.Reconcile(dir, path, reconcileFlags.preserve) {
		return fmt.Errorf("manifest reconciliation failed")
	}
	catalog, err := man.Load(path)
	if err != nil {
		return err
	}
	fmt.Printf("manifest updated: %d models\n", len(catalog))
	return nil
}
