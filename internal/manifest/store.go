package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"inferd/internal/common/fsutil"
	"inferd/pkg/types"
)

// Store discovers model files and reconciles them against the persisted
// manifest, the catalog of record for loadable models.
type Store struct {
	log zerolog.Logger
}

func NewStore(log zerolog.Logger) *Store {
	return &Store{log: log.With().Str("component", "manifest").Logger()}
}

// Discover lists model filenames in dir. Non-regular entries and zero-byte
// files are excluded.
func (s *Store) Discover(dir string) ([]string, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".gguf") {
			continue
		}
		fi, err := e.Info()
		if err != nil || !fi.Mode().IsRegular() || fi.Size() == 0 {
			continue
		}
		files = append(files, name)
	}
	return files, nil
}

// Load reads the persisted manifest. A missing file is not an error and
// yields an empty catalog.
func (s *Store) Load(manifestPath string) ([]types.ModelDescriptor, error) {
	b, err := os.ReadFile(manifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var descs []types.ModelDescriptor
	if err := json.Unmarshal(b, &descs); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return descs, nil
}

// Reconcile diffs the discovered files against the persisted manifest and
// rewrites it: descriptors for still-present files are kept when
// preserveExisting is set, new files are classified fresh, orphaned entries
// are logged and dropped. The write is all-or-nothing; the previous manifest
// survives any failure. Returns false instead of an error on any I/O or
// parse problem.
func (s *Store) Reconcile(dir, manifestPath string, preserveExisting bool) bool {
	discovered, err := s.Discover(dir)
	if err != nil {
		s.log.Error().Err(err).Str("dir", dir).Msg("discovery failed")
		return false
	}
	discoveredSet := make(map[string]struct{}, len(discovered))
	for _, f := range discovered {
		discoveredSet[f] = struct{}{}
	}

	existing, err := s.Load(manifestPath)
	if err != nil {
		s.log.Error().Err(err).Str("path", manifestPath).Msg("manifest load failed")
		return false
	}
	existingFiles := make(map[string]struct{}, len(existing))

	var updated []types.ModelDescriptor
	for _, desc := range existing {
		if _, dup := existingFiles[desc.File]; dup {
			continue
		}
		existingFiles[desc.File] = struct{}{}
		if _, present := discoveredSet[desc.File]; !present {
			s.log.Warn().Str("file", desc.File).Msg("orphaned manifest entry")
			continue
		}
		if preserveExisting {
			updated = append(updated, desc)
		} else {
			updated = append(updated, Classify(desc.File))
		}
	}

	newCount := 0
	for _, f := range discovered {
		if _, known := existingFiles[f]; known {
			continue
		}
		s.log.Info().Str("file", f).Msg("classifying new model file")
		updated = append(updated, Classify(f))
		newCount++
	}

	s.dedupeNames(updated)
	sort.Slice(updated, func(i, j int) bool { return updated[i].Name < updated[j].Name })

	data, err := json.MarshalIndent(updated, "", "  ")
	if err != nil {
		s.log.Error().Err(err).Msg("manifest encode failed")
		return false
	}
	if err := fsutil.WriteFileAtomic(manifestPath, append(data, '\n'), 0o644); err != nil {
		s.log.Error().Err(err).Str("path", manifestPath).Msg("manifest write failed")
		return false
	}

	s.log.Info().
		Int("total", len(updated)).
		Int("new", newCount).
		Int("orphaned", len(existing)-(len(updated)-newCount)).
		Msg("manifest reconciled")
	return true
}

// dedupeNames enforces unique display names. Stripping size and quantization
// markers can collapse distinct files onto one name, and a collision would
// make which file the engine loads order-dependent. Later entries fall back
// to the full filename stem, then a numeric suffix.
func (s *Store) dedupeNames(descs []types.ModelDescriptor) {
	seen := make(map[string]struct{}, len(descs))
	for i := range descs {
		name := descs[i].Name
		if _, taken := seen[name]; !taken {
			seen[name] = struct{}{}
			continue
		}
		alt := stemName(descs[i].File)
		if alt == "" {
			alt = name
		}
		if _, taken := seen[alt]; taken {
			base := alt
			for n := 2; ; n++ {
				alt = fmt.Sprintf("%s_%d", base, n)
				if _, clash := seen[alt]; !clash {
					break
				}
			}
		}
		s.log.Warn().
			Str("file", descs[i].File).
			Str("name", name).
			Str("renamed", alt).
			Msg("display name collision")
		descs[i].Name = alt
		seen[alt] = struct{}{}
	}
}
