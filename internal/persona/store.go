package persona

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"inferd/internal/common/fsutil"
	"inferd/pkg/types"
)

// Store is a process-wide persona cache backed by one JSON file per id.
type Store struct {
	dir string
	log zerolog.Logger

	mu       sync.RWMutex
	personas map[string]types.Persona
}

func NewStore(dir string, log zerolog.Logger) *Store {
	return &Store{
		dir:      dir,
		log:      log.With().Str("component", "persona").Logger(),
		personas: make(map[string]types.Persona),
	}
}

// validate reports whether p carries every field required for persistence.
func validate(p *types.Persona) bool {
	return p.Name != "" && p.Model != "" && p.SystemMessage != ""
}

// Load reads every persona file from the store directory. An empty directory
// is seeded with the built-in defaults first. Individual corrupt files are
// logged and skipped, not fatal.
func (s *Store) Load() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		if err := s.seedDefaults(); err != nil {
			return err
		}
		entries, err = os.ReadDir(s.dir)
		if err != nil {
			return err
		}
		names = names[:0]
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
				names = append(names, e.Name())
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range names {
		path := filepath.Join(s.dir, name)
		b, err := os.ReadFile(path)
		if err != nil {
			s.log.Error().Err(err).Str("file", name).Msg("persona read failed")
			continue
		}
		var p types.Persona
		if err := json.Unmarshal(b, &p); err != nil {
			s.log.Error().Err(err).Str("file", name).Msg("persona parse failed")
			continue
		}
		if p.ID == "" {
			s.log.Error().Str("file", name).Msg("persona missing id, skipped")
			continue
		}
		s.personas[p.ID] = p
	}
	s.log.Info().Int("count", len(s.personas)).Msg("personas loaded")
	return nil
}

// Get returns a persona by id.
func (s *Store) Get(id string) (types.Persona, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.personas[id]
	return p, ok
}

// List returns all personas sorted by name.
func (s *Store) List() []types.Persona {
	s.mu.RLock()
	out := make([]types.Persona, 0, len(s.personas))
	for _, p := range s.personas {
		out = append(out, p)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Save validates and persists a persona. Missing required fields block the
// save (returns false) without raising. Empty ids are assigned, empty tags
// default to ["custom"].
func (s *Store) Save(p *types.Persona) bool {
	if !validate(p) {
		s.log.Error().Str("name", p.Name).Msg("persona failed validation")
		return false
	}
	s.normalize(p)
	if !s.writeFile(*p) {
		return false
	}
	s.mu.Lock()
	s.personas[p.ID] = *p
	s.mu.Unlock()
	return true
}

// Delete removes a persona from memory and disk. Returns false when the id
// is unknown, leaving the store unchanged.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	_, ok := s.personas[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.personas, id)
	s.mu.Unlock()

	path := filepath.Join(s.dir, id+".json")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.log.Error().Err(err).Str("id", id).Msg("persona file removal failed")
	}
	return true
}

func (s *Store) normalize(p *types.Persona) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if len(p.Tags) == 0 {
		p.Tags = []string{"custom"}
	}
	if p.Icon == "" {
		p.Icon = "🤖"
	}
	if p.CreatedAt == "" {
		p.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
}

// writeFile persists one persona record; used by Save and by the default
// seeding, which bypasses validation because the built-in defaults leave the
// model empty on purpose ("use the caller's choice").
func (s *Store) writeFile(p types.Persona) bool {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		s.log.Error().Err(err).Str("id", p.ID).Msg("persona encode failed")
		return false
	}
	path := filepath.Join(s.dir, p.ID+".json")
	if err := fsutil.WriteFileAtomic(path, append(data, '\n'), 0o644); err != nil {
		s.log.Error().Err(err).Str("id", p.ID).Msg("persona write failed")
		return false
	}
	return true
}

func (s *Store) seedDefaults() error {
	s.log.Info().Msg("seeding default personas")
	for _, p := range defaultPersonas() {
		s.normalize(&p)
		if !s.writeFile(p) {
			s.log.Error().Str("id", p.ID).Msg("default persona write failed")
		}
	}
	return nil
}
