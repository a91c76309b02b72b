package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/peakform/peakform/internal/models"
)

// Catalog is the destination for seeded programs. *storage.DB satisfies it
// directly; the remote mode substitutes an HTTP-backed implementation.
type Catalog interface {
	UpsertProgram(ctx context.Context, id, name string, definition json.RawMessage) error
}

// Stats tracks seeding progress.
type Stats struct {
	FilesTotal   int
	FilesSeeded  int
	FilesSkipped int
	FilesErrored int
}

// programFile is the on-disk shape of a catalog entry. The definition is
// kept raw so map-form workout data retains its key order.
type programFile struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Definition json.RawMessage `json:"definition"`
}

// Seeder walks a directory of program definition files (.json, .yaml, .yml)
// and upserts each into the catalog, skipping files already seeded with the
// same content.
type Seeder struct {
	catalog Catalog
	state   *StateDB
	dir     string
	dryRun  bool
	log     *slog.Logger
	stats   Stats
}

// New creates a new Seeder.
func New(catalog Catalog, state *StateDB, dir string, dryRun bool, log *slog.Logger) *Seeder {
	return &Seeder{
		catalog: catalog,
		state:   state,
		dir:     dir,
		dryRun:  dryRun,
		log:     log,
	}
}

// Run executes the seeding pipeline.
func (s *Seeder) Run(ctx context.Context) (*Stats, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return &s.stats, fmt.Errorf("reading %s: %w", s.dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".json" && ext != ".yaml" && ext != ".yml" {
			continue
		}

		s.stats.FilesTotal++
		path := filepath.Join(s.dir, entry.Name())
		if err := s.seedFile(ctx, path, entry.Name(), ext); err != nil {
			s.log.Warn("seed failed", "file", entry.Name(), "error", err)
			s.stats.FilesErrored++
		}
	}

	return &s.stats, nil
}

func (s *Seeder) seedFile(ctx context.Context, path, name, ext string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}
	hash, err := HashFile(path)
	if err != nil {
		return fmt.Errorf("hash: %w", err)
	}

	seeded, err := s.state.IsSeeded(name, info.Size(), hash)
	if err != nil {
		return fmt.Errorf("state check: %w", err)
	}
	if seeded {
		s.stats.FilesSkipped++
		if rec, err := s.state.Record(name); err == nil && rec != nil {
			s.log.Debug("skipping unchanged file", "file", name, "program", rec.ProgramID)
		}
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}

	pf, err := parseProgramFile(data, ext)
	if err != nil {
		return err
	}
	if pf.ID == "" {
		pf.ID = strings.TrimSuffix(name, filepath.Ext(name))
	}
	if pf.Name == "" {
		pf.Name = pf.ID
	}

	// Reject files whose definition does not decode; a bad catalog entry
	// would otherwise surface as a runtime error on every schedule lookup.
	var def models.ProgramDefinition
	if err := json.Unmarshal(pf.Definition, &def); err != nil {
		return fmt.Errorf("invalid definition: %w", err)
	}

	if s.dryRun {
		s.log.Info("dry-run: would seed", "id", pf.ID, "name", pf.Name, "phases", len(def.Phases))
		s.stats.FilesSeeded++
		return nil
	}

	if err := s.catalog.UpsertProgram(ctx, pf.ID, pf.Name, pf.Definition); err != nil {
		return err
	}
	if err := s.state.MarkSeeded(name, info.Size(), hash, pf.ID, len(def.Phases)); err != nil {
		s.log.Warn("failed to mark seeded", "file", name, "error", err)
	}

	s.stats.FilesSeeded++
	s.log.Info("seeded program", "id", pf.ID, "phases", len(def.Phases))
	return nil
}

// parseProgramFile decodes a catalog file. YAML files are converted to JSON
// first so both formats flow through the same raw-definition path.
func parseProgramFile(data []byte, ext string) (*programFile, error) {
	if ext == ".yaml" || ext == ".yml" {
		converted, err := yamlToJSON(data)
		if err != nil {
			return nil, err
		}
		data = converted
	}

	var pf programFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parsing program file: %w", err)
	}
	if len(pf.Definition) == 0 {
		return nil, fmt.Errorf("program file has no definition")
	}
	return &pf, nil
}
