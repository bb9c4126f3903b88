// Package runindex implements the cross-run metadata ledger: a document
// tracking every run's run_id, input_hash, config_hash, status, run_type,
// and timestamps, plus a "latest successful" pointer. It is the metadata
// ledger only; cleanup and pruning of run directories belong to a separate
// operator tool.
package runindex

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/JoeJDLaw/company-junction-sub001/internal/artifact"
	"github.com/JoeJDLaw/company-junction-sub001/pkg/models"
)

const indexFileName = "run-index.json"

type document struct {
	Runs               []models.RunMetadata `json:"runs"`
	LatestSuccessfulID string               `json:"latest_successful_id"`
}

// Store is a JSON-file-backed run ledger rooted at an artifacts directory.
// A single process's Store serializes concurrent access with a mutex; the
// file itself is committed with the same write-temp-then-rename primitive
// every stage artifact uses.
type Store struct {
	root string
	mu   sync.Mutex
}

// New returns a Store rooted at artifactsRoot (the same directory
// Orchestrator's RunOptions.OutDir names).
func New(artifactsRoot string) *Store {
	return &Store{root: artifactsRoot}
}

func (s *Store) indexPath() string { return filepath.Join(s.root, indexFileName) }

func (s *Store) load() (document, error) {
	payload, err := os.ReadFile(s.indexPath())
	if os.IsNotExist(err) {
		return document{}, nil
	}
	if err != nil {
		return document{}, err
	}
	var doc document
	if err := json.Unmarshal(payload, &doc); err != nil {
		return document{}, err
	}
	return doc, nil
}

func (s *Store) save(doc document) error {
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	_, err = artifact.WriteAtomic(s.root, indexFileName, payload)
	return err
}

// Record upserts meta by RunID and, if meta.Status is completed, updates
// the "latest successful" pointer.
func (s *Store) Record(meta models.RunMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}

	replaced := false
	for i, r := range doc.Runs {
		if r.RunID == meta.RunID {
			doc.Runs[i] = meta
			replaced = true
			break
		}
	}
	if !replaced {
		doc.Runs = append(doc.Runs, meta)
	}

	if meta.Status == models.StatusCompleted {
		doc.LatestSuccessfulID = meta.RunID
	}

	return s.save(doc)
}

// List returns every recorded run, most-recently-created first.
func (s *Store) List() ([]models.RunMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	runs := append([]models.RunMetadata(nil), doc.Runs...)
	sort.Slice(runs, func(i, j int) bool { return runs[i].CreatedAt.After(runs[j].CreatedAt) })
	return runs, nil
}

// Latest implements orchestrator.RunLocator: it returns the run directory
// of the latest successful run, or ok=false if none exists yet.
func (s *Store) Latest() (dir string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil || doc.LatestSuccessfulID == "" {
		return "", false
	}
	return filepath.Join(s.root, doc.LatestSuccessfulID), true
}
