package storage

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"themectl/model"
)

// Store persists the theme switch history as JSON files sharded by date.
type Store struct {
	baseDir string
	mu      sync.Mutex
}

// New creates a Store rooted at the given base directory.
func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// EnsureDirs creates the history directory structure.
func (s *Store) EnsureDirs() error {
	return os.MkdirAll(filepath.Join(s.baseDir, "history"), 0o755)
}

// SaveRecord writes one switch record to disk.
func (s *Store) SaveRecord(rec *model.SwitchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec == nil {
		return fmt.Errorf("nil record")
	}
	t := rec.Timestamp.UTC()
	dir := filepath.Join(
		s.baseDir,
		"history",
		fmt.Sprintf("%04d", t.Year()),
		fmt.Sprintf("%02d", t.Month()),
		fmt.Sprintf("%02d", t.Day()),
	)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	// The record ID keeps filenames unique when switches land within the
	// same second.
	filename := fmt.Sprintf("%s.json", t.Format("2006-01-02T15-04-05Z07-00"))
	if rec.ID != "" {
		filename = fmt.Sprintf("%s-%s.json", t.Format("2006-01-02T15-04-05Z07-00"), rec.ID)
	}
	path := filepath.Join(dir, filename)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}

// ListRecords retrieves all switch records within the time range, sorted by
// timestamp ascending.
func (s *Store) ListRecords(from, to time.Time) ([]model.SwitchRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	from = from.UTC()
	to = to.UTC()

	base := filepath.Join(s.baseDir, "history")
	var records []model.SwitchRecord

	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if filepath.Ext(path) != ".json" {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		var r model.SwitchRecord
		if err := json.NewDecoder(f).Decode(&r); err != nil {
			return err
		}
		if r.Timestamp.IsZero() {
			return nil
		}

		t := r.Timestamp.UTC()
		if t.Before(from) || t.After(to) {
			return nil
		}

		records = append(records, r)
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})

	return records, nil
}

// Latest returns the most recent record, or nil when the history is empty.
func (s *Store) Latest() (*model.SwitchRecord, error) {
	records, err := s.ListRecords(time.Time{}, time.Now().Add(time.Hour))
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[len(records)-1], nil
}
