// Package history persists answered queries to per-day JSON files so
// operators can audit what was asked and answered.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "github.com/newsense/telemetry-ai/internal/errors"
)

// Entry is one answered query.
type Entry struct {
	Timestamp time.Time       `json:"timestamp"`
	Query     string          `json:"query"`
	Response  json.RawMessage `json:"response"`
}

// Store appends entries to history_YYYY-MM-DD.json files under a directory.
// Writes are serialized; the per-day file is read, appended and rewritten.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore creates a history store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) fileFor(day time.Time) string {
	return filepath.Join(s.dir, fmt.Sprintf("history_%s.json", day.Format("2006-01-02")))
}

// Append records one entry in the file for the entry's own day.
func (s *Store) Append(entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return apperrors.NewHistoryWriteError(err)
	}

	path := s.fileFor(entry.Timestamp)
	entries, err := readFile(path)
	if err != nil {
		return apperrors.NewHistoryWriteError(err)
	}

	entries = append(entries, entry)

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return apperrors.NewHistoryWriteError(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return apperrors.NewHistoryWriteError(err)
	}
	return nil
}

func readFile(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, err
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// LoadAll merges every day file, newest entry first. Unreadable files are
// skipped so one corrupt day does not hide the rest.
func (s *Store) LoadAll() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matches, err := filepath.Glob(filepath.Join(s.dir, "history_*.json"))
	if err != nil {
		return nil, err
	}

	all := []Entry{}
	for _, path := range matches {
		entries, err := readFile(path)
		if err != nil {
			continue
		}
		all = append(all, entries...)
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Timestamp.After(all[j].Timestamp) })
	return all, nil
}

// Search returns entries whose query text contains q, case-insensitive,
// newest first. An empty q returns everything.
func (s *Store) Search(q string) ([]Entry, error) {
	all, err := s.LoadAll()
	if err != nil {
		return nil, err
	}
	if q == "" {
		return all, nil
	}

	needle := strings.ToLower(q)
	matched := []Entry{}
	for _, e := range all {
		if strings.Contains(strings.ToLower(e.Query), needle) {
			matched = append(matched, e)
		}
	}
	return matched, nil
}
