package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/neexlegal/neex-review/internal/review"
)

// ErrSnapshotNotFound is returned when no persisted snapshot exists for a
// session handle.
var ErrSnapshotNotFound = errors.New("session: snapshot not found")

// Record is the persisted form of one session: the full analysis context
// plus the orchestration state needed to resume after a process restart.
type Record struct {
	SessionID string       `json:"session_id"`
	State     review.State `json:"state"`

	// Position is the index of the next unprocessed clause.
	Position int `json:"position"`

	// Counters since the last checkpoint.
	ClausesSince int `json:"clauses_since"`
	TokensSince  int `json:"tokens_since"`

	Context *review.Context `json:"context"`
	SavedAt time.Time       `json:"saved_at"`
}

// Store persists session snapshots as one JSON file per session under the
// project's .neex/sessions directory.
type Store struct {
	dir string
}

// NewStore creates a store rooted at the given directory.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Path returns the snapshot file for a session handle.
func (s *Store) Path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Save writes a session snapshot to disk with best-effort atomicity.
func (s *Store) Save(rec Record) error {
	if rec.SessionID == "" {
		return fmt.Errorf("session: record has no session id")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	encoded, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.Path(rec.SessionID), append(encoded, '\n'), 0o644)
}

// Load reads the persisted snapshot for a session if present.
func (s *Store) Load(id string) (Record, error) {
	data, err := os.ReadFile(s.Path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Record{}, ErrSnapshotNotFound
		}
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}
