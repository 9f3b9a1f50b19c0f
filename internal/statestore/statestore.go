// Package statestore persists per-session processing state to disk so a
// restart can resume from the last processed byte offset rather than
// reprocessing a session's whole history.
package statestore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/nextlevelbuilder/sessionscope/internal/process"
)

// State is the persisted shape for one session.
type State struct {
	FileOffset int64                  `json:"file_offset"`
	LineNumber int                    `json:"line_number"`
	Context    map[string]interface{} `json:"processing_context"`
	LastModified time.Time            `json:"last_modified"`
}

// Store reads and writes State files under Dir, one JSON file per session.
type Store struct {
	Dir string
}

// New returns a Store rooted at dir. The directory is created lazily on
// first Save, not here.
func New(dir string) *Store {
	return &Store{Dir: dir}
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
var repeatedUnderscores = regexp.MustCompile(`_+`)

// sanitizeFilename maps a session id to a filesystem-safe base name:
// unsafe characters become underscores, runs of underscores collapse, and
// a leading dot (which would create a hidden file) is stripped.
func sanitizeFilename(sessionID string) string {
	s := unsafeChars.ReplaceAllString(sessionID, "_")
	s = repeatedUnderscores.ReplaceAllString(s, "_")
	s = strings.TrimLeft(s, ".")
	if s == "" {
		s = "_"
	}
	return s
}

func (s *Store) path(sessionID string) string {
	return filepath.Join(s.Dir, sanitizeFilename(sessionID)+".json")
}

// Load returns the persisted state for sessionID, or (nil, nil) if the
// file is missing or corrupt — corruption is non-fatal, and the caller is
// expected to resume from a fresh processing context.
func (s *Store) Load(sessionID string) (*State, error) {
	data, err := os.ReadFile(s.path(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, nil
	}
	return &st, nil
}

// Save atomically persists st for sessionID: write to a temp file in the
// same directory, then rename over the target.
func (s *Store) Save(sessionID string, st State) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return err
	}

	data, err := json.Marshal(st)
	if err != nil {
		return err
	}

	target := s.path(sessionID)
	tmp, err := os.CreateTemp(s.Dir, ".tmp-state-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// Delete removes the persisted state for sessionID, if present.
func (s *Store) Delete(sessionID string) error {
	err := os.Remove(s.path(sessionID))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// FromContext builds the State to persist after processing a batch.
func FromContext(ctx process.Context, offset int64, lineNumber int) State {
	return State{
		FileOffset:   offset,
		LineNumber:   lineNumber,
		Context:      ctx.ToDict(),
		LastModified: time.Now(),
	}
}
