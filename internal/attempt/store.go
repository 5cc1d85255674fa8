package attempt

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Store is the durable local state an attempt survives reloads with: the
// first-start timestamp and the answer map for one (exam, student) pair.
type Store interface {
	ReadStart(examID, studentID int64) (unix int64, ok bool, err error)
	WriteStart(examID, studentID, unix int64) error
	ReadAnswers(examID, studentID int64) (map[int64]string, error)
	WriteAnswers(examID, studentID int64, answers map[int64]string) error
	// Purge removes both keys after a successful submit.
	Purge(examID, studentID int64) error
}

// FSStore keeps attempt state as small files under a base directory, one
// file per key. Two processes sharing a directory for the same attempt race
// on these files; that is a known limitation, same as two browser tabs.
type FSStore struct{ base string }

func NewFSStore(base string) (*FSStore, error) {
	if base == "" {
		base = "./.examhall"
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, err
	}
	return &FSStore{base: base}, nil
}

func (s *FSStore) startPath(examID, studentID int64) string {
	return filepath.Join(s.base, fmt.Sprintf("exam_%d_start_%d", examID, studentID))
}

func (s *FSStore) answersPath(examID, studentID int64) string {
	return filepath.Join(s.base, fmt.Sprintf("exam_%d_answers_%d", examID, studentID))
}

func (s *FSStore) ReadStart(examID, studentID int64) (int64, bool, error) {
	b, err := os.ReadFile(s.startPath(examID, studentID))
	if errors.Is(err, os.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	unix, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, false, err
	}
	return unix, true, nil
}

func (s *FSStore) WriteStart(examID, studentID, unix int64) error {
	return os.WriteFile(s.startPath(examID, studentID), []byte(strconv.FormatInt(unix, 10)), 0o644)
}

func (s *FSStore) ReadAnswers(examID, studentID int64) (map[int64]string, error) {
	b, err := os.ReadFile(s.answersPath(examID, studentID))
	if errors.Is(err, os.ErrNotExist) {
		return map[int64]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	var raw map[string]string
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	out := make(map[int64]string, len(raw))
	for k, v := range raw {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			continue
		}
		out[id] = v
	}
	return out, nil
}

func (s *FSStore) WriteAnswers(examID, studentID int64, answers map[int64]string) error {
	raw := make(map[string]string, len(answers))
	for k, v := range answers {
		raw[strconv.FormatInt(k, 10)] = v
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(s.answersPath(examID, studentID), b, 0o644)
}

func (s *FSStore) Purge(examID, studentID int64) error {
	if err := os.Remove(s.answersPath(examID, studentID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := os.Remove(s.startPath(examID, studentID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
