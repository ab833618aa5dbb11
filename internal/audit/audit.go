// Package audit implements C7: the curator's audit-state file mapping
// agent name to last-audited timestamp, plus the curator-bypass plumbing
// already wired into store.UpdateOptions.CuratorBypass.
//
// Grounded on the teacher's internal/daemon/registry.go atomic
// read-modify-write pattern (temp file + fsync + rename) and cmd/bd/
// sync.go's gofrs/flock advisory locking, adapted from daemon-registry
// and sync-state bookkeeping to a single agent_name -> timestamp map.
package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// State is the on-disk shape of audit_state.json: agent_name -> RFC3339
// millisecond timestamp of the last audit.
type State map[string]string

// Store owns one audit_state.json file, serializing concurrent access
// with an advisory file lock the way cmd/bd/sync.go guards its own
// state file.
type Store struct {
	path     string
	lockPath string
}

func New(path string) *Store {
	return &Store{path: path, lockPath: path + ".lock"}
}

// Queue describes one entry in the audit queue: an agent (or the default
// memory store) whose file was modified after its last recorded audit.
type Queue struct {
	Name         string
	FilePath     string
	LastModified time.Time
	LastAudited  *time.Time
}

// Read loads the current state, treating a missing or corrupted file as
// empty rather than failing — mirrored on the teacher's registry.go
// read-entries fallback.
func (s *Store) Read() (State, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return State{}, nil
	}
	if err != nil {
		return nil, err
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, nil
	}
	if state == nil {
		state = State{}
	}
	return state, nil
}

// MarkAudited records now as agentName's last-audit timestamp, writing
// the whole file atomically under the advisory lock.
func (s *Store) MarkAudited(agentName string, now time.Time) error {
	lock := flock.New(s.lockPath)
	if err := lock.Lock(); err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	state, err := s.Read()
	if err != nil {
		return err
	}
	state[agentName] = now.UTC().Format("2006-01-02T15:04:05.000Z")
	return s.writeAtomic(state)
}

func (s *Store) writeAtomic(state State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "audit_state-*.json.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

// BuildQueue scans the given (name, filePath) candidates and returns
// those whose file's mtime is after their recorded last-audit timestamp
// (spec.md §6's get_audit_queue collaborator).
func (s *Store) BuildQueue(candidates map[string]string) ([]Queue, error) {
	state, err := s.Read()
	if err != nil {
		return nil, err
	}

	var out []Queue
	for name, path := range candidates {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		q := Queue{Name: name, FilePath: path, LastModified: info.ModTime()}
		if ts, ok := state[name]; ok {
			if parsed, err := time.Parse("2006-01-02T15:04:05.000Z", ts); err == nil {
				q.LastAudited = &parsed
			}
		}
		if q.LastAudited == nil || q.LastModified.After(*q.LastAudited) {
			out = append(out, q)
		}
	}
	return out, nil
}
