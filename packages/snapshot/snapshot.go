// Package snapshot stores the values that snapshot expectations compare
// against.
//
// Every suite file owns one snapshot file under a __snapshots__ directory
// next to it. Entries are keyed by the spec's prefixed description and an
// optional snapshot name.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
)

const (
	// SnapshotDir is the directory name for storing snapshots
	SnapshotDir = "__snapshots__"
	// SnapshotExt is the file extension for snapshot files
	SnapshotExt = ".snap.json"
)

// Store holds the snapshots of one suite file.
type Store struct {
	path   string
	update bool

	mu     sync.Mutex
	loaded bool
	values map[string]any
}

// NewStore opens the snapshots at path. In update mode missing and
// mismatched snapshots are written instead of failing.
func NewStore(path string, update bool) *Store {
	return &Store{path: path, update: update}
}

// PathFor returns the snapshot file of a suite file.
func PathFor(suiteFile string) string {
	dir := filepath.Dir(suiteFile)
	base := filepath.Base(suiteFile)
	for _, ext := range []string{".suite.yaml", ".suite.yml", filepath.Ext(base)} {
		if strings.HasSuffix(base, ext) {
			base = strings.TrimSuffix(base, ext)
			break
		}
	}
	return filepath.Join(dir, SnapshotDir, base+SnapshotExt)
}

// Path returns the snapshot file location.
func (s *Store) Path() string { return s.path }

// Result represents the result of a snapshot comparison.
type Result struct {
	Passed     bool
	Message    string
	Expected   any
	IsNew      bool
	WasUpdated bool
}

// Key builds the entry key of a named snapshot of a spec.
func Key(spec, name string) string {
	if name == "" {
		return spec
	}
	return spec + "::" + name
}

// Compare checks actual against the snapshot stored under key.
func (s *Store) Compare(key string, actual any) *Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return &Result{Message: fmt.Sprintf("failed to load snapshots: %v", err)}
	}

	expected, exists := s.values[key]
	switch {
	case !exists && !s.update:
		return &Result{Message: "snapshot does not exist (run with --update-snapshots to create)"}
	case !exists:
		if err := s.put(key, actual); err != nil {
			return &Result{Message: fmt.Sprintf("failed to save snapshot: %v", err)}
		}
		return &Result{Passed: true, IsNew: true, Expected: actual, Message: "new snapshot created"}
	case equal(expected, actual):
		return &Result{Passed: true, Expected: expected}
	case s.update:
		if err := s.put(key, actual); err != nil {
			return &Result{Expected: expected, Message: fmt.Sprintf("failed to update snapshot: %v", err)}
		}
		return &Result{Passed: true, WasUpdated: true, Expected: actual, Message: "snapshot updated"}
	default:
		return &Result{Expected: expected, Message: "snapshot mismatch"}
	}
}

// Scope binds a store to one spec.
func (s *Store) Scope(spec string) *Scope {
	return &Scope{store: s, spec: spec}
}

// Scope compares the snapshots of one spec.
type Scope struct {
	store *Store
	spec  string
}

// Compare checks actual against the spec's snapshot called name.
func (sc *Scope) Compare(name string, actual any) (bool, string, any) {
	r := sc.store.Compare(Key(sc.spec, name), actual)
	return r.Passed, r.Message, r.Expected
}

func (s *Store) load() error {
	if s.loaded {
		return nil
	}
	s.values = make(map[string]any)
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.loaded = true
		return nil
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, &s.values); err != nil {
		return fmt.Errorf("%s: %w", s.path, err)
	}
	if s.values == nil {
		s.values = make(map[string]any)
	}
	s.loaded = true
	return nil
}

func (s *Store) put(key string, value any) error {
	s.values[key] = value
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0644)
}

// equal compares values by their JSON form so that numbers read back from
// disk match the ints they were written from.
func equal(a, b any) bool {
	return reflect.DeepEqual(normalize(a), normalize(b))
}

func normalize(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}
