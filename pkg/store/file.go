package store

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/algorand/go-deadlock"
	"github.com/gofrs/flock"
)

// A StateStore persisted to a line oriented state file:
//
//	# comment
//	Key value
//	Key another value
//
// Writes go to a temporary file that is renamed over the state file while
// holding an advisory lock next to it, so two processes never interleave.
type FileStore struct {
	mu     deadlock.RWMutex
	path   string
	lock   *flock.Flock
	keys   []string
	values map[string][]string
	dirty  bool
	failed bool
}

// OpenFileStore reads path if it exists. A missing file is an empty store.
func OpenFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path:   path,
		lock:   flock.New(path + ".lock"),
		values: make(map[string][]string),
	}

	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) load() error {
	if err := s.lock.Lock(); err != nil {
		return NewStoreError(err, "failed to lock state file %s", s.path)
	}
	defer s.lock.Unlock()

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return NewStoreError(err, "failed to read state file %s", s.path)
	}

	scanner := bufio.NewScanner(bytes.NewReader(raw))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, _ := strings.Cut(line, " ")
		if key == "" {
			return NewStoreError(nil, "state file %s line %d has no key", s.path, lineNo)
		}
		if _, ok := s.values[key]; !ok {
			s.keys = append(s.keys, key)
		}
		s.values[key] = append(s.values[key], strings.TrimSpace(value))
	}
	if err := scanner.Err(); err != nil {
		return NewStoreError(err, "failed to scan state file %s", s.path)
	}

	return nil
}

func (s *FileStore) Values(key string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneValues(s.values[key])
}

func (s *FileStore) SetValues(key string, values ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys, s.values = setValues(s.keys, s.values, key, values)
}

func (s *FileStore) MarkDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = true
}

func (s *FileStore) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

func (s *FileStore) LastWriteFailed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failed
}

// Save writes the state file when the store is dirty
func (s *FileStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return nil
	}

	if err := s.write(); err != nil {
		s.failed = true
		return err
	}

	s.failed = false
	s.dirty = false
	return nil
}

func (s *FileStore) write() error {
	if err := s.lock.Lock(); err != nil {
		return NewStoreError(err, "failed to lock state file %s", s.path)
	}
	defer s.lock.Unlock()

	var buf bytes.Buffer
	buf.WriteString("# Circuit build time state. Written automatically; edits may be lost.\n")
	for _, key := range s.keys {
		for _, v := range s.values[key] {
			fmt.Fprintf(&buf, "%s %s\n", key, v)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp*")
	if err != nil {
		return NewStoreError(err, "failed to create temporary state file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return NewStoreError(err, "failed to write state file %s", s.path)
	}
	if err := tmp.Close(); err != nil {
		return NewStoreError(err, "failed to close state file %s", s.path)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return NewStoreError(err, "failed to replace state file %s", s.path)
	}

	return nil
}
