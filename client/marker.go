package client

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// MarkerStore keeps the local session marker between runs
type MarkerStore interface {
	Load() (token string, ok bool, err error)
	Save(token string) error
	Clear() error
}

// MemoryMarker is a process local MarkerStore
type MemoryMarker struct {
	mu    sync.Mutex
	token string
}

func (m *MemoryMarker) Load() (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, m.token != "", nil
}

func (m *MemoryMarker) Save(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *MemoryMarker) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	return nil
}

// FileMarker stores the marker in a file only the owner can read
type FileMarker struct {
	Path string
}

func (f FileMarker) Load() (string, bool, error) {
	raw, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, err
	}

	token := strings.TrimSpace(string(raw))
	return token, token != "", nil
}

func (f FileMarker) Save(token string) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(f.Path, []byte(token), 0o600)
}

func (f FileMarker) Clear() error {
	err := os.Remove(f.Path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
