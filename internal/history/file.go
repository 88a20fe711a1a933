package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gosha-bot/internal/logging"
)

// FileStore keeps the whole conversation map in memory and rewrites the
// backing JSON file after every mutation.
type FileStore struct {
	path     string
	mu       sync.Mutex
	sessions map[int64][]Message
}

// OpenFileStore loads the store from path. A missing or empty file is an empty store.
// An undecodable file is moved aside and the store starts empty.
func OpenFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("file store: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure store dir: %w", err)
	}
	s := &FileStore{path: path, sessions: make(map[int64][]Message)}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read store: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	var sessions map[int64][]Message
	if err := json.Unmarshal(data, &sessions); err != nil {
		aside := fmt.Sprintf("%s.corrupt-%d", s.path, time.Now().Unix())
		if rerr := os.Rename(s.path, aside); rerr != nil {
			return fmt.Errorf("decode store: %v; move aside: %w", err, rerr)
		}
		l := logging.L()
		l.Warn().Err(err).Str("moved_to", aside).Msg("conversation store unreadable, starting empty")
		return nil
	}
	if sessions != nil {
		s.sessions = sessions
	}
	return nil
}

func (s *FileStore) Get(_ context.Context, chatID int64) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.sessions[chatID]...), nil
}

// Append keeps msgs in memory even when the flush fails.
func (s *FileStore) Append(_ context.Context, chatID int64, msgs ...Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[chatID] = append(s.sessions[chatID], msgs...)
	return s.flushLocked()
}

func (s *FileStore) Delete(_ context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, chatID)
	return s.flushLocked()
}

// Clear removes the backing file and empties the map.
func (s *FileStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[int64][]Message)
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove store: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) flushLocked() error {
	data, err := json.MarshalIndent(s.sessions, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}
	data = append(data, '\n')
	if err := writeFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("flush store: %w", err)
	}
	return nil
}

func writeFileAtomic(path string, content []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		return fmt.Errorf("chmod temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp: %w", err)
	}
	return nil
}
