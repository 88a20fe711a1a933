package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileRepository keeps runtime-added admins in a JSON array file.
type FileRepository struct {
	path string
	mu   sync.Mutex
}

func NewFileRepository(path string) (*FileRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure dir: %w", err)
	}
	// Touch file if not exists
	f, err := os.OpenFile(path, os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("touch file: %w", err)
	}
	_ = f.Close()
	return &FileRepository{path: path}, nil
}

func (r *FileRepository) LoadAll() ([]Admin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadUnlocked()
}

func (r *FileRepository) Upsert(admin Admin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	admins, _ := r.loadUnlocked()
	updated := false
	for i, a := range admins {
		if a.Username == admin.Username {
			admins[i] = admin
			updated = true
			break
		}
	}
	if !updated {
		admins = append(admins, admin)
	}
	return r.saveUnlocked(admins)
}

func (r *FileRepository) Remove(username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	admins, _ := r.loadUnlocked()
	out := make([]Admin, 0, len(admins))
	for _, a := range admins {
		if a.Username != username {
			out = append(out, a)
		}
	}
	return r.saveUnlocked(out)
}

// loadUnlocked treats an empty or malformed file as no admins.
func (r *FileRepository) loadUnlocked() ([]Admin, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	var admins []Admin
	if err := json.Unmarshal(data, &admins); err != nil {
		return []Admin{}, nil
	}
	return admins, nil
}

func (r *FileRepository) saveUnlocked(admins []Admin) error {
	f, err := os.OpenFile(r.path, os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(admins)
}
