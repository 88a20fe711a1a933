package auth

import (
	"sort"
	"strings"
	"sync"
)

// Admin is a username allowed to run destructive commands.
type Admin struct {
	Username string `json:"username"`
	AddedBy  string `json:"added_by,omitempty"`
}

type Repository interface {
	LoadAll() ([]Admin, error)
	Upsert(admin Admin) error
	Remove(username string) error
}

// Service is the admin allow-list. Usernames compare case-insensitively, "@" optional.
type Service struct {
	mu     sync.RWMutex
	repo   Repository
	admins map[string]Admin
}

func New(usernames []string) *Service {
	s, _ := NewWithRepo(nil, usernames)
	return s
}

func NewWithRepo(repo Repository, initial []string) (*Service, error) {
	s := &Service{repo: repo, admins: make(map[string]Admin)}
	if repo != nil {
		admins, err := repo.LoadAll()
		if err == nil {
			for _, a := range admins {
				if key := Normalize(a.Username); key != "" {
					a.Username = key
					s.admins[key] = a
				}
			}
		}
	}
	// merge the env list
	for _, u := range initial {
		if key := Normalize(u); key != "" {
			s.admins[key] = Admin{Username: key}
		}
	}
	return s, nil
}

func (s *Service) IsAdmin(username string) bool {
	key := Normalize(username)
	if key == "" {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.admins[key]
	return ok
}

func (s *Service) Upsert(admin Admin) error {
	admin.Username = Normalize(admin.Username)
	if admin.Username == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admins[admin.Username] = admin
	if s.repo != nil {
		return s.repo.Upsert(admin)
	}
	return nil
}

func (s *Service) Remove(username string) error {
	key := Normalize(username)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.admins, key)
	if s.repo != nil {
		return s.repo.Remove(key)
	}
	return nil
}

func (s *Service) List() []Admin {
	s.mu.RLock()
	out := make([]Admin, 0, len(s.admins))
	for _, a := range s.admins {
		out = append(out, a)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

// Normalize lowercases a username and strips a leading "@".
func Normalize(username string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(username), "@"))
}
