package profile

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Store serves the current profile and reloads it from disk on demand
type Store struct {
	path    string
	current *Profile
	mu      sync.RWMutex
}

// NewStore loads the profile at path, or the built-in one when path is empty
func NewStore(path string) (*Store, error) {
	s := &Store{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the backing file, "" for the built-in profile
func (s *Store) Path() string {
	return s.path
}

// Get returns the current profile
func (s *Store) Get() *Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Reload re-reads the backing file. On error the previous profile stays.
func (s *Store) Reload() error {
	var (
		p   *Profile
		err error
	)
	if s.path == "" {
		p = Default()
	} else {
		p, err = Load(s.path)
		if err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.current = p
	s.mu.Unlock()

	log.Debug().Str("path", s.path).Str("name", p.Name).Msg("Profile loaded")

	return nil
}
