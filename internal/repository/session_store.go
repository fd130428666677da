package repository

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/taxdesk/taxdesk/internal/domain"
)

// SessionStore persists active sessions keyed by opaque token.
type SessionStore interface {
	Create(s *domain.Session) error
	Get(token string) (*domain.Session, error)
	Update(s *domain.Session) error
	Delete(token string) error
	// DeleteInactiveSince removes every session whose last activity is before
	// cutoff and returns how many were removed.
	DeleteInactiveSince(cutoff time.Time) (int, error)
	List() ([]*domain.Session, error)
}

// FileSessionStore keeps sessions in a single JSON file mapping token to
// session record, owner-only permissions.
type FileSessionStore struct {
	mu   sync.Mutex
	path string
}

func NewFileSessionStore(path string) *FileSessionStore {
	return &FileSessionStore{path: path}
}

func (s *FileSessionStore) Create(sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.load()
	if err != nil {
		return err
	}
	state[sess.Token] = cloneSession(sess)
	return s.save(state)
}

func (s *FileSessionStore) Get(token string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.load()
	if err != nil {
		return nil, err
	}
	sess, ok := state[token]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSession(sess), nil
}

func (s *FileSessionStore) Update(sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := state[sess.Token]; !ok {
		return ErrNotFound
	}
	state[sess.Token] = cloneSession(sess)
	return s.save(state)
}

func (s *FileSessionStore) Delete(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := state[token]; !ok {
		return nil
	}
	delete(state, token)
	return s.save(state)
}

func (s *FileSessionStore) DeleteInactiveSince(cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.load()
	if err != nil {
		return 0, err
	}
	removed := 0
	for token, sess := range state {
		if sess.LastActivity.Before(cutoff) {
			delete(state, token)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, s.save(state)
}

func (s *FileSessionStore) List() ([]*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Session, 0, len(state))
	for _, sess := range state {
		out = append(out, cloneSession(sess))
	}
	return out, nil
}

func (s *FileSessionStore) load() (map[string]*domain.Session, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]*domain.Session{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read sessions file: %w", err)
	}
	state := map[string]*domain.Session{}
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse sessions file: %w", err)
	}
	// The token is the map key on disk, not a record field.
	for token, sess := range state {
		sess.Token = token
	}
	return state, nil
}

func (s *FileSessionStore) save(state map[string]*domain.Session) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode sessions file: %w", err)
	}
	return writeFileAtomic(s.path, data)
}

func cloneSession(s *domain.Session) *domain.Session {
	cp := *s
	if s.Identity.Professional != nil {
		p := *s.Identity.Professional
		cp.Identity.Professional = &p
	}
	return &cp
}
