package repository

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/taxdesk/taxdesk/internal/domain"
)

// CredentialStore persists the master credential and the client-account
// namespace. Implementations own their locking; callers do plain
// read-modify-write sequences.
type CredentialStore interface {
	GetMaster() (*domain.Credential, error)
	SaveMaster(c *domain.Credential) error
	GetClient(id string) (*domain.ClientAccount, error)
	GetClientByEmail(email string) (*domain.ClientAccount, error)
	ListClients() ([]*domain.ClientAccount, error)
	SaveClient(c *domain.ClientAccount) error
	DeleteClient(id string) error
}

type authFile struct {
	Master  *domain.Credential               `json:"master,omitempty"`
	Clients map[string]*domain.ClientAccount `json:"clients"`
}

// FileCredentialStore keeps all credentials in a single JSON file with
// owner-only permissions. A missing file is an empty store; a present but
// malformed file is a load error, never treated as empty.
type FileCredentialStore struct {
	mu   sync.Mutex
	path string
}

func NewFileCredentialStore(path string) *FileCredentialStore {
	return &FileCredentialStore{path: path}
}

func (s *FileCredentialStore) GetMaster() (*domain.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.load()
	if err != nil {
		return nil, err
	}
	if state.Master == nil {
		return nil, ErrNotFound
	}
	return cloneCredential(state.Master), nil
}

func (s *FileCredentialStore) SaveMaster(c *domain.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.load()
	if err != nil {
		return err
	}
	state.Master = cloneCredential(c)
	return s.save(state)
}

func (s *FileCredentialStore) GetClient(id string) (*domain.ClientAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.load()
	if err != nil {
		return nil, err
	}
	client, ok := state.Clients[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneClient(client), nil
}

func (s *FileCredentialStore) GetClientByEmail(email string) (*domain.ClientAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, client := range state.Clients {
		if client.Email == email {
			return cloneClient(client), nil
		}
	}
	return nil, ErrNotFound
}

func (s *FileCredentialStore) ListClients() ([]*domain.ClientAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]*domain.ClientAccount, 0, len(state.Clients))
	for _, client := range state.Clients {
		out = append(out, cloneClient(client))
	}
	return out, nil
}

func (s *FileCredentialStore) SaveClient(c *domain.ClientAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.load()
	if err != nil {
		return err
	}
	state.Clients[c.ID] = cloneClient(c)
	return s.save(state)
}

func (s *FileCredentialStore) DeleteClient(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := state.Clients[id]; !ok {
		return ErrNotFound
	}
	delete(state.Clients, id)
	return s.save(state)
}

func (s *FileCredentialStore) load() (*authFile, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return &authFile{Clients: map[string]*domain.ClientAccount{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read auth file: %w", err)
	}
	var state authFile
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse auth file: %w", err)
	}
	if state.Clients == nil {
		state.Clients = map[string]*domain.ClientAccount{}
	}
	return &state, nil
}

func (s *FileCredentialStore) save(state *authFile) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode auth file: %w", err)
	}
	return writeFileAtomic(s.path, data)
}

func cloneCredential(c *domain.Credential) *domain.Credential {
	cp := *c
	if c.LockedUntil != nil {
		t := *c.LockedUntil
		cp.LockedUntil = &t
	}
	if c.LastLogin != nil {
		t := *c.LastLogin
		cp.LastLogin = &t
	}
	cp.TwoFactor.BackupCodes = append([]string(nil), c.TwoFactor.BackupCodes...)
	return &cp
}

func cloneClient(c *domain.ClientAccount) *domain.ClientAccount {
	cp := *c
	cp.Credential = *cloneCredential(&c.Credential)
	return &cp
}
