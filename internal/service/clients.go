package service

import (
	"errors"
	"fmt"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/taxdesk/taxdesk/internal/domain"
	"github.com/taxdesk/taxdesk/internal/observability"
	"github.com/taxdesk/taxdesk/internal/repository"
	"github.com/taxdesk/taxdesk/internal/security"
)

type CreateClientParams struct {
	Name     string
	Email    string
	SSNLast4 string
	Password string
}

// ClientUpdate carries the mutable client fields; nil means unchanged.
type ClientUpdate struct {
	Name     *string
	Email    *string
	SSNLast4 *string
	IsActive *bool
}

// CreateClient creates a client account under a management session. The
// client gets its own isolated data directory, created here.
func (s *AuthService) CreateClient(sessionToken string, p CreateClientParams) (*domain.ClientAccount, error) {
	identity, err := s.requireManagementSession(sessionToken)
	if err != nil {
		return nil, err
	}

	email, err := normalizeEmail(p.Email)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.Name) == "" {
		return nil, fmt.Errorf("client name is required")
	}
	if err := s.policy.Validate(p.Password); err != nil {
		return nil, err
	}
	if _, err := s.creds.GetClientByEmail(email); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	cred, err := newCredential(p.Password)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	dataDir := filepath.Join(s.cfg.DataDir, "clients", id)
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create client data dir: %w", err)
	}

	client := &domain.ClientAccount{
		ID:            id,
		Name:          strings.TrimSpace(p.Name),
		Email:         email,
		SSNLast4:      p.SSNLast4,
		IsActive:      true,
		CreatedBy:     string(identity.Kind),
		CreatedAt:     time.Now().UTC(),
		DataDirectory: dataDir,
		Credential:    *cred,
	}
	if err := s.creds.SaveClient(client); err != nil {
		return nil, err
	}
	observability.Audit(s.logger, "auth.client.created", true, "client_id", id)
	return client, nil
}

// AuthenticateClient mirrors master authentication keyed by email lookup,
// refusing inactive accounts before any password work.
func (s *AuthService) AuthenticateClient(email, password, totpCode string) (string, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return "", err
	}
	client, err := s.creds.GetClientByEmail(normalized)
	if errors.Is(err, repository.ErrNotFound) {
		return "", ErrClientNotFound
	}
	if err != nil {
		return "", err
	}
	if !client.IsActive {
		observability.Audit(s.logger, "auth.client.login", false, "client_id", client.ID, "reason", "inactive")
		return "", ErrClientInactive
	}

	now := time.Now().UTC()
	changed, err := checkLockout(&client.Credential, now)
	if err != nil {
		observability.Audit(s.logger, "auth.client.login", false, "client_id", client.ID, "reason", "locked")
		return "", err
	}
	if changed {
		if err := s.creds.SaveClient(client); err != nil {
			return "", err
		}
	}

	if !security.VerifyPassword(password, client.Salt, client.PasswordHash) {
		failErr := registerFailure(&client.Credential, now, s.cfg.MaxLoginAttempts, s.cfg.LockoutDuration)
		if err := s.creds.SaveClient(client); err != nil {
			return "", err
		}
		observability.Audit(s.logger, "auth.client.login", false, "client_id", client.ID, "reason", "bad_password")
		return "", failErr
	}

	registerSuccess(&client.Credential, now)

	if client.TwoFactor.Enabled {
		if totpCode == "" {
			return "", ErrTwoFactorRequired
		}
		consumed, err := verifyTwoFactorCode(&client.TwoFactor, totpCode)
		if err != nil {
			observability.Audit(s.logger, "auth.client.login", false, "client_id", client.ID, "reason", "invalid_2fa")
			return "", err
		}
		if consumed {
			observability.Audit(s.logger, "auth.client.backup_code_used", true, "client_id", client.ID)
		}
	}

	if err := s.creds.SaveClient(client); err != nil {
		return "", err
	}
	observability.Audit(s.logger, "auth.client.login", true, "client_id", client.ID)
	return s.CreateSession(domain.ClientIdentity(client.ID))
}

// ListClients returns every client account under a management session.
func (s *AuthService) ListClients(sessionToken string) ([]*domain.ClientAccount, error) {
	if _, err := s.requireManagementSession(sessionToken); err != nil {
		return nil, err
	}
	return s.creds.ListClients()
}

// ListClientsUnchecked skips the session check. Only for local diagnostic
// tooling running as the operator.
func (s *AuthService) ListClientsUnchecked() ([]*domain.ClientAccount, error) {
	return s.creds.ListClients()
}

func (s *AuthService) GetClient(sessionToken, clientID string) (*domain.ClientAccount, error) {
	if _, err := s.requireManagementSession(sessionToken); err != nil {
		return nil, err
	}
	return s.clientByID(clientID)
}

// UpdateClient applies the non-nil fields. An email change re-checks
// uniqueness against the other accounts.
func (s *AuthService) UpdateClient(sessionToken, clientID string, upd ClientUpdate) error {
	if _, err := s.requireManagementSession(sessionToken); err != nil {
		return err
	}
	client, err := s.clientByID(clientID)
	if err != nil {
		return err
	}
	if upd.Email != nil {
		email, err := normalizeEmail(*upd.Email)
		if err != nil {
			return err
		}
		if email != client.Email {
			if other, err := s.creds.GetClientByEmail(email); err == nil && other.ID != client.ID {
				return ErrEmailExists
			} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return err
			}
			client.Email = email
		}
	}
	if upd.Name != nil {
		client.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.SSNLast4 != nil {
		client.SSNLast4 = *upd.SSNLast4
	}
	if upd.IsActive != nil {
		client.IsActive = *upd.IsActive
	}
	if err := s.creds.SaveClient(client); err != nil {
		return err
	}
	observability.Audit(s.logger, "auth.client.updated", true, "client_id", clientID)
	return nil
}

// DeactivateClient is the soft delete: the record stays, authentication is
// refused.
func (s *AuthService) DeactivateClient(sessionToken, clientID string) error {
	inactive := false
	return s.UpdateClient(sessionToken, clientID, ClientUpdate{IsActive: &inactive})
}

// RemoveClient hard-deletes the credential record. The client's data
// directory is left on disk for the caller to archive or remove.
func (s *AuthService) RemoveClient(sessionToken, clientID string) error {
	if _, err := s.requireManagementSession(sessionToken); err != nil {
		return err
	}
	if err := s.creds.DeleteClient(clientID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrClientNotFound
		}
		return err
	}
	observability.Audit(s.logger, "auth.client.removed", true, "client_id", clientID)
	return nil
}

// ResetClientPassword sets a new password under a management session, with a
// fresh salt and lockout state cleared.
func (s *AuthService) ResetClientPassword(sessionToken, clientID, newPassword string) error {
	if _, err := s.requireManagementSession(sessionToken); err != nil {
		return err
	}
	if err := s.policy.Validate(newPassword); err != nil {
		return err
	}
	client, err := s.clientByID(clientID)
	if err != nil {
		return err
	}
	if err := rehashCredential(&client.Credential, newPassword); err != nil {
		return err
	}
	if err := s.creds.SaveClient(client); err != nil {
		return err
	}
	observability.Audit(s.logger, "auth.client.password_reset", true, "client_id", clientID)
	return nil
}

func (s *AuthService) clientByID(id string) (*domain.ClientAccount, error) {
	client, err := s.creds.GetClient(id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrClientNotFound
	}
	if err != nil {
		return nil, err
	}
	return client, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return "", fmt.Errorf("email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", fmt.Errorf("invalid email")
	}
	return email, nil
}
