package service

import (
	"errors"
	"log/slog"
	"time"

	"github.com/taxdesk/taxdesk/internal/config"
	"github.com/taxdesk/taxdesk/internal/domain"
	"github.com/taxdesk/taxdesk/internal/observability"
	"github.com/taxdesk/taxdesk/internal/repository"
	"github.com/taxdesk/taxdesk/internal/security"
)

// AuthService is the authentication facade the GUI and CLI call in-process.
// It composes the password policy, lockout guard, credential and session
// stores, 2FA, and the professional registry.
type AuthService struct {
	cfg      *config.Config
	creds    repository.CredentialStore
	sessions repository.SessionStore
	registry ProfessionalRegistry
	policy   PasswordPolicy
	logger   *slog.Logger
}

func NewAuthService(
	cfg *config.Config,
	creds repository.CredentialStore,
	sessions repository.SessionStore,
	registry ProfessionalRegistry,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		cfg:      cfg,
		creds:    creds,
		sessions: sessions,
		registry: registry,
		policy: PasswordPolicy{
			MinLength:        cfg.PasswordMinLength,
			RequireUppercase: cfg.PasswordRequireUppercase,
			RequireLowercase: cfg.PasswordRequireLowercase,
			RequireDigit:     cfg.PasswordRequireDigit,
			RequireSymbol:    cfg.PasswordRequireSymbol,
		},
		logger: logger,
	}
}

// IsMasterPasswordSet reports whether first-run setup has happened.
func (s *AuthService) IsMasterPasswordSet() (bool, error) {
	_, err := s.creds.GetMaster()
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateMasterPassword performs the one-time master setup. It fails if a
// master record already exists or the password fails policy.
func (s *AuthService) CreateMasterPassword(password string) error {
	set, err := s.IsMasterPasswordSet()
	if err != nil {
		return err
	}
	if set {
		return ErrMasterPasswordExists
	}
	if err := s.policy.Validate(password); err != nil {
		return err
	}
	cred, err := newCredential(password)
	if err != nil {
		return err
	}
	if err := s.creds.SaveMaster(cred); err != nil {
		return err
	}
	observability.Audit(s.logger, "auth.master.created", true)
	return nil
}

// AuthenticateMasterPassword verifies the master password through the
// lockout guard and returns a new session token.
func (s *AuthService) AuthenticateMasterPassword(password string) (string, error) {
	if _, err := s.verifyMasterPassword(password); err != nil {
		return "", err
	}
	return s.CreateSession(domain.MasterIdentity())
}

// AuthenticateWith2FA verifies the master password and, when 2FA is enabled,
// additionally requires a TOTP or backup code. A missing code is a distinct
// error from an invalid one.
func (s *AuthService) AuthenticateWith2FA(password, totpCode string) (string, error) {
	cred, err := s.verifyMasterPassword(password)
	if err != nil {
		return "", err
	}
	if cred.TwoFactor.Enabled {
		if totpCode == "" {
			return "", ErrTwoFactorRequired
		}
		consumed, err := verifyTwoFactorCode(&cred.TwoFactor, totpCode)
		if err != nil {
			observability.Audit(s.logger, "auth.master.2fa", false, "reason", "invalid_code")
			return "", err
		}
		if consumed {
			if err := s.creds.SaveMaster(cred); err != nil {
				return "", err
			}
			observability.Audit(s.logger, "auth.master.backup_code_used", true)
		}
	}
	return s.CreateSession(domain.MasterIdentity())
}

// ChangeMasterPassword re-authenticates with the current password (a wrong
// current password counts against lockout), validates the new one, and
// stores a fresh salt and hash with lockout state reset.
func (s *AuthService) ChangeMasterPassword(current, newPassword string) error {
	cred, err := s.verifyMasterPassword(current)
	if err != nil {
		return err
	}
	if err := s.policy.Validate(newPassword); err != nil {
		return err
	}
	if err := rehashCredential(cred, newPassword); err != nil {
		return err
	}
	if err := s.creds.SaveMaster(cred); err != nil {
		return err
	}
	observability.Audit(s.logger, "auth.master.password_changed", true)
	return nil
}

// verifyMasterPassword runs the full lockout-guarded verification and
// persists every counter mutation. The returned credential reflects the
// post-verification state.
func (s *AuthService) verifyMasterPassword(password string) (*domain.Credential, error) {
	cred, err := s.creds.GetMaster()
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrMasterPasswordNotSet
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	changed, err := checkLockout(cred, now)
	if err != nil {
		observability.Audit(s.logger, "auth.master.login", false, "reason", "locked")
		return nil, err
	}
	if changed {
		if err := s.creds.SaveMaster(cred); err != nil {
			return nil, err
		}
	}

	if !security.VerifyPassword(password, cred.Salt, cred.PasswordHash) {
		failErr := registerFailure(cred, now, s.cfg.MaxLoginAttempts, s.cfg.LockoutDuration)
		if err := s.creds.SaveMaster(cred); err != nil {
			return nil, err
		}
		observability.Audit(s.logger, "auth.master.login", false, "reason", "bad_password")
		return nil, failErr
	}

	registerSuccess(cred, now)
	if err := s.creds.SaveMaster(cred); err != nil {
		return nil, err
	}
	observability.Audit(s.logger, "auth.master.login", true)
	return cred, nil
}

func newCredential(password string) (*domain.Credential, error) {
	salt, err := security.NewSalt()
	if err != nil {
		return nil, err
	}
	hash, err := security.HashPassword(password, salt)
	if err != nil {
		return nil, err
	}
	return &domain.Credential{PasswordHash: hash, Salt: salt}, nil
}

// rehashCredential replaces the salt and hash in place and clears lockout
// state. 2FA enrollment survives a password change.
func rehashCredential(cred *domain.Credential, password string) error {
	salt, err := security.NewSalt()
	if err != nil {
		return err
	}
	hash, err := security.HashPassword(password, salt)
	if err != nil {
		return err
	}
	cred.Salt = salt
	cred.PasswordHash = hash
	cred.LoginAttempts = 0
	cred.LockedUntil = nil
	return nil
}

// checkLockout enforces an active lock and clears an expired one. It reports
// whether the credential was mutated and should be persisted.
func checkLockout(cred *domain.Credential, now time.Time) (bool, error) {
	if cred.LockedUntil == nil {
		return false, nil
	}
	if now.Before(*cred.LockedUntil) {
		return false, &AccountLockedError{Until: *cred.LockedUntil}
	}
	cred.LockedUntil = nil
	cred.LoginAttempts = 0
	return true, nil
}

// registerFailure counts a failed attempt. Reaching maxAttempts locks the
// credential; the attempt counter is never surfaced to the caller.
func registerFailure(cred *domain.Credential, now time.Time, maxAttempts int, lockout time.Duration) error {
	cred.LoginAttempts++
	if cred.LoginAttempts >= maxAttempts {
		until := now.Add(lockout)
		cred.LockedUntil = &until
		return &AccountLockedError{Until: until}
	}
	return ErrInvalidCredentials
}

func registerSuccess(cred *domain.Credential, now time.Time) {
	cred.LoginAttempts = 0
	cred.LockedUntil = nil
	cred.LastLogin = &now
}
