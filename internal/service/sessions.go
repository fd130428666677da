package service

import (
	"errors"
	"time"

	"github.com/taxdesk/taxdesk/internal/domain"
	"github.com/taxdesk/taxdesk/internal/observability"
	"github.com/taxdesk/taxdesk/internal/repository"
	"github.com/taxdesk/taxdesk/internal/security"
)

// CreateSession issues an opaque token bound to identity. Sessions past the
// inactivity window are swept before the new one is inserted.
func (s *AuthService) CreateSession(identity domain.Identity) (string, error) {
	now := time.Now().UTC()
	if removed, err := s.sessions.DeleteInactiveSince(now.Add(-s.cfg.SessionTimeout)); err != nil {
		return "", err
	} else if removed > 0 {
		observability.Audit(s.logger, "auth.session.swept", true, "removed", removed)
	}

	token, err := security.NewSessionToken()
	if err != nil {
		return "", err
	}
	sess := &domain.Session{
		Token:        token,
		Identity:     identity,
		CreatedAt:    now,
		LastActivity: now,
	}
	if err := s.sessions.Create(sess); err != nil {
		return "", err
	}
	return token, nil
}

// ValidateSession resolves a token to its identity. Absent and expired
// tokens yield (nil, nil) rather than an error; an expired session is
// deleted on the way out. A valid session has its activity refreshed, so
// lifetime is a rolling inactivity window.
func (s *AuthService) ValidateSession(token string) (*domain.Identity, error) {
	sess, err := s.sessions.Get(token)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if sess.Expired(now, s.cfg.SessionTimeout) {
		if err := s.sessions.Delete(token); err != nil {
			return nil, err
		}
		observability.Audit(s.logger, "auth.session.expired", false)
		return nil, nil
	}

	sess.LastActivity = now
	if err := s.sessions.Update(sess); err != nil {
		return nil, err
	}
	identity := sess.Identity
	return &identity, nil
}

// Logout removes the session if present. Calling it twice is a no-op.
func (s *AuthService) Logout(token string) error {
	if err := s.sessions.Delete(token); err != nil {
		return err
	}
	observability.Audit(s.logger, "auth.session.logout", true)
	return nil
}

// PurgeExpiredSessions removes every session past the inactivity window and
// returns how many were removed. The sweep normally happens lazily; this is
// the explicit entry point for the CLI.
func (s *AuthService) PurgeExpiredSessions() (int, error) {
	cutoff := time.Now().UTC().Add(-s.cfg.SessionTimeout)
	return s.sessions.DeleteInactiveSince(cutoff)
}

// ListSessions returns the active (non-expired) sessions.
func (s *AuthService) ListSessions() ([]*domain.Session, error) {
	all, err := s.sessions.List()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	out := make([]*domain.Session, 0, len(all))
	for _, sess := range all {
		if !sess.Expired(now, s.cfg.SessionTimeout) {
			out = append(out, sess)
		}
	}
	return out, nil
}

// requireManagementSession validates the token and requires a master or
// professional identity. Client-account mutations are refused otherwise.
func (s *AuthService) requireManagementSession(token string) (*domain.Identity, error) {
	identity, err := s.ValidateSession(token)
	if err != nil {
		return nil, err
	}
	if identity == nil || identity.IsClient() {
		return nil, ErrSessionRequired
	}
	return identity, nil
}
