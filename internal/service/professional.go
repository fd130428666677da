package service

import (
	"github.com/taxdesk/taxdesk/internal/domain"
	"github.com/taxdesk/taxdesk/internal/observability"
)

// RegistryRecord is what the external PTIN/ERO registry returns for a
// registered identifier.
type RegistryRecord struct {
	Status       string
	Name         string
	BusinessName string
}

// Active reports whether the registry considers the registration usable.
func (r *RegistryRecord) Active() bool { return r.Status == "active" }

// ProfessionalRegistry is the external preparer-registry collaborator.
// Lookups return (nil, nil) for identifiers that are well-formed but not
// registered.
type ProfessionalRegistry interface {
	ValidatePTINFormat(ptin string) bool
	GetPTINRecord(ptin string) (*RegistryRecord, error)
	ValidateEROFormat(ero string) bool
	GetERORecord(ero string) (*RegistryRecord, error)
}

// AuthenticateWithPTIN validates a preparer's PTIN against the registry and
// issues a session carrying a professional identity payload. No local
// credential is involved in this path.
func (s *AuthService) AuthenticateWithPTIN(ptin string) (string, error) {
	if s.registry == nil {
		return "", ErrRegistryUnavailable
	}
	if !s.registry.ValidatePTINFormat(ptin) {
		return "", ErrInvalidPTINFormat
	}
	record, err := s.registry.GetPTINRecord(ptin)
	if err != nil {
		return "", err
	}
	if record == nil {
		observability.Audit(s.logger, "auth.professional.login", false, "reason", "ptin_not_registered")
		return "", ErrPTINNotRegistered
	}
	if !record.Active() {
		observability.Audit(s.logger, "auth.professional.login", false, "reason", "ptin_inactive")
		return "", ErrPTINInactive
	}
	identity := domain.ProfessionalIdentity(domain.Professional{
		Role:         "preparer",
		PTIN:         ptin,
		BusinessName: record.BusinessName,
	})
	observability.Audit(s.logger, "auth.professional.login", true, "role", "preparer")
	return s.CreateSession(identity)
}

// AuthenticateWithERO validates an ERO enrollment number and issues a
// professional session.
func (s *AuthService) AuthenticateWithERO(ero string) (string, error) {
	if s.registry == nil {
		return "", ErrRegistryUnavailable
	}
	if !s.registry.ValidateEROFormat(ero) {
		return "", ErrInvalidEROFormat
	}
	record, err := s.registry.GetERORecord(ero)
	if err != nil {
		return "", err
	}
	if record == nil {
		observability.Audit(s.logger, "auth.professional.login", false, "reason", "ero_not_registered")
		return "", ErrERONotRegistered
	}
	if !record.Active() {
		observability.Audit(s.logger, "auth.professional.login", false, "reason", "ero_inactive")
		return "", ErrEROInactive
	}
	identity := domain.ProfessionalIdentity(domain.Professional{
		Role:         "ero",
		ERONumber:    ero,
		BusinessName: record.BusinessName,
	})
	observability.Audit(s.logger, "auth.professional.login", true, "role", "ero")
	return s.CreateSession(identity)
}
