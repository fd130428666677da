package service

import (
	"errors"
	"fmt"
	"time"
)

// Authentication failures are recoverable and user-facing; the GUI renders
// them as dialog messages. None of these terminate the process.
var (
	ErrMasterPasswordNotSet = errors.New("master password is not set")
	ErrMasterPasswordExists = errors.New("master password is already set")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrSessionRequired      = errors.New("a valid session is required")

	ErrTwoFactorRequired = errors.New("2FA code required")
	ErrTwoFactorInvalid  = errors.New("invalid 2FA code")

	ErrClientNotFound = errors.New("client account not found")
	ErrClientInactive = errors.New("client account is inactive")
	ErrEmailExists    = errors.New("email is already registered")

	ErrInvalidPTINFormat = errors.New("invalid PTIN format")
	ErrPTINNotRegistered = errors.New("PTIN is not registered")
	ErrPTINInactive      = errors.New("PTIN is not active")
	ErrInvalidEROFormat  = errors.New("invalid ERO number format")
	ErrERONotRegistered  = errors.New("ERO number is not registered")
	ErrEROInactive       = errors.New("ERO enrollment is not active")

	ErrRegistryUnavailable = errors.New("preparer registry is not configured")
)

// AccountLockedError is returned while an identity is locked out. The unlock
// time is part of the message shown to the user.
type AccountLockedError struct {
	Until time.Time
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked until %s", e.Until.Format(time.RFC3339))
}

// PasswordPolicyError reports the first policy rule a candidate password
// violated. It is raised before any state changes.
type PasswordPolicyError struct {
	Rule string
}

func (e *PasswordPolicyError) Error() string {
	return "password policy: " + e.Rule
}
