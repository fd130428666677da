package domain

import "time"

// Credential holds the verifier state for a single identity. The same shape
// backs the master record and every client account.
type Credential struct {
	PasswordHash  string     `json:"password_hash" gorm:"size:128;not null"`
	Salt          string     `json:"salt" gorm:"size:64;not null"`
	LoginAttempts int        `json:"login_attempts"`
	LockedUntil   *time.Time `json:"locked_until,omitempty"`
	LastLogin     *time.Time `json:"last_login,omitempty"`
	TwoFactor     TwoFactor  `json:"two_factor" gorm:"embedded;embeddedPrefix:two_factor_"`
}

// TwoFactor is the optional TOTP state of a credential. Backup codes are
// single-use: verification removes the matched code.
type TwoFactor struct {
	Enabled     bool     `json:"enabled"`
	Secret      string   `json:"secret,omitempty" gorm:"size:64"`
	BackupCodes []string `json:"backup_codes,omitempty" gorm:"serializer:json;type:text"`
}

// ConsumeBackupCode removes code from the stored backup codes. It reports
// whether the code was present.
func (t *TwoFactor) ConsumeBackupCode(code string) bool {
	for i, c := range t.BackupCodes {
		if c == code {
			t.BackupCodes = append(t.BackupCodes[:i], t.BackupCodes[i+1:]...)
			return true
		}
	}
	return false
}

// Locked reports whether the credential is locked out at the given instant.
func (c *Credential) Locked(now time.Time) bool {
	return c.LockedUntil != nil && now.Before(*c.LockedUntil)
}
