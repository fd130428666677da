package security

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/pquerna/otp/totp"
)

const backupCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// TOTPSetup carries everything a caller needs to enroll an identity in 2FA.
// Nothing here is persisted until enrollment is confirmed with a valid code.
type TOTPSetup struct {
	Secret          string
	ProvisioningURI string
	BackupCodes     []string
}

// NewTOTPSetup generates a fresh base32 secret, the otpauth provisioning URI
// the GUI renders as a QR code, and a batch of single-use backup codes.
func NewTOTPSetup(issuer, accountName string, backupCodes int) (*TOTPSetup, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountName,
	})
	if err != nil {
		return nil, fmt.Errorf("generate totp secret: %w", err)
	}
	codes, err := NewBackupCodes(backupCodes)
	if err != nil {
		return nil, err
	}
	return &TOTPSetup{
		Secret:          key.Secret(),
		ProvisioningURI: key.URL(),
		BackupCodes:     codes,
	}, nil
}

// ValidateTOTP checks a live 30-second-step TOTP code against the secret.
func ValidateTOTP(code, secret string) bool {
	return totp.Validate(code, secret)
}

// NewBackupCodes returns n codes of the form XXXX-XXXX drawn from an
// unambiguous alphabet.
func NewBackupCodes(n int) ([]string, error) {
	codes := make([]string, 0, n)
	for i := 0; i < n; i++ {
		code, err := newBackupCode()
		if err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, nil
}

func newBackupCode() (string, error) {
	buf := make([]byte, 9)
	for i := range buf {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(backupCodeAlphabet))))
		if err != nil {
			return "", fmt.Errorf("generate backup code: %w", err)
		}
		buf[i] = backupCodeAlphabet[idx.Int64()]
	}
	buf[4] = '-'
	return string(buf), nil
}
