package security

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
)

func TestNewTOTPSetup(t *testing.T) {
	setup, err := NewTOTPSetup("TaxDesk", "master", 10)
	if err != nil {
		t.Fatalf("new setup: %v", err)
	}
	if setup.Secret == "" {
		t.Fatal("expected a secret")
	}
	if !strings.HasPrefix(setup.ProvisioningURI, "otpauth://totp/") {
		t.Fatalf("unexpected provisioning URI %q", setup.ProvisioningURI)
	}
	if !strings.Contains(setup.ProvisioningURI, "TaxDesk") {
		t.Fatal("issuer missing from provisioning URI")
	}
	if len(setup.BackupCodes) != 10 {
		t.Fatalf("expected 10 backup codes, got %d", len(setup.BackupCodes))
	}

	code, err := totp.GenerateCode(setup.Secret, time.Now())
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}
	if !ValidateTOTP(code, setup.Secret) {
		t.Fatal("live code must validate against the generated secret")
	}
	if ValidateTOTP("000000", setup.Secret) {
		t.Fatal("arbitrary code must not validate")
	}
}

func TestNewBackupCodes(t *testing.T) {
	codes, err := NewBackupCodes(20)
	if err != nil {
		t.Fatalf("new backup codes: %v", err)
	}
	format := regexp.MustCompile(`^[A-HJ-NP-Z2-9]{4}-[A-HJ-NP-Z2-9]{4}$`)
	seen := map[string]bool{}
	for _, code := range codes {
		if !format.MatchString(code) {
			t.Fatalf("code %q does not match XXXX-XXXX over the unambiguous alphabet", code)
		}
		if seen[code] {
			t.Fatalf("duplicate backup code %q", code)
		}
		seen[code] = true
	}
}
