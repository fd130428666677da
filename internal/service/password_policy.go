package service

import (
	"fmt"
	"regexp"
)

var (
	uppercaseRe = regexp.MustCompile(`[A-Z]`)
	lowercaseRe = regexp.MustCompile(`[a-z]`)
	digitRe     = regexp.MustCompile(`[0-9]`)
	symbolRe    = regexp.MustCompile("[!\"#$%&'()*+,\\-./:;<=>?@\\[\\\\\\]^_`{|}~]")
)

// PasswordPolicy validates candidate passwords. Each rule can be toggled off
// by configuration; validation stops at the first violated rule and has no
// side effects.
type PasswordPolicy struct {
	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireDigit     bool
	RequireSymbol    bool
}

func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:        8,
		RequireUppercase: true,
		RequireLowercase: true,
		RequireDigit:     true,
		RequireSymbol:    true,
	}
}

func (p PasswordPolicy) Validate(password string) error {
	if len(password) < p.MinLength {
		return &PasswordPolicyError{Rule: fmt.Sprintf("must be at least %d characters", p.MinLength)}
	}
	if p.RequireUppercase && !uppercaseRe.MatchString(password) {
		return &PasswordPolicyError{Rule: "must contain an uppercase letter"}
	}
	if p.RequireLowercase && !lowercaseRe.MatchString(password) {
		return &PasswordPolicyError{Rule: "must contain a lowercase letter"}
	}
	if p.RequireDigit && !digitRe.MatchString(password) {
		return &PasswordPolicyError{Rule: "must contain a digit"}
	}
	if p.RequireSymbol && !symbolRe.MatchString(password) {
		return &PasswordPolicyError{Rule: "must contain a symbol"}
	}
	return nil
}
