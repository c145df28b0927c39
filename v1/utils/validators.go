// Package utils provides input validation helpers used by the services
// before any write is attempted.
package utils

import (
	"regexp"
	"strings"

	"github.com/campus-clubhouse/clubhouse-backend/v1/models"
)

var (
	emailPattern   = regexp.MustCompile(`^[A-Za-z0-9][\w.%+-]*@([A-Za-z0-9][\w-]*\.)+[A-Za-z]{2,}$`)
	controlPattern = regexp.MustCompile(`[\x00-\x1f\x7f]`)
)

// ValidEmail reports whether the address is acceptable. Rejects leading,
// trailing and doubled dots before applying the pattern.
func ValidEmail(email string) bool {
	if email == "" {
		return false
	}
	email = strings.TrimSpace(email)
	if strings.Contains(email, "..") || strings.HasPrefix(email, ".") || strings.HasSuffix(email, ".") {
		return false
	}
	if len(email) > models.MaxEmailLength {
		return false
	}
	return emailPattern.MatchString(email)
}

// NormalizeEmail trims whitespace and lowercases the address. Emails are
// stored and compared in this form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateName checks length bounds and rejects control characters
func ValidateName(name string) bool {
	s := strings.TrimSpace(name)
	if len(s) < models.MinNameLength || len(s) > models.MaxNameLength {
		return false
	}
	return !controlPattern.MatchString(s)
}

// ValidateRole reports whether the role is in the allowed membership role set
func ValidateRole(role string) bool {
	return models.MembershipRole(role).IsValid()
}

// SanitizeInput strips control characters, trims whitespace and truncates
// to maxLen (0 means no limit)
func SanitizeInput(text string, maxLen int) string {
	s := controlPattern.ReplaceAllString(text, "")
	s = strings.TrimSpace(s)
	if maxLen > 0 && len(s) > maxLen {
		s = s[:maxLen]
	}
	return s
}
