package auth

import (
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	minFullNameLen = 4
	maxFullNameLen = 50
	minPasswordLen = 9
	maxPasswordLen = 50
	maxEmailLen    = 254
)

// normalizeEmail trims and lowercases an email address.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validateRegistration returns the first rule the input breaks, or "".
func validateRegistration(fullName, email, password string) string {
	name := strings.TrimSpace(fullName)
	if n := utf8.RuneCountInString(name); n < minFullNameLen || n > maxFullNameLen {
		return "Full name must be between 4 and 50 characters"
	}

	if !isValidEmail(email) {
		return "Invalid email"
	}

	if n := utf8.RuneCountInString(password); n < minPasswordLen || n > maxPasswordLen {
		return "Password must be between 9 and 50 characters"
	}

	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		return "Password must contain an uppercase letter, a lowercase letter and a digit"
	}

	return ""
}

func isValidEmail(email string) bool {
	if email == "" || len(email) > maxEmailLen {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	at := strings.LastIndex(email, "@")
	return at > 0 && strings.Contains(email[at:], ".")
}
