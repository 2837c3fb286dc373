package utils

import (
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// FieldError is one field-level problem reported in a validation response.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

const (
	MinPasswordLength = 8
	// bcrypt rejects longer input
	MaxPasswordBytes  = 72
	DateLayout        = "2006-01-02"
)

var (
	accountUsernameRe = regexp.MustCompile(`^[A-Za-z0-9._-]{3,50}$`)
	mqttUsernameRe    = regexp.MustCompile(`^[A-Za-z0-9_-]{3,64}$`)
	ssoTokenRe        = regexp.MustCompile(`^[A-Za-z0-9]{1,128}$`)
)

// LooksLikeEmail decides whether a login identifier is matched against the
// email column. Any "@" qualifies; malformed addresses then simply fail to
// match.
func LooksLikeEmail(identifier string) bool {
	return strings.Contains(identifier, "@")
}

// IsValidEmail is the strict check applied at registration and update.
func IsValidEmail(email string) bool {
	if len(email) > 255 {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	at := strings.LastIndex(email, "@")
	if at < 1 {
		return false
	}
	domain := email[at+1:]
	dot := strings.LastIndex(domain, ".")
	return dot > 0 && dot < len(domain)-1
}

// IsValidAccountUsername allows letters, digits, dot, underscore and dash.
func IsValidAccountUsername(username string) bool {
	return accountUsernameRe.MatchString(username)
}

// IsValidMQTTUsername rejects anything outside [A-Za-z0-9_-], in particular
// topic separators and whitespace.
func IsValidMQTTUsername(username string) bool {
	return mqttUsernameRe.MatchString(username)
}

// PasswordProblem returns an empty string for an acceptable password, or
// the reason it is too weak.
func PasswordProblem(password string) string {
	n := utf8.RuneCountInString(password)
	if n < MinPasswordLength {
		return "must be at least 8 characters"
	}
	if len(password) > MaxPasswordBytes {
		return "must be at most 72 bytes"
	}
	var letter, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !letter || !digit {
		return "must contain a letter and a digit"
	}
	return ""
}

// IsValidSSOToken checks state and nonce values: alphanumeric, 1-128 chars.
func IsValidSSOToken(v string) bool { return ssoTokenRe.MatchString(v) }

// ParseBirthDate parses YYYY-MM-DD and rejects dates after today.
func ParseBirthDate(v string, now time.Time) (time.Time, string) {
	d, err := time.Parse(DateLayout, v)
	if err != nil {
		return time.Time{}, "must be a date in YYYY-MM-DD format"
	}
	today := now.UTC().Truncate(24 * time.Hour)
	if d.After(today) {
		return time.Time{}, "must not be in the future"
	}
	return d, ""
}
