package model

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Account is a registered user who owns listings and sends proposals.
type Account struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// ValidatePassword checks password strength rules.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, MinPasswordLength)
	}
	return nil
}

// ValidateUsername checks that a username is 3-150 characters of letters,
// digits and @.+-_ (the set a login form accepts).
func ValidateUsername(username string) error {
	n := len([]rune(username))
	if n < 3 || n > 150 {
		return fmt.Errorf("%w: username must be 3-150 characters", ErrValidation)
	}
	for _, r := range username {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("@.+-_", r) {
			continue
		}
		return fmt.Errorf("%w: username contains invalid character %q", ErrValidation, r)
	}
	return nil
}
