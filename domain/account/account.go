// Package account holds the metered account and the single administrator.
package account

import (
	"errors"
	"net/mail"
	"strings"
	"time"
)

var (
	ErrInvalidName     = errors.New("name is required")
	ErrInvalidEmail    = errors.New("email is not a valid address")
	ErrAccountExists   = errors.New("an account is already provisioned")
	ErrInvalidUsername = errors.New("username is required")
	ErrWeakPassword    = errors.New("password must be at least 8 characters")
	ErrAdminExists     = errors.New("an administrator already exists")
)

// MinPasswordLength applies to the administrator password.
const MinPasswordLength = 8

// Account is the consumer whose requests are metered. One active account
// is supported per deployment.
type Account struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Admin is the single operator allowed into the management surface.
type Admin struct {
	ID           int64
	Username     string
	PasswordHash []byte
	CreatedAt    time.Time
}

// Normalize trims the contact fields and lowercases the email.
func Normalize(name, email string) (string, string) {
	return strings.TrimSpace(name), strings.ToLower(strings.TrimSpace(email))
}

// Validate checks the contact fields of an account.
func Validate(name, email string) error {
	if strings.TrimSpace(name) == "" {
		return ErrInvalidName
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil || addr.Address != strings.TrimSpace(email) {
		return ErrInvalidEmail
	}
	return nil
}

// ValidateCredentials checks a new administrator's username and password.
func ValidateCredentials(username, password string) error {
	if strings.TrimSpace(username) == "" {
		return ErrInvalidUsername
	}
	if len(password) < MinPasswordLength {
		return ErrWeakPassword
	}
	return nil
}
