package users

import (
	"fmt"
	"strings"
	"time"

	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// User is an account held by the local identity provider.
type User struct {
	ID           string    `json:"id,omitempty"`          // Subject identifier issued on sign up
	Username     string    `json:"username,omitempty"`    // Provider namespace username (synthetic, not the email)
	Email        string    `json:"email,omitempty"`       // User's email address
	Name         string    `json:"name,omitempty"`        // Display name attribute
	PasswordHash string    `json:"-"`                     // Hashed version of the user's password - never serialize
	DateJoined   time.Time `json:"date_joined,omitempty"` // Date and time when the user registered
	LastLogin    time.Time `json:"last_login,omitempty"`  // Last time the user signed in

	Confirmed        bool      `json:"confirmed,omitempty"` // Confirmed, has the user entered the emailed code
	ConfirmationCode string    `json:"-"`
	CodeExpiry       time.Time `json:"-"`
}

// CodeExpired reports whether the pending confirmation code is past its expiry.
func (u *User) CodeExpired(now time.Time) bool {
	return !u.CodeExpiry.IsZero() && now.After(u.CodeExpiry)
}

// NormalizeEmail lower-cases and trims an email for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// CheckPassword checks a password against the user's hash
func (u *User) CheckPassword(password string) bool {
	return CheckPasswordHash(password, u.PasswordHash)
}
