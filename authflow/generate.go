package authflow

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"unicode"

	"github.com/google/uuid"
)

const (
	generatedPasswordLength = 24

	lowerChars  = "abcdefghijkmnopqrstuvwxyz"
	upperChars  = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	digitChars  = "23456789"
	symbolChars = "!@#$%^&*()-_=+[]{}"
)

// NewUsername returns an opaque provider username unrelated to the email.
func NewUsername() string {
	return "user_" + uuid.New().String()
}

// GeneratePassword returns a random password containing every character
// class the provider policy can demand.
func GeneratePassword() (string, error) {
	all := lowerChars + upperChars + digitChars + symbolChars
	classes := []string{lowerChars, upperChars, digitChars, symbolChars}

	buf := make([]byte, 0, generatedPasswordLength)
	for _, class := range classes {
		c, err := randomChar(class)
		if err != nil {
			return "", err
		}
		buf = append(buf, c)
	}
	for len(buf) < generatedPasswordLength {
		c, err := randomChar(all)
		if err != nil {
			return "", err
		}
		buf = append(buf, c)
	}

	// Fisher-Yates so the class characters are not always first.
	for i := len(buf) - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", err
		}
		buf[i], buf[j.Int64()] = buf[j.Int64()], buf[i]
	}
	return string(buf), nil
}

func randomChar(from string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(from))))
	if err != nil {
		return 0, fmt.Errorf("random: %w", err)
	}
	return from[n.Int64()], nil
}

// MeetsProviderPolicy checks the full policy: minimum length 8 and upper,
// lower, digit and symbol classes.
func MeetsProviderPolicy(password string) bool {
	if len(password) < 8 {
		return false
	}
	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	return upper && lower && digit && symbol
}
