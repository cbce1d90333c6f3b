package users

import "errors"

var (
	ErrNotFound      = errors.New("user not found")
	ErrUsernameTaken = errors.New("username already exists")
	ErrEmailTaken    = errors.New("email already registered")
)

// UserRepo stores local identity provider accounts. Lookups by email are
// case-insensitive.
type UserRepo interface {
	Create(user *User) error
	Update(user *User) error
	GetByUsername(username string) (*User, error)
	GetByEmail(email string) (*User, error)
	GetByID(id string) (*User, error)
	Delete(username string) error
}
