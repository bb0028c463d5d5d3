// Package auth verifies logins against the configured user directory and
// tracks the resulting sessions.
//
// Admins see every store. Store users see only the store they are bound to.
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"evalreport/internal/config"
)

// ErrInvalidCredentials is returned for an unknown user or a wrong password.
var ErrInvalidCredentials = errors.New("invalid username or password")

// User is one directory entry.
type User struct {
	Username     string
	Name         string
	Role         string
	Store        string
	passwordHash []byte
}

// Directory holds the users allowed to log in.
type Directory struct {
	users map[string]User
}

// dummyHash keeps the cost of a lookup for an unknown user close to a real check.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("unknown-user"), bcrypt.MinCost)

// NewDirectory indexes the configured users by username. Entries are
// assumed validated by config.Validate.
func NewDirectory(users []config.UserConfig) *Directory {
	d := &Directory{users: make(map[string]User, len(users))}
	for _, u := range users {
		name := u.Name
		if name == "" {
			name = u.Username
		}
		d.users[u.Username] = User{
			Username:     u.Username,
			Name:         name,
			Role:         u.Role,
			Store:        u.Store,
			passwordHash: []byte(u.PasswordHash),
		}
	}
	return d
}

// Len returns the number of users.
func (d *Directory) Len() int {
	return len(d.users)
}

// Authenticate checks a username and password pair.
func (d *Directory) Authenticate(username, password string) (User, error) {
	u, ok := d.users[username]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(u.passwordHash, []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

// HashPassword produces a bcrypt hash suitable for the users section of
// the config file. Costs below config.MinPasswordCost are raised.
func HashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	if cost < config.MinPasswordCost {
		cost = config.MinPasswordCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
