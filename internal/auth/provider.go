// Package auth resolves credentials to a role and issues the signed session
// tokens that carry that role between requests.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/crucial707/labstock/internal/models"
)

// ErrAuthFailed is returned for any unknown username or wrong password.
var ErrAuthFailed = errors.New("invalid credentials")

// Provider maps credentials to a role. Handlers only ever see the resolved
// role, never the credentials themselves.
type Provider interface {
	Authenticate(ctx context.Context, username, password string) (models.Principal, error)
}

// Credential is one configured login.
type Credential struct {
	Username string
	// PasswordHash is a bcrypt hash. When empty, Password is hashed at construction.
	PasswordHash string
	Password     string
	Role         models.Role
}

type account struct {
	username string
	hash     []byte
	role     models.Role
}

// StaticProvider checks against a fixed set of bcrypt-hashed credentials.
type StaticProvider struct {
	accounts []account
}

// NewStaticProvider hashes plain passwords and rejects duplicate usernames
// or roles other than admin and user.
func NewStaticProvider(creds ...Credential) (*StaticProvider, error) {
	p := &StaticProvider{}
	seen := make(map[string]bool)
	for _, c := range creds {
		name := strings.TrimSpace(c.Username)
		if name == "" {
			return nil, errors.New("auth: credential without username")
		}
		if seen[name] {
			return nil, fmt.Errorf("auth: duplicate username %q", name)
		}
		if c.Role != models.RoleAdmin && c.Role != models.RoleUser {
			return nil, fmt.Errorf("auth: unsupported role %q for %q", c.Role, name)
		}
		seen[name] = true

		hash := []byte(c.PasswordHash)
		if len(hash) == 0 {
			if c.Password == "" {
				return nil, fmt.Errorf("auth: no password for %q", name)
			}
			var err error
			hash, err = bcrypt.GenerateFromPassword([]byte(c.Password), bcrypt.DefaultCost)
			if err != nil {
				return nil, fmt.Errorf("auth: hash password for %q: %w", name, err)
			}
		} else if _, err := bcrypt.Cost(hash); err != nil {
			return nil, fmt.Errorf("auth: bad password hash for %q: %w", name, err)
		}
		p.accounts = append(p.accounts, account{username: name, hash: hash, role: c.Role})
	}
	return p, nil
}

// Authenticate returns the principal for a matching username and password.
func (p *StaticProvider) Authenticate(_ context.Context, username, password string) (models.Principal, error) {
	username = strings.TrimSpace(username)
	for _, a := range p.accounts {
		if subtle.ConstantTimeCompare([]byte(a.username), []byte(username)) != 1 {
			continue
		}
		if bcrypt.CompareHashAndPassword(a.hash, []byte(password)) != nil {
			return models.Principal{}, ErrAuthFailed
		}
		return models.Principal{Username: a.username, Role: a.role}, nil
	}
	return models.Principal{}, ErrAuthFailed
}
