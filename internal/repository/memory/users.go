// Package memory contains in-process implementations of repository interfaces.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	pkgcrypto "github.com/and161185/docportal/internal/crypto"
	"github.com/and161185/docportal/internal/errs"
	"github.com/and161185/docportal/internal/model"
)

// Credential is one configured account. Password is hashed on load and not retained.
type Credential struct {
	Username string
	Password string
	Label    string // optional; empty defers to the access policy table
}

// ParseCredentials parses "name:password[:label]" entries separated by commas.
func ParseCredentials(list string) ([]Credential, error) {
	var out []Credential
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		f := strings.SplitN(part, ":", 3)
		if len(f) < 2 || f[0] == "" || f[1] == "" {
			return nil, fmt.Errorf("bad credential entry %q (want name:password[:label])", part)
		}
		c := Credential{Username: f[0], Password: f[1]}
		if len(f) == 3 {
			c.Label = f[2]
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, errors.New("no credentials configured")
	}
	return out, nil
}

// Users is a static, read-only credential store.
type Users struct {
	mu     sync.RWMutex
	byName map[string]model.User
}

// NewUsers hashes every credential with a fresh salt.
func NewUsers(creds []Credential) (*Users, error) {
	u := &Users{byName: make(map[string]model.User, len(creds))}
	now := time.Now()
	for _, c := range creds {
		if _, dup := u.byName[c.Username]; dup {
			return nil, fmt.Errorf("%w: %s", errs.ErrAlreadyExists, c.Username)
		}
		hash, salt, err := pkgcrypto.NewCredential(c.Password)
		if err != nil {
			return nil, err
		}
		u.byName[c.Username] = model.User{
			Username:    c.Username,
			PwdHash:     hash,
			SaltAuth:    salt,
			AccessLabel: c.Label,
			CreatedAt:   now,
		}
	}
	return u, nil
}

// GetByUsername returns a copy of the stored user.
func (s *Users) GetByUsername(_ context.Context, username string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byName[username]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &u, nil
}

// All returns a snapshot of stored users, used to seed other stores.
func (s *Users) All() []model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.User, 0, len(s.byName))
	for _, u := range s.byName {
		out = append(out, u)
	}
	return out
}
