// Package service contains the portal's session, directory and resource-token services.
package service

import (
	"context"
	"errors"
	"time"

	pkgcrypto "github.com/and161185/docportal/internal/crypto"
	"github.com/and161185/docportal/internal/errs"
	"github.com/and161185/docportal/internal/limiter"
	"github.com/and161185/docportal/internal/model"
	"github.com/and161185/docportal/internal/registry"
	"github.com/and161185/docportal/internal/repository"
	"github.com/and161185/docportal/internal/tokens"
)

// SessionService issues, verifies and revokes session tokens.
type SessionService interface {
	// Login checks credentials (throttled per username and client IP) and issues a session token.
	Login(ctx context.Context, username, password, ip string) (model.Tokens, error)
	// Verify returns the principal of a valid, unrevoked session token.
	Verify(ctx context.Context, token string) (model.Principal, error)
	// Logout revokes the token and every resource token it minted. Idempotent.
	Logout(ctx context.Context, token string)
}

// SessionServiceImpl is the default SessionService.
type SessionServiceImpl struct {
	users  repository.UserRepository
	signer *tokens.Signer
	reg    registry.Store
	lim    limiter.Limiter
	now    func() time.Time
}

var _ SessionService = (*SessionServiceImpl)(nil)

// NewSessionService constructs SessionService with required dependencies.
func NewSessionService(users repository.UserRepository, signer *tokens.Signer, reg registry.Store, lim limiter.Limiter) *SessionServiceImpl {
	if lim == nil {
		lim = limiter.Nop{}
	}
	return &SessionServiceImpl{users: users, signer: signer, reg: reg, lim: lim, now: time.Now}
}

// Login authenticates with rate limiting by (username, ip).
func (s *SessionServiceImpl) Login(ctx context.Context, username, password, ip string) (model.Tokens, error) {
	if username == "" || password == "" {
		return model.Tokens{}, errs.ErrUnauthorized
	}
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, username, ipHash)
	if err != nil {
		return model.Tokens{}, err
	}
	if !allowed {
		return model.Tokens{}, errs.ErrRateLimited
	}

	u, err := s.users.GetByUsername(ctx, username)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return model.Tokens{}, err
	}
	if err != nil || !pkgcrypto.VerifyPassword([]byte(password), u.SaltAuth, u.PwdHash) {
		if blocked, _, ferr := s.lim.Failure(ctx, username, ipHash); ferr == nil && blocked {
			return model.Tokens{}, errs.ErrRateLimited
		}
		// unknown user and wrong password look the same
		return model.Tokens{}, errs.ErrUnauthorized
	}

	_ = s.lim.Success(ctx, username, ipHash)

	signed, p, err := s.signer.IssueSession(u.Username)
	if err != nil {
		return model.Tokens{}, err
	}
	return model.Tokens{AccessToken: signed, ExpiresAt: p.ExpiresAt}, nil
}

// Verify checks signature, expiry and the revocation set.
func (s *SessionServiceImpl) Verify(_ context.Context, token string) (model.Principal, error) {
	p, err := s.signer.ParseSession(token)
	if err != nil {
		return model.Principal{}, err
	}
	if s.reg.IsRevoked(token) {
		return model.Principal{}, errs.ErrRevoked
	}
	return p, nil
}

// Logout revokes token. Unparseable tokens are still blacklisted, kept until
// a full session lifetime has passed.
func (s *SessionServiceImpl) Logout(_ context.Context, token string) {
	if token == "" {
		return
	}
	exp := s.now().Add(s.signer.SessionTTL())
	if p, err := s.signer.ParseSession(token); err == nil {
		exp = p.ExpiresAt
	}
	s.reg.RevokeSession(token, exp)
}
