// Package tokens issues and parses the two HS256 JWT kinds used by the portal:
// session tokens that identify a user, and resource tokens scoped to one document.
package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/and161185/docportal/internal/errs"
	"github.com/and161185/docportal/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
)

// Token type claim values.
const (
	TypeSession  = "session"
	TypeResource = "pdfAccess"
)

// Default lifetimes.
const (
	DefaultSessionTTL  = 10 * time.Minute
	DefaultResourceTTL = 5 * time.Minute
)

// SessionClaims is the payload of a session token.
type SessionClaims struct {
	Username string `json:"username"`
	Type     string `json:"typ"`
	jwt.RegisteredClaims
}

// ResourceClaims is the payload of a resource token.
type ResourceClaims struct {
	DocID     int64  `json:"docId"`
	Username  string `json:"username"`
	Type      string `json:"tokenType"`
	Timestamp int64  `json:"timestamp"` // issue time in unix millis
	jwt.RegisteredClaims
}

// Signer issues and verifies tokens with a shared HS256 key.
type Signer struct {
	key         []byte
	sessionTTL  time.Duration
	resourceTTL time.Duration
	now         func() time.Time
}

// NewSigner constructs a Signer. Non-positive TTLs fall back to the defaults.
func NewSigner(key []byte, sessionTTL, resourceTTL time.Duration) *Signer {
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	if resourceTTL <= 0 {
		resourceTTL = DefaultResourceTTL
	}
	return &Signer{key: key, sessionTTL: sessionTTL, resourceTTL: resourceTTL, now: time.Now}
}

// WithClock replaces the time source; used by tests.
func (s *Signer) WithClock(now func() time.Time) *Signer {
	cp := *s
	cp.now = now
	return &cp
}

// SessionTTL returns the configured session lifetime.
func (s *Signer) SessionTTL() time.Duration { return s.sessionTTL }

func (s *Signer) registered(subject string, ttl time.Duration) (jwt.RegisteredClaims, time.Time, time.Time, error) {
	jti, err := uuid.NewV4()
	if err != nil {
		return jwt.RegisteredClaims{}, time.Time{}, time.Time{}, err
	}
	// JWT dates have second precision; truncate so callers see what the token carries.
	now := s.now().Truncate(time.Second)
	exp := now.Add(ttl)
	return jwt.RegisteredClaims{
		ID:        jti.String(),
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}, now, exp, nil
}

// IssueSession signs a session token for username.
func (s *Signer) IssueSession(username string) (string, model.Principal, error) {
	rc, iat, exp, err := s.registered(username, s.sessionTTL)
	if err != nil {
		return "", model.Principal{}, err
	}
	claims := SessionClaims{Username: username, Type: TypeSession, RegisteredClaims: rc}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", model.Principal{}, err
	}
	return signed, model.Principal{Username: username, TokenID: rc.ID, IssuedAt: iat, ExpiresAt: exp}, nil
}

// ParseSession verifies signature, expiry and token type. Every failure wraps errs.ErrUnauthorized.
func (s *Signer) ParseSession(raw string) (model.Principal, error) {
	var claims SessionClaims
	if err := s.parse(raw, &claims); err != nil {
		return model.Principal{}, fmt.Errorf("%w: %v", errs.ErrUnauthorized, err)
	}
	if claims.Type != TypeSession || claims.Username == "" {
		return model.Principal{}, fmt.Errorf("%w: not a session token", errs.ErrUnauthorized)
	}
	return model.Principal{
		Username:  claims.Username,
		TokenID:   claims.ID,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// IssueResource signs a resource token for one document.
func (s *Signer) IssueResource(username string, docID int64) (model.ResourceGrant, error) {
	rc, iat, exp, err := s.registered(username, s.resourceTTL)
	if err != nil {
		return model.ResourceGrant{}, err
	}
	claims := ResourceClaims{
		DocID:            docID,
		Username:         username,
		Type:             TypeResource,
		Timestamp:        s.now().UnixMilli(),
		RegisteredClaims: rc,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return model.ResourceGrant{}, err
	}
	return model.ResourceGrant{Token: signed, DocID: docID, Username: username, IssuedAt: iat, ExpiresAt: exp}, nil
}

// ParseResource verifies a resource token. Every failure wraps errs.ErrInvalidOrExpired.
func (s *Signer) ParseResource(raw string) (model.ResourceGrant, error) {
	var claims ResourceClaims
	if err := s.parse(raw, &claims); err != nil {
		return model.ResourceGrant{}, fmt.Errorf("%w: %v", errs.ErrInvalidOrExpired, err)
	}
	if claims.Type != TypeResource || claims.Username == "" || claims.DocID <= 0 {
		return model.ResourceGrant{}, fmt.Errorf("%w: not a resource token", errs.ErrInvalidOrExpired)
	}
	return model.ResourceGrant{
		Token:     raw,
		DocID:     claims.DocID,
		Username:  claims.Username,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (s *Signer) parse(raw string, claims jwt.Claims) error {
	if raw == "" {
		return errors.New("empty token")
	}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	return err
}
