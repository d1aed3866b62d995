// Package registry tracks revoked session tokens and active resource tokens.
//
// A resource token is usable only while it has an entry here. Fetching
// claims the entry, and a successful fetch completes it, so a token can be
// spent at most once even under concurrent requests. Revoking a session
// drops every entry minted under it.
package registry

import (
	"context"
	"time"

	pkgcrypto "github.com/and161185/docportal/internal/crypto"
)

// Entry links a resource token to the session that minted it.
type Entry struct {
	ResourceToken string
	SessionToken  string
	DocID         int64
	IssuedAt      time.Time
	ExpiresAt     time.Time
}

// Store is the revocation and active-token registry.
type Store interface {
	// RevokeSession blacklists a session token until expiresAt and removes
	// every resource entry it minted. Idempotent.
	RevokeSession(sessionToken string, expiresAt time.Time)
	// IsRevoked reports whether a session token has been revoked.
	IsRevoked(sessionToken string) bool
	// Register adds a resource entry. Fails with errs.ErrUnauthorized when the
	// originating session was revoked.
	Register(e Entry) error
	// Claim atomically marks an entry as being fetched. Fails with
	// errs.ErrNoLongerValid when absent, expired or already claimed.
	Claim(resourceToken string, now time.Time) (Entry, error)
	// Complete removes a claimed entry. It returns false when the entry
	// vanished while claimed (its session was revoked).
	Complete(resourceToken string) bool
	// Release returns a claimed entry to the active set after a failed fetch.
	Release(resourceToken string)
	// Prune drops expired entries and revocations; returns how many were removed.
	Prune(now time.Time) int
	// Len returns the number of active resource entries.
	Len() int
}

// RunSweeper calls Prune every interval until ctx is done.
func RunSweeper(ctx context.Context, s Store, interval time.Duration, onPrune func(removed int)) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n := s.Prune(now)
			if onPrune != nil {
				onPrune(n)
			}
		}
	}
}

func fingerprint(token string) string { return pkgcrypto.TokenFingerprint(token) }
