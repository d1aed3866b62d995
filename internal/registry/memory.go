package registry

import (
	"sync"
	"time"

	"github.com/and161185/docportal/internal/errs"
)

type activeEntry struct {
	Entry
	sessionKey string
	claimed    bool
}

// Memory is a process-local Store guarded by a single mutex.
type Memory struct {
	mu        sync.Mutex
	revoked   map[string]time.Time           // session fingerprint -> session expiry
	active    map[string]*activeEntry        // resource token -> entry
	bySession map[string]map[string]struct{} // session fingerprint -> resource tokens
}

var _ Store = (*Memory)(nil)

// NewMemory constructs an empty registry.
func NewMemory() *Memory {
	return &Memory{
		revoked:   make(map[string]time.Time),
		active:    make(map[string]*activeEntry),
		bySession: make(map[string]map[string]struct{}),
	}
}

// RevokeSession blacklists the session and cascades to its resource tokens.
func (m *Memory) RevokeSession(sessionToken string, expiresAt time.Time) {
	if sessionToken == "" {
		return
	}
	key := fingerprint(sessionToken)

	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.revoked[key]; !ok || expiresAt.After(cur) {
		m.revoked[key] = expiresAt
	}
	for tok := range m.bySession[key] {
		delete(m.active, tok)
	}
	delete(m.bySession, key)
}

// IsRevoked reports whether the session token was revoked.
func (m *Memory) IsRevoked(sessionToken string) bool {
	key := fingerprint(sessionToken)
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.revoked[key]
	return ok
}

// Register inserts e keyed by its resource token.
func (m *Memory) Register(e Entry) error {
	key := fingerprint(e.SessionToken)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.revoked[key]; ok {
		return errs.ErrUnauthorized
	}
	m.active[e.ResourceToken] = &activeEntry{Entry: e, sessionKey: key}
	set, ok := m.bySession[key]
	if !ok {
		set = make(map[string]struct{})
		m.bySession[key] = set
	}
	set[e.ResourceToken] = struct{}{}
	return nil
}

// Claim marks the entry as in flight.
func (m *Memory) Claim(resourceToken string, now time.Time) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ae, ok := m.active[resourceToken]
	if !ok || ae.claimed {
		return Entry{}, errs.ErrNoLongerValid
	}
	if !ae.ExpiresAt.IsZero() && !now.Before(ae.ExpiresAt) {
		m.removeLocked(resourceToken, ae)
		return Entry{}, errs.ErrNoLongerValid
	}
	ae.claimed = true
	return ae.Entry, nil
}

// Complete removes a claimed entry.
func (m *Memory) Complete(resourceToken string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	ae, ok := m.active[resourceToken]
	if !ok || !ae.claimed {
		return false
	}
	m.removeLocked(resourceToken, ae)
	return true
}

// Release un-claims an entry if it is still present.
func (m *Memory) Release(resourceToken string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ae, ok := m.active[resourceToken]; ok {
		ae.claimed = false
	}
}

// Prune drops expired resource entries and revocations whose session has
// expired anyway. Claimed entries are left to their fetch.
func (m *Memory) Prune(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for tok, ae := range m.active {
		if ae.claimed || ae.ExpiresAt.IsZero() || now.Before(ae.ExpiresAt) {
			continue
		}
		m.removeLocked(tok, ae)
		n++
	}
	for key, exp := range m.revoked {
		if !exp.IsZero() && now.After(exp) {
			delete(m.revoked, key)
			n++
		}
	}
	return n
}

// Len returns the number of active resource entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

func (m *Memory) removeLocked(tok string, ae *activeEntry) {
	delete(m.active, tok)
	if set, ok := m.bySession[ae.sessionKey]; ok {
		delete(set, tok)
		if len(set) == 0 {
			delete(m.bySession, ae.sessionKey)
		}
	}
}
