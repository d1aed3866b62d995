// Package model defines domain entities used by services and repositories.
package model

import (
	"time"
)

// Tokens describes an issued session token.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time // session token expiry (for diagnostics)
}

// User is a portal account as seen by the credential store.
type User struct {
	Username    string
	PwdHash     []byte // Argon2id(password, SaltAuth)
	SaltAuth    []byte // per-user auth salt
	AccessLabel string // approver label; empty means "derive from role table"
	CreatedAt   time.Time
}

// Principal is the identity carried by a verified session token.
type Principal struct {
	Username  string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// DocumentSummary is a listing row. CreatedDate is nil when the store has no date.
type DocumentSummary struct {
	ID          int64
	Title       string
	FileName    *string
	Department  *string
	CreatedDate *time.Time
}

// DocumentFile is the binary payload of one document.
type DocumentFile struct {
	ID       int64
	FileName string // may be empty; callers fall back to a generated name
	Payload  []byte
}

// ResourceGrant is an issued, single-document, single-use token.
type ResourceGrant struct {
	Token     string
	DocID     int64
	Username  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
