package repository

import (
	"context"

	"github.com/and161185/docportal/internal/model"
)

// DocumentRepository reads document_access rows. Every method takes the
// caller's approver label and applies the authorization predicate in SQL;
// nothing is cached between calls.
type DocumentRepository interface {
	// ListByLabel returns summaries of every document the label may see, in store order.
	ListByLabel(ctx context.Context, label string) ([]model.DocumentSummary, error)
	// Authorized reports whether docID exists and is visible to label.
	Authorized(ctx context.Context, docID int64, label string) (bool, error)
	// GetFile returns the payload of docID for label. Returns errs.ErrNotFound
	// when no row matches or the payload is NULL/empty.
	GetFile(ctx context.Context, docID int64, label string) (*model.DocumentFile, error)
	// Ping checks store connectivity.
	Ping(ctx context.Context) error
}
