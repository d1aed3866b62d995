package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/and161185/docportal/internal/errs"
	"github.com/and161185/docportal/internal/model"
	"github.com/jackc/pgx/v5"
)

// labelPredicate is the authorization predicate: the label must occupy one of
// the four approver slots. $1 is always the label.
const labelPredicate = `$1 IN (approver_name1, approver_name2, approver_name3, approver_name4)`

// DocumentRepo implements DocumentRepository using PostgreSQL.
type DocumentRepo struct{ db *DB }

// NewDocumentRepo constructs a document repository.
func NewDocumentRepo(db *DB) *DocumentRepo { return &DocumentRepo{db: db} }

// ListByLabel returns summaries of documents visible to label. No ORDER BY:
// ordering is whatever the store returns.
func (r *DocumentRepo) ListByLabel(ctx context.Context, label string) ([]model.DocumentSummary, error) {
	const q = `
SELECT doc_id, doc_title, doc_file_name, department_name, created_date
FROM document_access
WHERE ` + labelPredicate

	rows, err := r.db.Pool.Query(ctx, q, label)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := make([]model.DocumentSummary, 0, 16)
	for rows.Next() {
		var (
			d       model.DocumentSummary
			title   *string
			created *time.Time
		)
		if err := rows.Scan(&d.ID, &title, &d.FileName, &d.Department, &created); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		if title != nil {
			d.Title = *title
		}
		d.CreatedDate = created
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return out, nil
}

// Authorized reports whether docID is visible to label.
func (r *DocumentRepo) Authorized(ctx context.Context, docID int64, label string) (bool, error) {
	const q = `
SELECT doc_id FROM document_access
WHERE doc_id = $2 AND ` + labelPredicate

	var id int64
	err := r.db.Pool.QueryRow(ctx, q, label, docID).Scan(&id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, pgx.ErrNoRows):
		return false, nil
	default:
		return false, fmt.Errorf("check document access: %w", err)
	}
}

// GetFile loads the payload of docID for label.
func (r *DocumentRepo) GetFile(ctx context.Context, docID int64, label string) (*model.DocumentFile, error) {
	const q = `
SELECT doc_file, doc_file_name FROM document_access
WHERE doc_id = $2 AND ` + labelPredicate

	var (
		payload []byte
		name    *string
	)
	err := r.db.Pool.QueryRow(ctx, q, label, docID).Scan(&payload, &name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("fetch document file: %w", err)
	}
	if len(payload) == 0 {
		return nil, errs.ErrNotFound
	}
	f := &model.DocumentFile{ID: docID, Payload: payload}
	if name != nil {
		f.FileName = *name
	}
	return f, nil
}

// Ping checks store connectivity.
func (r *DocumentRepo) Ping(ctx context.Context) error { return r.db.Ping(ctx) }
