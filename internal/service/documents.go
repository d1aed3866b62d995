package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/and161185/docportal/internal/access"
	"github.com/and161185/docportal/internal/errs"
	"github.com/and161185/docportal/internal/model"
	"github.com/and161185/docportal/internal/registry"
	"github.com/and161185/docportal/internal/repository"
	"github.com/and161185/docportal/internal/tokens"
)

// DocumentService lists documents and mints and redeems resource tokens.
type DocumentService interface {
	// List returns the summaries visible to username, in store order.
	List(ctx context.Context, username string) ([]model.DocumentSummary, error)
	// IssueResourceToken mints a single-use token for docID under sessionToken.
	IssueResourceToken(ctx context.Context, sessionToken string, docID int64) (model.ResourceGrant, error)
	// Fetch redeems a resource token for the document payload, exactly once.
	Fetch(ctx context.Context, resourceToken string) (*model.DocumentFile, error)
}

// DocumentServiceImpl is the default DocumentService.
type DocumentServiceImpl struct {
	docs     repository.DocumentRepository
	users    repository.UserRepository
	policy   *access.Policy
	sessions SessionService
	signer   *tokens.Signer
	reg      registry.Store
	now      func() time.Time
}

var _ DocumentService = (*DocumentServiceImpl)(nil)

// NewDocumentService constructs DocumentService with required dependencies.
func NewDocumentService(
	docs repository.DocumentRepository,
	users repository.UserRepository,
	policy *access.Policy,
	sessions SessionService,
	signer *tokens.Signer,
	reg registry.Store,
) *DocumentServiceImpl {
	return &DocumentServiceImpl{
		docs:     docs,
		users:    users,
		policy:   policy,
		sessions: sessions,
		signer:   signer,
		reg:      reg,
		now:      time.Now,
	}
}

// labelFor re-derives the approver label for username on every call.
func (s *DocumentServiceImpl) labelFor(ctx context.Context, username string) (string, error) {
	u, err := s.users.GetByUsername(ctx, username)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return s.policy.LabelFor(username)
	case err != nil:
		return "", err
	}
	return s.policy.LabelForUser(u)
}

// List returns documents whose approver slots contain the user's label.
func (s *DocumentServiceImpl) List(ctx context.Context, username string) ([]model.DocumentSummary, error) {
	label, err := s.labelFor(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.docs.ListByLabel(ctx, label)
}

// IssueResourceToken verifies the session, re-checks document access and
// registers a fresh resource token against the session.
func (s *DocumentServiceImpl) IssueResourceToken(ctx context.Context, sessionToken string, docID int64) (model.ResourceGrant, error) {
	p, err := s.sessions.Verify(ctx, sessionToken)
	if err != nil {
		return model.ResourceGrant{}, err
	}
	label, err := s.labelFor(ctx, p.Username)
	if err != nil {
		return model.ResourceGrant{}, err
	}
	ok, err := s.docs.Authorized(ctx, docID, label)
	if err != nil {
		return model.ResourceGrant{}, err
	}
	if !ok {
		return model.ResourceGrant{}, fmt.Errorf("%w: document %d", errs.ErrAccessDenied, docID)
	}

	g, err := s.signer.IssueResource(p.Username, docID)
	if err != nil {
		return model.ResourceGrant{}, err
	}
	if err := s.reg.Register(registry.Entry{
		ResourceToken: g.Token,
		SessionToken:  sessionToken,
		DocID:         docID,
		IssuedAt:      g.IssuedAt,
		ExpiresAt:     g.ExpiresAt,
	}); err != nil {
		return model.ResourceGrant{}, err
	}
	return g, nil
}

// Fetch validates the token, claims its registry entry, re-checks access and
// returns the payload. The entry is consumed only when the payload is returned.
func (s *DocumentServiceImpl) Fetch(ctx context.Context, resourceToken string) (*model.DocumentFile, error) {
	g, err := s.signer.ParseResource(resourceToken)
	if err != nil {
		return nil, err
	}
	e, err := s.reg.Claim(resourceToken, s.now())
	if err != nil {
		return nil, err
	}
	if e.DocID != g.DocID {
		s.reg.Release(resourceToken)
		return nil, errs.ErrNoLongerValid
	}

	f, err := s.loadFile(ctx, g)
	if err != nil {
		s.reg.Release(resourceToken)
		return nil, err
	}
	if !s.reg.Complete(resourceToken) {
		// session revoked while the payload was loading
		return nil, errs.ErrNoLongerValid
	}
	if f.FileName == "" {
		f.FileName = fmt.Sprintf("document_%d.pdf", g.DocID)
	}
	return f, nil
}

func (s *DocumentServiceImpl) loadFile(ctx context.Context, g model.ResourceGrant) (*model.DocumentFile, error) {
	label, err := s.labelFor(ctx, g.Username)
	if err != nil {
		return nil, err
	}
	f, err := s.docs.GetFile(ctx, g.DocID, label)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, errs.ErrNotFoundOrDenied
	}
	return f, err
}
