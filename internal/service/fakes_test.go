package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/and161185/docportal/internal/access"
	"github.com/and161185/docportal/internal/errs"
	"github.com/and161185/docportal/internal/limiter"
	"github.com/and161185/docportal/internal/model"
	"github.com/and161185/docportal/internal/registry"
	"github.com/and161185/docportal/internal/repository"
	"github.com/and161185/docportal/internal/repository/memory"
	"github.com/and161185/docportal/internal/tokens"
	"github.com/stretchr/testify/require"
)

type fakeDoc struct {
	model.DocumentSummary
	payload   []byte
	approvers [4]string
}

type fakeDocs struct {
	mu   sync.Mutex
	rows []fakeDoc

	err       error
	getCalls  int
	listCalls int
}

var _ repository.DocumentRepository = (*fakeDocs)(nil)

func (d fakeDoc) visibleTo(label string) bool {
	for _, a := range d.approvers {
		if a == label {
			return true
		}
	}
	return false
}

func (f *fakeDocs) ListByLabel(_ context.Context, label string) ([]model.DocumentSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.err != nil {
		return nil, f.err
	}
	var out []model.DocumentSummary
	for _, r := range f.rows {
		if r.visibleTo(label) {
			out = append(out, r.DocumentSummary)
		}
	}
	return out, nil
}

func (f *fakeDocs) Authorized(_ context.Context, id int64, label string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	for _, r := range f.rows {
		if r.ID == id && r.visibleTo(label) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeDocs) GetFile(_ context.Context, id int64, label string) (*model.DocumentFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.err != nil {
		return nil, f.err
	}
	for _, r := range f.rows {
		if r.ID == id && r.visibleTo(label) && len(r.payload) > 0 {
			f := &model.DocumentFile{ID: id, Payload: append([]byte(nil), r.payload...)}
			if r.FileName != nil {
				f.FileName = *r.FileName
			}
			return f, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeDocs) Ping(context.Context) error { return f.err }

// setApprovers rewrites the approver slots of a row, simulating a change in the store.
func (f *fakeDocs) setApprovers(id int64, approvers [4]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.rows {
		if f.rows[i].ID == id {
			f.rows[i].approvers = approvers
		}
	}
}

func strp(s string) *string { return &s }

func sampleDocs() *fakeDocs {
	d := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	return &fakeDocs{rows: []fakeDoc{
		{
			DocumentSummary: model.DocumentSummary{ID: 1, Title: "Creator only", FileName: strp("c.pdf"), CreatedDate: &d},
			payload:         []byte("%PDF-creator"),
			approvers:       [4]string{"", "Grade Creator", "", ""},
		},
		{
			DocumentSummary: model.DocumentSummary{ID: 2, Title: "Approver only"},
			payload:         []byte("%PDF-approver"),
			approvers:       [4]string{"", "", "", "Grade_approver"},
		},
		{
			DocumentSummary: model.DocumentSummary{ID: 3, Title: "Both, unnamed file"},
			payload:         []byte("%PDF-both"),
			approvers:       [4]string{"Grade_approver", "Grade Creator", "", ""},
		},
		{
			DocumentSummary: model.DocumentSummary{ID: 4, Title: "No payload"},
			approvers:       [4]string{"Grade Creator", "", "", ""},
		},
	}}
}

type harness struct {
	users    *memory.Users
	docs     *fakeDocs
	reg      *registry.Memory
	signer   *tokens.Signer
	sessions *SessionServiceImpl
	svc      *DocumentServiceImpl
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	users, err := memory.NewUsers([]memory.Credential{
		{Username: access.RoleGradeCreator, Password: "123"},
		{Username: access.RoleGradeApprover, Password: "123"},
		{Username: "visitor", Password: "123"},
	})
	require.NoError(t, err)

	h := &harness{
		users:  users,
		docs:   sampleDocs(),
		reg:    registry.NewMemory(),
		signer: tokens.NewSigner([]byte("test-secret"), 10*time.Minute, 5*time.Minute),
	}
	h.sessions = NewSessionService(users, h.signer, h.reg, limiter.NewMemory(time.Minute, 100, time.Minute))
	h.svc = NewDocumentService(h.docs, users, access.NewPolicy(nil), h.sessions, h.signer, h.reg)
	return h
}

func (h *harness) login(t *testing.T, user string) string {
	t.Helper()
	tok, err := h.sessions.Login(context.Background(), user, "123", "127.0.0.1")
	require.NoError(t, err)
	return tok.AccessToken
}
