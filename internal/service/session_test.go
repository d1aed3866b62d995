package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/and161185/docportal/internal/errs"
	"github.com/and161185/docportal/internal/limiter"
	"github.com/and161185/docportal/internal/model"
	"github.com/and161185/docportal/internal/registry"
	"github.com/and161185/docportal/internal/tokens"
	"github.com/stretchr/testify/require"
)

type fakeLimiter struct {
	allowOK  bool
	allowErr error

	failBlocked bool

	failureCalls int
	successCalls int
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(context.Context, string, []byte) (bool, time.Duration, error) {
	return l.allowOK, 0, l.allowErr
}
func (l *fakeLimiter) Success(context.Context, string, []byte) error {
	l.successCalls++
	return nil
}
func (l *fakeLimiter) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	l.failureCalls++
	return l.failBlocked, 0, nil
}

type brokenUsers struct{ err error }

func (b brokenUsers) GetByUsername(context.Context, string) (*model.User, error) { return nil, b.err }

func TestLogin_AllConfiguredPairsSucceed(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	for _, u := range []string{"grade_creator", "grade_approver", "visitor"} {
		tok, err := h.sessions.Login(context.Background(), u, "123", "127.0.0.1")
		require.NoError(t, err, u)
		require.NotEmpty(t, tok.AccessToken)
		require.WithinDuration(t, time.Now().Add(10*time.Minute), tok.ExpiresAt, 2*time.Second)

		p, err := h.sessions.Verify(context.Background(), tok.AccessToken)
		require.NoError(t, err)
		require.Equal(t, u, p.Username)
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	cases := []struct{ user, pass string }{
		{"grade_creator", "1234"},
		{"grade_creator", ""},
		{"", "123"},
		{"ghost", "123"},
		{"Grade_Creator", "123"},
	}
	for _, c := range cases {
		_, err := h.sessions.Login(ctx, c.user, c.pass, "127.0.0.1")
		require.ErrorIs(t, err, errs.ErrUnauthorized, "%q/%q", c.user, c.pass)
	}
}

func TestLogin_RateLimiter(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	lim := &fakeLimiter{allowOK: true}
	s := NewSessionService(h.users, h.signer, h.reg, lim)
	ctx := context.Background()

	lim.allowErr = errors.New("lim-err")
	_, err := s.Login(ctx, "grade_creator", "123", "1.2.3.4")
	require.ErrorContains(t, err, "lim-err")
	lim.allowErr = nil

	lim.allowOK = false
	_, err = s.Login(ctx, "grade_creator", "123", "1.2.3.4")
	require.ErrorIs(t, err, errs.ErrRateLimited)
	lim.allowOK = true

	lim.failBlocked = true
	_, err = s.Login(ctx, "grade_creator", "wrong", "1.2.3.4")
	require.ErrorIs(t, err, errs.ErrRateLimited)
	lim.failBlocked = false

	_, err = s.Login(ctx, "grade_creator", "wrong", "1.2.3.4")
	require.ErrorIs(t, err, errs.ErrUnauthorized)
	require.Equal(t, 2, lim.failureCalls)

	_, err = s.Login(ctx, "grade_creator", "123", "1.2.3.4")
	require.NoError(t, err)
	require.Equal(t, 1, lim.successCalls)
}

func TestLogin_StoreErrorPropagates(t *testing.T) {
	t.Parallel()
	s := NewSessionService(brokenUsers{err: errors.New("idp down")}, tokens.NewSigner([]byte("k"), 0, 0), registry.NewMemory(), nil)
	_, err := s.Login(context.Background(), "grade_creator", "123", "")
	require.ErrorContains(t, err, "idp down")
	require.NotErrorIs(t, err, errs.ErrUnauthorized)
}

func TestLogin_StoreErrorDoesNotCountAsFailure(t *testing.T) {
	t.Parallel()
	lim := &fakeLimiter{allowOK: true}
	s := NewSessionService(brokenUsers{err: fmt.Errorf("get user: %w", context.DeadlineExceeded)}, tokens.NewSigner([]byte("k"), 0, 0), registry.NewMemory(), lim)
	_, err := s.Login(context.Background(), "grade_creator", "123", "10.0.0.1")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.NotErrorIs(t, err, errs.ErrUnauthorized)
	require.Zero(t, lim.failureCalls)
}

func TestVerify_Failures(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.sessions.Verify(ctx, "")
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	_, err = h.sessions.Verify(ctx, "abc.def.ghi")
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	past := h.signer.WithClock(func() time.Time { return time.Now().Add(-11 * time.Minute) })
	expired, _, err := past.IssueSession("grade_creator")
	require.NoError(t, err)
	_, err = h.sessions.Verify(ctx, expired)
	require.ErrorIs(t, err, errs.ErrUnauthorized)
}

func TestLogout_RevokesAndIsIdempotent(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()
	tok := h.login(t, "grade_creator")

	h.sessions.Logout(ctx, tok)
	h.sessions.Logout(ctx, tok)
	h.sessions.Logout(ctx, "")
	h.sessions.Logout(ctx, "junk")

	_, err := h.sessions.Verify(ctx, tok)
	require.ErrorIs(t, err, errs.ErrUnauthorized)
	require.ErrorIs(t, err, errs.ErrRevoked)

	other := h.login(t, "grade_creator")
	_, err = h.sessions.Verify(ctx, other)
	require.NoError(t, err, "a fresh session for the same user is unaffected")
}
