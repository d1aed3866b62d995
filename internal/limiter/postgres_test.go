package limiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

var ipHash = HashIP("10.5.33.201:51234")

func TestPG_Allow(t *testing.T) {
	mock := newMock(t)
	l := NewPG(mock, 15*time.Minute, 5, 15*time.Minute)
	ctx := context.Background()
	const sel = `SELECT blocked_until FROM login_limiter WHERE username=\$1 AND ip_hash=\$2`

	mock.ExpectQuery(sel).WithArgs("u", ipHash).WillReturnError(pgx.ErrNoRows)
	ok, dur, err := l.Allow(ctx, "u", ipHash)
	require.NoError(t, err)
	require.True(t, ok)
	require.Zero(t, dur)

	mock.ExpectQuery(sel).WithArgs("u", ipHash).
		WillReturnRows(pgxmock.NewRows([]string{"blocked_until"}).AddRow(time.Now().Add(10 * time.Minute)))
	ok, dur, err = l.Allow(ctx, "u", ipHash)
	require.NoError(t, err)
	require.False(t, ok)
	require.Greater(t, dur, time.Duration(0))

	mock.ExpectQuery(sel).WithArgs("u", ipHash).
		WillReturnRows(pgxmock.NewRows([]string{"blocked_until"}).AddRow(time.Unix(0, 0)))
	ok, _, err = l.Allow(ctx, "u", ipHash)
	require.NoError(t, err)
	require.True(t, ok)

	mock.ExpectQuery(sel).WithArgs("u", ipHash).WillReturnError(errors.New("db boom"))
	ok, _, err = l.Allow(ctx, "u", ipHash)
	require.Error(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPG_Success(t *testing.T) {
	mock := newMock(t)
	l := NewPG(mock, time.Minute, 5, time.Minute)

	mock.ExpectExec(`DELETE FROM login_limiter WHERE username=\$1 AND ip_hash=\$2`).
		WithArgs("u", ipHash).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, l.Success(context.Background(), "u", ipHash))

	mock.ExpectExec(`DELETE FROM login_limiter`).
		WithArgs("u", ipHash).
		WillReturnError(errors.New("exec fail"))
	require.Error(t, l.Success(context.Background(), "u", ipHash))
}

func TestPG_Failure(t *testing.T) {
	mock := newMock(t)
	window := 5 * time.Minute
	l := NewPG(mock, window, 5, 10*time.Minute)
	ctx := context.Background()
	const ins = `INSERT INTO login_limiter .* RETURNING fail_count`

	mock.ExpectQuery(ins).WithArgs("u", ipHash, window).
		WillReturnRows(pgxmock.NewRows([]string{"fail_count"}).AddRow(2))
	blocked, dur, err := l.Failure(ctx, "u", ipHash)
	require.NoError(t, err)
	require.False(t, blocked)
	require.Zero(t, dur)

	mock.ExpectQuery(ins).WithArgs("u", ipHash, window).
		WillReturnRows(pgxmock.NewRows([]string{"fail_count"}).AddRow(5))
	mock.ExpectExec(`UPDATE login_limiter SET blocked_until=\$3 WHERE username=\$1 AND ip_hash=\$2`).
		WithArgs("u", ipHash, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	blocked, dur, err = l.Failure(ctx, "u", ipHash)
	require.NoError(t, err)
	require.True(t, blocked)
	require.Equal(t, 10*time.Minute, dur)

	mock.ExpectQuery(ins).WithArgs("u", ipHash, window).WillReturnError(errors.New("query error"))
	_, _, err = l.Failure(ctx, "u", ipHash)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHashIP_Determinism(t *testing.T) {
	a := HashIP("1.2.3.4:123")
	b := HashIP("1.2.3.4:456")
	c := HashIP("5.6.7.8:321")
	require.Len(t, a, 32)
	require.Equal(t, a, b, "port must not change the key")
	require.NotEqual(t, a, c)
	require.Equal(t, HashIP("1.2.3.4"), a)
}
