package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/and161185/docportal/internal/errs"
	"github.com/and161185/docportal/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

func TestUserRepo_Create_OK_and_UniqueViolation(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	u := &model.User{
		Username:    "grade_creator",
		PwdHash:     []byte("h"),
		SaltAuth:    []byte("s"),
		AccessLabel: "Grade Creator",
	}

	mock.ExpectExec(`INSERT INTO portal_users \(username, pwd_hash, salt_auth, access_label\) VALUES \(\$1, \$2, \$3, \$4\)`).
		WithArgs(u.Username, u.PwdHash, u.SaltAuth, u.AccessLabel).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.Create(ctx, u))

	mock.ExpectExec(`INSERT INTO portal_users`).
		WithArgs(u.Username, u.PwdHash, u.SaltAuth, u.AccessLabel).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	require.ErrorIs(t, r.Create(ctx, u), errs.ErrAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_GetByUsername(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	name := "grade_approver"
	created := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT username, pwd_hash, salt_auth, access_label, created_at FROM portal_users WHERE username=\$1`).
		WithArgs(name).
		WillReturnRows(pgxmock.NewRows([]string{"username", "pwd_hash", "salt_auth", "access_label", "created_at"}).
			AddRow(name, []byte("h"), []byte("s"), "Grade_approver", created))
	u, err := r.GetByUsername(ctx, name)
	require.NoError(t, err)
	require.Equal(t, name, u.Username)
	require.Equal(t, "Grade_approver", u.AccessLabel)
	require.Equal(t, created, u.CreatedAt)

	mock.ExpectQuery(`SELECT username, pwd_hash, salt_auth, access_label, created_at FROM portal_users WHERE username=\$1`).
		WithArgs(name).
		WillReturnError(pgx.ErrNoRows)
	_, err = r.GetByUsername(ctx, name)
	require.ErrorIs(t, err, errs.ErrNotFound)

	mock.ExpectQuery(`FROM portal_users WHERE username=\$1`).
		WithArgs(name).
		WillReturnError(context.Canceled)
	_, err = r.GetByUsername(ctx, name)
	require.ErrorIs(t, err, context.Canceled)

	mock.ExpectQuery(`FROM portal_users WHERE username=\$1`).
		WithArgs(name).
		WillReturnError(errors.New("connection refused"))
	_, err = r.GetByUsername(ctx, name)
	require.ErrorContains(t, err, "connection refused")
	require.NotErrorIs(t, err, errs.ErrNotFound)

	mock.ExpectQuery(`FROM portal_users WHERE username=\$1`).
		WithArgs(name).
		WillReturnError(context.DeadlineExceeded)
	_, err = r.GetByUsername(ctx, name)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.NotErrorIs(t, err, errs.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
