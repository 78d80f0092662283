package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HanTheDev/oncoassist/internal/models"
)

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i := range dest {
		switch d := dest[i].(type) {
		case *int64:
			*d = r.values[i].(int64)
		case *string:
			*d = r.values[i].(string)
		}
	}
	return nil
}

type fakePool struct {
	rows    []fakeRow
	tag     pgconn.CommandTag
	execErr error
	queries []string
	args    [][]any
}

func (p *fakePool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	p.queries = append(p.queries, sql)
	p.args = append(p.args, args)
	return p.tag, p.execErr
}

func (p *fakePool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	p.queries = append(p.queries, sql)
	p.args = append(p.args, args)
	row := p.rows[0]
	p.rows = p.rows[1:]
	return row
}

func (p *fakePool) Ping(ctx context.Context) error { return nil }

func TestTranslate(t *testing.T) {
	assert.NoError(t, translate(nil))
	assert.ErrorIs(t, translate(pgx.ErrNoRows), ErrNotFound)

	dup := &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}
	assert.ErrorIs(t, translate(dup), ErrDuplicateEmail)

	other := errors.New("boom")
	assert.Equal(t, other, translate(other))
}

func TestChargeQueryCount(t *testing.T) {
	t.Run("increments", func(t *testing.T) {
		pool := &fakePool{rows: []fakeRow{{values: []any{int64(8)}}}}
		db := &DB{pool: pool}

		n, ok, err := db.ChargeQueryCount(context.Background(), 3, -1)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(8), n)
		assert.Equal(t, []any{int64(3), int64(-1)}, pool.args[0])
	})

	t.Run("limit held", func(t *testing.T) {
		pool := &fakePool{rows: []fakeRow{
			{err: pgx.ErrNoRows},
			{values: []any{int64(5)}},
		}}
		db := &DB{pool: pool}

		n, ok, err := db.ChargeQueryCount(context.Background(), 3, 5)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, int64(5), n)
	})

	t.Run("missing user", func(t *testing.T) {
		pool := &fakePool{rows: []fakeRow{
			{err: pgx.ErrNoRows},
			{err: pgx.ErrNoRows},
		}}
		db := &DB{pool: pool}

		_, _, err := db.ChargeQueryCount(context.Background(), 3, 5)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestSetQueryCount(t *testing.T) {
	db := &DB{pool: &fakePool{tag: pgconn.NewCommandTag("UPDATE 1")}}
	assert.NoError(t, db.SetQueryCount(context.Background(), 1, 0))

	db = &DB{pool: &fakePool{tag: pgconn.NewCommandTag("UPDATE 0")}}
	assert.ErrorIs(t, db.SetQueryCount(context.Background(), 1, 0), ErrNotFound)
}

func TestGetUserByEmail_Normalizes(t *testing.T) {
	pool := &fakePool{rows: []fakeRow{{err: pgx.ErrNoRows}}}
	db := &DB{pool: pool}

	_, err := db.GetUserByEmail(context.Background(), "  Ada@Example.COM ")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, []any{"ada@example.com"}, pool.args[0])
}

func TestCreateUser_Duplicate(t *testing.T) {
	pool := &fakePool{rows: []fakeRow{{err: &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}}}}
	db := &DB{pool: pool}

	err := db.CreateUser(context.Background(), &models.User{Email: "a@b.c", PasswordHash: "x"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestMigrate(t *testing.T) {
	pool := &fakePool{}
	db := &DB{pool: pool}

	require.NoError(t, db.Migrate(context.Background()))
	assert.Contains(t, pool.queries[0], "CREATE TABLE IF NOT EXISTS users")

	pool.execErr = errors.New("permission denied")
	assert.Error(t, db.Migrate(context.Background()))
}
