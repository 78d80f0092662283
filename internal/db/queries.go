package db

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/HanTheDev/oncoassist/internal/models"
)

func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	query := `
        INSERT INTO users (name, email, password_hash)
        VALUES ($1, $2, $3)
        RETURNING id, query_count, created_at, updated_at
    `

	err := db.pool.QueryRow(ctx, query,
		user.Name,
		strings.ToLower(strings.TrimSpace(user.Email)),
		user.PasswordHash,
	).Scan(
		&user.ID,
		&user.QueryCount,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	return translate(err)
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
        SELECT id, name, email, password_hash, query_count, created_at, updated_at
        FROM users
        WHERE email = $1
    `

	return scanUser(db.pool.QueryRow(ctx, query, strings.ToLower(strings.TrimSpace(email))))
}

func (db *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	query := `
        SELECT id, name, email, password_hash, query_count, created_at, updated_at
        FROM users
        WHERE id = $1
    `

	return scanUser(db.pool.QueryRow(ctx, query, id))
}

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.QueryCount,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, translate(err)
	}

	return &user, nil
}

func (db *DB) QueryCount(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := db.pool.QueryRow(ctx, `SELECT query_count FROM users WHERE id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, translate(err)
	}
	return count, nil
}

func (db *DB) SetQueryCount(ctx context.Context, userID int64, n int64) error {
	query := `
        UPDATE users
        SET query_count = $2, updated_at = NOW()
        WHERE id = $1
    `

	tag, err := db.pool.Exec(ctx, query, userID, n)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ChargeQueryCount adds one to the user's counter in a single statement.
// A negative limit means no limit. ok is false when the counter already
// reached limit.
func (db *DB) ChargeQueryCount(ctx context.Context, userID int64, limit int64) (int64, bool, error) {
	query := `
        UPDATE users
        SET query_count = query_count + 1, updated_at = NOW()
        WHERE id = $1 AND ($2::BIGINT < 0 OR query_count < $2::BIGINT)
        RETURNING query_count
    `

	var count int64
	err := db.pool.QueryRow(ctx, query, userID, limit).Scan(&count)
	if err == nil {
		return count, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, false, translate(err)
	}

	// No row updated: either the user is gone or the limit held.
	count, err = db.QueryCount(ctx, userID)
	if err != nil {
		return 0, false, err
	}
	return count, false, nil
}

func (db *DB) LogQuery(ctx context.Context, q *models.Query) error {
	query := `
        INSERT INTO queries (user_id, type, content)
        VALUES ($1, $2, $3)
        RETURNING id, timestamp
    `

	return translate(db.pool.QueryRow(ctx, query, q.UserID, q.Type, q.Content).Scan(&q.ID, &q.Timestamp))
}

func (db *DB) LogAnalysis(ctx context.Context, a *models.Analysis) error {
	query := `
        INSERT INTO analyses (user_id, type, result, confidence, risk_level)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, timestamp
    `

	return translate(db.pool.QueryRow(ctx, query,
		a.UserID,
		a.Type,
		a.Result,
		a.Confidence,
		a.RiskLevel,
	).Scan(&a.ID, &a.Timestamp))
}

func (db *DB) GetUsageSummary(ctx context.Context, userID int64) (*models.UsageSummary, error) {
	query := `
        SELECT u.id,
               u.query_count,
               (SELECT COUNT(*) FROM queries q WHERE q.user_id = u.id),
               (SELECT COUNT(*) FROM analyses a WHERE a.user_id = u.id)
        FROM users u
        WHERE u.id = $1
    `

	var summary models.UsageSummary
	err := db.pool.QueryRow(ctx, query, userID).Scan(
		&summary.UserID,
		&summary.QueryCount,
		&summary.ChatTurns,
		&summary.Analyses,
	)
	if err != nil {
		return nil, translate(err)
	}

	return &summary, nil
}
