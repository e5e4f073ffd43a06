package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/dbx"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
)

const columns = `id, token, subject_id, issued_at, expires_at, revoked_at, deleted_at, ip_address, user_agent`

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) FindValid(ctx context.Context, token string, now time.Time) (*models.RefreshToken, error) {
	query := `
		SELECT ` + columns + `
		FROM refresh_tokens
		WHERE token = $1 AND deleted_at IS NULL AND revoked_at IS NULL AND expires_at > $2
	`
	return r.queryOne(ctx, query, token, now)
}

func (r *PostgresRepository) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	query := `
		SELECT ` + columns + `
		FROM refresh_tokens
		WHERE token = $1 AND deleted_at IS NULL
	`
	return r.queryOne(ctx, query, token)
}

func (r *PostgresRepository) Insert(ctx context.Context, row *models.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (token, subject_id, issued_at, expires_at, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		row.Token, row.SubjectID, row.IssuedAt, row.ExpiresAt, row.IPAddress, row.UserAgent).Scan(&row.ID)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrDuplicateToken
		}
		return fmt.Errorf("%w: error performing sql request: %w", common.ErrorInternal, err)
	}
	return nil
}

func (r *PostgresRepository) Revoke(ctx context.Context, token string, at time.Time) (bool, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = $2
		WHERE token = $1 AND revoked_at IS NULL AND deleted_at IS NULL
	`
	n, err := r.exec(ctx, query, token, at)
	return n > 0, err
}

func (r *PostgresRepository) RevokeAllForSubject(ctx context.Context, subjectID int64, at time.Time) (int64, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = $2
		WHERE subject_id = $1 AND revoked_at IS NULL AND deleted_at IS NULL
	`
	return r.exec(ctx, query, subjectID, at)
}

func (r *PostgresRepository) SweepExpired(ctx context.Context, cutoff, deletedAt time.Time) ([]*models.RefreshToken, error) {
	query := `
		UPDATE refresh_tokens
		SET deleted_at = $2
		WHERE expires_at < $1 AND deleted_at IS NULL
		RETURNING ` + columns
	return r.queryMany(ctx, query, cutoff, deletedAt)
}

func (r *PostgresRepository) ListForSubject(ctx context.Context, subjectID int64) ([]*models.RefreshToken, error) {
	query := `
		SELECT ` + columns + `
		FROM refresh_tokens
		WHERE subject_id = $1 AND deleted_at IS NULL
		ORDER BY issued_at DESC, id DESC
	`
	return r.queryMany(ctx, query, subjectID)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%w: db error: %w", common.ErrorInternal, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: db error: %w", common.ErrorInternal, err)
	}
	return n, nil
}

func (r *PostgresRepository) queryOne(ctx context.Context, query string, args ...any) (*models.RefreshToken, error) {
	row, err := scan(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("%w: db error: %w", common.ErrorInternal, err)
	}
	return row, nil
}

func (r *PostgresRepository) queryMany(ctx context.Context, query string, args ...any) ([]*models.RefreshToken, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: db error: %w", common.ErrorInternal, err)
	}
	defer rows.Close()

	var out []*models.RefreshToken
	for rows.Next() {
		t, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: db error: %w", common.ErrorInternal, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: db error: %w", common.ErrorInternal, err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (*models.RefreshToken, error) {
	var (
		t                  models.RefreshToken
		revoked, deletedAt sql.NullTime
	)
	if err := s.Scan(&t.ID, &t.Token, &t.SubjectID, &t.IssuedAt, &t.ExpiresAt,
		&revoked, &deletedAt, &t.IPAddress, &t.UserAgent); err != nil {
		return nil, err
	}
	if revoked.Valid {
		t.RevokedAt = &revoked.Time
	}
	if deletedAt.Valid {
		t.DeletedAt = &deletedAt.Time
	}
	return &t, nil
}
