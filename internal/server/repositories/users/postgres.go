package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/dbx"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
)

const columns = `id, email, password_hash, is_active, is_email_verified, oauth_provider, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, p *models.Principal) (*models.Principal, error) {

	query :=
		`INSERT INTO principals (email, password_hash, is_active, is_email_verified, oauth_provider)
         VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		normalizeEmail(p.Email), p.PasswordHash, p.IsActive, p.IsEmailVerified, p.OAuthProvider).Scan(&p.ID, &p.CreatedAt)

	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("%w: db error: %w", common.ErrorInternal, err)
	}

	p.Email = normalizeEmail(p.Email)
	return p, nil
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*models.Principal, error) {
	query :=
		`SELECT ` + columns + ` FROM principals
		 WHERE email = $1
		 `
	return r.queryOne(ctx, query, normalizeEmail(email))
}

func (r *PostgresRepository) FindByID(ctx context.Context, id int64) (*models.Principal, error) {
	query :=
		`SELECT ` + columns + ` FROM principals
		 WHERE id = $1
		 `
	return r.queryOne(ctx, query, id)
}

func (r *PostgresRepository) LockForUpdate(ctx context.Context, id int64) (*models.Principal, error) {
	query :=
		`SELECT ` + columns + ` FROM principals
		 WHERE id = $1
		 FOR UPDATE
		 `
	return r.queryOne(ctx, query, id)
}

func (r *PostgresRepository) SetActive(ctx context.Context, id int64, active bool) error {
	query :=
		`UPDATE principals SET is_active = $2
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, id, active)
	if err != nil {
		return fmt.Errorf("%w: db error: %w", common.ErrorInternal, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: db error: %w", common.ErrorInternal, err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) queryOne(ctx context.Context, query string, args ...any) (*models.Principal, error) {
	p := &models.Principal{}
	var provider sql.NullString
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&p.ID, &p.Email, &p.PasswordHash, &p.IsActive, &p.IsEmailVerified, &provider, &p.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("%w: db error: %w", common.ErrorInternal, err)
	}

	p.OAuthProvider = provider.String
	return p, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
