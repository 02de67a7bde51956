package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/roomquest/idverify/internal/domain"
)

// CredentialRepo stores the single Cloudbeds OAuth credential (row id=1).
type CredentialRepo interface {
	// Get returns (nil, nil) when the property has never been authorized.
	Get(ctx context.Context) (*domain.Credential, error)
	// Upsert writes the credential row, creating it on first authorization.
	Upsert(ctx context.Context, c *domain.Credential) error
	// Update replaces the stored tokens; fails if no row exists.
	Update(ctx context.Context, c *domain.Credential) error
}

type CredentialRepoImpl struct{ pool *pgxpool.Pool }

func NewCredentialRepo(pool *pgxpool.Pool) *CredentialRepoImpl {
	return &CredentialRepoImpl{pool: pool}
}

func (r *CredentialRepoImpl) Get(ctx context.Context) (*domain.Credential, error) {
	const q = `SELECT access_token, refresh_token, token_type, expires_in, scope, updated_at
  FROM cloudbeds_tokens WHERE id = 1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var c domain.Credential
	err := r.pool.QueryRow(ctx, q).Scan(
		&c.AccessToken, &c.RefreshToken, &c.TokenType, &c.ExpiresIn, &c.Scope, &c.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CredentialRepoImpl) Upsert(ctx context.Context, c *domain.Credential) error {
	const q = `INSERT INTO cloudbeds_tokens (id, access_token, refresh_token, token_type, expires_in, scope, updated_at)
  VALUES (1, $1, $2, $3, $4, $5, now())
  ON CONFLICT (id) DO UPDATE SET
    access_token = EXCLUDED.access_token,
    refresh_token = EXCLUDED.refresh_token,
    token_type = EXCLUDED.token_type,
    expires_in = EXCLUDED.expires_in,
    scope = EXCLUDED.scope,
    updated_at = now()
  RETURNING updated_at`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return r.pool.QueryRow(ctx, q,
		c.AccessToken, c.RefreshToken, c.TokenType, c.ExpiresIn, c.Scope,
	).Scan(&c.UpdatedAt)
}

func (r *CredentialRepoImpl) Update(ctx context.Context, c *domain.Credential) error {
	const q = `UPDATE cloudbeds_tokens SET
    access_token=$1, refresh_token=$2, token_type=$3, expires_in=$4, scope=$5, updated_at=now()
  WHERE id = 1
  RETURNING updated_at`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	err := r.pool.QueryRow(ctx, q,
		c.AccessToken, c.RefreshToken, c.TokenType, c.ExpiresIn, c.Scope,
	).Scan(&c.UpdatedAt)
	if err == pgx.ErrNoRows {
		return domain.ErrNoCredential
	}
	return err
}
