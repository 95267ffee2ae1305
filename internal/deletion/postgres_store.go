package deletion

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps tokens in the deletion_tokens table, one row per email.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore builds a Postgres-backed token store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Put upserts the token for its email.
func (s *PostgresStore) Put(ctx context.Context, token Token) error {
	_, err := s.db.Exec(ctx, `INSERT INTO deletion_tokens (email, secret_hash, expires_at, created_at)
        VALUES ($1, $2, $3, now())
        ON CONFLICT (email) DO UPDATE
        SET secret_hash = EXCLUDED.secret_hash, expires_at = EXCLUDED.expires_at, created_at = EXCLUDED.created_at`,
		token.Email, token.SecretHash, token.ExpiresAt.UTC())
	return err
}

// Get reads the token for email.
func (s *PostgresStore) Get(ctx context.Context, email string) (Token, error) {
	token := Token{Email: email}
	err := s.db.QueryRow(ctx, `SELECT secret_hash, expires_at FROM deletion_tokens WHERE email = $1`, email).
		Scan(&token.SecretHash, &token.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Token{}, ErrTokenNotFound
		}
		return Token{}, err
	}
	token.ExpiresAt = token.ExpiresAt.UTC()
	return token, nil
}

// Consume deletes the matching unexpired row in one statement.
func (s *PostgresStore) Consume(ctx context.Context, email, secretHash string, now time.Time) (Token, error) {
	token := Token{Email: email, SecretHash: secretHash}
	err := s.db.QueryRow(ctx, `DELETE FROM deletion_tokens
        WHERE email = $1 AND secret_hash = $2 AND expires_at > $3
        RETURNING expires_at`, email, secretHash, now.UTC()).Scan(&token.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Token{}, errInvalidToken
		}
		return Token{}, err
	}
	token.ExpiresAt = token.ExpiresAt.UTC()
	return token, nil
}

// DeleteExpired removes tokens that expired at or before now.
func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	cmd, err := s.db.Exec(ctx, `DELETE FROM deletion_tokens WHERE expires_at <= $1`, now.UTC())
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
