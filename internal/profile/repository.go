package profile

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/courtchamps/courtchamps/internal/identity"
)

// Repository stores profiles. DeleteFor removes the profile belonging to the
// account; a missing profile is not an error.
type Repository interface {
	Create(ctx context.Context, p Profile) error
	DeleteFor(ctx context.Context, account identity.Account) error
}

// PostgresRepository stores profiles keyed by account identifier.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a profile repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a profile row.
func (r *PostgresRepository) Create(ctx context.Context, p Profile) error {
	accountID, err := uuid.Parse(p.AccountID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO profiles (account_id, email, display_name, created_at)
        VALUES ($1, $2, $3, $4)`, accountID, p.Email, p.DisplayName, p.CreatedAt.UTC())
	return err
}

// DeleteFor removes the profile keyed by the account's identifier.
func (r *PostgresRepository) DeleteFor(ctx context.Context, account identity.Account) error {
	accountID, err := uuid.Parse(account.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `DELETE FROM profiles WHERE account_id = $1`, accountID)
	return err
}
