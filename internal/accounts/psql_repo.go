package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/2beens/rolegate/pkg"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const accountSchema = `
CREATE TABLE IF NOT EXISTS account (
	username      TEXT PRIMARY KEY,
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);`

type PsqlRepo struct {
	db *pgxpool.Pool
}

func NewPsqlRepo(db *pgxpool.Pool) *PsqlRepo {
	return &PsqlRepo{
		db: db,
	}
}

// EnsureSchema creates the account table if it does not exist yet.
func (r *PsqlRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, accountSchema); err != nil {
		return fmt.Errorf("create account table: %w", err)
	}
	return nil
}

func (r *PsqlRepo) Get(ctx context.Context, username string) (*Account, error) {
	var account Account
	var role string
	err := r.db.QueryRow(
		ctx,
		`SELECT username, password_hash, role FROM account WHERE username = $1;`,
		username,
	).Scan(&account.Username, &account.PasswordHash, &role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}

	account.Role = ParseRole(role)
	return &account, nil
}

func (r *PsqlRepo) Insert(ctx context.Context, account Account) error {
	_, err := r.db.Exec(
		ctx,
		`INSERT INTO account (username, password_hash, role) VALUES ($1, $2, $3);`,
		account.Username, account.PasswordHash, account.Role.String(),
	)
	if err != nil {
		if pkg.IsUniqueViolationError(err) {
			return ErrDuplicateUsername
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (r *PsqlRepo) Update(ctx context.Context, account Account) error {
	tag, err := r.db.Exec(
		ctx,
		`UPDATE account SET password_hash = $1, role = $2 WHERE username = $3;`,
		account.PasswordHash, account.Role.String(), account.Username,
	)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}

	return nil
}
