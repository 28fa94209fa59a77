package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// Repository persists accounts. Emails are unique.
type Repository interface {
	Create(ctx context.Context, acc Account) error
	FindByEmail(ctx context.Context, email string) (Account, error)
	FindByID(ctx context.Context, id string) (Account, error)
	MarkVerified(ctx context.Context, id string) error
}

// Schema creates the accounts table when missing.
const Schema = `CREATE TABLE IF NOT EXISTS accounts (
    id            UUID PRIMARY KEY,
    username      TEXT NOT NULL,
    email         TEXT NOT NULL UNIQUE,
    password_hash BYTEA NOT NULL,
    is_verified   BOOLEAN NOT NULL DEFAULT FALSE,
    created_at    TIMESTAMPTZ NOT NULL
)`

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed account repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// EnsureSchema applies Schema.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure accounts schema: %w", err)
	}
	return nil
}

// Create inserts a new account.
func (r *PostgresRepository) Create(ctx context.Context, acc Account) error {
	id, err := uuid.Parse(acc.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO accounts (id, username, email, password_hash, is_verified, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`, id, acc.Username, acc.Email, acc.PasswordHash, acc.IsVerified, acc.CreatedAt.UTC())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrAlreadyExists
	}
	return err
}

// FindByEmail fetches an account by email.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (Account, error) {
	return r.findOne(ctx, `SELECT id, username, email, password_hash, is_verified, created_at FROM accounts WHERE email = $1`, email)
}

// FindByID fetches an account by id.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (Account, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return Account{}, ErrNotFound
	}
	return r.findOne(ctx, `SELECT id, username, email, password_hash, is_verified, created_at FROM accounts WHERE id = $1`, uid)
}

func (r *PostgresRepository) findOne(ctx context.Context, query string, arg any) (Account, error) {
	var (
		id        uuid.UUID
		createdAt time.Time
		acc       Account
	)
	err := r.db.QueryRow(ctx, query, arg).Scan(&id, &acc.Username, &acc.Email, &acc.PasswordHash, &acc.IsVerified, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, err
	}
	acc.ID = id.String()
	acc.CreatedAt = createdAt.UTC()
	return acc, nil
}

// MarkVerified flips is_verified for the account.
func (r *PostgresRepository) MarkVerified(ctx context.Context, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `UPDATE accounts SET is_verified = TRUE WHERE id = $1`, uid)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
