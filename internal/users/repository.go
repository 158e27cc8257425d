package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Repository persists user records.
type Repository interface {
	GetUser(ctx context.Context, telegramID int64) (User, error)
	Insert(ctx context.Context, p Profile, status Status) (User, error)
	UpdateProfile(ctx context.Context, p Profile, status Status) (User, error)
	Register(ctx context.Context, telegramID int64, email, phone string) (User, error)
}

const userColumns = `id, telegram_id, username, first_name, last_name, email, phone, status, created_at, updated_at`

// PostgresRepository is the sqlx-backed Repository.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository wraps an open database handle.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetUser returns ErrNotFound when the Telegram ID is unknown.
func (r *PostgresRepository) GetUser(ctx context.Context, telegramID int64) (User, error) {
	var u User
	err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE telegram_id = $1`, telegramID)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user %d: %w", telegramID, err)
	}
	return u, nil
}

// Insert creates a record; a duplicate Telegram ID yields ErrAlreadyExists.
func (r *PostgresRepository) Insert(ctx context.Context, p Profile, status Status) (User, error) {
	var u User
	err := r.db.GetContext(ctx, &u, `
		INSERT INTO users (id, telegram_id, username, first_name, last_name, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+userColumns,
		uuid.New(), p.TelegramID, p.Username, p.FirstName, p.LastName, status,
	)
	if isUniqueViolation(err) {
		return User{}, ErrAlreadyExists
	}
	if err != nil {
		return User{}, fmt.Errorf("insert user %d: %w", p.TelegramID, err)
	}
	return u, nil
}

// UpdateProfile refreshes names and sets status.
func (r *PostgresRepository) UpdateProfile(ctx context.Context, p Profile, status Status) (User, error) {
	var u User
	err := r.db.GetContext(ctx, &u, `
		UPDATE users
		SET username = $2, first_name = $3, last_name = $4, status = $5, updated_at = now()
		WHERE telegram_id = $1
		RETURNING `+userColumns,
		p.TelegramID, p.Username, p.FirstName, p.LastName, status,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("update user %d: %w", p.TelegramID, err)
	}
	return u, nil
}

// Register stores the contact details and marks the user registered.
// An empty phone is stored as NULL.
func (r *PostgresRepository) Register(ctx context.Context, telegramID int64, email, phone string) (User, error) {
	var u User
	err := r.db.GetContext(ctx, &u, `
		UPDATE users
		SET email = $2, phone = $3, status = $4, updated_at = now()
		WHERE telegram_id = $1
		RETURNING `+userColumns,
		telegramID, nullString(email), nullString(phone), StatusRegistered,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("register user %d: %w", telegramID, err)
	}
	return u, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
