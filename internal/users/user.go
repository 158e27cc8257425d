package users

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no user record exists for a Telegram ID.
	ErrNotFound = errors.New("users: not found")
	// ErrAlreadyExists is returned when inserting a Telegram ID that is already stored.
	ErrAlreadyExists = errors.New("users: already exists")
)

// Status is the lifecycle state of a persisted user.
type Status string

const (
	StatusNew        Status = "NEW"
	StatusReturned   Status = "RETURNED"
	StatusRegistered Status = "REGISTERED"
	StatusCancelled  Status = "CANCELLED"
	StatusDeleted    Status = "DELETED"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusReturned, StatusRegistered, StatusCancelled, StatusDeleted:
		return true
	}
	return false
}

// User is the persisted record of a Telegram account that contacted the bot.
type User struct {
	ID         uuid.UUID      `db:"id"`
	TelegramID int64          `db:"telegram_id"`
	Username   string         `db:"username"`
	FirstName  string         `db:"first_name"`
	LastName   string         `db:"last_name"`
	Email      sql.NullString `db:"email"`
	Phone      sql.NullString `db:"phone"`
	Status     Status         `db:"status"`
	CreatedAt  time.Time      `db:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at"`
}

// Registered reports whether the user already completed registration.
func (u User) Registered() bool {
	return u.Status == StatusRegistered
}

// Profile carries the account names reported by Telegram.
type Profile struct {
	TelegramID int64
	Username   string
	FirstName  string
	LastName   string
}
