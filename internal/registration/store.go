package registration

import "context"

// Store owns every Session. It is the only place sessions are created, read, changed or removed.
type Store interface {
	Exists(ctx context.Context, userID int64) (bool, error)
	// Create inserts a session at StepAwaitingEmailConsent or fails with ErrAlreadyInProgress.
	Create(ctx context.Context, userID int64) (Session, error)
	// Get returns a copy of the session or ErrNoSession.
	Get(ctx context.Context, userID int64) (Session, error)
	// Mutate applies all updates atomically or none of them. Fails with ErrNoSession.
	Mutate(ctx context.Context, userID int64, updates ...Update) (Session, error)
	// Delete removes the session; deleting an absent session is not an error.
	Delete(ctx context.Context, userID int64) error
	Count(ctx context.Context) (int, error)
}
