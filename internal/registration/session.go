package registration

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoSession is returned when the user has no registration in progress.
	ErrNoSession = errors.New("registration: no session")
	// ErrAlreadyInProgress is returned by Create when a session already exists.
	ErrAlreadyInProgress = errors.New("registration: already in progress")
	// ErrStepRegression is returned when an update tries to move a session backwards.
	ErrStepRegression = errors.New("registration: step regression")
	// ErrLockTimeout is returned when the per-user section could not be entered in time.
	ErrLockTimeout = errors.New("registration: lock wait timeout")
)

// Step is a position in the registration flow. Steps only move forward.
type Step int

const (
	StepAwaitingEmailConsent Step = iota + 1
	StepAwaitingEmail
	StepAwaitingPhoneConsent
	StepFinalizing
)

var stepNames = map[Step]string{
	StepAwaitingEmailConsent: "awaiting_email_consent",
	StepAwaitingEmail:        "awaiting_email",
	StepAwaitingPhoneConsent: "awaiting_phone_consent",
	StepFinalizing:           "finalizing",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// Valid reports whether s is a known step.
func (s Step) Valid() bool {
	_, ok := stepNames[s]
	return ok
}

func (s Step) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("registration: invalid step %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Step) UnmarshalText(b []byte) error {
	for step, name := range stepNames {
		if name == string(b) {
			*s = step
			return nil
		}
	}
	return fmt.Errorf("registration: unknown step %q", b)
}

// Session is the in-progress registration of one user.
type Session struct {
	UserID    int64     `json:"user_id"`
	Step      Step      `json:"step"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newSession(userID int64, now time.Time) Session {
	return Session{UserID: userID, Step: StepAwaitingEmailConsent, UpdatedAt: now}
}

// Update is a single field change applied by Store.Mutate.
type Update func(*Session) error

// AdvanceTo moves the session to next. Moving to an earlier step fails with ErrStepRegression.
func AdvanceTo(next Step) Update {
	return func(s *Session) error {
		if !next.Valid() {
			return fmt.Errorf("registration: invalid step %d", int(next))
		}
		if next < s.Step {
			return fmt.Errorf("%w: %s -> %s", ErrStepRegression, s.Step, next)
		}
		s.Step = next
		return nil
	}
}

// WithEmail stores the validated email address.
func WithEmail(email string) Update {
	return func(s *Session) error {
		if email == "" {
			return errors.New("registration: empty email")
		}
		s.Email = email
		return nil
	}
}

// WithPhone stores the phone number shared by the user.
func WithPhone(phone string) Update {
	return func(s *Session) error {
		s.Phone = phone
		return nil
	}
}

// apply runs updates on a copy of s and returns it; s is untouched on error.
func apply(s Session, now time.Time, updates []Update) (Session, error) {
	next := s
	for _, u := range updates {
		if u == nil {
			continue
		}
		if err := u(&next); err != nil {
			return s, err
		}
	}
	next.UpdatedAt = now
	return next, nil
}
