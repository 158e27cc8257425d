package registration

//go:generate mockgen -source=engine.go -destination=mocks/mocks.go -package=mocks UserRepository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/regbot/core/logger"
	"github.com/m3rciful/regbot/internal/metrics"
	"github.com/m3rciful/regbot/internal/users"
)

const (
	defaultLockWait    = 10 * time.Second
	defaultWorkTimeout = 20 * time.Second
)

// UserRepository is the part of the user store the registration flow needs.
// GetUser returns users.ErrNotFound for accounts that never ran /start.
type UserRepository interface {
	GetUser(ctx context.Context, telegramID int64) (users.User, error)
	Register(ctx context.Context, telegramID int64, email, phone string) (users.User, error)
}

// Input is one inbound message routed to a registration in progress.
type Input struct {
	UserID int64
	Text   string
	// Phone is the sender's own number when the message shared it.
	Phone string
}

// Engine runs the registration state machine. Every call for a user executes inside
// that user's exclusive section, replies included.
type Engine struct {
	store    Store
	locker   Locker
	users    UserRepository
	lockWait time.Duration
	// workTimeout bounds the locked section so it ends before a shared lease lapses.
	workTimeout time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithLockWait bounds how long a message waits for the user's section.
func WithLockWait(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.lockWait = d
		}
	}
}

// WithWorkTimeout bounds how long one message may hold the user's section.
func WithWorkTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.workTimeout = d
		}
	}
}

// NewEngine wires an Engine.
func NewEngine(store Store, locker Locker, repo UserRepository, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, errors.New("registration: session store is required")
	}
	if locker == nil {
		return nil, errors.New("registration: locker is required")
	}
	if repo == nil {
		return nil, errors.New("registration: user repository is required")
	}
	e := &Engine{store: store, locker: locker, users: repo, lockWait: defaultLockWait, workTimeout: defaultWorkTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e, nil
}

// InProgress reports whether userID has a session. Store failures read as false.
func (e *Engine) InProgress(ctx context.Context, userID int64) bool {
	ok, err := e.store.Exists(ctx, userID)
	if err != nil {
		logger.LogEvent(ctx, logger.SVCRegistration, slog.LevelError, "registration.lookup",
			slog.String("status", "fail"),
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
		return false
	}
	return ok
}

// ActiveSessions returns the number of registrations in progress.
func (e *Engine) ActiveSessions(ctx context.Context) (int, error) {
	return e.store.Count(ctx)
}

// Start runs the entry guard and, when it passes, opens a session and asks for email consent.
func (e *Engine) Start(ctx context.Context, userID int64, r Replier) error {
	return e.withUser(ctx, userID, r, func(ctx context.Context) error {
		reply, err := e.start(ctx, userID)
		if err != nil {
			return err
		}
		return r.Reply(reply)
	})
}

// Handle interprets one message against the user's current step.
func (e *Engine) Handle(ctx context.Context, in Input, r Replier) error {
	return e.withUser(ctx, in.UserID, r, func(ctx context.Context) error {
		reply, err := e.handle(ctx, in)
		if err != nil {
			return err
		}
		return r.Reply(reply)
	})
}

func (e *Engine) withUser(ctx context.Context, userID int64, r Replier, fn func(context.Context) error) error {
	ctx = logger.WithUserID(ctx, userID)
	start := time.Now()
	lockCtx, cancel := context.WithTimeout(ctx, e.lockWait)
	unlock, err := e.locker.Lock(lockCtx, userID)
	cancel()
	if err != nil {
		logger.LogEvent(ctx, logger.SVCRegistration, slog.LevelWarn, "registration.lock",
			slog.String("status", "fail"),
			slog.Int64("user_id", userID),
			slog.Duration("lock_wait", time.Since(start)),
			slog.String("err", err.Error()),
		)
		if errors.Is(err, ErrLockTimeout) {
			if rerr := r.Reply(Reply{Text: TextBusy}); rerr != nil {
				return errors.Join(err, rerr)
			}
		}
		return err
	}
	defer unlock()
	if waited := time.Since(start); waited >= time.Millisecond {
		logger.LogEvent(ctx, logger.SVCRegistration, slog.LevelDebug, "registration.lock",
			slog.String("status", "ok"),
			slog.Int64("user_id", userID),
			slog.Duration("lock_wait", waited),
		)
	}
	workCtx, cancelWork := context.WithTimeout(ctx, e.workTimeout)
	defer cancelWork()
	return fn(workCtx)
}

func (e *Engine) start(ctx context.Context, userID int64) (Reply, error) {
	u, err := e.users.GetUser(ctx, userID)
	switch {
	case errors.Is(err, users.ErrNotFound):
		return e.reject(ctx, userID, "unknown_user", TextNotStarted), nil
	case err != nil:
		logger.LogEvent(ctx, logger.SVCRegistration, slog.LevelError, "registration.guard",
			slog.String("status", "fail"),
			slog.Int64("user_id", userID),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return e.reject(ctx, userID, "error", TextNotStarted), nil
	case u.Registered():
		return e.reject(ctx, userID, "already_registered", TextAlreadyRegistered), nil
	}

	sess, err := e.store.Create(ctx, userID)
	if errors.Is(err, ErrAlreadyInProgress) {
		stale, serr := e.dropStale(ctx, userID)
		if serr != nil {
			return Reply{}, serr
		}
		if !stale {
			return e.reject(ctx, userID, "in_progress", TextAlreadyInProgress), nil
		}
		sess, err = e.store.Create(ctx, userID)
	}
	if err != nil {
		return Reply{}, fmt.Errorf("create session: %w", err)
	}

	metrics.IncRegistrationStarted()
	logger.LogEvent(ctx, logger.SVCRegistration, slog.LevelInfo, "registration.started",
		slog.String("status", "ok"),
		slog.Int64("user_id", userID),
		slog.String("step", sess.Step.String()),
	)
	return Reply{Text: TextEmailConsentPrompt, Keyboard: KeyboardYesNo}, nil
}

func (e *Engine) reject(ctx context.Context, userID int64, reason, text string) Reply {
	metrics.IncRegistrationRejected(reason)
	logger.LogEvent(ctx, logger.SVCRegistration, slog.LevelInfo, "registration.rejected",
		slog.String("status", "rejected"),
		slog.Int64("user_id", userID),
		slog.String("reason", reason),
	)
	return Reply{Text: text}
}

func (e *Engine) handle(ctx context.Context, in Input) (Reply, error) {
	sess, err := e.store.Get(ctx, in.UserID)
	if errors.Is(err, ErrNoSession) {
		return Reply{Text: TextNoSession}, nil
	}
	if err != nil {
		return Reply{}, fmt.Errorf("read session: %w", err)
	}

	var reply Reply
	switch sess.Step {
	case StepAwaitingEmailConsent:
		reply, err = e.onEmailConsent(ctx, sess, in)
	case StepAwaitingEmail:
		reply, err = e.onEmail(ctx, sess, in)
	case StepAwaitingPhoneConsent:
		reply, err = e.onPhoneConsent(ctx, sess, in)
	default:
		if err = e.discard(ctx, sess); err == nil {
			reply = Reply{Text: TextNoSession}
		}
	}
	if errors.Is(err, ErrNoSession) {
		// Expired between read and write.
		return Reply{Text: TextNoSession}, nil
	}
	return reply, err
}

// dropStale removes a session left in StepFinalizing by a completion that never
// finished. Callers hold the user's section, so no live completion can own it.
func (e *Engine) dropStale(ctx context.Context, userID int64) (bool, error) {
	sess, err := e.store.Get(ctx, userID)
	if errors.Is(err, ErrNoSession) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("read session: %w", err)
	}
	if sess.Step != StepFinalizing {
		return false, nil
	}
	return true, e.discard(ctx, sess)
}

func (e *Engine) discard(ctx context.Context, sess Session) error {
	if err := e.store.Delete(ctx, sess.UserID); err != nil && !errors.Is(err, ErrNoSession) {
		return fmt.Errorf("delete stale session: %w", err)
	}
	logger.LogEvent(ctx, logger.SVCRegistration, slog.LevelWarn, "registration.stale",
		slog.String("status", "dropped"),
		slog.Int64("user_id", sess.UserID),
		slog.String("step", sess.Step.String()),
	)
	return nil
}

func (e *Engine) onEmailConsent(ctx context.Context, sess Session, in Input) (Reply, error) {
	consent, ok := ParseConsent(in.Text)
	if !ok {
		return e.invalid(ctx, sess, TextChooseYesNo), nil
	}
	if consent == ConsentNo {
		if err := e.store.Delete(ctx, sess.UserID); err != nil {
			return Reply{}, fmt.Errorf("delete session: %w", err)
		}
		metrics.IncRegistrationCancelled()
		logger.LogEvent(ctx, logger.SVCRegistration, slog.LevelInfo, "registration.cancelled",
			slog.String("status", "cancelled"),
			slog.Int64("user_id", sess.UserID),
			slog.String("step", sess.Step.String()),
		)
		return Reply{Text: TextCancelled, Keyboard: KeyboardRemove}, nil
	}
	if sess.Email != "" {
		return Reply{Text: TextEmailAlreadyProvided}, nil
	}
	if err := e.advance(ctx, sess, AdvanceTo(StepAwaitingEmail)); err != nil {
		return Reply{}, err
	}
	return Reply{Text: TextEmailPrompt, Keyboard: KeyboardForceReply}, nil
}

func (e *Engine) onEmail(ctx context.Context, sess Session, in Input) (Reply, error) {
	email, ok := ParseEmail(in.Text)
	if !ok {
		return e.invalid(ctx, sess, TextInvalidEmail), nil
	}
	if err := e.advance(ctx, sess, WithEmail(email), AdvanceTo(StepAwaitingPhoneConsent)); err != nil {
		return Reply{}, err
	}
	return Reply{Text: TextPhoneConsentPrompt, Keyboard: KeyboardYesNoContact}, nil
}

func (e *Engine) onPhoneConsent(ctx context.Context, sess Session, in Input) (Reply, error) {
	consent, ok := ParseConsent(in.Text)
	if !ok {
		return e.invalid(ctx, sess, TextChooseYesNo), nil
	}
	decision := DecidePhone(consent, in.Phone)
	updates := []Update{AdvanceTo(StepFinalizing)}
	if decision.Outcome == OutcomeAccepted {
		updates = append(updates, WithPhone(decision.Phone))
	}
	final, err := e.store.Mutate(ctx, sess.UserID, updates...)
	if err != nil {
		return Reply{}, fmt.Errorf("finalize session: %w", err)
	}
	return e.complete(ctx, final, decision.Outcome)
}

// complete persists the registration and removes the session. A failed write is
// logged and counted but does not keep the session alive.
func (e *Engine) complete(ctx context.Context, sess Session, outcome Outcome) (Reply, error) {
	status := "ok"
	if _, err := e.users.Register(ctx, sess.UserID, sess.Email, sess.Phone); err != nil {
		status = "fail"
		metrics.IncPersistFailure()
		logger.LogEvent(ctx, logger.SVCRegistration, slog.LevelError, "registration.persist",
			slog.String("status", "fail"),
			slog.Int64("user_id", sess.UserID),
			slog.String("outcome", string(outcome)),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
	}
	if err := e.store.Delete(ctx, sess.UserID); err != nil {
		return Reply{}, fmt.Errorf("delete session: %w", err)
	}

	metrics.IncRegistrationCompleted(string(outcome))
	logger.LogEvent(ctx, logger.SVCRegistration, slog.LevelInfo, "registration.completed",
		slog.String("status", status),
		slog.Int64("user_id", sess.UserID),
		slog.String("outcome", string(outcome)),
		slog.String("email", logger.MaskEmail(sess.Email)),
		slog.Bool("phone", sess.Phone != ""),
	)
	return completionReply(outcome), nil
}

func (e *Engine) advance(ctx context.Context, sess Session, updates ...Update) error {
	next, err := e.store.Mutate(ctx, sess.UserID, updates...)
	if err != nil {
		return fmt.Errorf("advance session: %w", err)
	}
	logger.LogEvent(ctx, logger.SVCRegistration, slog.LevelDebug, "registration.advanced",
		slog.String("status", "ok"),
		slog.Int64("user_id", sess.UserID),
		slog.String("step", sess.Step.String()),
		slog.String("next_step", next.Step.String()),
	)
	return nil
}

func (e *Engine) invalid(ctx context.Context, sess Session, text string) Reply {
	metrics.IncValidationFailure(sess.Step.String())
	if !logger.ShouldSampleDebug("registration.invalid." + sess.Step.String()) {
		return Reply{Text: text}
	}
	logger.LogEvent(ctx, logger.SVCRegistration, slog.LevelDebug, "registration.invalid",
		slog.String("status", "rejected"),
		slog.Int64("user_id", sess.UserID),
		slog.String("step", sess.Step.String()),
	)
	return Reply{Text: text}
}
