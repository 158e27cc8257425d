package bot

import (
	"context"
	"fmt"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/regbot/core/logger"
	tghelpers "github.com/m3rciful/regbot/core/telegram/helpers"
	"github.com/m3rciful/regbot/internal/registration"
	"github.com/m3rciful/regbot/internal/users"
)

const (
	textStart    = "This is a start message."
	textHelp     = "This is a help message."
	textSessions = "Sesi pendaftaran aktif: %d"
)

// Welcomer records the user on /start.
type Welcomer interface {
	Welcome(ctx context.Context, p users.Profile) (users.User, error)
}

// Flow is the registration engine as seen by the handlers.
type Flow interface {
	InProgress(ctx context.Context, userID int64) bool
	ActiveSessions(ctx context.Context) (int, error)
	Start(ctx context.Context, userID int64, r registration.Replier) error
	Handle(ctx context.Context, in registration.Input, r registration.Replier) error
}

// Handlers holds the Telegram handlers of the bot.
type Handlers struct {
	users Welcomer
	flow  Flow
}

// NewHandlers wires the handlers to their services.
func NewHandlers(users Welcomer, flow Flow) *Handlers {
	return &Handlers{users: users, flow: flow}
}

// Start records the user and greets them. A failed upsert is logged and
// the greeting still goes out.
func (h *Handlers) Start(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	sender := c.Sender()
	if sender != nil {
		_, err := h.users.Welcome(ctx, users.Profile{
			TelegramID: sender.ID,
			Username:   sender.Username,
			FirstName:  sender.FirstName,
			LastName:   sender.LastName,
		})
		if err != nil {
			logger.LogEvent(ctx, logger.TG, slog.LevelError, "start.welcome",
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
		}
	}
	return tghelpers.SendText(c, textStart)
}

// Help replies with the help text.
func (h *Handlers) Help(c tele.Context) error {
	return tghelpers.SendText(c, textHelp)
}

// Register starts the registration flow.
func (h *Handlers) Register(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	return h.flow.Start(tghelpers.BuildContext(c), sender.ID, chatReplier{c: c})
}

// Sessions reports how many registrations are in progress.
func (h *Handlers) Sessions(c tele.Context) error {
	n, err := h.flow.ActiveSessions(tghelpers.BuildContext(c))
	if err != nil {
		return fmt.Errorf("count sessions: %w", err)
	}
	return tghelpers.SendText(c, fmt.Sprintf(textSessions, n))
}

// InProgress reports whether userID is mid-registration.
func (h *Handlers) InProgress(ctx context.Context, userID int64) bool {
	return h.flow.InProgress(ctx, userID)
}

// HandleInput feeds a text or contact message into the registration flow.
func (h *Handlers) HandleInput(c tele.Context) error {
	in, ok := inputFrom(c)
	if !ok {
		return nil
	}
	ctx := logger.WithUserID(tghelpers.BuildContext(c), in.UserID)
	return h.flow.Handle(ctx, in, chatReplier{c: c})
}
