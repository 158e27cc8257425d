package router

import (
	"context"
	"time"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/regbot/core/telegram"
	tghelpers "github.com/m3rciful/regbot/core/telegram/helpers"
	"github.com/m3rciful/regbot/core/telegram/middleware"
)

// Conversation is a multi-step flow that claims free-form input from users
// who are in the middle of it.
type Conversation interface {
	InProgress(ctx context.Context, userID int64) bool
	HandleInput(c tele.Context) error
}

// InputOptions controls fallbacks for input no conversation claims.
type InputOptions struct {
	UnknownText    tele.HandlerFunc
	UnknownContact tele.HandlerFunc
}

// InputRoutes routes plain text and shared contacts. Text and contacts go to
// the conversation while it is in progress for the sender. Otherwise text
// is matched against registered commands and falls back to the registry.
func InputRoutes(conv Conversation, reg *tg.Registry, opts InputOptions) []tg.Route {
	inFlow := func(c tele.Context) bool {
		sender := c.Sender()
		return conv != nil && sender != nil && conv.InProgress(tghelpers.BuildContext(c), sender.ID)
	}

	text := func(c tele.Context) error {
		start := time.Now()
		if inFlow(c) {
			return handleWithSummary(c, "conversation", start, func() error {
				return conv.HandleInput(c)
			})
		}

		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(c.Text()); ok && cmd.Handler != nil && !cmd.AdminOnly {
				return handleWithSummary(c, normalizeHandlerName(key), start, func() error {
					return cmd.Handler(c)
				})
			}
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", start, func() error {
					return fb(c)
				})
			}
		}
		if opts.UnknownText != nil {
			return handleWithSummary(c, "unknown_text", start, func() error {
				return opts.UnknownText(c)
			})
		}
		logHandlerSummary(c, "unknown_text", start, "skip", "ok", nil)
		return nil
	}

	contact := func(c tele.Context) error {
		start := time.Now()
		if inFlow(c) {
			return handleWithSummary(c, "conversation_contact", start, func() error {
				return conv.HandleInput(c)
			})
		}
		fb := opts.UnknownContact
		if reg != nil && reg.ContactFallback() != nil {
			fb = reg.ContactFallback()
		}
		if fb != nil {
			return handleWithSummary(c, "unexpected_contact", start, func() error {
				return fb(c)
			})
		}
		logHandlerSummary(c, "unexpected_contact", start, "skip", "ok", nil)
		return nil
	}

	return []tg.Route{
		{Endpoint: tele.OnText, Handler: middleware.LoggerMiddleware(text)},
		{Endpoint: tele.OnContact, Handler: middleware.LoggerMiddleware(contact)},
	}
}
