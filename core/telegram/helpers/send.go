package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/regbot/core/logger"
	"github.com/m3rciful/regbot/core/telegram/sender"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the sender used by the helpers; nil sends directly.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

func sendOpts(markup *tele.ReplyMarkup) *tele.SendOptions {
	return &tele.SendOptions{ReplyMarkup: markup, DisableWebPagePreview: true}
}

// SendText queues plain text for the current chat. Delivery order across
// calls is not guaranteed; use SendOrdered inside a conversation.
func SendText(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	var rm *tele.ReplyMarkup
	if len(markup) > 0 {
		rm = markup[0]
	}
	run := func() error { return c.Send(text, sendOpts(rm)) }

	disp := globalDispatcher.Load()
	if disp == nil {
		return run()
	}
	ctx := BuildContext(c)
	if err := disp.Enqueue(ctx, "send.text", "sendMessage", run); err != nil {
		if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
			logger.Warn(ctx, "tg.sender", "queue.fallback",
				slog.String("status", "retry"),
				slog.String("err", err.Error()),
			)
			return run()
		}
		return err
	}
	return nil
}

// SendOrdered sends plain text before returning, retrying transient
// failures. Successive calls reach the chat in call order.
func SendOrdered(c tele.Context, text string, markup *tele.ReplyMarkup) error {
	run := func() error { return c.Send(text, sendOpts(markup)) }
	disp := globalDispatcher.Load()
	if disp == nil {
		return run()
	}
	return disp.Do(BuildContext(c), "send.ordered", "sendMessage", run)
}
