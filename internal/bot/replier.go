package bot

import (
	tele "gopkg.in/telebot.v4"

	tghelpers "github.com/m3rciful/regbot/core/telegram/helpers"
	"github.com/m3rciful/regbot/core/telegram/keyboard"
	"github.com/m3rciful/regbot/internal/registration"
)

const (
	labelYes = "Ya"
	labelNo  = "Tidak"
)

// markupFor renders a registration keyboard as Telegram reply markup.
func markupFor(k registration.Keyboard) *tele.ReplyMarkup {
	switch k {
	case registration.KeyboardYesNo:
		return keyboard.Choice(labelNo, labelYes, false)
	case registration.KeyboardYesNoContact:
		return keyboard.Choice(labelNo, labelYes, true)
	case registration.KeyboardForceReply:
		return keyboard.ForceReply()
	case registration.KeyboardRemove:
		return keyboard.RemoveKeyboard()
	default:
		return nil
	}
}

// chatReplier delivers engine replies to the chat of the current update.
// Sends complete before Reply returns so the user sees them in order.
type chatReplier struct {
	c tele.Context
}

func (r chatReplier) Reply(reply registration.Reply) error {
	return tghelpers.SendOrdered(r.c, reply.Text, markupFor(reply.Keyboard))
}
