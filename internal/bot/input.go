package bot

import (
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/regbot/internal/registration"
)

// inputFrom converts a text or contact message into registration input.
// A shared contact counts as a "yes" carrying the phone number, but only when
// the contact is the sender's own; anyone else's card is ignored as input.
func inputFrom(c tele.Context) (registration.Input, bool) {
	sender := c.Sender()
	msg := c.Message()
	if sender == nil || msg == nil {
		return registration.Input{}, false
	}

	in := registration.Input{UserID: sender.ID}
	if contact := msg.Contact; contact != nil {
		if contact.UserID != sender.ID {
			return in, true
		}
		in.Text = labelYes
		in.Phone = strings.TrimSpace(contact.PhoneNumber)
		return in, true
	}
	in.Text = msg.Text
	return in, true
}
