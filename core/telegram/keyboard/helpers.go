package keyboard

import tele "gopkg.in/telebot.v4"

// ForceReply asks the client to open a reply to the bot's message.
// Selective limits it to the mentioned or replied-to user in groups.
func ForceReply() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{ForceReply: true, Selective: true}
}

// RemoveKeyboard hides any custom reply keyboard.
func RemoveKeyboard() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{RemoveKeyboard: true}
}

// ReplyButtons builds a one-time reply keyboard, one row per slice.
func ReplyButtons(rows ...[]string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{ResizeKeyboard: true, OneTimeKeyboard: true}
	keyboard := make([]tele.Row, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tele.Btn, 0, len(row))
		for _, label := range row {
			buttons = append(buttons, markup.Text(label))
		}
		keyboard = append(keyboard, markup.Row(buttons...))
	}
	markup.Reply(keyboard...)
	return markup
}

// Choice renders a two-row keyboard with the no button above the yes button. With shareContact
// set, the yes button shares the user's phone number when pressed.
func Choice(no, yes string, shareContact bool) *tele.ReplyMarkup {
	if !shareContact {
		return ReplyButtons([]string{no}, []string{yes})
	}
	markup := &tele.ReplyMarkup{ResizeKeyboard: true, OneTimeKeyboard: true}
	markup.Reply(
		markup.Row(markup.Text(no)),
		markup.Row(markup.Contact(yes)),
	)
	return markup
}
