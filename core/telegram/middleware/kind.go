package middleware

import tele "gopkg.in/telebot.v4"

// Update kinds used for rate-limit exclusions and receipt logs.
const (
	KindCallback = "callback"
	KindMessage  = "message"
	KindContact  = "contact"
	KindOther    = "other"
)

// UpdateKind classifies an update. Shared contacts are reported separately
// from plain messages.
func UpdateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return KindCallback
	case upd.Message != nil && upd.Message.Contact != nil:
		return KindContact
	case upd.Message != nil:
		return KindMessage
	default:
		return KindOther
	}
}
