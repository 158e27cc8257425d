package commands

import tele "gopkg.in/telebot.v4"

// Command is a slash command entry in the registry.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// AdminOnly commands are guarded by the admin check and never listed in the menu.
	AdminOnly bool
	// Hidden commands work but are left out of the menu.
	Hidden  bool
	Aliases []string
}
