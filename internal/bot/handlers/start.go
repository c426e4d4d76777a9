package handlers

import (
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/storefront-bot/internal/bot/keyboard"
)

// NewStartHandler greets the user and shows the main menu.
// Account creation and referral payout happen earlier in the middleware chain.
func NewStartHandler(eng Engine, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		if c.Sender() == nil {
			log.Warn("start handler invoked without sender context")
			return nil
		}

		msg := eng.Texts().Welcome(c.Sender().FirstName)
		return c.Send(msg.Text, keyboard.MainMenu())
	}
}

const helpText = `🛒 /shop browse offers
💰 /balance balance and invite link
💳 /topup top up balance
🎁 /promo redeem a promo code
❌ /cancel cancel the current action`

const adminHelpText = `

Admin:
/pending orders waiting for you
/adjust change a user's balance
/newpromo CODE AMOUNT USES create a promo code`

// NewHelpHandler lists the commands; admins also see theirs.
func NewHelpHandler(isAdmin func(int64) bool) Handler {
	return func(c telebot.Context) error {
		text := helpText
		if c.Sender() != nil && isAdmin != nil && isAdmin(c.Sender().ID) {
			text += adminHelpText
		}
		return c.Send(text, keyboard.MainMenu())
	}
}
