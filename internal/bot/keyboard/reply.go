package keyboard

import (
	telebot "gopkg.in/telebot.v3"
)

// Main menu labels. Text updates carrying one of them are routed like commands.
const (
	ButtonShop    = "🛒 Shop"
	ButtonBalance = "💰 Balance"
	ButtonTopUp   = "💳 Top up"
	ButtonPromo   = "🎁 Promo code"
	ButtonCancel  = "❌ Cancel"
)

// MainMenu builds the reply keyboard shown under the input field.
func MainMenu() *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{
		ResizeKeyboard:  true,
		OneTimeKeyboard: false,
	}

	markup.Reply(
		markup.Row(markup.Text(ButtonShop)),
		markup.Row(markup.Text(ButtonBalance), markup.Text(ButtonTopUp)),
		markup.Row(markup.Text(ButtonPromo), markup.Text(ButtonCancel)),
	)

	return markup
}
