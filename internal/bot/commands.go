package bot

import telebot "gopkg.in/telebot.v3"

// Command constants for Telegram bot commands.
const (
	CommandStart    = "/start"
	CommandShop     = "/shop"
	CommandBalance  = "/balance"
	CommandTopUp    = "/topup"
	CommandPromo    = "/promo"
	CommandCancel   = "/cancel"
	CommandHelp     = "/help"
	CommandAdjust   = "/adjust"
	CommandPending  = "/pending"
	CommandNewPromo = "/newpromo"
)

// MenuCommands are published to Telegram for the command menu. Admin commands stay unlisted.
var MenuCommands = []telebot.Command{
	{Text: "start", Description: "Main menu"},
	{Text: "shop", Description: "Browse offers"},
	{Text: "balance", Description: "Balance and invite link"},
	{Text: "topup", Description: "Top up balance"},
	{Text: "promo", Description: "Redeem a promo code"},
	{Text: "cancel", Description: "Cancel the current action"},
}
