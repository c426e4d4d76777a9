package handlers

import (
	"fmt"
	"log/slog"

	telebot "gopkg.in/telebot.v3"
)

// ReferralPayloadPrefix starts the /start payload of an invite link.
const ReferralPayloadPrefix = "ref"

// ReferralLink returns the invite link of userID, or "" without a bot username.
func ReferralLink(botUsername string, userID int64) string {
	if botUsername == "" {
		return ""
	}
	return fmt.Sprintf("https://t.me/%s?start=%s%d", botUsername, ReferralPayloadPrefix, userID)
}

// NewBalanceHandler shows the balance, the referral count and the invite link.
func NewBalanceHandler(eng Engine, botUsername string, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		if c.Sender() == nil {
			return nil
		}
		userID := c.Sender().ID

		balance, referrals, err := eng.Summary(RequestContext(c), userID)
		if err != nil {
			return err
		}

		rules := eng.Rules()
		return Reply(c, rules.Texts.Balance(balance, referrals, rules.ReferralBonus, ReferralLink(botUsername, userID)))
	}
}
