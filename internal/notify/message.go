// Package notify renders lifecycle messages and delivers them to buyers and admins.
package notify

import (
	"fmt"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/storefront-bot/internal/bot/keyboard"
)

// Placeholders filled in after the effects of a transition are applied.
const (
	PlaceholderBalance  = "{balance}"
	PlaceholderCredited = "{credited}"
)

// Message is a text with optional inline buttons.
type Message struct {
	Text    string
	Buttons [][]keyboard.InlineButton

	// deferred texts still carry placeholders; braces of the values
	// interpolated into them are doubled until Fill.
	deferred bool
}

// Markup renders the buttons, or returns nil when there are none.
func (m Message) Markup() (*telebot.ReplyMarkup, error) {
	kb := keyboard.NewInlineKeyboard().AddRows(m.Buttons)
	if kb.Empty() {
		return nil, nil
	}
	return kb.Build()
}

// Fill replaces the placeholders with formatted amounts. Only texts built
// with placeholders are touched, and interpolated values come out verbatim.
func (m Message) Fill(balance, credited int64, sign string) Message {
	if !m.deferred {
		return m
	}

	r := strings.NewReplacer(
		"{{", "{",
		PlaceholderBalance, formatMoney(balance, sign),
		PlaceholderCredited, formatMoney(credited, sign),
	)
	m.Text = r.Replace(m.Text)
	m.deferred = false
	return m
}

// withPlaceholders formats a text that Fill completes later. The
// placeholders belong in format; every string argument is escaped.
func withPlaceholders(format string, args ...any) Message {
	for i, arg := range args {
		if s, ok := arg.(string); ok {
			args[i] = strings.ReplaceAll(s, "{", "{{")
		}
	}
	return Message{Text: fmt.Sprintf(format, args...), deferred: true}
}

// Audience addresses a single user or the whole admin set.
type Audience struct {
	UserID int64
	Admins bool
}

// ToUser addresses one chat.
func ToUser(userID int64) Audience {
	return Audience{UserID: userID}
}

// ToAdmins addresses every configured admin.
func ToAdmins() Audience {
	return Audience{Admins: true}
}

func (a Audience) label() string {
	if a.Admins {
		return "admins"
	}
	return "user"
}

// Envelope is a rendered message and its audience.
type Envelope struct {
	To      Audience
	Message Message
}
