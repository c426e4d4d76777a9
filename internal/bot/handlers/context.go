package handlers

import (
	"context"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/storefront-bot/internal/bot/keyboard"
	"github.com/Proton-105/storefront-bot/internal/domain"
	"github.com/Proton-105/storefront-bot/internal/notify"
)

// ContextKey is the telebot.Context key under which middlewares store the request context.
const ContextKey = "request_ctx"

// RequestContext returns the context stored by the middleware chain.
func RequestContext(c telebot.Context) context.Context {
	if c != nil {
		if ctx, ok := c.Get(ContextKey).(context.Context); ok && ctx != nil {
			return ctx
		}
	}
	return context.Background()
}

// Actor builds the profile of the update sender.
func Actor(c telebot.Context) domain.Profile {
	u := c.Sender()
	if u == nil {
		return domain.Profile{}
	}
	return domain.Profile{UserID: u.ID, Username: u.Username, FirstName: u.FirstName}
}

// CallbackPayload returns the data part of the pressed button.
func CallbackPayload(c telebot.Context) string {
	cb := c.Callback()
	if cb == nil {
		return ""
	}
	_, data, err := keyboard.DecodeCallback(cb.Data)
	if err != nil {
		return ""
	}
	return data
}

// CommandArgs returns the words after the command.
func CommandArgs(c telebot.Context) []string {
	msg := c.Message()
	if msg == nil {
		return nil
	}
	if msg.Payload != "" {
		return strings.Fields(msg.Payload)
	}
	fields := strings.Fields(msg.Text)
	if len(fields) < 2 || !strings.HasPrefix(fields[0], "/") {
		return nil
	}
	return fields[1:]
}

// Reply sends msg with its inline buttons.
func Reply(c telebot.Context, msg notify.Message) error {
	markup, err := msg.Markup()
	if err != nil {
		return err
	}
	if markup == nil {
		return c.Send(msg.Text)
	}
	return c.Send(msg.Text, markup)
}

// show edits the menu message on callbacks and sends a new one otherwise.
func show(c telebot.Context, text string, markup *telebot.ReplyMarkup) error {
	if c.Callback() != nil && c.Message() != nil {
		if err := c.Edit(text, markup); err == nil || err == telebot.ErrSameMessageContent {
			return nil
		}
	}
	return c.Send(text, markup)
}
