package handlers

import (
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/storefront-bot/internal/bot/keyboard"
	"github.com/Proton-105/storefront-bot/internal/engine"
)

const unhandledHint = "Use the menu below or /shop to browse offers."

// NewEventHandler forwards a parameterless event, e.g. /topup or /cancel, to the engine.
func NewEventHandler(eng Engine, kind engine.EventKind, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		if c.Sender() == nil {
			return nil
		}

		res, err := eng.Handle(RequestContext(c), engine.Event{Kind: kind, Actor: Actor(c)})
		if err != nil {
			return err
		}
		return send(c, res)
	}
}

// NewTextHandler feeds free text to the flow the user is in.
func NewTextHandler(eng Engine, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		if c.Sender() == nil {
			return nil
		}

		res, err := eng.Handle(RequestContext(c), engine.Event{Kind: engine.EventText, Actor: Actor(c), Text: c.Text()})
		if err != nil {
			return err
		}
		if res.Unhandled {
			log.Debug("text outside of any flow", slog.Int64("user_id", c.Sender().ID))
			return NewHintHandler()(c)
		}
		return send(c, res)
	}
}

// NewHintHandler answers text that matches nothing.
func NewHintHandler() Handler {
	return func(c telebot.Context) error {
		return c.Send(unhandledHint, keyboard.MainMenu())
	}
}

func send(c telebot.Context, res engine.Result) error {
	if res.Reply == nil {
		return nil
	}
	return Reply(c, *res.Reply)
}
