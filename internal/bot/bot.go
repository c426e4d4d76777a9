package bot

import (
	"context"
	"fmt"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/storefront-bot/internal/bot/handlers"
	"github.com/Proton-105/storefront-bot/internal/bot/keyboard"
	"github.com/Proton-105/storefront-bot/internal/catalog"
	"github.com/Proton-105/storefront-bot/internal/engine"
	apperrors "github.com/Proton-105/storefront-bot/internal/errors"
	"github.com/Proton-105/storefront-bot/internal/idempotency"
	"github.com/Proton-105/storefront-bot/internal/middleware"
	"github.com/Proton-105/storefront-bot/internal/state"
	"github.com/Proton-105/storefront-bot/pkg/config"
)

const modeWebhook = "webhook"

// Engine is what the bot needs from the order lifecycle.
type Engine interface {
	handlers.Engine
	Joiner
	IsAdmin(userID int64) bool
}

var _ Engine = (*engine.Engine)(nil)

// Deps are the application services behind the bot.
type Deps struct {
	Engine      Engine
	Catalog     *catalog.Catalog
	FSM         state.StateMachine
	Idempotency idempotency.Manager
	RateLimit   *middleware.RateLimitMiddleware
}

// Bot wraps telebot.Bot with application dependencies required for handling updates.
type Bot struct {
	telebot     *telebot.Bot
	log         *slog.Logger
	cfg         config.Config
	rateLimitMw *middleware.RateLimitMiddleware
	router      *Router
}

// NewTelebot connects to the Bot API with the configured poller. The notifier
// needs the client before the bot itself is assembled.
func NewTelebot(cfg config.Config, log *slog.Logger) (*telebot.Bot, error) {
	if log == nil {
		log = slog.Default()
	}

	settings := telebot.Settings{
		Token: cfg.Bot.Token,
		OnError: func(err error, c telebot.Context) {
			log.Error("telebot error", slog.Any("error", err))
		},
	}

	if cfg.Bot.Mode == modeWebhook {
		settings.Poller = &telebot.Webhook{
			Listen:   cfg.Bot.WebhookListen,
			Endpoint: &telebot.WebhookEndpoint{PublicURL: cfg.Bot.WebhookURL},
		}
	} else {
		settings.Poller = &telebot.LongPoller{
			Timeout: cfg.Bot.Timeout,
		}
	}

	tb, err := telebot.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("initialize telebot: %w", err)
	}
	return tb, nil
}

// New builds the bot on top of an initialized telebot client.
func New(tb *telebot.Bot, cfg config.Config, log *slog.Logger, deps Deps) *Bot {
	if log == nil {
		log = slog.Default()
	}

	botUsername := ""
	if tb != nil && tb.Me != nil {
		botUsername = tb.Me.Username
	}

	b := &Bot{
		telebot:     tb,
		log:         log,
		cfg:         cfg,
		rateLimitMw: deps.RateLimit,
		router:      NewAppRouter(deps, cfg, botUsername, log),
	}

	if tb != nil {
		if b.rateLimitMw != nil {
			tb.Use(b.rateLimitMw.Handle)
		}
		b.registerTelebotHandlers()
	}

	return b
}

// NewAppRouter wires every command, menu label, callback and flow state.
func NewAppRouter(deps Deps, cfg config.Config, botUsername string, log *slog.Logger) *Router {
	kb := keyboard.NewBuilder(log, cfg.Shop.CurrencySign)
	errHandler := apperrors.NewHandler(log, cfg.Sentry.Enabled)

	dispatcher := NewDispatcher(deps.FSM, log)
	router := NewRouter(dispatcher, log)

	router.Use(RequestContextMiddleware())
	router.Use(RecoveryMiddleware(log, errHandler))
	router.Use(LoggingMiddleware(log))
	router.Use(ErrorHandlingMiddleware(errHandler, kb))
	router.Use(middleware.Idempotency(deps.Idempotency, log))
	router.Use(AuthMiddleware(deps.Engine, log))
	router.Use(middleware.Metrics)

	eng := deps.Engine
	shop := handlers.NewShopHandlers(eng, deps.Catalog, kb, log)
	admin := handlers.NewAdminHandlers(eng, kb, log)

	balance := handlers.NewBalanceHandler(eng, botUsername, log)
	topUp := handlers.NewEventHandler(eng, engine.EventStartTopUp, log)
	promo := handlers.NewEventHandler(eng, engine.EventStartPromo, log)
	cancel := handlers.NewEventHandler(eng, engine.EventCancel, log)
	text := handlers.NewTextHandler(eng, log)

	router.RegisterCommand(CommandStart, handlers.NewStartHandler(eng, log))
	router.RegisterCommand(CommandHelp, handlers.NewHelpHandler(eng.IsAdmin))
	router.RegisterCommand(CommandShop, shop.Menu)
	router.RegisterCommand(CommandBalance, balance)
	router.RegisterCommand(CommandTopUp, topUp)
	router.RegisterCommand(CommandPromo, promo)
	router.RegisterCommand(CommandCancel, cancel)
	router.RegisterCommand(CommandAdjust, handlers.NewEventHandler(eng, engine.EventStartAdjust, log))
	router.RegisterCommand(CommandPending, admin.Pending)
	router.RegisterCommand(CommandNewPromo, admin.NewPromo)

	router.RegisterText(keyboard.ButtonShop, shop.Menu)
	router.RegisterText(keyboard.ButtonBalance, balance)
	router.RegisterText(keyboard.ButtonTopUp, topUp)
	router.RegisterText(keyboard.ButtonPromo, promo)
	router.RegisterText(keyboard.ButtonCancel, cancel)

	router.RegisterCallback(keyboard.CallbackMenu, shop.Menu)
	router.RegisterCallback(keyboard.CallbackCategory, shop.Category)
	router.RegisterCallback(keyboard.CallbackGroup, shop.Group)
	router.RegisterCallback(keyboard.CallbackOffer, shop.Offer)
	router.RegisterCallback(keyboard.CallbackTopUp, handlers.CallbackHandler(topUp))
	router.RegisterCallback(keyboard.CallbackApprove, admin.Approve)
	router.RegisterCallback(keyboard.CallbackReject, admin.Reject)
	router.RegisterCallback(keyboard.CallbackPending, admin.Pending)

	for _, s := range []state.State{
		state.StateAwaitingTarget,
		state.StateAwaitingAmount,
		state.StateAwaitingPromo,
		state.StateAwaitingAdminEdit,
	} {
		dispatcher.RegisterStateHandler(s, text)
	}
	router.SetDefault(handlers.NewHintHandler())

	return router
}

// Start publishes the command menu and runs the telegram bot event loop.
func (b *Bot) Start() {
	if b.telebot == nil {
		return
	}

	if err := b.telebot.SetCommands(MenuCommands); err != nil {
		b.log.Warn("failed to publish bot commands", slog.Any("error", err))
	}
	b.telebot.Start()
}

// Stop gracefully stops the telegram bot.
func (b *Bot) Stop() {
	if b.telebot == nil {
		return
	}

	b.log.Info("stopping telegram bot...")
	b.telebot.Stop()
}

// Shutdown stops the bot within ctx.
func (b *Bot) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.Stop()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Telebot exposes the underlying telebot.Bot instance for integrations such as health checks.
func (b *Bot) Telebot() *telebot.Bot {
	return b.telebot
}

// Router exposes the update router.
func (b *Bot) Router() *Router {
	return b.router
}

func (b *Bot) registerTelebotHandlers() {
	b.telebot.Handle(telebot.OnText, b.router.Route)
	b.telebot.Handle(telebot.OnCallback, b.router.Route)
}
