package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Proton-105/storefront-bot/internal/balance"
	"github.com/Proton-105/storefront-bot/internal/catalog"
	"github.com/Proton-105/storefront-bot/internal/domain"
	apperrors "github.com/Proton-105/storefront-bot/internal/errors"
	"github.com/Proton-105/storefront-bot/internal/notify"
	"github.com/Proton-105/storefront-bot/internal/order"
	"github.com/Proton-105/storefront-bot/internal/promo"
	"github.com/Proton-105/storefront-bot/internal/state"
	"github.com/Proton-105/storefront-bot/pkg/config"
)

const (
	defaultOperationTimeout = 10 * time.Second
	pendingListLimit        = 200
)

// Deps are the collaborators of an Engine.
type Deps struct {
	FSM        state.StateMachine
	Balances   balance.Store
	Orders     order.Ledger
	Promos     promo.Store
	Catalog    *catalog.Catalog
	Dispatcher *notify.Dispatcher
	Log        *slog.Logger
}

// Result is the answer to the actor of an event.
type Result struct {
	Reply     *notify.Message
	Unhandled bool
}

// Engine serializes the events of each actor, decides, applies the effects and
// delivers the notifications once the actor's lock is released.
type Engine struct {
	fsm        state.StateMachine
	balances   balance.Store
	orders     order.Ledger
	promos     promo.Store
	catalog    *catalog.Catalog
	dispatcher *notify.Dispatcher
	exec       *Executor
	admins     map[int64]struct{}
	rules      Rules
	timeout    time.Duration
	log        *slog.Logger

	now   func() time.Time
	newID func() (string, error)
}

// New wires an Engine from the shop, engine and bot settings.
func New(deps Deps, cfg *config.Config) *Engine {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}

	timeout := cfg.Engine.OperationTimeout
	if timeout <= 0 {
		timeout = defaultOperationTimeout
	}

	admins := make(map[int64]struct{}, len(cfg.Bot.Admins))
	for _, id := range cfg.Bot.Admins {
		admins[id] = struct{}{}
	}

	texts := notify.Templates{Sign: cfg.Shop.CurrencySign, PaymentDetails: cfg.Shop.PaymentDetails}

	return &Engine{
		fsm:        deps.FSM,
		balances:   deps.Balances,
		orders:     deps.Orders,
		promos:     deps.Promos,
		catalog:    deps.Catalog,
		dispatcher: deps.Dispatcher,
		exec:       NewExecutor(deps.Balances, deps.Orders, deps.Promos, cfg.Shop.CurrencySign, log),
		admins:     admins,
		rules: Rules{
			TopUpMin:      cfg.Shop.TopUpMin,
			TopUpMax:      cfg.Shop.TopUpMax,
			ReferralBonus: cfg.Shop.ReferralBonus,
			Texts:         texts,
		},
		timeout: timeout,
		log:     log.With(slog.String("component", "engine")),
		now:     time.Now,
		newID:   order.NewID,
	}
}

// IsAdmin reports whether userID may approve and cancel orders.
func (e *Engine) IsAdmin(userID int64) bool {
	_, ok := e.admins[userID]
	return ok
}

// Texts returns the message templates used by the engine.
func (e *Engine) Texts() notify.Templates {
	return e.rules.Texts
}

// Rules returns the configured lifecycle rules.
func (e *Engine) Rules() Rules {
	return e.rules
}

// Handle processes one event of ev.Actor.
func (e *Engine) Handle(ctx context.Context, ev Event) (Result, error) {
	actor := ev.Actor.UserID
	log := e.log.With(slog.Int64("user_id", actor), slog.String("event", string(ev.Kind)))

	var (
		result    Result
		envelopes []notify.Envelope
	)

	opCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	err := e.fsm.WithLock(opCtx, actor, func(ctx context.Context) error {
		in, err := e.input(ctx, ev)
		if err != nil {
			return err
		}

		d := Decide(in)
		if d.Unhandled {
			result.Unhandled = true
			return nil
		}
		if d.Err != nil {
			e.persistOrLog(ctx, log, d.Abort)
			return d.Err
		}

		// The session moves first, so a step whose effects committed can not
		// be replayed from a stale session.
		if err := e.persist(ctx, d.Next); err != nil {
			log.Error("failed to persist session", slog.String("state", string(d.Next.CurrentState)), slog.Any("error", err))
			return apperrors.NewPersistenceError(err)
		}

		out, err := e.exec.Execute(ctx, d)
		if err != nil {
			e.persistOrLog(ctx, log, rollbackSession(d, in.Session, actor))
			return e.mapExecError(err, actor)
		}

		result.Reply = out.Reply
		envelopes = out.Envelopes
		return nil
	})
	if err != nil {
		return Result{}, e.mapLockError(err)
	}

	if len(envelopes) > 0 && e.dispatcher != nil {
		report := e.dispatcher.Deliver(ctx, envelopes...)
		if report.Failed > 0 {
			log.Warn("some notifications were not delivered",
				slog.Int("delivered", report.Delivered),
				slog.Int("failed", report.Failed),
			)
		}
	}

	return result, nil
}

// Join records a contact and pays the referral bonus when a new account came
// through a valid invite link. It returns true for a first contact.
func (e *Engine) Join(ctx context.Context, profile domain.Profile) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var referrer *domain.Account
	if profile.ReferredBy != 0 && profile.ReferredBy != profile.UserID {
		acc, err := e.balances.Account(ctx, profile.ReferredBy)
		switch {
		case err == nil:
			referrer = &acc
		case errors.Is(err, balance.ErrAccountNotFound):
		default:
			return false, apperrors.NewPersistenceError(err)
		}
	}
	if referrer == nil {
		profile.ReferredBy = 0
	}

	created, err := e.balances.Upsert(ctx, profile)
	if err != nil {
		return false, apperrors.NewPersistenceError(err)
	}

	d := Decide(Input{
		Event:    Event{Kind: EventJoin, Actor: profile},
		Joined:   created,
		Referrer: referrer,
		Now:      e.now(),
		Rules:    e.rules,
	})
	if len(d.Effects) == 0 {
		return created, nil
	}

	out, err := e.exec.Execute(ctx, d)
	if err != nil {
		// the contact itself is recorded; only the bonus is lost
		e.log.Error("failed to pay referral bonus",
			slog.Int64("user_id", profile.UserID),
			slog.Int64("referrer_id", profile.ReferredBy),
			slog.Any("error", err),
		)
		return created, nil
	}

	if e.dispatcher != nil {
		e.dispatcher.Deliver(ctx, out.Envelopes...)
	}
	return created, nil
}

// Summary returns the balance and the number of invited users of userID.
func (e *Engine) Summary(ctx context.Context, userID int64) (balanceAmount, referrals int64, err error) {
	balanceAmount, err = e.balances.Balance(ctx, userID)
	if err != nil {
		return 0, 0, apperrors.NewPersistenceError(err)
	}

	referrals, err = e.balances.CountReferrals(ctx, userID)
	if err != nil {
		return 0, 0, apperrors.NewPersistenceError(err)
	}
	return balanceAmount, referrals, nil
}

// Pending lists the orders waiting for an admin, oldest first.
func (e *Engine) Pending(ctx context.Context, actor int64) ([]domain.Order, error) {
	if !e.IsAdmin(actor) {
		return nil, apperrors.NewAuthorizationError(actor)
	}

	// every pending order, including ones created this instant
	orders, err := e.orders.ListPending(ctx, e.now().Add(time.Minute), pendingListLimit)
	if err != nil {
		return nil, apperrors.NewPersistenceError(err)
	}
	return orders, nil
}

// CreatePromo registers a promo code on behalf of an admin.
func (e *Engine) CreatePromo(ctx context.Context, actor int64, code string, amount int64, uses int) (string, error) {
	if !e.IsAdmin(actor) {
		return "", apperrors.NewAuthorizationError(actor)
	}

	normalized, err := promo.Normalize(code)
	if err != nil {
		return "", apperrors.NewValidationError("A promo code is 3 to 32 letters, digits, dashes or underscores.")
	}
	if amount <= 0 || uses <= 0 {
		return "", apperrors.NewValidationError("Amount and uses must be positive.")
	}

	if err := e.promos.Create(ctx, normalized, amount, uses); err != nil {
		if errors.Is(err, promo.ErrCodeExists) {
			return "", apperrors.NewValidationError(fmt.Sprintf("Promo code %s already exists.", normalized))
		}
		return "", apperrors.NewPersistenceError(err)
	}

	e.log.Info("promo code created",
		slog.Int64("admin_id", actor),
		slog.String("code", normalized),
		slog.Int64("amount", amount),
		slog.Int("uses", uses),
	)
	return normalized, nil
}

func (e *Engine) input(ctx context.Context, ev Event) (Input, error) {
	actor := ev.Actor.UserID

	session, err := e.fsm.Current(ctx, actor)
	if err != nil {
		return Input{}, apperrors.NewPersistenceError(err)
	}

	in := Input{
		Session: session,
		Event:   ev,
		IsAdmin: e.IsAdmin(actor),
		Now:     e.now(),
		Rules:   e.rules,
	}

	switch ev.Kind {
	case EventSelectOffer:
		if offer, ok := e.catalog.Lookup(ev.Category, ev.Key); ok {
			in.Offer = &offer
		}
		if in.Balance, err = e.balances.Balance(ctx, actor); err != nil {
			return Input{}, apperrors.NewPersistenceError(err)
		}

	case EventText:
		if err := e.textInput(ctx, &in); err != nil {
			return Input{}, err
		}

	case EventApprove, EventReject:
		// a non-admin learns nothing about the order
		if !in.IsAdmin {
			break
		}
		o, err := e.orders.Get(ctx, ev.OrderID)
		switch {
		case err == nil:
			in.Order = &o
		case errors.Is(err, order.ErrOrderNotFound):
		default:
			return Input{}, apperrors.NewPersistenceError(err)
		}
	}

	return in, nil
}

func (e *Engine) textInput(ctx context.Context, in *Input) error {
	actor := in.Event.Actor.UserID

	switch in.Session.CurrentState {
	case state.StateAwaitingTarget:
		bal, err := e.balances.Balance(ctx, actor)
		if err != nil {
			return apperrors.NewPersistenceError(err)
		}
		in.Balance = bal
		fallthrough

	case state.StateAwaitingAmount:
		id, err := e.newID()
		if err != nil {
			return apperrors.NewPersistenceError(err)
		}
		in.NewOrderID = id

	case state.StateAwaitingAdminEdit:
		if !in.IsAdmin {
			return nil
		}
		userID, _, err := ParseAdjustment(in.Event.Text)
		if err != nil {
			return nil
		}
		acc, err := e.balances.Account(ctx, userID)
		switch {
		case err == nil:
			in.Subject = &acc
		case errors.Is(err, balance.ErrAccountNotFound):
		default:
			return apperrors.NewPersistenceError(err)
		}
	}

	return nil
}

func (e *Engine) persist(ctx context.Context, next *state.UserState) error {
	if next == nil {
		return nil
	}

	next = next.Clone()
	next.UpdatedAt = e.now().UTC()
	return e.fsm.SetState(ctx, next)
}

func (e *Engine) persistOrLog(ctx context.Context, log *slog.Logger, next *state.UserState) {
	if err := e.persist(ctx, next); err != nil {
		log.Error("failed to persist session", slog.String("state", string(next.CurrentState)), slog.Any("error", err))
	}
}

// rollbackSession is the session to store after the effects of d failed:
// Abort when set, otherwise the session d.Next replaced.
func rollbackSession(d Decision, prev *state.UserState, actor int64) *state.UserState {
	if d.Abort != nil || d.Next == nil {
		return d.Abort
	}
	if prev == nil {
		return state.Idle(actor)
	}
	return prev
}

func (e *Engine) mapExecError(err error, actor int64) error {
	var funds *FundsError
	if errors.As(err, &funds) {
		if funds.UserID == actor {
			return apperrors.NewInsufficientFundsError(funds.Balance, funds.Amount)
		}
		return apperrors.NewValidationError(fmt.Sprintf("User %d has only %s, cannot debit %s.",
			funds.UserID,
			domain.FormatMoney(funds.Balance, e.rules.Texts.Sign),
			domain.FormatMoney(funds.Amount, e.rules.Texts.Sign),
		))
	}
	return err
}

func (e *Engine) mapLockError(err error) error {
	switch {
	case apperrors.CodeOf(err) != "":
		return err
	case errors.Is(err, state.ErrStateLocked):
		return apperrors.NewStateError("Another action of yours is still in progress.")
	default:
		return apperrors.NewPersistenceError(err)
	}
}
