// Package engine drives the order lifecycle. Decide is a pure function from
// the current session and an event to the next session and a list of
// effects; Executor applies the effects; Engine ties both to the stores.
package engine

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Proton-105/storefront-bot/internal/domain"
	apperrors "github.com/Proton-105/storefront-bot/internal/errors"
	"github.com/Proton-105/storefront-bot/internal/notify"
	"github.com/Proton-105/storefront-bot/internal/promo"
	"github.com/Proton-105/storefront-bot/internal/state"
)

// EventKind names what the actor did.
type EventKind string

const (
	EventSelectOffer EventKind = "select_offer"
	EventText        EventKind = "text"
	EventStartTopUp  EventKind = "start_topup"
	EventStartPromo  EventKind = "start_promo"
	EventStartAdjust EventKind = "start_adjust"
	EventCancel      EventKind = "cancel"
	EventApprove     EventKind = "approve"
	EventReject      EventKind = "reject"
	EventJoin        EventKind = "join"
)

// Event is an inbound user or admin action.
type Event struct {
	Kind     EventKind
	Actor    domain.Profile
	Category domain.Category
	Key      string
	Text     string
	OrderID  string
}

// Rules are the configured inputs of the lifecycle.
type Rules struct {
	TopUpMin      int64
	TopUpMax      int64
	ReferralBonus int64
	Texts         notify.Templates
}

// Input is everything Decide may look at. The engine fills only what the event needs.
type Input struct {
	Session *state.UserState
	Event   Event
	IsAdmin bool
	// Balance is the actor's balance read right before deciding.
	Balance int64
	// Offer is the catalog entry for EventSelectOffer, nil when unknown.
	Offer *domain.Offer
	// Order is the order referenced by an admin action, nil when unknown.
	Order *domain.Order
	// Subject is the account named in an admin adjustment, nil when unknown.
	Subject *domain.Account
	// Joined is true when EventJoin created the account.
	Joined bool
	// Referrer is the account of Event.Actor.ReferredBy on EventJoin, nil when unknown.
	Referrer   *domain.Account
	NewOrderID string
	Now        time.Time
	Rules      Rules
}

// Effect is a mutation or notification produced by Decide.
type Effect interface {
	effect()
}

// Debit takes Amount from UserID. The store refuses to go negative.
type Debit struct {
	UserID int64
	Amount int64
	Reason string
}

// Credit adds Amount to UserID.
type Credit struct {
	UserID int64
	Amount int64
	Reason string
}

// CreateOrder appends a pending order to the ledger.
type CreateOrder struct {
	Order domain.Order
}

// ResolveOrder moves a pending order to a terminal status.
type ResolveOrder struct {
	OrderID   string
	To        domain.OrderStatus
	HandledBy int64
	At        time.Time
}

// RedeemPromo consumes one use of Code and credits its amount to UserID.
type RedeemPromo struct {
	Code   string
	UserID int64
}

// Notify sends Message once every mutation succeeded. When BalanceOf is set,
// the balance placeholder is filled with that user's resulting balance.
type Notify struct {
	To        notify.Audience
	Message   notify.Message
	BalanceOf int64
}

func (Debit) effect()        {}
func (Credit) effect()       {}
func (CreateOrder) effect()  {}
func (ResolveOrder) effect() {}
func (RedeemPromo) effect()  {}
func (Notify) effect()       {}

// Decision is the outcome of Decide.
type Decision struct {
	// Next is persisted after the effects succeed. Nil keeps the session.
	Next *state.UserState
	// Abort is persisted when an effect fails or Err is set. Nil keeps the session.
	Abort   *state.UserState
	Effects []Effect
	// Reply goes back to the actor. Its To is ignored.
	Reply *Notify
	// Err rejects the event before any effect.
	Err error
	// Unhandled marks free text that no flow is waiting for.
	Unhandled bool
}

func reject(err error, abort *state.UserState) Decision {
	return Decision{Err: err, Abort: abort}
}

func reply(msg notify.Message, balanceOf int64) *Notify {
	return &Notify{Message: msg, BalanceOf: balanceOf}
}

// Decide computes the transition for in. It performs no I/O.
func Decide(in Input) Decision {
	session := in.Session
	if session == nil {
		session = state.Idle(in.Event.Actor.UserID)
	}
	actor := in.Event.Actor.UserID
	texts := in.Rules.Texts

	switch in.Event.Kind {
	case EventSelectOffer:
		return decideSelectOffer(in, actor)

	case EventText:
		return decideText(in, session)

	case EventStartTopUp:
		return Decision{
			Next:  &state.UserState{UserID: actor, CurrentState: state.StateAwaitingAmount},
			Reply: reply(texts.TopUpPrompt(in.Rules.TopUpMin, in.Rules.TopUpMax), 0),
		}

	case EventStartPromo:
		return Decision{
			Next:  &state.UserState{UserID: actor, CurrentState: state.StateAwaitingPromo},
			Reply: reply(texts.PromoPrompt(), 0),
		}

	case EventStartAdjust:
		if !in.IsAdmin {
			return reject(apperrors.NewAuthorizationError(actor), nil)
		}
		return Decision{
			Next:  &state.UserState{UserID: actor, CurrentState: state.StateAwaitingAdminEdit},
			Reply: reply(texts.AdjustPrompt(), 0),
		}

	case EventCancel:
		return Decision{
			Next:  state.Idle(actor),
			Reply: reply(texts.Cancelled(!session.IsIdle()), 0),
		}

	case EventApprove, EventReject:
		return decideResolve(in, actor)

	case EventJoin:
		return decideJoin(in, actor)
	}

	return reject(apperrors.NewStateError(fmt.Sprintf("unknown event %q", in.Event.Kind)), nil)
}

func decideSelectOffer(in Input, actor int64) Decision {
	if in.Offer == nil {
		return reject(apperrors.NewValidationError("This offer is no longer available."), nil)
	}

	o := *in.Offer
	return Decision{
		Next: &state.UserState{
			UserID:       actor,
			CurrentState: state.StateAwaitingTarget,
			Offer: &state.SelectedOffer{
				Category: o.Category,
				Key:      o.Key,
				Label:    o.Label,
				Price:    o.Price,
			},
		},
		Reply: reply(in.Rules.Texts.OfferSelected(o, in.Balance), 0),
	}
}

func decideText(in Input, session *state.UserState) Decision {
	switch session.CurrentState {
	case state.StateAwaitingTarget:
		return decideTarget(in, session)
	case state.StateAwaitingAmount:
		return decideTopUpAmount(in)
	case state.StateAwaitingPromo:
		return decidePromo(in)
	case state.StateAwaitingAdminEdit:
		return decideAdjust(in)
	}
	return Decision{Unhandled: true}
}

func decideTarget(in Input, session *state.UserState) Decision {
	actor := in.Event.Actor
	idle := state.Idle(actor.UserID)

	selected := session.Offer
	if selected == nil || selected.Price <= 0 {
		return reject(apperrors.NewStateError("session lost the selected offer"), idle)
	}

	target := strings.TrimSpace(in.Event.Text)
	if err := ValidateTarget(selected.Category, target); err != nil {
		// the flow stays open for another attempt
		return reject(err, nil)
	}

	if in.Balance < selected.Price {
		return reject(apperrors.NewInsufficientFundsError(in.Balance, selected.Price), idle)
	}

	order := domain.Order{
		ID:        in.NewOrderID,
		Kind:      domain.OrderKindPurchase,
		BuyerID:   actor.UserID,
		BuyerName: actor.DisplayName(),
		Category:  selected.Category,
		Key:       selected.Key,
		Label:     selected.Label,
		Price:     selected.Price,
		Target:    target,
		Status:    domain.OrderStatusPending,
		CreatedAt: in.Now,
	}

	texts := in.Rules.Texts
	return Decision{
		Next:  idle,
		Abort: idle,
		Effects: []Effect{
			Debit{UserID: actor.UserID, Amount: order.Price, Reason: "purchase"},
			CreateOrder{Order: order},
			Notify{To: notify.ToAdmins(), Message: texts.PurchaseAdmin(order)},
		},
		Reply: reply(texts.PurchasePending(order), actor.UserID),
	}
}

func decideTopUpAmount(in Input) Decision {
	actor := in.Event.Actor
	texts := in.Rules.Texts

	amount, ok := domain.ParseAmount(in.Event.Text)
	if !ok || amount < in.Rules.TopUpMin || (in.Rules.TopUpMax > 0 && amount > in.Rules.TopUpMax) {
		return reject(apperrors.NewValidationError(texts.InvalidAmount(in.Rules.TopUpMin, in.Rules.TopUpMax)), nil)
	}

	order := domain.Order{
		ID:        in.NewOrderID,
		Kind:      domain.OrderKindTopUp,
		BuyerID:   actor.UserID,
		BuyerName: actor.DisplayName(),
		Label:     "Top-up",
		Price:     amount,
		Status:    domain.OrderStatusPending,
		CreatedAt: in.Now,
	}

	idle := state.Idle(actor.UserID)
	return Decision{
		Next:  idle,
		Abort: idle,
		Effects: []Effect{
			CreateOrder{Order: order},
			Notify{To: notify.ToAdmins(), Message: texts.TopUpAdmin(order)},
		},
		Reply: reply(texts.TopUpRequested(order), 0),
	}
}

func decidePromo(in Input) Decision {
	actor := in.Event.Actor.UserID

	code, err := promo.Normalize(in.Event.Text)
	if err != nil {
		return reject(apperrors.NewValidationError("A promo code is 3 to 32 letters, digits, dashes or underscores."), nil)
	}

	idle := state.Idle(actor)
	return Decision{
		Next:    idle,
		Abort:   idle,
		Effects: []Effect{RedeemPromo{Code: code, UserID: actor}},
		Reply:   reply(in.Rules.Texts.PromoRedeemed(code), actor),
	}
}

func decideAdjust(in Input) Decision {
	actor := in.Event.Actor.UserID
	idle := state.Idle(actor)

	if !in.IsAdmin {
		return reject(apperrors.NewAuthorizationError(actor), idle)
	}

	userID, delta, err := ParseAdjustment(in.Event.Text)
	if err != nil {
		return reject(apperrors.NewValidationError(err.Error()), nil)
	}
	if in.Subject == nil {
		return reject(apperrors.NewNotFoundError(fmt.Sprintf("User %d", userID)), nil)
	}

	var change Effect = Credit{UserID: userID, Amount: delta, Reason: "adjust"}
	if delta < 0 {
		change = Debit{UserID: userID, Amount: -delta, Reason: "adjust"}
	}

	texts := in.Rules.Texts
	return Decision{
		Next:  idle,
		Abort: idle,
		Effects: []Effect{
			change,
			Notify{To: notify.ToUser(userID), Message: texts.BalanceAdjusted(delta), BalanceOf: userID},
		},
		Reply: reply(texts.AdjustDone(userID, delta), userID),
	}
}

func decideResolve(in Input, actor int64) Decision {
	if !in.IsAdmin {
		return reject(apperrors.NewAuthorizationError(actor), nil)
	}

	o := in.Order
	if o == nil || o.Status != domain.OrderStatusPending {
		return reject(apperrors.NewNotFoundError("Order "+in.Event.OrderID), nil)
	}

	to := domain.OrderStatusCompleted
	if in.Event.Kind == EventReject {
		to = domain.OrderStatusCancelled
	}

	texts := in.Rules.Texts
	effects := []Effect{ResolveOrder{OrderID: o.ID, To: to, HandledBy: actor, At: in.Now}}

	switch {
	case o.Kind == domain.OrderKindPurchase && to == domain.OrderStatusCompleted:
		effects = append(effects, Notify{To: notify.ToUser(o.BuyerID), Message: texts.OrderCompleted(*o)})
	case o.Kind == domain.OrderKindPurchase:
		effects = append(effects,
			Credit{UserID: o.BuyerID, Amount: o.Price, Reason: "refund"},
			Notify{To: notify.ToUser(o.BuyerID), Message: texts.OrderCancelled(*o), BalanceOf: o.BuyerID},
		)
	case to == domain.OrderStatusCompleted:
		effects = append(effects,
			Credit{UserID: o.BuyerID, Amount: o.Price, Reason: "topup"},
			Notify{To: notify.ToUser(o.BuyerID), Message: texts.TopUpCredited(*o), BalanceOf: o.BuyerID},
		)
	default:
		effects = append(effects, Notify{To: notify.ToUser(o.BuyerID), Message: texts.TopUpRejected(*o)})
	}

	return Decision{
		Effects: effects,
		Reply:   reply(texts.OrderResolved(*o, to), 0),
	}
}

func decideJoin(in Input, actor int64) Decision {
	referrer := in.Event.Actor.ReferredBy
	if !in.Joined || referrer == 0 || referrer == actor || in.Referrer == nil || in.Rules.ReferralBonus <= 0 {
		return Decision{}
	}

	return Decision{
		Effects: []Effect{
			Credit{UserID: referrer, Amount: in.Rules.ReferralBonus, Reason: "referral"},
			Notify{
				To:        notify.ToUser(referrer),
				Message:   in.Rules.Texts.ReferralBonus(in.Event.Actor.DisplayName(), in.Rules.ReferralBonus),
				BalanceOf: referrer,
			},
		},
	}
}

// ValidateTarget checks the fulfillment target format of a category: a game
// player id of at least five digits, or a Telegram username with its @.
func ValidateTarget(category domain.Category, target string) error {
	switch category {
	case domain.CategoryCurrency:
		if len(target) < 5 || strings.TrimLeft(target, "0123456789") != "" {
			return apperrors.NewValidationError("The player ID must be at least 5 digits.")
		}
	case domain.CategoryPremium, domain.CategoryStars:
		if len(target) < 3 || !strings.HasPrefix(target, "@") {
			return apperrors.NewValidationError("The username must start with @, e.g. @durov.")
		}
	default:
		return apperrors.NewValidationError(fmt.Sprintf("Unknown category %q.", category))
	}
	return nil
}

// MaxAdjustment bounds the magnitude of a single manual balance adjustment.
const MaxAdjustment int64 = 1_000_000_000_000

// ParseAdjustment reads "<user_id> <delta>".
func ParseAdjustment(text string) (userID, delta int64, err error) {
	fields := strings.Fields(text)
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("expected <user_id> <amount>")
	}

	userID, err = strconv.ParseInt(fields[0], 10, 64)
	if err != nil || userID <= 0 {
		return 0, 0, fmt.Errorf("user id must be a positive number")
	}

	delta, err = strconv.ParseInt(fields[1], 10, 64)
	if err != nil || delta == 0 {
		return 0, 0, fmt.Errorf("amount must be a non-zero number")
	}
	if delta > MaxAdjustment || delta < -MaxAdjustment {
		return 0, 0, fmt.Errorf("amount must be between -%d and %d", MaxAdjustment, MaxAdjustment)
	}

	return userID, delta, nil
}
