package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Proton-105/storefront-bot/internal/balance"
	"github.com/Proton-105/storefront-bot/internal/domain"
	apperrors "github.com/Proton-105/storefront-bot/internal/errors"
	"github.com/Proton-105/storefront-bot/internal/notify"
	"github.com/Proton-105/storefront-bot/internal/order"
	"github.com/Proton-105/storefront-bot/internal/promo"
	"github.com/Proton-105/storefront-bot/pkg/metrics"
)

// FundsError reports a debit refused by the balance store.
type FundsError struct {
	UserID  int64
	Balance int64
	Amount  int64
}

func (e *FundsError) Error() string {
	return fmt.Sprintf("user %d: balance %d is below %d", e.UserID, e.Balance, e.Amount)
}

func (e *FundsError) Unwrap() error {
	return balance.ErrInsufficientFunds
}

// Outcome is what an executed decision produced.
type Outcome struct {
	Envelopes []notify.Envelope
	Reply     *notify.Message
	// Balances holds the resulting balance of every account the effects touched.
	Balances map[int64]int64
	Credited int64
}

type undoStep struct {
	name string
	fn   func(ctx context.Context) error
}

// Executor applies effects in order. When one fails, the steps already
// applied are undone in reverse order and nothing is notified.
type Executor struct {
	balances balance.Store
	orders   order.Ledger
	promos   promo.Store
	sign     string
	log      *slog.Logger
}

// NewExecutor creates an Executor over the given stores.
func NewExecutor(balances balance.Store, orders order.Ledger, promos promo.Store, currencySign string, log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}

	return &Executor{
		balances: balances,
		orders:   orders,
		promos:   promos,
		sign:     currencySign,
		log:      log,
	}
}

// Execute applies the mutations of d and renders its notifications.
func (x *Executor) Execute(ctx context.Context, d Decision) (Outcome, error) {
	out := Outcome{Balances: make(map[int64]int64)}

	var (
		undo     []undoStep
		onCommit []func()
		notes    []Notify
	)

	for _, eff := range d.Effects {
		var err error

		switch e := eff.(type) {
		case Debit:
			err = x.debit(ctx, e, &out, &undo, &onCommit)
		case Credit:
			err = x.credit(ctx, e, &out, &undo, &onCommit)
		case CreateOrder:
			err = x.createOrder(ctx, e, &undo, &onCommit)
		case ResolveOrder:
			err = x.resolveOrder(ctx, e, &undo, &onCommit)
		case RedeemPromo:
			err = x.redeemPromo(ctx, e, &out, &undo, &onCommit)
		case Notify:
			notes = append(notes, e)
		default:
			err = apperrors.NewStateError(fmt.Sprintf("unknown effect %T", eff))
		}

		if err != nil {
			x.rollback(ctx, undo)
			return Outcome{}, err
		}
	}

	for _, fn := range onCommit {
		fn()
	}

	for _, n := range notes {
		out.Envelopes = append(out.Envelopes, notify.Envelope{
			To:      n.To,
			Message: x.render(ctx, n, &out),
		})
	}
	if d.Reply != nil {
		msg := x.render(ctx, *d.Reply, &out)
		out.Reply = &msg
	}

	return out, nil
}

func (x *Executor) debit(ctx context.Context, e Debit, out *Outcome, undo *[]undoStep, onCommit *[]func()) error {
	next, err := x.balances.Adjust(ctx, e.UserID, -e.Amount)
	if err != nil {
		if errors.Is(err, balance.ErrInsufficientFunds) {
			return &FundsError{UserID: e.UserID, Balance: next, Amount: e.Amount}
		}
		return apperrors.NewPersistenceError(err)
	}

	out.Balances[e.UserID] = next
	*undo = append(*undo, undoStep{
		name: "refund debit",
		fn: func(ctx context.Context) error {
			_, err := x.balances.Adjust(ctx, e.UserID, e.Amount)
			return err
		},
	})
	*onCommit = append(*onCommit, func() { metrics.RecordBalanceMovement(-e.Amount, e.Reason) })
	return nil
}

func (x *Executor) credit(ctx context.Context, e Credit, out *Outcome, undo *[]undoStep, onCommit *[]func()) error {
	next, err := x.balances.Adjust(ctx, e.UserID, e.Amount)
	if err != nil {
		if errors.Is(err, balance.ErrBalanceOverflow) {
			return apperrors.NewValidationError("The balance would exceed the supported maximum.")
		}
		return apperrors.NewPersistenceError(err)
	}

	out.Balances[e.UserID] = next
	*undo = append(*undo, undoStep{
		name: "revert credit",
		fn: func(ctx context.Context) error {
			_, err := x.balances.Adjust(ctx, e.UserID, -e.Amount)
			return err
		},
	})
	*onCommit = append(*onCommit, func() { metrics.RecordBalanceMovement(e.Amount, e.Reason) })
	return nil
}

func (x *Executor) createOrder(ctx context.Context, e CreateOrder, undo *[]undoStep, onCommit *[]func()) error {
	if err := x.orders.Create(ctx, e.Order); err != nil {
		return apperrors.NewPersistenceError(err)
	}

	*undo = append(*undo, undoStep{
		name: "cancel created order",
		fn: func(ctx context.Context) error {
			_, err := x.orders.Resolve(ctx, e.Order.ID, domain.OrderStatusCancelled, 0, e.Order.CreatedAt)
			return err
		},
	})
	*onCommit = append(*onCommit, func() {
		metrics.RecordOrder(string(e.Order.Kind), string(domain.OrderStatusPending))
	})
	return nil
}

func (x *Executor) resolveOrder(ctx context.Context, e ResolveOrder, undo *[]undoStep, onCommit *[]func()) error {
	resolved, err := x.orders.Resolve(ctx, e.OrderID, e.To, e.HandledBy, e.At)
	if err != nil {
		if errors.Is(err, order.ErrNotPending) || errors.Is(err, order.ErrOrderNotFound) {
			return apperrors.NewNotFoundError("Order " + e.OrderID)
		}
		return apperrors.NewPersistenceError(err)
	}

	*undo = append(*undo, undoStep{
		name: "reopen order",
		fn: func(ctx context.Context) error {
			return x.orders.Reopen(ctx, e.OrderID, e.To)
		},
	})
	*onCommit = append(*onCommit, func() {
		metrics.RecordOrder(string(resolved.Kind), string(resolved.Status))
	})
	return nil
}

func (x *Executor) redeemPromo(ctx context.Context, e RedeemPromo, out *Outcome, undo *[]undoStep, onCommit *[]func()) error {
	amount, err := x.promos.Redeem(ctx, e.Code, e.UserID)
	switch {
	case err == nil:
	case errors.Is(err, promo.ErrNotFound):
		return apperrors.NewNotFoundError("Promo code " + e.Code)
	case errors.Is(err, promo.ErrAlreadyRedeemed):
		return apperrors.NewValidationError("You have already used this promo code.")
	case errors.Is(err, promo.ErrExhausted):
		return apperrors.NewValidationError("This promo code has run out.")
	default:
		return apperrors.NewPersistenceError(err)
	}

	release := func(ctx context.Context) error {
		return x.promos.Release(ctx, e.Code, e.UserID)
	}

	next, err := x.balances.Adjust(ctx, e.UserID, amount)
	if err != nil {
		if relErr := release(context.WithoutCancel(ctx)); relErr != nil {
			x.log.Error("failed to release promo redemption",
				slog.String("code", e.Code),
				slog.Int64("user_id", e.UserID),
				slog.Any("error", relErr),
			)
		}
		return apperrors.NewPersistenceError(err)
	}

	out.Balances[e.UserID] = next
	out.Credited += amount
	*undo = append(*undo, undoStep{
		name: "revert promo credit",
		fn: func(ctx context.Context) error {
			if _, err := x.balances.Adjust(ctx, e.UserID, -amount); err != nil {
				return err
			}
			return release(ctx)
		},
	})
	*onCommit = append(*onCommit, func() { metrics.RecordBalanceMovement(amount, "promo") })
	return nil
}

func (x *Executor) rollback(ctx context.Context, undo []undoStep) {
	// compensation runs even when the request context is already done
	ctx = context.WithoutCancel(ctx)

	for i := len(undo) - 1; i >= 0; i-- {
		step := undo[i]
		if err := step.fn(ctx); err != nil {
			x.log.Error("compensation failed", slog.String("step", step.name), slog.Any("error", err))
		}
	}
}

func (x *Executor) render(ctx context.Context, n Notify, out *Outcome) notify.Message {
	var bal int64
	if n.BalanceOf != 0 {
		known, ok := out.Balances[n.BalanceOf]
		if !ok {
			var err error
			known, err = x.balances.Balance(ctx, n.BalanceOf)
			if err != nil {
				x.log.Warn("failed to read balance for message", slog.Int64("user_id", n.BalanceOf), slog.Any("error", err))
			}
		}
		bal = known
	}
	return n.Message.Fill(bal, out.Credited, x.sign)
}
