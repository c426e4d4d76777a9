// Package order keeps the order ledger: creation, the single terminal
// transition of every order, and the pending queue seen by admins.
package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.jetify.com/typeid/v2"

	"github.com/Proton-105/storefront-bot/internal/domain"
)

const idPrefix = "ord"

var (
	// ErrOrderNotFound is returned for ids the ledger has never seen.
	ErrOrderNotFound = errors.New("order not found")
	// ErrNotPending is returned when a transition expects a status the order no longer has.
	ErrNotPending = errors.New("order is not pending")
	// ErrDuplicateID is returned when an order id is reused.
	ErrDuplicateID = errors.New("order id already exists")
)

// Ledger stores orders. Resolve is a compare-and-set from pending, so of any
// number of concurrent resolutions of one order exactly one succeeds.
type Ledger interface {
	Create(ctx context.Context, o domain.Order) error
	Get(ctx context.Context, id string) (domain.Order, error)
	// Resolve moves a pending order to a terminal status and returns the updated order.
	Resolve(ctx context.Context, id string, to domain.OrderStatus, handledBy int64, at time.Time) (domain.Order, error)
	// Reopen undoes a terminal transition whose settlement could not be applied.
	Reopen(ctx context.Context, id string, from domain.OrderStatus) error
	// ListPending returns pending orders created before the given instant, oldest first.
	ListPending(ctx context.Context, createdBefore time.Time, limit int) ([]domain.Order, error)
}

// NewID returns a fresh order id such as "ord_01h455vb4pex5vsknk084sn02q".
func NewID() (string, error) {
	tid, err := typeid.Generate(idPrefix)
	if err != nil {
		return "", fmt.Errorf("order: generate id: %w", err)
	}
	return tid.String(), nil
}

// ValidID reports whether s looks like an id produced by NewID.
func ValidID(s string) bool {
	if !strings.HasPrefix(s, idPrefix+"_") {
		return false
	}
	_, err := typeid.Parse(s)
	return err == nil
}

func validateNew(o domain.Order) error {
	switch {
	case o.ID == "":
		return errors.New("order: empty id")
	case o.Status != domain.OrderStatusPending:
		return fmt.Errorf("order: new order must be pending, got %q", o.Status)
	case o.Price <= 0:
		return fmt.Errorf("order: non-positive price %d", o.Price)
	case o.Kind != domain.OrderKindPurchase && o.Kind != domain.OrderKindTopUp:
		return fmt.Errorf("order: unknown kind %q", o.Kind)
	}
	return nil
}

func validateTerminal(to domain.OrderStatus) error {
	if !to.Terminal() {
		return fmt.Errorf("order: %q is not a terminal status", to)
	}
	return nil
}
