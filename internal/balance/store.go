// Package balance owns the per-user account records and their balances.
package balance

import (
	"context"
	"errors"

	"github.com/Proton-105/storefront-bot/internal/domain"
)

var (
	// ErrInsufficientFunds is returned when a debit would make the balance negative.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrBalanceOverflow is returned when a credit would overflow the balance.
	ErrBalanceOverflow = errors.New("balance overflow")
	// ErrAccountNotFound is returned by Account for users never seen before.
	ErrAccountNotFound = errors.New("account not found")
)

// Store is the balance store contract. Every Adjust is atomic with respect to
// every other Adjust on the same user, and a balance never goes below zero.
type Store interface {
	// Balance returns the current balance; unseen users have a zero balance.
	Balance(ctx context.Context, userID int64) (int64, error)
	// Adjust applies delta atomically and returns the resulting balance.
	// A negative result is refused with ErrInsufficientFunds and a result past
	// math.MaxInt64 with ErrBalanceOverflow; in both cases nothing changes.
	Adjust(ctx context.Context, userID int64, delta int64) (int64, error)
	// Upsert records a contact. created is true only for the first contact.
	// ReferredBy is stored on creation and ignored afterwards.
	Upsert(ctx context.Context, profile domain.Profile) (created bool, err error)
	// Account returns the full record.
	Account(ctx context.Context, userID int64) (domain.Account, error)
	// CountReferrals returns how many accounts were created with referrerID as referrer.
	CountReferrals(ctx context.Context, referrerID int64) (int64, error)
}
