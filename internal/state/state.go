package state

import (
	"time"

	"github.com/Proton-105/storefront-bot/internal/domain"
)

// State represents a finite-state machine state.
type State string

const (
	// StateIdle indicates that no flow is in progress.
	StateIdle State = "idle"
	// StateAwaitingAmount indicates that the user is entering a top-up amount.
	StateAwaitingAmount State = "awaiting_amount"
	// StateAwaitingTarget indicates that the user picked an offer and is entering the fulfillment target.
	StateAwaitingTarget State = "awaiting_target"
	// StateAwaitingPromo indicates that the user is entering a promo code.
	StateAwaitingPromo State = "awaiting_promo"
	// StateAwaitingAdminEdit indicates that an admin is entering a manual balance adjustment.
	StateAwaitingAdminEdit State = "awaiting_admin_edit"
	// StateError indicates that the bot is in an error state and requires recovery.
	StateError State = "error"
)

// SelectedOffer is the snapshot of the offer chosen while awaiting the target.
// The price is captured at selection and re-checked against the balance at debit time.
type SelectedOffer struct {
	Category domain.Category `json:"category"`
	Key      string          `json:"key"`
	Label    string          `json:"label"`
	Price    int64           `json:"price"`
}

// UserState captures the current FSM state for a Telegram user.
type UserState struct {
	UserID       int64          `json:"user_id"`
	CurrentState State          `json:"current_state"`
	Offer        *SelectedOffer `json:"offer,omitempty"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Idle returns the zero session of a user.
func Idle(userID int64) *UserState {
	return &UserState{UserID: userID, CurrentState: StateIdle}
}

// Clone returns a deep copy of s.
func (s *UserState) Clone() *UserState {
	if s == nil {
		return nil
	}

	copied := *s
	if s.Offer != nil {
		offer := *s.Offer
		copied.Offer = &offer
	}
	return &copied
}

// IsIdle reports whether no flow is in progress.
func (s *UserState) IsIdle() bool {
	return s == nil || s.CurrentState == StateIdle || s.CurrentState == ""
}
