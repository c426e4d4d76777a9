package domain

import "time"

type OrderKind string

const (
	// OrderKindPurchase is paid from the balance at creation.
	OrderKindPurchase OrderKind = "purchase"
	// OrderKindTopUp credits the balance once approved.
	OrderKindTopUp OrderKind = "topup"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// Order is a purchase or top-up request awaiting or past admin review.
type Order struct {
	ID         string
	Kind       OrderKind
	BuyerID    int64
	BuyerName  string
	Category   Category
	Key        string
	Label      string
	Price      int64
	Target     string
	Status     OrderStatus
	CreatedAt  time.Time
	ResolvedAt time.Time
	HandledBy  int64
}
