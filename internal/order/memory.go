package order

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Proton-105/storefront-bot/internal/domain"
)

// MemoryLedger keeps orders in process memory. Orders are lost on restart.
type MemoryLedger struct {
	mu     sync.RWMutex
	orders map[string]domain.Order
}

var _ Ledger = (*MemoryLedger)(nil)

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{orders: make(map[string]domain.Order)}
}

func (l *MemoryLedger) Create(_ context.Context, o domain.Order) error {
	if err := validateNew(o); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.orders[o.ID]; exists {
		return ErrDuplicateID
	}
	l.orders[o.ID] = o
	return nil
}

func (l *MemoryLedger) Get(_ context.Context, id string) (domain.Order, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	o, ok := l.orders[id]
	if !ok {
		return domain.Order{}, ErrOrderNotFound
	}
	return o, nil
}

func (l *MemoryLedger) Resolve(_ context.Context, id string, to domain.OrderStatus, handledBy int64, at time.Time) (domain.Order, error) {
	if err := validateTerminal(to); err != nil {
		return domain.Order{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	o, ok := l.orders[id]
	if !ok {
		return domain.Order{}, ErrOrderNotFound
	}
	if o.Status != domain.OrderStatusPending {
		return o, ErrNotPending
	}

	o.Status = to
	o.HandledBy = handledBy
	o.ResolvedAt = at
	l.orders[id] = o
	return o, nil
}

func (l *MemoryLedger) Reopen(_ context.Context, id string, from domain.OrderStatus) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	o, ok := l.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	if o.Status != from || !from.Terminal() {
		return ErrNotPending
	}

	o.Status = domain.OrderStatusPending
	o.HandledBy = 0
	o.ResolvedAt = time.Time{}
	l.orders[id] = o
	return nil
}

func (l *MemoryLedger) ListPending(_ context.Context, createdBefore time.Time, limit int) ([]domain.Order, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var pending []domain.Order
	for _, o := range l.orders {
		if o.Status == domain.OrderStatusPending && o.CreatedAt.Before(createdBefore) {
			pending = append(pending, o)
		}
	}

	sort.Slice(pending, func(i, j int) bool {
		if pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].ID < pending[j].ID
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})

	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}
