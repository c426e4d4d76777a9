package order

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/storefront-bot/internal/domain"
)

func pendingOrder(t *testing.T, createdAt time.Time) domain.Order {
	t.Helper()

	id, err := NewID()
	require.NoError(t, err)

	return domain.Order{
		ID:        id,
		Kind:      domain.OrderKindPurchase,
		BuyerID:   100,
		BuyerName: "@buyer",
		Category:  domain.CategoryStars,
		Key:       "50",
		Label:     "50 Stars",
		Price:     12000,
		Target:    "@bob",
		Status:    domain.OrderStatusPending,
		CreatedAt: createdAt,
	}
}

func TestNewID(t *testing.T) {
	a, err := NewID()
	require.NoError(t, err)
	b, err := NewID()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.True(t, ValidID(a))
	assert.Contains(t, a, "ord_")
	assert.False(t, ValidID("user_01h455vb4pex5vsknk084sn02q"))
	assert.False(t, ValidID("ord_???"))
}

func TestMemoryLedger_Create(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()
	o := pendingOrder(t, time.Now())

	require.NoError(t, ledger.Create(ctx, o))
	assert.ErrorIs(t, ledger.Create(ctx, o), ErrDuplicateID)

	got, err := ledger.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o, got)

	_, err = ledger.Get(ctx, "ord_missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestMemoryLedger_CreateRejectsInvalid(t *testing.T) {
	base := pendingOrder(t, time.Now())

	testCases := []struct {
		name   string
		mutate func(o *domain.Order)
	}{
		{name: "empty id", mutate: func(o *domain.Order) { o.ID = "" }},
		{name: "terminal status", mutate: func(o *domain.Order) { o.Status = domain.OrderStatusCompleted }},
		{name: "zero price", mutate: func(o *domain.Order) { o.Price = 0 }},
		{name: "unknown kind", mutate: func(o *domain.Order) { o.Kind = "gift" }},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			o := base
			tc.mutate(&o)
			assert.Error(t, NewMemoryLedger().Create(context.Background(), o))
		})
	}
}

func TestMemoryLedger_ResolveExactlyOnce(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()
	o := pendingOrder(t, time.Now())
	require.NoError(t, ledger.Create(ctx, o))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []domain.OrderStatus
	)
	for i := 0; i < 20; i++ {
		to := domain.OrderStatusCompleted
		if i%2 == 1 {
			to = domain.OrderStatusCancelled
		}

		wg.Add(1)
		go func(admin int64) {
			defer wg.Done()
			resolved, err := ledger.Resolve(ctx, o.ID, to, admin, time.Now())
			if err == nil {
				mu.Lock()
				winners = append(winners, resolved.Status)
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrNotPending)
		}(int64(i + 1))
	}
	wg.Wait()

	require.Len(t, winners, 1)

	got, err := ledger.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, winners[0], got.Status)
	assert.NotZero(t, got.HandledBy)
	assert.False(t, got.ResolvedAt.IsZero())
}

func TestMemoryLedger_ResolveErrors(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()
	o := pendingOrder(t, time.Now())
	require.NoError(t, ledger.Create(ctx, o))

	_, err := ledger.Resolve(ctx, "ord_unknown", domain.OrderStatusCompleted, 1, time.Now())
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, err = ledger.Resolve(ctx, o.ID, domain.OrderStatusPending, 1, time.Now())
	assert.Error(t, err)

	got, err := ledger.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, got.Status)
}

func TestMemoryLedger_Reopen(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()
	o := pendingOrder(t, time.Now())
	require.NoError(t, ledger.Create(ctx, o))

	_, err := ledger.Resolve(ctx, o.ID, domain.OrderStatusCancelled, 7, time.Now())
	require.NoError(t, err)

	assert.ErrorIs(t, ledger.Reopen(ctx, o.ID, domain.OrderStatusCompleted), ErrNotPending)
	require.NoError(t, ledger.Reopen(ctx, o.ID, domain.OrderStatusCancelled))

	got, err := ledger.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, got.Status)
	assert.Zero(t, got.HandledBy)
	assert.True(t, got.ResolvedAt.IsZero())

	assert.ErrorIs(t, ledger.Reopen(ctx, o.ID, domain.OrderStatusCancelled), ErrNotPending)
	assert.ErrorIs(t, ledger.Reopen(ctx, "ord_unknown", domain.OrderStatusCancelled), ErrOrderNotFound)
}

func TestMemoryLedger_ListPending(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	oldest := pendingOrder(t, now.Add(-3*time.Hour))
	older := pendingOrder(t, now.Add(-2*time.Hour))
	fresh := pendingOrder(t, now.Add(-time.Minute))
	done := pendingOrder(t, now.Add(-4*time.Hour))

	for _, o := range []domain.Order{fresh, older, done, oldest} {
		require.NoError(t, ledger.Create(ctx, o))
	}
	_, err := ledger.Resolve(ctx, done.ID, domain.OrderStatusCompleted, 1, now)
	require.NoError(t, err)

	all, err := ledger.ListPending(ctx, now, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{oldest.ID, older.ID, fresh.ID}, []string{all[0].ID, all[1].ID, all[2].ID})

	stale, err := ledger.ListPending(ctx, now.Add(-30*time.Minute), 1)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, oldest.ID, stale[0].ID)
}
