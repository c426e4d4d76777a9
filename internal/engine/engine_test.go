package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

const secondAdminID = int64(8)

var errStoreDown = errors.New("store is down")

type sentMessage struct {
	chatID int64
	text   string
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (s *recordingSender) Send(_ context.Context, chatID int64, msg notify.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMessage{chatID: chatID, text: msg.Text})
	return nil
}

func (s *recordingSender) to(chatID int64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var texts []string
	for _, m := range s.sent {
		if m.chatID == chatID {
			texts = append(texts, m.text)
		}
	}
	return texts
}

// failingLedger fails Create on demand.
type failingLedger struct {
	*order.MemoryLedger
	failCreate bool
}

func (l *failingLedger) Create(ctx context.Context, o domain.Order) error {
	if l.failCreate {
		return errStoreDown
	}
	return l.MemoryLedger.Create(ctx, o)
}

// failingBalances refuses credits on demand.
type failingBalances struct {
	*balance.MemoryStore
	failCredits atomic.Bool
}

func (b *failingBalances) Adjust(ctx context.Context, userID int64, delta int64) (int64, error) {
	if delta > 0 && b.failCredits.Load() {
		return 0, errStoreDown
	}
	return b.MemoryStore.Adjust(ctx, userID, delta)
}

// failingStates refuses session writes on demand.
type failingStates struct {
	*state.MemoryStorage
	failWrites atomic.Bool
}

func (s *failingStates) SetState(ctx context.Context, userID int64, st *state.UserState) error {
	if s.failWrites.Load() {
		return errStoreDown
	}
	return s.MemoryStorage.SetState(ctx, userID, st)
}

func (s *failingStates) ClearState(ctx context.Context, userID int64) error {
	if s.failWrites.Load() {
		return errStoreDown
	}
	return s.MemoryStorage.ClearState(ctx, userID)
}

type fixture struct {
	engine   *Engine
	balances *failingBalances
	orders   *failingLedger
	promos   *promo.MemoryStore
	states   *failingStates
	fsm      state.StateMachine
	sender   *recordingSender
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := &config.Config{
		Bot: config.BotConfig{Admins: []int64{adminID, secondAdminID}},
		Shop: config.ShopConfig{
			CurrencySign:  "so'm",
			TopUpMin:      1000,
			TopUpMax:      10_000_000,
			ReferralBonus: 500,
			Offers: []config.OfferConfig{
				{Category: "currency", Group: "PUBG UC", Key: "uc_60", Label: "60 UC", Price: 12000},
				{Category: "premium", Key: "premium_3m", Label: "Premium 3 months", Price: 170000},
				{Category: "stars", Key: "stars_50", Label: "50 Stars", Price: 12000},
			},
		},
		Engine: config.EngineConfig{OperationTimeout: 5 * time.Second, LockWait: 5 * time.Second},
	}

	cat, err := catalog.New(cfg.Shop.Offers)
	require.NoError(t, err)

	log := testLogger()
	states := &failingStates{MemoryStorage: state.NewMemoryStorage()}
	f := &fixture{
		balances: &failingBalances{MemoryStore: balance.NewMemoryStore()},
		orders:   &failingLedger{MemoryLedger: order.NewMemoryLedger()},
		promos:   promo.NewMemoryStore(),
		states:   states,
		fsm:      state.NewStateMachine(states, log, nil, cfg.Engine.LockWait),
		sender:   &recordingSender{},
	}

	f.engine = New(Deps{
		FSM:        f.fsm,
		Balances:   f.balances,
		Orders:     f.orders,
		Promos:     f.promos,
		Catalog:    cat,
		Dispatcher: notify.NewDispatcher(f.sender, cfg.Bot.Admins, time.Second, 0, log),
		Log:        log,
	}, cfg)

	return f
}

func (f *fixture) fund(t *testing.T, userID, amount int64) {
	t.Helper()
	_, err := f.balances.MemoryStore.Adjust(context.Background(), userID, amount)
	require.NoError(t, err)
}

func (f *fixture) balanceOf(t *testing.T, userID int64) int64 {
	t.Helper()
	b, err := f.balances.Balance(context.Background(), userID)
	require.NoError(t, err)
	return b
}

func (f *fixture) pending(t *testing.T) []domain.Order {
	t.Helper()
	orders, err := f.engine.Pending(context.Background(), adminID)
	require.NoError(t, err)
	return orders
}

func (f *fixture) session(t *testing.T, userID int64) *state.UserState {
	t.Helper()
	st, err := f.fsm.Current(context.Background(), userID)
	require.NoError(t, err)
	return st
}

func (f *fixture) handle(t *testing.T, ev Event) (Result, error) {
	t.Helper()
	return f.engine.Handle(context.Background(), ev)
}

func buyer() domain.Profile {
	return domain.Profile{UserID: buyerID, Username: "buyer", FirstName: "Bob"}
}

func admin(id int64) domain.Profile {
	return domain.Profile{UserID: id, Username: fmt.Sprintf("admin%d", id)}
}

// purchase runs the select and target steps and returns the created order.
func (f *fixture) purchase(t *testing.T, category domain.Category, key, target string) domain.Order {
	t.Helper()

	_, err := f.handle(t, Event{Kind: EventSelectOffer, Actor: buyer(), Category: category, Key: key})
	require.NoError(t, err)

	res, err := f.handle(t, Event{Kind: EventText, Actor: buyer(), Text: target})
	require.NoError(t, err)
	require.NotNil(t, res.Reply)

	orders := f.pending(t)
	require.NotEmpty(t, orders)
	return orders[len(orders)-1]
}

func TestEngine_PurchaseCreatesPendingOrder(t *testing.T) {
	f := newFixture(t)
	f.fund(t, buyerID, 100000)

	res, err := f.handle(t, Event{Kind: EventSelectOffer, Actor: buyer(), Category: domain.CategoryCurrency, Key: "uc_60"})
	require.NoError(t, err)
	assert.Contains(t, res.Reply.Text, "12 000 so'm")
	assert.Equal(t, state.StateAwaitingTarget, f.session(t, buyerID).CurrentState)

	res, err = f.handle(t, Event{Kind: EventText, Actor: buyer(), Text: "123456789"})
	require.NoError(t, err)
	assert.Contains(t, res.Reply.Text, "88 000 so'm")
	assert.NotContains(t, res.Reply.Text, notify.PlaceholderBalance)

	assert.Equal(t, int64(88000), f.balanceOf(t, buyerID))
	assert.True(t, f.session(t, buyerID).IsIdle())

	orders := f.pending(t)
	require.Len(t, orders, 1)
	o := orders[0]
	assert.True(t, order.ValidID(o.ID))
	assert.Equal(t, domain.OrderStatusPending, o.Status)
	assert.Equal(t, buyerID, o.BuyerID)
	assert.Equal(t, int64(12000), o.Price)
	assert.Equal(t, "123456789", o.Target)

	for _, id := range []int64{adminID, secondAdminID} {
		msgs := f.sender.to(id)
		require.Len(t, msgs, 1)
		assert.Contains(t, msgs[0], o.ID)
	}
}

func TestEngine_InsufficientFunds(t *testing.T) {
	f := newFixture(t)
	f.fund(t, buyerID, 5000)

	_, err := f.handle(t, Event{Kind: EventSelectOffer, Actor: buyer(), Category: domain.CategoryCurrency, Key: "uc_60"})
	require.NoError(t, err, "selection does not check the balance")

	_, err = f.handle(t, Event{Kind: EventText, Actor: buyer(), Text: "123456789"})
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeInsufficientFunds, appErr.Code)
	assert.Equal(t, int64(7000), appErr.Shortfall)

	assert.Equal(t, int64(5000), f.balanceOf(t, buyerID))
	assert.Empty(t, f.pending(t))
	assert.True(t, f.session(t, buyerID).IsIdle())
	assert.Empty(t, f.sender.to(adminID))
}

func TestEngine_TargetValidation(t *testing.T) {
	testCases := []struct {
		name     string
		category domain.Category
		key      string
		invalid  string
		valid    string
	}{
		{name: "player id", category: domain.CategoryCurrency, key: "uc_60", invalid: "abc", valid: "123456789"},
		{name: "username", category: domain.CategoryPremium, key: "premium_3m", invalid: "bob", valid: "@bob"},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.fund(t, buyerID, 1_000_000)

			_, err := f.handle(t, Event{Kind: EventSelectOffer, Actor: buyer(), Category: tc.category, Key: tc.key})
			require.NoError(t, err)

			_, err = f.handle(t, Event{Kind: EventText, Actor: buyer(), Text: tc.invalid})
			assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
			assert.Equal(t, state.StateAwaitingTarget, f.session(t, buyerID).CurrentState)
			assert.Equal(t, int64(1_000_000), f.balanceOf(t, buyerID))

			_, err = f.handle(t, Event{Kind: EventText, Actor: buyer(), Text: tc.valid})
			require.NoError(t, err)
			require.Len(t, f.pending(t), 1)
			assert.Equal(t, tc.valid, f.pending(t)[0].Target)
		})
	}
}

func TestEngine_UnknownOfferIsRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.handle(t, Event{Kind: EventSelectOffer, Actor: buyer(), Category: domain.CategoryStars, Key: "stars_999"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	assert.True(t, f.session(t, buyerID).IsIdle())
}

func TestEngine_NonAdminCannotResolve(t *testing.T) {
	f := newFixture(t)
	f.fund(t, buyerID, 100000)
	o := f.purchase(t, domain.CategoryCurrency, "uc_60", "123456789")

	for _, kind := range []EventKind{EventApprove, EventReject} {
		_, err := f.handle(t, Event{Kind: kind, Actor: buyer(), OrderID: o.ID})
		assert.True(t, apperrors.HasCode(err, apperrors.CodeAuthorization))
	}

	got, err := f.orders.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, got.Status)
	assert.Equal(t, int64(88000), f.balanceOf(t, buyerID))
}

func TestEngine_AdminCancelRefunds(t *testing.T) {
	f := newFixture(t)
	f.fund(t, buyerID, 100000)
	o := f.purchase(t, domain.CategoryCurrency, "uc_60", "123456789")

	res, err := f.handle(t, Event{Kind: EventReject, Actor: admin(adminID), OrderID: o.ID})
	require.NoError(t, err)
	assert.Contains(t, res.Reply.Text, "cancelled")

	assert.Equal(t, int64(100000), f.balanceOf(t, buyerID))

	got, err := f.orders.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, got.Status)
	assert.Equal(t, adminID, got.HandledBy)
	assert.False(t, got.ResolvedAt.IsZero())

	buyerMsgs := f.sender.to(buyerID)
	require.Len(t, buyerMsgs, 1)
	assert.Contains(t, buyerMsgs[0], "100 000 so'm")

	_, err = f.handle(t, Event{Kind: EventReject, Actor: admin(secondAdminID), OrderID: o.ID})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
	assert.Equal(t, int64(100000), f.balanceOf(t, buyerID), "no second refund")
}

func TestEngine_CompletedOrderIsNeverRefunded(t *testing.T) {
	f := newFixture(t)
	f.fund(t, buyerID, 100000)
	o := f.purchase(t, domain.CategoryCurrency, "uc_60", "123456789")

	_, err := f.handle(t, Event{Kind: EventApprove, Actor: admin(adminID), OrderID: o.ID})
	require.NoError(t, err)

	_, err = f.handle(t, Event{Kind: EventReject, Actor: admin(secondAdminID), OrderID: o.ID})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	got, err := f.orders.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCompleted, got.Status)
	assert.Equal(t, adminID, got.HandledBy)
	assert.Equal(t, int64(88000), f.balanceOf(t, buyerID))
	assert.Empty(t, f.pending(t))
}

func TestEngine_ConcurrentCancelRefundsOnce(t *testing.T) {
	f := newFixture(t)
	f.fund(t, buyerID, 100000)
	o := f.purchase(t, domain.CategoryCurrency, "uc_60", "123456789")

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			actor := adminID
			if i%2 == 1 {
				actor = secondAdminID
			}
			if _, err := f.engine.Handle(context.Background(), Event{Kind: EventReject, Actor: admin(actor), OrderID: o.ID}); err == nil {
				successes.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int64(100000), f.balanceOf(t, buyerID))
}

func TestEngine_UnknownOrder(t *testing.T) {
	f := newFixture(t)

	_, err := f.handle(t, Event{Kind: EventApprove, Actor: admin(adminID), OrderID: "ord_01h455vb4pex5vsknk084sn02q"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestEngine_TopUp(t *testing.T) {
	t.Run("approved request credits the balance", func(t *testing.T) {
		f := newFixture(t)

		res, err := f.handle(t, Event{Kind: EventStartTopUp, Actor: buyer()})
		require.NoError(t, err)
		assert.Contains(t, res.Reply.Text, "1 000 so'm")

		_, err = f.handle(t, Event{Kind: EventText, Actor: buyer(), Text: "500"})
		assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
		assert.Equal(t, state.StateAwaitingAmount, f.session(t, buyerID).CurrentState)

		_, err = f.handle(t, Event{Kind: EventText, Actor: buyer(), Text: "50 000"})
		require.NoError(t, err)
		assert.Equal(t, int64(0), f.balanceOf(t, buyerID), "nothing is credited before approval")

		orders := f.pending(t)
		require.Len(t, orders, 1)
		assert.Equal(t, domain.OrderKindTopUp, orders[0].Kind)

		_, err = f.handle(t, Event{Kind: EventApprove, Actor: admin(adminID), OrderID: orders[0].ID})
		require.NoError(t, err)
		assert.Equal(t, int64(50000), f.balanceOf(t, buyerID))

		msgs := f.sender.to(buyerID)
		require.Len(t, msgs, 1)
		assert.Contains(t, msgs[0], "50 000 so'm")
	})

	t.Run("rejected request leaves the balance", func(t *testing.T) {
		f := newFixture(t)
		f.fund(t, buyerID, 3000)

		_, err := f.handle(t, Event{Kind: EventStartTopUp, Actor: buyer()})
		require.NoError(t, err)
		_, err = f.handle(t, Event{Kind: EventText, Actor: buyer(), Text: "20000"})
		require.NoError(t, err)

		orders := f.pending(t)
		require.Len(t, orders, 1)

		_, err = f.handle(t, Event{Kind: EventReject, Actor: admin(adminID), OrderID: orders[0].ID})
		require.NoError(t, err)
		assert.Equal(t, int64(3000), f.balanceOf(t, buyerID))
	})
}

func TestEngine_Promo(t *testing.T) {
	f := newFixture(t)
	f.fund(t, buyerID, 1000)

	_, err := f.engine.CreatePromo(context.Background(), buyerID, "WELCOME", 5000, 10)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAuthorization))

	code, err := f.engine.CreatePromo(context.Background(), adminID, "welcome", 5000, 10)
	require.NoError(t, err)
	assert.Equal(t, "WELCOME", code)

	_, err = f.engine.CreatePromo(context.Background(), adminID, "WELCOME", 5000, 10)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	redeem := func(text string) (Result, error) {
		_, err := f.handle(t, Event{Kind: EventStartPromo, Actor: buyer()})
		require.NoError(t, err)
		return f.handle(t, Event{Kind: EventText, Actor: buyer(), Text: text})
	}

	res, err := redeem(" welcome ")
	require.NoError(t, err)
	assert.Contains(t, res.Reply.Text, "5 000 so'm")
	assert.Contains(t, res.Reply.Text, "6 000 so'm")
	assert.Equal(t, int64(6000), f.balanceOf(t, buyerID))

	_, err = redeem("WELCOME")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	assert.Equal(t, int64(6000), f.balanceOf(t, buyerID))

	_, err = redeem("NOPE123")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
	assert.True(t, f.session(t, buyerID).IsIdle())
}

func TestEngine_PromoCreditFailureReleasesTheCode(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.CreatePromo(context.Background(), adminID, "ONCE", 5000, 1)
	require.NoError(t, err)

	_, err = f.handle(t, Event{Kind: EventStartPromo, Actor: buyer()})
	require.NoError(t, err)

	f.balances.failCredits.Store(true)
	_, err = f.handle(t, Event{Kind: EventText, Actor: buyer(), Text: "ONCE"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodePersistence))

	f.balances.failCredits.Store(false)
	amount, err := f.promos.Redeem(context.Background(), "ONCE", buyerID)
	require.NoError(t, err, "the single use was given back")
	assert.Equal(t, int64(5000), amount)
}

func TestEngine_Adjust(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Join(context.Background(), buyer())
	require.NoError(t, err)
	f.fund(t, buyerID, 1000)

	_, err = f.handle(t, Event{Kind: EventStartAdjust, Actor: buyer()})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAuthorization))
	assert.True(t, f.session(t, buyerID).IsIdle())

	start := func() {
		_, err := f.handle(t, Event{Kind: EventStartAdjust, Actor: admin(adminID)})
		require.NoError(t, err)
	}

	start()
	res, err := f.handle(t, Event{Kind: EventText, Actor: admin(adminID), Text: "1001 2500"})
	require.NoError(t, err)
	assert.Contains(t, res.Reply.Text, "3 500 so'm")
	assert.Equal(t, int64(3500), f.balanceOf(t, buyerID))
	assert.True(t, f.session(t, adminID).IsIdle())

	msgs := f.sender.to(buyerID)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "+2 500 so'm")

	start()
	_, err = f.handle(t, Event{Kind: EventText, Actor: admin(adminID), Text: "1001 -5000"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	assert.Equal(t, int64(3500), f.balanceOf(t, buyerID), "balances never go negative")

	start()
	_, err = f.handle(t, Event{Kind: EventText, Actor: admin(adminID), Text: "999999 100"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
	assert.Equal(t, state.StateAwaitingAdminEdit, f.session(t, adminID).CurrentState)
}

func TestEngine_JoinPaysReferralBonusOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	referrerID := int64(2002)

	created, err := f.engine.Join(ctx, domain.Profile{UserID: referrerID, Username: "inviter"})
	require.NoError(t, err)
	assert.True(t, created)

	newcomer := buyer()
	newcomer.ReferredBy = referrerID

	created, err = f.engine.Join(ctx, newcomer)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(500), f.balanceOf(t, referrerID))

	msgs := f.sender.to(referrerID)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "@buyer")

	created, err = f.engine.Join(ctx, newcomer)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(500), f.balanceOf(t, referrerID))

	_, referrals, err := f.engine.Summary(ctx, referrerID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), referrals)
}

func TestEngine_JoinIgnoresInvalidReferrers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	self := domain.Profile{UserID: 3003, ReferredBy: 3003}
	_, err := f.engine.Join(ctx, self)
	require.NoError(t, err)
	assert.Equal(t, int64(0), f.balanceOf(t, 3003))

	stranger := domain.Profile{UserID: 4004, ReferredBy: 5005}
	_, err = f.engine.Join(ctx, stranger)
	require.NoError(t, err)

	acc, err := f.balances.Account(ctx, 4004)
	require.NoError(t, err)
	assert.Zero(t, acc.ReferredBy)
	assert.Equal(t, int64(0), f.balanceOf(t, 5005))
}

func TestEngine_OrderFailureRestoresBalance(t *testing.T) {
	f := newFixture(t)
	f.fund(t, buyerID, 100000)

	_, err := f.handle(t, Event{Kind: EventSelectOffer, Actor: buyer(), Category: domain.CategoryStars, Key: "stars_50"})
	require.NoError(t, err)

	f.orders.failCreate = true
	_, err = f.handle(t, Event{Kind: EventText, Actor: buyer(), Text: "@friend"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodePersistence))

	assert.Equal(t, int64(100000), f.balanceOf(t, buyerID))
	assert.True(t, f.session(t, buyerID).IsIdle())
	assert.Empty(t, f.sender.to(adminID))
}

func TestEngine_SessionWriteFailureAppliesNothing(t *testing.T) {
	f := newFixture(t)
	f.fund(t, buyerID, 100000)

	_, err := f.handle(t, Event{Kind: EventSelectOffer, Actor: buyer(), Category: domain.CategoryCurrency, Key: "uc_60"})
	require.NoError(t, err)

	f.states.failWrites.Store(true)
	_, err = f.handle(t, Event{Kind: EventText, Actor: buyer(), Text: "123456789"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodePersistence))

	assert.Equal(t, int64(100000), f.balanceOf(t, buyerID))
	assert.Empty(t, f.pending(t))
	assert.Equal(t, state.StateAwaitingTarget, f.session(t, buyerID).CurrentState)
	assert.Empty(t, f.sender.to(adminID))

	// the retried step is charged exactly once
	f.states.failWrites.Store(false)
	_, err = f.handle(t, Event{Kind: EventText, Actor: buyer(), Text: "123456789"})
	require.NoError(t, err)
	_, err = f.handle(t, Event{Kind: EventText, Actor: buyer(), Text: "123456789"})
	assert.NoError(t, err)

	assert.Equal(t, int64(88000), f.balanceOf(t, buyerID))
	assert.Len(t, f.pending(t), 1)
	assert.True(t, f.session(t, buyerID).IsIdle())
}

func TestRollbackSession(t *testing.T) {
	f := newFixture(t)

	_, err := f.handle(t, Event{Kind: EventSelectOffer, Actor: buyer(), Category: domain.CategoryStars, Key: "stars_50"})
	require.NoError(t, err)

	got := rollbackSession(Decision{Next: state.Idle(buyerID)}, f.session(t, buyerID), buyerID)
	assert.Equal(t, state.StateAwaitingTarget, got.CurrentState)

	got = rollbackSession(Decision{Next: state.Idle(buyerID)}, nil, buyerID)
	assert.True(t, got.IsIdle())

	abort := state.Idle(buyerID)
	assert.Same(t, abort, rollbackSession(Decision{Next: f.session(t, buyerID), Abort: abort}, nil, buyerID))
	assert.Nil(t, rollbackSession(Decision{}, f.session(t, buyerID), buyerID))
}

func TestEngine_RefundFailureReopensOrder(t *testing.T) {
	f := newFixture(t)
	f.fund(t, buyerID, 100000)
	o := f.purchase(t, domain.CategoryCurrency, "uc_60", "123456789")

	f.balances.failCredits.Store(true)
	_, err := f.handle(t, Event{Kind: EventReject, Actor: admin(adminID), OrderID: o.ID})
	assert.True(t, apperrors.HasCode(err, apperrors.CodePersistence))

	got, err := f.orders.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, got.Status)
	assert.Zero(t, got.HandledBy)

	f.balances.failCredits.Store(false)
	_, err = f.handle(t, Event{Kind: EventReject, Actor: admin(adminID), OrderID: o.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(100000), f.balanceOf(t, buyerID))
}

func TestEngine_CancelAndFreeText(t *testing.T) {
	f := newFixture(t)

	res, err := f.handle(t, Event{Kind: EventText, Actor: buyer(), Text: "hello"})
	require.NoError(t, err)
	assert.True(t, res.Unhandled)

	_, err = f.handle(t, Event{Kind: EventSelectOffer, Actor: buyer(), Category: domain.CategoryStars, Key: "stars_50"})
	require.NoError(t, err)

	res, err = f.handle(t, Event{Kind: EventCancel, Actor: buyer()})
	require.NoError(t, err)
	assert.Equal(t, "Cancelled.", res.Reply.Text)
	assert.True(t, f.session(t, buyerID).IsIdle())
}

func TestEngine_PendingRequiresAdmin(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Pending(context.Background(), buyerID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAuthorization))
}

func TestEngine_ConcurrentPurchasesNeverOverdraw(t *testing.T) {
	f := newFixture(t)
	f.fund(t, buyerID, 30000)

	// the same buyer tapping from several devices at once
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.engine.Handle(context.Background(), Event{Kind: EventSelectOffer, Actor: buyer(), Category: domain.CategoryStars, Key: "stars_50"})
			_, _ = f.engine.Handle(context.Background(), Event{Kind: EventText, Actor: buyer(), Text: "@friend"})
		}()
	}
	wg.Wait()

	bal := f.balanceOf(t, buyerID)
	orders := f.pending(t)
	assert.GreaterOrEqual(t, bal, int64(0))
	assert.Equal(t, int64(30000), bal+int64(len(orders))*12000)
	assert.LessOrEqual(t, len(orders), 2)
	for _, o := range orders {
		assert.True(t, strings.HasPrefix(o.ID, "ord_"))
	}
}
