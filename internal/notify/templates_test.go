package notify

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/storefront-bot/internal/bot/keyboard"
	"github.com/Proton-105/storefront-bot/internal/domain"
)

func testOrder() domain.Order {
	return domain.Order{
		ID:        "ord_01h455vb4pex5vsknk084sn02q",
		Kind:      domain.OrderKindPurchase,
		BuyerID:   100,
		BuyerName: "@buyer",
		Category:  domain.CategoryStars,
		Key:       "50",
		Label:     "50 Stars",
		Price:     12000,
		Target:    "@bob",
		Status:    domain.OrderStatusPending,
	}
}

func TestTemplates_AdminMessagesCarryExactlyTwoActions(t *testing.T) {
	tpl := Templates{Sign: "so'm"}
	o := testOrder()

	for _, msg := range []Message{tpl.PurchaseAdmin(o), tpl.TopUpAdmin(o)} {
		require.Len(t, msg.Buttons, 1)
		require.Len(t, msg.Buttons[0], 2)
		assert.Equal(t, keyboard.CallbackApprove, msg.Buttons[0][0].Unique)
		assert.Equal(t, keyboard.CallbackReject, msg.Buttons[0][1].Unique)
		assert.Equal(t, o.ID, msg.Buttons[0][0].Data)
		assert.Equal(t, o.ID, msg.Buttons[0][1].Data)
	}
}

func TestTemplates_PurchasePendingNamesOrderAndAmount(t *testing.T) {
	msg := Templates{Sign: "so'm"}.PurchasePending(testOrder()).Fill(88000, 0, "so'm")

	assert.Contains(t, msg.Text, "ord_01h455vb4pex5vsknk084sn02q")
	assert.Contains(t, msg.Text, "12 000 so'm")
	assert.Contains(t, msg.Text, "Balance: 88 000 so'm")
	assert.NotContains(t, msg.Text, PlaceholderBalance)
}

func TestMessage_Fill(t *testing.T) {
	msg := Templates{Sign: "so'm"}.PromoRedeemed("WELCOME").Fill(15000, 5000, "so'm")
	assert.Equal(t, "🎁 Promo code WELCOME activated: +5 000 so'm.\nBalance: 15 000 so'm", msg.Text)

	untouched := Message{Text: "no placeholders"}
	assert.Equal(t, untouched, untouched.Fill(1, 2, "so'm"))
}

func TestMessage_FillKeepsUserSuppliedBraces(t *testing.T) {
	tpl := Templates{Sign: "so'm"}
	o := testOrder()
	o.Target = "@{balance}"
	o.BuyerName = "{credited}{{"

	admin := tpl.PurchaseAdmin(o).Fill(88000, 500, "so'm")
	assert.Contains(t, admin.Text, "Buyer: {credited}{{ (100)")
	assert.Contains(t, admin.Text, "Target: @{balance}")

	buyer := tpl.PurchasePending(o).Fill(88000, 0, "so'm")
	assert.Contains(t, buyer.Text, "50 Stars for @{balance}\n")
	assert.Contains(t, buyer.Text, "Balance: 88 000 so'm")

	referral := tpl.ReferralBonus("{balance}", 100).Fill(1100, 0, "so'm")
	assert.Equal(t, "👥 {balance} joined with your link: +100 so'm.\nBalance: 1 100 so'm", referral.Text)

	promo := tpl.PromoRedeemed("{{X}}").Fill(15000, 5000, "so'm")
	assert.True(t, strings.HasPrefix(promo.Text, "🎁 Promo code {{X}} activated: +5 000 so'm."))
}

func TestTemplates_PendingReminderTruncates(t *testing.T) {
	orders := make([]domain.Order, 12)
	for i := range orders {
		orders[i] = testOrder()
	}

	msg := Templates{Sign: "so'm"}.PendingReminder(orders, 30*time.Minute)
	assert.Contains(t, msg.Text, "12 order(s) waiting longer than 30m0s")
	assert.Contains(t, msg.Text, "and 2 more")
}

func TestMessage_MarkupWithoutButtons(t *testing.T) {
	markup, err := Message{Text: "plain"}.Markup()
	require.NoError(t, err)
	assert.Nil(t, markup)
}
