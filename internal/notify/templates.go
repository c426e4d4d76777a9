package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/Proton-105/storefront-bot/internal/bot/keyboard"
	"github.com/Proton-105/storefront-bot/internal/domain"
)

const maxReminderLines = 10

// Templates renders every lifecycle message. The zero value prints bare numbers.
type Templates struct {
	Sign           string
	PaymentDetails string
}

func formatMoney(amount int64, sign string) string {
	return domain.FormatMoney(amount, sign)
}

func (t Templates) money(amount int64) string {
	return formatMoney(amount, t.Sign)
}

func plain(format string, args ...any) Message {
	return Message{Text: fmt.Sprintf(format, args...)}
}

// Welcome greets a user on /start.
func (t Templates) Welcome(name string) Message {
	if name == "" {
		name = "there"
	}
	return plain("👋 Hi, %s!\nPick a category in 🛒 Shop, top up your balance or redeem a promo code.", name)
}

// TargetHint explains the fulfillment target expected for a category.
func (t Templates) TargetHint(category domain.Category) string {
	if category == domain.CategoryCurrency {
		return "Send the player ID: digits only, at least 5 of them."
	}
	return "Send the recipient's Telegram username starting with @, e.g. @durov."
}

// OfferSelected confirms the choice and asks for the fulfillment target.
func (t Templates) OfferSelected(offer domain.Offer, balance int64) Message {
	return plain("You picked %s for %s.\nYour balance: %s.\n\n%s",
		offer.Label, t.money(offer.Price), t.money(balance), t.TargetHint(offer.Category))
}

// PurchasePending tells the buyer the order waits for an admin.
func (t Templates) PurchasePending(o domain.Order) Message {
	return withPlaceholders("✅ Order %s accepted.\n%s for %s\nPaid: %s\nBalance: "+PlaceholderBalance+"\n\nAn admin will confirm it shortly.",
		o.ID, o.Label, o.Target, t.money(o.Price))
}

// PurchaseAdmin asks the admins to fulfil an order. It carries exactly the approve and cancel actions.
func (t Templates) PurchaseAdmin(o domain.Order) Message {
	return Message{
		Text: fmt.Sprintf("🆕 New order %s\nBuyer: %s (%d)\nItem: %s\nTarget: %s\nPrice: %s",
			o.ID, o.BuyerName, o.BuyerID, o.Label, o.Target, t.money(o.Price)),
		Buttons: [][]keyboard.InlineButton{keyboard.OrderActions(o.ID)},
	}
}

// OrderCompleted tells the buyer the goods were delivered.
func (t Templates) OrderCompleted(o domain.Order) Message {
	return plain("🎉 Order %s is completed: %s delivered to %s.", o.ID, o.Label, o.Target)
}

// OrderCancelled tells the buyer the order was cancelled and refunded.
func (t Templates) OrderCancelled(o domain.Order) Message {
	return withPlaceholders("❌ Order %s was cancelled. %s returned to your balance.\nBalance: "+PlaceholderBalance,
		o.ID, t.money(o.Price))
}

// OrderResolved confirms an admin decision to the admin.
func (t Templates) OrderResolved(o domain.Order, status domain.OrderStatus) Message {
	verb := "completed"
	if status == domain.OrderStatusCancelled {
		verb = "cancelled"
	}
	return plain("Order %s (%s, %s, buyer %d) %s.", o.ID, o.Label, t.money(o.Price), o.BuyerID, verb)
}

// TopUpPrompt asks for the amount to top up.
func (t Templates) TopUpPrompt(minAmount, maxAmount int64) Message {
	return plain("💳 Enter the amount to top up, from %s to %s.", t.money(minAmount), t.money(maxAmount))
}

// InvalidAmount is the validation message for an out of range top-up amount.
func (t Templates) InvalidAmount(minAmount, maxAmount int64) string {
	return fmt.Sprintf("Enter a whole number from %s to %s.", t.money(minAmount), t.money(maxAmount))
}

// TopUpRequested tells the user where to pay.
func (t Templates) TopUpRequested(o domain.Order) Message {
	details := t.PaymentDetails
	if details == "" {
		details = "ask an admin for payment details"
	}
	return plain("Top-up request %s for %s created.\nTransfer the amount to:\n%s\n\nAn admin will credit your balance after checking the payment.",
		o.ID, t.money(o.Price), details)
}

// TopUpAdmin asks the admins to check a payment.
func (t Templates) TopUpAdmin(o domain.Order) Message {
	return Message{
		Text: fmt.Sprintf("💳 Top-up request %s\nUser: %s (%d)\nAmount: %s",
			o.ID, o.BuyerName, o.BuyerID, t.money(o.Price)),
		Buttons: [][]keyboard.InlineButton{keyboard.OrderActions(o.ID)},
	}
}

// TopUpCredited tells the user the top-up was approved.
func (t Templates) TopUpCredited(o domain.Order) Message {
	return withPlaceholders("💳 Top-up %s approved: +%s.\nBalance: "+PlaceholderBalance, o.ID, t.money(o.Price))
}

// TopUpRejected tells the user the top-up was rejected.
func (t Templates) TopUpRejected(o domain.Order) Message {
	return plain("Top-up request %s was rejected. Contact an admin if you did pay.", o.ID)
}

// PromoPrompt asks for a promo code.
func (t Templates) PromoPrompt() Message {
	return plain("🎁 Send your promo code.")
}

// PromoRedeemed confirms a redemption.
func (t Templates) PromoRedeemed(code string) Message {
	return withPlaceholders("🎁 Promo code %s activated: +"+PlaceholderCredited+".\nBalance: "+PlaceholderBalance, code)
}

// PromoCreated confirms /newpromo to the admin.
func (t Templates) PromoCreated(code string, amount int64, uses int) Message {
	return plain("🎁 Promo code %s created: %s, %d use(s).", code, t.money(amount), uses)
}

// AdjustPrompt asks an admin for a manual adjustment.
func (t Templates) AdjustPrompt() Message {
	return plain("Send <user_id> <amount>. A negative amount debits the balance.")
}

// AdjustDone confirms a manual adjustment to the admin.
func (t Templates) AdjustDone(userID, delta int64) Message {
	return withPlaceholders("Balance of %d changed by %s. New balance: "+PlaceholderBalance, userID, t.signed(delta))
}

// BalanceAdjusted tells the user about a manual adjustment.
func (t Templates) BalanceAdjusted(delta int64) Message {
	return withPlaceholders("Your balance was adjusted by an admin: %s.\nBalance: "+PlaceholderBalance, t.signed(delta))
}

// ReferralBonus thanks the referrer.
func (t Templates) ReferralBonus(newcomer string, bonus int64) Message {
	return withPlaceholders("👥 %s joined with your link: +%s.\nBalance: "+PlaceholderBalance, newcomer, t.money(bonus))
}

// Cancelled confirms /cancel.
func (t Templates) Cancelled(hadFlow bool) Message {
	if !hadFlow {
		return plain("Nothing to cancel.")
	}
	return plain("Cancelled.")
}

// Balance shows the account summary with the referral link.
func (t Templates) Balance(balance, referrals, bonus int64, referralLink string) Message {
	text := fmt.Sprintf("💰 Balance: %s\n👥 Invited friends: %d (earned %s)",
		t.money(balance), referrals, t.money(referrals*bonus))
	if referralLink != "" {
		text += fmt.Sprintf("\n\nInvite friends and get %s for each: %s", t.money(bonus), referralLink)
	}

	return Message{
		Text:    text,
		Buttons: [][]keyboard.InlineButton{{{Text: "💳 Top up balance", Unique: keyboard.CallbackTopUp}}},
	}
}

// PendingHeader is the caption of the /pending list.
func (t Templates) PendingHeader(total int) string {
	if total == 0 {
		return "No pending orders."
	}
	return fmt.Sprintf("Pending orders: %d", total)
}

// PendingReminder lists orders that wait for longer than after.
func (t Templates) PendingReminder(orders []domain.Order, after time.Duration) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "⏰ %d order(s) waiting longer than %s:", len(orders), after)

	for i, o := range orders {
		if i == maxReminderLines {
			fmt.Fprintf(&b, "\n… and %d more, see /pending", len(orders)-maxReminderLines)
			break
		}
		fmt.Fprintf(&b, "\n• %s %s %s", o.ID, o.Label, t.money(o.Price))
		if o.Target != "" {
			fmt.Fprintf(&b, " → %s", o.Target)
		}
	}

	return Message{Text: b.String()}
}

func (t Templates) signed(delta int64) string {
	if delta > 0 {
		return "+" + t.money(delta)
	}
	return t.money(delta)
}
