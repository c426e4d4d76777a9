package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/storefront-bot/internal/domain"
	"github.com/Proton-105/storefront-bot/internal/jobs"
	"github.com/Proton-105/storefront-bot/internal/notify"
	"github.com/Proton-105/storefront-bot/pkg/metrics"
)

const reminderScanLimit = 500

// PendingLister is the part of the order ledger read by the reminder.
type PendingLister interface {
	ListPending(ctx context.Context, createdBefore time.Time, limit int) ([]domain.Order, error)
}

// Broadcaster delivers a message to every admin.
type Broadcaster interface {
	Broadcast(ctx context.Context, msg notify.Message) notify.Report
}

// PendingReminderHandler tells the admins about orders waiting too long
// and keeps the pending orders gauge current.
type PendingReminderHandler struct {
	orders PendingLister
	admins Broadcaster
	texts  notify.Templates
	log    *slog.Logger
	now    func() time.Time
}

func NewPendingReminderHandler(orders PendingLister, admins Broadcaster, texts notify.Templates, log *slog.Logger) *PendingReminderHandler {
	if log == nil {
		log = slog.Default()
	}

	return &PendingReminderHandler{
		orders: orders,
		admins: admins,
		texts:  texts,
		log:    log,
		now:    time.Now,
	}
}

func (h *PendingReminderHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	payload, err := jobs.DecodePendingReminder(t)
	if err != nil {
		h.log.ErrorContext(ctx, "pending reminder: failed to decode payload", slog.String("task_type", t.Type()), slog.Any("error", err))
		// a malformed payload never gets better
		return asynq.SkipRetry
	}

	_, err = h.Run(ctx, payload.OlderThan)
	return err
}

// Run reminds about orders pending for longer than olderThan and returns how many there were.
func (h *PendingReminderHandler) Run(ctx context.Context, olderThan time.Duration) (int, error) {
	now := h.now()

	pending, err := h.orders.ListPending(ctx, now.Add(time.Minute), reminderScanLimit)
	if err != nil {
		h.log.ErrorContext(ctx, "pending reminder: failed to list orders", slog.Any("error", err))
		return 0, err
	}
	metrics.SetPendingOrders(len(pending))

	cutoff := now.Add(-olderThan)
	stale := make([]domain.Order, 0, len(pending))
	for _, o := range pending {
		if o.CreatedAt.Before(cutoff) {
			stale = append(stale, o)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	report := h.admins.Broadcast(ctx, h.texts.PendingReminder(stale, olderThan))
	h.log.InfoContext(ctx, "pending reminder sent",
		slog.Int("orders", len(stale)),
		slog.Int("delivered", report.Delivered),
		slog.Int("failed", report.Failed),
	)

	return len(stale), nil
}
