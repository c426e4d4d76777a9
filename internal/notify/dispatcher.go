package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	apperrors "github.com/Proton-105/storefront-bot/internal/errors"
	"github.com/Proton-105/storefront-bot/pkg/metrics"
)

const defaultSendTimeout = 5 * time.Second

// Sender delivers one message to one chat.
type Sender interface {
	Send(ctx context.Context, chatID int64, msg Message) error
}

// Report counts the outcome of a delivery.
type Report struct {
	Delivered int
	Failed    int
}

// Dispatcher delivers messages best-effort. Every send gets its own timeout
// and retry budget; a failure is logged and counted and never stops the
// remaining sends.
type Dispatcher struct {
	sender  Sender
	admins  []int64
	timeout time.Duration
	retries int
	log     *slog.Logger
}

// NewDispatcher builds a Dispatcher fanning admin messages out to admins.
func NewDispatcher(sender Sender, admins []int64, timeout time.Duration, retries int, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	if retries < 0 {
		retries = 0
	}

	return &Dispatcher{
		sender:  sender,
		admins:  append([]int64(nil), admins...),
		timeout: timeout,
		retries: retries,
		log:     log,
	}
}

// Deliver sends every envelope and reports how many chats were reached.
func (d *Dispatcher) Deliver(ctx context.Context, envelopes ...Envelope) Report {
	var report Report
	for _, env := range envelopes {
		var r Report
		if env.To.Admins {
			r = d.Broadcast(ctx, env.Message)
		} else if err := d.SendTo(ctx, env.To.UserID, env.Message); err != nil {
			r.Failed = 1
		} else {
			r.Delivered = 1
		}

		report.Delivered += r.Delivered
		report.Failed += r.Failed
	}
	return report
}

// Broadcast sends msg to every admin concurrently.
func (d *Dispatcher) Broadcast(ctx context.Context, msg Message) Report {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		report Report
	)

	for _, adminID := range d.admins {
		wg.Add(1)
		go func(chatID int64) {
			defer wg.Done()

			err := d.send(ctx, chatID, msg, "admins")

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				return
			}
			report.Delivered++
		}(adminID)
	}

	wg.Wait()
	return report
}

// SendTo sends msg to a single user.
func (d *Dispatcher) SendTo(ctx context.Context, chatID int64, msg Message) error {
	return d.send(ctx, chatID, msg, "user")
}

func (d *Dispatcher) send(ctx context.Context, chatID int64, msg Message, audience string) error {
	err := apperrors.WithRetries(ctx, d.retries, func() error {
		sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()

		if err := d.sender.Send(sendCtx, chatID, msg); err != nil {
			if apperrors.CodeOf(err) != "" {
				return err
			}
			return apperrors.NewDeliveryError(chatID, err)
		}
		return nil
	})
	if err != nil {
		metrics.RecordDeliveryFailure(audience)
		d.log.Warn("message delivery failed",
			slog.Int64("chat_id", chatID),
			slog.String("audience", audience),
			slog.Any("error", err),
		)
	}
	return err
}
