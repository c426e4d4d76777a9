package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Proton-105/storefront-bot/internal/errors"
)

type mockSender struct {
	mock.Mock
	mu sync.Mutex
}

func (m *mockSender) Send(ctx context.Context, chatID int64, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	args := m.Called(ctx, chatID, msg)
	return args.Error(0)
}

func TestDispatcher_BroadcastIsBestEffort(t *testing.T) {
	sender := &mockSender{}
	msg := Message{Text: "new order"}

	sender.On("Send", mock.Anything, int64(1), msg).Return(nil).Once()
	sender.On("Send", mock.Anything, int64(2), msg).Return(errors.New("telegram down")).Twice()
	sender.On("Send", mock.Anything, int64(3), msg).Return(nil).Once()

	d := NewDispatcher(sender, []int64{1, 2, 3}, time.Second, 1, testLogger())
	report := d.Broadcast(context.Background(), msg)

	assert.Equal(t, Report{Delivered: 2, Failed: 1}, report)
	sender.AssertExpectations(t)
}

func TestDispatcher_RetriesOnce(t *testing.T) {
	sender := &mockSender{}
	msg := Message{Text: "done"}

	sender.On("Send", mock.Anything, int64(7), msg).Return(errors.New("timeout")).Once()
	sender.On("Send", mock.Anything, int64(7), msg).Return(nil).Once()

	d := NewDispatcher(sender, nil, time.Second, 1, testLogger())
	require.NoError(t, d.SendTo(context.Background(), 7, msg))
	sender.AssertExpectations(t)
}

func TestDispatcher_PermanentErrorIsNotRetried(t *testing.T) {
	sender := &mockSender{}
	msg := Message{Text: "done"}

	blocked := apperrors.NewDeliveryError(7, errors.New("blocked"))
	blocked.Retryable = false
	sender.On("Send", mock.Anything, int64(7), msg).Return(blocked).Once()

	d := NewDispatcher(sender, nil, time.Second, 3, testLogger())
	err := d.SendTo(context.Background(), 7, msg)

	assert.True(t, apperrors.HasCode(err, apperrors.CodeDelivery))
	sender.AssertNumberOfCalls(t, "Send", 1)
}

func TestDispatcher_DeliverMixesAudiences(t *testing.T) {
	sender := &mockSender{}
	toBuyer := Message{Text: "buyer"}
	toAdmins := Message{Text: "admins"}

	sender.On("Send", mock.Anything, int64(100), toBuyer).Return(nil).Once()
	sender.On("Send", mock.Anything, int64(1), toAdmins).Return(nil).Once()
	sender.On("Send", mock.Anything, int64(2), toAdmins).Return(nil).Once()

	d := NewDispatcher(sender, []int64{1, 2}, time.Second, 0, testLogger())
	report := d.Deliver(context.Background(),
		Envelope{To: ToUser(100), Message: toBuyer},
		Envelope{To: ToAdmins(), Message: toAdmins},
	)

	assert.Equal(t, Report{Delivered: 3}, report)
	sender.AssertExpectations(t)
}

func TestDispatcher_SendHasDeadline(t *testing.T) {
	sender := &mockSender{}
	msg := Message{Text: "slow"}

	sender.On("Send", mock.MatchedBy(func(ctx context.Context) bool {
		deadline, ok := ctx.Deadline()
		return ok && time.Until(deadline) <= 50*time.Millisecond
	}), int64(9), msg).Return(nil).Once()

	d := NewDispatcher(sender, nil, 50*time.Millisecond, 0, testLogger())
	require.NoError(t, d.SendTo(context.Background(), 9, msg))
	sender.AssertExpectations(t)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
