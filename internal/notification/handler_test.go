package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/example/ec-storefront/internal/domain/order"
	"github.com/example/ec-storefront/internal/email"
	"github.com/example/ec-storefront/internal/infrastructure/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingMailer struct {
	sent []email.Confirmation
	err  error
}

func (m *recordingMailer) SendOrderConfirmation(_ context.Context, c email.Confirmation) error {
	m.sent = append(m.sent, c)
	return m.err
}

func encodeEvent(t *testing.T, eventType string, data any) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	value, err := json.Marshal(store.Event{
		ID:            "evt-1",
		AggregateID:   "order-1",
		AggregateType: order.AggregateType,
		EventType:     eventType,
		Data:          raw,
		Timestamp:     time.Now().UTC(),
		Version:       1,
	})
	require.NoError(t, err)
	return value
}

func orderCreated() order.OrderCreated {
	return order.OrderCreated{
		OrderID:       "order-1",
		OrderNumber:   "ORD-20260101-ABC123",
		CustomerEmail: "ada@example.com",
		CustomerName:  "Ada Lovelace ",
		Status:        order.StatusPaid,
		Items: []order.EventItem{
			{ProductName: "Coat", VariantName: "M", SKU: "COAT-M", Quantity: 1, Price: decimal.RequireFromString("45.00")},
		},
		Subtotal: decimal.RequireFromString("45.00"),
		Tax:      decimal.RequireFromString("9.90"),
		Shipping: decimal.RequireFromString("7.99"),
		Total:    decimal.RequireFromString("62.89"),
	}
}

// ============================================
// HandleEvent Tests
// ============================================

func TestHandleEvent_OrderCreatedSendsConfirmation(t *testing.T) {
	mailer := &recordingMailer{}
	h := NewHandler(mailer, zap.NewNop())

	err := h.HandleEvent(context.Background(), []byte("order-1"), encodeEvent(t, order.EventOrderCreated, orderCreated()))

	require.NoError(t, err)
	require.Len(t, mailer.sent, 1)
	got := mailer.sent[0]
	assert.Equal(t, "ada@example.com", got.To)
	assert.Equal(t, "Ada Lovelace", got.CustomerName)
	assert.Equal(t, "ORD-20260101-ABC123", got.OrderNumber)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "M", got.Items[0].Variant)
	assert.Equal(t, "62.89", got.Total.StringFixed(2))
}

func TestHandleEvent_IgnoresOtherEvents(t *testing.T) {
	mailer := &recordingMailer{}
	h := NewHandler(mailer, zap.NewNop())

	tests := []struct {
		name      string
		eventType string
		data      any
	}{
		{"status change", order.EventOrderStatusChanged, order.OrderStatusChanged{OrderID: "order-1", From: order.StatusPending, To: order.StatusPaid}},
		{"payment", order.EventPaymentCompleted, order.PaymentCompletedEvent{OrderID: "order-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.HandleEvent(context.Background(), nil, encodeEvent(t, tt.eventType, tt.data))
			assert.NoError(t, err)
		})
	}
	assert.Empty(t, mailer.sent)
}

func TestHandleEvent_SkipsOrderWithoutEmail(t *testing.T) {
	mailer := &recordingMailer{}
	e := orderCreated()
	e.CustomerEmail = ""

	err := NewHandler(mailer, zap.NewNop()).HandleEvent(context.Background(), nil, encodeEvent(t, order.EventOrderCreated, e))

	assert.NoError(t, err)
	assert.Empty(t, mailer.sent)
}

func TestHandleEvent_Errors(t *testing.T) {
	t.Run("malformed envelope", func(t *testing.T) {
		err := NewHandler(&recordingMailer{}, zap.NewNop()).HandleEvent(context.Background(), nil, []byte("not json"))
		assert.Error(t, err)
	})

	t.Run("malformed payload", func(t *testing.T) {
		value := encodeEvent(t, order.EventOrderCreated, map[string]any{"items": "nope"})
		err := NewHandler(&recordingMailer{}, zap.NewNop()).HandleEvent(context.Background(), nil, value)
		assert.Error(t, err)
	})

	t.Run("mailer failure", func(t *testing.T) {
		smtpErr := errors.New("smtp down")
		mailer := &recordingMailer{err: smtpErr}

		err := NewHandler(mailer, zap.NewNop()).HandleEvent(context.Background(), nil, encodeEvent(t, order.EventOrderCreated, orderCreated()))

		assert.ErrorIs(t, err, smtpErr)
	})
}
