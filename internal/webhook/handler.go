// Package webhook turns verified payment-provider events into order changes.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/example/ec-storefront/internal/apperr"
	"github.com/example/ec-storefront/internal/domain/order"
	"github.com/example/ec-storefront/internal/payment"
	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"
)

const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
	EventPaymentIntentSucceeded   = "payment_intent.succeeded"
)

// OrderPlacer is the part of the order service webhooks drive.
type OrderPlacer interface {
	PlaceFromPayment(ctx context.Context, pc order.PaymentConfirmation) (*order.Order, error)
	MarkPaidByPaymentIntent(ctx context.Context, intentID string) (bool, error)
}

// Ledger remembers handled event ids.
type Ledger interface {
	Processed(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID, eventType string, at time.Time) error
}

// Result describes what a delivery did.
type Result struct {
	EventID   string `json:"eventId"`
	EventType string `json:"eventType"`
	Handled   bool   `json:"handled"`
	Duplicate bool   `json:"duplicate,omitempty"`
	OrderID   string `json:"orderId,omitempty"`
}

type Handler struct {
	verifier payment.Verifier
	orders   OrderPlacer
	ledger   Ledger
	logger   *zap.Logger
	now      func() time.Time
}

// NewHandler builds a handler. A nil ledger disables replay detection, so a
// redelivered checkout.session.completed creates another order.
func NewHandler(verifier payment.Verifier, orders OrderPlacer, ledger Ledger, logger *zap.Logger) *Handler {
	return &Handler{
		verifier: verifier,
		orders:   orders,
		ledger:   ledger,
		logger:   logger.Named("webhook"),
		now:      time.Now,
	}
}

// Handle verifies the payload and dispatches it by event type. Unknown event
// types are acknowledged without action.
func (h *Handler) Handle(ctx context.Context, payload []byte, signatureHeader string) (*Result, error) {
	event, err := h.verifier.Verify(payload, signatureHeader)
	if err != nil {
		h.logger.Warn("webhook rejected", zap.Error(err))
		return nil, err
	}

	res := &Result{EventID: event.ID, EventType: string(event.Type)}
	log := h.logger.With(zap.String("event_id", event.ID), zap.String("event_type", res.EventType))

	if h.ledger != nil && event.ID != "" {
		seen, err := h.ledger.Processed(ctx, event.ID)
		if err != nil {
			return nil, apperr.Persistence("check webhook event", err)
		}
		if seen {
			log.Info("duplicate delivery ignored")
			res.Duplicate = true
			return res, nil
		}
	}

	switch res.EventType {
	case EventCheckoutSessionCompleted:
		o, err := h.checkoutCompleted(ctx, event)
		if err != nil {
			log.Error("checkout completion failed", zap.Error(err))
			return nil, err
		}
		res.Handled = true
		res.OrderID = o.ID
	case EventPaymentIntentSucceeded:
		updated, err := h.paymentSucceeded(ctx, event)
		if err != nil {
			log.Error("payment intent update failed", zap.Error(err))
			return nil, err
		}
		res.Handled = updated
	default:
		log.Debug("event type ignored")
		return res, nil
	}

	if h.ledger != nil && event.ID != "" {
		if err := h.ledger.MarkProcessed(ctx, event.ID, res.EventType, h.now().UTC()); err != nil {
			log.Warn("failed to record webhook event", zap.Error(err))
		}
	}
	return res, nil
}

func (h *Handler) checkoutCompleted(ctx context.Context, event stripe.Event) (*order.Order, error) {
	var sess stripe.CheckoutSession
	if err := decodeObject(event, &sess); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "malformed checkout session", err)
	}
	snap, err := payment.DecodeCartMetadata(sess.Metadata)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "checkout session carries no cart", err)
	}

	pc := order.PaymentConfirmation{
		Provider:          payment.ProviderStripe,
		CheckoutSessionID: sess.ID,
		UserID:            snap.UserID,
		CustomerEmail:     sess.CustomerEmail,
		Items:             snap.Items,
		AmountPaid:        payment.FromMinorUnits(sess.AmountTotal),
		Currency:          string(sess.Currency),
	}
	if sess.PaymentIntent != nil {
		pc.PaymentIntentID = sess.PaymentIntent.ID
	}
	if cd := sess.CustomerDetails; cd != nil {
		if cd.Email != "" {
			pc.CustomerEmail = cd.Email
		}
		pc.Shipping = toAddress(cd.Name, cd.Address)
		pc.Shipping.Phone = cd.Phone
	}
	if sd := sess.ShippingDetails; sd != nil && sd.Address != nil {
		phone := pc.Shipping.Phone
		pc.Shipping = toAddress(sd.Name, sd.Address)
		pc.Shipping.Phone = phone
	}
	pc.Shipping.Email = pc.CustomerEmail

	return h.orders.PlaceFromPayment(ctx, pc)
}

func (h *Handler) paymentSucceeded(ctx context.Context, event stripe.Event) (bool, error) {
	var pi stripe.PaymentIntent
	if err := decodeObject(event, &pi); err != nil {
		return false, apperr.Wrap(apperr.KindValidation, "malformed payment intent", err)
	}
	return h.orders.MarkPaidByPaymentIntent(ctx, pi.ID)
}

func decodeObject(event stripe.Event, dst any) error {
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return errors.New("event has no data object")
	}
	return json.Unmarshal(event.Data.Raw, dst)
}

func toAddress(name string, a *stripe.Address) order.Address {
	first, last, _ := strings.Cut(strings.TrimSpace(name), " ")
	out := order.Address{FirstName: first, LastName: strings.TrimSpace(last)}
	if a != nil {
		out.Address = a.Line1
		out.Apartment = a.Line2
		out.City = a.City
		out.State = a.State
		out.PostalCode = a.PostalCode
		out.Country = a.Country
	}
	return out
}
