package payment

import (
	"encoding/json"

	"github.com/example/ec-storefront/internal/apperr"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

// TestSignature is accepted in place of a real signature header when the
// verifier is built with allowTest. Never enabled in production.
const TestSignature = "test_signature"

var ErrInvalidSignature = apperr.New(apperr.KindSignature, "invalid webhook signature")

// Verifier authenticates a webhook body against its signature header.
type Verifier interface {
	Verify(payload []byte, signatureHeader string) (stripe.Event, error)
}

// StripeVerifier checks the Stripe-Signature scheme t=<unix>,v1=<hex hmac-sha256>.
type StripeVerifier struct {
	secret    string
	allowTest bool
}

func NewStripeVerifier(secret string, allowTest bool) *StripeVerifier {
	return &StripeVerifier{secret: secret, allowTest: allowTest}
}

func (v *StripeVerifier) Verify(payload []byte, signatureHeader string) (stripe.Event, error) {
	if v.allowTest && signatureHeader == TestSignature {
		var event stripe.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			return stripe.Event{}, apperr.Wrap(apperr.KindValidation, "malformed webhook payload", err)
		}
		return event, nil
	}
	if v.secret == "" || signatureHeader == "" {
		return stripe.Event{}, ErrInvalidSignature
	}

	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, apperr.Wrap(apperr.KindSignature, ErrInvalidSignature.Message, err)
	}
	return event, nil
}
