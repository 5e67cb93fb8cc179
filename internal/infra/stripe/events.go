package stripe

import (
	"encoding/json"
	"fmt"

	stripeapi "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"

	checkoutsvc "github.com/TsveMotion/statsmaths/internal/services/checkout"
)

// VerifyAndParseEvent checks the webhook signature against the endpoint
// secret and reduces the Stripe event to a ConfirmationEvent. Event types
// the entitlement flow does not act on come back as EventIgnored; they are
// still recorded for dedup.
func (c *Client) VerifyAndParseEvent(payload []byte, signatureHeader string) (checkoutsvc.ConfirmationEvent, error) {
	event, err := webhook.ConstructEvent(payload, signatureHeader, c.webhookSecret)
	if err != nil {
		return checkoutsvc.ConfirmationEvent{}, checkoutsvc.ErrInvalidSignature
	}
	return mapEvent(event, payload)
}

func mapEvent(event stripeapi.Event, payload []byte) (checkoutsvc.ConfirmationEvent, error) {
	out := checkoutsvc.ConfirmationEvent{
		EventID: event.ID,
		Type:    checkoutsvc.EventIgnored,
		Payload: payload,
	}

	switch event.Type {
	case "checkout.session.completed", "checkout.session.expired":
		var session stripeapi.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return checkoutsvc.ConfirmationEvent{}, fmt.Errorf("decode checkout session event: %w", err)
		}

		out.SessionID = session.ID
		if session.PaymentIntent != nil {
			out.PaymentID = session.PaymentIntent.ID
		}
		out.AmountMinor = session.AmountTotal
		out.Currency = string(session.Currency)

		if event.Type == "checkout.session.completed" {
			out.Type = checkoutsvc.EventCompleted
		} else {
			out.Type = checkoutsvc.EventFailed
		}

	case "charge.refunded":
		var charge stripeapi.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return checkoutsvc.ConfirmationEvent{}, fmt.Errorf("decode charge event: %w", err)
		}

		out.Type = checkoutsvc.EventRefunded
		if charge.PaymentIntent != nil {
			out.PaymentID = charge.PaymentIntent.ID
		}
		out.AmountMinor = charge.AmountRefunded
		out.Currency = string(charge.Currency)
	}

	return out, nil
}
