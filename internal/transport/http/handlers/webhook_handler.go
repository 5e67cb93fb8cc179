package handlers

import (
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	checkoutsvc "github.com/TsveMotion/statsmaths/internal/services/checkout"
	httperrors "github.com/TsveMotion/statsmaths/internal/transport/http/errors"
)

const maxWebhookBody = 1 << 20

type EventVerifier interface {
	VerifyAndParseEvent(payload []byte, signatureHeader string) (checkoutsvc.ConfirmationEvent, error)
}

type WebhookHandler struct {
	verifier EventVerifier
	service  *checkoutsvc.Service
	logger   *zap.Logger
}

func NewWebhookHandler(verifier EventVerifier, service *checkoutsvc.Service, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{verifier: verifier, service: service, logger: logger}
}

// Stripe receives provider webhook deliveries. A 2xx acknowledges the
// event; anything else makes the provider retry, so only signature
// failures, unknown references and transient errors are non-2xx.
func (h *WebhookHandler) Stripe(w http.ResponseWriter, r *http.Request) {
	if h.verifier == nil || h.service == nil {
		writeInternal(w, "WEBHOOK_UNAVAILABLE", "webhook processing is unavailable")
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "unreadable request body")
		return
	}

	event, err := h.verifier.VerifyAndParseEvent(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, checkoutsvc.ErrInvalidSignature) {
			h.logger.Warn("webhook signature verification failed")
			writeBadRequest(w, "INVALID_SIGNATURE", "signature verification failed")
			return
		}
		writeBadRequest(w, "INVALID_REQUEST", "malformed event payload")
		return
	}

	if err := h.service.Confirm(r.Context(), event); err != nil {
		switch {
		case errors.Is(err, checkoutsvc.ErrUnknownReference):
			h.logger.Warn("webhook references unknown purchase",
				zap.String("event_id", event.EventID))
			writeBadRequest(w, "UNKNOWN_REFERENCE", "event references no known purchase")
		case errors.Is(err, checkoutsvc.ErrInvalidInput):
			writeBadRequest(w, "INVALID_REQUEST", "malformed event payload")
		default:
			h.logger.Error("webhook processing failed",
				zap.String("event_id", event.EventID), zap.Error(err))
			writeInternal(w, "INTERNAL_ERROR", "event processing failed")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, map[string]bool{"received": true})
}
