package handlers

import (
	"errors"
	"net/http"

	"github.com/TsveMotion/statsmaths/internal/domain/model"
	authsvc "github.com/TsveMotion/statsmaths/internal/services/auth"
	checkoutsvc "github.com/TsveMotion/statsmaths/internal/services/checkout"
	"github.com/TsveMotion/statsmaths/internal/transport/http/dto"
	httperrors "github.com/TsveMotion/statsmaths/internal/transport/http/errors"
)

type CheckoutHandler struct {
	service *checkoutsvc.Service
}

func NewCheckoutHandler(service *checkoutsvc.Service) *CheckoutHandler {
	return &CheckoutHandler{service: service}
}

// Create opens a hosted checkout session. Signed-in callers buy on their
// account; anonymous callers must supply guest contact details in the
// body. A bearer token wins over guest fields when both are present.
func (h *CheckoutHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "CHECKOUT_SERVICE_UNAVAILABLE", "checkout service is unavailable")
		return
	}

	var req dto.CheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	var identity model.BuyerIdentity
	if authIdentity, ok := authsvc.IdentityFromContext(r.Context()); ok {
		identity = model.AccountIdentity(authIdentity.UserID)
	} else {
		identity = model.GuestIdentity(req.GuestEmail, req.GuestName)
	}

	res, err := h.service.Initiate(r.Context(), identity, req.ResourceID)
	if err != nil {
		handleCheckoutError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.CheckoutResponse{
		PurchaseID:  res.PurchaseID,
		SessionID:   res.SessionID,
		RedirectURL: res.RedirectURL,
	})
}

func handleCheckoutError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, checkoutsvc.ErrInvalidInput):
		writeBadRequest(w, "INVALID_REQUEST", "request validation failed")
	case errors.Is(err, checkoutsvc.ErrResourceNotFound):
		writeNotFound(w, "NOT_FOUND", "resource not found")
	case errors.Is(err, checkoutsvc.ErrAlreadyOwned):
		httperrors.Write(w, http.StatusConflict, httperrors.APIError{
			Code: "ALREADY_OWNED", Message: "resource is already purchased",
		})
	case errors.Is(err, checkoutsvc.ErrRateLimited):
		httperrors.Write(w, http.StatusTooManyRequests, httperrors.APIError{
			Code: "RATE_LIMITED", Message: "too many checkout attempts",
		})
	case errors.Is(err, checkoutsvc.ErrPaymentProvider):
		httperrors.Write(w, http.StatusBadGateway, httperrors.APIError{
			Code: "PAYMENT_PROVIDER_ERROR", Message: "payment provider is unavailable",
		})
	default:
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
	}
}
