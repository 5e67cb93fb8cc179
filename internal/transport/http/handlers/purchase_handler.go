package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/TsveMotion/statsmaths/internal/domain/model"
	authsvc "github.com/TsveMotion/statsmaths/internal/services/auth"
	entsvc "github.com/TsveMotion/statsmaths/internal/services/entitlements"
	"github.com/TsveMotion/statsmaths/internal/transport/http/dto"
	httperrors "github.com/TsveMotion/statsmaths/internal/transport/http/errors"
)

type PurchaseHandler struct {
	service *entsvc.Service
}

func NewPurchaseHandler(service *entsvc.Service) *PurchaseHandler {
	return &PurchaseHandler{service: service}
}

// List returns the caller's purchase history, completed and refunded.
func (h *PurchaseHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "PURCHASE_SERVICE_UNAVAILABLE", "purchase service is unavailable")
		return
	}

	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}

	purchases, err := h.service.ListPurchases(r.Context(), model.AccountIdentity(identity.UserID))
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.NewPurchaseListResponse(purchases))
}

// Entitlement reports whether the caller currently owns a resource. The
// answer is re-evaluated per request, so a refund flips it immediately.
func (h *PurchaseHandler) Entitlement(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "PURCHASE_SERVICE_UNAVAILABLE", "purchase service is unavailable")
		return
	}

	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}

	resourceID := chi.URLParam(r, "resourceID")
	owned, err := h.service.Owns(r.Context(), model.AccountIdentity(identity.UserID), resourceID)
	if err != nil {
		if errors.Is(err, entsvc.ErrValidation) {
			writeBadRequest(w, "INVALID_REQUEST", "invalid resource id")
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.EntitlementResponse{
		ResourceID: resourceID,
		Owned:      owned,
	})
}
