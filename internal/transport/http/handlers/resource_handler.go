package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/TsveMotion/statsmaths/internal/domain/model"
	authsvc "github.com/TsveMotion/statsmaths/internal/services/auth"
	catalogsvc "github.com/TsveMotion/statsmaths/internal/services/catalog"
	"github.com/TsveMotion/statsmaths/internal/transport/http/dto"
	httperrors "github.com/TsveMotion/statsmaths/internal/transport/http/errors"
)

type ResourceHandler struct {
	service *catalogsvc.Service
}

func NewResourceHandler(service *catalogsvc.Service) *ResourceHandler {
	return &ResourceHandler{service: service}
}

func (h *ResourceHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "CATALOG_SERVICE_UNAVAILABLE", "catalog service is unavailable")
		return
	}

	records, err := h.service.List(r.Context())
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.NewResourceListResponse(records))
}

func (h *ResourceHandler) Featured(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "CATALOG_SERVICE_UNAVAILABLE", "catalog service is unavailable")
		return
	}

	records, err := h.service.Featured(r.Context())
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.NewResourceListResponse(records))
}

// Recommended excludes resources the caller already owns when a bearer
// token is present; anonymous visitors get the plain list.
func (h *ResourceHandler) Recommended(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "CATALOG_SERVICE_UNAVAILABLE", "catalog service is unavailable")
		return
	}

	var identity model.BuyerIdentity
	if authIdentity, ok := authsvc.IdentityFromContext(r.Context()); ok {
		identity = model.AccountIdentity(authIdentity.UserID)
	}

	records, err := h.service.Recommended(r.Context(), identity)
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.NewResourceListResponse(records))
}

func (h *ResourceHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "CATALOG_SERVICE_UNAVAILABLE", "catalog service is unavailable")
		return
	}

	record, err := h.service.Get(r.Context(), chi.URLParam(r, "resourceID"))
	if err != nil {
		if errors.Is(err, catalogsvc.ErrResourceNotFound) {
			writeNotFound(w, "NOT_FOUND", "resource not found")
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.NewResourceResponse(record))
}
