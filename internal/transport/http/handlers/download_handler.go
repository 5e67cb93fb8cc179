package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/TsveMotion/statsmaths/internal/domain/model"
	authsvc "github.com/TsveMotion/statsmaths/internal/services/auth"
	entsvc "github.com/TsveMotion/statsmaths/internal/services/entitlements"
	"github.com/TsveMotion/statsmaths/internal/transport/http/dto"
	httperrors "github.com/TsveMotion/statsmaths/internal/transport/http/errors"
)

type DownloadHandler struct {
	service     *entsvc.Service
	downloadTTL time.Duration
}

func NewDownloadHandler(service *entsvc.Service, downloadTTL time.Duration) *DownloadHandler {
	if downloadTTL <= 0 {
		downloadTTL = 15 * time.Minute
	}
	return &DownloadHandler{service: service, downloadTTL: downloadTTL}
}

// Get issues a short-lived download URL for a purchased resource.
// Accounts authenticate with a bearer token; guest buyers prove the
// purchase with the checkout session id from their success redirect.
// Every gate failure returns the same 404 so the endpoint reveals
// nothing about the catalog or other buyers.
func (h *DownloadHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "DOWNLOAD_SERVICE_UNAVAILABLE", "download service is unavailable")
		return
	}

	resourceID := chi.URLParam(r, "resourceID")

	var url string
	var err error
	if authIdentity, ok := authsvc.IdentityFromContext(r.Context()); ok {
		url, err = h.service.DownloadURL(r.Context(), model.AccountIdentity(authIdentity.UserID), resourceID)
	} else {
		url, err = h.service.DownloadURLForSession(r.Context(), r.URL.Query().Get("session"), resourceID)
	}
	if err != nil {
		if errors.Is(err, entsvc.ErrForbidden) {
			writeNotFound(w, "NOT_AVAILABLE", "download not available")
			return
		}
		if errors.Is(err, entsvc.ErrFileMissing) {
			writeNotFound(w, "NOT_AVAILABLE", "download not available")
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.DownloadResponse{
		URL:          url,
		ExpiresInSec: int64(h.downloadTTL.Seconds()),
	})
}
