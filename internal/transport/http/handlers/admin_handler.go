package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	catalogsvc "github.com/TsveMotion/statsmaths/internal/services/catalog"
	statssvc "github.com/TsveMotion/statsmaths/internal/services/stats"
	userssvc "github.com/TsveMotion/statsmaths/internal/services/users"
	"github.com/TsveMotion/statsmaths/internal/repo/postgres"
	"github.com/TsveMotion/statsmaths/internal/transport/http/dto"
	httperrors "github.com/TsveMotion/statsmaths/internal/transport/http/errors"
)

type AdminHandler struct {
	catalog *catalogsvc.AdminService
	users   *userssvc.Service
	stats   *statssvc.Service
}

func NewAdminHandler(catalog *catalogsvc.AdminService, users *userssvc.Service, stats *statssvc.Service) *AdminHandler {
	return &AdminHandler{catalog: catalog, users: users, stats: stats}
}

func (h *AdminHandler) CreateResource(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		writeInternal(w, "ADMIN_SERVICE_UNAVAILABLE", "admin service is unavailable")
		return
	}

	var req dto.ResourceUpsertRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	record, err := h.catalog.Create(r.Context(), resourceInput(req))
	if err != nil {
		handleAdminCatalogError(w, err)
		return
	}

	httperrors.Write(w, http.StatusCreated, dto.NewResourceResponse(record))
}

func (h *AdminHandler) Resources(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		writeInternal(w, "ADMIN_SERVICE_UNAVAILABLE", "admin service is unavailable")
		return
	}

	page, err := h.catalog.List(r.Context())
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.AdminResourceListResponse{
		Resources: dto.NewResourceListResponse(page.Resources).Resources,
		Total:     page.Total,
	})
}

// UploadResourceFile accepts the resource PDF as a multipart "file" part
// and binds the stored object to the resource.
func (h *AdminHandler) UploadResourceFile(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		writeInternal(w, "ADMIN_SERVICE_UNAVAILABLE", "admin service is unavailable")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "multipart file part is required")
		return
	}
	defer file.Close()

	record, err := h.catalog.UploadFile(r.Context(),
		chi.URLParam(r, "resourceID"), file, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		handleAdminCatalogError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.NewResourceResponse(record))
}

func (h *AdminHandler) Resource(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		writeInternal(w, "ADMIN_SERVICE_UNAVAILABLE", "admin service is unavailable")
		return
	}

	record, err := h.catalog.Get(r.Context(), chi.URLParam(r, "resourceID"))
	if err != nil {
		handleAdminCatalogError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.NewResourceResponse(record))
}

func (h *AdminHandler) UpdateResource(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		writeInternal(w, "ADMIN_SERVICE_UNAVAILABLE", "admin service is unavailable")
		return
	}

	var req dto.ResourceUpsertRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	record, err := h.catalog.Update(r.Context(), chi.URLParam(r, "resourceID"), resourceInput(req))
	if err != nil {
		handleAdminCatalogError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.NewResourceResponse(record))
}

func (h *AdminHandler) DeleteResource(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		writeInternal(w, "ADMIN_SERVICE_UNAVAILABLE", "admin service is unavailable")
		return
	}

	if err := h.catalog.Delete(r.Context(), chi.URLParam(r, "resourceID")); err != nil {
		handleAdminCatalogError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.DeleteResponse{OK: true})
}

func (h *AdminHandler) Users(w http.ResponseWriter, r *http.Request) {
	if h.users == nil {
		writeInternal(w, "ADMIN_SERVICE_UNAVAILABLE", "admin service is unavailable")
		return
	}

	limit, offset := pagination(r)
	page, err := h.users.List(r.Context(), limit, offset)
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
		return
	}

	out := dto.AdminUserListResponse{
		Users: make([]dto.AdminUserResponse, 0, len(page.Users)),
		Total: page.Total,
	}
	for _, user := range page.Users {
		out.Users = append(out.Users, dto.AdminUserResponse{
			ID:            user.ID,
			Email:         user.Email,
			Name:          user.Name,
			Role:          user.Role,
			CreatedAt:     user.CreatedAt,
			PurchaseCount: user.PurchaseCount,
			SpentMinor:    user.SpentMinor,
			Spent:         dto.FormatMinor(user.SpentMinor),
		})
	}

	httperrors.Write(w, http.StatusOK, out)
}

func (h *AdminHandler) User(w http.ResponseWriter, r *http.Request) {
	if h.users == nil {
		writeInternal(w, "ADMIN_SERVICE_UNAVAILABLE", "admin service is unavailable")
		return
	}

	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		writeNotFound(w, "NOT_FOUND", "user not found")
		return
	}

	record, err := h.users.Get(r.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, userssvc.ErrNotFound), errors.Is(err, userssvc.ErrValidation):
			writeNotFound(w, "NOT_FOUND", "user not found")
		default:
			writeInternal(w, "INTERNAL_ERROR", "internal server error")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.AdminUserDetailResponse{
		ID:        record.ID,
		Email:     record.Email,
		Name:      record.Name,
		Role:      record.Role,
		CreatedAt: record.CreatedAt,
	})
}

func (h *AdminHandler) Purchases(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		writeInternal(w, "ADMIN_SERVICE_UNAVAILABLE", "admin service is unavailable")
		return
	}

	limit, offset := pagination(r)
	rows, err := h.stats.Purchases(r.Context(), limit, offset)
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
		return
	}

	out := dto.AdminPurchaseListResponse{
		Purchases: make([]dto.AdminPurchaseResponse, 0, len(rows)),
	}
	for _, row := range rows {
		out.Purchases = append(out.Purchases, dto.AdminPurchaseResponse{
			ID:            row.ID,
			BuyerEmail:    row.BuyerEmail,
			BuyerName:     row.BuyerName,
			ResourceID:    row.ResourceID,
			ResourceTitle: row.ResourceTitle,
			Price:         dto.FormatMinor(row.AmountMinor),
			AmountMinor:   row.AmountMinor,
			Currency:      row.Currency,
			Status:        string(row.Status),
			CreatedAt:     row.CreatedAt,
		})
	}

	httperrors.Write(w, http.StatusOK, out)
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		writeInternal(w, "ADMIN_SERVICE_UNAVAILABLE", "admin service is unavailable")
		return
	}

	overview, err := h.stats.Overview(r.Context())
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.AdminStatsResponse{
		TotalResources: overview.TotalResources,
		TotalUsers:     overview.TotalUsers,
		TotalSales:     overview.TotalSales,
		RevenueMinor:   overview.RevenueMinor,
		Revenue:        dto.FormatMinor(overview.RevenueMinor),
	})
}

func handleAdminCatalogError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalogsvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "resource validation failed")
	case errors.Is(err, catalogsvc.ErrResourceNotFound):
		writeNotFound(w, "NOT_FOUND", "resource not found")
	default:
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
	}
}

func resourceInput(req dto.ResourceUpsertRequest) postgres.ResourceInput {
	return postgres.ResourceInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
		Featured:    req.Featured,
		FileKey:     req.FileKey,
		PreviewURL:  req.PreviewURL,
		ImageURL:    req.ImageURL,
	}
}

func pagination(r *http.Request) (int, int) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	return limit, offset
}
