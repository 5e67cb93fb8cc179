package dto

import (
	"time"

	entsvc "github.com/TsveMotion/statsmaths/internal/services/entitlements"
)

type PurchaseResponse struct {
	ID          string    `json:"id"`
	ResourceID  string    `json:"resource_id"`
	Title       string    `json:"title"`
	Price       string    `json:"price"`
	AmountMinor int64     `json:"amount_minor"`
	Currency    string    `json:"currency"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

type EntitlementResponse struct {
	ResourceID string `json:"resource_id"`
	Owned      bool   `json:"owned"`
}

type PurchaseListResponse struct {
	Purchases []PurchaseResponse `json:"purchases"`
}

func NewPurchaseListResponse(purchases []entsvc.Purchase) PurchaseListResponse {
	out := PurchaseListResponse{Purchases: make([]PurchaseResponse, 0, len(purchases))}
	for _, purchase := range purchases {
		out.Purchases = append(out.Purchases, PurchaseResponse{
			ID:          purchase.ID,
			ResourceID:  purchase.ResourceID,
			Title:       purchase.Title,
			Price:       FormatMinor(purchase.AmountMinor),
			AmountMinor: purchase.AmountMinor,
			Currency:    purchase.Currency,
			Status:      purchase.Status,
			CreatedAt:   purchase.CreatedAt,
		})
	}
	return out
}
