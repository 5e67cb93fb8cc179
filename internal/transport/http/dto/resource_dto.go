package dto

import (
	"fmt"
	"time"

	"github.com/TsveMotion/statsmaths/internal/repo/postgres"
)

type ResourceResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Price       string    `json:"price"`
	AmountMinor int64     `json:"amount_minor"`
	Currency    string    `json:"currency"`
	Featured    bool      `json:"featured"`
	PreviewURL  *string   `json:"preview_url,omitempty"`
	ImageURL    *string   `json:"image_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type ResourceListResponse struct {
	Resources []ResourceResponse `json:"resources"`
}

func NewResourceResponse(record postgres.ResourceRecord) ResourceResponse {
	return ResourceResponse{
		ID:          record.ID,
		Title:       record.Title,
		Description: record.Description,
		Category:    record.Category,
		Price:       FormatMinor(record.AmountMinor),
		AmountMinor: record.AmountMinor,
		Currency:    record.Currency,
		Featured:    record.Featured,
		PreviewURL:  record.PreviewURL,
		ImageURL:    record.ImageURL,
		CreatedAt:   record.CreatedAt,
	}
}

func NewResourceListResponse(records []postgres.ResourceRecord) ResourceListResponse {
	out := ResourceListResponse{Resources: make([]ResourceResponse, 0, len(records))}
	for _, record := range records {
		out.Resources = append(out.Resources, NewResourceResponse(record))
	}
	return out
}

// FormatMinor renders a minor-unit amount as a decimal string for
// display. Amounts are stored and compared in minor units only.
func FormatMinor(amountMinor int64) string {
	sign := ""
	if amountMinor < 0 {
		sign = "-"
		amountMinor = -amountMinor
	}
	return fmt.Sprintf("%s%d.%02d", sign, amountMinor/100, amountMinor%100)
}
