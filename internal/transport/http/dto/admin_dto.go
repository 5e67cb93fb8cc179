package dto

import "time"

type ResourceUpsertRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	AmountMinor int64   `json:"amount_minor"`
	Currency    string  `json:"currency,omitempty"`
	Featured    bool    `json:"featured"`
	FileKey     *string `json:"file_key,omitempty"`
	PreviewURL  *string `json:"preview_url,omitempty"`
	ImageURL    *string `json:"image_url,omitempty"`
}

type AdminUserResponse struct {
	ID            int64     `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Role          string    `json:"role"`
	CreatedAt     time.Time `json:"created_at"`
	PurchaseCount int64     `json:"purchase_count"`
	SpentMinor    int64     `json:"spent_minor"`
	Spent         string    `json:"spent"`
}

type AdminResourceListResponse struct {
	Resources []ResourceResponse `json:"resources"`
	Total     int64              `json:"total"`
}

type AdminUserDetailResponse struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type AdminUserListResponse struct {
	Users []AdminUserResponse `json:"users"`
	Total int64               `json:"total"`
}

type AdminPurchaseResponse struct {
	ID            string    `json:"id"`
	BuyerEmail    string    `json:"buyer_email"`
	BuyerName     string    `json:"buyer_name"`
	ResourceID    string    `json:"resource_id"`
	ResourceTitle string    `json:"resource_title"`
	Price         string    `json:"price"`
	AmountMinor   int64     `json:"amount_minor"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

type AdminPurchaseListResponse struct {
	Purchases []AdminPurchaseResponse `json:"purchases"`
}

type AdminStatsResponse struct {
	TotalResources int64  `json:"total_resources"`
	TotalUsers     int64  `json:"total_users"`
	TotalSales     int64  `json:"total_sales"`
	RevenueMinor   int64  `json:"revenue_minor"`
	Revenue        string `json:"revenue"`
}

type DeleteResponse struct {
	OK bool `json:"ok"`
}
