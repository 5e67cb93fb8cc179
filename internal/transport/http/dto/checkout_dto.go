package dto

type CheckoutRequest struct {
	ResourceID string `json:"resource_id"`
	GuestEmail string `json:"guest_email,omitempty"`
	GuestName  string `json:"guest_name,omitempty"`
}

type CheckoutResponse struct {
	PurchaseID  string `json:"purchase_id"`
	SessionID   string `json:"session_id"`
	RedirectURL string `json:"redirect_url"`
}

type DownloadResponse struct {
	URL          string `json:"url"`
	ExpiresInSec int64  `json:"expires_in_sec"`
}
