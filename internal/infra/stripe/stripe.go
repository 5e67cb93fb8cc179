package stripe

import (
	"context"
	"fmt"
	"strings"

	stripeapi "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"

	checkoutsvc "github.com/TsveMotion/statsmaths/internal/services/checkout"
)

// Client wraps the Stripe SDK behind the narrow surface the checkout
// service needs: creating hosted checkout sessions and verifying
// webhook deliveries.
type Client struct {
	api           *client.API
	webhookSecret string
	successURL    string
	cancelURL     string
}

type Config struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, fmt.Errorf("stripe secret key is empty")
	}

	api := &client.API{}
	api.Init(cfg.SecretKey, nil)

	return &Client{
		api:           api,
		webhookSecret: cfg.WebhookSecret,
		successURL:    cfg.SuccessURL,
		cancelURL:     cfg.CancelURL,
	}, nil
}

func (c *Client) CreateCheckoutSession(ctx context.Context, req checkoutsvc.SessionRequest) (checkoutsvc.ProviderSession, error) {
	params := &stripeapi.CheckoutSessionParams{
		Params:             stripeapi.Params{Context: ctx},
		Mode:               stripeapi.String(string(stripeapi.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripeapi.StringSlice([]string{"card"}),
		SuccessURL:         stripeapi.String(c.successURL),
		CancelURL:          stripeapi.String(c.cancelURL),
		LineItems: []*stripeapi.CheckoutSessionLineItemParams{
			{
				PriceData: &stripeapi.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripeapi.String(strings.ToLower(req.Currency)),
					UnitAmount: stripeapi.Int64(req.AmountMinor),
					ProductData: &stripeapi.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripeapi.String(req.Title),
						Description: stripeapi.String(req.Description),
					},
				},
				Quantity: stripeapi.Int64(1),
			},
		},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripeapi.String(req.CustomerEmail)
	}
	params.AddMetadata("purchase_id", req.PurchaseID)
	params.AddMetadata("resource_id", req.ResourceID)

	session, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return checkoutsvc.ProviderSession{}, fmt.Errorf("create stripe checkout session: %w", err)
	}

	return checkoutsvc.ProviderSession{ID: session.ID, URL: session.URL}, nil
}
