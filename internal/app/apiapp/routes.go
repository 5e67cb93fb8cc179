package apiapp

import (
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	authsvc "github.com/TsveMotion/statsmaths/internal/services/auth"
	catalogsvc "github.com/TsveMotion/statsmaths/internal/services/catalog"
	checkoutsvc "github.com/TsveMotion/statsmaths/internal/services/checkout"
	entsvc "github.com/TsveMotion/statsmaths/internal/services/entitlements"
	statssvc "github.com/TsveMotion/statsmaths/internal/services/stats"
	userssvc "github.com/TsveMotion/statsmaths/internal/services/users"
	"github.com/TsveMotion/statsmaths/internal/transport/http/handlers"
)

type Dependencies struct {
	AuthService         *authsvc.Service
	CatalogService      *catalogsvc.Service
	CatalogAdminService *catalogsvc.AdminService
	CheckoutService     *checkoutsvc.Service
	EntitlementService  *entsvc.Service
	EventVerifier       handlers.EventVerifier
	UserService         *userssvc.Service
	StatsService        *statssvc.Service
	DownloadTTL         time.Duration
	Logger              *zap.Logger
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler()
	authHandler := handlers.NewAuthHandler(deps.AuthService)
	resourceHandler := handlers.NewResourceHandler(deps.CatalogService)
	checkoutHandler := handlers.NewCheckoutHandler(deps.CheckoutService)
	webhookHandler := handlers.NewWebhookHandler(deps.EventVerifier, deps.CheckoutService, deps.Logger)
	downloadHandler := handlers.NewDownloadHandler(deps.EntitlementService, deps.DownloadTTL)
	purchaseHandler := handlers.NewPurchaseHandler(deps.EntitlementService)
	adminHandler := handlers.NewAdminHandler(deps.CatalogAdminService, deps.UserService, deps.StatsService)

	authMW := AuthMiddleware(deps.AuthService, deps.Logger)
	optionalAuthMW := OptionalAuthMiddleware(deps.AuthService)
	adminRoleMW := RequireRole("ADMIN")

	r.Get("/healthz", healthHandler.Get)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.Refresh)
		r.With(authMW).Post("/logout", authHandler.Logout)
		r.With(authMW).Post("/logout_all", authHandler.LogoutAll)
	})

	r.Route("/resources", func(r chi.Router) {
		r.Get("/", resourceHandler.List)
		r.Get("/featured", resourceHandler.Featured)
		r.With(optionalAuthMW).Get("/recommended", resourceHandler.Recommended)
		r.Get("/{resourceID}", resourceHandler.Get)
	})

	r.With(optionalAuthMW).Post("/checkout", checkoutHandler.Create)
	r.Post("/webhooks/stripe", webhookHandler.Stripe)
	r.With(optionalAuthMW).Get("/download/{resourceID}", downloadHandler.Get)

	r.Route("/me", func(r chi.Router) {
		r.Use(authMW)
		r.Get("/", authHandler.Me)
		r.Get("/purchases", purchaseHandler.List)
		r.Get("/entitlements/{resourceID}", purchaseHandler.Entitlement)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(authMW, adminRoleMW)
		r.Get("/resources", adminHandler.Resources)
		r.Post("/resources", adminHandler.CreateResource)
		r.Get("/resources/{resourceID}", adminHandler.Resource)
		r.Post("/resources/{resourceID}/file", adminHandler.UploadResourceFile)
		r.Put("/resources/{resourceID}", adminHandler.UpdateResource)
		r.Delete("/resources/{resourceID}", adminHandler.DeleteResource)
		r.Get("/users", adminHandler.Users)
		r.Get("/users/{userID}", adminHandler.User)
		r.Get("/purchases", adminHandler.Purchases)
		r.Get("/stats", adminHandler.Stats)
	})
}
