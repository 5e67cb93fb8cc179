package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/TsveMotion/statsmaths/internal/config"
	s3infra "github.com/TsveMotion/statsmaths/internal/infra/s3"
	stripeinfra "github.com/TsveMotion/statsmaths/internal/infra/stripe"
	pgrepo "github.com/TsveMotion/statsmaths/internal/repo/postgres"
	redrepo "github.com/TsveMotion/statsmaths/internal/repo/redis"
	authsvc "github.com/TsveMotion/statsmaths/internal/services/auth"
	catalogsvc "github.com/TsveMotion/statsmaths/internal/services/catalog"
	checkoutsvc "github.com/TsveMotion/statsmaths/internal/services/checkout"
	entsvc "github.com/TsveMotion/statsmaths/internal/services/entitlements"
	ratesvc "github.com/TsveMotion/statsmaths/internal/services/rate"
	statssvc "github.com/TsveMotion/statsmaths/internal/services/stats"
	userssvc "github.com/TsveMotion/statsmaths/internal/services/users"
	"github.com/TsveMotion/statsmaths/internal/transport/http/handlers"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	s3         *minio.Client
	httpRouter http.Handler
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN); err != nil {
		log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
	} else {
		pool = p
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	sessionRepo := redrepo.NewSessionRepo(redisClient)
	rateRepo := redrepo.NewRateRepo(redisClient)

	resourceRepo := pgrepo.NewResourceRepo(pool)
	userRepo := pgrepo.NewUserRepo(pool)
	purchaseRepo := pgrepo.NewPurchaseRepo(pool)
	webhookEventRepo := pgrepo.NewWebhookEventRepo(pool)
	statsRepo := pgrepo.NewStatsRepo(pool)

	var s3Client *minio.Client
	if c, err := s3infra.NewClient(s3infra.Config{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		Region:    cfg.S3.Region,
		UseSSL:    cfg.S3.UseSSL,
	}); err != nil {
		log.Warn("s3 init failed, continuing in degraded mode", zap.Error(err))
	} else {
		s3Client = c
	}
	fileStorage := entsvc.NewS3Storage(s3Client, cfg.S3.Bucket)

	var stripeClient *stripeinfra.Client
	if c, err := stripeinfra.New(stripeinfra.Config{
		SecretKey:     cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		SuccessURL:    cfg.Stripe.SuccessURL,
		CancelURL:     cfg.Stripe.CancelURL,
	}); err != nil {
		log.Warn("stripe init failed, continuing in degraded mode", zap.Error(err))
	} else {
		stripeClient = c
	}

	jwtManager := authsvc.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTAccessTTL)
	authService := authsvc.NewService(jwtManager, sessionRepo, userRepo, cfg.Auth.RefreshTTL)

	entitlementService := entsvc.NewService(resourceRepo, purchaseRepo, fileStorage, cfg.Checkout.DownloadTTL)
	catalogService := catalogsvc.NewService(resourceRepo, entitlementService, catalogsvc.Config{
		FeaturedLimit:    cfg.Catalog.FeaturedLimit,
		RecommendedLimit: cfg.Catalog.RecommendedLimit,
	})
	catalogAdminService := catalogsvc.NewAdminService(resourceRepo, fileStorage, log)

	rateLimiter := ratesvc.NewLimiter(rateRepo, cfg.Checkout.AttemptsPerMinute, cfg.Checkout.AttemptsPer10Sec)

	var paymentProvider checkoutsvc.PaymentProvider
	var eventVerifier handlers.EventVerifier
	if stripeClient != nil {
		paymentProvider = stripeClient
		eventVerifier = stripeClient
	}
	checkoutService := checkoutsvc.NewService(
		resourceRepo,
		purchaseRepo,
		userRepo,
		webhookEventRepo,
		paymentProvider,
		rateLimiter,
		log,
	)

	userService := userssvc.NewService(userRepo)
	statsService := statssvc.NewService(statsRepo, purchaseRepo)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	RegisterRoutes(r, Dependencies{
		AuthService:         authService,
		CatalogService:      catalogService,
		CatalogAdminService: catalogAdminService,
		CheckoutService:     checkoutService,
		EntitlementService:  entitlementService,
		EventVerifier:       eventVerifier,
		UserService:         userService,
		StatsService:        statsService,
		DownloadTTL:         cfg.Checkout.DownloadTTL,
		Logger:              log,
	})

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		postgres:   pool,
		redis:      redisClient,
		s3:         s3Client,
		httpRouter: r,
	}, nil
}

func (a *App) Run() error {
	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
