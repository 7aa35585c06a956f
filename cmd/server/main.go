package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ahmousavi39/Learn-Ai-sub000/internal/config"
	"github.com/ahmousavi39/Learn-Ai-sub000/internal/course"
	"github.com/ahmousavi39/Learn-Ai-sub000/internal/domain"
	"github.com/ahmousavi39/Learn-Ai-sub000/internal/entitlement"
	"github.com/ahmousavi39/Learn-Ai-sub000/internal/handler"
	"github.com/ahmousavi39/Learn-Ai-sub000/internal/logging"
	"github.com/ahmousavi39/Learn-Ai-sub000/internal/metrics"
	appMiddleware "github.com/ahmousavi39/Learn-Ai-sub000/internal/middleware"
	"github.com/ahmousavi39/Learn-Ai-sub000/internal/repository"
	"github.com/ahmousavi39/Learn-Ai-sub000/internal/service"
	"github.com/ahmousavi39/Learn-Ai-sub000/pkg/crypto"
	"github.com/ahmousavi39/Learn-Ai-sub000/pkg/payment"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logging.Init(logging.Config{Format: cfg.LogFormat, Level: cfg.LogLevel, Component: "server"})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("Server exited")
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	db, err := repository.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()

	if err := repository.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	log.Info().Msg("Database connected and migrated")

	sealer, err := crypto.NewSealer(cfg.EncryptionKey)
	if err != nil {
		return fmt.Errorf("encryption: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.CourseCountsFile), 0o755); err != nil {
		return fmt.Errorf("counter store directory: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// Stores
	usageStore := repository.NewUsageFileStore(cfg.CourseCountsFile, nil)
	subRepo := repository.NewSubscriptionRepository(db)
	operatorRepo := repository.NewOperatorRepository(db)

	// Receipt verification
	apple := payment.NewAppleVerifier(payment.AppleConfig{
		SharedSecret:      cfg.Apple.SharedSecret,
		Environment:       cfg.Apple.Environment,
		ProductionURL:     cfg.Apple.ProductionURL,
		SandboxURL:        cfg.Apple.SandboxURL,
		ProductIDs:        cfg.Apple.ProductIDs,
		AllowMockReceipts: cfg.Apple.AllowMockReceipts,
		Timeout:           cfg.VerifyTimeout,
	})
	google := payment.NewGoogleVerifier(payment.GoogleConfig{
		PackageName:       cfg.Google.PackageName,
		ServiceAccountKey: cfg.Google.ServiceAccountKey,
		Timeout:           cfg.VerifyTimeout,
	})
	if cfg.Apple.SharedSecret == "" {
		log.Warn().Bool("mock_receipts", cfg.Apple.AllowMockReceipts).Msg("APPLE_SHARED_SECRET not set, App Store verification disabled")
	}

	var (
		generator course.Generator
		rewriter  course.Rewriter
		models    service.ModelLister
	)
	if cfg.OpenAIAPIKey != "" {
		g := course.NewOpenAIGenerator(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL).
			WithSectionDelay(1500 * time.Millisecond)
		generator, rewriter, models = g, g, g
	} else {
		log.Warn().Msg("OPENAI_API_KEY not set, course generation disabled")
	}

	// Services
	limits := entitlement.Limits{Free: cfg.FreeLimit, Premium: cfg.PremiumLimit}
	usageSvc := service.NewUsageService(usageStore, limits, m, nil)
	subSvc := service.NewSubscriptionService(service.SubscriptionConfig{
		Repo:     subRepo,
		Verifier: payment.NewClient(apple, google),
		Sealer:   sealer,
		Premium:  usageSvc,
		Metrics:  m,
		TokenTTL: cfg.ClaimTokenTTL,
	})
	courseSvc := service.NewCourseService(usageSvc, generator, m).WithRewriter(rewriter)
	systemSvc := service.NewSystemService(models, nil)
	authSvc := service.NewAuthService(cfg.JWTSecret, cfg.AdminEmail, cfg.AdminPassword, operatorRepo)

	if err := authSvc.SeedAdmin(ctx); err != nil {
		return fmt.Errorf("admin seed: %w", err)
	}

	service.NewMonitorService(usageSvc, subSvc, m, time.Minute).Start(ctx)

	// Handlers
	healthHandler := handler.NewHealthHandler(db, cfg.CourseCountsFile)
	limitsHandler := handler.NewLimitsHandler(domain.Tiers(cfg.FreeLimit, cfg.PremiumLimit, cfg.Apple.ProductIDs))
	authHandler := handler.NewAuthHandler(authSvc)
	deviceHandler := handler.NewDeviceHandler(usageSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	subHandler := handler.NewSubscriptionHandler(subSvc)
	webhookHandler := handler.NewWebhookHandler(subSvc, cfg.WebhookSecret)
	adminHandler := handler.NewAdminHandler(usageSvc, subSvc)
	operatorHandler := handler.NewOperatorHandler(authSvc)
	systemHandler := handler.NewSystemHandler(systemSvc)

	r := chi.NewRouter()

	r.Use(appMiddleware.Logger)
	r.Use(appMiddleware.Recovery)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Guest-ID", appMiddleware.RequestIDHeader},
		ExposedHeaders:   []string{appMiddleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(appMiddleware.NewRateLimiter(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst).Middleware())

	r.Get("/health", healthHandler.Check)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.Get("/api/limits", limitsHandler.List)

	// Device identity and course generation
	r.Post("/api/auth/initialize-device", deviceHandler.Initialize)
	r.Post("/api/auth/verify-device", deviceHandler.Verify)
	r.Post("/api/auth/register-anonymous", deviceHandler.RegisterAnonymous)
	r.Get("/api/usage", deviceHandler.Usage)
	r.Post("/generate-course", courseHandler.Generate)
	r.Post("/regenerate-lesson", courseHandler.Regenerate)

	// Purchases
	r.Post("/api/subscriptions/process-payment-first", subHandler.ProcessPaymentFirst)
	r.Post("/api/subscriptions/claim-subscription", subHandler.Claim)
	r.Post("/api/subscriptions/verify-purchase", subHandler.VerifyPurchase)
	r.Post("/api/subscriptions/status", subHandler.Status)
	r.Get("/api/subscriptions/history/{uid}", subHandler.History)
	r.Get("/api/subscriptions/{id}", subHandler.Get)
	r.Get("/api/auth/profile/{uid}", subHandler.Profile)
	r.Post("/api/auth/check-subscription", subHandler.CheckSubscription)
	r.Post("/api/subscriptions/webhook", webhookHandler.SubscriptionEvent)

	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.StrictRateLimiter(ctx))
		r.Post("/api/auth/login", authHandler.Login)
	})

	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.Auth(authSvc))
		r.Use(appMiddleware.AdminOnly)
		r.Get("/api/admin/stats", adminHandler.GetStats)
		r.Put("/api/subscriptions/update-status", subHandler.UpdateStatus)
		r.Get("/api/admin/operators", operatorHandler.List)
		r.Post("/api/admin/operators", operatorHandler.Create)
		r.Delete("/api/admin/operators/{id}", operatorHandler.Delete)
		r.Get("/api/admin/models", systemHandler.GetModels)
		r.Post("/api/admin/models/sync", systemHandler.SyncModels)
	})

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // course generation makes several LLM calls
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("Learn-AI backend listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
