package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cultivatehq/backend/internal/config"
	"github.com/cultivatehq/backend/internal/database"
	"github.com/cultivatehq/backend/internal/handlers"
	"github.com/cultivatehq/backend/internal/middleware"
	"github.com/cultivatehq/backend/internal/services"
	"github.com/cultivatehq/backend/internal/storage"
	"github.com/cultivatehq/backend/pkg/logger"
	"github.com/cultivatehq/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	logger.Init()

	cfg := config.Load()
	utils.ConfigureJWT(cfg.JWT.Secret, cfg.JWT.ExpirationHours)
	utils.ConfigureEncryption(cfg.JWT.Secret)

	db, err := database.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	storageClient, err := storage.NewMinIOClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("minio initialization failed: %v", err)
	}
	if err := storageClient.EnsureBucket(context.Background()); err != nil {
		log.Fatalf("failed ensuring minio bucket: %v", err)
	}

	notifier := services.NewNotifier()
	flagService := services.NewFlagService(db)
	auditService := services.NewAdminAuditService(db)
	onboardingService := services.NewOnboardingService(db, cfg.Onboarding.TotalScreens, notifier)
	oauthService := services.NewOAuthService(db, cfg, onboardingService, notifier)
	billingService := services.NewBillingService(db, cfg.Stripe, notifier)

	authHandler := handlers.NewAuthHandler(db, notifier)
	flagsHandler := handlers.NewFlagsHandler(flagService)
	adminFlagsHandler := handlers.NewAdminFlagsHandler(db, flagService, auditService)
	adminOverridesHandler := handlers.NewAdminOverridesHandler(db, auditService)
	adminAuditHandler := handlers.NewAdminAuditLogHandler(db)
	adminUsersHandler := handlers.NewAdminUsersHandler(db, auditService, onboardingService)
	onboardingHandler := handlers.NewOnboardingHandler(db, onboardingService, storageClient)
	meetingsHandler := handlers.NewMeetingsHandler(db, storageClient)
	contactsHandler := handlers.NewContactsHandler(db)
	goalsHandler := handlers.NewGoalsHandler(db)
	artifactsHandler := handlers.NewArtifactsHandler(db, storageClient)
	googleHandler := handlers.NewGoogleHandler(oauthService, cfg)
	linkedinHandler := handlers.NewLinkedInHandler(oauthService, cfg)
	stripeHandler := handlers.NewStripeHandler(billingService)
	eventsHandler := handlers.NewEventsHandler(notifier)

	authMiddleware := middleware.NewAuthMiddleware(db)

	// Above the 100MB content cap so oversized uploads reach handler
	// validation and get the JSON error envelope instead of a bare 413.
	app := fiber.New(fiber.Config{BodyLimit: 112 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS())
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", authHandler.Register)
	authRoutes.Post("/login", authHandler.Login)
	authRoutes.Get("/me", authMiddleware.RequireAuth, authHandler.Me)
	authRoutes.Put("/me", authMiddleware.RequireAuth, authHandler.UpdateMe)
	authRoutes.Put("/password", authMiddleware.RequireAuth, authHandler.ChangePassword)

	flagRoutes := api.Group("/flags", authMiddleware.RequireAuth)
	flagRoutes.Get("/", flagsHandler.ResolveAll)
	flagRoutes.Get("/:name", flagsHandler.Resolve)

	// Admin routes authenticate like any session route; each handler checks
	// the admin bit itself before touching anything.
	adminRoutes := api.Group("/admin", authMiddleware.RequireAuth)

	adminFlagRoutes := adminRoutes.Group("/feature-flags")
	adminFlagRoutes.Get("/", adminFlagsHandler.List)
	adminFlagRoutes.Post("/", adminFlagsHandler.Create)
	adminFlagRoutes.Get("/:id", adminFlagsHandler.Get)
	adminFlagRoutes.Put("/:id", adminFlagsHandler.Update)
	adminFlagRoutes.Post("/:id/toggle", adminFlagsHandler.Toggle)
	adminFlagRoutes.Delete("/:id", adminFlagsHandler.Delete)

	adminOverrideRoutes := adminRoutes.Group("/user-feature-overrides")
	adminOverrideRoutes.Get("/", adminOverridesHandler.List)
	adminOverrideRoutes.Post("/", adminOverridesHandler.Upsert)
	adminOverrideRoutes.Put("/:id", adminOverridesHandler.Update)
	adminOverrideRoutes.Delete("/:id", adminOverridesHandler.Delete)

	adminRoutes.Get("/audit-log", adminAuditHandler.List)
	adminRoutes.Get("/audit-log/export", adminAuditHandler.Export)

	adminUserRoutes := adminRoutes.Group("/users")
	adminUserRoutes.Get("/", adminUsersHandler.List)
	adminUserRoutes.Get("/:id", adminUsersHandler.Get)
	adminUserRoutes.Put("/:id", adminUsersHandler.Update)
	adminUserRoutes.Delete("/:id", adminUsersHandler.Delete)
	adminUserRoutes.Post("/:id/reset-onboarding", adminUsersHandler.ResetOnboarding)

	onboardingRoutes := api.Group("/onboarding", authMiddleware.RequireAuth)
	onboardingRoutes.Get("/", onboardingHandler.GetState)
	onboardingRoutes.Post("/next", onboardingHandler.Next)
	onboardingRoutes.Post("/previous", onboardingHandler.Previous)
	onboardingRoutes.Post("/navigate", onboardingHandler.Navigate)
	onboardingRoutes.Post("/complete", onboardingHandler.CompleteScreen)
	onboardingRoutes.Post("/voice-memo", onboardingHandler.UploadVoiceMemo)
	onboardingRoutes.Post("/goal-contacts", onboardingHandler.ImportGoalContacts)

	contactRoutes := api.Group("/contacts", authMiddleware.RequireAuth)
	contactRoutes.Get("/", contactsHandler.List)
	contactRoutes.Post("/", contactsHandler.Create)
	contactRoutes.Get("/:id", contactsHandler.Get)
	contactRoutes.Put("/:id", contactsHandler.Update)
	contactRoutes.Delete("/:id", contactsHandler.Delete)
	contactRoutes.Post("/:id/touch", contactsHandler.Touch)

	goalRoutes := api.Group("/goals", authMiddleware.RequireAuth)
	goalRoutes.Get("/", goalsHandler.List)
	goalRoutes.Post("/", goalsHandler.Create)
	goalRoutes.Get("/:id", goalsHandler.Get)
	goalRoutes.Put("/:id", goalsHandler.Update)
	goalRoutes.Delete("/:id", goalsHandler.Delete)
	goalRoutes.Post("/:id/contacts", goalsHandler.LinkContact)
	goalRoutes.Delete("/:id/contacts/:contactID", goalsHandler.UnlinkContact)

	api.Post("/meetings/content", authMiddleware.RequireAuth, meetingsHandler.UploadContent)

	artifactRoutes := api.Group("/artifacts", authMiddleware.RequireAuth)
	artifactRoutes.Get("/", artifactsHandler.List)
	artifactRoutes.Get("/:id", artifactsHandler.Get)

	api.Get("/gmail/auth", authMiddleware.RequireAuth, googleHandler.GmailAuth)
	api.Get("/calendar/auth", authMiddleware.RequireAuth, googleHandler.CalendarAuth)
	api.Get("/google/combined-auth", authMiddleware.RequireAuth, googleHandler.CombinedAuth)
	api.Get("/google/combined-callback", googleHandler.CombinedCallback)
	api.Get("/linkedin/auth", authMiddleware.RequireAuth, linkedinHandler.Auth)
	api.Get("/linkedin/callback", linkedinHandler.Callback)

	stripeRoutes := api.Group("/stripe")
	stripeRoutes.Post("/create-checkout-session", authMiddleware.RequireAuth, stripeHandler.CreateCheckoutSession)
	stripeRoutes.Post("/create-portal-session", authMiddleware.RequireAuth, stripeHandler.CreatePortalSession)
	stripeRoutes.Post("/webhook", stripeHandler.Webhook)

	api.Get("/events", authMiddleware.RequireAuth, eventsHandler.Stream)

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	logger.Info("server_starting", map[string]interface{}{
		"port":       cfg.Server.Port,
		"address":    listenAddr,
		"body_limit": "100MB",
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(listenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("shutting down server due to signal: %s", sig)
		shutdownDone := make(chan struct{})
		go func() {
			_ = app.Shutdown()
			close(shutdownDone)
		}()
		select {
		case <-shutdownDone:
		case <-time.After(10 * time.Second):
			log.Print("forced shutdown timeout reached")
		}
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	}
}
