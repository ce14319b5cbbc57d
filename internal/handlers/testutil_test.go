package handlers

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/cultivatehq/backend/internal/config"
	"github.com/cultivatehq/backend/internal/middleware"
	"github.com/cultivatehq/backend/internal/models"
	"github.com/cultivatehq/backend/internal/services"
	"github.com/cultivatehq/backend/pkg/logger"
	"github.com/cultivatehq/backend/pkg/utils"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"
)

const testTotalScreens = 10

type testEnv struct {
	app      *fiber.App
	db       *gorm.DB
	notifier *services.Notifier
}

var testSetupOnce sync.Once

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	testSetupOnce.Do(func() {
		gosqlite.MustRegisterScalarFunction("NOW", 0, func(ctx *gosqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			return time.Now().UTC(), nil
		})
		logger.Init()
		utils.ConfigureJWT("test-secret", 24)
		utils.ConfigureEncryption("test-secret")
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	err = db.AutoMigrate(
		&models.User{},
		&models.FeatureFlag{},
		&models.UserFeatureOverride{},
		&models.AdminAuditLog{},
		&models.OnboardingState{},
		&models.UserIntegration{},
		&models.Subscription{},
		&models.Contact{},
		&models.Goal{},
		&models.GoalContact{},
		&models.Artifact{},
		&models.ArtifactContent{},
	)
	if err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}

	cfg := &config.Config{
		Server: config.ServerConfig{
			FrontendURL: "http://localhost:3000",
		},
		Onboarding: config.OnboardingConfig{
			TotalScreens: testTotalScreens,
		},
	}

	notifier := services.NewNotifier()
	flagService := services.NewFlagService(db)
	auditService := services.NewAdminAuditService(db)
	onboardingService := services.NewOnboardingService(db, cfg.Onboarding.TotalScreens, notifier)
	oauthService := services.NewOAuthService(db, cfg, onboardingService, notifier)

	authHandler := NewAuthHandler(db, notifier)
	flagsHandler := NewFlagsHandler(flagService)
	adminFlagsHandler := NewAdminFlagsHandler(db, flagService, auditService)
	adminOverridesHandler := NewAdminOverridesHandler(db, auditService)
	adminAuditHandler := NewAdminAuditLogHandler(db)
	adminUsersHandler := NewAdminUsersHandler(db, auditService, onboardingService)
	onboardingHandler := NewOnboardingHandler(db, onboardingService, nil)
	meetingsHandler := NewMeetingsHandler(db, nil)
	contactsHandler := NewContactsHandler(db)
	goalsHandler := NewGoalsHandler(db)
	artifactsHandler := NewArtifactsHandler(db, nil)
	googleHandler := NewGoogleHandler(oauthService, cfg)
	linkedinHandler := NewLinkedInHandler(oauthService, cfg)
	eventsHandler := NewEventsHandler(notifier)
	billingService := services.NewBillingService(db, config.StripeConfig{WebhookSecret: "whsec_test"}, notifier)
	stripeHandler := NewStripeHandler(billingService)

	authMiddleware := middleware.NewAuthMiddleware(db)

	app := fiber.New(fiber.Config{BodyLimit: 112 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS())
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

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

	api.Post("/stripe/create-checkout-session", authMiddleware.RequireAuth, stripeHandler.CreateCheckoutSession)
	api.Post("/stripe/create-portal-session", authMiddleware.RequireAuth, stripeHandler.CreatePortalSession)
	api.Post("/stripe/webhook", stripeHandler.Webhook)

	api.Get("/events", authMiddleware.RequireAuth, eventsHandler.Stream)

	return &testEnv{app: app, db: db, notifier: notifier}
}

func createTestUser(t *testing.T, db *gorm.DB, email, password string, isAdmin bool) (*models.User, string) {
	t.Helper()

	hash, err := utils.HashPassword(password)
	if err != nil {
		t.Fatalf("failed hashing password: %v", err)
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Test",
		LastName:     "User",
		IsAdmin:      isAdmin,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating test user: %v", err)
	}

	token, err := utils.GenerateToken(user)
	if err != nil {
		t.Fatalf("failed generating auth token: %v", err)
	}

	return user, token
}

func authHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func performRequest(t *testing.T, app *fiber.App, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}

	return resp
}

func performJSONRequest(t *testing.T, app *fiber.App, method, path string, payload any, headers map[string]string) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	requestHeaders := map[string]string{}
	for key, value := range headers {
		requestHeaders[key] = value
	}
	if payload != nil {
		requestHeaders["Content-Type"] = "application/json"
	}

	return performRequest(t, app, method, path, body, requestHeaders)
}

func decodeJSONMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("failed decoding JSON response: %v body=%q", err, string(raw))
	}

	return payload
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

func assertEnvelopeError(t *testing.T, body map[string]any, expected string) {
	t.Helper()
	if success, _ := body["success"].(bool); success {
		t.Fatalf("expected success=false, got %+v", body)
	}
	if got, _ := body["error"].(string); got != expected {
		t.Fatalf("expected error %q, got %q", expected, got)
	}
}

func dataMap(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data object in response, got %+v", body)
	}
	return data
}

func auditCount(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	if err := db.Model(&models.AdminAuditLog{}).Count(&count).Error; err != nil {
		t.Fatalf("failed counting audit rows: %v", err)
	}
	return count
}
