package handlers

import (
	"testing"
	"unicode/utf8"

	"github.com/cultivatehq/backend/internal/models"
	"github.com/gofiber/fiber/v2"
)

func onboardingState(t *testing.T, env *testEnv, token string) map[string]any {
	t.Helper()
	resp := performRequest(t, env.app, fiber.MethodGet, "/api/onboarding/", nil, authHeaders(token))
	assertStatus(t, resp, fiber.StatusOK)
	return dataMap(t, decodeJSONMap(t, resp))
}

func TestOnboardingLazyCreate(t *testing.T) {
	env := setupTestEnv(t)
	_, token := createTestUser(t, env.db, "user@example.com", "password123", false)

	data := onboardingState(t, env, token)
	if got := data["currentScreen"].(float64); got != 1 {
		t.Fatalf("fresh state must start at screen 1, got %v", got)
	}
	if got := data["totalScreens"].(float64); got != testTotalScreens {
		t.Fatalf("expected totalScreens=%d, got %v", testTotalScreens, got)
	}
	if complete, _ := data["isComplete"].(bool); complete {
		t.Fatalf("fresh state must not be complete")
	}
}

func TestOnboardingNextMarksCurrentComplete(t *testing.T) {
	env := setupTestEnv(t)
	_, token := createTestUser(t, env.db, "user@example.com", "password123", false)

	resp := performJSONRequest(t, env.app, fiber.MethodPost, "/api/onboarding/next", nil, authHeaders(token))
	assertStatus(t, resp, fiber.StatusOK)
	data := dataMap(t, decodeJSONMap(t, resp))

	if got := data["currentScreen"].(float64); got != 2 {
		t.Fatalf("expected to advance to screen 2, got %v", got)
	}
	completed, _ := data["completedScreens"].([]any)
	if len(completed) != 1 || completed[0].(float64) != 1 {
		t.Fatalf("expected screen 1 completed, got %v", data["completedScreens"])
	}
}

func TestOnboardingNavigationClampsToRange(t *testing.T) {
	env := setupTestEnv(t)
	_, token := createTestUser(t, env.db, "user@example.com", "password123", false)

	resp := performJSONRequest(t, env.app, fiber.MethodPost, "/api/onboarding/navigate", map[string]any{
		"screen": 99,
	}, authHeaders(token))
	assertStatus(t, resp, fiber.StatusOK)
	data := dataMap(t, decodeJSONMap(t, resp))
	if got := data["currentScreen"].(float64); got != testTotalScreens {
		t.Fatalf("navigation above range must clamp to %d, got %v", testTotalScreens, got)
	}

	resp = performJSONRequest(t, env.app, fiber.MethodPost, "/api/onboarding/navigate", map[string]any{
		"screen": -3,
	}, authHeaders(token))
	assertStatus(t, resp, fiber.StatusOK)
	data = dataMap(t, decodeJSONMap(t, resp))
	if got := data["currentScreen"].(float64); got != 1 {
		t.Fatalf("navigation below range must clamp to 1, got %v", got)
	}

	resp = performJSONRequest(t, env.app, fiber.MethodPost, "/api/onboarding/previous", nil, authHeaders(token))
	assertStatus(t, resp, fiber.StatusOK)
	data = dataMap(t, decodeJSONMap(t, resp))
	if got := data["currentScreen"].(float64); got != 1 {
		t.Fatalf("previous at screen 1 must stay at 1, got %v", got)
	}
}

func TestOnboardingTerminalCompletion(t *testing.T) {
	env := setupTestEnv(t)
	_, token := createTestUser(t, env.db, "user@example.com", "password123", false)

	for screen := 1; screen <= testTotalScreens; screen++ {
		resp := performJSONRequest(t, env.app, fiber.MethodPost, "/api/onboarding/complete", map[string]any{
			"screen": screen,
		}, authHeaders(token))
		assertStatus(t, resp, fiber.StatusOK)
	}

	data := onboardingState(t, env, token)
	if complete, _ := data["isComplete"].(bool); !complete {
		t.Fatalf("completing every screen must mark onboarding complete")
	}
	if data["completedAt"] == nil {
		t.Fatalf("completedAt must be set on terminal completion")
	}

	// Completing the terminal screen again is a no-op.
	resp := performJSONRequest(t, env.app, fiber.MethodPost, "/api/onboarding/complete", map[string]any{
		"screen": testTotalScreens,
	}, authHeaders(token))
	assertStatus(t, resp, fiber.StatusOK)
	again := dataMap(t, decodeJSONMap(t, resp))
	completed, _ := again["completedScreens"].([]any)
	if len(completed) != testTotalScreens {
		t.Fatalf("repeat completion must not duplicate screens, got %d entries", len(completed))
	}
}

func TestOnboardingMutationNotifies(t *testing.T) {
	env := setupTestEnv(t)
	user, token := createTestUser(t, env.db, "user@example.com", "password123", false)

	events, cancel := env.notifier.Subscribe(user.ID)
	defer cancel()

	resp := performJSONRequest(t, env.app, fiber.MethodPost, "/api/onboarding/next", nil, authHeaders(token))
	assertStatus(t, resp, fiber.StatusOK)

	select {
	case event := <-events:
		if event.Resource != "onboarding_state" {
			t.Fatalf("expected onboarding_state event, got %q", event.Resource)
		}
	default:
		t.Fatalf("expected a change event after an onboarding mutation")
	}
}

func TestOnboardingVoiceMemoRejectsUnknownKind(t *testing.T) {
	env := setupTestEnv(t)
	_, token := createTestUser(t, env.db, "user@example.com", "password123", false)

	body, contentType := multipartBody(t, map[string]string{"memo_type": "ramblings"}, "file", "memo.mp3", "audio/mpeg", []byte("xxxx"))
	headers := authHeaders(token)
	headers["Content-Type"] = contentType

	resp := performRequest(t, env.app, fiber.MethodPost, "/api/onboarding/voice-memo", body, headers)
	assertStatus(t, resp, fiber.StatusBadRequest)
}

func TestContactNameFromProfileURL(t *testing.T) {
	cases := map[string]string{
		"https://www.linkedin.com/in/jane-doe-123":  "Jane Doe 123",
		"https://linkedin.com/in/josé-garcía/":      "José García",
		"https://www.linkedin.com/in/über-frau?x=1": "Über Frau",
		"https://www.linkedin.com/in/":              "LinkedIn Contact",
	}
	for url, want := range cases {
		got := contactNameFromProfileURL(url)
		if got != want {
			t.Fatalf("contactNameFromProfileURL(%q) = %q, want %q", url, got, want)
		}
		if !utf8.ValidString(got) {
			t.Fatalf("contactNameFromProfileURL(%q) produced invalid UTF-8", url)
		}
	}
}

func TestImportGoalContacts(t *testing.T) {
	env := setupTestEnv(t)
	user, token := createTestUser(t, env.db, "user@example.com", "password123", false)

	resp := performJSONRequest(t, env.app, fiber.MethodPost, "/api/onboarding/goal-contacts", map[string]any{
		"urls": []string{
			"https://www.linkedin.com/in/jane-doe",
			"https://example.com/not-linkedin",
		},
	}, authHeaders(token))
	assertStatus(t, resp, fiber.StatusOK)
	data := dataMap(t, decodeJSONMap(t, resp))

	imports, _ := data["importedGoalContacts"].([]any)
	if len(imports) != 2 {
		t.Fatalf("expected 2 import records, got %v", data["importedGoalContacts"])
	}

	first := imports[0].(map[string]any)
	if first["status"] != "imported" {
		t.Fatalf("expected first URL imported, got %+v", first)
	}
	second := imports[1].(map[string]any)
	if second["status"] != "failed" {
		t.Fatalf("expected second URL rejected, got %+v", second)
	}

	var contacts int64
	env.db.Model(&models.Contact{}).Where("owner_id = ?", user.ID).Count(&contacts)
	if contacts != 1 {
		t.Fatalf("expected 1 contact created from the import, got %d", contacts)
	}
}

func TestAdminResetOnboarding(t *testing.T) {
	env := setupTestEnv(t)
	_, adminToken := createTestUser(t, env.db, "admin@example.com", "password123", true)
	target, targetToken := createTestUser(t, env.db, "user@example.com", "password123", false)

	for i := 0; i < 3; i++ {
		resp := performJSONRequest(t, env.app, fiber.MethodPost, "/api/onboarding/next", nil, authHeaders(targetToken))
		assertStatus(t, resp, fiber.StatusOK)
	}

	resp := performJSONRequest(t, env.app, fiber.MethodPost, "/api/admin/users/"+target.ID.String()+"/reset-onboarding", nil, authHeaders(adminToken))
	assertStatus(t, resp, fiber.StatusOK)
	data := dataMap(t, decodeJSONMap(t, resp))

	if got := data["currentScreen"].(float64); got != 1 {
		t.Fatalf("reset must return to screen 1, got %v", got)
	}
	completed, _ := data["completedScreens"].([]any)
	if len(completed) != 0 {
		t.Fatalf("reset must clear completions, got %v", completed)
	}

	var entries int64
	env.db.Model(&models.AdminAuditLog{}).Where("action = ?", "onboarding.reset").Count(&entries)
	if entries != 1 {
		t.Fatalf("reset must write exactly one audit row, got %d", entries)
	}

	var entry models.AdminAuditLog
	env.db.First(&entry, "action = ?", "onboarding.reset")
	if cleared, ok := entry.Details["screens_cleared"].(float64); !ok || cleared != 3 {
		t.Fatalf("expected screens_cleared=3 in details, got %+v", entry.Details)
	}
}

func TestResetOnboardingRejectsNonAdmin(t *testing.T) {
	env := setupTestEnv(t)
	target, targetToken := createTestUser(t, env.db, "user@example.com", "password123", false)

	resp := performJSONRequest(t, env.app, fiber.MethodPost, "/api/onboarding/next", nil, authHeaders(targetToken))
	assertStatus(t, resp, fiber.StatusOK)

	resp = performJSONRequest(t, env.app, fiber.MethodPost, "/api/admin/users/"+target.ID.String()+"/reset-onboarding", nil, authHeaders(targetToken))
	assertStatus(t, resp, fiber.StatusForbidden)

	data := onboardingState(t, env, targetToken)
	if got := data["currentScreen"].(float64); got != 2 {
		t.Fatalf("forbidden reset must not change state, got screen %v", got)
	}
}
