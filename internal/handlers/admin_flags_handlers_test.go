package handlers

import (
	"testing"

	"github.com/cultivatehq/backend/internal/models"
	"github.com/gofiber/fiber/v2"
)

func createFlag(t *testing.T, env *testEnv, token, name string, enabled bool) map[string]any {
	t.Helper()
	resp := performJSONRequest(t, env.app, fiber.MethodPost, "/api/admin/feature-flags/", map[string]any{
		"name":             name,
		"enabled_globally": enabled,
	}, authHeaders(token))
	assertStatus(t, resp, fiber.StatusCreated)
	return dataMap(t, decodeJSONMap(t, resp))
}

func TestCreateFlagValidatesName(t *testing.T) {
	env := setupTestEnv(t)
	_, token := createTestUser(t, env.db, "admin@example.com", "password123", true)

	resp := performJSONRequest(t, env.app, fiber.MethodPost, "/api/admin/feature-flags/", map[string]any{
		"name": "New_Flag!",
	}, authHeaders(token))
	assertStatus(t, resp, fiber.StatusBadRequest)
	assertEnvelopeError(t, decodeJSONMap(t, resp), "name must match ^[a-z0-9_-]+$")

	resp = performJSONRequest(t, env.app, fiber.MethodPost, "/api/admin/feature-flags/", map[string]any{
		"name": "new-flag_1",
	}, authHeaders(token))
	assertStatus(t, resp, fiber.StatusCreated)

	if got := auditCount(t, env.db); got != 1 {
		t.Fatalf("expected 1 audit row after one create, got %d", got)
	}
}

func TestCreateFlagDuplicateName(t *testing.T) {
	env := setupTestEnv(t)
	_, token := createTestUser(t, env.db, "admin@example.com", "password123", true)

	createFlag(t, env, token, "beta-analytics", false)

	resp := performJSONRequest(t, env.app, fiber.MethodPost, "/api/admin/feature-flags/", map[string]any{
		"name": "beta-analytics",
	}, authHeaders(token))
	assertStatus(t, resp, fiber.StatusConflict)
	assertEnvelopeError(t, decodeJSONMap(t, resp), "a flag with this name already exists")

	if got := auditCount(t, env.db); got != 1 {
		t.Fatalf("rejected create must not write an audit row, got %d", got)
	}
}

func TestFlagRoutesRejectNonAdmin(t *testing.T) {
	env := setupTestEnv(t)
	_, userToken := createTestUser(t, env.db, "user@example.com", "password123", false)

	resp := performJSONRequest(t, env.app, fiber.MethodPost, "/api/admin/feature-flags/", map[string]any{
		"name": "sneaky-flag",
	}, authHeaders(userToken))
	assertStatus(t, resp, fiber.StatusForbidden)
	assertEnvelopeError(t, decodeJSONMap(t, resp), "admin access required")

	var count int64
	env.db.Model(&models.FeatureFlag{}).Count(&count)
	if count != 0 {
		t.Fatalf("forbidden create must have zero side effects, found %d flags", count)
	}
	if got := auditCount(t, env.db); got != 0 {
		t.Fatalf("forbidden create must not write audit rows, got %d", got)
	}
}

func TestFlagRoutesRejectUnauthenticated(t *testing.T) {
	env := setupTestEnv(t)

	resp := performJSONRequest(t, env.app, fiber.MethodPost, "/api/admin/feature-flags/", map[string]any{
		"name": "anon-flag",
	}, nil)
	assertStatus(t, resp, fiber.StatusUnauthorized)

	var count int64
	env.db.Model(&models.FeatureFlag{}).Count(&count)
	if count != 0 {
		t.Fatalf("unauthenticated create must have zero side effects, found %d flags", count)
	}
}

func TestGetFlagNotFound(t *testing.T) {
	env := setupTestEnv(t)
	_, token := createTestUser(t, env.db, "admin@example.com", "password123", true)

	resp := performRequest(t, env.app, fiber.MethodGet, "/api/admin/feature-flags/6f1b6f34-27b7-4aff-9bdb-0a0e29255e23", nil, authHeaders(token))
	assertStatus(t, resp, fiber.StatusNotFound)
	assertEnvelopeError(t, decodeJSONMap(t, resp), "feature flag not found")
}

func TestToggleFlag(t *testing.T) {
	env := setupTestEnv(t)
	_, token := createTestUser(t, env.db, "admin@example.com", "password123", true)

	created := createFlag(t, env, token, "dark-mode", false)
	flagID := created["id"].(string)

	resp := performJSONRequest(t, env.app, fiber.MethodPost, "/api/admin/feature-flags/"+flagID+"/toggle", nil, authHeaders(token))
	assertStatus(t, resp, fiber.StatusOK)
	data := dataMap(t, decodeJSONMap(t, resp))
	if enabled, _ := data["enabledGlobally"].(bool); !enabled {
		t.Fatalf("expected toggle to flip enabledGlobally to true, got %+v", data)
	}

	resp = performJSONRequest(t, env.app, fiber.MethodPost, "/api/admin/feature-flags/"+flagID+"/toggle", nil, authHeaders(token))
	assertStatus(t, resp, fiber.StatusOK)
	data = dataMap(t, decodeJSONMap(t, resp))
	if enabled, _ := data["enabledGlobally"].(bool); enabled {
		t.Fatalf("expected second toggle to flip back to false, got %+v", data)
	}

	// create + 2 toggles
	if got := auditCount(t, env.db); got != 3 {
		t.Fatalf("expected 3 audit rows, got %d", got)
	}

	var entry models.AdminAuditLog
	if err := env.db.Order("created_at DESC").First(&entry, "action = ?", "feature_flag.toggle").Error; err != nil {
		t.Fatalf("expected a feature_flag.toggle audit row: %v", err)
	}
	if entry.ResourceType != "feature_flag" {
		t.Fatalf("expected resource type feature_flag, got %q", entry.ResourceType)
	}
}

func TestUpdateFlagRecordsBeforeAndAfter(t *testing.T) {
	env := setupTestEnv(t)
	admin, token := createTestUser(t, env.db, "admin@example.com", "password123", true)

	created := createFlag(t, env, token, "weekly-digest", false)
	flagID := created["id"].(string)

	resp := performJSONRequest(t, env.app, fiber.MethodPut, "/api/admin/feature-flags/"+flagID, map[string]any{
		"description":      "Weekly relationship digest email",
		"enabled_globally": true,
	}, authHeaders(token))
	assertStatus(t, resp, fiber.StatusOK)

	var entry models.AdminAuditLog
	if err := env.db.First(&entry, "action = ?", "feature_flag.update").Error; err != nil {
		t.Fatalf("expected a feature_flag.update audit row: %v", err)
	}
	if entry.AdminUserID != admin.ID {
		t.Fatalf("audit row should record the acting admin")
	}
	if entry.Details == nil {
		t.Fatalf("update audit row should carry before/after details")
	}
	if _, ok := entry.Details["before"]; !ok {
		t.Fatalf("expected before snapshot in details, got %+v", entry.Details)
	}
	if _, ok := entry.Details["after"]; !ok {
		t.Fatalf("expected after snapshot in details, got %+v", entry.Details)
	}
}

func TestDeleteFlagCascadesOverrides(t *testing.T) {
	env := setupTestEnv(t)
	_, token := createTestUser(t, env.db, "admin@example.com", "password123", true)
	target, _ := createTestUser(t, env.db, "user@example.com", "password123", false)

	created := createFlag(t, env, token, "beta-analytics", false)
	flagID := created["id"].(string)

	resp := performJSONRequest(t, env.app, fiber.MethodPost, "/api/admin/user-feature-overrides/", map[string]any{
		"user_id":         target.ID.String(),
		"feature_flag_id": flagID,
		"enabled":         true,
	}, authHeaders(token))
	assertStatus(t, resp, fiber.StatusCreated)

	resp = performRequest(t, env.app, fiber.MethodDelete, "/api/admin/feature-flags/"+flagID, nil, authHeaders(token))
	assertStatus(t, resp, fiber.StatusOK)

	var overrides int64
	env.db.Model(&models.UserFeatureOverride{}).Count(&overrides)
	if overrides != 0 {
		t.Fatalf("deleting a flag must remove its overrides, found %d", overrides)
	}

	var entry models.AdminAuditLog
	if err := env.db.First(&entry, "action = ?", "feature_flag.delete").Error; err != nil {
		t.Fatalf("expected a feature_flag.delete audit row: %v", err)
	}
	if removed, ok := entry.Details["overrides_removed"].(float64); !ok || removed != 1 {
		t.Fatalf("expected overrides_removed=1 in details, got %+v", entry.Details)
	}
}

func TestAuditLogListAndExport(t *testing.T) {
	env := setupTestEnv(t)
	_, token := createTestUser(t, env.db, "admin@example.com", "password123", true)
	_, userToken := createTestUser(t, env.db, "user@example.com", "password123", false)

	createFlag(t, env, token, "one", false)
	createFlag(t, env, token, "two", true)

	resp := performRequest(t, env.app, fiber.MethodGet, "/api/admin/audit-log", nil, authHeaders(token))
	assertStatus(t, resp, fiber.StatusOK)
	body := decodeJSONMap(t, resp)
	entries, ok := body["data"].([]any)
	if !ok || len(entries) != 2 {
		t.Fatalf("expected 2 audit entries, got %+v", body["data"])
	}

	resp = performRequest(t, env.app, fiber.MethodGet, "/api/admin/audit-log?action=feature_flag.create", nil, authHeaders(token))
	assertStatus(t, resp, fiber.StatusOK)

	resp = performRequest(t, env.app, fiber.MethodGet, "/api/admin/audit-log/export?format=csv", nil, authHeaders(token))
	assertStatus(t, resp, fiber.StatusOK)
	if ct := resp.Header.Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("expected text/csv export, got %q", ct)
	}

	resp = performRequest(t, env.app, fiber.MethodGet, "/api/admin/audit-log", nil, authHeaders(userToken))
	assertStatus(t, resp, fiber.StatusForbidden)
}
