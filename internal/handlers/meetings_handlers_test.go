package handlers

import (
	"bytes"
	"io"
	"mime/multipart"
	"testing"

	"github.com/cultivatehq/backend/internal/models"
	"github.com/gofiber/fiber/v2"
)

func multipartBody(t *testing.T, fields map[string]string, fileField, filename, mimeType string, content []byte) (io.Reader, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("failed writing form field %s: %v", key, err)
		}
	}

	if fileField != "" {
		header := make(map[string][]string)
		header["Content-Disposition"] = []string{`form-data; name="` + fileField + `"; filename="` + filename + `"`}
		header["Content-Type"] = []string{mimeType}
		part, err := writer.CreatePart(header)
		if err != nil {
			t.Fatalf("failed creating file part: %v", err)
		}
		if _, err := part.Write(content); err != nil {
			t.Fatalf("failed writing file content: %v", err)
		}
	}

	if err := writer.Close(); err != nil {
		t.Fatalf("failed closing multipart writer: %v", err)
	}

	return &buf, writer.FormDataContentType()
}

func postMeetingContent(t *testing.T, env *testEnv, token string, fields map[string]string, filename, mimeType string, content []byte) (int, map[string]any) {
	t.Helper()

	fileField := "file"
	if filename == "" {
		fileField = ""
	}
	body, contentType := multipartBody(t, fields, fileField, filename, mimeType, content)
	headers := authHeaders(token)
	headers["Content-Type"] = contentType

	resp := performRequest(t, env.app, fiber.MethodPost, "/api/meetings/content", body, headers)
	return resp.StatusCode, decodeJSONMap(t, resp)
}

func TestMeetingContentRejectsBadExtension(t *testing.T) {
	env := setupTestEnv(t)
	_, token := createTestUser(t, env.db, "user@example.com", "password123", false)

	status, result := postMeetingContent(t, env, token, map[string]string{
		"content_type": "recording",
	}, "malware.exe", "audio/mpeg", []byte("MZ"))

	if status != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for .exe upload, got %d", status)
	}
	if result["error"] != "Invalid file extension." {
		t.Fatalf("expected %q, got %q", "Invalid file extension.", result["error"])
	}

	var contents int64
	env.db.Model(&models.ArtifactContent{}).Count(&contents)
	if contents != 0 {
		t.Fatalf("rejected upload must not create content rows, got %d", contents)
	}
}

func TestMeetingContentRejectsUnknownType(t *testing.T) {
	env := setupTestEnv(t)
	_, token := createTestUser(t, env.db, "user@example.com", "password123", false)

	status, _ := postMeetingContent(t, env, token, map[string]string{
		"content_type": "screenplay",
	}, "notes.txt", "text/plain", []byte("hello"))

	if status != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for unknown content type, got %d", status)
	}
}

func TestMeetingContentTextSizeLimit(t *testing.T) {
	env := setupTestEnv(t)
	_, token := createTestUser(t, env.db, "user@example.com", "password123", false)

	oversized := bytes.Repeat([]byte("a"), maxTextContentSize+1)
	status, _ := postMeetingContent(t, env, token, map[string]string{
		"content_type": "notes",
	}, "notes.txt", "text/plain", oversized)

	if status != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for oversized text upload, got %d", status)
	}
}

func TestMeetingContentBinarySizeLimit(t *testing.T) {
	env := setupTestEnv(t)
	_, token := createTestUser(t, env.db, "user@example.com", "password123", false)

	oversized := make([]byte, maxBinaryContentSize+1)
	status, result := postMeetingContent(t, env, token, map[string]string{
		"content_type": "recording",
		"title":        "All hands",
	}, "recording.mp3", "audio/mpeg", oversized)

	if status != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for oversized recording, got %d", status)
	}
	assertEnvelopeError(t, result, "file exceeds the 100MB limit")

	var count int64
	env.db.Model(&models.ArtifactContent{}).Count(&count)
	if count != 0 {
		t.Fatalf("oversized upload must not persist content rows, got %d", count)
	}
}

func TestMeetingContentInlineNotes(t *testing.T) {
	env := setupTestEnv(t)
	user, token := createTestUser(t, env.db, "user@example.com", "password123", false)

	status, result := postMeetingContent(t, env, token, map[string]string{
		"content_type": "notes",
		"title":        "Coffee with Jane",
		"text":         "Discussed the Q3 introduction.",
	}, "", "", nil)

	if status != fiber.StatusCreated {
		t.Fatalf("expected 201 for inline notes, got %d: %+v", status, result)
	}

	var artifact models.Artifact
	if err := env.db.First(&artifact, "owner_id = ?", user.ID).Error; err != nil {
		t.Fatalf("expected a meeting artifact: %v", err)
	}
	if artifact.Type != models.ArtifactTypeMeeting {
		t.Fatalf("expected meeting artifact, got %q", artifact.Type)
	}
	if artifact.Title != "Coffee with Jane" {
		t.Fatalf("expected provided title, got %q", artifact.Title)
	}

	var content models.ArtifactContent
	if err := env.db.First(&content, "artifact_id = ?", artifact.ID).Error; err != nil {
		t.Fatalf("expected a content row: %v", err)
	}
	if content.Text == nil || *content.Text != "Discussed the Q3 introduction." {
		t.Fatalf("expected inline text stored, got %+v", content)
	}
}

func TestMeetingContentTranscriptFile(t *testing.T) {
	env := setupTestEnv(t)
	_, token := createTestUser(t, env.db, "user@example.com", "password123", false)

	status, result := postMeetingContent(t, env, token, map[string]string{
		"content_type": "transcript",
	}, "call.vtt", "text/vtt", []byte("WEBVTT\n\n00:00.000 --> 00:04.000\nHello"))

	if status != fiber.StatusCreated {
		t.Fatalf("expected 201 for transcript file, got %d: %+v", status, result)
	}

	var content models.ArtifactContent
	if err := env.db.First(&content, "content_type = ?", models.ArtifactContentTranscript).Error; err != nil {
		t.Fatalf("expected transcript content row: %v", err)
	}
	if content.Text == nil || len(*content.Text) == 0 {
		t.Fatalf("small transcript files should be stored inline, got %+v", content)
	}
}

func TestMeetingContentRejectsForeignArtifact(t *testing.T) {
	env := setupTestEnv(t)
	owner, _ := createTestUser(t, env.db, "owner@example.com", "password123", false)
	_, intruderToken := createTestUser(t, env.db, "intruder@example.com", "password123", false)

	artifact := models.Artifact{
		OwnerID: owner.ID,
		Type:    models.ArtifactTypeMeeting,
		Title:   "Private sync",
	}
	if err := env.db.Create(&artifact).Error; err != nil {
		t.Fatalf("failed seeding artifact: %v", err)
	}

	status, _ := postMeetingContent(t, env, intruderToken, map[string]string{
		"content_type": "notes",
		"artifact_id":  artifact.ID.String(),
		"text":         "sneaky",
	}, "", "", nil)

	if status != fiber.StatusNotFound {
		t.Fatalf("foreign artifact must read as not found, got %d", status)
	}
}
