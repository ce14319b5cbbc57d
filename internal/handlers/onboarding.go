package handlers

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/cultivatehq/backend/internal/middleware"
	"github.com/cultivatehq/backend/internal/models"
	"github.com/cultivatehq/backend/internal/services"
	"github.com/cultivatehq/backend/internal/storage"
	"github.com/cultivatehq/backend/pkg/logger"
	"github.com/cultivatehq/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const maxVoiceMemoSize = 50 * 1024 * 1024

var voiceMemoMimeTypes = map[string]bool{
	"audio/mpeg":  true,
	"audio/mp4":   true,
	"audio/m4a":   true,
	"audio/x-m4a": true,
	"audio/wav":   true,
	"audio/webm":  true,
	"audio/ogg":   true,
}

type OnboardingHandler struct {
	DB         *gorm.DB
	Onboarding *services.OnboardingService
	Storage    *storage.MinIOClient
}

func NewOnboardingHandler(db *gorm.DB, onboarding *services.OnboardingService, store *storage.MinIOClient) *OnboardingHandler {
	return &OnboardingHandler{DB: db, Onboarding: onboarding, Storage: store}
}

type onboardingStateResponse struct {
	*models.OnboardingState
	TotalScreens   int     `json:"totalScreens"`
	CompletionRate float64 `json:"completionRate"`
}

func (h *OnboardingHandler) respond(c *fiber.Ctx, state *models.OnboardingState) error {
	return utils.Success(c, fiber.StatusOK, onboardingStateResponse{
		OnboardingState: state,
		TotalScreens:    h.Onboarding.TotalScreens,
		CompletionRate:  state.CompletionRate(h.Onboarding.TotalScreens),
	})
}

func (h *OnboardingHandler) GetState(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "authentication required")
	}

	state, err := h.Onboarding.Get(user.ID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to load onboarding state")
	}
	return h.respond(c, state)
}

func (h *OnboardingHandler) Next(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "authentication required")
	}

	state, err := h.Onboarding.NextScreen(user.ID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to advance onboarding")
	}
	return h.respond(c, state)
}

func (h *OnboardingHandler) Previous(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "authentication required")
	}

	state, err := h.Onboarding.PreviousScreen(user.ID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to step back")
	}
	return h.respond(c, state)
}

type navigateRequest struct {
	Screen int `json:"screen"`
}

func (h *OnboardingHandler) Navigate(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "authentication required")
	}

	var req navigateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	state, err := h.Onboarding.NavigateToScreen(user.ID, req.Screen)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to navigate")
	}
	return h.respond(c, state)
}

type completeScreenRequest struct {
	Screen int `json:"screen"`
}

func (h *OnboardingHandler) CompleteScreen(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "authentication required")
	}

	var req completeScreenRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	state, err := h.Onboarding.CompleteScreen(user.ID, req.Screen)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to complete screen")
	}
	return h.respond(c, state)
}

// UploadVoiceMemo accepts one of the three onboarding audio captures as a
// multipart upload, stores it, and records the artifact on the onboarding
// row. The kind comes from the "memo_type" form field.
func (h *OnboardingHandler) UploadVoiceMemo(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "authentication required")
	}

	kind := services.VoiceMemoKind(c.FormValue("memo_type"))
	switch kind {
	case services.VoiceMemoChallenge, services.VoiceMemoGoal, services.VoiceMemoProfile:
	default:
		return utils.Error(c, fiber.StatusBadRequest, "memo_type must be challenge, goal, or profile_enhancement")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "file is required")
	}
	if fileHeader.Size > maxVoiceMemoSize {
		return utils.Error(c, fiber.StatusRequestEntityTooLarge, "voice memo exceeds the 50MB limit")
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if !voiceMemoMimeTypes[strings.ToLower(contentType)] {
		return utils.Error(c, fiber.StatusBadRequest, "unsupported audio format")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to read upload")
	}
	defer file.Close()

	artifact := models.Artifact{
		OwnerID:    user.ID,
		Type:       models.ArtifactTypeVoiceMemo,
		Title:      fmt.Sprintf("Onboarding voice memo (%s)", kind),
		OccurredAt: time.Now().UTC(),
	}
	if err := h.DB.Create(&artifact).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to create artifact")
	}

	ext := filepath.Ext(fileHeader.Filename)
	objectName := fmt.Sprintf("voice-memos/%s/%s%s", user.ID, artifact.ID, ext)
	if err := h.Storage.Upload(c.Context(), objectName, file, fileHeader.Size, contentType); err != nil {
		h.DB.Delete(&artifact)
		return utils.Error(c, fiber.StatusInternalServerError, "failed to store voice memo")
	}

	size := fileHeader.Size
	content := models.ArtifactContent{
		ArtifactID:  artifact.ID,
		ContentType: models.ArtifactContentVoiceMemo,
		StoragePath: &objectName,
		MimeType:    &contentType,
		SizeBytes:   &size,
	}
	if err := h.DB.Create(&content).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to record voice memo")
	}

	state, err := h.Onboarding.AttachVoiceMemo(user.ID, kind, artifact.ID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to attach voice memo")
	}

	logger.InfoWithUser(user.ID.String(), "onboarding_voice_memo_uploaded", map[string]interface{}{
		"kind":        string(kind),
		"artifact_id": artifact.ID.String(),
		"size":        fileHeader.Size,
	})

	return h.respond(c, state)
}

type importGoalContactsRequest struct {
	URLs []string `json:"urls"`
}

// ImportGoalContacts records LinkedIn profile URLs the user wants imported
// as goal contacts. Each URL is validated and stubbed into a contact; the
// per-URL outcome is stored on the onboarding row.
func (h *OnboardingHandler) ImportGoalContacts(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "authentication required")
	}

	var req importGoalContactsRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if len(req.URLs) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "urls is required")
	}
	if len(req.URLs) > 20 {
		return utils.Error(c, fiber.StatusBadRequest, "at most 20 urls per import")
	}

	imports := make([]models.GoalContactImport, 0, len(req.URLs))
	for _, raw := range req.URLs {
		url := strings.TrimSpace(raw)
		record := models.GoalContactImport{URL: url}

		if !strings.Contains(url, "linkedin.com/in/") {
			record.Status = "failed"
			record.Error = "not a LinkedIn profile URL"
			imports = append(imports, record)
			continue
		}

		contact := models.Contact{
			OwnerID:     user.ID,
			FirstName:   contactNameFromProfileURL(url),
			LinkedInURL: &url,
		}
		if err := h.DB.Create(&contact).Error; err != nil {
			record.Status = "failed"
			record.Error = "could not create contact"
		} else {
			record.Status = "imported"
			record.ContactID = &contact.ID
		}
		imports = append(imports, record)
	}

	state, err := h.Onboarding.RecordGoalContactImports(user.ID, imports)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to record imports")
	}
	return h.respond(c, state)
}

// contactNameFromProfileURL extracts a readable name from the profile slug,
// e.g. ".../in/jane-doe-123" becomes "Jane Doe 123".
func contactNameFromProfileURL(url string) string {
	idx := strings.Index(url, "linkedin.com/in/")
	slug := url[idx+len("linkedin.com/in/"):]
	slug = strings.Trim(slug, "/")
	if q := strings.IndexAny(slug, "?#"); q >= 0 {
		slug = slug[:q]
	}
	if slug == "" {
		return "LinkedIn Contact"
	}

	parts := strings.Split(slug, "-")
	for i, p := range parts {
		if p == "" {
			continue
		}
		r, size := utf8.DecodeRuneInString(p)
		parts[i] = string(unicode.ToUpper(r)) + p[size:]
	}
	return strings.Join(parts, " ")
}
