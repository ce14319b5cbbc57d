package handlers

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/cultivatehq/backend/internal/middleware"
	"github.com/cultivatehq/backend/internal/models"
	"github.com/cultivatehq/backend/internal/storage"
	"github.com/cultivatehq/backend/pkg/logger"
	"github.com/cultivatehq/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const (
	maxBinaryContentSize = 100 * 1024 * 1024
	maxTextContentSize   = 1 * 1024 * 1024
)

// Per content type: which file extensions are acceptable. Text kinds can
// alternatively arrive inline in the "text" form field.
var meetingContentExtensions = map[models.ArtifactContentType]map[string]bool{
	models.ArtifactContentNotes: {
		".txt": true, ".md": true,
	},
	models.ArtifactContentTranscript: {
		".txt": true, ".vtt": true, ".srt": true, ".json": true,
	},
	models.ArtifactContentRecording: {
		".mp3": true, ".mp4": true, ".m4a": true, ".wav": true,
		".webm": true, ".ogg": true, ".mov": true,
	},
	models.ArtifactContentVoiceMemo: {
		".mp3": true, ".m4a": true, ".wav": true, ".webm": true, ".ogg": true,
	},
}

var meetingContentMimePrefixes = map[models.ArtifactContentType][]string{
	models.ArtifactContentNotes:      {"text/", "application/octet-stream"},
	models.ArtifactContentTranscript: {"text/", "application/json", "application/octet-stream"},
	models.ArtifactContentRecording:  {"audio/", "video/", "application/octet-stream"},
	models.ArtifactContentVoiceMemo:  {"audio/", "application/octet-stream"},
}

func isTextContent(contentType models.ArtifactContentType) bool {
	return contentType == models.ArtifactContentNotes || contentType == models.ArtifactContentTranscript
}

type MeetingsHandler struct {
	DB      *gorm.DB
	Storage *storage.MinIOClient
}

func NewMeetingsHandler(db *gorm.DB, store *storage.MinIOClient) *MeetingsHandler {
	return &MeetingsHandler{DB: db, Storage: store}
}

// UploadContent attaches one piece of content to a meeting artifact. The
// artifact is looked up by artifact_id when given, otherwise created. Text
// kinds may arrive inline via the "text" field or as a small file; media
// kinds must be files and are streamed to object storage.
func (h *MeetingsHandler) UploadContent(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "authentication required")
	}

	contentType := models.ArtifactContentType(c.FormValue("content_type"))
	allowedExts, ok := meetingContentExtensions[contentType]
	if !ok {
		return utils.Error(c, fiber.StatusBadRequest, "content_type must be notes, transcript, recording, or voice_memo")
	}

	artifact, readyErr := h.resolveMeetingArtifact(c, user)
	if readyErr != nil {
		return readyErr
	}

	inlineText := c.FormValue("text")
	fileHeader, fileErr := c.FormFile("file")

	if isTextContent(contentType) && inlineText != "" {
		if len(inlineText) > maxTextContentSize {
			return utils.Error(c, fiber.StatusBadRequest, "text content exceeds the 1MB limit")
		}
		content := models.ArtifactContent{
			ArtifactID:  artifact.ID,
			ContentType: contentType,
			Text:        &inlineText,
		}
		if err := h.DB.Create(&content).Error; err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed to save content")
		}
		return utils.Success(c, fiber.StatusCreated, content)
	}

	if fileErr != nil {
		return utils.Error(c, fiber.StatusBadRequest, "file or text is required")
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if !allowedExts[ext] {
		return utils.Error(c, fiber.StatusBadRequest, "Invalid file extension.")
	}

	mimeType := strings.ToLower(fileHeader.Header.Get("Content-Type"))
	if !mimeAllowed(contentType, mimeType) {
		return utils.Error(c, fiber.StatusBadRequest, "invalid content type for upload")
	}

	if isTextContent(contentType) {
		if fileHeader.Size > maxTextContentSize {
			return utils.Error(c, fiber.StatusBadRequest, "text content exceeds the 1MB limit")
		}
	} else if fileHeader.Size > maxBinaryContentSize {
		return utils.Error(c, fiber.StatusBadRequest, "file exceeds the 100MB limit")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to read upload")
	}
	defer file.Close()

	content := models.ArtifactContent{
		ArtifactID:  artifact.ID,
		ContentType: contentType,
	}

	if isTextContent(contentType) {
		data, err := io.ReadAll(io.LimitReader(file, maxTextContentSize+1))
		if err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed to read upload")
		}
		if len(data) > maxTextContentSize {
			return utils.Error(c, fiber.StatusBadRequest, "text content exceeds the 1MB limit")
		}
		text := string(data)
		content.Text = &text
	} else {
		if err := h.DB.Create(&content).Error; err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed to save content")
		}
		objectName := fmt.Sprintf("meetings/%s/%s%s", artifact.ID, content.ID, ext)
		if err := h.Storage.Upload(c.Context(), objectName, file, fileHeader.Size, mimeType); err != nil {
			h.DB.Delete(&content)
			return utils.Error(c, fiber.StatusInternalServerError, "failed to store file")
		}
		size := fileHeader.Size
		if err := h.DB.Model(&content).Updates(map[string]interface{}{
			"storage_path": objectName,
			"mime_type":    mimeType,
			"size_bytes":   size,
		}).Error; err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed to save content")
		}
		content.StoragePath = &objectName
		content.MimeType = &mimeType
		content.SizeBytes = &size

		logger.InfoWithUser(user.ID.String(), "meeting_content_uploaded", map[string]interface{}{
			"artifact_id":  artifact.ID.String(),
			"content_type": string(contentType),
			"size":         fileHeader.Size,
		})
		return utils.Success(c, fiber.StatusCreated, content)
	}

	if err := h.DB.Create(&content).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to save content")
	}
	return utils.Success(c, fiber.StatusCreated, content)
}

func mimeAllowed(contentType models.ArtifactContentType, mimeType string) bool {
	if mimeType == "" {
		return false
	}
	for _, prefix := range meetingContentMimePrefixes[contentType] {
		if strings.HasPrefix(mimeType, prefix) {
			return true
		}
	}
	return false
}

// resolveMeetingArtifact finds the caller's meeting artifact from the
// artifact_id form field, or creates a new one when the field is absent.
// Someone else's artifact reads as not found.
func (h *MeetingsHandler) resolveMeetingArtifact(c *fiber.Ctx, user *models.User) (*models.Artifact, error) {
	raw := strings.TrimSpace(c.FormValue("artifact_id"))
	if raw != "" {
		artifactID, err := parseUUID(raw)
		if err != nil {
			return nil, utils.Error(c, fiber.StatusBadRequest, "invalid artifact_id")
		}
		var artifact models.Artifact
		if err := h.DB.First(&artifact, "id = ? AND owner_id = ?", artifactID, user.ID).Error; err != nil {
			return nil, utils.Error(c, fiber.StatusNotFound, "artifact not found")
		}
		return &artifact, nil
	}

	title := strings.TrimSpace(c.FormValue("title"))
	if title == "" {
		title = "Meeting"
	}
	artifact := models.Artifact{
		OwnerID:    user.ID,
		Type:       models.ArtifactTypeMeeting,
		Title:      title,
		OccurredAt: time.Now().UTC(),
	}
	if err := h.DB.Create(&artifact).Error; err != nil {
		return nil, utils.Error(c, fiber.StatusInternalServerError, "failed to create artifact")
	}
	return &artifact, nil
}
