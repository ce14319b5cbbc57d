package models

import (
	"time"

	"github.com/google/uuid"
)

type ArtifactType string

const (
	ArtifactTypeMeeting   ArtifactType = "meeting"
	ArtifactTypeVoiceMemo ArtifactType = "voice_memo"
	ArtifactTypeEmail     ArtifactType = "email"
)

// Artifact is one captured interaction record: a meeting, a voice memo, or
// an email, optionally attached to a contact.
type Artifact struct {
	BaseModel
	OwnerID    uuid.UUID    `json:"ownerID" gorm:"type:uuid;not null;index"`
	ContactID  *uuid.UUID   `json:"contactID,omitempty" gorm:"type:uuid;index"`
	Type       ArtifactType `json:"type" gorm:"type:varchar(20);not null;index"`
	Title      string       `json:"title" gorm:"type:varchar(255);not null"`
	OccurredAt time.Time    `json:"occurredAt" gorm:"not null"`

	Owner    User              `json:"-" gorm:"foreignKey:OwnerID"`
	Contact  *Contact          `json:"-" gorm:"foreignKey:ContactID"`
	Contents []ArtifactContent `json:"contents,omitempty" gorm:"foreignKey:ArtifactID;constraint:OnDelete:CASCADE"`
}

func (Artifact) TableName() string {
	return "artifacts"
}

type ArtifactContentType string

const (
	ArtifactContentNotes      ArtifactContentType = "notes"
	ArtifactContentTranscript ArtifactContentType = "transcript"
	ArtifactContentRecording  ArtifactContentType = "recording"
	ArtifactContentVoiceMemo  ArtifactContentType = "voice_memo"
)

// ArtifactContent is one piece of content attached to an artifact: inline
// text for notes/transcripts, an object-storage reference for media.
type ArtifactContent struct {
	BaseModel
	ArtifactID  uuid.UUID           `json:"artifactID" gorm:"type:uuid;not null;index"`
	ContentType ArtifactContentType `json:"contentType" gorm:"type:varchar(20);not null"`
	Text        *string             `json:"text,omitempty" gorm:"type:text"`
	StoragePath *string             `json:"-" gorm:"type:text"`
	MimeType    *string             `json:"mimeType,omitempty" gorm:"type:varchar(100)"`
	SizeBytes   *int64              `json:"sizeBytes,omitempty"`

	Artifact Artifact `json:"-" gorm:"foreignKey:ArtifactID"`
}

func (ArtifactContent) TableName() string {
	return "artifact_contents"
}
