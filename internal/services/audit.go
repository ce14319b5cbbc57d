package services

import (
	"github.com/cultivatehq/backend/internal/models"
	"github.com/cultivatehq/backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditDetails is the tagged payload union for admin_audit_log rows: one
// concrete type per action, so records stay machine-checkable instead of
// accumulating free-form maps.
type AuditDetails interface {
	AuditAction() string
	ResourceType() string
	Details() map[string]interface{}
}

// RequestContext carries the caller metadata recorded with every entry.
type RequestContext struct {
	IPAddress string
	UserAgent string
}

// AdminAuditService appends one row per privileged action. Writes are
// synchronous: the enclosing operation must not be reported successful
// unless the audit row exists, so callers propagate any error from Log.
type AdminAuditService struct {
	DB *gorm.DB
}

func NewAdminAuditService(db *gorm.DB) *AdminAuditService {
	return &AdminAuditService{DB: db}
}

func (s *AdminAuditService) Log(admin *models.User, details AuditDetails, resourceID *uuid.UUID, req RequestContext) error {
	return s.LogTx(s.DB, admin, details, resourceID, req)
}

// LogTx writes the entry inside an existing transaction so a failed audit
// write rolls the whole administrative operation back.
func (s *AdminAuditService) LogTx(tx *gorm.DB, admin *models.User, details AuditDetails, resourceID *uuid.UUID, req RequestContext) error {
	row := models.AdminAuditLog{
		AdminUserID:  admin.ID,
		Action:       details.AuditAction(),
		ResourceType: details.ResourceType(),
		ResourceID:   resourceID,
		Details:      details.Details(),
		IPAddress:    req.IPAddress,
		UserAgent:    req.UserAgent,
	}

	if err := tx.Create(&row).Error; err != nil {
		logger.ErrorWithUser(admin.ID.String(), "admin_audit_insert_failed", err, map[string]interface{}{
			"action": row.Action,
		})
		return err
	}
	return nil
}

// FlagCreatedDetails records the initial values of a new flag.
type FlagCreatedDetails struct {
	Name            string
	Description     *string
	EnabledGlobally bool
}

func (FlagCreatedDetails) AuditAction() string  { return "feature_flag.create" }
func (FlagCreatedDetails) ResourceType() string { return "feature_flag" }
func (d FlagCreatedDetails) Details() map[string]interface{} {
	out := map[string]interface{}{
		"name":             d.Name,
		"enabled_globally": d.EnabledGlobally,
	}
	if d.Description != nil {
		out["description"] = *d.Description
	}
	return out
}

// FlagUpdatedDetails records before/after values for a flag edit.
type FlagUpdatedDetails struct {
	Name   string
	Before map[string]interface{}
	After  map[string]interface{}
}

func (FlagUpdatedDetails) AuditAction() string  { return "feature_flag.update" }
func (FlagUpdatedDetails) ResourceType() string { return "feature_flag" }
func (d FlagUpdatedDetails) Details() map[string]interface{} {
	return map[string]interface{}{
		"name":   d.Name,
		"before": d.Before,
		"after":  d.After,
	}
}

type FlagToggledDetails struct {
	Name string
	From bool
	To   bool
}

func (FlagToggledDetails) AuditAction() string  { return "feature_flag.toggle" }
func (FlagToggledDetails) ResourceType() string { return "feature_flag" }
func (d FlagToggledDetails) Details() map[string]interface{} {
	return map[string]interface{}{
		"name": d.Name,
		"from": d.From,
		"to":   d.To,
	}
}

type FlagDeletedDetails struct {
	Name             string
	OverridesRemoved int64
}

func (FlagDeletedDetails) AuditAction() string  { return "feature_flag.delete" }
func (FlagDeletedDetails) ResourceType() string { return "feature_flag" }
func (d FlagDeletedDetails) Details() map[string]interface{} {
	return map[string]interface{}{
		"name":              d.Name,
		"overrides_removed": d.OverridesRemoved,
	}
}

// Override entries carry the affected user's email and the flag name, not
// just ids, so the audit trail reads without joins.
type OverrideUpsertedDetails struct {
	UserEmail string
	FlagName  string
	Enabled   bool
	Created   bool
}

func (OverrideUpsertedDetails) AuditAction() string  { return "user_feature_override.upsert" }
func (OverrideUpsertedDetails) ResourceType() string { return "user_feature_override" }
func (d OverrideUpsertedDetails) Details() map[string]interface{} {
	return map[string]interface{}{
		"user_email": d.UserEmail,
		"flag_name":  d.FlagName,
		"enabled":    d.Enabled,
		"created":    d.Created,
	}
}

type OverrideUpdatedDetails struct {
	UserEmail string
	FlagName  string
	From      bool
	To        bool
}

func (OverrideUpdatedDetails) AuditAction() string  { return "user_feature_override.update" }
func (OverrideUpdatedDetails) ResourceType() string { return "user_feature_override" }
func (d OverrideUpdatedDetails) Details() map[string]interface{} {
	return map[string]interface{}{
		"user_email": d.UserEmail,
		"flag_name":  d.FlagName,
		"from":       d.From,
		"to":         d.To,
	}
}

type OverrideDeletedDetails struct {
	UserEmail string
	FlagName  string
}

func (OverrideDeletedDetails) AuditAction() string  { return "user_feature_override.delete" }
func (OverrideDeletedDetails) ResourceType() string { return "user_feature_override" }
func (d OverrideDeletedDetails) Details() map[string]interface{} {
	return map[string]interface{}{
		"user_email": d.UserEmail,
		"flag_name":  d.FlagName,
	}
}

type OnboardingResetDetails struct {
	UserEmail        string
	ScreensCleared   int
	ArtifactsCleared int
}

func (OnboardingResetDetails) AuditAction() string  { return "onboarding.reset" }
func (OnboardingResetDetails) ResourceType() string { return "onboarding_state" }
func (d OnboardingResetDetails) Details() map[string]interface{} {
	return map[string]interface{}{
		"user_email":        d.UserEmail,
		"screens_cleared":   d.ScreensCleared,
		"artifacts_cleared": d.ArtifactsCleared,
	}
}

type UserUpdatedDetails struct {
	UserEmail string
	Fields    []string
}

func (UserUpdatedDetails) AuditAction() string  { return "user.update" }
func (UserUpdatedDetails) ResourceType() string { return "user" }
func (d UserUpdatedDetails) Details() map[string]interface{} {
	return map[string]interface{}{
		"user_email": d.UserEmail,
		"fields":     d.Fields,
	}
}

type UserDeletedDetails struct {
	UserEmail string
}

func (UserDeletedDetails) AuditAction() string  { return "user.delete" }
func (UserDeletedDetails) ResourceType() string { return "user" }
func (d UserDeletedDetails) Details() map[string]interface{} {
	return map[string]interface{}{
		"user_email": d.UserEmail,
	}
}
