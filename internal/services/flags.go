package services

import (
	"errors"

	"github.com/cultivatehq/backend/internal/models"
	"github.com/cultivatehq/backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrFlagNotFound = errors.New("feature flag not found")

// FlagService computes effective flag values. Strict two-level precedence:
// a per-user override wins unconditionally over the flag's global default.
type FlagService struct {
	DB *gorm.DB
}

func NewFlagService(db *gorm.DB) *FlagService {
	return &FlagService{DB: db}
}

// Resolve returns the effective value of a flag for one user. A missing flag
// resolves to false rather than erroring so end-user gating is never blocked
// by a deleted or not-yet-created flag.
func (s *FlagService) Resolve(name string, userID uuid.UUID) bool {
	var flag models.FeatureFlag
	if err := s.DB.First(&flag, "name = ?", name).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Error("flag_resolve_query_failed", err, map[string]interface{}{
				"flag_name": name,
			})
		}
		return false
	}

	var override models.UserFeatureOverride
	err := s.DB.First(&override, "user_id = ? AND feature_flag_id = ?", userID, flag.ID).Error
	if err == nil {
		return override.Enabled
	}

	return flag.EnabledGlobally
}

type ResolvedFlag struct {
	Flag            models.FeatureFlag `json:"flag"`
	EnabledGlobally bool               `json:"enabledGlobally"`
	HasOverride     bool               `json:"hasOverride"`
	UserEnabled     bool               `json:"userEnabled"`
}

// ResolveAll applies the same precedence rule to every flag, for the admin
// and demo views.
func (s *FlagService) ResolveAll(userID uuid.UUID) ([]ResolvedFlag, error) {
	var flags []models.FeatureFlag
	if err := s.DB.Order("name ASC").Find(&flags).Error; err != nil {
		return nil, err
	}

	var overrides []models.UserFeatureOverride
	if err := s.DB.Where("user_id = ?", userID).Find(&overrides).Error; err != nil {
		return nil, err
	}

	byFlag := make(map[uuid.UUID]models.UserFeatureOverride, len(overrides))
	for _, o := range overrides {
		byFlag[o.FeatureFlagID] = o
	}

	result := make([]ResolvedFlag, 0, len(flags))
	for _, flag := range flags {
		resolved := ResolvedFlag{
			Flag:            flag,
			EnabledGlobally: flag.EnabledGlobally,
			UserEnabled:     flag.EnabledGlobally,
		}
		if o, ok := byFlag[flag.ID]; ok {
			resolved.HasOverride = true
			resolved.UserEnabled = o.Enabled
		}
		result = append(result, resolved)
	}
	return result, nil
}

// GetFlag is the admin-facing lookup: unlike Resolve, a missing flag is a
// real error here so admin tooling sees 404 instead of a silent false.
func (s *FlagService) GetFlag(id uuid.UUID) (*models.FeatureFlag, error) {
	var flag models.FeatureFlag
	if err := s.DB.First(&flag, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFlagNotFound
		}
		return nil, err
	}
	return &flag, nil
}
