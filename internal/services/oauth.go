package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cultivatehq/backend/internal/config"
	"github.com/cultivatehq/backend/internal/models"
	"github.com/cultivatehq/backend/pkg/logger"
	"github.com/cultivatehq/backend/pkg/utils"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/linkedin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	gmailScope    = "https://www.googleapis.com/auth/gmail.readonly"
	calendarScope = "https://www.googleapis.com/auth/calendar.readonly"
)

var (
	ErrOAuthNotConfigured = errors.New("oauth provider is not configured")
	ErrInvalidOAuthState  = errors.New("invalid oauth state")
)

// OAuthService builds consent URLs and turns provider callbacks into
// persisted user_integrations rows. Tokens are encrypted before storage.
type OAuthService struct {
	DB         *gorm.DB
	Cfg        *config.Config
	Onboarding *OnboardingService
	Notifier   *Notifier
}

func NewOAuthService(db *gorm.DB, cfg *config.Config, onboarding *OnboardingService, notifier *Notifier) *OAuthService {
	return &OAuthService{DB: db, Cfg: cfg, Onboarding: onboarding, Notifier: notifier}
}

func (s *OAuthService) googleConfig(scopes []string) (*oauth2.Config, error) {
	if s.Cfg.Google.ClientID == "" || s.Cfg.Google.ClientSecret == "" {
		return nil, ErrOAuthNotConfigured
	}
	return &oauth2.Config{
		ClientID:     s.Cfg.Google.ClientID,
		ClientSecret: s.Cfg.Google.ClientSecret,
		RedirectURL:  s.Cfg.Google.RedirectURL,
		Scopes:       scopes,
		Endpoint:     google.Endpoint,
	}, nil
}

func (s *OAuthService) linkedinConfig() (*oauth2.Config, error) {
	if s.Cfg.LinkedIn.ClientID == "" || s.Cfg.LinkedIn.ClientSecret == "" {
		return nil, ErrOAuthNotConfigured
	}
	return &oauth2.Config{
		ClientID:     s.Cfg.LinkedIn.ClientID,
		ClientSecret: s.Cfg.LinkedIn.ClientSecret,
		RedirectURL:  s.Cfg.LinkedIn.RedirectURL,
		Scopes:       []string{"openid", "profile", "email"},
		Endpoint:     linkedin.Endpoint,
	}, nil
}

// EncodeState packs "userID|source" for the round-trip through the provider.
func EncodeState(userID uuid.UUID, source string) string {
	return base64.URLEncoding.EncodeToString([]byte(userID.String() + "|" + source))
}

// DecodeState reverses EncodeState; any malformed input is rejected as a
// whole rather than partially trusted.
func DecodeState(state string) (uuid.UUID, string, error) {
	raw, err := base64.URLEncoding.DecodeString(state)
	if err != nil {
		return uuid.Nil, "", ErrInvalidOAuthState
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return uuid.Nil, "", ErrInvalidOAuthState
	}
	userID, err := uuid.Parse(parts[0])
	if err != nil {
		return uuid.Nil, "", ErrInvalidOAuthState
	}
	return userID, parts[1], nil
}

func scopesFor(providers []models.IntegrationProvider) []string {
	var scopes []string
	for _, p := range providers {
		switch p {
		case models.IntegrationProviderGmail:
			scopes = append(scopes, gmailScope)
		case models.IntegrationProviderCalendar:
			scopes = append(scopes, calendarScope)
		}
	}
	return scopes
}

// GoogleAuthURL builds the consent URL for the requested Google products.
// The combined flow asks for gmail and calendar in one consent screen.
func (s *OAuthService) GoogleAuthURL(userID uuid.UUID, source string, providers ...models.IntegrationProvider) (string, error) {
	cfg, err := s.googleConfig(scopesFor(providers))
	if err != nil {
		return "", err
	}
	return cfg.AuthCodeURL(
		EncodeState(userID, source),
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	), nil
}

func (s *OAuthService) LinkedInAuthURL(userID uuid.UUID, source string) (string, error) {
	cfg, err := s.linkedinConfig()
	if err != nil {
		return "", err
	}
	return cfg.AuthCodeURL(EncodeState(userID, source)), nil
}

// CombinedCallbackResult reports which halves of a multi-product grant were
// stored. Partial success is surfaced as a warning, not a failure.
type CombinedCallbackResult struct {
	UserID    uuid.UUID
	Source    string
	Connected []models.IntegrationProvider
	Failed    []models.IntegrationProvider
}

func (r CombinedCallbackResult) Partial() bool {
	return len(r.Connected) > 0 && len(r.Failed) > 0
}

// HandleGoogleCombinedCallback exchanges the code once and persists one
// integration row per requested product. If at least one row is stored the
// flow succeeds, reporting the failed half to the caller.
func (s *OAuthService) HandleGoogleCombinedCallback(ctx context.Context, code, state string, providers ...models.IntegrationProvider) (*CombinedCallbackResult, error) {
	userID, source, err := DecodeState(state)
	if err != nil {
		return nil, err
	}

	cfg, err := s.googleConfig(scopesFor(providers))
	if err != nil {
		return nil, err
	}

	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		logger.Warn("oauth_exchange_failed", map[string]interface{}{
			"provider": "google",
			"error":    err.Error(),
		})
		return nil, fmt.Errorf("failed to exchange authorization code")
	}

	result := &CombinedCallbackResult{UserID: userID, Source: source}
	for _, provider := range providers {
		if err := s.saveIntegration(userID, provider, token, scopesFor([]models.IntegrationProvider{provider})); err != nil {
			logger.ErrorWithUser(userID.String(), "integration_save_failed", err, map[string]interface{}{
				"provider": string(provider),
			})
			result.Failed = append(result.Failed, provider)
			continue
		}
		result.Connected = append(result.Connected, provider)
	}

	if len(result.Connected) == 0 {
		return result, errors.New("failed to store integration tokens")
	}
	return result, nil
}

// HandleLinkedInCallback exchanges the code and persists the single
// linkedin integration row.
func (s *OAuthService) HandleLinkedInCallback(ctx context.Context, code, state string) (*CombinedCallbackResult, error) {
	userID, source, err := DecodeState(state)
	if err != nil {
		return nil, err
	}

	cfg, err := s.linkedinConfig()
	if err != nil {
		return nil, err
	}

	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		logger.Warn("oauth_exchange_failed", map[string]interface{}{
			"provider": "linkedin",
			"error":    err.Error(),
		})
		return nil, fmt.Errorf("failed to exchange authorization code")
	}

	if err := s.saveIntegration(userID, models.IntegrationProviderLinkedIn, token, cfg.Scopes); err != nil {
		return nil, err
	}

	return &CombinedCallbackResult{
		UserID:    userID,
		Source:    source,
		Connected: []models.IntegrationProvider{models.IntegrationProviderLinkedIn},
	}, nil
}

func (s *OAuthService) saveIntegration(userID uuid.UUID, provider models.IntegrationProvider, token *oauth2.Token, scopes []string) error {
	accessToken, err := utils.EncryptAESGCM(token.AccessToken)
	if err != nil {
		return err
	}

	refreshToken := ""
	if token.RefreshToken != "" {
		refreshToken, err = utils.EncryptAESGCM(token.RefreshToken)
		if err != nil {
			return err
		}
	}

	var expiry *time.Time
	if !token.Expiry.IsZero() {
		e := token.Expiry.UTC()
		expiry = &e
	}

	row := models.UserIntegration{
		UserID:       userID,
		Provider:     provider,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenExpiry:  expiry,
		Scopes:       strings.Join(scopes, " "),
		ConnectedAt:  time.Now().UTC(),
	}

	err = s.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "provider"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"access_token", "refresh_token", "token_expiry", "scopes", "connected_at", "updated_at",
		}),
	}).Create(&row).Error
	if err != nil {
		return err
	}

	if err := s.Onboarding.SetIntegrationConnected(userID, provider); err != nil {
		logger.ErrorWithUser(userID.String(), "onboarding_flag_update_failed", err, map[string]interface{}{
			"provider": string(provider),
		})
	}
	s.Notifier.Publish(userID, ResourceIntegration)

	logger.InfoWithUser(userID.String(), "integration_connected", map[string]interface{}{
		"provider": string(provider),
	})
	return nil
}
