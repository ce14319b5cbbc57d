package services

import (
	"strings"
	"testing"

	"github.com/cultivatehq/backend/internal/config"
	"github.com/cultivatehq/backend/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestOAuthStateRoundTrip(t *testing.T) {
	userID := uuid.New()

	state := EncodeState(userID, "onboarding")
	gotID, gotSource, err := DecodeState(state)
	require.NoError(t, err)
	require.Equal(t, userID, gotID)
	require.Equal(t, "onboarding", gotSource)
}

func TestDecodeStateRejectsMalformedInput(t *testing.T) {
	cases := []string{
		"",
		"not base64 at all!!!",
		EncodeState(uuid.New(), "")[:8],
		"bm8tcGlwZS1oZXJl", // decodes but has no separator
	}
	for _, state := range cases {
		_, _, err := DecodeState(state)
		require.ErrorIs(t, err, ErrInvalidOAuthState, "state %q must be rejected", state)
	}
}

func TestGoogleAuthURLRequiresConfiguration(t *testing.T) {
	db := openTestDB(t)
	svc := NewOAuthService(db, &config.Config{}, nil, nil)

	_, err := svc.GoogleAuthURL(uuid.New(), "", models.IntegrationProviderGmail)
	require.ErrorIs(t, err, ErrOAuthNotConfigured)

	_, err = svc.LinkedInAuthURL(uuid.New(), "")
	require.ErrorIs(t, err, ErrOAuthNotConfigured)
}

func TestGoogleAuthURLCarriesRequestedScopes(t *testing.T) {
	db := openTestDB(t)
	cfg := &config.Config{}
	cfg.Google.ClientID = "client-id"
	cfg.Google.ClientSecret = "client-secret"
	cfg.Google.RedirectURL = "http://localhost:8080/api/google/combined-callback"
	svc := NewOAuthService(db, cfg, nil, nil)

	url, err := svc.GoogleAuthURL(uuid.New(), "onboarding",
		models.IntegrationProviderGmail, models.IntegrationProviderCalendar)
	require.NoError(t, err)
	require.Contains(t, url, "gmail.readonly")
	require.Contains(t, url, "calendar.readonly")
	require.Contains(t, url, "access_type=offline")
	require.True(t, strings.HasPrefix(url, "https://accounts.google.com/"))
}

func TestCombinedCallbackResultPartial(t *testing.T) {
	full := CombinedCallbackResult{
		Connected: []models.IntegrationProvider{
			models.IntegrationProviderGmail,
			models.IntegrationProviderCalendar,
		},
	}
	require.False(t, full.Partial())

	partial := CombinedCallbackResult{
		Connected: []models.IntegrationProvider{models.IntegrationProviderGmail},
		Failed:    []models.IntegrationProvider{models.IntegrationProviderCalendar},
	}
	require.True(t, partial.Partial())

	empty := CombinedCallbackResult{
		Failed: []models.IntegrationProvider{models.IntegrationProviderGmail},
	}
	require.False(t, empty.Partial())
}
