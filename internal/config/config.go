package config

import (
	"os"
	"strconv"
)

type Config struct {
	DB         DBConfig
	MinIO      MinIOConfig
	JWT        JWTConfig
	Server     ServerConfig
	Google     GoogleOAuthConfig
	LinkedIn   LinkedInOAuthConfig
	Stripe     StripeConfig
	Onboarding OnboardingConfig
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type JWTConfig struct {
	Secret          string
	ExpirationHours int
}

type ServerConfig struct {
	Port        string
	FrontendURL string
}

type GoogleOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

type LinkedInOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	PortalReturn  string
	CheckoutOK    string
	CheckoutBack  string
}

type OnboardingConfig struct {
	TotalScreens int
}

func Load() *Config {
	return &Config{
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "cultivatehq"),
			Password: getEnv("DB_PASSWORD", "cultivatehq_secret"),
			Name:     getEnv("DB_NAME", "cultivatehq"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("MINIO_ACCESS_KEY", "cultivatehq"),
			SecretKey: getEnv("MINIO_SECRET_KEY", "cultivatehq_secret"),
			Bucket:    getEnv("MINIO_BUCKET", "cultivatehq-media"),
			UseSSL:    getEnvAsBool("MINIO_USE_SSL", false),
		},
		JWT: JWTConfig{
			Secret:          getEnv("JWT_SECRET", "change-me-in-production"),
			ExpirationHours: getEnvAsInt("JWT_EXPIRATION_HOURS", 24),
		},
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),
		},
		Google: GoogleOAuthConfig{
			ClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			ClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			RedirectURL:  getEnv("GOOGLE_REDIRECT_URL", "http://localhost:8080/api/google/combined-callback"),
		},
		LinkedIn: LinkedInOAuthConfig{
			ClientID:     getEnv("LINKEDIN_CLIENT_ID", ""),
			ClientSecret: getEnv("LINKEDIN_CLIENT_SECRET", ""),
			RedirectURL:  getEnv("LINKEDIN_REDIRECT_URL", "http://localhost:8080/api/linkedin/callback"),
		},
		Stripe: StripeConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			PortalReturn:  getEnv("STRIPE_PORTAL_RETURN_URL", getEnv("FRONTEND_URL", "http://localhost:3000")+"/settings/billing"),
			CheckoutOK:    getEnv("STRIPE_CHECKOUT_SUCCESS_URL", getEnv("FRONTEND_URL", "http://localhost:3000")+"/settings/billing?checkout=success"),
			CheckoutBack:  getEnv("STRIPE_CHECKOUT_CANCEL_URL", getEnv("FRONTEND_URL", "http://localhost:3000")+"/pricing"),
		},
		Onboarding: OnboardingConfig{
			TotalScreens: getEnvAsInt("ONBOARDING_TOTAL_SCREENS", 10),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}
