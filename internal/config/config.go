package config

import (
	"fmt"
	"strings"
	"time"

	sharedauth "github.com/focusnest/wellness-service/shared-libs/auth"
	"github.com/focusnest/wellness-service/shared-libs/envconfig"
)

// Config encapsulates the runtime configuration for the wellness service.
type Config struct {
	Port         string `validate:"required,numeric"`
	GCPProjectID string
	DataStore    DataStore
	Auth         AuthConfig
	Firestore    FirestoreConfig
	Redis        RedisConfig
	Push         PushConfig
	Icons        IconConfig
	Metrics      MetricsConfig
	RateLimit    RateLimitConfig
	// StreakTimezone is the IANA zone calendar days are counted in.
	StreakTimezone string
	SeedDefaults   bool
}

// DataStore enumerates supported persistence backends.
type DataStore string

const (
	// DataStoreMemory keeps everything in-memory (useful for local development/testing).
	DataStoreMemory DataStore = "memory"
	// DataStoreFirestore stores documents in Google Cloud Firestore.
	DataStoreFirestore DataStore = "firestore"
)

// AuthConfig stores authentication middleware setup.
type AuthConfig struct {
	Mode     sharedauth.Mode
	JWKSURL  string
	Audience string
	Issuer   string
	AdminIDs []string
}

// FirestoreConfig tailors Firestore client behavior.
type FirestoreConfig struct {
	DatabaseID   string
	EmulatorHost string
}

// RedisConfig enables realtime fan-out and Redis backed cache telemetry when Addr is set.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int `validate:"gte=0,lte=15"`
}

// PushConfig controls FCM delivery.
type PushConfig struct {
	Enabled         bool
	CredentialsFile string
	Workers         int `validate:"gte=1,lte=100"`
	QueueSize       int `validate:"gte=1"`
}

// IconConfig points at the bucket achievement icons live in.
type IconConfig struct {
	Bucket       string
	SignedURLTTL time.Duration `validate:"gt=0"`
}

// MetricsConfig holds the /metrics basic auth credentials.
type MetricsConfig struct {
	User string
	Pass string
}

// RateLimitConfig sets the per-caller token bucket.
type RateLimitConfig struct {
	RPS   float64 `validate:"gt=0"`
	Burst int     `validate:"gte=1"`
}

// Load reads environment variables into Config with validation.
func Load() (Config, error) {
	cfg := Config{
		Port:         envconfig.Get("PORT", "8080"),
		GCPProjectID: envconfig.Get("GCP_PROJECT_ID", ""),
		DataStore:    DataStore(strings.ToLower(envconfig.Get("DATASTORE", string(DataStoreMemory)))),
		Auth: AuthConfig{
			Mode:     sharedauth.Mode(strings.ToLower(envconfig.Get("AUTH_MODE", string(sharedauth.ModeNoop)))),
			JWKSURL:  envconfig.Get("CLERK_JWKS_URL", ""),
			Audience: envconfig.Get("CLERK_AUDIENCE", ""),
			Issuer:   envconfig.Get("CLERK_ISSUER", ""),
			AdminIDs: envconfig.List("ADMIN_USER_IDS"),
		},
		Firestore: FirestoreConfig{
			DatabaseID:   envconfig.Get("FIRESTORE_DATABASE", ""),
			EmulatorHost: envconfig.Get("FIRESTORE_EMULATOR_HOST", ""),
		},
		Redis: RedisConfig{
			Addr:     envconfig.Get("REDIS_ADDR", ""),
			Password: envconfig.Get("REDIS_PASSWORD", ""),
			DB:       envconfig.Int("REDIS_DB", 0),
		},
		Push: PushConfig{
			Enabled:         envconfig.Bool("PUSH_ENABLED", false),
			CredentialsFile: envconfig.Get("FCM_CREDENTIALS_FILE", ""),
			Workers:         envconfig.Int("PUSH_WORKERS", 5),
			QueueSize:       envconfig.Int("PUSH_QUEUE_SIZE", 100),
		},
		Icons: IconConfig{
			Bucket:       envconfig.Get("ICON_BUCKET", ""),
			SignedURLTTL: time.Duration(envconfig.Int("ICON_URL_TTL_MINUTES", 24*60)) * time.Minute,
		},
		Metrics: MetricsConfig{
			User: envconfig.Get("METRICS_USER", ""),
			Pass: envconfig.Get("METRICS_PASS", ""),
		},
		RateLimit: RateLimitConfig{
			RPS:   envconfig.Float("RATE_LIMIT_RPS", 10),
			Burst: envconfig.Int("RATE_LIMIT_BURST", 20),
		},
		StreakTimezone: envconfig.Get("STREAK_TIMEZONE", "UTC"),
		SeedDefaults:   envconfig.Bool("SEED_DEFAULT_ACHIEVEMENTS", true),
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// StreakLocation resolves StreakTimezone.
func (c Config) StreakLocation() (*time.Location, error) {
	return time.LoadLocation(c.StreakTimezone)
}

func validate(cfg Config) error {
	if err := envconfig.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	switch cfg.DataStore {
	case DataStoreMemory:
		// no-op
	case DataStoreFirestore:
		if cfg.GCPProjectID == "" {
			return fmt.Errorf("gcp project id required when datastore=firestore")
		}
	default:
		return fmt.Errorf("unsupported datastore: %s", cfg.DataStore)
	}

	switch cfg.Auth.Mode {
	case sharedauth.ModeClerk:
		if cfg.Auth.JWKSURL == "" {
			return fmt.Errorf("CLERK_JWKS_URL is required when AUTH_MODE=clerk")
		}
	case sharedauth.ModeNoop:
		// no-op
	default:
		return fmt.Errorf("unsupported auth mode: %s", cfg.Auth.Mode)
	}

	if cfg.Push.Enabled && cfg.GCPProjectID == "" {
		return fmt.Errorf("GCP_PROJECT_ID is required when PUSH_ENABLED=true")
	}

	if _, err := cfg.StreakLocation(); err != nil {
		return fmt.Errorf("invalid STREAK_TIMEZONE %q: %w", cfg.StreakTimezone, err)
	}

	return nil
}
