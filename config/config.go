package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Remote modes
const (
	RemoteNone      = "none"
	RemoteHTTP      = "http"
	RemoteFirestore = "firestore"
)

// Storage backends
const (
	StorageMemory = "memory"
	StorageFile   = "file"
	StorageRedis  = "redis"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	JWT       JWTConfig
	Storage   StorageConfig
	Redis     RedisConfig
	Remote    RemoteConfig
	Firebase  FirebaseConfig
	Session   SessionConfig
	Auth      AuthConfig
	Sync      SyncConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
	Seed      bool
}

type ServerConfig struct {
	Port        string
	Host        string
	Environment string
}

type JWTConfig struct {
	Secret string
}

type StorageConfig struct {
	Backend string
	Dir     string
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	Channel   string
}

type RemoteConfig struct {
	Mode    string
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type FirebaseConfig struct {
	ProjectID       string
	CredentialsPath string
}

type SessionConfig struct {
	AbsoluteTTL    time.Duration
	InactivityTTL  time.Duration
	ReaperInterval time.Duration
}

type AuthConfig struct {
	MaxLoginAttempts int
	LockoutDuration  time.Duration
	BcryptCost       int
}

type SyncConfig struct {
	OutboxEnabled  bool
	FlushInterval  time.Duration
	PushRate       float64
	PushBurst      int
	GaugeRefresh   time.Duration
	MaxElapsedTime time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables, after merging an optional .env file
func Load() *Config {
	// Missing .env is the normal case outside local development
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Host:        getEnv("HOST", "0.0.0.0"),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "dev-secret-key"),
		},
		Storage: StorageConfig{
			Backend: getEnv("STORAGE_BACKEND", StorageFile),
			Dir:     getEnv("STORAGE_DIR", "./data"),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", "localhost:6379"),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        parseInt(getEnv("REDIS_DB", "0"), 0),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "cityreport:"),
			Channel:   getEnv("REDIS_EVENTS_CHANNEL", ""),
		},
		Remote: RemoteConfig{
			Mode:    getEnv("REMOTE_MODE", RemoteNone),
			BaseURL: getEnv("REMOTE_BASE_URL", ""),
			APIKey:  getEnv("REMOTE_API_KEY", ""),
			Timeout: parseDuration(getEnv("REMOTE_TIMEOUT", "10s"), 10*time.Second),
		},
		Firebase: FirebaseConfig{
			ProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
			CredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", "./serviceAccountKey.json"),
		},
		Session: SessionConfig{
			AbsoluteTTL:    parseDuration(getEnv("SESSION_ABSOLUTE_TTL", "8h"), 8*time.Hour),
			InactivityTTL:  parseDuration(getEnv("SESSION_INACTIVITY_TTL", "2h"), 2*time.Hour),
			ReaperInterval: parseDuration(getEnv("SESSION_REAPER_INTERVAL", "1m"), time.Minute),
		},
		Auth: AuthConfig{
			MaxLoginAttempts: parseInt(getEnv("AUTH_MAX_LOGIN_ATTEMPTS", "3"), 3),
			LockoutDuration:  parseDuration(getEnv("AUTH_LOCKOUT_DURATION", "30m"), 30*time.Minute),
			BcryptCost:       parseInt(getEnv("BCRYPT_COST", "12"), 12),
		},
		Sync: SyncConfig{
			OutboxEnabled:  parseBool(getEnv("SYNC_OUTBOX_ENABLED", "false"), false),
			FlushInterval:  parseDuration(getEnv("SYNC_FLUSH_INTERVAL", "30s"), 30*time.Second),
			PushRate:       parseFloat(getEnv("SYNC_PUSH_RATE", "5"), 5),
			PushBurst:      parseInt(getEnv("SYNC_PUSH_BURST", "20"), 20),
			GaugeRefresh:   parseDuration(getEnv("REPORT_GAUGE_INTERVAL", "5s"), 5*time.Second),
			MaxElapsedTime: parseDuration(getEnv("SYNC_RETRY_MAX_ELAPSED", "1m"), time.Minute),
		},
		CORS: CORSConfig{
			AllowedOrigins: parseStringSlice(getEnv("ALLOWED_ORIGINS", "http://localhost:5173")),
		},
		RateLimit: RateLimitConfig{
			Requests: parseInt(getEnv("RATE_LIMIT_REQUESTS", "100"), 100),
			Window:   parseDuration(getEnv("RATE_LIMIT_WINDOW", "60"), 60*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Seed: parseBool(getEnv("SEED_ON_START", "true"), true),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(s string, defaultValue int) int {
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	return defaultValue
}

func parseFloat(s string, defaultValue float64) float64 {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultValue
}

func parseBool(s string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultValue
}

func parseDuration(s string, defaultValue time.Duration) time.Duration {
	// Handle simple formats like "30m", "8h", "60"
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	// If it's just a number, assume seconds
	if i, err := strconv.Atoi(s); err == nil {
		return time.Duration(i) * time.Second
	}
	return defaultValue
}

func parseStringSlice(s string) []string {
	result := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

// Validate checks the settings that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	var errs []error

	if c.JWT.Secret == "dev-secret-key" && c.IsProduction() {
		errs = append(errs, errors.New("JWT_SECRET must be set in production"))
	}

	switch c.Storage.Backend {
	case StorageMemory, StorageRedis:
	case StorageFile:
		if c.Storage.Dir == "" {
			errs = append(errs, errors.New("STORAGE_DIR must be set for the file backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend))
	}

	switch c.Remote.Mode {
	case RemoteNone:
	case RemoteHTTP:
		u, err := url.Parse(c.Remote.BaseURL)
		if err != nil || u.Scheme != "https" || u.Host == "" {
			errs = append(errs, fmt.Errorf("REMOTE_BASE_URL must be an https URL, got %q", c.Remote.BaseURL))
		}
		if c.Remote.APIKey == "" {
			errs = append(errs, errors.New("REMOTE_API_KEY must be set when REMOTE_MODE=http"))
		}
	case RemoteFirestore:
		if c.Firebase.ProjectID == "" {
			errs = append(errs, errors.New("FIREBASE_PROJECT_ID must be set when REMOTE_MODE=firestore"))
		}
		if _, err := os.Stat(c.Firebase.CredentialsPath); os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("firebase credentials file not found: %s", c.Firebase.CredentialsPath))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown REMOTE_MODE %q", c.Remote.Mode))
	}

	if c.Session.AbsoluteTTL <= 0 || c.Session.InactivityTTL <= 0 {
		errs = append(errs, errors.New("session TTLs must be positive"))
	}
	if c.Auth.MaxLoginAttempts < 1 {
		errs = append(errs, errors.New("AUTH_MAX_LOGIN_ATTEMPTS must be at least 1"))
	}

	return errors.Join(errs...)
}
