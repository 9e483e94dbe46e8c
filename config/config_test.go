package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("REMOTE_MODE", "")
	t.Setenv("SESSION_ABSOLUTE_TTL", "")

	cfg := Load()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, RemoteNone, cfg.Remote.Mode)
	assert.Equal(t, 8*time.Hour, cfg.Session.AbsoluteTTL)
	assert.Equal(t, 2*time.Hour, cfg.Session.InactivityTTL)
	assert.Equal(t, 3, cfg.Auth.MaxLoginAttempts)
	assert.Equal(t, 30*time.Minute, cfg.Auth.LockoutDuration)
	assert.False(t, cfg.Sync.OutboxEnabled)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SESSION_INACTIVITY_TTL", "90")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("SYNC_OUTBOX_ENABLED", "true")

	cfg := Load()

	assert.Equal(t, 90*time.Second, cfg.Session.InactivityTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.True(t, cfg.Sync.OutboxEnabled)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Load()
		cfg.Storage.Backend = StorageMemory
		cfg.Remote.Mode = RemoteNone
		cfg.Server.Environment = "development"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name: "http remote requires https",
			mutate: func(c *Config) {
				c.Remote.Mode = RemoteHTTP
				c.Remote.BaseURL = "http://api.example.com"
				c.Remote.APIKey = "key"
			},
			wantErr: "https URL",
		},
		{
			name: "http remote requires key",
			mutate: func(c *Config) {
				c.Remote.Mode = RemoteHTTP
				c.Remote.BaseURL = "https://api.example.com/functions/v1"
				c.Remote.APIKey = ""
			},
			wantErr: "REMOTE_API_KEY",
		},
		{
			name: "http remote ok",
			mutate: func(c *Config) {
				c.Remote.Mode = RemoteHTTP
				c.Remote.BaseURL = "https://api.example.com/functions/v1"
				c.Remote.APIKey = "key"
			},
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Storage.Backend = "sqlite" },
			wantErr: "STORAGE_BACKEND",
		},
		{
			name: "default secret in production",
			mutate: func(c *Config) {
				c.Server.Environment = "production"
				c.JWT.Secret = "dev-secret-key"
			},
			wantErr: "JWT_SECRET",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
