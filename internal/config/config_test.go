package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "PropertySales", cfg.MongoDatabase)
	assert.Equal(t, int64(10<<20), cfg.UploadMaxFileSize)
	assert.Equal(t, 10, cfg.UploadMaxImages)
	assert.Equal(t, 60*time.Second, cfg.RequestTimeout)
	assert.Contains(t, cfg.CORSOrigins, "https://www.siddiqproperties.com")
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("UPLOAD_MAX_IMAGES", "4")
	t.Setenv("FRONTEND_URL", "https://example.test/")
	t.Setenv("CORS_ORIGINS", "https://a.test, https://b.test,")

	cfg := Load()

	assert.Equal(t, "9000", cfg.ServerPort)
	assert.Equal(t, 4, cfg.UploadMaxImages)
	assert.Equal(t, "https://example.test", cfg.FrontendURL)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.CORSOrigins)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "development with default secret", mutate: func(c *Config) {}, wantErr: false},
		{
			name: "production with default secret",
			mutate: func(c *Config) {
				c.Env = "production"
			},
			wantErr: true,
		},
		{
			name: "production with real secret",
			mutate: func(c *Config) {
				c.Env = "production"
				c.JWTSecret = "s3cr3t-value"
			},
			wantErr: false,
		},
		{
			name: "zero image cap",
			mutate: func(c *Config) {
				c.UploadMaxImages = 0
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}
