// AngelaMos | 2026
// config_test.go

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadClient_Defaults(t *testing.T) {
	c, err := LoadClient("")
	require.NoError(t, err)

	assert.Equal(t, "monash.edu", c.Admin.EmailDomain)
	assert.Equal(t, 2*time.Minute, c.Submission.DuplicateWindow)
	assert.Equal(t, 20, c.Submission.MessageMin)
	assert.Equal(t, 500, c.Submission.MessageMax)
	assert.Equal(t, "file", c.Store.Driver)
	assert.Equal(t, []string{"*"}, c.CORS.AllowedOrigins)
	assert.Equal(t, 10, c.RateLimit.BulkEmailPerHour)
}

func TestConfig_Environment(t *testing.T) {
	c := &Config{App: AppConfig{Environment: "development"}}
	assert.True(t, c.IsDevelopment())
	assert.False(t, c.IsProduction())

	c.App.Environment = "production"
	assert.False(t, c.IsDevelopment())
	assert.True(t, c.IsProduction())
}

func TestLoadClient_EnvOverrides(t *testing.T) {
	t.Setenv("ADMIN_EMAIL_DOMAIN", "@Example.ORG ")
	t.Setenv("SUBMIT_URL", "https://fn.example.org/submitEnquiry")
	t.Setenv("SUBMIT_DUPLICATE_WINDOW", "5m")

	c, err := LoadClient("")
	require.NoError(t, err)

	assert.Equal(t, "example.org", c.Admin.EmailDomain)
	assert.Equal(t, "https://fn.example.org/submitEnquiry", c.Submission.RemoteURL)
	assert.Equal(t, 5*time.Minute, c.Submission.DuplicateWindow)
}

func TestLoadClient_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte("store:\n  driver: redis\nredis:\n  url: redis://localhost:6379/0\n")
	require.NoError(t, os.WriteFile(path, body, 0o600))

	c, err := LoadClient(path)
	require.NoError(t, err)
	assert.Equal(t, "redis", c.Store.Driver)
}

func TestLoadClient_RejectsBadBounds(t *testing.T) {
	t.Setenv("SUBMIT_MESSAGE_MIN", "600")

	_, err := LoadClient("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "message bounds")
}

func TestValidate_ServerRequiresDatabase(t *testing.T) {
	c := &Config{}
	err := validate(c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestEnvKeyReplacer(t *testing.T) {
	assert.Equal(t, "admin.email_domain", envKeyReplacer("ADMIN_EMAIL_DOMAIN"))
	assert.Equal(t, "", envKeyReplacer("UNRELATED_VAR"))
}

func TestValidate_BulkEmailRateMustBePositive(t *testing.T) {
	c := &Config{
		Database: DatabaseConfig{URL: "postgres://localhost/nfp"},
		Redis:    RedisConfig{URL: "redis://localhost:6379"},
		JWT:      JWTConfig{PrivateKeyPath: "priv.pem", PublicKeyPath: "pub.pem"},
		Server:   ServerConfig{ReadTimeout: time.Second, WriteTimeout: time.Second},
	}
	err := validate(c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bulk_email_per_hour")
}
