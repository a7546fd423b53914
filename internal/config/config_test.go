package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFileWithDefaults(t *testing.T) {
	path := writeConfig(t, `
environment: production
server:
  port: 9090
jwt:
  secret: file-secret
security:
  encryption_key: `+testKey+`
clinic:
  name: Studio Rossi
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "file-secret", cfg.JWT.Secret)
	assert.Equal(t, "Studio Rossi", cfg.Clinic.Name)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 5*time.Second, cfg.Outbox.PollInterval)
	assert.Equal(t, "physio.events", cfg.Redis.Channel)
	assert.Equal(t, 24*time.Hour, cfg.JWT.ToAuthConfig().TTL)
}

func TestLoadSecretsOverrideFile(t *testing.T) {
	path := writeConfig(t, `
jwt:
  secret: file-secret
security:
  encryption_key: `+testKey+`
`)
	t.Setenv("PHYSIO_JWT_SECRET", "env-secret")
	t.Setenv("PHYSIO_DB_PASSWORD", "db-pass")
	t.Setenv("PHYSIO_SERVER_PORT", "7070")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-secret", cfg.JWT.Secret)
	assert.Equal(t, "db-pass", cfg.Database.Password)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Contains(t, cfg.Database.DSN(), "password=db-pass")
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 8080\n")

	_, err := Load(path)
	assert.ErrorContains(t, err, "jwt secret is required")
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConverters(t *testing.T) {
	path := writeConfig(t, `
environment: production
jwt:
  secret: s
security:
  encryption_key: `+testKey+`
smtp:
  host: smtp.clinic.local
  from: referti@clinic.local
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	wc := cfg.Outbox.ToWorkerConfig(cfg.Redis.Channel)
	assert.Equal(t, "physio.events", wc.Channel)
	assert.Equal(t, cfg.Outbox.BatchSize, wc.BatchSize)

	rc := cfg.ToRouterConfig()
	assert.False(t, rc.Debug)
	assert.Equal(t, cfg.Server.MaxBodyBytes, rc.MaxBodyBytes)

	ec := cfg.SMTP.ToEmailConfig()
	assert.Equal(t, "smtp.clinic.local", ec.Host)
	assert.Equal(t, "referti@clinic.local", ec.From)

	assert.Equal(t, cfg.Database.DSN(), cfg.Database.ToPostgresConfig().DSN)
}
