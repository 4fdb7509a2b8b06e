package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := defaults()
	err := cfg.applyEnv(envOf(map[string]string{
		"PORT":                   "9090",
		"DB_HOST":                "db",
		"DB_USER":                "renthive",
		"DB_NAME":                "renthive",
		"DB_PORT":                "5432",
		"JWT_SECRET":             "s3cret",
		"RECONCILE_INTERVAL":     "15m",
		"AVAILABILITY_CACHE_TTL": "30",
	}))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 15*time.Minute, cfg.ReconcileInterval)
	assert.Equal(t, 30*time.Second, cfg.AvailabilityCacheTTL)
	assert.Equal(t, "host=db user=renthive password= dbname=renthive port=5432 sslmode=disable", cfg.Database.DSN())
	assert.NoError(t, cfg.Validate())
}

func TestApplyEnvRejectsBadDuration(t *testing.T) {
	cfg := defaults()
	err := cfg.applyEnv(envOf(map[string]string{"RECONCILE_INTERVAL": "soon"}))
	assert.Error(t, err)
}

func TestFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "renthive.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "7000"
jwt_secret: from-file
database:
  url: postgres://renthive@localhost/renthive
aws:
  region: eu-west-1
  access_key_id: AKIA
  secret_access_key: secret
  bucket: listings
reconcile_interval: 10m
`), 0o600))

	cfg := defaults()
	require.NoError(t, cfg.readFile(path))
	require.NoError(t, cfg.applyEnv(envOf(map[string]string{"JWT_SECRET": "from-env"})))

	assert.Equal(t, "7000", cfg.Port)
	assert.Equal(t, "from-env", cfg.JWTSecret)
	assert.Equal(t, "postgres://renthive@localhost/renthive", cfg.Database.DSN())
	assert.Equal(t, 10*time.Minute, cfg.ReconcileInterval)
	assert.True(t, cfg.AWS.Enabled())
	assert.Equal(t, "/app/uploads", cfg.UploadDir)
}

func TestValidate(t *testing.T) {
	cfg := defaults()
	assert.Error(t, cfg.Validate())

	cfg.JWTSecret = "x"
	assert.Error(t, cfg.Validate())

	cfg.Database.URL = "postgres://localhost/renthive"
	assert.NoError(t, cfg.Validate())
}
