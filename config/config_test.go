package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "gym.db", cfg.DBPath)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:8080"}, cfg.CORSOrigins)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvironmentAndDotenv(t *testing.T) {
	dotenv := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(dotenv, []byte("DB_PATH=from-dotenv.db\nSEED_SCENARIO=small-gym\n"), 0o600))
	t.Setenv("PORT", "9090")
	t.Setenv("TIMEZONE", "Asia/Bangkok")
	t.Setenv("CORS_ORIGINS", "https://admin.example.com")
	t.Setenv("SHUTDOWN_TIMEOUT", "5s")
	t.Cleanup(func() {
		os.Unsetenv("DB_PATH")
		os.Unsetenv("SEED_SCENARIO")
	})

	cfg, err := Load(dotenv)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "from-dotenv.db", cfg.DBPath)
	assert.Equal(t, "small-gym", cfg.SeedScenario)
	assert.Equal(t, []string{"https://admin.example.com"}, cfg.CORSOrigins)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Bangkok", loc.String())
}

func TestRegisterFlags_Override(t *testing.T) {
	cfg := &Config{Port: 8080, DBPath: "gym.db", Timezone: "Local", ShutdownTimeout: time.Second}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg.RegisterFlags(fs)

	require.NoError(t, fs.Parse([]string{"-port", "3000", "-db", ":memory:", "-seed", "exhausted-balances"}))

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, ":memory:", cfg.DBPath)
	assert.Equal(t, "exhausted-balances", cfg.SeedScenario)
}

func TestValidate(t *testing.T) {
	cfg := &Config{Port: 0, DBPath: " ", Timezone: "Mars/Olympus", ShutdownTimeout: 0}

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"invalid port 0", "DB_PATH is required", `unknown timezone "Mars/Olympus"`, "SHUTDOWN_TIMEOUT"} {
		assert.Contains(t, err.Error(), want)
	}
}
