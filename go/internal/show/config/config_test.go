package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeConfig(t, `
port: "9000"
room_id: r1
viewer:
  user_id: u1
transport: nats
cache:
  type: redis
  redis_addr: cache:6379
timings:
  leave_debounce: 250ms
  winner_alert: 7s
  notification_limit: 5
`)
	t.Setenv("LIVESHOW_CONFIG", path)
	t.Setenv("ROOM_ID", "r2")
	t.Setenv("RALLY_DELAY", "4s")
	t.Setenv("REDIS_DB", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "r2", cfg.RoomID)
	assert.Equal(t, "u1", cfg.Viewer.UserID)
	assert.Equal(t, "nats", cfg.Transport)
	assert.Equal(t, "redis", cfg.Cache.Type)
	assert.Equal(t, "cache:6379", cfg.Cache.RedisAddr)
	assert.Equal(t, 3, cfg.Cache.RedisDB)
	assert.Equal(t, 250*time.Millisecond, cfg.Timings.LeaveDebounce)
	assert.Equal(t, 7*time.Second, cfg.Timings.WinnerAlert)
	assert.Equal(t, 4*time.Second, cfg.Timings.RallyDelay)
	assert.Equal(t, 5, cfg.Timings.NotificationLimit)

	// Untouched values keep their defaults.
	assert.Equal(t, 500*time.Millisecond, cfg.Timings.BidFallback)
	assert.Equal(t, 10*time.Second, cfg.Timings.GiveawayWinner)
	assert.Equal(t, "show", cfg.NATS.SubjectPrefix)
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("explicit file missing", func(t *testing.T) {
		t.Setenv("LIVESHOW_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("bad yaml", func(t *testing.T) {
		t.Setenv("LIVESHOW_CONFIG", writeConfig(t, "port: [1"))
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("unknown transport", func(t *testing.T) {
		t.Setenv("LIVESHOW_CONFIG", writeConfig(t, "transport: carrier-pigeon"))
		_, err := Load()
		assert.ErrorContains(t, err, "unknown transport")
	})

	t.Run("unknown cache", func(t *testing.T) {
		t.Setenv("LIVESHOW_CONFIG", writeConfig(t, "cache:\n  type: disk"))
		_, err := Load()
		assert.ErrorContains(t, err, "unknown cache type")
	})
}

func TestGetEnvAsDuration_IgnoresInvalid(t *testing.T) {
	t.Setenv("LIVESHOW_TEST_DURATION", "soon")
	assert.Equal(t, time.Second, getEnvAsDuration("LIVESHOW_TEST_DURATION", time.Second))

	t.Setenv("LIVESHOW_TEST_DURATION", "1m")
	assert.Equal(t, time.Minute, getEnvAsDuration("LIVESHOW_TEST_DURATION", time.Second))
}
