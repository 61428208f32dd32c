package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_ADMIN_ID", "1000")

	cfg := Load()

	assert.Equal(t, "123:abc", cfg.TelegramToken)
	assert.Equal(t, int64(1000), cfg.AdminID)
	assert.Equal(t, "users.json", cfg.UserDataFile)
	assert.Equal(t, "sqlite3", cfg.DatastoreDriver)
	assert.Equal(t, 90*time.Second, cfg.QRTimeout)
	assert.Equal(t, 5, cfg.ReconnectRetries)
	assert.Equal(t, 100, cfg.GroupSize)
	assert.Equal(t, time.Second, cfg.GroupDelay)
	assert.Equal(t, 500, cfg.MaxCandidates)
	assert.Equal(t, 30*time.Second, cfg.ProbeTimeout)
	assert.Equal(t, "3000", cfg.ServerPort)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_ADMIN_ID", "1000")
	t.Setenv("CHECK_GROUP_SIZE", "25")
	t.Setenv("CHECK_GROUP_DELAY", "2s")
	t.Setenv("CHECK_MAX_NUMBERS", "100")
	t.Setenv("WHATSAPP_QR_TIMEOUT", "60s")
	t.Setenv("WHATSAPP_DATASTORE_TYPE", "postgres")

	cfg := Load()

	assert.Equal(t, 25, cfg.GroupSize)
	assert.Equal(t, 2*time.Second, cfg.GroupDelay)
	assert.Equal(t, 100, cfg.MaxCandidates)
	assert.Equal(t, time.Minute, cfg.QRTimeout)
	assert.Equal(t, "postgres", cfg.DatastoreDriver)
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("TELEGRAM_ADMIN_ID", "1000")

	assert.Panics(t, func() { Load() })
}
