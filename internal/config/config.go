package config

import (
	"time"

	"github.com/krfajar/telegram-whatsapp-checker-bot/pkg/env"
)

// Config collects every tunable of the bot so handlers receive explicit
// values instead of reading process-wide state.
type Config struct {
	// Telegram
	TelegramToken string
	AdminID       int64

	// Durable user file
	UserDataFile string

	// WhatsApp session datastore
	DatastoreDriver string
	DatastoreDSN    string

	// QR pairing
	QRTimeout time.Duration

	// Reconnect supervisor
	ReconnectRetries     int
	ReconnectBackoffBase time.Duration
	ReconnectBackoffMax  time.Duration

	// Batch checking
	GroupSize     int
	GroupDelay    time.Duration
	MaxCandidates int
	ProbeTimeout  time.Duration

	// Health endpoint
	ServerAddress string
	ServerPort    string
}

func Load() Config {
	return Config{
		TelegramToken: env.MustGetEnvString("TELEGRAM_BOT_TOKEN"),
		AdminID:       env.MustGetEnvInt64("TELEGRAM_ADMIN_ID"),

		UserDataFile: env.GetEnvStringOrDefault("USER_DATA_FILE", "users.json"),

		DatastoreDriver: env.GetEnvStringOrDefault("WHATSAPP_DATASTORE_TYPE", "sqlite3"),
		DatastoreDSN:    env.GetEnvStringOrDefault("WHATSAPP_DATASTORE_URI", "file:whatsapp.db?_foreign_keys=on"),

		QRTimeout: env.GetEnvDurationOrDefault("WHATSAPP_QR_TIMEOUT", 90*time.Second),

		ReconnectRetries:     env.GetEnvIntOrDefault("WHATSAPP_RECONNECT_RETRIES", 5),
		ReconnectBackoffBase: env.GetEnvDurationOrDefault("WHATSAPP_RECONNECT_BACKOFF_BASE", 2*time.Second),
		ReconnectBackoffMax:  env.GetEnvDurationOrDefault("WHATSAPP_RECONNECT_BACKOFF_MAX", 30*time.Second),

		GroupSize:     env.GetEnvIntOrDefault("CHECK_GROUP_SIZE", 100),
		GroupDelay:    env.GetEnvDurationOrDefault("CHECK_GROUP_DELAY", time.Second),
		MaxCandidates: env.GetEnvIntOrDefault("CHECK_MAX_NUMBERS", 500),
		ProbeTimeout:  env.GetEnvDurationOrDefault("CHECK_PROBE_TIMEOUT", 30*time.Second),

		ServerAddress: env.GetEnvStringOrDefault("SERVER_ADDRESS", "0.0.0.0"),
		ServerPort:    env.GetEnvStringOrDefault("SERVER_PORT", "3000"),
	}
}
