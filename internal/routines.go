package internal

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/krfajar/telegram-whatsapp-checker-bot/internal/access"
	"github.com/krfajar/telegram-whatsapp-checker-bot/pkg/env"
	"github.com/krfajar/telegram-whatsapp-checker-bot/pkg/log"
	pkgWhatsApp "github.com/krfajar/telegram-whatsapp-checker-bot/pkg/whatsapp"
)

// Routines schedules the background tasks: a reconnect watchdog that re-arms
// the WhatsApp session whenever it drops with stored pairing material, and a
// periodic status report.
func Routines(c *cron.Cron, session *pkgWhatsApp.Session, store *access.Store) {
	log.Print(nil).Info("Running Routine Tasks")

	startedAt := time.Now()

	if env.GetEnvBoolOrDefault("WHATSAPP_ENABLE_RECONNECT_WATCHDOG", true) {
		spec := env.GetEnvStringOrDefault("WHATSAPP_RECONNECT_WATCHDOG_SPEC", "*/30 * * * * *")
		_, err := c.AddFunc(spec, func() {
			ctx := context.Background()
			if session.IsConnected() || session.IsConnecting() || !session.HasStoredSession(ctx) {
				return
			}
			log.Print(nil).Info("Watchdog: WhatsApp session down, reconnecting")
			err := session.Connect(ctx, nil)
			if err != nil && !errors.Is(err, pkgWhatsApp.ErrAlreadyConnected) && !errors.Is(err, pkgWhatsApp.ErrConnectPending) {
				log.Print(nil).WithError(err).Warn("Watchdog reconnect failed")
			}
		})
		if err != nil {
			log.Print(nil).WithField("error", err.Error()).Error("Failed to add reconnect watchdog cron job")
		}
	} else {
		log.Print(nil).Info("Reconnect watchdog disabled; relying on session event handlers")
	}

	_, err := c.AddFunc("0 */5 * * * *", func() {
		allowed, pending := store.Counts()
		log.Print(nil).
			WithField("whatsapp_connected", session.IsConnected()).
			WithField("allowed_users", allowed).
			WithField("pending_users", pending).
			WithField("uptime_minutes", int(time.Since(startedAt).Minutes())).
			Info("Status report")
	})
	if err != nil {
		log.Print(nil).WithField("error", err.Error()).Error("Failed to add status report cron job")
	}

	c.Start()
}
