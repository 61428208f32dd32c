package internal

import (
	"context"
	"errors"

	"github.com/krfajar/telegram-whatsapp-checker-bot/pkg/log"
	pkgWhatsApp "github.com/krfajar/telegram-whatsapp-checker-bot/pkg/whatsapp"
)

// Startup reconnects the WhatsApp session when pairing material survives
// from a previous run, so the bot comes back without a fresh QR scan.
func Startup(session *pkgWhatsApp.Session) {
	log.Print(nil).Info("Running Startup Tasks")

	ctx := context.Background()

	if !session.HasStoredSession(ctx) {
		log.Print(nil).Info("No stored WhatsApp session found. Use /connect for the first pairing")
		return
	}

	log.Print(nil).Info("Stored WhatsApp session found, auto connecting")
	go func() {
		err := session.Connect(ctx, nil)
		if err != nil && !errors.Is(err, pkgWhatsApp.ErrAlreadyConnected) && !errors.Is(err, pkgWhatsApp.ErrConnectPending) {
			log.Print(nil).WithError(err).Warn("Startup WhatsApp reconnect failed, watchdog will retry")
		}
	}()
}
