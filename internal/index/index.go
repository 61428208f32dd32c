package index

import (
	"github.com/gofiber/fiber/v2"

	"github.com/krfajar/telegram-whatsapp-checker-bot/pkg/router"
)

// Index answers external liveness probes with a static body.
func Index(c *fiber.Ctx) error {
	return router.ResponseSuccess(c, "WhatsApp Checker Bot is running")
}
