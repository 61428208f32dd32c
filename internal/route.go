package internal

import (
	"github.com/gofiber/fiber/v2"

	ctlIndex "github.com/krfajar/telegram-whatsapp-checker-bot/internal/index"
	"github.com/krfajar/telegram-whatsapp-checker-bot/pkg/router"
)

func Routes(app *fiber.App) {
	// Route for Index / Liveness
	// ---------------------------------------------
	app.Get("/", ctlIndex.Index)
	app.Get("/health", ctlIndex.Index)

	app.Get("/favicon.ico", router.ResponseNoContent)
}
