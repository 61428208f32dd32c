package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	cron "github.com/robfig/cron/v3"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/krfajar/telegram-whatsapp-checker-bot/internal"
	"github.com/krfajar/telegram-whatsapp-checker-bot/internal/access"
	"github.com/krfajar/telegram-whatsapp-checker-bot/internal/bot"
	"github.com/krfajar/telegram-whatsapp-checker-bot/internal/config"
	"github.com/krfajar/telegram-whatsapp-checker-bot/pkg/log"
	"github.com/krfajar/telegram-whatsapp-checker-bot/pkg/router"
	"github.com/krfajar/telegram-whatsapp-checker-bot/pkg/whatsapp"
)

func main() {
	cfg := config.Load()

	// Initialize Cron
	c := cron.New(cron.WithChain(
		cron.Recover(cron.DiscardLogger),
	), cron.WithSeconds())

	// Initialize Fiber for the liveness endpoint
	app := fiber.New(fiber.Config{
		ErrorHandler: router.HttpErrorHandler,
	})

	app.Use(router.HttpRequestID())
	app.Use(router.RecoveryMiddleware())
	app.Use(router.HttpRealIP())
	app.Use(cors.New(cors.Config{
		AllowOrigins: router.CORSOrigin,
	}))
	app.Use(compress.New(compress.Config{
		Level: compress.Level(router.GZipLevel),
	}))

	internal.Routes(app)

	// Durable access state
	store := access.Open(cfg.UserDataFile, cfg.AdminID)

	// WhatsApp session
	session, err := whatsapp.NewSession(context.Background(), whatsapp.Config{
		DatastoreDriver:      cfg.DatastoreDriver,
		DatastoreDSN:         cfg.DatastoreDSN,
		QRTimeout:            cfg.QRTimeout,
		ReconnectRetries:     cfg.ReconnectRetries,
		ReconnectBackoffBase: cfg.ReconnectBackoffBase,
		ReconnectBackoffMax:  cfg.ReconnectBackoffMax,
	})
	if err != nil {
		log.Print(nil).Fatal(err.Error())
	}

	// Telegram bot
	b, err := bot.New(cfg, store, session)
	if err != nil {
		log.Print(nil).Fatal(err.Error())
	}

	// Running Startup Tasks
	internal.Startup(session)

	// Running Routines Tasks
	internal.Routines(c, session, store)

	// Start Bot
	go b.Start()

	// Start Server
	go func() {
		if err := app.Listen(cfg.ServerAddress + ":" + cfg.ServerPort); err != nil {
			log.Print(nil).Fatal(err.Error())
		}
	}()

	// Watch for Shutdown Signal
	sigShutdown := make(chan os.Signal, 1)
	signal.Notify(sigShutdown, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-sigShutdown

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	// Try To Shutdown Bot, Server, Cron, and WhatsApp Session
	b.Stop()

	if err := app.ShutdownWithContext(ctxShutdown); err != nil {
		log.Print(nil).Error(err.Error())
	}

	c.Stop()
	session.Disconnect()
}
