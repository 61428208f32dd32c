package log

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	tele "gopkg.in/telebot.v3"
)

var logger = logrus.New()

func init() {
	logger.Formatter = &logrus.TextFormatter{
		TimestampFormat: time.RFC3339,
		FullTimestamp:   true,
		DisableColors:   false,
		ForceColors:     true,
	}
}

// Print returns a log entry enriched with HTTP request fields when a fiber
// context is available. Pass nil outside of a request scope.
func Print(c *fiber.Ctx) *logrus.Entry {
	if c == nil {
		return logger.WithFields(logrus.Fields{})
	}

	remoteIP := c.IP()
	if v := c.Locals("remote_ip"); v != nil {
		if ip, ok := v.(string); ok && ip != "" {
			remoteIP = ip
		}
	}
	return logger.WithFields(logrus.Fields{
		"remote_ip": remoteIP,
		"method":    c.Method(),
		"uri":       c.OriginalURL(),
	})
}

// Update returns a log entry enriched with Telegram update fields.
// Pass nil outside of a handler scope.
func Update(c tele.Context) *logrus.Entry {
	if c == nil {
		return logger.WithFields(logrus.Fields{})
	}

	fields := logrus.Fields{}
	if sender := c.Sender(); sender != nil {
		fields["sender_id"] = sender.ID
		if sender.Username != "" {
			fields["username"] = sender.Username
		}
	}
	if chat := c.Chat(); chat != nil {
		fields["chat_id"] = chat.ID
	}
	return logger.WithFields(fields)
}
