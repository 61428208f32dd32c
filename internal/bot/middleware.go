package bot

import (
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"github.com/krfajar/telegram-whatsapp-checker-bot/pkg/log"
)

// accessGate admits approved senders, queues everyone else exactly once, and
// blocks all further messages until an admin decides. /start always passes
// so new users can receive the welcome text; callback queries carry their own
// admin gate.
func (b *Bot) accessGate(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		sender := c.Sender()
		if sender == nil {
			return next(c)
		}

		b.store.RememberName(sender.ID, sender.FirstName)

		if c.Callback() != nil {
			return next(c)
		}
		if msg := c.Message(); msg != nil && strings.HasPrefix(msg.Text, "/start") {
			return next(c)
		}
		if sender.ID == b.cfg.AdminID || b.store.IsAllowed(sender.ID) {
			return next(c)
		}

		if c.Message() != nil {
			if err := c.Send("❌ You are not authorized to use this bot. Please wait for admin approval."); err != nil {
				log.Update(c).WithError(err).Warn("Failed to send block notice")
			}
			b.enqueuePending(sender)
		}
		return nil
	}
}

// enqueuePending adds the sender to the pending set and notifies the admin
// with approve/deny controls. Repeated messages from an already-pending
// sender produce no duplicate notification.
func (b *Bot) enqueuePending(sender *tele.User) {
	if !b.store.MarkPending(sender.ID, sender.FirstName) {
		return
	}

	username := sender.Username
	if username == "" {
		username = "N/A"
	}
	notice := fmt.Sprintf(
		"🆕 New User Request:\n\n👤 Name: %s\n🆔 ID: %d\n📱 Username: @%s",
		b.store.Name(sender.ID), sender.ID, username,
	)

	if _, err := apiSend(b.api, &tele.User{ID: b.cfg.AdminID}, notice, approvalKeyboard(sender.ID)); err != nil {
		log.Print(nil).WithError(err).Error("Failed to notify admin of pending user")
	}
}
