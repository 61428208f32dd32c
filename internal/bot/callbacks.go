package bot

import (
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"github.com/krfajar/telegram-whatsapp-checker-bot/pkg/log"
)

// adminCallback rejects callback presses from anyone but the admin before the
// wrapped handler runs. Non-admin presses mutate nothing.
func (b *Bot) adminCallback(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if sender := c.Sender(); sender == nil || sender.ID != b.cfg.AdminID {
			return c.Respond(&tele.CallbackResponse{Text: "❌ Only admin can use this!"})
		}
		return next(c)
	}
}

func callbackUserID(c tele.Context) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(c.Data()), 10, 64)
}

func (b *Bot) handleApprove(c tele.Context) error {
	id, err := callbackUserID(c)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Invalid user id"})
	}

	b.store.Approve(id)
	log.Update(c).WithField("user_id", id).Info("User approved")

	if err := c.Respond(&tele.CallbackResponse{Text: "✅ User allowed!"}); err != nil {
		return err
	}
	if err := c.Edit(fmt.Sprintf("✅ User %s has been allowed to use the bot.", b.store.Name(id))); err != nil {
		log.Update(c).WithError(err).Warn("Failed to edit approval message")
	}

	b.notifyUser(id, "🎉 Your access has been approved by admin! You can now use the bot.\n\nSend /connect to link WhatsApp and then send numbers to check.")
	return nil
}

func (b *Bot) handleDeny(c tele.Context) error {
	id, err := callbackUserID(c)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Invalid user id"})
	}

	b.store.Deny(id)
	log.Update(c).WithField("user_id", id).Info("User denied")

	if err := c.Respond(&tele.CallbackResponse{Text: "❌ User denied!"}); err != nil {
		return err
	}
	if err := c.Edit(fmt.Sprintf("❌ User %s has been denied access.", b.store.Name(id))); err != nil {
		log.Update(c).WithError(err).Warn("Failed to edit denial message")
	}

	b.notifyUser(id, "❌ Your access request has been denied by admin.")
	return nil
}

func (b *Bot) handleToggle(c tele.Context) error {
	id, err := callbackUserID(c)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Invalid user id"})
	}

	name := b.store.Name(id)
	if b.store.Toggle(id) {
		log.Update(c).WithField("user_id", id).Info("User access granted")
		if err := c.Respond(&tele.CallbackResponse{Text: "✅ User access granted!"}); err != nil {
			return err
		}
		if err := c.Edit(fmt.Sprintf("✅ %s's access has been enabled.", name)); err != nil {
			log.Update(c).WithError(err).Warn("Failed to edit toggle message")
		}
		b.notifyUser(id, "🎉 Your access to the bot has been enabled by admin.")
		return nil
	}

	log.Update(c).WithField("user_id", id).Info("User access revoked")
	if err := c.Respond(&tele.CallbackResponse{Text: "❌ User access removed!"}); err != nil {
		return err
	}
	if err := c.Edit(fmt.Sprintf("❌ %s's access has been disabled.", name)); err != nil {
		log.Update(c).WithError(err).Warn("Failed to edit toggle message")
	}
	b.notifyUser(id, "❌ Your access to the bot has been disabled by admin.")
	return nil
}
