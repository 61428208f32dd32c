package bot

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"

	tele "gopkg.in/telebot.v3"

	"github.com/krfajar/telegram-whatsapp-checker-bot/internal/checker"
	"github.com/krfajar/telegram-whatsapp-checker-bot/pkg/log"
	"github.com/krfajar/telegram-whatsapp-checker-bot/pkg/whatsapp"
)

func (b *Bot) handleStart(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	name := b.store.Name(sender.ID)

	if sender.ID == b.cfg.AdminID {
		return c.Send(fmt.Sprintf(
			"👋 Welcome Admin %s!\n\n"+
				"📋 Available Commands:\n"+
				"/connect - Link WhatsApp\n"+
				"/users - Manage users\n"+
				"/pending - Show pending requests\n"+
				"/stats - Show bot statistics\n"+
				"/status - Check bot status\n\n"+
				"🔧 Simply send numbers to check after connecting WhatsApp.",
			name,
		))
	}

	if b.store.IsAllowed(sender.ID) {
		return c.Send(fmt.Sprintf(
			"👋 Welcome %s!\n\n"+
				"📝 How to use:\n"+
				"1. Send /connect to link WhatsApp (first time only)\n"+
				"2. After connection, send numbers to check\n"+
				"3. You can send multiple numbers at once\n\n"+
				"📞 Supported formats:\n"+
				"7828124894\n"+
				"+18257976152\n"+
				"+1 (902) 912-2670\n"+
				"8257862503, 8733638775",
			name,
		))
	}

	err := c.Send(fmt.Sprintf(
		"👋 Welcome %s!\n\n"+
			"📨 Your access request has been sent to admin.\n"+
			"Please wait for approval. You will be notified when approved.\n\n"+
			"⏳ Status: Waiting for admin approval...",
		name,
	))
	b.enqueuePending(sender)
	return err
}

func (b *Bot) handleConnect(c tele.Context) error {
	if b.session.IsConnected() {
		return c.Send("✅ WhatsApp is already connected! You can send numbers to check now.")
	}
	if b.session.IsConnecting() {
		return c.Send("🔄 A WhatsApp connection attempt is already in progress. Please wait.")
	}

	if err := c.Send("🔄 Connecting to WhatsApp... Please wait."); err != nil {
		return err
	}

	err := b.session.Connect(context.Background(), &chatNotifier{api: b.api, chat: c.Chat()})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, whatsapp.ErrAlreadyConnected):
		return c.Send("✅ WhatsApp is already connected! You can send numbers to check now.")
	case errors.Is(err, whatsapp.ErrConnectPending):
		return c.Send("🔄 A WhatsApp connection attempt is already in progress. Please wait.")
	case errors.Is(err, whatsapp.ErrQRExpired):
		// The notifier already told the chat.
		return nil
	default:
		log.Update(c).WithError(err).Error("WhatsApp connection failed")
		return c.Send("❌ Failed to connect WhatsApp. Please try /connect again.")
	}
}

func (b *Bot) handleStatus(c tele.Context) error {
	connected := "❌ Disconnected"
	if b.session.IsConnected() {
		connected = "✅ Connected"
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	allowed, pending := b.store.Counts()
	return c.Send(fmt.Sprintf(
		"🤖 Bot Status:\n\n"+
			"📱 WhatsApp: %s\n"+
			"⏰ Uptime: %d minutes\n"+
			"💾 Memory: %d MB\n"+
			"👥 Allowed Users: %d\n"+
			"⏳ Pending Requests: %d\n"+
			"🆔 Your ID: %d",
		connected,
		int(b.uptime().Minutes()),
		mem.Sys/1024/1024,
		allowed,
		pending,
		c.Sender().ID,
	))
}

// handleText treats any non-command text as a number-check request.
func (b *Bot) handleText(c tele.Context) error {
	text := strings.TrimSpace(c.Text())
	if text == "" || strings.HasPrefix(text, "/") {
		return nil
	}

	numbers := checker.Extract(text)
	if len(numbers) == 0 {
		return c.Send(
			"❌ No valid numbers found in your message.\n\n" +
				"📞 Supported formats:\n" +
				"7828124894\n" +
				"+18257976152\n" +
				"+1 (902) 912-2670",
		)
	}

	if len(numbers) > b.cfg.MaxCandidates {
		if err := c.Send(fmt.Sprintf("⚠️ Too many numbers, checking the first %d only.", b.cfg.MaxCandidates)); err != nil {
			return err
		}
		numbers = numbers[:b.cfg.MaxCandidates]
	}

	if !b.session.IsConnected() {
		return c.Send("❌ WhatsApp is not connected. Please send /connect first.")
	}

	processing, err := apiSend(b.api, c.Chat(), fmt.Sprintf(
		"🔍 Checking %d numbers...\n\n⏳ Please wait, this may take a few seconds.", len(numbers),
	))
	if err != nil {
		return err
	}

	results := b.checker.Run(context.Background(), numbers)
	registered, unregistered, failed := checker.Summarize(results)

	if err := apiDelete(b.api, processing); err != nil {
		log.Update(c).WithError(err).Warn("Failed to delete processing message")
	}

	if len(registered) > 0 {
		if err := c.Send(fmt.Sprintf("🚫 Registered on WhatsApp (%d)\n%s", len(registered), strings.Join(registered, "\n"))); err != nil {
			return err
		}
	} else {
		if err := c.Send("✅ No registered numbers found."); err != nil {
			return err
		}
	}

	if len(unregistered) > 0 {
		if err := c.Send(fmt.Sprintf("✅ Not on WhatsApp (%d)\n%s", len(unregistered), strings.Join(unregistered, "\n"))); err != nil {
			return err
		}
	} else {
		if err := c.Send("ℹ️ Every number checked is registered."); err != nil {
			return err
		}
	}

	if len(failed) > 0 {
		return c.Send(fmt.Sprintf("⚠️ Failed to check %d numbers. Please try again.", len(failed)))
	}
	return nil
}
