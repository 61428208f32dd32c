package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"
)

const pendingListLimit = 20

func (b *Bot) requireAdmin(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if sender := c.Sender(); sender == nil || sender.ID != b.cfg.AdminID {
			return c.Send("❌ Admin only command!")
		}
		return next(c)
	}
}

func (b *Bot) handleUsers(c tele.Context) error {
	allowed := b.store.Allowed()
	pending := b.store.Pending(0)

	if len(allowed) == 0 && len(pending) == 0 {
		return c.Send("👥 No users found.")
	}

	var sb strings.Builder
	sb.WriteString("👥 User Management\n\n")

	if len(allowed) > 0 {
		fmt.Fprintf(&sb, "✅ Allowed Users (%d):\n", len(allowed))
		for _, id := range allowed {
			fmt.Fprintf(&sb, "• %s (ID: %d)\n", b.store.Name(id), id)
		}
		sb.WriteString("\n")
	}
	if len(pending) > 0 {
		fmt.Fprintf(&sb, "⏳ Pending Requests (%d):\n", len(pending))
		for _, id := range pending {
			fmt.Fprintf(&sb, "• %s (ID: %d)\n", b.store.Name(id), id)
		}
	}

	markup := &tele.ReplyMarkup{}
	rows := make([]tele.Row, 0, len(allowed)+len(pending))
	for _, id := range allowed {
		data := strconv.FormatInt(id, 10)
		rows = append(rows, markup.Row(
			markup.Data("❌ Disable "+b.store.Name(id), btnToggle.Unique, data),
		))
	}
	for _, id := range pending {
		data := strconv.FormatInt(id, 10)
		rows = append(rows, markup.Row(
			markup.Data("✅ Allow "+b.store.Name(id), btnApprove.Unique, data),
			markup.Data("❌ Deny "+b.store.Name(id), btnDeny.Unique, data),
		))
	}
	markup.Inline(rows...)

	return c.Send(sb.String(), markup)
}

func (b *Bot) handlePending(c tele.Context) error {
	pending := b.store.Pending(pendingListLimit)
	if len(pending) == 0 {
		return c.Send("✅ No pending user requests.")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "⏳ Pending Requests: %d\n\n", len(pending))

	markup := &tele.ReplyMarkup{}
	rows := make([]tele.Row, 0, len(pending))
	for _, id := range pending {
		name := b.store.Name(id)
		fmt.Fprintf(&sb, "👤 %s\n🆔 %d\n\n", name, id)
		data := strconv.FormatInt(id, 10)
		rows = append(rows, markup.Row(
			markup.Data("✅ Allow "+name, btnApprove.Unique, data),
			markup.Data("❌ Deny "+name, btnDeny.Unique, data),
		))
	}
	markup.Inline(rows...)

	return c.Send(sb.String(), markup)
}

func (b *Bot) handleStats(c tele.Context) error {
	allowed, pending := b.store.Counts()

	whatsappStatus := "Disconnected"
	if b.session.IsConnected() {
		whatsappStatus = "Connected"
	}
	sessionStored := "Not Found"
	if b.session.HasStoredSession(context.Background()) {
		sessionStored = "Exists"
	}

	return c.Send(fmt.Sprintf(
		"📊 Bot Statistics:\n\n"+
			"👥 Allowed Users: %d\n"+
			"⏳ Pending Requests: %d\n"+
			"📱 WhatsApp: %s\n"+
			"🔐 Session: %s\n"+
			"⏰ Uptime: %d minutes",
		allowed,
		pending,
		whatsappStatus,
		sessionStored,
		int(b.uptime().Minutes()),
	))
}
