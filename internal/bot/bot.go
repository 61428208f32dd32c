package bot

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/krfajar/telegram-whatsapp-checker-bot/internal/access"
	"github.com/krfajar/telegram-whatsapp-checker-bot/internal/checker"
	"github.com/krfajar/telegram-whatsapp-checker-bot/internal/config"
	"github.com/krfajar/telegram-whatsapp-checker-bot/pkg/log"
	"github.com/krfajar/telegram-whatsapp-checker-bot/pkg/whatsapp"
)

const longPollTimeout = 10 * time.Second

// Inline button identities; the payload is always the target user id.
var (
	btnApprove = tele.Btn{Unique: "approve"}
	btnDeny    = tele.Btn{Unique: "deny"}
	btnToggle  = tele.Btn{Unique: "toggle"}
)

// Indirection over the Telegram API so tests can capture outbound traffic.
var (
	apiSend = func(api *tele.Bot, to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
		return api.Send(to, what, opts...)
	}
	apiDelete = func(api *tele.Bot, msg tele.Editable) error {
		return api.Delete(msg)
	}
)

// waSession is the slice of the WhatsApp session lifecycle the handlers need.
// *whatsapp.Session satisfies it.
type waSession interface {
	IsConnected() bool
	IsConnecting() bool
	HasStoredSession(ctx context.Context) bool
	Connect(ctx context.Context, notifier whatsapp.Notifier) error
}

// Bot wires the Telegram transport to the access store, the batch checker,
// and the WhatsApp session.
type Bot struct {
	api       *tele.Bot
	store     *access.Store
	session   waSession
	checker   *checker.Checker
	cfg       config.Config
	startedAt time.Time
}

func New(cfg config.Config, store *access.Store, session *whatsapp.Session) (*Bot, error) {
	api, err := tele.NewBot(tele.Settings{
		Token:  cfg.TelegramToken,
		Poller: &tele.LongPoller{Timeout: longPollTimeout},
		OnError: func(err error, c tele.Context) {
			// Top-level guard: a failing handler is logged, never fatal.
			log.Update(c).WithError(err).Error("Telegram handler failed")
		},
	})
	if err != nil {
		return nil, err
	}

	b := &Bot{
		api:     api,
		store:   store,
		session: session,
		checker: checker.New(session, checker.Options{
			GroupSize:    cfg.GroupSize,
			GroupDelay:   cfg.GroupDelay,
			ProbeTimeout: cfg.ProbeTimeout,
		}),
		cfg:       cfg,
		startedAt: time.Now(),
	}
	b.register()
	return b, nil
}

func (b *Bot) register() {
	b.api.Use(b.accessGate)

	b.api.Handle("/start", b.handleStart)
	b.api.Handle("/connect", b.handleConnect)
	b.api.Handle("/status", b.handleStatus)

	b.api.Handle("/users", b.requireAdmin(b.handleUsers))
	b.api.Handle("/pending", b.requireAdmin(b.handlePending))
	b.api.Handle("/stats", b.requireAdmin(b.handleStats))

	b.api.Handle(&btnApprove, b.adminCallback(b.handleApprove))
	b.api.Handle(&btnDeny, b.adminCallback(b.handleDeny))
	b.api.Handle(&btnToggle, b.adminCallback(b.handleToggle))

	b.api.Handle(tele.OnText, b.handleText)
}

func (b *Bot) Start() {
	log.Print(nil).Info("Telegram bot started: @" + b.api.Me.Username)
	b.api.Start()
}

func (b *Bot) Stop() {
	b.api.Stop()
}

func (b *Bot) uptime() time.Duration {
	return time.Since(b.startedAt)
}

// notifyUser sends a direct message to a user, logging delivery failures
// (the user may have blocked the bot).
func (b *Bot) notifyUser(id int64, text string) {
	if _, err := apiSend(b.api, &tele.User{ID: id}, text); err != nil {
		log.Print(nil).WithError(err).WithField("user_id", id).Warn("Could not notify user")
	}
}

func approvalKeyboard(id int64) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	data := strconv.FormatInt(id, 10)
	markup.Inline(markup.Row(
		markup.Data("✅ Allow User", btnApprove.Unique, data),
		markup.Data("❌ Deny User", btnDeny.Unique, data),
	))
	return markup
}

// chatNotifier relays WhatsApp session lifecycle signals back to the chat
// that initiated /connect.
type chatNotifier struct {
	api  *tele.Bot
	chat *tele.Chat
}

func (n *chatNotifier) QRCode(png []byte, expiry time.Duration) {
	photo := &tele.Photo{
		File:    tele.FromReader(bytes.NewReader(png)),
		Caption: fmt.Sprintf("📲 Scan QR to link WhatsApp\n\n⏰ QR expires in %d seconds", int(expiry.Seconds())),
	}
	if _, err := apiSend(n.api, n.chat, photo); err != nil {
		log.Print(nil).WithError(err).Error("Failed to send QR code photo")
	}
}

func (n *chatNotifier) Connected() {
	_, _ = apiSend(n.api, n.chat, "✅ WhatsApp connected! Now you can send numbers to check.")
}

func (n *chatNotifier) QRExpired() {
	_, _ = apiSend(n.api, n.chat, "❌ QR expired. Send /connect again.")
}

func (n *chatNotifier) LoggedOut() {
	_, _ = apiSend(n.api, n.chat, "❌ Logged out from WhatsApp. Send /connect again.")
}
