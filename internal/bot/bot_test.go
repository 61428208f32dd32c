package bot

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"

	"github.com/krfajar/telegram-whatsapp-checker-bot/internal/access"
	"github.com/krfajar/telegram-whatsapp-checker-bot/internal/checker"
	"github.com/krfajar/telegram-whatsapp-checker-bot/internal/config"
	"github.com/krfajar/telegram-whatsapp-checker-bot/pkg/whatsapp"
)

const adminID int64 = 1000

// mockContext overrides the slice of tele.Context the handlers touch and
// records everything sent back through it.
type mockContext struct {
	tele.Context

	sender   *tele.User
	message  *tele.Message
	callback *tele.Callback
	chat     *tele.Chat
	data     string

	sent     []interface{}
	responds []*tele.CallbackResponse
	edits    []interface{}
}

func (m *mockContext) Sender() *tele.User       { return m.sender }
func (m *mockContext) Message() *tele.Message   { return m.message }
func (m *mockContext) Callback() *tele.Callback { return m.callback }
func (m *mockContext) Chat() *tele.Chat         { return m.chat }
func (m *mockContext) Data() string             { return m.data }

func (m *mockContext) Text() string {
	if m.message == nil {
		return ""
	}
	return m.message.Text
}

func (m *mockContext) Send(what interface{}, opts ...interface{}) error {
	m.sent = append(m.sent, what)
	return nil
}

func (m *mockContext) Respond(resp ...*tele.CallbackResponse) error {
	m.responds = append(m.responds, resp...)
	return nil
}

func (m *mockContext) Edit(what interface{}, opts ...interface{}) error {
	m.edits = append(m.edits, what)
	return nil
}

func (m *mockContext) lastSentText(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, m.sent)
	text, ok := m.sent[len(m.sent)-1].(string)
	require.True(t, ok, "last sent item is not a string: %T", m.sent[len(m.sent)-1])
	return text
}

func messageCtx(id int64, name, text string) *mockContext {
	return &mockContext{
		sender:  &tele.User{ID: id, FirstName: name},
		message: &tele.Message{Text: text, Sender: &tele.User{ID: id}},
		chat:    &tele.Chat{ID: id},
	}
}

func callbackCtx(id int64, data string) *mockContext {
	return &mockContext{
		sender:   &tele.User{ID: id},
		callback: &tele.Callback{Data: data},
		chat:     &tele.Chat{ID: id},
		data:     data,
	}
}

// fakeSession satisfies waSession without any network.
type fakeSession struct {
	connected    bool
	connecting   bool
	stored       bool
	connectErr   error
	connectCalls int
}

func (f *fakeSession) IsConnected() bool                        { return f.connected }
func (f *fakeSession) IsConnecting() bool                       { return f.connecting }
func (f *fakeSession) HasStoredSession(context.Context) bool    { return f.stored }
func (f *fakeSession) Connect(context.Context, whatsapp.Notifier) error {
	f.connectCalls++
	return f.connectErr
}

type stubProber struct {
	mu    sync.Mutex
	calls int
	fn    func(number string) ([]whatsapp.Registration, error)
}

func (s *stubProber) Lookup(ctx context.Context, number string) ([]whatsapp.Registration, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.fn(number)
}

func (s *stubProber) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// outbound captures traffic that bypasses the context (direct API sends).
type outbound struct {
	to   tele.Recipient
	what interface{}
}

func stubTelegram(t *testing.T) (*[]outbound, *int) {
	t.Helper()
	var sent []outbound
	deleted := 0

	origSend, origDelete := apiSend, apiDelete
	apiSend = func(api *tele.Bot, to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
		sent = append(sent, outbound{to: to, what: what})
		return &tele.Message{ID: len(sent)}, nil
	}
	apiDelete = func(api *tele.Bot, msg tele.Editable) error {
		deleted++
		return nil
	}
	t.Cleanup(func() {
		apiSend, apiDelete = origSend, origDelete
	})
	return &sent, &deleted
}

func newTestBot(t *testing.T, session *fakeSession, prober checker.Prober) *Bot {
	t.Helper()
	if prober == nil {
		prober = &stubProber{fn: func(string) ([]whatsapp.Registration, error) { return nil, nil }}
	}
	cfg := config.Config{
		AdminID:       adminID,
		MaxCandidates: 500,
		GroupSize:     10,
	}
	return &Bot{
		store:     access.Open(filepath.Join(t.TempDir(), "users.json"), adminID),
		session:   session,
		checker:   checker.New(prober, checker.Options{GroupSize: cfg.GroupSize}),
		cfg:       cfg,
		startedAt: time.Now(),
	}
}

func TestAccessGateAdmitsAllowedAndAdmin(t *testing.T) {
	stubTelegram(t)
	b := newTestBot(t, &fakeSession{}, nil)
	b.store.Approve(42)

	for _, id := range []int64{adminID, 42} {
		called := false
		next := func(c tele.Context) error { called = true; return nil }
		require.NoError(t, b.accessGate(next)(messageCtx(id, "U", "hello")))
		assert.True(t, called, "sender %d should pass the gate", id)
	}
}

func TestAccessGateBlocksAndNotifiesAdminOnce(t *testing.T) {
	sent, _ := stubTelegram(t)
	b := newTestBot(t, &fakeSession{}, nil)

	next := func(c tele.Context) error {
		t.Fatal("unapproved sender must not reach the handler")
		return nil
	}

	first := messageCtx(55, "Eve", "hello")
	require.NoError(t, b.accessGate(next)(first))
	assert.Contains(t, first.lastSentText(t), "not authorized")
	assert.True(t, b.store.IsPending(55))
	require.Len(t, *sent, 1, "admin gets exactly one notification")
	assert.Equal(t, &tele.User{ID: adminID}, (*sent)[0].to)
	assert.Contains(t, (*sent)[0].what.(string), "New User Request")

	// A second message from the same sender must not re-notify.
	second := messageCtx(55, "Eve", "hello again")
	require.NoError(t, b.accessGate(next)(second))
	assert.Len(t, *sent, 1)
}

func TestAccessGateStartBypass(t *testing.T) {
	stubTelegram(t)
	b := newTestBot(t, &fakeSession{}, nil)

	called := false
	next := func(c tele.Context) error { called = true; return nil }
	require.NoError(t, b.accessGate(next)(messageCtx(55, "Eve", "/start")))
	assert.True(t, called)
}

func TestAccessGateCallbackBypass(t *testing.T) {
	stubTelegram(t)
	b := newTestBot(t, &fakeSession{}, nil)

	called := false
	next := func(c tele.Context) error { called = true; return nil }
	require.NoError(t, b.accessGate(next)(callbackCtx(55, "42")))
	assert.True(t, called, "callbacks carry their own admin gate")
}

func TestAccessGateRemembersName(t *testing.T) {
	stubTelegram(t)
	b := newTestBot(t, &fakeSession{}, nil)

	next := func(c tele.Context) error { return nil }
	require.NoError(t, b.accessGate(next)(messageCtx(55, "🔥Eve🔥", "hello")))
	assert.Equal(t, "Eve", b.store.Name(55))
}

func TestHandleStartQueuesPendingUser(t *testing.T) {
	sent, _ := stubTelegram(t)
	b := newTestBot(t, &fakeSession{}, nil)

	ctx := messageCtx(55, "Eve", "/start")
	require.NoError(t, b.handleStart(ctx))
	assert.Contains(t, ctx.lastSentText(t), "Waiting for admin approval")
	assert.True(t, b.store.IsPending(55))
	require.Len(t, *sent, 1)
	assert.Equal(t, &tele.User{ID: adminID}, (*sent)[0].to)
}

func TestHandleStartAllowedUser(t *testing.T) {
	sent, _ := stubTelegram(t)
	b := newTestBot(t, &fakeSession{}, nil)
	b.store.Approve(42)

	ctx := messageCtx(42, "Alice", "/start")
	require.NoError(t, b.handleStart(ctx))
	assert.Contains(t, ctx.lastSentText(t), "How to use")
	assert.Empty(t, *sent)
}

func TestRequireAdminRejects(t *testing.T) {
	stubTelegram(t)
	b := newTestBot(t, &fakeSession{}, nil)
	b.store.Approve(42)

	next := func(c tele.Context) error {
		t.Fatal("non-admin must not reach the handler")
		return nil
	}
	ctx := messageCtx(42, "Alice", "/users")
	require.NoError(t, b.requireAdmin(next)(ctx))
	assert.Contains(t, ctx.lastSentText(t), "Admin only")
}

func TestAdminCallbackRejectsWithoutMutation(t *testing.T) {
	stubTelegram(t)
	b := newTestBot(t, &fakeSession{}, nil)
	b.store.MarkPending(55, "Eve")

	ctx := callbackCtx(42, "55")
	require.NoError(t, b.adminCallback(b.handleApprove)(ctx))
	require.Len(t, ctx.responds, 1)
	assert.Contains(t, ctx.responds[0].Text, "Only admin")
	assert.False(t, b.store.IsAllowed(55))
	assert.True(t, b.store.IsPending(55))
}

func TestHandleApprove(t *testing.T) {
	sent, _ := stubTelegram(t)
	b := newTestBot(t, &fakeSession{}, nil)
	b.store.MarkPending(55, "Eve")

	ctx := callbackCtx(adminID, "55")
	require.NoError(t, b.handleApprove(ctx))

	assert.True(t, b.store.IsAllowed(55))
	assert.False(t, b.store.IsPending(55))
	require.Len(t, ctx.responds, 1)
	assert.Contains(t, ctx.responds[0].Text, "allowed")
	require.Len(t, ctx.edits, 1)
	require.Len(t, *sent, 1, "approved user is notified")
	assert.Equal(t, &tele.User{ID: 55}, (*sent)[0].to)
	assert.Contains(t, (*sent)[0].what.(string), "approved")
}

func TestHandleDeny(t *testing.T) {
	sent, _ := stubTelegram(t)
	b := newTestBot(t, &fakeSession{}, nil)
	b.store.MarkPending(55, "Eve")

	ctx := callbackCtx(adminID, "55")
	require.NoError(t, b.handleDeny(ctx))

	assert.False(t, b.store.IsAllowed(55))
	assert.False(t, b.store.IsPending(55))
	require.Len(t, *sent, 1)
	assert.Contains(t, (*sent)[0].what.(string), "denied")
}

func TestHandleToggle(t *testing.T) {
	stubTelegram(t)
	b := newTestBot(t, &fakeSession{}, nil)
	b.store.Approve(42)

	ctx := callbackCtx(adminID, "42")
	require.NoError(t, b.handleToggle(ctx))
	assert.False(t, b.store.IsAllowed(42))

	ctx = callbackCtx(adminID, "42")
	require.NoError(t, b.handleToggle(ctx))
	assert.True(t, b.store.IsAllowed(42))
}

func TestCallbackInvalidPayload(t *testing.T) {
	stubTelegram(t)
	b := newTestBot(t, &fakeSession{}, nil)

	ctx := callbackCtx(adminID, "not-a-number")
	require.NoError(t, b.handleApprove(ctx))
	require.Len(t, ctx.responds, 1)
	assert.Contains(t, ctx.responds[0].Text, "Invalid")
	assert.Empty(t, ctx.edits)
}

func TestHandleConnectShortcuts(t *testing.T) {
	stubTelegram(t)

	b := newTestBot(t, &fakeSession{connected: true}, nil)
	ctx := messageCtx(adminID, "Admin", "/connect")
	require.NoError(t, b.handleConnect(ctx))
	assert.Contains(t, ctx.lastSentText(t), "already connected")

	b = newTestBot(t, &fakeSession{connecting: true}, nil)
	ctx = messageCtx(adminID, "Admin", "/connect")
	require.NoError(t, b.handleConnect(ctx))
	assert.Contains(t, ctx.lastSentText(t), "in progress")
}

func TestHandleConnectStartsSession(t *testing.T) {
	stubTelegram(t)
	session := &fakeSession{}
	b := newTestBot(t, session, nil)

	ctx := messageCtx(adminID, "Admin", "/connect")
	require.NoError(t, b.handleConnect(ctx))
	assert.Equal(t, 1, session.connectCalls)
}

func TestHandleConnectQRExpiredStaysSilent(t *testing.T) {
	stubTelegram(t)
	session := &fakeSession{connectErr: whatsapp.ErrQRExpired}
	b := newTestBot(t, session, nil)

	ctx := messageCtx(adminID, "Admin", "/connect")
	require.NoError(t, b.handleConnect(ctx))
	// Only the initial "Connecting" notice; the notifier owns the expiry text.
	require.Len(t, ctx.sent, 1)
	assert.Contains(t, ctx.sent[0].(string), "Connecting")
}

func TestHandleConnectFailure(t *testing.T) {
	stubTelegram(t)
	session := &fakeSession{connectErr: errors.New("socket closed")}
	b := newTestBot(t, session, nil)

	ctx := messageCtx(adminID, "Admin", "/connect")
	require.NoError(t, b.handleConnect(ctx))
	assert.Contains(t, ctx.lastSentText(t), "Failed to connect")
}

func TestHandleTextNoNumbers(t *testing.T) {
	stubTelegram(t)
	b := newTestBot(t, &fakeSession{connected: true}, nil)

	ctx := messageCtx(42, "Alice", "just words")
	require.NoError(t, b.handleText(ctx))
	assert.Contains(t, ctx.lastSentText(t), "No valid numbers")
}

func TestHandleTextNotConnected(t *testing.T) {
	stubTelegram(t)
	b := newTestBot(t, &fakeSession{}, nil)

	ctx := messageCtx(42, "Alice", "7828124894")
	require.NoError(t, b.handleText(ctx))
	assert.Contains(t, ctx.lastSentText(t), "/connect")
}

func TestHandleTextReportsResults(t *testing.T) {
	sent, deleted := stubTelegram(t)
	prober := &stubProber{fn: func(number string) ([]whatsapp.Registration, error) {
		if number == "+17828124894" {
			return []whatsapp.Registration{{Query: number, Registered: true}}, nil
		}
		return nil, nil
	}}
	b := newTestBot(t, &fakeSession{connected: true}, prober)

	ctx := messageCtx(42, "Alice", "7828124894, 9029122670")
	require.NoError(t, b.handleText(ctx))

	// Progress message goes out and is removed afterwards.
	require.Len(t, *sent, 1)
	assert.Contains(t, (*sent)[0].what.(string), "Checking 2 numbers")
	assert.Equal(t, 1, *deleted)

	require.Len(t, ctx.sent, 2)
	assert.Contains(t, ctx.sent[0].(string), "Registered on WhatsApp (1)")
	assert.Contains(t, ctx.sent[0].(string), "+17828124894")
	assert.Contains(t, ctx.sent[1].(string), "Not on WhatsApp (1)")
	assert.Contains(t, ctx.sent[1].(string), "+19029122670")
}

func TestHandleTextReportsFailures(t *testing.T) {
	stubTelegram(t)
	prober := &stubProber{fn: func(string) ([]whatsapp.Registration, error) {
		return nil, errors.New("boom")
	}}
	b := newTestBot(t, &fakeSession{connected: true}, prober)

	ctx := messageCtx(42, "Alice", "7828124894")
	require.NoError(t, b.handleText(ctx))
	assert.Contains(t, ctx.lastSentText(t), "Failed to check 1 numbers")
}

func TestHandleTextCapsCandidates(t *testing.T) {
	stubTelegram(t)
	prober := &stubProber{fn: func(string) ([]whatsapp.Registration, error) {
		return nil, nil
	}}
	b := newTestBot(t, &fakeSession{connected: true}, prober)
	b.cfg.MaxCandidates = 2

	var sb strings.Builder
	for i := 0; i < 5; i++ {
		sb.WriteString("782812489")
		sb.WriteByte(byte('0' + i))
		sb.WriteString(", ")
	}
	ctx := messageCtx(42, "Alice", sb.String())
	require.NoError(t, b.handleText(ctx))

	assert.Contains(t, ctx.sent[0].(string), "first 2")
	assert.Equal(t, 2, prober.callCount())
}

func TestHandleTextIgnoresCommands(t *testing.T) {
	stubTelegram(t)
	b := newTestBot(t, &fakeSession{connected: true}, nil)

	ctx := messageCtx(42, "Alice", "/unknown")
	require.NoError(t, b.handleText(ctx))
	assert.Empty(t, ctx.sent)
}

func TestHandleStatsSessionPresence(t *testing.T) {
	stubTelegram(t)
	b := newTestBot(t, &fakeSession{stored: true}, nil)

	ctx := messageCtx(adminID, "Admin", "/stats")
	require.NoError(t, b.handleStats(ctx))
	assert.Contains(t, ctx.lastSentText(t), "Session: Exists")

	b = newTestBot(t, &fakeSession{}, nil)
	ctx = messageCtx(adminID, "Admin", "/stats")
	require.NoError(t, b.handleStats(ctx))
	assert.Contains(t, ctx.lastSentText(t), "Session: Not Found")
}

func TestHandlePendingEmpty(t *testing.T) {
	stubTelegram(t)
	b := newTestBot(t, &fakeSession{}, nil)

	ctx := messageCtx(adminID, "Admin", "/pending")
	require.NoError(t, b.handlePending(ctx))
	assert.Contains(t, ctx.lastSentText(t), "No pending")
}

func TestHandleUsersListsBoth(t *testing.T) {
	stubTelegram(t)
	b := newTestBot(t, &fakeSession{}, nil)
	b.store.RememberName(42, "Alice")
	b.store.Approve(42)
	b.store.MarkPending(55, "Eve")

	ctx := messageCtx(adminID, "Admin", "/users")
	require.NoError(t, b.handleUsers(ctx))

	text := ctx.sent[0].(string)
	assert.Contains(t, text, "Allowed Users (1)")
	assert.Contains(t, text, "Alice")
	assert.Contains(t, text, "Pending Requests (1)")
	assert.Contains(t, text, "Eve")
}
