package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	qrCode "github.com/skip2/go-qrcode"
	"google.golang.org/protobuf/proto"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waCompanionReg"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/krfajar/telegram-whatsapp-checker-bot/pkg/log"
)

var (
	ErrAlreadyConnected = errors.New("WhatsApp Client is already Connected")
	ErrConnectPending   = errors.New("WhatsApp Connection Attempt is already in Progress")
	ErrNotConnected     = errors.New("WhatsApp Client is not Connected")
	ErrQRExpired        = errors.New("WhatsApp QR Code Expired, Please Try Again")
)

const (
	qrImageSize         = 256
	storeCleanupTimeout = 5 * time.Second
)

// Config carries the session lifecycle tunables.
type Config struct {
	DatastoreDriver      string
	DatastoreDSN         string
	QRTimeout            time.Duration
	ReconnectRetries     int
	ReconnectBackoffBase time.Duration
	ReconnectBackoffMax  time.Duration
}

// Registration is one entry of an existence lookup response.
type Registration struct {
	Query      string
	JID        string
	Registered bool
}

// Notifier receives user-facing session lifecycle signals. Implementations
// typically relay them to the Telegram chat that initiated the connection.
type Notifier interface {
	QRCode(png []byte, expiry time.Duration)
	Connected()
	QRExpired()
	LoggedOut()
}

// Session owns the single whatsmeow client handle and guards its connection
// lifecycle so only one connect attempt is ever in flight.
type Session struct {
	cfg       Config
	container *sqlstore.Container

	mu         sync.Mutex
	client     *whatsmeow.Client
	connecting bool
	notifier   Notifier
}

func NewSession(ctx context.Context, cfg Config) (*Session, error) {
	driver := normalizeDatastoreDriver(cfg.DatastoreDriver)
	dsn := normalizeDatastoreDSN(driver, cfg.DatastoreDSN)

	log.Print(nil).Info("Initializing WhatsApp datastore with driver=" + driver)

	container, err := sqlstore.New(ctx, driver, dsn, nil)
	if err != nil {
		return nil, fmt.Errorf("initialize whatsapp datastore: %w", err)
	}

	if err := container.Upgrade(ctx); err != nil {
		return nil, fmt.Errorf("upgrade whatsapp datastore schema: %w", err)
	}

	cfg.DatastoreDriver = driver
	cfg.DatastoreDSN = dsn

	return &Session{cfg: cfg, container: container}, nil
}

func normalizeDatastoreDriver(driver string) string {
	switch strings.ToLower(driver) {
	case "postgresql", "postgres", "pgx":
		return "pgx"
	case "sqlite", "sqlite3":
		return "sqlite3"
	default:
		return strings.ToLower(driver)
	}
}

func normalizeDatastoreDSN(driver string, dsn string) string {
	if driver != "pgx" {
		return dsn
	}
	appendParam := func(current string, key string, value string) string {
		if strings.Contains(current, key+"=") {
			return current
		}
		separator := "?"
		if strings.Contains(current, "?") {
			if strings.HasSuffix(current, "?") || strings.HasSuffix(current, "&") {
				separator = ""
			} else {
				separator = "&"
			}
		}
		return current + separator + key + "=" + value
	}
	dsn = appendParam(dsn, "prefer_simple_protocol", "true")
	dsn = appendParam(dsn, "statement_cache_capacity", "0")
	dsn = appendParam(dsn, "default_query_exec_mode", "simple_protocol")
	return dsn
}

// HasStoredSession reports whether pairing material survives in the datastore.
func (s *Session) HasStoredSession(ctx context.Context) bool {
	devices, err := s.container.GetAllDevices(ctx)
	if err != nil {
		return false
	}
	for _, device := range devices {
		if device != nil && device.ID != nil {
			return true
		}
	}
	return false
}

// ensureClient lazily builds the whatsmeow client, restoring a stored device
// when one exists. Callers must hold s.mu.
func (s *Session) ensureClient(ctx context.Context) error {
	if s.client != nil {
		return nil
	}

	var device *store.Device
	devices, err := s.container.GetAllDevices(ctx)
	if err != nil {
		return fmt.Errorf("load whatsapp devices: %w", err)
	}
	for _, candidate := range devices {
		if candidate != nil && candidate.ID != nil {
			device = candidate
			break
		}
	}
	if device == nil {
		device = s.container.NewDevice()
	}

	store.DeviceProps.Os = proto.String(runtime.GOOS)
	store.DeviceProps.PlatformType = waCompanionReg.DeviceProps_CHROME.Enum()
	store.DeviceProps.RequireFullSync = proto.Bool(false)

	client := whatsmeow.NewClient(device, nil)

	// Reconnects are driven by the supervisor below so that only one
	// attempt is ever pending.
	client.EnableAutoReconnect = false
	client.AutoTrustIdentity = true

	client.AddEventHandler(s.handleEvents)

	s.client = client
	return nil
}

// Connect establishes the WhatsApp session. When no pairing material exists
// it drives the QR flow, relaying codes to the notifier until the pairing
// succeeds or the QR window expires. The notifier may be nil.
func (s *Session) Connect(ctx context.Context, notifier Notifier) error {
	s.mu.Lock()
	if s.connecting {
		s.mu.Unlock()
		return ErrConnectPending
	}
	if s.readyLocked() {
		s.mu.Unlock()
		return ErrAlreadyConnected
	}
	if err := s.ensureClient(ctx); err != nil {
		s.mu.Unlock()
		return err
	}
	if notifier != nil {
		s.notifier = notifier
	}
	s.connecting = true
	client := s.client
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.connecting = false
		s.mu.Unlock()
	}()

	client.Disconnect()

	if client.Store.ID == nil {
		return s.pairWithQR(ctx, client)
	}

	return client.Connect()
}

func (s *Session) pairWithQR(ctx context.Context, client *whatsmeow.Client) error {
	qrCtx, cancel := context.WithTimeout(ctx, s.cfg.QRTimeout)
	defer cancel()

	qrChan, err := client.GetQRChannel(qrCtx)
	if err != nil {
		return err
	}

	if err := client.Connect(); err != nil {
		return err
	}

	for {
		select {
		case <-qrCtx.Done():
			client.Disconnect()
			s.notifyQRExpired()
			return ErrQRExpired
		case evt, ok := <-qrChan:
			if !ok {
				return errors.New("whatsapp qr channel closed before delivering a code")
			}
			switch {
			case evt.Event == "code":
				png, err := qrCode.Encode(evt.Code, qrCode.Medium, qrImageSize)
				if err != nil {
					client.Disconnect()
					return err
				}
				if n := s.currentNotifier(); n != nil {
					n.QRCode(png, s.cfg.QRTimeout)
				}
			case evt.Event == whatsmeow.QRChannelSuccess.Event:
				return nil
			case evt.Event == whatsmeow.QRChannelTimeout.Event:
				client.Disconnect()
				s.notifyQRExpired()
				return ErrQRExpired
			case evt.Event == whatsmeow.QRChannelClientOutdated.Event:
				client.Disconnect()
				return errors.New("whatsapp client version is outdated for QR pairing")
			case evt.Event == whatsmeow.QRChannelScannedWithoutMultidevice.Event:
				client.Disconnect()
				return errors.New("whatsapp qr scanned without multi-device enabled")
			case evt.Event == "error":
				client.Disconnect()
				if evt.Error != nil {
					return evt.Error
				}
				return errors.New("whatsapp qr channel reported an unspecified error")
			}
		}
	}
}

func (s *Session) handleEvents(evt interface{}) {
	switch e := evt.(type) {
	case *events.Connected:
		log.Print(nil).Info("WhatsApp client connected")
		if n := s.currentNotifier(); n != nil {
			n.Connected()
		}
	case *events.LoggedOut:
		log.Print(nil).Warn("WhatsApp client logged out, removing stored session")
		s.handleLoggedOut()
	case *events.StreamReplaced:
		log.Print(nil).Warn("WhatsApp stream replaced by another session")
		s.handleLoggedOut()
	case *events.Disconnected:
		log.Print(nil).Warn("WhatsApp client disconnected")
		go s.superviseReconnect()
	case *events.ConnectFailure:
		log.Print(nil).Error(fmt.Sprintf("WhatsApp connection failure: reason=%s, message=%s", e.Reason, e.Message))
	case *events.KeepAliveTimeout:
		log.Print(nil).Warn(fmt.Sprintf("WhatsApp keepalive timeout: errors=%d, lastSuccess=%s", e.ErrorCount, e.LastSuccess.Format(time.RFC3339)))
	case *events.TemporaryBan:
		log.Print(nil).Error(fmt.Sprintf("WhatsApp client temporarily banned: reason=%s, expires=%s", e.Code, e.Expire))
	}
}

// handleLoggedOut deletes the local session material so the next connect
// attempt is forced through a fresh QR pairing.
func (s *Session) handleLoggedOut() {
	s.mu.Lock()
	client := s.client
	s.client = nil
	s.mu.Unlock()

	if client != nil {
		client.Disconnect()
		ctx, cancel := context.WithTimeout(context.Background(), storeCleanupTimeout)
		if err := client.Store.Delete(ctx); err != nil {
			log.Print(nil).WithError(err).Error("Failed to delete WhatsApp session store")
		}
		cancel()
	}

	if n := s.currentNotifier(); n != nil {
		n.LoggedOut()
	}
}

// superviseReconnect retries the connection with exponential backoff and a
// bounded attempt count. A pending connect attempt suppresses it entirely.
func (s *Session) superviseReconnect() {
	s.mu.Lock()
	if s.connecting || s.client == nil || s.client.Store.ID == nil || s.readyLocked() {
		s.mu.Unlock()
		return
	}
	s.connecting = true
	client := s.client
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.connecting = false
		s.mu.Unlock()
	}()

	retries := s.cfg.ReconnectRetries
	if retries < 1 {
		retries = 1
	}
	baseBackoff := s.cfg.ReconnectBackoffBase
	if baseBackoff <= 0 {
		baseBackoff = 2 * time.Second
	}
	maxBackoff := s.cfg.ReconnectBackoffMax
	if maxBackoff <= 0 {
		maxBackoff = 30 * time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		backoff := baseBackoff * time.Duration(1<<(attempt-1))
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
		time.Sleep(backoff)

		if client.IsConnected() {
			return
		}
		lastErr = client.Connect()
		if lastErr == nil {
			log.Print(nil).Info(fmt.Sprintf("WhatsApp reconnected after %d attempt(s)", attempt))
			return
		}
		log.Print(nil).WithError(lastErr).Warn(fmt.Sprintf("WhatsApp reconnect attempt %d/%d failed", attempt, retries))
	}
	log.Print(nil).WithError(lastErr).Error("WhatsApp reconnect supervisor gave up")
}

func (s *Session) readyLocked() bool {
	return s.client != nil && s.client.IsConnected() && s.client.IsLoggedIn()
}

// IsConnected reports whether the session is connected and logged in.
func (s *Session) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readyLocked()
}

// IsConnecting reports whether a connect attempt is currently in flight.
func (s *Session) IsConnecting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connecting
}

// Lookup queries WhatsApp for the registration state of a single normalized
// number. The response may be empty; the caller decides what that means.
func (s *Session) Lookup(ctx context.Context, number string) ([]Registration, error) {
	s.mu.Lock()
	client := s.client
	ready := s.readyLocked()
	s.mu.Unlock()

	if client == nil || !ready {
		return nil, ErrNotConnected
	}

	if !strings.HasPrefix(number, "+") {
		number = "+" + number
	}

	infos, err := client.IsOnWhatsApp(ctx, []string{number})
	if err != nil {
		return nil, err
	}

	results := make([]Registration, 0, len(infos))
	for _, info := range infos {
		results = append(results, Registration{
			Query:      info.Query,
			JID:        info.JID.String(),
			Registered: info.IsIn,
		})
	}
	return results, nil
}

// Disconnect drops the connection without touching stored pairing material.
func (s *Session) Disconnect() {
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()
	if client != nil {
		client.Disconnect()
	}
}

func (s *Session) currentNotifier() Notifier {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notifier
}

func (s *Session) notifyQRExpired() {
	if n := s.currentNotifier(); n != nil {
		n.QRExpired()
	}
}
