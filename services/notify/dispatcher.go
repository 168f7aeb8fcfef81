package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"stockwatch/models"
	"stockwatch/services/apperr"
	"stockwatch/services/secrets"
	"stockwatch/services/settings"
)

var hundred = decimal.NewFromInt(100)

// Dispatcher persists notifications and pushes them to the configured
// Telegram chat. Rows always land before any delivery attempt, so a
// delivery failure never loses a message.
type Dispatcher struct {
	db       *gorm.DB
	registry *settings.Registry
	secrets  *secrets.Store
	limiter  *rate.Limiter
	logger   *zap.Logger

	// baseURL is overridden by tests to point at an httptest server.
	baseURL string

	mu     sync.Mutex
	client *botClient
}

func NewDispatcher(db *gorm.DB, registry *settings.Registry, store *secrets.Store, limiter *rate.Limiter, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		db:       db,
		registry: registry,
		secrets:  store,
		limiter:  limiter,
		logger:   logger,
		baseURL:  telegramBaseURL,
	}
}

// resolveClient returns a bot client for the current token, rebuilding
// the cached client when the stored token changes.
func (d *Dispatcher) resolveClient() (*botClient, string, error) {
	ciphertext, ok, err := d.registry.Get(settings.KeyTelegramToken)
	if err != nil {
		return nil, "", err
	}
	if !ok || ciphertext == "" {
		return nil, "", fmt.Errorf("%w: telegram_token not set", apperr.ErrNotConfigured)
	}
	token, ok := d.secrets.Decrypt(ciphertext)
	if !ok {
		return nil, "", fmt.Errorf("%w: telegram_token cannot be decrypted", apperr.ErrNotConfigured)
	}

	chatID, ok, err := d.registry.Get(settings.KeyTelegramChatID)
	if err != nil {
		return nil, "", err
	}
	if !ok || chatID == "" {
		return nil, "", fmt.Errorf("%w: telegram_chat_id not set", apperr.ErrNotConfigured)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.client == nil || d.client.token != token {
		d.client = newBotClient(d.baseURL, token)
	}
	return d.client, chatID, nil
}

// Enqueue stores a notification and optionally tries to deliver it right
// away. The row is returned even when immediate delivery fails; the error
// is then a soft delivery failure the caller reports as a warning.
func (d *Dispatcher) Enqueue(message, typ string, symbol *string, sendNow bool) (*models.Notification, error) {
	notification := models.Notification{
		Type:    typ,
		Symbol:  symbol,
		Message: message,
	}
	if err := d.db.Create(&notification).Error; err != nil {
		return nil, fmt.Errorf("%w: enqueue notification: %v", apperr.ErrPersistence, err)
	}

	if !sendNow {
		return &notification, nil
	}
	if err := d.deliver(context.Background(), &notification); err != nil {
		return &notification, err
	}
	return &notification, nil
}

// deliver pushes one row and marks it sent. Not idempotent on its own;
// callers filter on is_sent first.
func (d *Dispatcher) deliver(ctx context.Context, notification *models.Notification) error {
	client, chatID, err := d.resolveClient()
	if err != nil {
		return err
	}
	if err := client.sendMessage(ctx, chatID, notification.Message); err != nil {
		return err
	}

	now := time.Now().UTC()
	notification.IsSent = true
	notification.SentAt = &now
	if err := d.db.Model(notification).Updates(map[string]interface{}{
		"is_sent": true,
		"sent_at": now,
	}).Error; err != nil {
		return fmt.Errorf("%w: mark notification sent: %v", apperr.ErrPersistence, err)
	}
	return nil
}

// SendPending flushes unsent rows oldest first, pacing deliveries through
// the limiter. A failing message is logged and skipped; it stays pending
// for the next pass.
func (d *Dispatcher) SendPending(ctx context.Context) (int, error) {
	var pending []models.Notification
	if err := d.db.Where("is_sent = ?", false).Order("created_at asc, id asc").Find(&pending).Error; err != nil {
		return 0, fmt.Errorf("%w: load pending notifications: %v", apperr.ErrPersistence, err)
	}

	sent := 0
	for i := range pending {
		if err := d.limiter.Wait(ctx); err != nil {
			return sent, err
		}
		if err := d.deliver(ctx, &pending[i]); err != nil {
			if errors.Is(err, apperr.ErrNotConfigured) {
				return sent, err
			}
			d.logger.Warn("notification delivery failed",
				zap.Uint("id", pending[i].ID),
				zap.Error(err),
			)
			continue
		}
		sent++
	}
	return sent, nil
}

// SendOne delivers a single stored notification by id.
func (d *Dispatcher) SendOne(ctx context.Context, id uint) error {
	var notification models.Notification
	if err := d.db.First(&notification, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return fmt.Errorf("%w: load notification %d: %v", apperr.ErrPersistence, id, err)
	}
	if notification.IsSent {
		return fmt.Errorf("%w: notification %d", apperr.ErrAlreadySent, id)
	}
	return d.deliver(ctx, &notification)
}

// TestDelivery validates the stored token and chat id without posting to
// the chat.
func (d *Dispatcher) TestDelivery(ctx context.Context) error {
	client, _, err := d.resolveClient()
	if err != nil {
		return err
	}
	return client.getMe(ctx)
}

// DailySummary builds the morning digest from the latest stored bar per
// tracked stock.
func (d *Dispatcher) DailySummary() (string, error) {
	var stocks []models.Stock
	if err := d.db.Order("symbol asc").Find(&stocks).Error; err != nil {
		return "", fmt.Errorf("%w: load stocks: %v", apperr.ErrPersistence, err)
	}

	var b strings.Builder
	b.WriteString("📈 <b>Daily Stock Summary</b>\n")
	b.WriteString(time.Now().UTC().Format("2006-01-02"))
	b.WriteString("\n\n")

	for _, stock := range stocks {
		var last []models.HistoricalPrice
		err := d.db.Where("symbol = ?", stock.Symbol).
			Order("date desc").
			Limit(2).
			Find(&last).Error
		if err != nil {
			return "", fmt.Errorf("%w: load prices for %s: %v", apperr.ErrPersistence, stock.Symbol, err)
		}
		if len(last) == 0 {
			fmt.Fprintf(&b, "%s: no data\n", stock.Symbol)
			continue
		}

		line := fmt.Sprintf("%s: %s", stock.Symbol, last[0].Close.StringFixed(2))
		if len(last) == 2 && !last[1].Close.IsZero() {
			change := last[0].Close.Sub(last[1].Close).
				Div(last[1].Close).
				Mul(hundred)
			arrow := "▲"
			if change.IsNegative() {
				arrow = "▼"
			}
			line = fmt.Sprintf("%s %s %s%%", line, arrow, change.StringFixed(2))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String(), nil
}
