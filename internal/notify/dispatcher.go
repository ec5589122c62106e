package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dukanshop/dukan/internal/domain"
)

// Sender delivers one rendered message to one Telegram chat.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

type Options struct {
	Interval    time.Duration
	MaxRetries  int
	BaseBackoff time.Duration
	Workers     int
	BatchSize   int
}

func (o *Options) fillDefaults() {
	if o.Interval <= 0 {
		o.Interval = 15 * time.Second
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 5
	}
	if o.BaseBackoff <= 0 {
		o.BaseBackoff = 30 * time.Second
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
}

// Dispatcher drains the order event outbox. It polls on a ticker and can be
// kicked after a checkout commit so the common case is delivered without
// waiting a full interval. Failures reschedule the event with exponential
// backoff until MaxRetries, then the event is parked as failed for an
// operator to inspect.
type Dispatcher struct {
	db     *gorm.DB
	sender Sender
	pool   *ants.Pool
	opts   Options

	kick chan struct{}
	stop chan struct{}
	once sync.Once
}

func NewDispatcher(db *gorm.DB, sender Sender, opts Options) (*Dispatcher, error) {
	opts.fillDefaults()
	pool, err := ants.NewPool(opts.Workers)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &Dispatcher{
		db:     db,
		sender: sender,
		pool:   pool,
		opts:   opts,
		kick:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
	}, nil
}

// Start launches the poll loop.
func (d *Dispatcher) Start(ctx context.Context) {
	go d.loop(ctx)
}

// Stop terminates the loop and releases the worker pool.
func (d *Dispatcher) Stop() {
	d.once.Do(func() {
		close(d.stop)
		d.pool.Release()
	})
}

// Kick wakes the dispatcher without waiting for the next tick. Non-blocking;
// a pending kick coalesces with later ones.
func (d *Dispatcher) Kick() {
	select {
	case d.kick <- struct{}{}:
	default:
	}
}

func (d *Dispatcher) loop(ctx context.Context) {
	ticker := time.NewTicker(d.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stop:
			return
		case <-ticker.C:
		case <-d.kick:
		}
		d.DispatchDue(ctx)
	}
}

// DispatchDue delivers every pending event whose next attempt is due,
// fanning out over the worker pool and blocking until the batch finishes.
func (d *Dispatcher) DispatchDue(ctx context.Context) {
	var events []domain.OrderEvent
	err := d.db.WithContext(ctx).
		Where("status = ? and next_attempt_at <= ?", domain.EventStatusPending, time.Now()).
		Order("id ASC").
		Limit(d.opts.BatchSize).
		Find(&events).Error
	if err != nil {
		zap.L().Error("fetch pending order events failed", zap.Error(err))
		return
	}
	if len(events) == 0 {
		return
	}

	var wg sync.WaitGroup
	for i := range events {
		event := events[i]
		wg.Add(1)
		submitErr := d.pool.Submit(func() {
			defer wg.Done()
			d.deliver(ctx, &event)
		})
		if submitErr != nil {
			wg.Done()
			zap.L().Error("submit notification job failed", zap.Error(submitErr))
		}
	}
	wg.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, event *domain.OrderEvent) {
	var order domain.Order
	err := d.db.WithContext(ctx).Preload("Items").First(&order, event.OrderID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			d.markFailed(event, "order row missing")
			return
		}
		d.scheduleRetry(event, err.Error())
		return
	}

	var user domain.ShopUser
	if err := d.db.WithContext(ctx).First(&user, order.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			d.markFailed(event, "user row missing")
			return
		}
		d.scheduleRetry(event, err.Error())
		return
	}

	// No linked Telegram account: nothing to deliver, consume the event.
	if user.TelegramID == nil {
		zap.L().Info("order notification skipped, no telegram account",
			zap.Int64("order_id", order.ID),
			zap.Int64("user_id", user.ID))
		d.markSent(event)
		return
	}

	text := renderOrderText(&order, &user, d.productNames(ctx, order.Items))
	if err := d.sender.SendMessage(ctx, *user.TelegramID, text); err != nil {
		d.scheduleRetry(event, err.Error())
		return
	}
	d.markSent(event)
}

// productNames resolves item product names best-effort; a deleted or
// unreadable product falls back to its numeric id in the message.
func (d *Dispatcher) productNames(ctx context.Context, items []domain.OrderItem) map[int64]string {
	names := make(map[int64]string, len(items))
	if len(items) == 0 {
		return names
	}
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	var products []domain.Product
	if err := d.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return names
	}
	for _, p := range products {
		names[p.ID] = p.Name
	}
	return names
}

func (d *Dispatcher) markSent(event *domain.OrderEvent) {
	now := time.Now()
	err := d.db.Model(&domain.OrderEvent{}).
		Where("id = ?", event.ID).
		Updates(map[string]any{
			"status":     domain.EventStatusSent,
			"sent_at":    &now,
			"last_error": "",
		}).Error
	if err != nil {
		zap.L().Error("mark order event sent failed",
			zap.Int64("event_id", event.EventID), zap.Error(err))
	}
}

func (d *Dispatcher) markFailed(event *domain.OrderEvent, reason string) {
	err := d.db.Model(&domain.OrderEvent{}).
		Where("id = ?", event.ID).
		Updates(map[string]any{
			"status":     domain.EventStatusFailed,
			"last_error": reason,
		}).Error
	if err != nil {
		zap.L().Error("mark order event failed errored",
			zap.Int64("event_id", event.EventID), zap.Error(err))
		return
	}
	zap.L().Error("order notification permanently failed",
		zap.Int64("event_id", event.EventID),
		zap.Int64("order_id", event.OrderID),
		zap.String("reason", reason))
}

func (d *Dispatcher) scheduleRetry(event *domain.OrderEvent, reason string) {
	retries := event.RetryCount + 1
	if retries >= d.opts.MaxRetries {
		event.RetryCount = retries
		d.markFailed(event, reason)
		return
	}
	backoff := d.opts.BaseBackoff * time.Duration(1<<(retries-1))
	err := d.db.Model(&domain.OrderEvent{}).
		Where("id = ?", event.ID).
		Updates(map[string]any{
			"retry_count":     retries,
			"next_attempt_at": time.Now().Add(backoff),
			"last_error":      reason,
		}).Error
	if err != nil {
		zap.L().Error("reschedule order event failed",
			zap.Int64("event_id", event.EventID), zap.Error(err))
		return
	}
	zap.L().Warn("order notification retry scheduled",
		zap.Int64("event_id", event.EventID),
		zap.Int64("order_id", event.OrderID),
		zap.Int("retry", retries),
		zap.Duration("backoff", backoff),
		zap.String("reason", reason))
}

// PruneSent deletes delivered events older than maxAge.
func (d *Dispatcher) PruneSent(ctx context.Context, maxAge time.Duration) (int64, error) {
	result := d.db.WithContext(ctx).
		Where("status = ? and sent_at < ?", domain.EventStatusSent, time.Now().Add(-maxAge)).
		Delete(&domain.OrderEvent{})
	return result.RowsAffected, errors.WithStack(result.Error)
}

func renderOrderText(order *domain.Order, user *domain.ShopUser, names map[int64]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>Order #%d confirmed</b>\n", order.ID)
	fmt.Fprintf(&b, "Hi %s, we received your order.\n\n", user.Username)
	for _, item := range order.Items {
		name := names[item.ProductID]
		if name == "" {
			name = fmt.Sprintf("product %d", item.ProductID)
		}
		fmt.Fprintf(&b, "• %s × %d at %s\n", name, item.Quantity, item.Price.StringFixed(2))
	}
	fmt.Fprintf(&b, "\nTotal: <b>%s</b>\n", order.TotalPrice.StringFixed(2))
	fmt.Fprintf(&b, "Delivery address: %s", order.Address)
	return b.String()
}
