package domain

import "time"

const (
	EventStatusPending = "pending"
	EventStatusSent    = "sent"
	EventStatusFailed  = "failed"
)

// OrderEvent is a transactional outbox row. The checkout engine inserts it
// inside the order transaction; the notify dispatcher delivers it after
// commit with bounded exponential-backoff retries. Delivery is
// at-least-once and purely informational, so redelivery is harmless.
type OrderEvent struct {
	ID            int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID       int64      `gorm:"uniqueIndex" json:"event_id,string"`
	OrderID       int64      `gorm:"index" json:"order_id"`
	Payload       string     `gorm:"type:text" json:"payload"`
	Status        string     `gorm:"size:20;index;default:'pending'" json:"status"`
	RetryCount    int        `gorm:"default:0" json:"retry_count"`
	NextAttemptAt time.Time  `gorm:"index" json:"next_attempt_at"`
	LastError     string     `gorm:"size:500" json:"last_error"`
	CreatedAt     time.Time  `json:"created_at"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
}

func (OrderEvent) TableName() string {
	return "shop_order_event"
}
