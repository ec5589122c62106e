package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusShipped   = "shipped"
	OrderStatusCancelled = "cancelled"
)

// Order is append-only: after creation only Status may change.
type Order struct {
	ID         int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     int64           `gorm:"index" json:"user_id"`
	TotalPrice decimal.Decimal `gorm:"type:numeric(12,2)" json:"total_price"`
	Status     string          `gorm:"size:20;index;default:'pending'" json:"status"`
	Address    string          `gorm:"type:text" json:"address"`
	Items      []OrderItem     `gorm:"foreignKey:OrderID" json:"items,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

func (Order) TableName() string {
	return "shop_order"
}

// OrderItem freezes the effective unit price at the moment of purchase.
// Price is never recomputed from the product row. The referenced product
// must not be deleted while any OrderItem points at it.
type OrderItem struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID   int64           `gorm:"index" json:"order_id"`
	ProductID int64           `gorm:"index" json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `gorm:"type:numeric(10,2)" json:"price"`
}

func (OrderItem) TableName() string {
	return "shop_order_item"
}
