package domain

import "time"

// Cart is one per user. UpdatedAt doubles as the abandonment clock: any
// add/remove touches it, and the purge job deletes carts past the TTL.
type Cart struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"uniqueIndex" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Cart) TableName() string {
	return "shop_cart"
}

// CartItem is one (cart, product) line; the pair is unique and quantity is
// always >= 1. Checkout deletes exactly the purchased lines.
type CartItem struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CartID    int64     `gorm:"index;uniqueIndex:idx_cart_product" json:"cart_id"`
	ProductID int64     `gorm:"uniqueIndex:idx_cart_product" json:"product_id"`
	Quantity  int       `gorm:"default:1" json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (CartItem) TableName() string {
	return "shop_cart_item"
}
