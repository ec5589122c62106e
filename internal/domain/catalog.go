package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Category struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"size:100;index" json:"name"`
	Slug      string    `gorm:"size:150;uniqueIndex" json:"slug"`
	ParentID  *int64    `gorm:"index" json:"parent_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Category) TableName() string {
	return "shop_category"
}

// Product is a catalog item. Stock is only ever decremented inside the
// checkout transaction while the row is locked; DiscountPrice must be
// strictly less than Price (enforced on every write path).
type Product struct {
	ID            int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	CategoryID    int64            `gorm:"index" json:"category_id"`
	Name          string           `gorm:"size:255;index" json:"name"`
	Slug          string           `gorm:"size:255;uniqueIndex" json:"slug"`
	Description   string           `gorm:"type:text" json:"description"`
	Price         decimal.Decimal  `gorm:"type:numeric(10,2)" json:"price"`
	DiscountPrice *decimal.Decimal `gorm:"type:numeric(10,2)" json:"discount_price,omitempty"`
	Image         string           `gorm:"size:1024" json:"image"`
	Stock         int              `gorm:"default:0" json:"stock"`
	IsActive      bool             `gorm:"default:true;index" json:"is_active"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

func (Product) TableName() string {
	return "shop_product"
}

// OnSale reports whether the product carries a valid discount.
func (p *Product) OnSale() bool {
	return p.DiscountPrice != nil && p.DiscountPrice.LessThan(p.Price)
}

// EffectivePrice returns the discount price when set and valid, else the
// base price. OrderItem rows freeze a copy of this value at checkout.
func (p *Product) EffectivePrice() decimal.Decimal {
	if p.OnSale() {
		return *p.DiscountPrice
	}
	return p.Price
}

// DiscountPercent returns the integer discount percentage, 0 when not on sale.
func (p *Product) DiscountPercent() int {
	if !p.OnSale() {
		return 0
	}
	diff := p.Price.Sub(*p.DiscountPrice)
	return int(diff.Div(p.Price).Mul(decimal.NewFromInt(100)).IntPart())
}

type Review struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID int64     `gorm:"index" json:"product_id"`
	UserID    int64     `gorm:"index" json:"user_id"`
	Rating    int       `json:"rating"`
	Comment   string    `gorm:"type:text" json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

func (Review) TableName() string {
	return "shop_review"
}
