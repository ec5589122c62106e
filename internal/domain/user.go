package domain

import "time"

const (
	RoleAdmin  = "admin"
	RoleClient = "client"
)

// ShopUser is a customer or admin account. TelegramID is optional and only
// set after a successful Telegram OTP verification; notification delivery
// treats a missing id as "nothing to send".
type ShopUser struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Username    string    `gorm:"size:150;uniqueIndex" json:"username"`
	Email       string    `gorm:"size:254;index" json:"email"`
	Password    string    `gorm:"size:128" json:"-"`
	Role        string    `gorm:"size:10;default:'client'" json:"role"`
	PhoneNumber string    `gorm:"size:15" json:"phone_number"`
	TelegramID  *int64    `gorm:"uniqueIndex" json:"telegram_id,omitempty"`
	Address     string    `gorm:"type:text" json:"address"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (ShopUser) TableName() string {
	return "shop_user"
}

// TelegramAuthSession is a one-shot OTP login code issued by the bot.
type TelegramAuthSession struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Code       string    `gorm:"size:6;index" json:"code"`
	TelegramID int64     `json:"telegram_id"`
	ChatID     int64     `json:"chat_id"`
	IsUsed     bool      `gorm:"default:false" json:"is_used"`
	CreatedAt  time.Time `json:"created_at"`
}

func (TelegramAuthSession) TableName() string {
	return "telegram_auth_session"
}
