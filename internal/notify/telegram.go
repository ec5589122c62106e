package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/guonaihong/gout"
	"github.com/pkg/errors"

	"github.com/dukanshop/dukan/config"
)

// TelegramClient sends messages through the Bot API sendMessage method.
type TelegramClient struct {
	apiURL  string
	token   string
	timeout time.Duration
}

func NewTelegramClient(cfg config.TelegramConfig) *TelegramClient {
	apiURL := cfg.ApiURL
	if apiURL == "" {
		apiURL = "https://api.telegram.org"
	}
	return &TelegramClient{apiURL: apiURL, token: cfg.BotToken, timeout: 10 * time.Second}
}

// SendMessage posts an HTML-formatted message to one chat.
func (t *TelegramClient) SendMessage(ctx context.Context, chatID int64, text string) error {
	if t.token == "" {
		return errors.New("telegram bot token is not configured")
	}
	var reply struct {
		Ok          bool   `json:"ok"`
		Description string `json:"description"`
	}
	var code int
	err := gout.POST(fmt.Sprintf("%s/bot%s/sendMessage", t.apiURL, t.token)).
		WithContext(ctx).
		SetTimeout(t.timeout).
		SetJSON(gout.H{
			"chat_id":    chatID,
			"text":       text,
			"parse_mode": "HTML",
		}).
		BindJSON(&reply).
		Code(&code).
		Do()
	if err != nil {
		return errors.WithStack(err)
	}
	if code != 200 || !reply.Ok {
		return errors.Errorf("telegram sendMessage status %d: %s", code, reply.Description)
	}
	return nil
}
