// Package notify persists notifications and delivers them through the
// Telegram bot API.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"stockwatch/services/apperr"
)

const telegramBaseURL = "https://api.telegram.org"

const telegramTimeout = 10 * time.Second

// botClient wraps one bot token's slice of the Telegram API.
type botClient struct {
	client *resty.Client
	token  string
}

func newBotClient(baseURL, token string) *botClient {
	return &botClient{
		client: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(telegramTimeout),
		token: token,
	}
}

type tgResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// getMe validates the token without sending anything to a chat.
func (b *botClient) getMe(ctx context.Context) error {
	var result tgResponse
	resp, err := b.client.R().
		SetContext(ctx).
		SetResult(&result).
		Get(fmt.Sprintf("/bot%s/getMe", b.token))
	if err != nil {
		return fmt.Errorf("%w: telegram getMe: %v", apperr.ErrDelivery, err)
	}
	if resp.IsError() || !result.OK {
		return fmt.Errorf("%w: telegram getMe rejected: %s", apperr.ErrDelivery, result.Description)
	}
	return nil
}

func (b *botClient) sendMessage(ctx context.Context, chatID, text string) error {
	var result tgResponse
	resp, err := b.client.R().
		SetContext(ctx).
		SetResult(&result).
		SetBody(map[string]string{
			"chat_id":    chatID,
			"text":       text,
			"parse_mode": "HTML",
		}).
		Post(fmt.Sprintf("/bot%s/sendMessage", b.token))
	if err != nil {
		return fmt.Errorf("%w: telegram sendMessage: %v", apperr.ErrDelivery, err)
	}
	if resp.IsError() || !result.OK {
		return fmt.Errorf("%w: telegram sendMessage rejected: %s", apperr.ErrDelivery, result.Description)
	}
	return nil
}
