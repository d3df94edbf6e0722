package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// TelegramAPI abstracts the subset of the Telegram Bot API the service uses.
// The bot token is a per-call argument because each tenant speaks through its
// own bot.
type TelegramAPI interface {
	SendMessage(ctx context.Context, botToken string, chatID int64, text string) error
}

// BotAPI is the HTTP implementation of TelegramAPI.
type BotAPI struct {
	baseURL string
	client  *http.Client
}

var _ TelegramAPI = (*BotAPI)(nil)

func NewBotAPI(baseURL string, timeout time.Duration) *BotAPI {
	return &BotAPI{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type sendMessageRequest struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (a *BotAPI) SendMessage(ctx context.Context, botToken string, chatID int64, text string) error {
	payload, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: text})
	if err != nil {
		return fmt.Errorf("bot.SendMessage: marshal: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", a.baseURL, botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("bot.SendMessage: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("bot.SendMessage: do: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("bot.SendMessage: decode: %w", err)
	}
	if !body.OK {
		return fmt.Errorf("bot.SendMessage: telegram: %s", body.Description)
	}

	return nil
}

// Update is the incoming webhook payload, trimmed to the fields we consume.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

type Message struct {
	MessageID int64   `json:"message_id"`
	From      *TGUser `json:"from"`
	Chat      Chat    `json:"chat"`
	Text      string  `json:"text"`
}

type TGUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type Chat struct {
	ID int64 `json:"id"`
}
