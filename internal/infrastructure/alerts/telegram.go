// Package alerts implements the one-shot alert sink the Sequencer and
// reconciler use to page an operator on a crash or a reverted payout
// (spec §6). Grounded on the provider pack's own stdlib-http-client
// style for outbound third-party API calls (see e.g. the Alchemy
// provider's http.Client usage), since Telegram's Bot API is a plain
// JSON POST with no client library in the corpus worth adopting for it.
package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// TelegramAlerter posts to a single Telegram chat via the Bot API.
// channels passed to Alert are accepted for interface compatibility
// with Sequencer/Reconciler callers but otherwise ignored -- this
// sink only ever has the one configured chat.
type TelegramAlerter struct {
	botToken string
	chatID   string
	client   *http.Client

	// sendMessageURLOverride lets tests point at an httptest server
	// instead of the real Telegram API.
	sendMessageURLOverride string
}

func NewTelegramAlerter(botToken, chatID string) *TelegramAlerter {
	return &TelegramAlerter{
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

func (a *TelegramAlerter) Alert(ctx context.Context, text string, channels ...string) error {
	if a.botToken == "" || a.chatID == "" {
		return nil
	}

	body, err := json.Marshal(sendMessageRequest{ChatID: a.chatID, Text: text})
	if err != nil {
		return err
	}

	url := a.sendMessageURLOverride
	if url == "" {
		url = fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", a.botToken)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("telegram alert: unexpected status %d", resp.StatusCode)
	}
	return nil
}
