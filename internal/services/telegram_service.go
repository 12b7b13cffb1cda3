package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"knowledgebot/internal/models"
)

const (
	// TelegramAPIBaseURL is the Bot API host
	TelegramAPIBaseURL = "https://api.telegram.org"
	// TelegramMaxChunkSize leaves margin under Telegram's 4096 character limit
	TelegramMaxChunkSize = 4000
)

// Messenger delivers plain-text replies to a chat
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// TelegramBotInfo is the subset of getMe the bot uses
type TelegramBotInfo struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
}

// TelegramService talks to the Telegram Bot API over plain HTTPS
type TelegramService struct {
	botToken      string
	baseURL       string
	httpClient    *http.Client
	pollingClient *http.Client
	chunkDelay    time.Duration
}

// NewTelegramService creates a client for botToken
func NewTelegramService(botToken string) *TelegramService {
	return &TelegramService{
		botToken:   botToken,
		baseURL:    TelegramAPIBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		// long polling holds the request for up to 30s
		pollingClient: &http.Client{Timeout: 45 * time.Second},
		chunkDelay:    300 * time.Millisecond,
	}
}

// WithBaseURL points the client at another API host (tests, local Bot API server)
func (s *TelegramService) WithBaseURL(baseURL string) *TelegramService {
	s.baseURL = strings.TrimRight(baseURL, "/")
	return s
}

func (s *TelegramService) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", s.baseURL, s.botToken, method)
}

type telegramResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// call posts payload to method and returns the raw result
func (s *TelegramService) call(ctx context.Context, client *http.Client, method string, payload interface{}) (json.RawMessage, error) {
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			return nil, fmt.Errorf("failed to encode %s payload: %w", method, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.methodURL(method), &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Telegram: %w", err)
	}
	defer resp.Body.Close()

	var result telegramResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode %s response (status %d): %w", method, resp.StatusCode, err)
	}
	if !result.OK {
		return nil, fmt.Errorf("Telegram API error on %s: %s", method, result.Description)
	}
	return result.Result, nil
}

// SendMessage sends text as plain text, split into chunks when it is too long
func (s *TelegramService) SendMessage(ctx context.Context, chatID int64, text string) error {
	chunks := splitMessageIntoChunks(text, TelegramMaxChunkSize)
	if len(chunks) > 1 {
		log.Printf("📨 [TELEGRAM] Splitting message (%d chars) into %d chunks", len(text), len(chunks))
	}

	for i, chunk := range chunks {
		payload := map[string]interface{}{
			"chat_id": chatID,
			"text":    chunk,
		}
		if _, err := s.call(ctx, s.httpClient, "sendMessage", payload); err != nil {
			return fmt.Errorf("failed to send chunk %d/%d: %w", i+1, len(chunks), err)
		}

		if i < len(chunks)-1 && s.chunkDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.chunkDelay):
			}
		}
	}
	return nil
}

// SendTyping shows the "typing" indicator in chatID
func (s *TelegramService) SendTyping(ctx context.Context, chatID int64) error {
	_, err := s.call(ctx, s.httpClient, "sendChatAction", map[string]interface{}{
		"chat_id": chatID,
		"action":  "typing",
	})
	return err
}

// GetMe verifies the token and returns the bot identity
func (s *TelegramService) GetMe(ctx context.Context) (*TelegramBotInfo, error) {
	raw, err := s.call(ctx, s.httpClient, "getMe", nil)
	if err != nil {
		return nil, err
	}
	var info TelegramBotInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("invalid getMe response: %w", err)
	}
	return &info, nil
}

// SetWebhook registers webhookURL. Telegram echoes secret in the
// X-Telegram-Bot-Api-Secret-Token header of every delivery.
func (s *TelegramService) SetWebhook(ctx context.Context, webhookURL, secret string) error {
	payload := map[string]interface{}{
		"url":             webhookURL,
		"allowed_updates": []string{"message"},
	}
	if secret != "" {
		payload["secret_token"] = secret
	}
	if _, err := s.call(ctx, s.httpClient, "setWebhook", payload); err != nil {
		return fmt.Errorf("failed to set webhook: %w", err)
	}
	log.Printf("📡 [TELEGRAM] Webhook registered: %s", webhookURL)
	return nil
}

// DeleteWebhook removes the webhook so getUpdates can be used
func (s *TelegramService) DeleteWebhook(ctx context.Context) error {
	if _, err := s.call(ctx, s.httpClient, "deleteWebhook", nil); err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}
	log.Printf("📡 [TELEGRAM] Webhook deleted")
	return nil
}

// GetUpdates long-polls for message updates starting at offset
func (s *TelegramService) GetUpdates(ctx context.Context, offset int64) ([]*models.TelegramUpdate, error) {
	payload := map[string]interface{}{
		"timeout":         30,
		"allowed_updates": []string{"message"},
	}
	if offset > 0 {
		payload["offset"] = offset
	}

	raw, err := s.call(ctx, s.pollingClient, "getUpdates", payload)
	if err != nil {
		return nil, fmt.Errorf("failed to get updates: %w", err)
	}
	var updates []*models.TelegramUpdate
	if err := json.Unmarshal(raw, &updates); err != nil {
		return nil, fmt.Errorf("failed to decode updates: %w", err)
	}
	return updates, nil
}

// StartPolling feeds updates to handler until ctx is cancelled.
// The webhook is removed first because Telegram refuses getUpdates while one is set.
func (s *TelegramService) StartPolling(ctx context.Context, handler func(*models.TelegramUpdate)) {
	if err := s.DeleteWebhook(ctx); err != nil {
		log.Printf("⚠️  [POLLING] %v", err)
	}

	log.Printf("📡 [POLLING] Polling loop started")
	var offset int64
	for {
		select {
		case <-ctx.Done():
			log.Printf("📡 [POLLING] Poller stopped")
			return
		default:
		}

		updates, err := s.GetUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			log.Printf("⚠️  [POLLING] Error getting updates: %v", err)
			select {
			case <-ctx.Done():
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for _, update := range updates {
			// acknowledges this update on the next call
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			handler(update)
		}
	}
}

// splitMessageIntoChunks splits a message into chunks respecting boundaries
func splitMessageIntoChunks(text string, maxSize int) []string {
	if len(text) <= maxSize {
		return []string{text}
	}

	var chunks []string
	remaining := text

	for len(remaining) > 0 {
		if len(remaining) <= maxSize {
			chunks = append(chunks, remaining)
			break
		}

		chunk := remaining[:maxSize]
		breakPoint := maxSize

		if idx := strings.LastIndex(chunk, "\n\n"); idx > maxSize/2 {
			// paragraph
			breakPoint = idx + 2
		} else if idx := strings.LastIndex(chunk, "\n"); idx > maxSize/2 {
			breakPoint = idx + 1
		} else if idx := strings.LastIndex(chunk, ". "); idx > maxSize/2 {
			// sentence
			breakPoint = idx + 2
		} else if idx := strings.LastIndex(chunk, " "); idx > maxSize/2 {
			breakPoint = idx + 1
		}
		// no good break point: cut at maxSize, but never inside a rune
		for breakPoint > 0 && !utf8.RuneStart(remaining[breakPoint]) {
			breakPoint--
		}

		chunks = append(chunks, strings.TrimSpace(remaining[:breakPoint]))
		remaining = strings.TrimSpace(remaining[breakPoint:])
	}

	return chunks
}

// NoopMessenger logs replies instead of sending them. Used when no bot token is set.
type NoopMessenger struct{}

// SendMessage logs the reply
func (NoopMessenger) SendMessage(ctx context.Context, chatID int64, text string) error {
	log.Printf("📭 [TELEGRAM] No bot token, not sending to chat %d (%d chars)", chatID, len(text))
	return nil
}
