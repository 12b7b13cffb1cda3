package handlers

import (
	"context"
	"crypto/subtle"
	"log"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"knowledgebot/internal/models"
)

// TelegramSecretHeader carries the secret registered with setWebhook
const TelegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// MessageProcessor runs the bot pipeline for one message
type MessageProcessor interface {
	HandleMessage(ctx context.Context, msg models.InboundMessage)
}

// Deduplicator reports whether an update id is seen for the first time
type Deduplicator interface {
	FirstSeen(ctx context.Context, updateID int64) bool
}

// TelegramWebhookHandler receives Telegram updates
type TelegramWebhookHandler struct {
	secret    string
	processor MessageProcessor
	dedupe    Deduplicator
	timeout   time.Duration
	inflight  sync.WaitGroup
}

// NewTelegramWebhookHandler creates the webhook handler. An empty secret
// disables verification; timeout bounds the processing of each message.
func NewTelegramWebhookHandler(secret string, processor MessageProcessor, dedupe Deduplicator, timeout time.Duration) *TelegramWebhookHandler {
	return &TelegramWebhookHandler{
		secret:    secret,
		processor: processor,
		dedupe:    dedupe,
		timeout:   timeout,
	}
}

// Handle acknowledges the update immediately and processes it in the background.
// POST /api/telegram/webhook
func (h *TelegramWebhookHandler) Handle(c *fiber.Ctx) error {
	if h.secret != "" {
		got := c.Get(TelegramSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			log.Printf("⚠️  [TELEGRAM-WEBHOOK] Invalid secret token from %s", c.IP())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid webhook"})
		}
	}

	// anything below answers 200 so Telegram does not redeliver
	var update models.TelegramUpdate
	if err := c.BodyParser(&update); err != nil {
		log.Printf("⚠️  [TELEGRAM-WEBHOOK] Failed to parse update: %v", err)
		return c.SendStatus(fiber.StatusOK)
	}

	msg, ok := update.Inbound()
	if !ok {
		return c.SendStatus(fiber.StatusOK)
	}

	if h.dedupe != nil && !h.dedupe.FirstSeen(c.UserContext(), update.UpdateID) {
		log.Printf("🔁 [TELEGRAM-WEBHOOK] Dropping redelivered update %d", update.UpdateID)
		return c.SendStatus(fiber.StatusOK)
	}

	h.inflight.Add(1)
	go h.process(msg)

	return c.SendStatus(fiber.StatusOK)
}

// Dispatch processes one update synchronously, with the same timeout,
// panic recovery and drain tracking as webhook deliveries. Used by long polling.
func (h *TelegramWebhookHandler) Dispatch(update *models.TelegramUpdate) {
	if update == nil {
		return
	}
	msg, ok := update.Inbound()
	if !ok {
		return
	}
	h.inflight.Add(1)
	h.process(msg)
}

func (h *TelegramWebhookHandler) process(msg models.InboundMessage) {
	defer h.inflight.Done()

	ctx := context.Background()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ [TELEGRAM] Panic while handling update %d: %v", msg.UpdateID, r)
		}
	}()

	h.processor.HandleMessage(ctx, msg)
}

// Wait blocks until every message accepted so far has been processed
func (h *TelegramWebhookHandler) Wait() {
	h.inflight.Wait()
}
