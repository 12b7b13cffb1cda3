package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"knowledgebot/internal/knowledge"
)

// SessionBackend reports whether sessions survive a restart
type SessionBackend interface {
	Remote() bool
}

// HealthHandler handles health check requests
type HealthHandler struct {
	cache    *knowledge.Cache
	sessions SessionBackend
	started  time.Time
}

// NewHealthHandler creates a new health handler. sessions may be nil.
func NewHealthHandler(cache *knowledge.Cache, sessions SessionBackend) *HealthHandler {
	return &HealthHandler{cache: cache, sessions: sessions, started: time.Now()}
}

// Handle responds with server health status
func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	sessionStore := "local"
	if h.sessions != nil && h.sessions.Remote() {
		sessionStore = "remote"
	}
	return c.JSON(fiber.Map{
		"status":         "healthy",
		"uptimeSeconds":  int64(time.Since(h.started).Seconds()),
		"knowledgeCache": h.cache.State(),
		"sessionStore":   sessionStore,
		"timestamp":      time.Now().Format(time.RFC3339),
	})
}
