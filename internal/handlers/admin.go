package handlers

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"knowledgebot/internal/knowledge"
	"knowledgebot/internal/models"
	"knowledgebot/internal/services"
)

// AdminHandler serves the operator API
type AdminHandler struct {
	cache        *knowledge.Cache
	live         knowledge.Loader
	metrics      *services.MetricsService
	sessions     *services.SessionService
	systemConfig *services.SystemConfigService
	timeout      time.Duration
}

// NewAdminHandler creates the admin handler. live is the uncached fetcher used
// for timing samples; timeout bounds every remote call made on behalf of a request.
func NewAdminHandler(
	cache *knowledge.Cache,
	live knowledge.Loader,
	metrics *services.MetricsService,
	sessions *services.SessionService,
	systemConfig *services.SystemConfigService,
	timeout time.Duration,
) *AdminHandler {
	return &AdminHandler{
		cache:        cache,
		live:         live,
		metrics:      metrics,
		sessions:     sessions,
		systemConfig: systemConfig,
		timeout:      timeout,
	}
}

func (h *AdminHandler) context(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	if h.timeout > 0 {
		return context.WithTimeout(c.UserContext(), h.timeout)
	}
	return context.WithCancel(c.UserContext())
}

// RefreshKnowledge empties the knowledge cache and repopulates it
// POST /api/admin/knowledge/refresh
func (h *AdminHandler) RefreshKnowledge(c *fiber.Ctx) error {
	ctx, cancel := h.context(c)
	defer cancel()

	started := time.Now()
	snapshot := h.cache.Refresh(ctx)
	duration := time.Since(started)

	log.Printf("🔄 [ADMIN] Knowledge refreshed: %d documents, %d failed in %v",
		len(snapshot.Documents), len(snapshot.Failed), duration)

	failed := snapshot.Failed
	if failed == nil {
		failed = []models.DocumentFailure{}
	}
	return c.JSON(fiber.Map{
		"success":       true,
		"documentCount": len(snapshot.Documents),
		"titles":        snapshot.Titles(),
		"failed":        failed,
		"fetchedAt":     snapshot.FetchedAt,
		"durationMs":    duration.Milliseconds(),
	})
}

// GetMetrics returns the ring-buffer summary plus one live uncached fetch sample
// GET /api/admin/metrics
func (h *AdminHandler) GetMetrics(c *fiber.Ctx) error {
	ctx, cancel := h.context(c)
	defer cancel()

	started := time.Now()
	snapshot := h.live.FetchAll(ctx)
	liveFetch := time.Since(started)

	return c.JSON(fiber.Map{
		"summary":           h.metrics.Summarize(),
		"liveFetchMs":       liveFetch.Milliseconds(),
		"liveDocumentCount": len(snapshot.Documents),
		"knowledgeCache":    h.cache.State(),
	})
}

// GetSession returns the stored chat session of a user
// GET /api/admin/sessions/:userId
func (h *AdminHandler) GetSession(c *fiber.Ctx) error {
	userID := c.Params("userId")
	ctx, cancel := h.context(c)
	defer cancel()

	session, ok := h.sessions.Get(ctx, userID)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session not found"})
	}
	return c.JSON(session)
}

// SetSessionMode switches a user between auto and human-handoff
// PUT /api/admin/sessions/:userId/mode
func (h *AdminHandler) SetSessionMode(c *fiber.Ctx) error {
	userID := c.Params("userId")

	var req models.SetSessionModeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if !req.Mode.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "mode must be \"auto\" or \"human-handoff\"",
		})
	}

	ctx, cancel := h.context(c)
	defer cancel()

	session, err := h.sessions.SetMode(ctx, userID, req.Mode)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	log.Printf("👤 [ADMIN] Session %s set to %s", userID, req.Mode)
	return c.JSON(session)
}

// InvalidateConfig drops the cached system config
// POST /api/admin/config/invalidate
func (h *AdminHandler) InvalidateConfig(c *fiber.Ctx) error {
	h.systemConfig.Invalidate()
	return c.JSON(fiber.Map{"success": true})
}
