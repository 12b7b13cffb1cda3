package preflight

import (
	"context"
	"fmt"
	"log"
	"time"

	"knowledgebot/internal/config"
	"knowledgebot/internal/jobs"
	"knowledgebot/internal/knowledge"
	"knowledgebot/internal/models"
	"knowledgebot/internal/services"
	"knowledgebot/internal/store"
)

// CheckResult represents the result of a preflight check
type CheckResult struct {
	Name    string
	Status  string // "pass", "fail", "warning"
	Message string
	Error   error
}

// BotIdentity verifies the messaging token
type BotIdentity interface {
	GetMe(ctx context.Context) (*services.TelegramBotInfo, error)
}

// ProviderInventory reports the answer stages and their credential counts
type ProviderInventory interface {
	Stages() map[models.ProviderUsed]int
}

// Checker performs pre-flight checks before server starts
type Checker struct {
	cfg       *config.Config
	store     store.RecordStore
	telegram  BotIdentity
	providers ProviderInventory
	timeout   time.Duration
}

// NewChecker creates a new preflight checker. st and telegram may be nil
// when no store or bot token is configured.
func NewChecker(cfg *config.Config, st store.RecordStore, telegram BotIdentity) *Checker {
	return &Checker{
		cfg:      cfg,
		store:    st,
		telegram: telegram,
		timeout:  10 * time.Second,
	}
}

// WithProviders makes the provider check read the built answer router
// instead of the raw configuration.
func (c *Checker) WithProviders(providers ProviderInventory) *Checker {
	c.providers = providers
	return c
}

// RunAll runs all preflight checks and returns results
func (c *Checker) RunAll(ctx context.Context) []CheckResult {
	log.Println("🔍 Running pre-flight checks...")

	results := []CheckResult{
		c.checkProviders(),
		c.checkDocuments(),
		c.checkStore(ctx),
		c.checkTelegram(ctx),
		c.checkAdminAPI(),
		c.checkRefreshSchedule(),
	}

	passed := 0
	failed := 0
	warnings := 0

	for _, result := range results {
		switch result.Status {
		case "pass":
			log.Printf("   ✅ %s: %s", result.Name, result.Message)
			passed++
		case "fail":
			log.Printf("   ❌ %s: %s", result.Name, result.Message)
			if result.Error != nil {
				log.Printf("      Error: %v", result.Error)
			}
			failed++
		case "warning":
			log.Printf("   ⚠️  %s: %s", result.Name, result.Message)
			warnings++
		}
	}

	log.Printf("📊 Pre-flight summary: %d passed, %d failed, %d warnings", passed, failed, warnings)

	return results
}

// HasFailures returns true if any check failed
func HasFailures(results []CheckResult) bool {
	for _, result := range results {
		if result.Status == "fail" {
			return true
		}
	}
	return false
}

// checkProviders verifies at least one generation provider has a credential
func (c *Checker) checkProviders() CheckResult {
	primary := len(c.cfg.GeminiAPIKeys)
	secondary := c.cfg.OpenAIAPIKey != ""
	if c.providers != nil {
		stages := c.providers.Stages()
		primary = stages[models.ProviderPrimary]
		secondary = stages[models.ProviderSecondary] > 0
	}

	switch {
	case primary == 0 && !secondary:
		return CheckResult{
			Name:    "Generation Providers",
			Status:  "fail",
			Message: "No GEMINI_API_KEYS or OPENAI_API_KEY configured, every answer would be the apology",
		}
	case primary == 0:
		return CheckResult{
			Name:    "Generation Providers",
			Status:  "warning",
			Message: "No Gemini keys, answering with the OpenAI-compatible provider only",
		}
	case !secondary:
		return CheckResult{
			Name:    "Generation Providers",
			Status:  "warning",
			Message: fmt.Sprintf("%d Gemini key(s), no secondary provider fallback", primary),
		}
	}

	return CheckResult{
		Name:    "Generation Providers",
		Status:  "pass",
		Message: fmt.Sprintf("%d Gemini key(s) with OpenAI-compatible fallback", primary),
	}
}

// checkDocuments verifies the knowledge base can be fetched with the configured credentials
func (c *Checker) checkDocuments() CheckResult {
	ids := c.cfg.KnowledgeDocumentIDs
	if len(ids) == 0 {
		return CheckResult{
			Name:    "Knowledge Documents",
			Status:  "warning",
			Message: "KNOWLEDGE_DOCUMENT_IDS is empty, answers will have no knowledge context",
		}
	}

	notionIDs := 0
	for _, id := range ids {
		if knowledge.IsNotionDocumentID(id) {
			notionIDs++
		}
	}
	if notionIDs > 0 && c.cfg.NotionAPIKey == "" {
		return CheckResult{
			Name:    "Knowledge Documents",
			Status:  "warning",
			Message: fmt.Sprintf("%d Notion document(s) configured without NOTION_API_KEY, they will be excluded", notionIDs),
		}
	}

	return CheckResult{
		Name:    "Knowledge Documents",
		Status:  "pass",
		Message: fmt.Sprintf("%d document(s) configured (%d Notion, %d web)", len(ids), notionIDs, len(ids)-notionIDs),
	}
}

// checkStore verifies the record store is reachable
func (c *Checker) checkStore(ctx context.Context) CheckResult {
	if c.store == nil {
		return CheckResult{
			Name:    "Record Store",
			Status:  "warning",
			Message: "No MONGODB_URI or STORE_DSN, chat modes are kept in memory and system config is disabled",
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.store.Ping(ctx); err != nil {
		return CheckResult{
			Name:    "Record Store",
			Status:  "fail",
			Message: "Cannot reach the record store",
			Error:   err,
		}
	}

	return CheckResult{
		Name:    "Record Store",
		Status:  "pass",
		Message: "Record store connection successful",
	}
}

// checkTelegram verifies the bot token and webhook settings
func (c *Checker) checkTelegram(ctx context.Context) CheckResult {
	if c.telegram == nil || c.cfg.TelegramBotToken == "" {
		return CheckResult{
			Name:    "Telegram",
			Status:  "warning",
			Message: "TELEGRAM_BOT_TOKEN is empty, replies are only logged",
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	info, err := c.telegram.GetMe(ctx)
	if err != nil {
		return CheckResult{
			Name:    "Telegram",
			Status:  "fail",
			Message: "Bot token rejected by Telegram",
			Error:   err,
		}
	}

	if !c.cfg.TelegramPolling && c.cfg.TelegramWebhookSecret == "" {
		return CheckResult{
			Name:    "Telegram",
			Status:  "warning",
			Message: fmt.Sprintf("Bot @%s verified, but TELEGRAM_WEBHOOK_SECRET is empty so webhook calls are not authenticated", info.Username),
		}
	}

	return CheckResult{
		Name:    "Telegram",
		Status:  "pass",
		Message: fmt.Sprintf("Bot @%s verified", info.Username),
	}
}

// checkAdminAPI reports whether the admin routes are enabled
func (c *Checker) checkAdminAPI() CheckResult {
	if c.cfg.AdminAPIKey == "" {
		return CheckResult{
			Name:    "Admin API",
			Status:  "warning",
			Message: "ADMIN_API_KEY is empty, admin routes are disabled",
		}
	}
	return CheckResult{
		Name:    "Admin API",
		Status:  "pass",
		Message: "Admin routes enabled",
	}
}

// checkRefreshSchedule validates KNOWLEDGE_REFRESH_CRON when set
func (c *Checker) checkRefreshSchedule() CheckResult {
	expr := c.cfg.KnowledgeRefreshCron
	if expr == "" {
		return CheckResult{
			Name:    "Knowledge Refresh",
			Status:  "pass",
			Message: "No schedule, the cache refills on demand",
		}
	}
	if err := jobs.ValidateCron(expr); err != nil {
		return CheckResult{
			Name:    "Knowledge Refresh",
			Status:  "fail",
			Message: "KNOWLEDGE_REFRESH_CRON is not a standard 5-field expression",
			Error:   err,
		}
	}
	return CheckResult{
		Name:    "Knowledge Refresh",
		Status:  "pass",
		Message: fmt.Sprintf("Scheduled at %q", expr),
	}
}
