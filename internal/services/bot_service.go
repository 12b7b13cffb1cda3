package services

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"knowledgebot/internal/answer"
	"knowledgebot/internal/config"
	"knowledgebot/internal/logging"
	"knowledgebot/internal/models"
	"knowledgebot/internal/utils"
)

// KnowledgeProvider returns the current knowledge snapshot and whether it came from cache
type KnowledgeProvider interface {
	Get(ctx context.Context) (*models.KnowledgeSnapshot, bool)
}

// Answerer produces an answer envelope for a question
type Answerer interface {
	Answer(ctx context.Context, question, knowledge string, opts answer.Options) models.AnswerResult
}

// MessageSource supplies the current user-facing texts
type MessageSource interface {
	Get() config.Messages
}

// typingNotifier is implemented by messengers that can show a typing indicator
type typingNotifier interface {
	SendTyping(ctx context.Context, chatID int64) error
}

// BotDefaults are the environment values used when system_config leaves them unset
type BotDefaults struct {
	AIEnabled        bool
	AdminChatID      string
	HandoverKeywords []string
}

// BotDeps wires the collaborators of the bot pipeline
type BotDeps struct {
	RateLimiter  *UserRateLimiter
	SystemConfig *SystemConfigService
	Sessions     *SessionService
	Knowledge    KnowledgeProvider
	Answerer     Answerer
	Metrics      *MetricsService
	Messenger    Messenger
	Messages     MessageSource
	Defaults     BotDefaults
	Clock        clockwork.Clock
}

// BotService runs the per-message pipeline: rate limit, system config,
// commands, handoff state, handover keywords, knowledge, answer, metrics, reply.
type BotService struct {
	deps  BotDeps
	clock clockwork.Clock
}

// NewBotService creates the bot pipeline
func NewBotService(deps BotDeps) *BotService {
	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &BotService{deps: deps, clock: clock}
}

// effectiveConfig merges the system_config record over the environment defaults
type effectiveConfig struct {
	aiEnabled         bool
	systemPrompt      string
	modelName         string
	handoverKeywords  []string
	autoSwitchMinutes int
	adminChatID       string
}

func (b *BotService) effective(cfg *models.SystemConfig) effectiveConfig {
	eff := effectiveConfig{
		aiEnabled:        b.deps.Defaults.AIEnabled,
		handoverKeywords: b.deps.Defaults.HandoverKeywords,
		adminChatID:      b.deps.Defaults.AdminChatID,
	}
	if cfg == nil {
		return eff
	}

	eff.aiEnabled = eff.aiEnabled && cfg.AIEnabled
	eff.systemPrompt = cfg.SystemPrompt
	eff.modelName = cfg.ModelName
	eff.autoSwitchMinutes = cfg.AutoSwitchMinutes
	if len(cfg.HandoverKeywords) > 0 {
		eff.handoverKeywords = cfg.HandoverKeywords
	}
	if cfg.AdminUserID != "" {
		eff.adminChatID = cfg.AdminUserID
	}
	return eff
}

// HandleMessage runs the full pipeline for one inbound message. It never
// returns an error: failures are logged and the user gets a catalogue text.
func (b *BotService) HandleMessage(ctx context.Context, msg models.InboundMessage) {
	logger := logging.WithMessage(msg.UpdateID, msg.UserID, msg.ChatID)
	messages := b.deps.Messages.Get()
	started := b.clock.Now()

	if b.deps.RateLimiter != nil && !b.deps.RateLimiter.Allow(msg.UserID) {
		logger.Info("rate limited")
		b.reply(ctx, logger, msg.ChatID, messages.RateLimited)
		return
	}

	eff := b.effective(b.deps.SystemConfig.Get(ctx))
	if !eff.aiEnabled {
		logger.Info("AI disabled, message logged only", "text", msg.Text)
		return
	}

	if b.handleCommand(ctx, logger, msg, eff, messages) {
		return
	}

	session := b.deps.Sessions.GetOrDefault(ctx, msg.UserID)
	if session.Mode == models.ChatModeHumanHandoff {
		if !b.autoSwitchDue(session, eff.autoSwitchMinutes) {
			logger.Debug("session in human handoff, staying silent")
			return
		}
		if _, err := b.deps.Sessions.SetMode(ctx, msg.UserID, models.ChatModeAuto); err != nil {
			logger.Warn("auto switch back failed", "error", err)
		}
		logger.Info("handoff expired, switched back to auto", "minutes", eff.autoSwitchMinutes)
	}

	if keyword, ok := matchHandoverKeyword(msg.Text, eff.handoverKeywords); ok {
		logger.Info("handover keyword matched", "keyword", keyword)
		b.startHandoff(ctx, logger, msg, eff, messages)
		return
	}

	if typing, ok := b.deps.Messenger.(typingNotifier); ok {
		if err := typing.SendTyping(ctx, msg.ChatID); err != nil {
			logger.Debug("typing indicator failed", "error", err)
		}
	}

	fetchStarted := b.clock.Now()
	snapshot, cacheHit := b.deps.Knowledge.Get(ctx)
	fetchDuration := b.clock.Since(fetchStarted)
	for _, failure := range snapshot.Failed {
		logger.Warn("knowledge document excluded", "document_id", failure.ID, "error", failure.Error)
	}

	answerStarted := b.clock.Now()
	result := b.deps.Answerer.Answer(ctx, msg.Text, snapshot.CombinedText, answer.Options{
		SystemPrompt: eff.systemPrompt,
		PrimaryModel: eff.modelName,
	})
	answerDuration := b.clock.Since(answerStarted)

	for _, failure := range result.Failures {
		logger.Warn("answer attempt failed",
			"provider", failure.Provider,
			"credential_idx", failure.CredentialIdx,
			"error", failure.Error)
	}

	text := messages.Apology
	if result.ProviderUsed != models.ProviderNone {
		text = utils.MarkdownToPlainText(result.Text)
		if text == "" {
			text = messages.Apology
		}
	} else {
		logger.Error("all answer providers failed", "diagnostic", result.Text)
	}

	if b.deps.Metrics != nil {
		b.deps.Metrics.Record(models.PerformanceRecord{
			Timestamp:                started,
			TotalDurationMs:          b.clock.Since(started).Milliseconds(),
			KnowledgeFetchDurationMs: fetchDuration.Milliseconds(),
			KnowledgeCacheHit:        cacheHit,
			AnswerDurationMs:         answerDuration.Milliseconds(),
			ProviderUsed:             result.ProviderUsed,
			ModelIdentifier:          result.ModelIdentifier,
		})
	}

	b.reply(ctx, logger, msg.ChatID, text)
	logger.Info("answered",
		"provider", result.ProviderUsed,
		"model", result.ModelIdentifier,
		"cache_hit", cacheHit,
		"duration_ms", b.clock.Since(started).Milliseconds())
}

// handleCommand answers /start, /human and /bot. It reports whether msg was a command.
func (b *BotService) handleCommand(ctx context.Context, logger *slog.Logger, msg models.InboundMessage, eff effectiveConfig, messages config.Messages) bool {
	switch commandName(msg.Text) {
	case "/start":
		b.reply(ctx, logger, msg.ChatID, messages.Greeting)
		return true
	case "/human":
		b.startHandoff(ctx, logger, msg, eff, messages)
		return true
	case "/bot":
		if _, err := b.deps.Sessions.SetMode(ctx, msg.UserID, models.ChatModeAuto); err != nil {
			logger.Warn("set mode failed", "error", err)
		}
		b.reply(ctx, logger, msg.ChatID, messages.HandbackAck)
		return true
	}
	return false
}

func (b *BotService) startHandoff(ctx context.Context, logger *slog.Logger, msg models.InboundMessage, eff effectiveConfig, messages config.Messages) {
	if _, err := b.deps.Sessions.SetMode(ctx, msg.UserID, models.ChatModeHumanHandoff); err != nil {
		logger.Warn("set mode failed", "error", err)
	}
	b.reply(ctx, logger, msg.ChatID, messages.HandoffAck)

	if eff.adminChatID == "" {
		logger.Info("no admin chat configured, handoff not forwarded")
		return
	}
	adminChat, err := strconv.ParseInt(eff.adminChatID, 10, 64)
	if err != nil {
		logger.Warn("admin chat id is not numeric", "admin_chat_id", eff.adminChatID)
		return
	}
	notice := messages.AdminNotice(msg.UserID, msg.Username, msg.Text)
	if err := b.deps.Messenger.SendMessage(ctx, adminChat, notice); err != nil {
		logger.Warn("admin notification failed", "error", err)
	}
}

func (b *BotService) autoSwitchDue(session *models.ChatSession, minutes int) bool {
	if minutes <= 0 {
		return false
	}
	return b.clock.Since(session.LastActiveAt) >= time.Duration(minutes)*time.Minute
}

func (b *BotService) reply(ctx context.Context, logger *slog.Logger, chatID int64, text string) {
	if err := b.deps.Messenger.SendMessage(ctx, chatID, text); err != nil {
		logger.Warn("reply failed", "error", err)
	}
}

// commandName returns the lowercased leading command, without a @botname suffix
func commandName(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return ""
	}
	name, _, _ := strings.Cut(fields[0], "@")
	return strings.ToLower(name)
}

// matchHandoverKeyword does a case-insensitive substring match
func matchHandoverKeyword(text string, keywords []string) (string, bool) {
	lower := strings.ToLower(text)
	for _, keyword := range keywords {
		k := strings.ToLower(strings.TrimSpace(keyword))
		if k != "" && strings.Contains(lower, k) {
			return keyword, true
		}
	}
	return "", false
}
