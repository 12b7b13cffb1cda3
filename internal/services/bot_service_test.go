package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"knowledgebot/internal/config"
	"knowledgebot/internal/models"
	"knowledgebot/internal/store"
)

type botFixture struct {
	bot       *BotService
	messenger *recordingMessenger
	knowledge *stubKnowledge
	answerer  *stubAnswerer
	sessions  *SessionService
	metrics   *MetricsService
	store     *memStore
	clock     fakeClock
}

func newBotFixture(t *testing.T, configFields store.Fields) *botFixture {
	t.Helper()
	clock := clockwork.NewFakeClock()
	st := newMemStore()
	if configFields != nil {
		st.tables[store.TableSystemConfig] = []store.Record{{ID: "cfg", Fields: configFields}}
	}

	f := &botFixture{
		messenger: &recordingMessenger{},
		knowledge: &stubKnowledge{snapshot: &models.KnowledgeSnapshot{CombinedText: "=== FAQ ===\nOpen 9-17"}},
		answerer: &stubAnswerer{result: models.AnswerResult{
			Text:            "We are **open** 9-17.",
			ProviderUsed:    models.ProviderPrimary,
			ModelIdentifier: "gemini-2.0-flash",
		}},
		sessions: NewSessionService(st, time.Second, clock),
		metrics:  NewMetricsService(nil),
		store:    st,
		clock:    clock,
	}

	f.bot = NewBotService(BotDeps{
		RateLimiter:  NewUserRateLimiter(60, 100),
		SystemConfig: NewSystemConfigService(st, time.Second, clock),
		Sessions:     f.sessions,
		Knowledge:    f.knowledge,
		Answerer:     f.answerer,
		Metrics:      f.metrics,
		Messenger:    f.messenger,
		Messages:     staticMessages{config.DefaultMessages()},
		Defaults: BotDefaults{
			AIEnabled:        true,
			AdminChatID:      "999",
			HandoverKeywords: []string{"speak to a human"},
		},
		Clock: clock,
	})
	return f
}

func inbound(text string) models.InboundMessage {
	return models.InboundMessage{UpdateID: 1, UserID: "u1", ChatID: 100, Username: "alice", Text: text}
}

func TestBotService_AnswersQuestion(t *testing.T) {
	f := newBotFixture(t, nil)

	f.bot.HandleMessage(context.Background(), inbound("When are you open?"))

	sent := f.messenger.messages()
	if len(sent) != 1 {
		t.Fatalf("Expected 1 reply, got %d", len(sent))
	}
	if sent[0].chatID != 100 || sent[0].text != "We are open 9-17." {
		t.Errorf("Expected plain-text answer to chat 100, got %+v", sent[0])
	}
	if f.answerer.knowledge != "=== FAQ ===\nOpen 9-17" {
		t.Errorf("Expected knowledge blob passed to the router, got %q", f.answerer.knowledge)
	}
	if f.metrics.Len() != 1 {
		t.Errorf("Expected 1 performance record, got %d", f.metrics.Len())
	}
	if rec := f.metrics.Records()[0]; rec.ProviderUsed != models.ProviderPrimary || rec.ModelIdentifier != "gemini-2.0-flash" {
		t.Errorf("Unexpected performance record: %+v", rec)
	}
}

func TestBotService_TotalFailureSendsApology(t *testing.T) {
	f := newBotFixture(t, nil)
	f.answerer.result = models.AnswerResult{
		Text:         "All answer providers failed.\nprimary[0]: quota",
		ProviderUsed: models.ProviderNone,
	}

	f.bot.HandleMessage(context.Background(), inbound("hello?"))

	sent := f.messenger.messages()
	if len(sent) != 1 || sent[0].text != config.DefaultMessages().Apology {
		t.Errorf("Expected the apology, got %+v", sent)
	}
	if strings.Contains(sent[0].text, "quota") {
		t.Error("technical diagnostic leaked to the user")
	}
}

func TestBotService_AIDisabled(t *testing.T) {
	f := newBotFixture(t, store.Fields{"ai_enabled": false})

	f.bot.HandleMessage(context.Background(), inbound("anyone there?"))

	if n := len(f.messenger.messages()); n != 0 {
		t.Errorf("Expected no reply with AI disabled, got %d", n)
	}
	if f.answerer.calls != 0 {
		t.Error("Expected no answer generation with AI disabled")
	}
}

func TestBotService_Commands(t *testing.T) {
	f := newBotFixture(t, nil)
	ctx := context.Background()
	msgs := config.DefaultMessages()

	f.bot.HandleMessage(ctx, inbound("/start"))
	f.bot.HandleMessage(ctx, inbound("/human@kb_bot"))

	session, _ := f.sessions.Get(ctx, "u1")
	if session == nil || session.Mode != models.ChatModeHumanHandoff {
		t.Fatalf("Expected human-handoff after /human, got %+v", session)
	}

	f.bot.HandleMessage(ctx, inbound("/bot"))
	session, _ = f.sessions.Get(ctx, "u1")
	if session.Mode != models.ChatModeAuto {
		t.Errorf("Expected auto after /bot, got %s", session.Mode)
	}

	sent := f.messenger.messages()
	// greeting, handoff ack, admin notice, handback ack
	if len(sent) != 4 {
		t.Fatalf("Expected 4 messages, got %d: %+v", len(sent), sent)
	}
	if sent[0].text != msgs.Greeting || sent[1].text != msgs.HandoffAck || sent[3].text != msgs.HandbackAck {
		t.Errorf("Unexpected replies: %+v", sent)
	}
	if sent[2].chatID != 999 {
		t.Errorf("Expected admin notice to chat 999, got %d", sent[2].chatID)
	}
	if f.answerer.calls != 0 {
		t.Error("Expected commands to bypass answer generation")
	}
}

func TestBotService_HandoverKeyword(t *testing.T) {
	f := newBotFixture(t, store.Fields{
		"handover_keywords": []interface{}{"Refund"},
		"admin_user_id":     "555",
	})
	ctx := context.Background()

	f.bot.HandleMessage(ctx, inbound("I want a REFUND now"))

	sent := f.messenger.messages()
	if len(sent) != 2 {
		t.Fatalf("Expected ack and admin notice, got %+v", sent)
	}
	if sent[0].chatID != 100 || sent[0].text != config.DefaultMessages().HandoffAck {
		t.Errorf("Expected handoff ack to the user, got %+v", sent[0])
	}
	if sent[1].chatID != 555 || !strings.Contains(sent[1].text, "u1") || !strings.Contains(sent[1].text, "@alice") {
		t.Errorf("Expected admin notice to 555 naming the user, got %+v", sent[1])
	}

	// while in handoff the bot stays silent
	f.bot.HandleMessage(ctx, inbound("hello?"))
	if n := len(f.messenger.messages()); n != 2 {
		t.Errorf("Expected silence in handoff, got %d messages", n)
	}
	if f.answerer.calls != 0 {
		t.Error("Expected no answer generation in handoff")
	}
}

func TestBotService_AutoSwitchBack(t *testing.T) {
	f := newBotFixture(t, store.Fields{"auto_switch_minutes": 30})
	ctx := context.Background()

	if _, err := f.sessions.SetMode(ctx, "u1", models.ChatModeHumanHandoff); err != nil {
		t.Fatal(err)
	}

	f.clock.Advance(10 * time.Minute)
	f.bot.HandleMessage(ctx, inbound("still there?"))
	if f.answerer.calls != 0 {
		t.Fatal("Expected silence before the auto switch delay")
	}

	f.clock.Advance(25 * time.Minute)
	f.bot.HandleMessage(ctx, inbound("still there?"))
	if f.answerer.calls != 1 {
		t.Fatal("Expected an answer once the handoff expired")
	}
	session, _ := f.sessions.Get(ctx, "u1")
	if session.Mode != models.ChatModeAuto {
		t.Errorf("Expected session switched back to auto, got %s", session.Mode)
	}
}

func TestBotService_RateLimited(t *testing.T) {
	f := newBotFixture(t, nil)
	f.bot.deps.RateLimiter = NewUserRateLimiter(1, 1)
	ctx := context.Background()

	f.bot.HandleMessage(ctx, inbound("one"))
	f.bot.HandleMessage(ctx, inbound("two"))

	sent := f.messenger.messages()
	if len(sent) != 2 || sent[1].text != config.DefaultMessages().RateLimited {
		t.Errorf("Expected rate-limit reply for the second message, got %+v", sent)
	}
	if f.answerer.calls != 1 {
		t.Errorf("Expected 1 answer, got %d", f.answerer.calls)
	}
}

func TestBotService_SystemConfigOverrides(t *testing.T) {
	f := newBotFixture(t, store.Fields{
		"system_prompt": "Answer like a pirate.",
		"model_name":    "gemini-2.5-pro",
	})

	f.bot.HandleMessage(context.Background(), inbound("hi"))

	if f.answerer.opts.SystemPrompt != "Answer like a pirate." || f.answerer.opts.PrimaryModel != "gemini-2.5-pro" {
		t.Errorf("Expected overrides passed to the router, got %+v", f.answerer.opts)
	}
}
