package services

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"knowledgebot/internal/models"
	"knowledgebot/internal/store"
)

func TestSessionService_NoRemoteStoreUsesFallback(t *testing.T) {
	svc := NewSessionService(nil, time.Second, clockwork.NewFakeClock())
	ctx := context.Background()

	if _, ok := svc.Get(ctx, "u1"); ok {
		t.Fatal("expected no session before SetMode")
	}

	if _, err := svc.SetMode(ctx, "u1", models.ChatModeHumanHandoff); err != nil {
		t.Fatalf("SetMode: %v", err)
	}

	session, ok := svc.Get(ctx, "u1")
	if !ok {
		t.Fatal("expected session from fallback map")
	}
	if session.Mode != models.ChatModeHumanHandoff {
		t.Errorf("Expected mode human-handoff, got %s", session.Mode)
	}
	if session.RemoteRecordID != "" {
		t.Errorf("Expected no remote record id, got %q", session.RemoteRecordID)
	}
}

func TestSessionService_GetOrDefault(t *testing.T) {
	svc := NewSessionService(nil, time.Second, clockwork.NewFakeClock())

	session := svc.GetOrDefault(context.Background(), "nobody")
	if session.Mode != models.ChatModeAuto {
		t.Errorf("Expected auto mode, got %s", session.Mode)
	}
	if session.UserID != "nobody" {
		t.Errorf("Expected user id nobody, got %s", session.UserID)
	}
}

func TestSessionService_InvalidMode(t *testing.T) {
	svc := NewSessionService(nil, time.Second, clockwork.NewFakeClock())
	if _, err := svc.SetMode(context.Background(), "u1", models.ChatMode("sleeping")); err == nil {
		t.Fatal("expected error for invalid mode")
	}
}

func TestSessionService_RemoteStore(t *testing.T) {
	st := newMemStore()
	clock := clockwork.NewFakeClock()
	ctx := context.Background()

	writer := NewSessionService(st, time.Second, clock)
	first, err := writer.SetMode(ctx, "u1", models.ChatModeHumanHandoff)
	if err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if first.RemoteRecordID == "" {
		t.Fatal("expected a remote record id")
	}

	// a second write updates the same record
	second, err := writer.SetMode(ctx, "u1", models.ChatModeAuto)
	if err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if second.RemoteRecordID != first.RemoteRecordID {
		t.Errorf("Expected update of %s, got new record %s", first.RemoteRecordID, second.RemoteRecordID)
	}
	if n := len(st.tables[store.TableChatSessions]); n != 1 {
		t.Errorf("Expected 1 session record, got %d", n)
	}

	// another process sees the stored mode
	reader := NewSessionService(st, time.Second, clock)
	session, ok := reader.Get(ctx, "u1")
	if !ok {
		t.Fatal("expected session from remote store")
	}
	if session.Mode != models.ChatModeAuto {
		t.Errorf("Expected auto, got %s", session.Mode)
	}
}

func TestSessionService_CacheTTL(t *testing.T) {
	st := newMemStore()
	clock := clockwork.NewFakeClock()
	ctx := context.Background()

	svc := NewSessionService(st, time.Second, clock)
	if _, err := svc.SetMode(ctx, "u1", models.ChatModeHumanHandoff); err != nil {
		t.Fatalf("SetMode: %v", err)
	}

	svc.Get(ctx, "u1")
	svc.Get(ctx, "u1")
	queriesAfterWarm := st.queryCount(store.TableChatSessions)

	// an operator edits the record behind the service's back
	st.mu.Lock()
	st.tables[store.TableChatSessions][0].Fields["mode"] = string(models.ChatModeAuto)
	st.mu.Unlock()

	session, _ := svc.Get(ctx, "u1")
	if session.Mode != models.ChatModeHumanHandoff {
		t.Errorf("Expected cached human-handoff within TTL, got %s", session.Mode)
	}
	if got := st.queryCount(store.TableChatSessions); got != queriesAfterWarm {
		t.Errorf("Expected no store query within TTL, got %d more", got-queriesAfterWarm)
	}

	clock.Advance(SessionCacheTTL + time.Second)
	session, _ = svc.Get(ctx, "u1")
	if session.Mode != models.ChatModeAuto {
		t.Errorf("Expected auto after TTL, got %s", session.Mode)
	}
}

func TestSessionService_StoreFailureFallsBack(t *testing.T) {
	st := newMemStore()
	st.setFailing(true)
	svc := NewSessionService(st, time.Second, clockwork.NewFakeClock())
	ctx := context.Background()

	session, err := svc.SetMode(ctx, "u1", models.ChatModeHumanHandoff)
	if err != nil {
		t.Fatalf("SetMode should not surface store errors: %v", err)
	}
	if session.RemoteRecordID != "" {
		t.Errorf("Expected local-only session, got record %s", session.RemoteRecordID)
	}

	got, ok := svc.Get(ctx, "u1")
	if !ok || got.Mode != models.ChatModeHumanHandoff {
		t.Errorf("Expected human-handoff from fallback, got %+v (found=%v)", got, ok)
	}
}

func TestSessionService_RemoteWriteSupersedesLocalFallback(t *testing.T) {
	st := newMemStore()
	clock := clockwork.NewFakeClock()
	svc := NewSessionService(st, time.Second, clock)
	ctx := context.Background()

	st.setFailing(true)
	if _, err := svc.SetMode(ctx, "u1", models.ChatModeHumanHandoff); err != nil {
		t.Fatalf("SetMode during outage: %v", err)
	}

	st.setFailing(false)
	if _, err := svc.SetMode(ctx, "u1", models.ChatModeAuto); err != nil {
		t.Fatalf("SetMode after recovery: %v", err)
	}

	clock.Advance(SessionCacheTTL + time.Second)
	st.setFailing(true)

	session, ok := svc.Get(ctx, "u1")
	if ok && session.Mode != models.ChatModeAuto {
		t.Errorf("Expected the later auto write to win during an outage, got %s", session.Mode)
	}
}
