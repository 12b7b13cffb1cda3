package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"knowledgebot/internal/cache"
	"knowledgebot/internal/models"
	"knowledgebot/internal/store"
)

// SessionCacheTTL bounds how long a looked-up session is served from memory
const SessionCacheTTL = 2 * time.Minute

// SessionService resolves per-user chat mode: cache, then the record store,
// then a process-local fallback map that is lost on restart.
type SessionService struct {
	store        store.RecordStore
	cache        *cache.Map[string, models.ChatSession]
	storeTimeout time.Duration
	clock        clockwork.Clock

	mu       sync.RWMutex
	fallback map[string]models.ChatSession
}

// NewSessionService creates a session service. st may be nil (local only).
func NewSessionService(st store.RecordStore, storeTimeout time.Duration, clock clockwork.Clock) *SessionService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &SessionService{
		store:        st,
		cache:        cache.NewMap[string, models.ChatSession](clock),
		storeTimeout: storeTimeout,
		clock:        clock,
		fallback:     make(map[string]models.ChatSession),
	}
}

// Get returns the stored session for userID, or false when there is none
func (s *SessionService) Get(ctx context.Context, userID string) (*models.ChatSession, bool) {
	if session, ok := s.cache.Get(userID); ok {
		return &session, true
	}

	if s.store != nil {
		session, found, err := s.queryRemote(ctx, userID)
		if err == nil && found {
			s.cache.Set(userID, *session, SessionCacheTTL)
			return session, true
		}
		if err != nil {
			log.Printf("⚠️  [SESSION] Store lookup failed for %s, using local fallback: %v", userID, err)
		}
	}

	s.mu.RLock()
	session, ok := s.fallback[userID]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	s.cache.Set(userID, session, SessionCacheTTL)
	return &session, true
}

// GetOrDefault returns the stored session or an unsaved auto-mode session
func (s *SessionService) GetOrDefault(ctx context.Context, userID string) *models.ChatSession {
	if session, ok := s.Get(ctx, userID); ok {
		return session
	}
	return &models.ChatSession{
		UserID:       userID,
		Mode:         models.ChatModeAuto,
		LastActiveAt: s.clock.Now(),
	}
}

// SetMode stores mode for userID. A store failure degrades to the local map
// and is not returned; only an invalid mode is an error.
func (s *SessionService) SetMode(ctx context.Context, userID string, mode models.ChatMode) (*models.ChatSession, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("invalid chat mode %q", mode)
	}

	session := models.ChatSession{
		UserID:       userID,
		Mode:         mode,
		LastActiveAt: s.clock.Now().UTC(),
	}

	if s.store != nil {
		recordID, err := s.writeRemote(ctx, session)
		if err == nil {
			session.RemoteRecordID = recordID
			// the local copy is now older than the store's
			s.mu.Lock()
			delete(s.fallback, userID)
			s.mu.Unlock()
			s.cache.Invalidate(userID)
			return &session, nil
		}
		log.Printf("⚠️  [SESSION] Store write failed for %s, keeping mode locally: %v", userID, err)
	}

	s.mu.Lock()
	s.fallback[userID] = session
	s.mu.Unlock()
	s.cache.Invalidate(userID)

	return &session, nil
}

// Remote reports whether a record store backs the sessions
func (s *SessionService) Remote() bool {
	return s.store != nil
}

func (s *SessionService) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.storeTimeout > 0 {
		return context.WithTimeout(ctx, s.storeTimeout)
	}
	return context.WithCancel(ctx)
}

func (s *SessionService) queryRemote(ctx context.Context, userID string) (*models.ChatSession, bool, error) {
	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	records, err := s.store.Query(ctx, store.TableChatSessions, store.Fields{"user_id": userID})
	if err != nil {
		return nil, false, err
	}
	if len(records) == 0 {
		return nil, false, nil
	}

	// last write wins if duplicates slipped in
	return sessionFromRecord(records[len(records)-1]), true, nil
}

func (s *SessionService) writeRemote(ctx context.Context, session models.ChatSession) (string, error) {
	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	fields := store.Fields{
		"user_id":        session.UserID,
		"mode":           string(session.Mode),
		"last_active_at": session.LastActiveAt.Format(time.RFC3339),
	}

	records, err := s.store.Query(ctx, store.TableChatSessions, store.Fields{"user_id": session.UserID})
	if err != nil {
		return "", err
	}
	if len(records) > 0 {
		updated, err := s.store.Update(ctx, store.TableChatSessions, records[len(records)-1].ID, fields)
		if err != nil {
			return "", err
		}
		return updated.ID, nil
	}

	created, err := s.store.Create(ctx, store.TableChatSessions, fields)
	if err != nil {
		return "", err
	}
	return created.ID, nil
}

func sessionFromRecord(rec store.Record) *models.ChatSession {
	session := &models.ChatSession{
		UserID:         rec.Fields.String("user_id"),
		Mode:           models.ChatMode(rec.Fields.String("mode")),
		RemoteRecordID: rec.ID,
	}
	if !session.Mode.Valid() {
		session.Mode = models.ChatModeAuto
	}
	if t, err := time.Parse(time.RFC3339, rec.Fields.String("last_active_at")); err == nil {
		session.LastActiveAt = t
	}
	return session
}
