package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"knowledgebot/internal/cache"
	"knowledgebot/internal/models"
	"knowledgebot/internal/store"
)

// SystemConfigTTL is how long the loaded config is reused
const SystemConfigTTL = 5 * time.Minute

// SystemConfigRetryBackoff is how long the last known config is served
// after a failed load before the store is queried again.
const SystemConfigRetryBackoff = 30 * time.Second

// SystemConfigService loads the singleton system_config record.
// Without a store the config is always nil.
type SystemConfigService struct {
	store        store.RecordStore
	slot         *cache.Slot[*models.SystemConfig]
	storeTimeout time.Duration
	group        singleflight.Group

	mu        sync.RWMutex
	lastKnown *models.SystemConfig
}

// NewSystemConfigService creates the service. st may be nil.
func NewSystemConfigService(st store.RecordStore, storeTimeout time.Duration, clock clockwork.Clock) *SystemConfigService {
	return &SystemConfigService{
		store:        st,
		slot:         cache.NewSlot[*models.SystemConfig](clock),
		storeTimeout: storeTimeout,
	}
}

// Get returns the current config, or nil when no store or no record exists.
// A failed load serves the last config that loaded successfully and keeps
// serving it for SystemConfigRetryBackoff.
func (s *SystemConfigService) Get(ctx context.Context) *models.SystemConfig {
	if s.store == nil {
		return nil
	}
	if cfg, ok := s.slot.Get(); ok {
		return cfg
	}

	v, _, _ := s.group.Do("load", func() (interface{}, error) {
		cfg, err := s.load(ctx)
		if err != nil {
			log.Printf("⚠️  [CONFIG] Failed to load system config, serving last known for %s: %v", SystemConfigRetryBackoff, err)
			s.mu.RLock()
			last := s.lastKnown
			s.mu.RUnlock()
			s.slot.Set(last, SystemConfigRetryBackoff)
			return last, nil
		}
		s.slot.Set(cfg, SystemConfigTTL)
		s.mu.Lock()
		s.lastKnown = cfg
		s.mu.Unlock()
		return cfg, nil
	})
	cfg, _ := v.(*models.SystemConfig)
	return cfg
}

// Invalidate drops the cached config so the next Get reloads it
func (s *SystemConfigService) Invalidate() {
	s.slot.Invalidate()
}

func (s *SystemConfigService) load(ctx context.Context) (*models.SystemConfig, error) {
	if s.storeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.storeTimeout)
		defer cancel()
	}

	records, err := s.store.Query(ctx, store.TableSystemConfig, nil)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return systemConfigFromRecord(records[0]), nil
}

func systemConfigFromRecord(rec store.Record) *models.SystemConfig {
	cfg := &models.SystemConfig{
		ModelName:        rec.Fields.String("model_name"),
		SystemPrompt:     rec.Fields.String("system_prompt"),
		HandoverKeywords: rec.Fields.StringList("handover_keywords"),
		AdminUserID:      rec.Fields.String("admin_user_id"),
	}
	// a record without the flag does not switch the bot off
	if enabled, ok := rec.Fields.Bool("ai_enabled"); ok {
		cfg.AIEnabled = enabled
	} else {
		cfg.AIEnabled = true
	}
	if minutes, ok := rec.Fields.Int("auto_switch_minutes"); ok && minutes > 0 {
		cfg.AutoSwitchMinutes = minutes
	}
	return cfg
}
