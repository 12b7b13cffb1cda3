package jobs

import (
	"context"
	"log"
	"time"

	"knowledgebot/internal/models"
)

// KnowledgeRefreshJobName is the scheduler name of the warm-up job
const KnowledgeRefreshJobName = "knowledge-refresh"

// KnowledgeWarmer is the knowledge cache as seen by the job
type KnowledgeWarmer interface {
	Get(ctx context.Context) (*models.KnowledgeSnapshot, bool)
}

// KnowledgeRefreshJob calls the cache on a schedule so the TTL refill and the
// remote-modification check happen here instead of on a user's message.
type KnowledgeRefreshJob struct {
	cache   KnowledgeWarmer
	timeout time.Duration
}

// NewKnowledgeRefreshJob creates the job; timeout bounds one run (0 disables)
func NewKnowledgeRefreshJob(cache KnowledgeWarmer, timeout time.Duration) *KnowledgeRefreshJob {
	return &KnowledgeRefreshJob{cache: cache, timeout: timeout}
}

// Run warms the cache once
func (j *KnowledgeRefreshJob) Run(ctx context.Context) error {
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	snapshot, hit := j.cache.Get(ctx)
	if hit {
		log.Printf("📚 [KNOWLEDGE] Cache current (%d documents)", len(snapshot.Documents))
		return nil
	}

	log.Printf("📚 [KNOWLEDGE] Cache refilled: %d documents, %d failed", len(snapshot.Documents), len(snapshot.Failed))
	for _, f := range snapshot.Failed {
		log.Printf("⚠️  [KNOWLEDGE] Document %s excluded: %s", f.ID, f.Error)
	}
	return nil
}
