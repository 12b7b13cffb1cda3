package knowledge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"knowledgebot/internal/models"
)

// Fetcher pulls every configured document concurrently and merges them
// into a snapshot ordered like the configured id list.
type Fetcher struct {
	source      Source
	documentIDs []string
	callTimeout time.Duration
	clock       clockwork.Clock
}

// FetcherOption customizes a Fetcher
type FetcherOption func(*Fetcher)

// WithCallTimeout bounds every individual remote call (0 disables)
func WithCallTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) { f.callTimeout = d }
}

// WithClock overrides the clock used for fetch timestamps
func WithClock(clock clockwork.Clock) FetcherOption {
	return func(f *Fetcher) { f.clock = clock }
}

// NewFetcher creates a fetcher for documentIDs
func NewFetcher(source Source, documentIDs []string, opts ...FetcherOption) *Fetcher {
	ids := make([]string, len(documentIDs))
	copy(ids, documentIDs)

	f := &Fetcher{
		source:      source,
		documentIDs: ids,
		clock:       clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

type fetchOutcome struct {
	doc   *models.KnowledgeDocument
	stamp string
	err   error
}

// FetchAll fetches every document. A failing document is left out of the
// snapshot and reported in Failed; FetchAll itself never fails.
func (f *Fetcher) FetchAll(ctx context.Context) *models.KnowledgeSnapshot {
	if len(f.documentIDs) == 0 {
		return placeholderSnapshot(f.clock.Now())
	}

	outcomes := make([]fetchOutcome, len(f.documentIDs))
	var wg sync.WaitGroup
	for i, id := range f.documentIDs {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			doc, stamp, err := f.fetchDocument(ctx, id)
			outcomes[i] = fetchOutcome{doc: doc, stamp: stamp, err: err}
		}(i, id)
	}
	wg.Wait()

	docs := make([]models.KnowledgeDocument, 0, len(outcomes))
	var failed []models.DocumentFailure
	for i, o := range outcomes {
		if o.err != nil {
			failed = append(failed, models.DocumentFailure{
				ID:               f.documentIDs[i],
				Error:            o.err.Error(),
				RemoteModifiedAt: o.stamp,
			})
			continue
		}
		docs = append(docs, *o.doc)
	}

	return BuildSnapshot(docs, failed, f.clock.Now())
}

// fetchDocument also returns the remote stamp when metadata succeeded, so a
// document whose content fails still counts toward the stored stamp.
func (f *Fetcher) fetchDocument(ctx context.Context, id string) (*models.KnowledgeDocument, string, error) {
	meta, err := f.metadata(ctx, id)
	if err != nil {
		return nil, "", err
	}

	callCtx, cancel := f.callContext(ctx)
	defer cancel()
	content, err := f.source.RetrieveContent(callCtx, id)
	if err != nil {
		return nil, meta.LastModifiedAt, fmt.Errorf("content %s: %w", id, err)
	}

	title := meta.Title
	if title == "" {
		title = id
	}

	return &models.KnowledgeDocument{
		ID:               id,
		Title:            title,
		Content:          content,
		FetchedAt:        f.clock.Now(),
		RemoteModifiedAt: meta.LastModifiedAt,
	}, meta.LastModifiedAt, nil
}

func (f *Fetcher) metadata(ctx context.Context, id string) (*Metadata, error) {
	callCtx, cancel := f.callContext(ctx)
	defer cancel()
	meta, err := f.source.RetrieveMetadata(callCtx, id)
	if err != nil {
		return nil, fmt.Errorf("metadata %s: %w", id, err)
	}
	if meta == nil {
		return nil, fmt.Errorf("metadata %s: empty response", id)
	}
	return meta, nil
}

// LatestRemoteModifiedAt reads metadata only and returns the newest stamp.
// Documents whose metadata call fails are skipped; ok is false when no
// stamp could be read at all.
func (f *Fetcher) LatestRemoteModifiedAt(ctx context.Context) (string, bool) {
	if len(f.documentIDs) == 0 {
		return "", false
	}

	stamps := make([]string, len(f.documentIDs))
	var wg sync.WaitGroup
	for i, id := range f.documentIDs {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			if meta, err := f.metadata(ctx, id); err == nil {
				stamps[i] = meta.LastModifiedAt
			}
		}(i, id)
	}
	wg.Wait()

	latest := MaxModified(stamps)
	return latest, latest != ""
}

func (f *Fetcher) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, f.callTimeout)
}
