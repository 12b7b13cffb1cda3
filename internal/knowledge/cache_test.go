package knowledge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

// fakeClock is the part of clockwork's fake clock the tests drive
type fakeClock interface {
	clockwork.Clock
	Advance(d time.Duration)
}

func newTestCache(t *testing.T) (*Cache, *fakeSource, fakeClock) {
	t.Helper()
	docs := map[string]*fakeDoc{
		"faq":    {title: "FAQ", content: "questions", modified: "2024-06-01T08:00:00Z"},
		"prices": {title: "Prices", content: "numbers", modified: "2024-06-02T08:00:00Z"},
	}
	source := newFakeSource(docs)
	clock := clockwork.NewFakeClock()
	fetcher := NewFetcher(source, []string{"faq", "prices"}, WithClock(clock))
	return NewCache(fetcher, time.Hour, clock), source, clock
}

func TestCache_HitWithinTTL(t *testing.T) {
	c, source, clock := newTestCache(t)
	ctx := context.Background()

	first, hit := c.Get(ctx)
	if hit {
		t.Error("Expected first get to miss")
	}
	clock.Advance(10 * time.Minute)
	second, hit := c.Get(ctx)
	if !hit {
		t.Error("Expected second get to hit")
	}

	if first.CombinedText != second.CombinedText {
		t.Error("Expected identical snapshots")
	}
	// one content call per document, one fetch
	if got := source.contentCalls.Load(); got != 2 {
		t.Errorf("Expected 2 content calls (one fetch), got %d", got)
	}
}

func TestCache_RefetchWhenRemoteAdvances(t *testing.T) {
	c, source, clock := newTestCache(t)
	ctx := context.Background()

	c.Get(ctx)
	clock.Advance(time.Minute)
	source.setModified("faq", "2024-06-03T08:00:00Z")

	snapshot, hit := c.Get(ctx)
	if hit {
		t.Error("Expected a refetch after the remote stamp advanced")
	}
	if got := source.contentCalls.Load(); got != 4 {
		t.Errorf("Expected exactly one refetch (4 content calls), got %d", got)
	}
	if snapshot.Documents[0].RemoteModifiedAt != "2024-06-03T08:00:00Z" {
		t.Errorf("Expected new stamp in snapshot, got %s", snapshot.Documents[0].RemoteModifiedAt)
	}

	if _, hit := c.Get(ctx); !hit {
		t.Error("Expected hit once the new stamp is stored")
	}
	if got := source.contentCalls.Load(); got != 4 {
		t.Errorf("Expected no further refetch, got %d content calls", got)
	}
}

func TestCache_FailedStalenessCheckKeepsEntry(t *testing.T) {
	c, source, clock := newTestCache(t)
	ctx := context.Background()

	original, _ := c.Get(ctx)
	source.setMetaErr("faq", errors.New("timeout"))
	source.setMetaErr("prices", errors.New("timeout"))
	clock.Advance(30 * time.Minute)

	snapshot, hit := c.Get(ctx)
	if !hit {
		t.Error("Expected cached snapshot to be served when the check fails")
	}
	if snapshot != original {
		t.Error("Expected the very same snapshot")
	}
	if got := source.contentCalls.Load(); got != 2 {
		t.Errorf("Expected no refetch, got %d content calls", got)
	}
	if !c.State().Filled {
		t.Error("Expected cache to stay filled")
	}
}

func TestCache_TTLExpiryRefetches(t *testing.T) {
	c, source, clock := newTestCache(t)
	ctx := context.Background()

	c.Get(ctx)
	clock.Advance(time.Hour)

	if _, hit := c.Get(ctx); hit {
		t.Error("Expected miss after TTL")
	}
	if got := source.contentCalls.Load(); got != 4 {
		t.Errorf("Expected a second full fetch, got %d content calls", got)
	}
}

func TestCache_RefreshForcesFetch(t *testing.T) {
	c, source, _ := newTestCache(t)
	ctx := context.Background()

	c.Get(ctx)
	snapshot := c.Refresh(ctx)

	if len(snapshot.Documents) != 2 {
		t.Errorf("Expected 2 documents, got %d", len(snapshot.Documents))
	}
	if got := source.contentCalls.Load(); got != 4 {
		t.Errorf("Expected refresh to refetch, got %d content calls", got)
	}
	state := c.State()
	if !state.Filled || state.LastRemoteModifiedAt != "2024-06-02T08:00:00Z" {
		t.Errorf("Unexpected state %+v", state)
	}
}

func TestCache_FailingContentDoesNotForceRefetch(t *testing.T) {
	docs := map[string]*fakeDoc{
		"faq":    {title: "FAQ", content: "questions", modified: "2024-06-01T08:00:00Z"},
		"broken": {title: "Broken", modified: "2024-06-05T08:00:00Z", contentErr: errors.New("403 forbidden")},
	}
	source := newFakeSource(docs)
	clock := clockwork.NewFakeClock()
	c := NewCache(NewFetcher(source, []string{"faq", "broken"}, WithClock(clock)), time.Hour, clock)
	ctx := context.Background()

	first, _ := c.Get(ctx)
	if len(first.Documents) != 1 || len(first.Failed) != 1 {
		t.Fatalf("Expected 1 document and 1 failure, got %d/%d", len(first.Documents), len(first.Failed))
	}
	if first.Failed[0].RemoteModifiedAt != "2024-06-05T08:00:00Z" {
		t.Errorf("Expected failure to carry the remote stamp, got %q", first.Failed[0].RemoteModifiedAt)
	}

	hits := 0
	for i := 0; i < 4; i++ {
		clock.Advance(time.Second)
		if _, hit := c.Get(ctx); hit {
			hits++
		}
	}

	if hits != 4 {
		t.Errorf("Expected 4 hits, got %d", hits)
	}
	if got := source.contentCalls.Load(); got != 2 {
		t.Errorf("Expected a single fetch (2 content calls), got %d", got)
	}
	if got := c.State().LastRemoteModifiedAt; got != "2024-06-05T08:00:00Z" {
		t.Errorf("Expected stored stamp to include the failed document, got %q", got)
	}
}

func TestCache_FailingContentRefetchesWhenItsStampAdvances(t *testing.T) {
	docs := map[string]*fakeDoc{
		"faq":    {title: "FAQ", content: "questions", modified: "2024-06-01T08:00:00Z"},
		"broken": {title: "Broken", modified: "2024-06-05T08:00:00Z", contentErr: errors.New("500")},
	}
	source := newFakeSource(docs)
	clock := clockwork.NewFakeClock()
	c := NewCache(NewFetcher(source, []string{"faq", "broken"}, WithClock(clock)), time.Hour, clock)
	ctx := context.Background()

	c.Get(ctx)
	clock.Advance(time.Minute)
	source.setModified("broken", "2024-06-06T08:00:00Z")

	if _, hit := c.Get(ctx); hit {
		t.Error("Expected a refetch once the failing document changed remotely")
	}
	if got := source.contentCalls.Load(); got != 4 {
		t.Errorf("Expected exactly one refetch (4 content calls), got %d", got)
	}
}

func TestCache_StateAfterExpiry(t *testing.T) {
	c, _, clock := newTestCache(t)
	c.Get(context.Background())

	clock.Advance(2 * time.Hour)
	state := c.State()
	if state.Filled || !state.Stale {
		t.Errorf("Expected expired snapshot reported as stale, got %+v", state)
	}
	if state.DocumentCount != 2 {
		t.Errorf("Expected last snapshot described, got %d documents", state.DocumentCount)
	}
}
