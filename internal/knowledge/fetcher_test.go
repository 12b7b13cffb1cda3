package knowledge

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestFetchAll_OrderIndependentOfCompletion(t *testing.T) {
	ids := []string{"a", "b", "c", "d"}
	docs := map[string]*fakeDoc{}
	for i, id := range ids {
		docs[id] = &fakeDoc{
			title:    "Title " + id,
			modified: "2024-01-0" + string(rune('1'+i)) + "T00:00:00Z",
			content:  "content of " + id,
			// earlier documents finish last
			delay: time.Duration(len(ids)-i) * 10 * time.Millisecond,
		}
	}

	clock := clockwork.NewFakeClock()
	fetcher := NewFetcher(newFakeSource(docs), ids, WithClock(clock))

	first := fetcher.FetchAll(context.Background())
	if len(first.Documents) != len(ids) {
		t.Fatalf("Expected %d documents, got %d", len(ids), len(first.Documents))
	}
	for i, id := range ids {
		if first.Documents[i].ID != id {
			t.Errorf("Position %d: expected %s, got %s", i, id, first.Documents[i].ID)
		}
	}

	lastIdx := -1
	for _, id := range ids {
		idx := strings.Index(first.CombinedText, "=== Title "+id+" ===")
		if idx <= lastIdx {
			t.Fatalf("Title block for %s out of order in combined text", id)
		}
		lastIdx = idx
	}

	second := fetcher.FetchAll(context.Background())
	if first.CombinedText != second.CombinedText {
		t.Error("Expected byte-identical combined text for unchanged content at the same instant")
	}
}

func TestFetchAll_FailingDocumentExcluded(t *testing.T) {
	docs := map[string]*fakeDoc{
		"A": {title: "Alpha", content: "alpha", contentErr: errors.New("boom")},
		"B": {title: "Beta", content: "beta body", modified: "2024-05-01T10:00:00Z"},
	}
	fetcher := NewFetcher(newFakeSource(docs), []string{"A", "B"})

	snapshot := fetcher.FetchAll(context.Background())

	if len(snapshot.Documents) != 1 || snapshot.Documents[0].ID != "B" {
		t.Fatalf("Expected only document B, got %+v", snapshot.Documents)
	}
	if !strings.HasPrefix(snapshot.CombinedText, "=== Beta ===\n") {
		t.Errorf("Expected combined text to begin with Beta block, got %q", snapshot.CombinedText)
	}
	if len(snapshot.Failed) != 1 || snapshot.Failed[0].ID != "A" {
		t.Errorf("Expected A reported as failed, got %+v", snapshot.Failed)
	}
}

func TestFetchAll_NoDocumentsConfigured(t *testing.T) {
	fetcher := NewFetcher(newFakeSource(nil), nil)

	snapshot := fetcher.FetchAll(context.Background())

	if snapshot.CombinedText != EmptyKnowledgePlaceholder {
		t.Errorf("Expected placeholder, got %q", snapshot.CombinedText)
	}
	if len(snapshot.Documents) != 0 {
		t.Errorf("Expected no documents, got %d", len(snapshot.Documents))
	}
}

func TestFetchAll_CallTimeout(t *testing.T) {
	docs := map[string]*fakeDoc{
		"slow": {title: "Slow", content: "x", delay: time.Second},
		"fast": {title: "Fast", content: "y"},
	}
	fetcher := NewFetcher(newFakeSource(docs), []string{"slow", "fast"}, WithCallTimeout(20*time.Millisecond))

	snapshot := fetcher.FetchAll(context.Background())

	if len(snapshot.Documents) != 1 || snapshot.Documents[0].ID != "fast" {
		t.Fatalf("Expected only the fast document, got %+v", snapshot.Documents)
	}
}

func TestLatestRemoteModifiedAt(t *testing.T) {
	docs := map[string]*fakeDoc{
		"a": {title: "A", modified: "2024-03-01T00:00:00Z"},
		"b": {title: "B", modified: "2024-03-05T00:00:00Z"},
		"c": {title: "C", metaErr: errors.New("unavailable")},
	}
	source := newFakeSource(docs)
	fetcher := NewFetcher(source, []string{"a", "b", "c"})

	latest, ok := fetcher.LatestRemoteModifiedAt(context.Background())
	if !ok || latest != "2024-03-05T00:00:00Z" {
		t.Errorf("Expected 2024-03-05T00:00:00Z, got %q (ok=%v)", latest, ok)
	}
	if source.contentCalls.Load() != 0 {
		t.Error("Expected metadata check not to download content")
	}

	source.setMetaErr("a", errors.New("down"))
	source.setMetaErr("b", errors.New("down"))
	if _, ok := fetcher.LatestRemoteModifiedAt(context.Background()); ok {
		t.Error("Expected absent result when every metadata call fails")
	}
}

func TestCompareModified(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"2024-01-01T00:00:00Z", "2024-01-02T00:00:00Z", -1},
		{"2024-01-01T09:00:00+09:00", "2024-01-01T00:00:00Z", 0},
		{"1700000000", "999", 1},
		{"abc", "abd", -1},
		{"same", "same", 0},
	}
	for _, tt := range tests {
		if got := CompareModified(tt.a, tt.b); got != tt.want {
			t.Errorf("CompareModified(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}

	if got := MaxModified([]string{"", "2024-01-02T00:00:00Z", "2024-01-01T00:00:00Z"}); got != "2024-01-02T00:00:00Z" {
		t.Errorf("Unexpected max %q", got)
	}
}
