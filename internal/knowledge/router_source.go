package knowledge

import (
	"context"
	"net/url"
	"regexp"
	"strings"
)

var notionIDPattern = regexp.MustCompile(`([0-9a-fA-F]{32})$`)

// RouterSource dispatches each document id to the source that serves it:
// Notion page URLs and bare ids go to Notion, other URLs to the web source.
type RouterSource struct {
	notion Source
	web    Source
}

// NewRouterSource creates a dispatching source. Either side may be nil.
func NewRouterSource(notion, web Source) *RouterSource {
	return &RouterSource{notion: notion, web: web}
}

func (r *RouterSource) RetrieveMetadata(ctx context.Context, id string) (*Metadata, error) {
	source, resolved := r.route(id)
	if source == nil {
		return nil, ErrSourceNotConfigured
	}
	return source.RetrieveMetadata(ctx, resolved)
}

func (r *RouterSource) RetrieveContent(ctx context.Context, id string) (string, error) {
	source, resolved := r.route(id)
	if source == nil {
		return "", ErrSourceNotConfigured
	}
	return source.RetrieveContent(ctx, resolved)
}

func (r *RouterSource) route(id string) (Source, string) {
	if !IsURLDocumentID(id) {
		return r.notion, id
	}
	if pageID, ok := notionPageIDFromURL(id); ok {
		return r.notion, pageID
	}
	return r.web, id
}

// notionPageIDFromURL extracts the trailing 32-hex page id of a notion.so / notion.site link
func notionPageIDFromURL(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if host != "notion.so" && !strings.HasSuffix(host, ".notion.so") && !strings.HasSuffix(host, ".notion.site") {
		return "", false
	}
	match := notionIDPattern.FindStringSubmatch(strings.TrimRight(u.Path, "/"))
	if match == nil {
		return "", false
	}
	return strings.ToLower(match[1]), true
}

// IsNotionDocumentID reports whether RouterSource sends id to Notion
func IsNotionDocumentID(id string) bool {
	if !IsURLDocumentID(id) {
		return true
	}
	_, ok := notionPageIDFromURL(id)
	return ok
}
