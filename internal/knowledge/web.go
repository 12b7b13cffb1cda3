package knowledge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/markusmobius/go-trafilatura"

	"knowledgebot/internal/utils"
)

const (
	defaultWebUserAgent = "knowledgebot/1.0"
	maxWebBodySize      = 10 * 1024 * 1024
)

// ErrRobotsDisallowed is returned when robots.txt forbids fetching a document URL
var ErrRobotsDisallowed = errors.New("blocked by robots.txt")

// WebSource treats http(s) URLs as knowledge documents
type WebSource struct {
	client    *http.Client
	robots    *RobotsChecker
	userAgent string
}

// NewWebSource creates a web source. A nil client gets a 30s default.
func NewWebSource(client *http.Client) *WebSource {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &WebSource{
		client:    client,
		robots:    NewRobotsChecker(defaultWebUserAgent, client),
		userAgent: defaultWebUserAgent,
	}
}

// RetrieveMetadata issues a HEAD request and reads Last-Modified. A 405 or
// 501 answer yields metadata with an empty stamp.
func (s *WebSource) RetrieveMetadata(ctx context.Context, id string) (*Metadata, error) {
	target, err := parseDocumentURL(id)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HEAD %s failed: %w", target.Host, err)
	}
	resp.Body.Close()

	// Some servers reject HEAD outright; the document is still readable with
	// GET, it just has no stamp to compare.
	if resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented {
		return &Metadata{Title: urlTitle(target)}, nil
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HEAD %s returned %d", target.Host, resp.StatusCode)
	}

	return &Metadata{
		Title:          urlTitle(target),
		LastModifiedAt: normalizeHTTPDate(resp.Header.Get("Last-Modified")),
	}, nil
}

// RetrieveContent downloads the URL and extracts its main text
func (s *WebSource) RetrieveContent(ctx context.Context, id string) (string, error) {
	target, err := parseDocumentURL(id)
	if err != nil {
		return "", err
	}

	allowed, err := s.robots.Allowed(ctx, target)
	if err != nil {
		return "", err
	}
	if !allowed {
		return "", fmt.Errorf("%s: %w", target.String(), ErrRobotsDisallowed)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("GET %s failed: %w", target.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GET %s returned %d", target.Host, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxWebBodySize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > maxWebBodySize {
		return "", fmt.Errorf("document exceeds %d bytes", maxWebBodySize)
	}

	text, err := extractText(target, resp.Header.Get("Content-Type"), body)
	if err != nil {
		return "", err
	}
	return utils.TruncateText(utils.NormalizeText(text), utils.MaxDocumentTextSize), nil
}

func extractText(target *url.URL, contentType string, body []byte) (string, error) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}

	switch {
	case mediaType == "text/html" || mediaType == "application/xhtml+xml":
		result, err := trafilatura.Extract(bytes.NewReader(body), trafilatura.Options{OriginalURL: target})
		if err != nil {
			return "", fmt.Errorf("failed to extract content: %w", err)
		}
		if result == nil || result.ContentText == "" {
			return "", fmt.Errorf("no content extracted from %s", target.String())
		}
		return result.ContentText, nil
	case mediaType == "text/markdown" || strings.HasSuffix(target.Path, ".md"):
		return utils.MarkdownToPlainText(string(body)), nil
	case strings.HasPrefix(mediaType, "text/"):
		return string(body), nil
	case mediaType == "application/pdf":
		return utils.PDFToText(body)
	case mediaType == "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return utils.DOCXToText(body)
	case mediaType == "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return utils.XLSXToText(body)
	}

	return "", fmt.Errorf("unsupported content type: %s", contentType)
}

func parseDocumentURL(id string) (*url.URL, error) {
	target, err := url.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid document URL: %w", err)
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, fmt.Errorf("only HTTP/HTTPS document URLs are supported, got: %s", target.Scheme)
	}
	if target.Host == "" {
		return nil, fmt.Errorf("document URL has no host: %s", id)
	}
	return target, nil
}

func urlTitle(target *url.URL) string {
	return strings.TrimRight(target.Host+target.Path, "/")
}

// normalizeHTTPDate converts an HTTP date to RFC3339 UTC; unparseable values are dropped
func normalizeHTTPDate(value string) string {
	if value == "" {
		return ""
	}
	t, err := http.ParseTime(value)
	if err != nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// IsURLDocumentID reports whether id should be served by WebSource
func IsURLDocumentID(id string) bool {
	lower := strings.ToLower(id)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
