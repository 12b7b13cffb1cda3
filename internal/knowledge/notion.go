package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"knowledgebot/internal/utils"
)

const (
	defaultNotionBaseURL = "https://api.notion.com"
	notionVersion        = "2022-06-28"
	notionPageSize       = 100
	maxNotionPages       = 50
)

// NotionSource reads pages from the Notion REST API
type NotionSource struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewNotionSource creates a Notion source. An empty apiKey makes every call
// fail with ErrSourceNotConfigured.
func NewNotionSource(apiKey string) *NotionSource {
	return &NotionSource{
		apiKey:  apiKey,
		baseURL: defaultNotionBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// WithBaseURL points the source at another API root (tests, proxies)
func (s *NotionSource) WithBaseURL(baseURL string) *NotionSource {
	s.baseURL = strings.TrimRight(baseURL, "/")
	return s
}

type notionPage struct {
	ID             string                    `json:"id"`
	LastEditedTime string                    `json:"last_edited_time"`
	Properties     map[string]notionProperty `json:"properties"`
}

type notionProperty struct {
	Type  string           `json:"type"`
	Title []notionRichText `json:"title"`
}

type notionRichText struct {
	PlainText string `json:"plain_text"`
	Href      string `json:"href"`
}

type notionBlockList struct {
	Results    []json.RawMessage `json:"results"`
	HasMore    bool              `json:"has_more"`
	NextCursor string            `json:"next_cursor"`
}

type notionBlock struct {
	ID          string             `json:"id"`
	Type        string             `json:"type"`
	HasChildren bool               `json:"has_children"`
	Content     notionBlockContent `json:"-"`
	Children    []notionBlock      `json:"-"`
}

type notionBlockContent struct {
	RichText []notionRichText `json:"rich_text"`
	Checked  bool             `json:"checked"`
	Language string           `json:"language"`
}

type notionError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RetrieveMetadata reads the page object only, never its blocks
func (s *NotionSource) RetrieveMetadata(ctx context.Context, id string) (*Metadata, error) {
	if s.apiKey == "" {
		return nil, ErrSourceNotConfigured
	}

	var page notionPage
	if err := s.get(ctx, "/v1/pages/"+url.PathEscape(id), nil, &page); err != nil {
		return nil, err
	}

	return &Metadata{
		Title:          page.title(),
		LastModifiedAt: page.LastEditedTime,
	}, nil
}

// RetrieveContent renders the page blocks to markdown and returns them as plain text
func (s *NotionSource) RetrieveContent(ctx context.Context, id string) (string, error) {
	if s.apiKey == "" {
		return "", ErrSourceNotConfigured
	}

	blocks, err := s.listBlocks(ctx, id)
	if err != nil {
		return "", err
	}

	// one level of children
	for i := range blocks {
		if !blocks[i].HasChildren || blocks[i].Type == "child_page" || blocks[i].Type == "child_database" {
			continue
		}
		children, err := s.listBlocks(ctx, blocks[i].ID)
		if err != nil {
			return "", fmt.Errorf("failed to load children of block %s: %w", blocks[i].ID, err)
		}
		blocks[i].Children = children
	}

	markdown := renderNotionBlocks(blocks, "")
	text := utils.MarkdownToPlainText(markdown)
	return utils.TruncateText(text, utils.MaxDocumentTextSize), nil
}

func (s *NotionSource) listBlocks(ctx context.Context, blockID string) ([]notionBlock, error) {
	var blocks []notionBlock
	cursor := ""

	for page := 0; page < maxNotionPages; page++ {
		query := url.Values{}
		query.Set("page_size", fmt.Sprintf("%d", notionPageSize))
		if cursor != "" {
			query.Set("start_cursor", cursor)
		}

		var list notionBlockList
		if err := s.get(ctx, "/v1/blocks/"+url.PathEscape(blockID)+"/children", query, &list); err != nil {
			return nil, err
		}

		for _, raw := range list.Results {
			block, err := parseNotionBlock(raw)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, block)
		}

		if !list.HasMore || list.NextCursor == "" {
			return blocks, nil
		}
		cursor = list.NextCursor
	}

	return blocks, nil
}

func (s *NotionSource) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	endpoint := s.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Notion-Version", notionVersion)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("notion request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4*utils.MaxDocumentTextSize))
	if err != nil {
		return fmt.Errorf("failed to read notion response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr notionError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("notion API error %d (%s): %s", resp.StatusCode, apiErr.Code, apiErr.Message)
		}
		return fmt.Errorf("notion API error %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode notion response: %w", err)
	}
	return nil
}

func (p notionPage) title() string {
	for _, prop := range p.Properties {
		if prop.Type == "title" {
			return plainText(prop.Title)
		}
	}
	return ""
}

func parseNotionBlock(raw json.RawMessage) (notionBlock, error) {
	var block notionBlock
	if err := json.Unmarshal(raw, &block); err != nil {
		return block, fmt.Errorf("failed to decode notion block: %w", err)
	}

	var payloads map[string]json.RawMessage
	if err := json.Unmarshal(raw, &payloads); err != nil {
		return block, fmt.Errorf("failed to decode notion block: %w", err)
	}
	if payload, ok := payloads[block.Type]; ok {
		// unknown payload shapes are tolerated; the block renders empty
		_ = json.Unmarshal(payload, &block.Content)
	}
	return block, nil
}

func plainText(parts []notionRichText) string {
	var b strings.Builder
	for _, part := range parts {
		b.WriteString(part.PlainText)
	}
	return b.String()
}

func richTextMarkdown(parts []notionRichText) string {
	var b strings.Builder
	for _, part := range parts {
		if part.Href != "" && part.PlainText != "" && part.PlainText != part.Href {
			fmt.Fprintf(&b, "[%s](%s)", part.PlainText, part.Href)
			continue
		}
		b.WriteString(part.PlainText)
	}
	return b.String()
}

func isNotionListBlock(blockType string) bool {
	switch blockType {
	case "bulleted_list_item", "numbered_list_item", "to_do", "toggle":
		return true
	}
	return false
}

// renderNotionBlocks turns blocks into markdown. Consecutive list items stay
// on adjacent lines so they form a single list.
func renderNotionBlocks(blocks []notionBlock, indent string) string {
	var b strings.Builder
	prevList := false

	for _, block := range blocks {
		rendered := renderNotionBlock(block, indent)
		if rendered == "" {
			continue
		}
		isList := isNotionListBlock(block.Type)
		if b.Len() > 0 {
			if isList && prevList {
				b.WriteString("\n")
			} else {
				b.WriteString("\n\n")
			}
		}
		b.WriteString(rendered)
		prevList = isList
	}

	return b.String()
}

func renderNotionBlock(block notionBlock, indent string) string {
	text := richTextMarkdown(block.Content.RichText)

	var line string
	switch block.Type {
	case "paragraph":
		line = indent + text
	case "heading_1":
		line = indent + "# " + text
	case "heading_2":
		line = indent + "## " + text
	case "heading_3":
		line = indent + "### " + text
	case "bulleted_list_item", "toggle":
		line = indent + "- " + text
	case "numbered_list_item":
		line = indent + "1. " + text
	case "to_do":
		box := "[ ]"
		if block.Content.Checked {
			box = "[x]"
		}
		line = indent + "- " + box + " " + text
	case "quote", "callout":
		line = indent + "> " + text
	case "code":
		code := plainText(block.Content.RichText)
		line = indent + "```" + block.Content.Language + "\n" + code + "\n" + indent + "```"
	case "divider":
		line = indent + "---"
	default:
		line = ""
	}

	if strings.TrimSpace(line) == "" && len(block.Children) == 0 {
		return ""
	}

	if len(block.Children) > 0 {
		childIndent := indent
		if isNotionListBlock(block.Type) {
			childIndent = indent + "  "
		}
		children := renderNotionBlocks(block.Children, childIndent)
		if children != "" {
			if line == "" {
				return children
			}
			sep := "\n\n"
			if isNotionListBlock(block.Type) {
				sep = "\n"
			}
			line += sep + children
		}
	}

	return line
}
