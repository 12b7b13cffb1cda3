package answer

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when GEMINI_MODEL is unset
const DefaultGeminiModel = "gemini-2.0-flash"

// GeminiGenerator calls the Gemini API, one memoized client per API key
type GeminiGenerator struct {
	temperature float32

	mu      sync.Mutex
	clients map[string]*genai.Client
}

// NewGeminiGenerator creates a Gemini-backed generator
func NewGeminiGenerator(temperature float32) *GeminiGenerator {
	return &GeminiGenerator{
		temperature: temperature,
		clients:     make(map[string]*genai.Client),
	}
}

func (g *GeminiGenerator) client(ctx context.Context, apiKey string) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if c, ok := g.clients[apiKey]; ok {
		return c, nil
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	g.clients[apiKey] = c
	return c, nil
}

// Generate sends the preamble as system instruction and the question as user content
func (g *GeminiGenerator) Generate(ctx context.Context, model, preamble, question, credential string) (string, error) {
	c, err := g.client(ctx, credential)
	if err != nil {
		return "", err
	}
	if model == "" {
		model = DefaultGeminiModel
	}

	resp, err := c.Models.GenerateContent(ctx, model, genai.Text(question), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(preamble, genai.RoleUser),
		Temperature:       genai.Ptr(g.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return resp.Text(), nil
}
