package answer

import (
	"context"
	"fmt"
	"sync"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultOpenAIModel is used when OPENAI_MODEL is unset
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIGenerator calls any OpenAI-compatible chat completions endpoint
type OpenAIGenerator struct {
	baseURL     string
	temperature float64

	mu      sync.Mutex
	clients map[string]*openai.Client
}

// NewOpenAIGenerator creates a generator. An empty baseURL uses api.openai.com.
func NewOpenAIGenerator(baseURL string, temperature float64) *OpenAIGenerator {
	return &OpenAIGenerator{
		baseURL:     baseURL,
		temperature: temperature,
		clients:     make(map[string]*openai.Client),
	}
}

func (g *OpenAIGenerator) client(apiKey string) *openai.Client {
	g.mu.Lock()
	defer g.mu.Unlock()

	if c, ok := g.clients[apiKey]; ok {
		return c
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// the router owns retries
		option.WithMaxRetries(0),
	}
	if g.baseURL != "" {
		opts = append(opts, option.WithBaseURL(g.baseURL))
	}

	c := openai.NewClient(opts...)
	g.clients[apiKey] = &c
	return &c
}

// Generate runs one chat completion with the preamble as system message
func (g *OpenAIGenerator) Generate(ctx context.Context, model, preamble, question, credential string) (string, error) {
	if model == "" {
		model = DefaultOpenAIModel
	}

	completion, err := g.client(credential).Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(preamble),
			openai.UserMessage(question),
		},
		Temperature: openai.Float(g.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("openai generate: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("openai generate: no choices returned")
	}
	return completion.Choices[0].Message.Content, nil
}
