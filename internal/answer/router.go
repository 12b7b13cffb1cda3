// Package answer turns a question plus knowledge context into an AnswerResult
// by walking an ordered list of generation stages.
package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"knowledgebot/internal/models"
)

var (
	// ErrNoCredentials marks a stage that has nothing to try
	ErrNoCredentials = errors.New("no credentials configured")
	// ErrEmptyAnswer is returned when a provider answers with blank text
	ErrEmptyAnswer = errors.New("provider returned an empty answer")
)

// Generator is one text-generation provider
type Generator interface {
	Generate(ctx context.Context, model, preamble, question, credential string) (string, error)
}

// StageConfig describes one entry of the fallback chain
type StageConfig struct {
	Provider    models.ProviderUsed
	Generator   Generator
	Model       string
	Credentials []string
	// Rotating stages try every credential once per call, starting from a
	// cursor shared by all calls. Non-rotating stages try the first one only.
	Rotating bool
}

type stage struct {
	StageConfig
	cursor atomic.Uint32
}

// Options are per-call overrides
type Options struct {
	SystemPrompt string
	// PrimaryModel replaces the model of the primary stage when set
	PrimaryModel string
}

// Router tries stages in order and never fails: total exhaustion yields a
// result with ProviderNone and a diagnostic text.
type Router struct {
	stages         []*stage
	attemptTimeout time.Duration
}

// NewRouter creates a router over stages. attemptTimeout bounds each single
// generation call (0 disables).
func NewRouter(attemptTimeout time.Duration, stages ...StageConfig) *Router {
	r := &Router{attemptTimeout: attemptTimeout}
	for _, cfg := range stages {
		creds := make([]string, len(cfg.Credentials))
		copy(creds, cfg.Credentials)
		cfg.Credentials = creds
		r.stages = append(r.stages, &stage{StageConfig: cfg})
	}
	return r
}

// Answer generates a reply to question grounded on knowledge
func (r *Router) Answer(ctx context.Context, question, knowledge string, opts Options) models.AnswerResult {
	preamble := BuildPreamble(knowledge, opts.SystemPrompt)
	var failures []models.AttemptFailure

	for _, st := range r.stages {
		n := len(st.Credentials)
		if n == 0 || st.Generator == nil {
			failures = append(failures, models.AttemptFailure{
				Provider:      st.Provider,
				CredentialIdx: -1,
				Error:         ErrNoCredentials.Error(),
			})
			continue
		}

		model := st.Model
		if st.Provider == models.ProviderPrimary && opts.PrimaryModel != "" {
			model = opts.PrimaryModel
		}

		attempts := 1
		if st.Rotating {
			attempts = n
		}

		for i := 0; i < attempts; i++ {
			idx := 0
			if st.Rotating {
				idx = int(st.cursor.Load()) % n
			}

			text, err := r.attempt(ctx, st.Generator, model, preamble, question, st.Credentials[idx])
			if err == nil {
				return models.AnswerResult{
					Text:            text,
					ProviderUsed:    st.Provider,
					ModelIdentifier: model,
					Failures:        failures,
				}
			}

			failures = append(failures, models.AttemptFailure{
				Provider:      st.Provider,
				CredentialIdx: idx,
				Error:         err.Error(),
			})
			if st.Rotating {
				st.advance(idx, n)
			}
			if ctx.Err() != nil {
				break
			}
		}
	}

	return models.AnswerResult{
		Text:         diagnostic(failures),
		ProviderUsed: models.ProviderNone,
		Failures:     failures,
	}
}

func (r *Router) attempt(ctx context.Context, gen Generator, model, preamble, question, credential string) (string, error) {
	if r.attemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.attemptTimeout)
		defer cancel()
	}

	text, err := gen.Generate(ctx, model, preamble, question, credential)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyAnswer
	}
	return text, nil
}

// advance moves the cursor past idx. If another call already moved it, the
// cursor is left alone so one failure is not counted twice.
func (s *stage) advance(idx, n int) {
	s.cursor.CompareAndSwap(uint32(idx), uint32((idx+1)%n))
}

// Cursor reports the next credential index of the stage serving provider
func (r *Router) Cursor(provider models.ProviderUsed) int {
	for _, st := range r.stages {
		if st.Provider == provider {
			if len(st.Credentials) == 0 {
				return 0
			}
			return int(st.cursor.Load()) % len(st.Credentials)
		}
	}
	return 0
}

// Stages lists the configured providers and how many credentials each holds
func (r *Router) Stages() map[models.ProviderUsed]int {
	out := make(map[models.ProviderUsed]int, len(r.stages))
	for _, st := range r.stages {
		if st.Generator != nil {
			out[st.Provider] = len(st.Credentials)
		}
	}
	return out
}

func diagnostic(failures []models.AttemptFailure) string {
	if len(failures) == 0 {
		return "No answer providers are configured."
	}

	var b strings.Builder
	b.WriteString("All answer providers failed.")
	for _, f := range failures {
		if f.CredentialIdx >= 0 {
			fmt.Fprintf(&b, "\n%s (credential %d): %s", f.Provider, f.CredentialIdx, f.Error)
		} else {
			fmt.Fprintf(&b, "\n%s: %s", f.Provider, f.Error)
		}
	}
	return b.String()
}
