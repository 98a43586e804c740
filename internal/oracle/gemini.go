package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/dvloznov/budget-tracker/internal/domain"
)

const (
	// DefaultModelName is the Gemini model used when none is configured.
	DefaultModelName = "gemini-2.5-flash"
	// DefaultTimeout bounds a single completion attempt.
	DefaultTimeout = 30 * time.Second
)

// Generator is the subset of the genai models API the oracle uses.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini completes prompts with a Gemini model. Every call is bounded by a
// timeout and retried once.
type Gemini struct {
	models  Generator
	model   string
	timeout time.Duration
	log     zerolog.Logger
}

// GeminiOption configures a Gemini oracle.
type GeminiOption func(*Gemini)

// WithModel overrides the model name.
func WithModel(name string) GeminiOption {
	return func(g *Gemini) {
		if name != "" {
			g.model = name
		}
	}
}

// WithTimeout overrides the per-attempt timeout.
func WithTimeout(d time.Duration) GeminiOption {
	return func(g *Gemini) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithLogger sets the logger used for degraded calls.
func WithLogger(log zerolog.Logger) GeminiOption {
	return func(g *Gemini) { g.log = log }
}

// NewGemini creates a genai client from the environment (GOOGLE_API_KEY or
// Vertex AI settings).
func NewGemini(ctx context.Context, opts ...GeminiOption) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGemini: create genai client: %w", err)
	}
	return NewGeminiWithGenerator(client.Models, opts...), nil
}

// NewGeminiWithGenerator builds the oracle on top of an existing models API.
func NewGeminiWithGenerator(models Generator, opts ...GeminiOption) *Gemini {
	g := &Gemini{
		models:  models,
		model:   DefaultModelName,
		timeout: DefaultTimeout,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Enabled implements Oracle.
func (g *Gemini) Enabled() bool { return g != nil && g.models != nil }

// Complete implements Oracle. Failures are reported as
// *domain.ExternalServiceError.
func (g *Gemini) Complete(ctx context.Context, prompt string) (string, error) {
	if !g.Enabled() {
		return "", ErrDisabled
	}

	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		text, err := g.attempt(ctx, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		g.log.Warn().Err(err).Int("attempt", attempt).Str("model", g.model).Msg("oracle completion failed")
	}

	return "", &domain.ExternalServiceError{
		Service: "oracle",
		Timeout: errors.Is(lastErr, context.DeadlineExceeded),
		Err:     lastErr,
	}
}

func (g *Gemini) attempt(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	resp, err := g.models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", errors.New("empty response from model")
	}
	return text, nil
}
