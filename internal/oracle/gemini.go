package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

// GeminiClient implements Client on top of the Google GenAI API.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a Gemini-backed oracle client.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiClient{client: client, model: model}, nil
}

// Generate sends the prompt and returns the model's text reply.
func (c *GeminiClient) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	cfg := &genai.GenerateContentConfig{}
	if opts.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(opts.Temperature))
	}
	if opts.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(opts.MaxTokens)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", &Error{Kind: classifyErr(err), Err: err}
	}

	text := resp.Text()
	if text == "" {
		return "", &Error{Kind: KindMalformed, Err: fmt.Errorf("empty reply from model %s", c.model)}
	}
	return text, nil
}

// classifyErr maps transport errors onto error kinds. The API surfaces quota
// exhaustion in the error text; everything else is treated as a network fault.
func classifyErr(err error) Kind {
	if err == nil {
		return KindNetwork
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "quota") || strings.Contains(msg, "resource_exhausted") || strings.Contains(msg, "429"):
		return KindQuota
	case strings.Contains(msg, "deadline") || strings.Contains(msg, "timeout"):
		return KindTimeout
	default:
		return KindNetwork
	}
}
