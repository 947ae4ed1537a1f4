package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"triage/internal/config"
	"triage/internal/constants"
)

const defaultAnthropicModel = "claude-3-5-haiku-latest"

// AnthropicService calls the Messages API.
type AnthropicService struct {
	client      *anthropic.Client
	model       anthropic.Model
	maxTokens   int64
	temperature float64
}

func NewAnthropicService(cfg config.ReasoningConfig) *AnthropicService {
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	client := anthropic.NewClient(opts...)

	s := &AnthropicService{
		client:      &client,
		model:       anthropic.Model(cfg.Model),
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
	if s.model == "" {
		s.model = anthropic.Model(defaultAnthropicModel)
	}
	if s.maxTokens <= 0 {
		s.maxTokens = constants.DefaultMaxTokens
	}
	return s
}

func (s *AnthropicService) Name() string {
	return constants.ProviderAnthropic
}

func (s *AnthropicService) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     s.model,
		MaxTokens: s.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		Temperature: anthropic.Float(s.temperature),
	})
	if err != nil {
		return "", mapAnthropicError(ctx, err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.AsText().Text)
		}
	}
	if text.Len() == 0 {
		return "", NewError(KindMalformed, errors.New("anthropic returned no text content"))
	}

	return text.String(), nil
}

func mapAnthropicError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return NewError(KindTimeout, err)
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		// 529 is Anthropic's "overloaded" status.
		return NewError(kindFromStatus(apiErr.StatusCode, apiErr.Error()), fmt.Errorf("anthropic: %w", err))
	}

	return NewError(KindOf(err), fmt.Errorf("anthropic: %w", err))
}
