package classifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"triage/internal/config"
	"triage/internal/constants"
)

// OpenAIService calls the Chat Completions API.
type OpenAIService struct {
	client      *openai.Client
	model       string
	maxTokens   int64
	temperature float64
}

func NewOpenAIService(cfg config.ReasoningConfig) *OpenAIService {
	// Retries are owned by the classifier.
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	client := openai.NewClient(opts...)
	return newOpenAIService(&client, cfg)
}

func newOpenAIService(client *openai.Client, cfg config.ReasoningConfig) *OpenAIService {
	s := &OpenAIService{
		client:      client,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
	if s.model == "" {
		s.model = openai.ChatModelGPT4oMini
	}
	if s.maxTokens <= 0 {
		s.maxTokens = constants.DefaultMaxTokens
	}
	return s
}

func (s *OpenAIService) Name() string {
	return constants.ProviderOpenAI
}

func (s *OpenAIService) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: s.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		MaxCompletionTokens: openai.Int(s.maxTokens),
		Temperature:         openai.Float(s.temperature),
	})
	if err != nil {
		return "", mapOpenAIError(ctx, err)
	}

	if len(resp.Choices) == 0 {
		return "", NewError(KindMalformed, errors.New("openai returned no choices"))
	}

	return resp.Choices[0].Message.Content, nil
}

func mapOpenAIError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return NewError(KindTimeout, err)
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return NewError(kindFromStatus(apiErr.StatusCode, apiErr.Error()), fmt.Errorf("openai: %w", err))
	}

	return NewError(KindOf(err), fmt.Errorf("openai: %w", err))
}
