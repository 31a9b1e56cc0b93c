package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/lueurxax/generation-inspector/internal/platform/config"
	"github.com/lueurxax/generation-inspector/internal/platform/observability"
)

const rateLimiterBurst = 5

type openaiClient struct {
	cfg         *config.Config
	client      *openai.Client
	logger      *zerolog.Logger
	rateLimiter *rate.Limiter
}

// NewOpenAI builds the default generation backend client.
func NewOpenAI(cfg *config.Config, logger *zerolog.Logger) Client {
	clientConfig := openai.DefaultConfig(cfg.LLMAPIKey)
	if cfg.LLMBaseURL != "" {
		clientConfig.BaseURL = cfg.LLMBaseURL
	}
	return &openaiClient{
		cfg:         cfg,
		client:      openai.NewClientWithConfig(clientConfig),
		logger:      logger,
		rateLimiter: rate.NewLimiter(rate.Limit(float64(cfg.RateLimitRPS)), rateLimiterBurst),
	}
}

// Generate runs one completion per prompt. Each request is retried a fixed
// number of times; after exhausting retries a connection failure surfaces as
// ErrBackendUnavailable, anything else as the backend's own error.
func (c *openaiClient) Generate(ctx context.Context, prompts []string, stopPhrases []string, params Params) ([]Generation, error) {
	outputs := make([]Generation, 0, len(prompts))
	for _, prompt := range prompts {
		output, err := c.generateOne(ctx, prompt, stopPhrases, params)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, output)
	}
	return outputs, nil
}

func (c *openaiClient) generateOne(ctx context.Context, prompt string, stopPhrases []string, params Params) (Generation, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return Generation{}, fmt.Errorf("rate limiter error: %w", err)
	}

	request := openai.ChatCompletionRequest{
		Model: c.cfg.LLMModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Stop:        stopPhrases,
		Temperature: params.Temperature,
		TopP:        params.TopP,
		MaxTokens:   params.MaxTokens,
		Seed:        params.RandomSeedToUse,
	}

	attempts := c.cfg.LLMRetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		start := time.Now()
		resp, err := c.client.CreateChatCompletion(ctx, request)
		observability.LLMRequestDuration.WithLabelValues(c.cfg.LLMModel).Observe(time.Since(start).Seconds())
		if err == nil {
			if len(resp.Choices) == 0 {
				return Generation{}, fmt.Errorf("backend returned no choices")
			}
			return Generation{Generation: resp.Choices[0].Message.Content, Model: resp.Model}, nil
		}

		lastErr = err
		if attempt < attempts {
			observability.LLMRetries.Inc()
			c.logger.Warn().Err(err).Int("attempt", attempt).Msg("generation request failed, retrying")
			continue
		}
	}

	if isConnectionError(lastErr) {
		return Generation{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, lastErr)
	}
	return Generation{}, fmt.Errorf("generation request failed: %w", lastErr)
}

func isConnectionError(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
