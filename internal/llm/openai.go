package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/HaolanLL/Medical-Chat-Agent/internal/retry"
	"github.com/HaolanLL/Medical-Chat-Agent/pkg/logging"
)

var openaiTracer = otel.Tracer("clinic.internal.llm.openai")

type chatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIClient implements Client against the OpenAI chat completion API.
type OpenAIClient struct {
	client      chatClient
	model       string
	temperature float32
	timeout     time.Duration
	policy      retry.Policy
	logger      *logging.Logger
}

// OpenAIConfig holds the adapter settings.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	Timeout     time.Duration
	MaxAttempts int
}

// NewOpenAIClient builds the production adapter.
func NewOpenAIClient(cfg OpenAIConfig, logger *logging.Logger) (*OpenAIClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("llm: openai api key required")
	}
	return newOpenAIClient(openai.NewClient(cfg.APIKey), cfg, logger), nil
}

func newOpenAIClient(client chatClient, cfg OpenAIConfig, logger *logging.Logger) *OpenAIClient {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &OpenAIClient{
		client:      client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		policy: retry.Policy{
			MaxAttempts: cfg.MaxAttempts,
			BaseDelay:   time.Second,
			MaxDelay:    10 * time.Second,
			Retryable: func(err error) bool {
				return !errors.Is(err, context.Canceled)
			},
		},
		logger: logger,
	}
}

var _ Client = (*OpenAIClient)(nil)

// Complete sends the prompt and returns the completion, retrying transient
// failures a bounded number of times.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (Response, error) {
	ctx, span := openaiTracer.Start(ctx, "llm.openai.complete")
	defer span.End()

	model := req.Model
	if model == "" {
		model = c.model
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}
	span.SetAttributes(attribute.String("clinic.llm.model", model))

	messages := make([]openai.ChatCompletionMessage, 0, len(req.System)+len(req.Messages))
	for _, sys := range req.System {
		if strings.TrimSpace(sys) == "" {
			continue
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: sys,
		})
	}
	for _, msg := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    toOpenAIRole(msg.Role),
			Content: msg.Content,
		})
	}

	var out Response
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		resp, err := c.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
			Model:       model,
			Messages:    messages,
			Temperature: temperature,
			MaxTokens:   int(req.MaxTokens),
		})
		if err != nil {
			return fmt.Errorf("llm: openai completion failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			return errors.New("llm: openai returned no choices")
		}
		out = Response{
			Text:       strings.TrimSpace(resp.Choices[0].Message.Content),
			StopReason: string(resp.Choices[0].FinishReason),
			Usage: TokenUsage{
				InputTokens:  int32(resp.Usage.PromptTokens),
				OutputTokens: int32(resp.Usage.CompletionTokens),
				TotalTokens:  int32(resp.Usage.TotalTokens),
			},
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return Response{}, err
	}
	return out, nil
}

func toOpenAIRole(role string) string {
	switch role {
	case RoleSystem:
		return openai.ChatMessageRoleSystem
	case RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}
