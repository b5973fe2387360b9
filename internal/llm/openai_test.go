package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChatClient struct {
	responses []openai.ChatCompletionResponse
	errs      []error
	requests  []openai.ChatCompletionRequest
}

func (f *fakeChatClient) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.requests = append(f.requests, req)
	idx := len(f.requests) - 1
	var resp openai.ChatCompletionResponse
	var err error
	if idx < len(f.responses) {
		resp = f.responses[idx]
	}
	if idx < len(f.errs) {
		err = f.errs[idx]
	}
	return resp, err
}

func chatResponse(text string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{
				Message:      openai.ChatCompletionMessage{Content: text},
				FinishReason: openai.FinishReasonStop,
			},
		},
		Usage: openai.Usage{PromptTokens: 12, CompletionTokens: 8, TotalTokens: 20},
	}
}

func TestOpenAIClientComplete(t *testing.T) {
	fake := &fakeChatClient{responses: []openai.ChatCompletionResponse{chatResponse("  Hello there.  ")}}
	client := newOpenAIClient(fake, OpenAIConfig{Model: "gpt-4o", Temperature: 0.7}, nil)

	resp, err := client.Complete(context.Background(), Request{
		System: []string{"You are a clinic receptionist."},
		Messages: []Message{
			{Role: RoleUser, Content: "hi"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello there.", resp.Text)
	assert.Equal(t, int32(12), resp.Usage.InputTokens)
	assert.Equal(t, int32(8), resp.Usage.OutputTokens)

	require.Len(t, fake.requests, 1)
	sent := fake.requests[0]
	assert.Equal(t, "gpt-4o", sent.Model)
	assert.InDelta(t, 0.7, sent.Temperature, 0.001)
	require.Len(t, sent.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, sent.Messages[0].Role)
	assert.Equal(t, openai.ChatMessageRoleUser, sent.Messages[1].Role)
}

func TestOpenAIClientRetriesTransientFailures(t *testing.T) {
	fake := &fakeChatClient{
		responses: []openai.ChatCompletionResponse{{}, chatResponse("recovered")},
		errs:      []error{errors.New("rate limited"), nil},
	}
	client := newOpenAIClient(fake, OpenAIConfig{MaxAttempts: 3}, nil)
	client.policy.BaseDelay = time.Millisecond
	client.policy.MaxDelay = time.Millisecond

	resp, err := client.Complete(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Text)
	assert.Len(t, fake.requests, 2)
}

func TestOpenAIClientExhaustsRetries(t *testing.T) {
	boom := errors.New("upstream down")
	fake := &fakeChatClient{errs: []error{boom, boom, boom}}
	client := newOpenAIClient(fake, OpenAIConfig{MaxAttempts: 3}, nil)
	client.policy.BaseDelay = time.Millisecond
	client.policy.MaxDelay = time.Millisecond

	_, err := client.Complete(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, fake.requests, 3)
}

func TestOpenAIClientNoChoices(t *testing.T) {
	fake := &fakeChatClient{responses: []openai.ChatCompletionResponse{{}, {}, {}}}
	client := newOpenAIClient(fake, OpenAIConfig{MaxAttempts: 3}, nil)
	client.policy.BaseDelay = time.Millisecond
	client.policy.MaxDelay = time.Millisecond

	_, err := client.Complete(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestNewOpenAIClientRequiresKey(t *testing.T) {
	_, err := NewOpenAIClient(OpenAIConfig{}, nil)
	require.Error(t, err)
}
