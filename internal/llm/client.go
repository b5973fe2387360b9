package llm

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single role-tagged turn in a prompt.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TokenUsage reports prompt/completion token counts when the provider
// supplies them.
type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

// Request is a structured completion request: fixed system instructions plus
// the conversation history.
type Request struct {
	Model       string
	System      []string
	Messages    []Message
	MaxTokens   int32
	Temperature float32
}

// Response is one natural-language completion.
type Response struct {
	Text       string
	StopReason string
	Usage      TokenUsage
}

// Client produces completions. Implementations must be safe for concurrent
// use by multiple sessions.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}
