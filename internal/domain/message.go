package domain

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleUser marks a message written by the caller.
	RoleUser Role = "user"
	// RoleAssistant marks a message produced by the generator.
	RoleAssistant Role = "assistant"
)

// Message is one turn entry in a session's conversation history.
type Message struct {
	Role Role
	Text string
}

// TokenUsage aggregates LLM token consumption across one turn
// (reformulation call plus answer call).
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Add accumulates usage from a single completion call.
func (u *TokenUsage) Add(prompt, completion int) {
	u.PromptTokens += prompt
	u.CompletionTokens += completion
	u.TotalTokens += prompt + completion
}

// CompletionResult is the outcome of a single chat completion call.
type CompletionResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}
