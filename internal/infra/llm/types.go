// Package llm defines the model-agnostic chat provider abstraction.
// All types here are shared between the provider interface, the concrete
// vendor adapters, and the capability factory.
package llm

// Conversation roles. The transcript always starts with one system message.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single turn in a conversation (role + content).
type Message struct {
	Role    string // RoleSystem | RoleUser | RoleAssistant
	Content string
}

// TokenUsage reports token counts for one completion. It is always carried
// as a pointer: nil means the provider did not surface usage data.
type TokenUsage struct {
	Input  int `json:"input"`
	Output int `json:"output"`
	Total  int `json:"total"`
}

// ChatRequest is the input for a chat completion (blocking or streamed).
type ChatRequest struct {
	// Model overrides the provider default when non-empty.
	Model       string
	Messages    []Message
	Temperature float32
	MaxTokens   int
}

// ChatResponse is the output from a blocking chat completion.
type ChatResponse struct {
	Content    string      // The assistant message text.
	StopReason string      // "stop" | "length" | provider-specific value.
	Usage      *TokenUsage // nil when the provider reports no usage.
}

// StreamChunk is one increment of a streamed completion. The final chunk has
// Done=true and carries the best-known cumulative usage. A chunk with Err
// set terminates the stream; the channel is closed right after it.
type StreamChunk struct {
	Delta string
	Usage *TokenUsage
	Done  bool
	Err   error
}

// ModelMeta describes the provider/model identity of a handle.
type ModelMeta struct {
	ID       string // e.g. "llama3.2:3b", "gpt-4o-mini"
	Provider string // provider identifier, e.g. "Ollama"
	Online   bool   // false for local runtimes (Ollama, LM Studio)
}
