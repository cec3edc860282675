package llm

import "context"

// ChatProvider is the capability interface implemented by every vendor
// adapter. The application is never coupled to a specific LLM vendor.
//
// ChatStream returns a single-consumption, forward-only channel: the caller
// owns the consumption loop and must drain it (or cancel ctx) so the
// producer goroutine can exit. Close releases the underlying HTTP client
// resources; handles are cached and closed by the Factory, not by callers.
type ChatProvider interface {
	// ChatCompletion performs a blocking chat completion.
	ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// ChatStream performs a streamed chat completion. Chunks arrive in
	// order; the final chunk has Done=true and cumulative token usage.
	ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error)

	// ModelInfo returns static metadata about the provider/model.
	ModelInfo() ModelMeta

	// HealthCheck returns nil if the provider is reachable and operational.
	HealthCheck(ctx context.Context) error

	// Close releases long-lived client resources (idle connections).
	Close() error
}
