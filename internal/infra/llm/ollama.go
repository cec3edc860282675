// Ollama adapter. Calls the local Ollama REST API using stdlib net/http.
// Endpoints used:
//   - POST /api/chat — chat completion (blocking and NDJSON streaming)
//   - GET  /api/tags — health check (lists available models)
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	mimeJSON          = "application/json"
	headerContentType = "Content-Type"

	defaultHTTPTimeout = 120 * time.Second
)

// OllamaProvider implements ChatProvider against a running Ollama instance.
type OllamaProvider struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOllamaProvider creates an OllamaProvider. The generous timeout covers
// slow local generations; streaming callers cancel via context instead.
func NewOllamaProvider(baseURL, model string) *OllamaProvider {
	return &OllamaProvider{
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: defaultHTTPTimeout,
		},
	}
}

// ─── internal Ollama JSON types ──────────────────────────────────────────────

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  map[string]any      `json:"options,omitempty"`
}

// ollamaChatResponse is one response object: the full reply when
// stream=false, or a single NDJSON line when streaming. Token counts are
// only present on the final (done) object.
type ollamaChatResponse struct {
	Message         ollamaChatMessage `json:"message"`
	DoneReason      string            `json:"done_reason"`
	Done            bool              `json:"done"`
	PromptEvalCount int               `json:"prompt_eval_count"`
	EvalCount       int               `json:"eval_count"`
}

// usage converts the final-object counters into a TokenUsage record.
// Returns nil when Ollama reported no counts.
func (r ollamaChatResponse) usage() *TokenUsage {
	if r.PromptEvalCount == 0 && r.EvalCount == 0 {
		return nil
	}
	return &TokenUsage{
		Input:  r.PromptEvalCount,
		Output: r.EvalCount,
		Total:  r.PromptEvalCount + r.EvalCount,
	}
}

// ─── ChatProvider implementation ─────────────────────────────────────────────

// ChatCompletion performs a blocking chat via POST /api/chat.
func (p *OllamaProvider) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	respBody, err := p.postChat(ctx, req, false)
	if err != nil {
		return nil, err
	}
	defer respBody.Close() //nolint:errcheck

	var ollamaResp ollamaChatResponse
	if decodeErr := json.NewDecoder(respBody).Decode(&ollamaResp); decodeErr != nil {
		return nil, fmt.Errorf("ollama chat: decode response: %w", decodeErr)
	}
	return &ChatResponse{
		Content:    ollamaResp.Message.Content,
		StopReason: ollamaResp.DoneReason,
		Usage:      ollamaResp.usage(),
	}, nil
}

// ChatStream performs a streamed chat via POST /api/chat with stream=true.
// Ollama replies with one JSON object per line; the final object has
// done=true and carries the token counters.
func (p *OllamaProvider) ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	respBody, err := p.postChat(ctx, req, true)
	if err != nil {
		return nil, err
	}

	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		defer respBody.Close() //nolint:errcheck

		scanner := bufio.NewScanner(respBody)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}

			var obj ollamaChatResponse
			if unmarshalErr := json.Unmarshal(line, &obj); unmarshalErr != nil {
				emit(ctx, out, StreamChunk{Err: fmt.Errorf("ollama stream: decode line: %w", unmarshalErr)})
				return
			}

			if obj.Done {
				emit(ctx, out, StreamChunk{Delta: obj.Message.Content, Done: true, Usage: obj.usage()})
				return
			}
			if !emit(ctx, out, StreamChunk{Delta: obj.Message.Content}) {
				return
			}
		}

		if scanErr := scanner.Err(); scanErr != nil {
			emit(ctx, out, StreamChunk{Err: fmt.Errorf("ollama stream: %w", scanErr)})
			return
		}
		// Body ended without a done object: treat as complete with no usage.
		emit(ctx, out, StreamChunk{Done: true})
	}()

	return out, nil
}

// ModelInfo returns static metadata for this provider/model.
func (p *OllamaProvider) ModelInfo() ModelMeta {
	return ModelMeta{ID: p.model, Provider: "Ollama", Online: false}
}

// HealthCheck calls GET /api/tags — returns nil if Ollama is reachable.
func (p *OllamaProvider) HealthCheck(ctx context.Context) error {
	url := p.baseURL + "/api/tags"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("ollama healthcheck: build request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama healthcheck: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama healthcheck: status %d", resp.StatusCode)
	}
	return nil
}

// Close releases idle connections held by the HTTP client.
func (p *OllamaProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// ─── helpers ─────────────────────────────────────────────────────────────────

// postChat builds and sends a POST /api/chat request.
// Caller is responsible for closing the returned ReadCloser.
func (p *OllamaProvider) postChat(ctx context.Context, req ChatRequest, stream bool) (io.ReadCloser, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	msgs := make([]ollamaChatMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = ollamaChatMessage(m)
	}

	body, err := json.Marshal(ollamaChatRequest{
		Model:    model,
		Messages: msgs,
		Stream:   stream,
		Options:  buildChatOptions(req),
	})
	if err != nil {
		return nil, fmt.Errorf("ollama chat: marshal request: %w", err)
	}

	url := p.baseURL + "/api/chat"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ollama chat: build request: %w", err)
	}
	httpReq.Header.Set(headerContentType, mimeJSON)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama chat: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close() //nolint:errcheck
		log.Warn().Int("status", resp.StatusCode).Str("model", model).Msg("ollama chat request rejected")
		return nil, fmt.Errorf("ollama chat: status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// buildChatOptions converts ChatRequest fields into the Ollama options map.
func buildChatOptions(req ChatRequest) map[string]any {
	opts := map[string]any{}
	if req.Temperature != 0 {
		opts["temperature"] = req.Temperature
	}
	if req.MaxTokens != 0 {
		opts["num_predict"] = req.MaxTokens
	}
	if len(opts) == 0 {
		return nil
	}
	return opts
}

// emit sends a chunk unless ctx is cancelled. Returns false when the caller
// went away and the producer should stop.
func emit(ctx context.Context, out chan<- StreamChunk, c StreamChunk) bool {
	select {
	case out <- c:
		return true
	case <-ctx.Done():
		return false
	}
}
