// OpenAI-compatible adapter. One HTTP client covers every provider that
// speaks the /chat/completions wire format: OpenAI, LM Studio, the
// HuggingFace router, and both Azure services (see azure.go for their
// URL/auth variations). Selection happens by configuration key in the
// factory, not by a type hierarchy.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// OpenAICompatProvider implements ChatProvider for OpenAI-style APIs.
// The provider name, endpoint URLs, and auth headers are fixed at
// construction by the per-vendor constructors below.
type OpenAICompatProvider struct {
	name       string            // provider identifier, e.g. "OpenAI"
	chatURL    string            // full chat completions URL
	healthURL  string            // models listing URL; empty disables the probe
	model      string            // default model identifier
	online     bool              // false for local runtimes (LM Studio)
	headers    map[string]string // auth and vendor headers
	httpClient *http.Client
}

// NewOpenAIProvider creates a handle for the OpenAI API.
func NewOpenAIProvider(apiKey, model, organizationID string) *OpenAICompatProvider {
	headers := map[string]string{"Authorization": "Bearer " + apiKey}
	if organizationID != "" {
		headers["OpenAI-Organization"] = organizationID
	}
	return &OpenAICompatProvider{
		name:       "OpenAI",
		chatURL:    "https://api.openai.com/v1/chat/completions",
		healthURL:  "https://api.openai.com/v1/models",
		model:      model,
		online:     true,
		headers:    headers,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// NewLMStudioProvider creates a handle for a local LM Studio server, which
// exposes the OpenAI wire format without authentication.
func NewLMStudioProvider(endpoint, model string) *OpenAICompatProvider {
	base := strings.TrimSuffix(endpoint, "/")
	return &OpenAICompatProvider{
		name:       "LMStudio",
		chatURL:    joinV1(base, "chat/completions"),
		healthURL:  joinV1(base, "models"),
		model:      model,
		online:     false,
		headers:    map[string]string{},
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// NewHuggingFaceProvider creates a handle for the HuggingFace inference
// router (OpenAI-compatible) at the configured endpoint.
func NewHuggingFaceProvider(endpoint, apiKey, model string) *OpenAICompatProvider {
	base := strings.TrimSuffix(endpoint, "/")
	return &OpenAICompatProvider{
		name:       "HuggingFace",
		chatURL:    joinV1(base, "chat/completions"),
		healthURL:  "", // the router has no cheap unauthenticated probe
		model:      model,
		online:     true,
		headers:    map[string]string{"Authorization": "Bearer " + apiKey},
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// joinV1 appends an API path, inserting the /v1 prefix unless the base
// already carries it (configs list both styles in the wild).
func joinV1(base, path string) string {
	if strings.HasSuffix(base, "/v1") {
		return base + "/" + path
	}
	return base + "/v1/" + path
}

// ─── internal OpenAI-compatible JSON types ───────────────────────────────────

type compatChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type compatStreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type compatChatRequest struct {
	Model         string               `json:"model,omitempty"`
	Messages      []compatChatMessage  `json:"messages"`
	Temperature   float32              `json:"temperature,omitempty"`
	MaxTokens     int                  `json:"max_tokens,omitempty"`
	Stream        bool                 `json:"stream,omitempty"`
	StreamOptions *compatStreamOptions `json:"stream_options,omitempty"`
}

type compatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// usage converts the wire object into a TokenUsage record (nil for nil).
func (u *compatUsage) usage() *TokenUsage {
	if u == nil {
		return nil
	}
	return &TokenUsage{Input: u.PromptTokens, Output: u.CompletionTokens, Total: u.TotalTokens}
}

type compatChatResponse struct {
	Choices []struct {
		Message      compatChatMessage `json:"message"`
		FinishReason string            `json:"finish_reason"`
	} `json:"choices"`
	Usage *compatUsage `json:"usage"`
}

// compatStreamEvent is one SSE data payload. The terminal usage-only event
// (stream_options.include_usage) has an empty choices array.
type compatStreamEvent struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *compatUsage `json:"usage"`
}

// ─── ChatProvider implementation ─────────────────────────────────────────────

// ChatCompletion performs a blocking chat completion.
func (p *OpenAICompatProvider) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	respBody, err := p.postChat(ctx, req, false)
	if err != nil {
		return nil, err
	}
	defer respBody.Close() //nolint:errcheck

	var resp compatChatResponse
	if decodeErr := json.NewDecoder(respBody).Decode(&resp); decodeErr != nil {
		return nil, fmt.Errorf("%s chat: decode response: %w", p.name, decodeErr)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s chat: response carried no choices", p.name)
	}
	return &ChatResponse{
		Content:    resp.Choices[0].Message.Content,
		StopReason: resp.Choices[0].FinishReason,
		Usage:      resp.Usage.usage(),
	}, nil
}

// ChatStream performs a streamed chat completion over SSE. Each event is a
// "data: {json}" line; the stream ends with "data: [DONE]". Usage arrives in
// a final usage-only event when the server honors include_usage.
func (p *OpenAICompatProvider) ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	respBody, err := p.postChat(ctx, req, true)
	if err != nil {
		return nil, err
	}

	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		defer respBody.Close() //nolint:errcheck

		var usage *TokenUsage
		finished := false

		scanner := bufio.NewScanner(respBody)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			data, ok := ssePayload(scanner.Bytes())
			if !ok {
				continue
			}
			if string(data) == "[DONE]" {
				emit(ctx, out, StreamChunk{Done: true, Usage: usage})
				return
			}

			var ev compatStreamEvent
			if unmarshalErr := json.Unmarshal(data, &ev); unmarshalErr != nil {
				emit(ctx, out, StreamChunk{Err: fmt.Errorf("%s stream: decode event: %w", p.name, unmarshalErr)})
				return
			}
			if ev.Usage != nil {
				usage = ev.Usage.usage()
			}
			for _, choice := range ev.Choices {
				if choice.FinishReason != nil && *choice.FinishReason != "" {
					finished = true
				}
				if choice.Delta.Content == "" {
					continue
				}
				if !emit(ctx, out, StreamChunk{Delta: choice.Delta.Content}) {
					return
				}
			}
		}

		if scanErr := scanner.Err(); scanErr != nil {
			emit(ctx, out, StreamChunk{Err: fmt.Errorf("%s stream: %w", p.name, scanErr)})
			return
		}
		if !finished {
			// Body ended without [DONE]; LM Studio does this on some builds.
			log.Debug().Str("provider", p.name).Msg("stream ended without terminator")
		}
		emit(ctx, out, StreamChunk{Done: true, Usage: usage})
	}()

	return out, nil
}

// ModelInfo returns static metadata for this provider/model.
func (p *OpenAICompatProvider) ModelInfo() ModelMeta {
	return ModelMeta{ID: p.model, Provider: p.name, Online: p.online}
}

// HealthCheck probes the models listing endpoint when one is configured.
func (p *OpenAICompatProvider) HealthCheck(ctx context.Context) error {
	if p.healthURL == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.healthURL, nil)
	if err != nil {
		return fmt.Errorf("%s healthcheck: build request: %w", p.name, err)
	}
	for k, v := range p.headers {
		req.Header.Set(k, v)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s healthcheck: %w", p.name, err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s healthcheck: status %d", p.name, resp.StatusCode)
	}
	return nil
}

// Close releases idle connections held by the HTTP client.
func (p *OpenAICompatProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// ─── helpers ─────────────────────────────────────────────────────────────────

// postChat builds and sends a chat completions request.
// Caller is responsible for closing the returned ReadCloser.
func (p *OpenAICompatProvider) postChat(ctx context.Context, req ChatRequest, stream bool) (io.ReadCloser, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	msgs := make([]compatChatMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = compatChatMessage(m)
	}

	wireReq := compatChatRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	}
	if stream {
		wireReq.StreamOptions = &compatStreamOptions{IncludeUsage: true}
	}

	body, err := json.Marshal(wireReq)
	if err != nil {
		return nil, fmt.Errorf("%s chat: marshal request: %w", p.name, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.chatURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s chat: build request: %w", p.name, err)
	}
	httpReq.Header.Set(headerContentType, mimeJSON)
	for k, v := range p.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s chat: %w", p.name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := readErrorBody(resp.Body)
		resp.Body.Close() //nolint:errcheck
		log.Warn().Str("provider", p.name).Int("status", resp.StatusCode).Str("detail", detail).Msg("chat request rejected")
		return nil, fmt.Errorf("%s chat: status %d: %s", p.name, resp.StatusCode, detail)
	}
	return resp.Body, nil
}

// ssePayload extracts the payload of a "data: ..." SSE line.
func ssePayload(line []byte) ([]byte, bool) {
	line = bytes.TrimSpace(line)
	if !bytes.HasPrefix(line, []byte("data:")) {
		return nil, false
	}
	return bytes.TrimSpace(bytes.TrimPrefix(line, []byte("data:"))), true
}

// readErrorBody reads a bounded prefix of an error response for diagnostics.
func readErrorBody(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 512))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}
