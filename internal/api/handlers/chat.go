package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/matiasleandrokruk/chatd/internal/domain/chat"
	"github.com/matiasleandrokruk/chatd/internal/infra/llm"
)

// Coordinator is the conversation surface the chat handlers consume.
type Coordinator interface {
	Send(ctx context.Context, text string) (<-chan llm.StreamChunk, error)
	SendBlocking(ctx context.Context, text string) (*llm.ChatResponse, error)
	SwitchProvider(id string) error
	ProviderID() string
	ConversationID() string
	History() []chat.Turn
	ClearHistory() error
}

// ChatHandler serves blocking and streaming chat completions.
type ChatHandler struct {
	coordinator Coordinator
}

// NewChatHandler creates a ChatHandler over the shared coordinator.
func NewChatHandler(coordinator Coordinator) *ChatHandler {
	return &ChatHandler{coordinator: coordinator}
}

type chatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the body returned by the blocking chat endpoint.
type ChatResponse struct {
	Content        string          `json:"content"`
	ProviderID     string          `json:"providerId"`
	ConversationID string          `json:"conversationId"`
	Usage          *llm.TokenUsage `json:"usage,omitempty"`
}

// Chat handles POST /api/v1/chat — one blocking round trip.
//
// Response codes:
//   - 200 OK: completion succeeded
//   - 400 Bad Request: invalid JSON or empty message
//   - 409 Conflict: a request is already in flight
//   - 502 Bad Gateway: the provider call failed
//   - 503 Service Unavailable: no provider could be bound
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	message, err := decodeChatRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.coordinator.SendBlocking(r.Context(), message)
	if err != nil {
		writeChatError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		Content:        resp.Content,
		ProviderID:     h.coordinator.ProviderID(),
		ConversationID: h.coordinator.ConversationID(),
		Usage:          resp.Usage,
	})
}

// ChatStream handles POST /api/v1/chat/stream — server-sent events, one
// "data: {json}" frame per chunk.
func (h *ChatHandler) ChatStream(w http.ResponseWriter, r *http.Request) {
	message, err := decodeChatRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	stream, err := h.coordinator.Send(r.Context(), message)
	if err != nil {
		writeChatError(w, err)
		return
	}

	bw, flusher, err := prepareEventStream(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	streamChunks(bw, flusher, stream)
}

func decodeChatRequest(r *http.Request) (string, error) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", errors.New("invalid request body")
	}
	if req.Message == "" {
		return "", errors.New("message is required")
	}
	return req.Message, nil
}

// writeChatError maps coordinator errors to HTTP codes.
func writeChatError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrBusy):
		writeError(w, http.StatusConflict, "a request is already in flight")
	case errors.Is(err, llm.ErrProviderUnavailable), errors.Is(err, llm.ErrNoDefaultConfigured):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusBadGateway, "completion failed")
	}
}

func prepareEventStream(w http.ResponseWriter) (*bufio.Writer, http.Flusher, error) {
	w.Header().Set(headerContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Flusher")
	}

	return bufio.NewWriter(w), flusher, nil
}

func streamChunks(bw *bufio.Writer, flusher http.Flusher, stream <-chan llm.StreamChunk) {
	for chunk := range stream {
		b, _ := json.Marshal(sseChunk(chunk))
		if _, err := fmt.Fprintf(bw, "data: %s\n\n", string(b)); err != nil {
			return
		}
		_ = bw.Flush()
		flusher.Flush()
	}
}

// streamEvent is the JSON shape of one SSE frame.
type streamEvent struct {
	Delta string          `json:"delta,omitempty"`
	Usage *llm.TokenUsage `json:"usage,omitempty"`
	Done  bool            `json:"done,omitempty"`
	Error string          `json:"error,omitempty"`
}

func sseChunk(chunk llm.StreamChunk) streamEvent {
	ev := streamEvent{Delta: chunk.Delta, Usage: chunk.Usage, Done: chunk.Done}
	if chunk.Err != nil {
		ev.Error = chunk.Err.Error()
	}
	return ev
}
