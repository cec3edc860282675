package handlers

import (
	"net/http"
	"time"

	"github.com/matiasleandrokruk/chatd/internal/infra/llm"
)

// HistoryHandler serves the live transcript of the active conversation.
type HistoryHandler struct {
	coordinator Coordinator
}

// NewHistoryHandler creates a HistoryHandler over the shared coordinator.
func NewHistoryHandler(coordinator Coordinator) *HistoryHandler {
	return &HistoryHandler{coordinator: coordinator}
}

// HistoryTurn is one transcript entry as returned by the API.
type HistoryTurn struct {
	Role    string          `json:"role"`
	Content string          `json:"content"`
	Usage   *llm.TokenUsage `json:"usage,omitempty"`
	At      string          `json:"at"`
}

// HistoryResponse is the body returned by GET /api/v1/history.
type HistoryResponse struct {
	ConversationID string        `json:"conversationId"`
	ProviderID     string        `json:"providerId,omitempty"`
	Turns          []HistoryTurn `json:"turns"`
}

// Get handles GET /api/v1/history — the in-memory transcript, system turn
// excluded, oldest first.
func (h *HistoryHandler) Get(w http.ResponseWriter, _ *http.Request) {
	turns := h.coordinator.History()
	out := make([]HistoryTurn, 0, len(turns))
	for _, t := range turns {
		out = append(out, HistoryTurn{
			Role:    t.Role,
			Content: t.Content,
			Usage:   t.Usage,
			At:      t.At.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, HistoryResponse{
		ConversationID: h.coordinator.ConversationID(),
		ProviderID:     h.coordinator.ProviderID(),
		Turns:          out,
	})
}

// Clear handles DELETE /api/v1/history — resets the transcript and starts a
// fresh conversation. 409 while a request is in flight.
func (h *HistoryHandler) Clear(w http.ResponseWriter, _ *http.Request) {
	if err := h.coordinator.ClearHistory(); err != nil {
		writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"conversationId": h.coordinator.ConversationID(),
	})
}
