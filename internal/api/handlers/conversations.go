package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/matiasleandrokruk/chatd/internal/domain/chat"
)

// ConversationReader is the store surface the conversation handlers consume.
type ConversationReader interface {
	ListConversations(ctx context.Context, limit int) ([]chat.ConversationRecord, error)
	Turns(ctx context.Context, conversationID string) ([]chat.TurnRecord, error)
}

// ConversationHandler serves persisted conversation history.
type ConversationHandler struct {
	store ConversationReader
}

// NewConversationHandler creates a ConversationHandler over the store.
func NewConversationHandler(store ConversationReader) *ConversationHandler {
	return &ConversationHandler{store: store}
}

// List handles GET /api/v1/conversations.
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.store.ListConversations(r.Context(), parseLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": records})
}

// Turns handles GET /api/v1/conversations/{id}/turns.
func (h *ConversationHandler) Turns(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "conversation id is required")
		return
	}

	records, err := h.store.Turns(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list turns")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"turns": records})
}
