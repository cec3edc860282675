package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/matiasleandrokruk/chatd/internal/domain/chat"
	"github.com/matiasleandrokruk/chatd/internal/infra/llm"
)

// ProviderLister is the factory surface the provider handlers consume.
type ProviderLister interface {
	ListProviders(ctx context.Context) []llm.ProviderStatus
}

// ProviderHandler serves provider listing and switching.
type ProviderHandler struct {
	factory     ProviderLister
	coordinator Coordinator
}

// NewProviderHandler creates a ProviderHandler.
func NewProviderHandler(factory ProviderLister, coordinator Coordinator) *ProviderHandler {
	return &ProviderHandler{factory: factory, coordinator: coordinator}
}

// ProviderInfo is one entry of the provider listing.
type ProviderInfo struct {
	ID           string `json:"id"`
	DisplayName  string `json:"displayName"`
	Online       bool   `json:"online"`
	DefaultModel string `json:"defaultModel"`
	Available    bool   `json:"available"`
	Active       bool   `json:"active"`
}

// List handles GET /api/v1/providers.
func (h *ProviderHandler) List(w http.ResponseWriter, r *http.Request) {
	active := h.coordinator.ProviderID()

	statuses := h.factory.ListProviders(r.Context())
	out := make([]ProviderInfo, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, ProviderInfo{
			ID:           s.ID,
			DisplayName:  s.DisplayName,
			Online:       s.Online,
			DefaultModel: s.DefaultModel,
			Available:    s.Available,
			Active:       s.ID == active,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"providers": out})
}

type switchRequest struct {
	ProviderID string `json:"providerId"`
}

// SwitchResponse is the body returned after a provider switch.
type SwitchResponse struct {
	ProviderID     string `json:"providerId"`
	ConversationID string `json:"conversationId"`
}

// Switch handles PUT /api/v1/providers/active.
//
// Response codes:
//   - 200 OK: switch succeeded (or was a no-op)
//   - 400 Bad Request: invalid JSON, missing or unknown provider id
//   - 409 Conflict: a request is in flight
//   - 503 Service Unavailable: provider not configured or disabled
func (h *ProviderHandler) Switch(w http.ResponseWriter, r *http.Request) {
	var req switchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProviderID == "" {
		writeError(w, http.StatusBadRequest, "providerId is required")
		return
	}

	if err := h.coordinator.SwitchProvider(req.ProviderID); err != nil {
		switch {
		case errors.Is(err, chat.ErrBusy):
			writeError(w, http.StatusConflict, "a request is already in flight")
		case errors.Is(err, llm.ErrUnsupportedProvider):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, llm.ErrProviderUnavailable), errors.Is(err, llm.ErrInvalidConfiguration):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "switch failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, SwitchResponse{
		ProviderID:     h.coordinator.ProviderID(),
		ConversationID: h.coordinator.ConversationID(),
	})
}
