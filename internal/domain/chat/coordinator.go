package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/matiasleandrokruk/chatd/internal/infra/config"
	"github.com/matiasleandrokruk/chatd/internal/infra/eventbus"
	"github.com/matiasleandrokruk/chatd/internal/infra/llm"
	"github.com/matiasleandrokruk/chatd/pkg/uuid"
)

// ErrBusy is returned when a send is attempted while another request is in
// flight. One coordinator serves one logical caller at a time.
var ErrBusy = errors.New("chat: a request is already in flight")

// State is the coordinator lifecycle state.
type State int

const (
	// StateIdle means no provider handle is bound yet.
	StateIdle State = iota
	// StateBound means a handle is resolved and ready to converse.
	StateBound
	// StateBusy means a request is in flight.
	StateBusy
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBound:
		return "bound"
	case StateBusy:
		return "busy"
	default:
		return "unknown"
	}
}

// Event bus topics published by the coordinator.
const (
	// TopicTurn carries a TurnEvent after each appended turn.
	TopicTurn = "chat.turn"
	// TopicConversation carries a ConversationEvent when a conversation
	// starts (initial bind or history clear).
	TopicConversation = "chat.conversation"
)

// TurnEvent is the TopicTurn payload.
type TurnEvent struct {
	ConversationID string
	ProviderID     string
	Turn           Turn
}

// ConversationEvent is the TopicConversation payload.
type ConversationEvent struct {
	ConversationID string
	ProviderID     string
}

// ProviderFactory is the subset of the capability factory the coordinator
// needs: handle resolution and availability checks.
type ProviderFactory interface {
	GetOrCreate(id string) (llm.ChatProvider, error)
	IsAvailable(id string) bool
	DefaultProviderID() (string, error)
}

// Coordinator owns a single conversation transcript and delegates completion
// requests to the currently bound provider handle. Handles are owned and
// cached by the factory; the coordinator only binds and rebinds.
type Coordinator struct {
	mu             sync.Mutex
	factory        ProviderFactory
	cfg            *config.Config
	bus            eventbus.EventBus
	providerID     string
	handle         llm.ChatProvider
	transcript     *Transcript
	conversationID string
	state          State
}

// NewCoordinator creates a coordinator in the Idle state.
func NewCoordinator(factory ProviderFactory, cfg *config.Config) *Coordinator {
	return &Coordinator{
		factory:        factory,
		cfg:            cfg,
		transcript:     NewTranscript(cfg.Chat.DefaultSystemMessage),
		conversationID: uuid.NewV7().String(),
		state:          StateIdle,
	}
}

// NewCoordinatorWithBus creates a coordinator that publishes transcript
// events for asynchronous persistence.
func NewCoordinatorWithBus(factory ProviderFactory, cfg *config.Config, bus eventbus.EventBus) *Coordinator {
	c := NewCoordinator(factory, cfg)
	c.bus = bus
	return c
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ProviderID returns the currently bound provider identifier, or "" when Idle.
func (c *Coordinator) ProviderID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.providerID
}

// ConversationID returns the identifier of the active conversation.
func (c *Coordinator) ConversationID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conversationID
}

// SwitchProvider binds the coordinator to the given provider. No-op when
// already bound to it. The transcript is deliberately NOT cleared: the
// conversation continues across providers, which will replay the full
// history on their next completion call.
func (c *Coordinator) SwitchProvider(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateBusy {
		return ErrBusy
	}
	return c.bindLocked(id)
}

// bindLocked resolves and binds a handle. Caller holds c.mu.
func (c *Coordinator) bindLocked(id string) error {
	if id == c.providerID && c.handle != nil {
		return nil
	}
	if !c.factory.IsAvailable(id) {
		return fmt.Errorf("%w: %q", llm.ErrProviderUnavailable, id)
	}
	h, err := c.factory.GetOrCreate(id)
	if err != nil {
		return err
	}

	c.handle = h
	c.providerID = id
	if c.state == StateIdle {
		c.state = StateBound
		c.publish(TopicConversation, ConversationEvent{ConversationID: c.conversationID, ProviderID: id})
	}

	log.Info().Str("provider", id).Str("conversation", c.conversationID).Msg("provider bound")
	return nil
}

// ensureBoundLocked binds the configured default provider when Idle.
func (c *Coordinator) ensureBoundLocked() error {
	if c.handle != nil {
		return nil
	}
	id, err := c.factory.DefaultProviderID()
	if err != nil {
		return err
	}
	return c.bindLocked(id)
}

// Send appends the user turn immediately and returns a lazy,
// single-consumption channel of response chunks. The final chunk has
// Done=true and the best-known cumulative token usage. After the stream is
// exhausted — complete, failed mid-stream, or cancelled — the accumulated
// assistant text (partial included) is appended as the assistant turn and
// truncation runs. A provider error before streaming starts leaves the user
// turn recorded and appends no assistant turn.
func (c *Coordinator) Send(ctx context.Context, text string) (<-chan llm.StreamChunk, error) {
	handle, req, err := c.beginSend(text)
	if err != nil {
		return nil, err
	}

	stream, err := handle.ChatStream(ctx, req)
	if err != nil {
		c.failSend(err)
		return nil, err
	}

	out := make(chan llm.StreamChunk)
	go func() {
		defer close(out)

		var content strings.Builder
		var usage *llm.TokenUsage
		for chunk := range stream {
			content.WriteString(chunk.Delta)
			if chunk.Usage != nil {
				usage = chunk.Usage
			}
			if chunk.Err != nil {
				log.Warn().Str("provider", c.ProviderID()).Err(chunk.Err).Msg("stream failed mid-reply")
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				// Consumer went away; keep draining so the provider
				// goroutine can exit, but stop forwarding.
			}
		}
		c.finishSend(content.String(), usage)
	}()

	return out, nil
}

// SendBlocking performs one blocking round trip. On provider failure the
// user turn stays recorded and no assistant turn is appended.
func (c *Coordinator) SendBlocking(ctx context.Context, text string) (*llm.ChatResponse, error) {
	handle, req, err := c.beginSend(text)
	if err != nil {
		return nil, err
	}

	resp, err := handle.ChatCompletion(ctx, req)
	if err != nil {
		c.failSend(err)
		return nil, err
	}

	c.finishSend(resp.Content, resp.Usage)
	return resp, nil
}

// beginSend validates state, appends the user turn, and snapshots the
// request under the lock.
func (c *Coordinator) beginSend(text string) (llm.ChatProvider, llm.ChatRequest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateBusy {
		return nil, llm.ChatRequest{}, ErrBusy
	}
	if err := c.ensureBoundLocked(); err != nil {
		return nil, llm.ChatRequest{}, err
	}

	c.appendLocked(Turn{Role: llm.RoleUser, Content: text, At: time.Now().UTC()})

	settings, _ := c.cfg.ExecutionSettings(c.providerID)
	req := llm.ChatRequest{
		Messages:    c.transcript.Messages(),
		Temperature: settings.Temperature,
		MaxTokens:   settings.MaxTokens,
	}

	c.state = StateBusy
	return c.handle, req, nil
}

// failSend restores the Bound state after a failed provider call. The user
// turn stays recorded; the error propagates to the caller unmodified.
func (c *Coordinator) failSend(err error) {
	c.mu.Lock()
	c.state = StateBound
	provider := c.providerID
	c.mu.Unlock()

	log.Error().Str("provider", provider).Err(err).Msg("completion request failed")
}

// finishSend appends the assistant turn (possibly partial, possibly empty —
// every user turn gets a paired assistant record), truncates, and returns
// to the Bound state.
func (c *Coordinator) finishSend(content string, usage *llm.TokenUsage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.appendLocked(Turn{Role: llm.RoleAssistant, Content: content, Usage: usage, At: time.Now().UTC()})
	c.truncateLocked()
	c.state = StateBound
}

// appendLocked records a turn and publishes it. Caller holds c.mu.
func (c *Coordinator) appendLocked(turn Turn) {
	c.transcript.Append(turn)
	c.publish(TopicTurn, TurnEvent{ConversationID: c.conversationID, ProviderID: c.providerID, Turn: turn})
}

// truncateLocked applies the history budget. Caller holds c.mu.
func (c *Coordinator) truncateLocked() {
	reduced := Reduce(c.transcript.Turns(), c.cfg.Chat.MaxHistoryMessages)
	if reduced == nil {
		return
	}
	dropped := c.transcript.Len() - len(reduced)
	c.transcript.replace(reduced)
	log.Debug().Int("dropped", dropped).Str("conversation", c.conversationID).Msg("transcript truncated")
}

// ClearHistory resets the transcript to the single system turn and rotates
// the conversation id so persisted history stays append-only. Returns
// ErrBusy while a request is in flight: clearing mid-stream would let the
// pending assistant turn land unpaired on the fresh conversation.
func (c *Coordinator) ClearHistory() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateBusy {
		return ErrBusy
	}

	system := c.cfg.Chat.DefaultSystemMessage
	if c.providerID != "" {
		if settings, ok := c.cfg.ExecutionSettings(c.providerID); ok {
			system = settings.SystemPrompt
		}
	}

	c.transcript.Reset(system)
	c.conversationID = uuid.NewV7().String()
	c.publish(TopicConversation, ConversationEvent{ConversationID: c.conversationID, ProviderID: c.providerID})

	log.Info().Str("conversation", c.conversationID).Msg("history cleared")
	return nil
}

// History returns the conversation excluding the system turn, oldest first.
func (c *Coordinator) History() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcript.History()
}

// publish emits an event when a bus is attached.
func (c *Coordinator) publish(topic string, payload any) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(topic, payload)
}
