package chat

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/matiasleandrokruk/chatd/internal/infra/eventbus"
	"github.com/matiasleandrokruk/chatd/pkg/uuid"
)

// Store persists conversation turns to SQLite. It consumes coordinator
// events from the bus, so persistence never sits on the streaming path; the
// in-memory transcript remains the source of truth.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store over an already-migrated database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ConversationRecord is one persisted conversation.
type ConversationRecord struct {
	ID         string `json:"id"`
	ProviderID string `json:"providerId"`
	CreatedAt  string `json:"createdAt"`
}

// TurnRecord is one persisted turn. Token columns are nil when the provider
// reported no usage.
type TurnRecord struct {
	ID           string `json:"id"`
	Role         string `json:"role"`
	Content      string `json:"content"`
	InputTokens  *int   `json:"inputTokens,omitempty"`
	OutputTokens *int   `json:"outputTokens,omitempty"`
	TotalTokens  *int   `json:"totalTokens,omitempty"`
	CreatedAt    string `json:"createdAt"`
}

// Start consumes coordinator events until ctx is cancelled. Run it in its
// own goroutine. Write failures are logged and skipped — a broken disk must
// not take the conversation down.
func (s *Store) Start(ctx context.Context, bus eventbus.EventBus) {
	turns := bus.Subscribe(TopicTurn)
	conversations := bus.Subscribe(TopicConversation)

	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-conversations:
			ev, ok := evt.Payload.(ConversationEvent)
			if !ok {
				continue
			}
			if err := s.saveConversation(ctx, ev); err != nil {
				log.Error().Err(err).Str("conversation", ev.ConversationID).Msg("persist conversation failed")
			}
		case evt := <-turns:
			ev, ok := evt.Payload.(TurnEvent)
			if !ok {
				continue
			}
			if err := s.SaveTurn(ctx, ev); err != nil {
				log.Error().Err(err).Str("conversation", ev.ConversationID).Msg("persist turn failed")
			}
		}
	}
}

// saveConversation records a conversation row (idempotent).
func (s *Store) saveConversation(ctx context.Context, ev ConversationEvent) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO conversations (id, provider_id) VALUES (?, ?)",
		ev.ConversationID, ev.ProviderID,
	)
	if err != nil {
		return fmt.Errorf("store: insert conversation: %w", err)
	}
	return nil
}

// SaveTurn records one turn, creating the conversation row if the
// conversation event was dropped by the bus.
func (s *Store) SaveTurn(ctx context.Context, ev TurnEvent) error {
	if err := s.saveConversation(ctx, ConversationEvent{ConversationID: ev.ConversationID, ProviderID: ev.ProviderID}); err != nil {
		return err
	}

	var input, output, total *int
	if u := ev.Turn.Usage; u != nil {
		input, output, total = &u.Input, &u.Output, &u.Total
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO turns (id, conversation_id, role, content, input_tokens, output_tokens, total_tokens)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewV7().String(), ev.ConversationID, ev.Turn.Role, ev.Turn.Content, input, output, total,
	)
	if err != nil {
		return fmt.Errorf("store: insert turn: %w", err)
	}
	return nil
}

// ListConversations returns the most recent conversations, newest first.
func (s *Store) ListConversations(ctx context.Context, limit int) ([]ConversationRecord, error) {
	if limit <= 0 {
		limit = 25
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, provider_id, created_at FROM conversations ORDER BY id DESC LIMIT ?", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("store: list conversations: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	out := make([]ConversationRecord, 0, limit)
	for rows.Next() {
		var rec ConversationRecord
		if scanErr := rows.Scan(&rec.ID, &rec.ProviderID, &rec.CreatedAt); scanErr != nil {
			return nil, fmt.Errorf("store: scan conversation: %w", scanErr)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Turns returns every persisted turn of a conversation, oldest first.
// UUID v7 primary keys sort in insertion order.
func (s *Store) Turns(ctx context.Context, conversationID string) ([]TurnRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, content, input_tokens, output_tokens, total_tokens, created_at
		 FROM turns WHERE conversation_id = ? ORDER BY id ASC`, conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: list turns: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []TurnRecord
	for rows.Next() {
		var rec TurnRecord
		var input, output, total sql.NullInt64
		if scanErr := rows.Scan(&rec.ID, &rec.Role, &rec.Content, &input, &output, &total, &rec.CreatedAt); scanErr != nil {
			return nil, fmt.Errorf("store: scan turn: %w", scanErr)
		}
		rec.InputTokens = intPtr(input)
		rec.OutputTokens = intPtr(output)
		rec.TotalTokens = intPtr(total)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// intPtr converts a nullable column into an optional int.
func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
