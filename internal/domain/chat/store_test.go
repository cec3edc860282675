package chat

import (
	"context"
	"testing"
	"time"

	"github.com/matiasleandrokruk/chatd/internal/infra/eventbus"
	"github.com/matiasleandrokruk/chatd/internal/infra/llm"
	"github.com/matiasleandrokruk/chatd/internal/infra/sqlite"
	"github.com/matiasleandrokruk/chatd/pkg/uuid"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := sqlite.NewDB(":memory:")
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck

	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}
	return NewStore(db)
}

func TestStore_SaveTurnAndReadBack(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	convID := uuid.NewV7().String()

	events := []TurnEvent{
		{ConversationID: convID, ProviderID: "Ollama", Turn: Turn{Role: llm.RoleUser, Content: "hi"}},
		{ConversationID: convID, ProviderID: "Ollama", Turn: Turn{
			Role:    llm.RoleAssistant,
			Content: "hello",
			Usage:   &llm.TokenUsage{Input: 4, Output: 2, Total: 6},
		}},
	}
	for _, ev := range events {
		if err := store.SaveTurn(ctx, ev); err != nil {
			t.Fatalf("SaveTurn failed: %v", err)
		}
	}

	turns, err := store.Turns(ctx, convID)
	if err != nil {
		t.Fatalf("Turns failed: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].Role != llm.RoleUser || turns[0].Content != "hi" {
		t.Errorf("unexpected first turn %+v", turns[0])
	}
	if turns[0].TotalTokens != nil {
		t.Errorf("expected nil usage on the user turn, got %d", *turns[0].TotalTokens)
	}
	if turns[1].TotalTokens == nil || *turns[1].TotalTokens != 6 {
		t.Errorf("expected 6 total tokens on the assistant turn, got %+v", turns[1].TotalTokens)
	}
}

func TestStore_ListConversations_NewestFirst(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	first := uuid.NewV7().String()
	second := uuid.NewV7().String()
	for _, id := range []string{first, second} {
		ev := TurnEvent{ConversationID: id, ProviderID: "OpenAI", Turn: Turn{Role: llm.RoleUser, Content: "hi"}}
		if err := store.SaveTurn(ctx, ev); err != nil {
			t.Fatalf("SaveTurn failed: %v", err)
		}
	}

	convs, err := store.ListConversations(ctx, 10)
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if len(convs) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(convs))
	}
	if convs[0].ID != second || convs[1].ID != first {
		t.Errorf("expected newest first, got %q then %q", convs[0].ID, convs[1].ID)
	}
	if convs[0].ProviderID != "OpenAI" {
		t.Errorf("unexpected provider %q", convs[0].ProviderID)
	}
}

func TestStore_StartConsumesBusEvents(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	bus := eventbus.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go store.Start(ctx, bus)

	convID := uuid.NewV7().String()
	bus.Publish(TopicConversation, ConversationEvent{ConversationID: convID, ProviderID: "Ollama"})
	bus.Publish(TopicTurn, TurnEvent{ConversationID: convID, ProviderID: "Ollama", Turn: Turn{Role: llm.RoleUser, Content: "hi"}})

	deadline := time.Now().Add(2 * time.Second)
	for {
		turns, err := store.Turns(context.Background(), convID)
		if err != nil {
			t.Fatalf("Turns failed: %v", err)
		}
		if len(turns) == 1 {
			if turns[0].Content != "hi" {
				t.Fatalf("unexpected turn %+v", turns[0])
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("turn was not persisted in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
