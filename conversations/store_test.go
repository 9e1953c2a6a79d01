package conversations

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/aschepis/agentloop/llm"
	"github.com/aschepis/agentloop/migrations"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := migrations.Run(db, zerolog.Nop()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return NewStore(db)
}

func TestStore_HistoryRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.AppendUserMessage(ctx, "a1", "t1", "what's the weather?"); err != nil {
		t.Fatalf("AppendUserMessage failed: %v", err)
	}
	call := llm.ToolCall{ID: "call-1", Name: "get_weather", Arguments: `{"city": "Paris"}`}
	if err := store.AppendToolCall(ctx, "a1", "t1", call); err != nil {
		t.Fatalf("AppendToolCall failed: %v", err)
	}
	result := llm.NewToolResultMessage("call-1", "get_weather", "sunny", false)
	if err := store.AppendToolResult(ctx, "a1", "t1", result); err != nil {
		t.Fatalf("AppendToolResult failed: %v", err)
	}
	if err := store.AppendAssistantMessage(ctx, "a1", "t1", "It is sunny."); err != nil {
		t.Fatalf("AppendAssistantMessage failed: %v", err)
	}

	history, err := store.History(ctx, "a1", "t1")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("Expected 4 messages, got %d", len(history))
	}

	if history[0].Role != llm.RoleUser || history[0].Content != "what's the weather?" {
		t.Errorf("Unexpected user message: %+v", history[0])
	}

	assistant := history[1]
	if assistant.Role != llm.RoleAssistant || len(assistant.ToolCalls) != 1 {
		t.Fatalf("Expected assistant tool-call message, got %+v", assistant)
	}
	if assistant.ToolCalls[0].ID != "call-1" || assistant.ToolCalls[0].Arguments != `{"city": "Paris"}` {
		t.Errorf("Tool call not preserved: %+v", assistant.ToolCalls[0])
	}

	toolMsg := history[2]
	if toolMsg.Role != llm.RoleTool || toolMsg.ToolCallID != "call-1" {
		t.Fatalf("Expected tool result message, got %+v", toolMsg)
	}
	if toolMsg.Content != "sunny" || toolMsg.ToolCallError {
		t.Errorf("Tool result not preserved: %+v", toolMsg)
	}

	if history[3].Role != llm.RoleAssistant || history[3].Content != "It is sunny." {
		t.Errorf("Unexpected final message: %+v", history[3])
	}
}

func TestStore_HistoryFoldsCallsIntoAssistantMessage(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.AppendAssistantMessage(ctx, "a1", "t1", "Let me check a few things."); err != nil {
		t.Fatalf("AppendAssistantMessage failed: %v", err)
	}
	for _, call := range []llm.ToolCall{
		{ID: "c1", Name: "first", Arguments: "{}"},
		{ID: "c2", Name: "second", Arguments: "{}"},
	} {
		if err := store.AppendToolCall(ctx, "a1", "t1", call); err != nil {
			t.Fatalf("AppendToolCall failed: %v", err)
		}
	}

	history, err := store.History(ctx, "a1", "t1")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("Expected calls folded into one assistant message, got %d messages", len(history))
	}
	msg := history[0]
	if msg.Content != "Let me check a few things." {
		t.Errorf("Expected assistant text preserved, got %q", msg.Content)
	}
	if len(msg.ToolCalls) != 2 || msg.ToolCalls[0].ID != "c1" || msg.ToolCalls[1].ID != "c2" {
		t.Errorf("Expected both calls in order, got %+v", msg.ToolCalls)
	}
}

func TestStore_DuplicateToolCallIgnored(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	call := llm.ToolCall{ID: "c1", Name: "tool", Arguments: "{}"}
	if err := store.AppendToolCall(ctx, "a1", "t1", call); err != nil {
		t.Fatalf("AppendToolCall failed: %v", err)
	}
	if err := store.AppendToolCall(ctx, "a1", "t1", call); err != nil {
		t.Fatalf("Expected duplicate insert to be ignored, got %v", err)
	}

	history, err := store.History(ctx, "a1", "t1")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 1 || len(history[0].ToolCalls) != 1 {
		t.Errorf("Expected a single stored call, got %+v", history)
	}
}

func TestStore_ToolResultErrorFlag(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	result := llm.NewToolResultMessage("c1", "tool", "no such city", true)
	if err := store.AppendToolResult(ctx, "a1", "t1", result); err != nil {
		t.Fatalf("AppendToolResult failed: %v", err)
	}

	history, err := store.History(ctx, "a1", "t1")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(history))
	}
	if !history[0].ToolCallError || history[0].Content != "no such city" {
		t.Errorf("Expected error result preserved, got %+v", history[0])
	}
}

func TestStore_HistoryIsolatedByThread(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.AppendUserMessage(ctx, "a1", "t1", "one"); err != nil {
		t.Fatalf("AppendUserMessage failed: %v", err)
	}
	if err := store.AppendUserMessage(ctx, "a1", "t2", "two"); err != nil {
		t.Fatalf("AppendUserMessage failed: %v", err)
	}

	history, err := store.History(ctx, "a1", "t1")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 1 || history[0].Content != "one" {
		t.Errorf("Expected only thread t1 messages, got %+v", history)
	}
}

func TestStore_Threads(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.AppendUserMessage(ctx, "a1", "t1", "hi"); err != nil {
		t.Fatalf("AppendUserMessage failed: %v", err)
	}
	if err := store.AppendUserMessage(ctx, "a1", "t2", "hello"); err != nil {
		t.Fatalf("AppendUserMessage failed: %v", err)
	}
	if err := store.AppendUserMessage(ctx, "a2", "other", "hey"); err != nil {
		t.Fatalf("AppendUserMessage failed: %v", err)
	}

	threads, err := store.Threads(ctx, "a1")
	if err != nil {
		t.Fatalf("Threads failed: %v", err)
	}
	if len(threads) != 2 {
		t.Fatalf("Expected 2 threads for a1, got %v", threads)
	}
	for _, id := range threads {
		if id != "t1" && id != "t2" {
			t.Errorf("Unexpected thread %q", id)
		}
	}
}
