package mcptools

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"

	"github.com/mohammad-safakhou/aide/internal/agent"
	"github.com/mohammad-safakhou/aide/internal/identity"
	"github.com/mohammad-safakhou/aide/internal/orchestrator"
	"github.com/mohammad-safakhou/aide/internal/store"
)

// ─── Test helpers ────────────────────────────────────────────────────────────

func newTestAssistant(t *testing.T) *orchestrator.Orchestrator {
	t.Helper()
	now := func() time.Time { return time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC) }
	routers, err := store.NewRouterSet(store.Options{DataDir: t.TempDir(), Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("failed to create routers: %v", err)
	}
	return orchestrator.New(orchestrator.Options{
		Agents:    agent.NewSet(routers, agent.NewInterpreter(nil, now), zerolog.Nop(), now),
		Identity:  identity.New("default_user"),
		Threshold: 0.5,
		Logger:    zerolog.Nop(),
		Now:       now,
	})
}

func makeReq(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(r *mcp.CallToolResult) string {
	if r == nil || len(r.Content) == 0 {
		return ""
	}
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func findTool(t *testing.T, tools []Tool, name string) Tool {
	t.Helper()
	for _, tool := range tools {
		if tool.Definition().Name == name {
			return tool
		}
	}
	t.Fatalf("tool %q not registered", name)
	return nil
}

// ─── Definitions ─────────────────────────────────────────────────────────────

func TestToolDefinitions(t *testing.T) {
	tools := Tools(newTestAssistant(t))
	want := []string{"personal_assistant", "expense_tracker", "notes", "meetings", "health_diet"}
	if len(tools) != len(want) {
		t.Fatalf("got %d tools, want %d", len(tools), len(want))
	}
	for i, tool := range tools {
		def := tool.Definition()
		if def.Name != want[i] {
			t.Errorf("tool %d = %q, want %q", i, def.Name, want[i])
		}
		if _, ok := def.InputSchema.Properties["instruction"]; !ok {
			t.Errorf("%s: missing 'instruction' parameter", def.Name)
		}
		if _, ok := def.InputSchema.Properties["user_id"]; !ok {
			t.Errorf("%s: missing 'user_id' parameter", def.Name)
		}
		if len(def.InputSchema.Required) != 1 || def.InputSchema.Required[0] != "instruction" {
			t.Errorf("%s: required = %v", def.Name, def.InputSchema.Required)
		}
	}
}

// ─── Handlers ────────────────────────────────────────────────────────────────

func TestAssistantToolRoutes(t *testing.T) {
	tools := Tools(newTestAssistant(t))
	tool := findTool(t, tools, "personal_assistant")

	res, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{
		"instruction": "I spent $9.50 on coffee today",
		"user_id":     "alice",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(res))
	}
	if text := resultText(res); !strings.Contains(text, "Added expense: $9.50 on food") {
		t.Errorf("unexpected reply %q", text)
	}

	res, _ = findTool(t, tools, "expense_tracker").Handle(context.Background(), makeReq(map[string]interface{}{
		"instruction": "show my expenses",
		"user_id":     "alice",
	}))
	if text := resultText(res); !strings.Contains(text, "$9.50") {
		t.Errorf("alice should see her expense, got %q", text)
	}

	res, _ = findTool(t, tools, "expense_tracker").Handle(context.Background(), makeReq(map[string]interface{}{
		"instruction": "show my expenses",
		"user_id":     "bob",
	}))
	if text := resultText(res); strings.Contains(text, "$9.50") {
		t.Errorf("bob must not see alice's expense, got %q", text)
	}
}

func TestAgentToolMissingInstruction(t *testing.T) {
	tool := findTool(t, Tools(newTestAssistant(t)), "notes")
	res, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected a tool error for a missing instruction")
	}
}

type failingAssistant struct{}

func (failingAssistant) RouteAs(context.Context, string, string) (string, error) {
	return "", errors.New("boom")
}

func (failingAssistant) Ask(context.Context, string, string, string) (string, error) {
	return "", errors.New("boom")
}

func TestToolErrorsBecomeResults(t *testing.T) {
	for _, tool := range Tools(failingAssistant{}) {
		res, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{"instruction": "anything"}))
		if err != nil {
			t.Fatalf("%s: handler returned error %v", tool.Definition().Name, err)
		}
		if !res.IsError || !strings.Contains(resultText(res), "boom") {
			t.Errorf("%s: expected error result, got %q", tool.Definition().Name, resultText(res))
		}
	}
}

func TestNewServerRegistersTools(t *testing.T) {
	s := NewServer(newTestAssistant(t))
	if s == nil {
		t.Fatal("expected server")
	}
}
