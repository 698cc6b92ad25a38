// Package mcptools exposes the assistant as MCP tools: one tool that routes
// free-form requests and one tool per domain agent.
//
// Every tool follows the same shape:
// - Definition() returns the mcp.Tool schema
// - Handle() reads instruction and user_id and returns the reply as text
package mcptools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mohammad-safakhou/aide/internal/agent"
)

// Version is reported to MCP clients.
var Version = "dev"

// Assistant is the part of the orchestrator the tools call.
type Assistant interface {
	RouteAs(ctx context.Context, query, defaultUser string) (string, error)
	Ask(ctx context.Context, domain, query, defaultUser string) (string, error)
}

// Tool is one MCP tool.
type Tool interface {
	Definition() mcp.Tool
	Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// AssistantTool routes a request to whichever agents it concerns.
type AssistantTool struct {
	assistant Assistant
}

func NewAssistantTool(a Assistant) *AssistantTool { return &AssistantTool{assistant: a} }

func (t *AssistantTool) Definition() mcp.Tool {
	return mcp.NewTool("personal_assistant",
		mcp.WithDescription(
			"Personal assistant for expenses, notes, meetings and health & diet. Send any request in plain language; "+
				"compound requests touching several areas are split and answered part by part.",
		),
		instructionArg(),
		userArg(),
	)
}

func (t *AssistantTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	instruction, userID, bad := args(req)
	if bad != nil {
		return bad, nil
	}
	reply, err := t.assistant.RouteAs(ctx, instruction, userID)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("assistant failed", err), nil
	}
	return mcp.NewToolResultText(reply), nil
}

// AgentTool sends instructions straight to one domain agent.
type AgentTool struct {
	assistant   Assistant
	name        string
	domain      string
	description string
}

// domainTools names the per-domain tools.
var domainTools = []struct {
	name, domain, description string
}{
	{"expense_tracker", agent.DomainExpenses, "Track expenses: add, list, update or delete expenses, summarize spending by category, date or payment method, and check budgets."},
	{"notes", agent.DomainNotes, "Manage notes and to-dos: add, list, search, complete, update or delete notes."},
	{"meetings", agent.DomainMeetings, "Schedule meetings: create, list upcoming, search, reschedule, cancel or delete meetings."},
	{"health_diet", agent.DomainHealth, "Health and diet: log meals and calories, see daily totals, set goals and track progress."},
}

// NewAgentTools returns one tool per domain agent.
func NewAgentTools(a Assistant) []*AgentTool {
	out := make([]*AgentTool, 0, len(domainTools))
	for _, d := range domainTools {
		out = append(out, &AgentTool{assistant: a, name: d.name, domain: d.domain, description: d.description})
	}
	return out
}

func (t *AgentTool) Definition() mcp.Tool {
	return mcp.NewTool(t.name,
		mcp.WithDescription(t.description),
		instructionArg(),
		userArg(),
	)
}

func (t *AgentTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	instruction, userID, bad := args(req)
	if bad != nil {
		return bad, nil
	}
	reply, err := t.assistant.Ask(ctx, t.domain, instruction, userID)
	if err != nil {
		return mcp.NewToolResultErrorFromErr(t.name+" failed", err), nil
	}
	return mcp.NewToolResultText(reply), nil
}

// Tools lists every tool in registration order.
func Tools(a Assistant) []Tool {
	tools := []Tool{NewAssistantTool(a)}
	for _, t := range NewAgentTools(a) {
		tools = append(tools, t)
	}
	return tools
}

// NewServer builds an MCP server with every tool registered.
func NewServer(a Assistant) *server.MCPServer {
	s := server.NewMCPServer(
		"aide",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions("Use personal_assistant for any request; the per-area tools skip routing. "+
			"Pass user_id when you know who is asking."),
	)
	for _, t := range Tools(a) {
		s.AddTool(t.Definition(), t.Handle)
	}
	return s
}

func instructionArg() mcp.ToolOption {
	return mcp.WithString("instruction",
		mcp.Required(),
		mcp.Description("The request in plain language, e.g. 'I spent $12 on lunch today'"),
	)
}

func userArg() mcp.ToolOption {
	return mcp.WithString("user_id",
		mcp.Description("Who is asking. Used when the instruction names no user (default: the configured default user)"),
	)
}

func args(req mcp.CallToolRequest) (instruction, userID string, bad *mcp.CallToolResult) {
	instruction = req.GetString("instruction", "")
	if instruction == "" {
		return "", "", mcp.NewToolResultError("'instruction' is required")
	}
	return instruction, req.GetString("user_id", ""), nil
}
