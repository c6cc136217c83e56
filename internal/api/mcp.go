package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/bizassist/internal/assistant"
	"github.com/kalambet/bizassist/internal/datastore"
)

const (
	defaultPreviewLimit = assistant.SnapshotRowLimit
	maxPreviewLimit     = 50
)

// MCPDeps holds dependencies for the MCP server. Tables and Rows are optional;
// without them the data tools report that no data store is configured.
type MCPDeps struct {
	Assistant Assistant
	Tables    datastore.TableLister
	Rows      datastore.RowReader
	Version   string
}

// NewMCPServer creates an MCP server exposing the assistant and the data store.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	s := server.NewMCPServer(
		"bizassist",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions("bizassist answers business questions, optionally grounded in company tables."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask_assistant",
			mcp.WithDescription("Ask the business assistant a question. Company data from the authorized tables is added to the context when use_company_data is true."),
			mcp.WithString("message", mcp.Description("The user question"), mcp.Required()),
			mcp.WithString("system_prompt", mcp.Description("System instruction for the assistant"), mcp.Required()),
			mcp.WithString("custom_knowledge", mcp.Description("Extra reference text appended to the instruction")),
			mcp.WithBoolean("use_company_data", mcp.Description("Include a snapshot of the authorized tables")),
			mcp.WithArray("authorized_tables", mcp.Description("Tables the assistant may read, in order")),
			mcp.WithNumber("temperature", mcp.Description("Sampling temperature (default 0.7)")),
			mcp.WithNumber("max_tokens", mcp.Description("Maximum completion tokens (default 1000)")),
		),
		mcpAskAssistant(deps),
	)

	s.AddTool(
		mcp.NewTool("list_tables",
			mcp.WithDescription("List the tables available in the configured data store."),
		),
		mcpListTables(deps),
	)

	s.AddTool(
		mcp.NewTool("preview_table",
			mcp.WithDescription("Return the first rows of a table as JSON."),
			mcp.WithString("table", mcp.Description("Table name"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of rows (default 10)")),
		),
		mcpPreviewTable(deps),
	)

	return s
}

func mcpAskAssistant(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		message, err := req.RequireString("message")
		if err != nil {
			return mcpError("message is required"), nil
		}
		systemPrompt, err := req.RequireString("system_prompt")
		if err != nil {
			return mcpError("system_prompt is required"), nil
		}

		areq := assistant.Request{
			Message: message,
			Config: assistant.Config{
				SystemPrompt:     systemPrompt,
				CustomKnowledge:  req.GetString("custom_knowledge", ""),
				UseCompanyData:   req.GetBool("use_company_data", false),
				AuthorizedTables: req.GetStringSlice("authorized_tables", nil),
			},
		}

		// Presence matters: an explicit 0 temperature is honoured.
		args := req.GetArguments()
		if _, ok := args["temperature"]; ok {
			t := req.GetFloat("temperature", assistant.DefaultTemperature)
			areq.Config.Temperature = &t
		}
		if _, ok := args["max_tokens"]; ok {
			n := req.GetInt("max_tokens", assistant.DefaultMaxTokens)
			areq.Config.MaxTokens = &n
		}

		resp, err := deps.Assistant.Handle(ctx, areq)
		if err != nil {
			return mcpError(err.Error()), nil
		}

		b, err := json.Marshal(resp)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal response: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpListTables(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Tables == nil {
			return mcpError("no data store configured"), nil
		}

		tables, err := deps.Tables.Tables(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("listing tables failed: %v", err)), nil
		}
		if tables == nil {
			tables = []string{}
		}

		b, err := json.Marshal(tables)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal tables: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpPreviewTable(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Rows == nil {
			return mcpError("no data store configured"), nil
		}

		table, err := req.RequireString("table")
		if err != nil {
			return mcpError("table is required"), nil
		}

		limit := req.GetInt("limit", defaultPreviewLimit)
		if limit <= 0 {
			limit = defaultPreviewLimit
		}
		if limit > maxPreviewLimit {
			limit = maxPreviewLimit
		}

		rows, err := deps.Rows.Rows(ctx, table, limit)
		if err != nil {
			return mcpError(fmt.Sprintf("reading %s failed: %v", table, err)), nil
		}

		b, err := json.Marshal(rows)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal rows: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
