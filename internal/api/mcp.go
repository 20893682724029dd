package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Runner QueryRunner
	Schema SchemaProvider
}

// NewMCPServer creates an MCP server exposing the query pipeline and schema
// inspection as tools.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"dqc",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("dqc — ask questions about a local SQLite database in natural language; answers come back as vetted read-only SQL plus results."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask_database",
			mcp.WithDescription("Answer a natural-language question by generating, vetting, and executing read-only SQL against the configured database."),
			mcp.WithString("question", mcp.Description("The question to answer"), mcp.Required()),
		),
		mcpAskDatabase(deps),
	)

	s.AddTool(
		mcp.NewTool("inspect_schema",
			mcp.WithDescription("Return the database schema: tables, columns, types, and foreign keys."),
		),
		mcpInspectSchema(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"db://schema",
			"Database Schema",
			mcp.WithResourceDescription("Current schema snapshot as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceSchema(deps),
	)

	return s
}

func mcpAskDatabase(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}

		result := deps.Runner.Run(ctx, question)
		b, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return mcpError(fmt.Sprintf("failed to encode result: %v", err)), nil
		}
		if !result.OK {
			return mcpError(string(b)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpInspectSchema(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		s, err := deps.Schema.Schema(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to load schema: %v", err)), nil
		}
		b, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return mcpError(fmt.Sprintf("failed to encode schema: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceSchema(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		s, err := deps.Schema.Schema(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading schema: %w", err)
		}
		b, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding schema: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
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
