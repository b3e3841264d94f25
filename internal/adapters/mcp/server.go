// Package mcpadapter exposes read-only study tools over persisted file records.
package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/study-assistant/internal/core/domain"
	"github.com/kirillkom/study-assistant/internal/core/ports"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	defaultTextChars = 20000
)

type Tools struct {
	files  ports.FileReader
	logger *slog.Logger
}

func NewTools(files ports.FileReader, logger *slog.Logger) *Tools {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tools{files: files, logger: logger}
}

// NewServer registers the study tools on a new MCP server.
func NewServer(name, version string, tools *Tools) *server.MCPServer {
	s := server.NewMCPServer(name, version, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("list_files",
		mcp.WithDescription("List uploaded study files with their summaries, newest first."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of files to return (1-100).")),
	), tools.ListFiles)

	s.AddTool(mcp.NewTool("get_file_text",
		mcp.WithDescription("Return the extracted text of an uploaded file."),
		mcp.WithString("id", mcp.Required(), mcp.Description("File id as returned by list_files.")),
		mcp.WithNumber("max_chars", mcp.Description("Truncate the text to this many characters.")),
	), tools.GetFileText)

	s.AddTool(mcp.NewTool("get_study_pack",
		mcp.WithDescription("Return the generated analysis and practice questions for a file."),
		mcp.WithString("id", mcp.Required(), mcp.Description("File id as returned by list_files.")),
	), tools.GetStudyPack)

	return s
}

func (t *Tools) ListFiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", defaultListLimit)
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	files, err := t.files.ListFiles(ctx, limit)
	if err != nil {
		return t.toolError("list_files", err), nil
	}
	if len(files) == 0 {
		return mcp.NewToolResultText("No files have been uploaded yet."), nil
	}

	var b strings.Builder
	for _, f := range files {
		fmt.Fprintf(&b, "- %s (id: %s, %d bytes, updated %s)\n", f.Name, f.ID, f.SizeBytes, f.UpdatedAt.Format("2006-01-02 15:04"))
		if summary := strings.TrimSpace(f.Summary); summary != "" {
			fmt.Fprintf(&b, "  %s\n", oneLine(summary, 200))
		}
	}
	return mcp.NewToolResultText(strings.TrimRight(b.String(), "\n")), nil
}

func (t *Tools) GetFileText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	maxChars := req.GetInt("max_chars", defaultTextChars)

	file, err := t.files.GetFile(ctx, id)
	if err != nil {
		return t.toolError("get_file_text", err), nil
	}
	text := file.Content
	if runes := []rune(text); maxChars > 0 && len(runes) > maxChars {
		text = string(runes[:maxChars]) + "\n[truncated]"
	}
	return mcp.NewToolResultText(text), nil
}

func (t *Tools) GetStudyPack(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	pack, err := t.files.GetStudyPack(ctx, id)
	if err != nil {
		return t.toolError("get_study_pack", err), nil
	}
	payload, err := json.MarshalIndent(pack, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal study pack: %w", err)
	}
	return mcp.NewToolResultText(string(payload)), nil
}

func (t *Tools) toolError(tool string, err error) *mcp.CallToolResult {
	if domain.IsKind(err, domain.ErrFileNotFound) {
		return mcp.NewToolResultError("file not found")
	}
	t.logger.Error("mcp_tool_failed", "tool", tool, "error", err)
	return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", tool, err))
}

func oneLine(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if runes := []rune(s); len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return s
}
