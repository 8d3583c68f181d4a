package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/ytm/internal/history"
	"github.com/joescharf/ytm/internal/models"
	"github.com/joescharf/ytm/internal/normalize"
	"github.com/joescharf/ytm/internal/tags"
)

// Tracker is the slice of the YouTrack API that the passthrough tools need.
type Tracker interface {
	GetIssue(ctx context.Context, issueID string) (any, error)
	ListProjects(ctx context.Context, limit int) ([]models.Project, error)
}

// Server wraps the tag engine and exposes it as MCP tools.
type Server struct {
	engine  *tags.Engine
	tracker Tracker
	history history.Recorder
	version string
}

// NewServer creates the MCP server wrapper. rec may be nil, which disables
// the mutation audit trail.
func NewServer(engine *tags.Engine, tracker Tracker, rec history.Recorder, version string) *Server {
	return &Server{
		engine:  engine,
		tracker: tracker,
		history: rec,
		version: version,
	}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("youtrack-tags", s.version, server.WithToolCapabilities(true))

	// Register all tools
	srv.AddTool(s.availableTagsTool())
	srv.AddTool(s.issueTagsTool())
	srv.AddTool(s.addTagTool())
	srv.AddTool(s.removeTagTool())
	srv.AddTool(s.setTagsTool())
	srv.AddTool(s.clearTagsTool())
	srv.AddTool(s.findTagTool())
	srv.AddTool(s.getIssueTool())
	srv.AddTool(s.getProjectsTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// Handler returns the streamable HTTP transport used by the serve daemon.
func (s *Server) Handler() *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(s.MCPServer(),
		server.WithEndpointPath("/mcp"),
		server.WithStateLess(true),
	)
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// get_available_tags
func (s *Server) availableTagsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("get_available_tags",
		mcp.WithDescription("Get all available tags that are owned by or shared with the current user. Example: get_available_tags(query='deploy', limit=20)"),
		mcp.WithString("query", mcp.Description("Optional query to filter tags by name (e.g., 'deploy', 'urgent')")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of tags to return (default: 50)")),
	)
	return tool, s.handleAvailableTags
}

func (s *Server) handleAvailableTags(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := request.GetString("query", "")
	limit := request.GetInt("limit", 50)
	return mcp.NewToolResultText(s.engine.AvailableTags(ctx, query, limit)), nil
}

// get_issue_tags
func (s *Server) issueTagsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("get_issue_tags",
		mcp.WithDescription("Get all tags currently assigned to an issue. Example: get_issue_tags(issue_id='DEMO-123')"),
		mcp.WithString("issue_id", mcp.Required(), mcp.Description("Issue identifier like 'DEMO-123' or 'PROJECT-456'")),
	)
	return tool, s.handleIssueTags
}

func (s *Server) handleIssueTags(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueID, err := request.RequireString("issue_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: issue_id"), nil
	}
	return mcp.NewToolResultText(s.engine.IssueTags(ctx, issueID)), nil
}

// add_tag_to_issue
func (s *Server) addTagTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("add_tag_to_issue",
		mcp.WithDescription(enhancedDescription(
			"Add a tag to an issue by tag name",
			"Need to label/categorize issue with tags like 'refinement', 'urgent', 'deploy', or custom workflow labels",
			"Tag object indicating success with updated issue data showing the new tag added to the issue",
			"Tag must already exist in YouTrack. Use exact tag name (case-sensitive). Tag is added, not replaced - existing tags remain.",
			`add_tag_to_issue(issue_id="AI-2375", tag_name="refinement")`,
		)),
		mcp.WithString("issue_id", mcp.Required(), mcp.Description("Full issue identifier like 'AI-2375' or 'DEMO-123' (format: PROJECT-NUMBER)")),
		mcp.WithString("tag_name", mcp.Required(), mcp.Description("Exact tag name to add (e.g., 'refinement', 'urgent', 'deploy'). Tag must exist in YouTrack. Use get_available_tags() to see options.")),
	)
	return tool, s.handleAddTag
}

func (s *Server) handleAddTag(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueID, err := request.RequireString("issue_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: issue_id"), nil
	}
	tagName, err := request.RequireString("tag_name")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: tag_name"), nil
	}

	result := s.engine.AddTag(ctx, issueID, tagName)
	s.record(ctx, "add_tag_to_issue", issueID, tagName, result)
	return mcp.NewToolResultText(result), nil
}

// remove_tag_from_issue
func (s *Server) removeTagTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("remove_tag_from_issue",
		mcp.WithDescription("Remove a specific tag from an issue by tag name. Example: remove_tag_from_issue(issue_id='DEMO-123', tag_name='deploy')"),
		mcp.WithString("issue_id", mcp.Required(), mcp.Description("Issue identifier like 'DEMO-123' or 'PROJECT-456'")),
		mcp.WithString("tag_name", mcp.Required(), mcp.Description("Name of the tag to remove")),
	)
	return tool, s.handleRemoveTag
}

func (s *Server) handleRemoveTag(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueID, err := request.RequireString("issue_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: issue_id"), nil
	}
	tagName, err := request.RequireString("tag_name")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: tag_name"), nil
	}

	result := s.engine.RemoveTag(ctx, issueID, tagName)
	s.record(ctx, "remove_tag_from_issue", issueID, tagName, result)
	return mcp.NewToolResultText(result), nil
}

// set_issue_tags
func (s *Server) setTagsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("set_issue_tags",
		mcp.WithDescription("Set all tags for an issue (replaces existing tags). Example: set_issue_tags(issue_id='DEMO-123', tag_names=['deploy', 'urgent'])"),
		mcp.WithString("issue_id", mcp.Required(), mcp.Description("Issue identifier like 'DEMO-123' or 'PROJECT-456'")),
		mcp.WithArray("tag_names", mcp.Required(),
			mcp.Description("List of tag names to set (e.g., ['deploy', 'urgent', 'bug'])"),
			mcp.WithStringItems(),
		),
	)
	return tool, s.handleSetTags
}

func (s *Server) handleSetTags(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueID, err := request.RequireString("issue_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: issue_id"), nil
	}
	// An absent tag_names must not be mistaken for an explicit empty list,
	// which clears every tag on the issue.
	if _, ok := request.GetArguments()["tag_names"]; !ok {
		return mcp.NewToolResultError("missing required parameter: tag_names"), nil
	}
	var args struct {
		TagNames []string `json:"tag_names"`
	}
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid tag_names: %v", err)), nil
	}

	result := s.engine.SetTags(ctx, issueID, args.TagNames)
	s.record(ctx, "set_issue_tags", issueID, strings.Join(args.TagNames, ", "), result)
	return mcp.NewToolResultText(result), nil
}

// remove_all_tags_from_issue
func (s *Server) clearTagsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("remove_all_tags_from_issue",
		mcp.WithDescription("Remove all tags from an issue. Example: remove_all_tags_from_issue(issue_id='DEMO-123')"),
		mcp.WithString("issue_id", mcp.Required(), mcp.Description("Issue identifier like 'DEMO-123' or 'PROJECT-456'")),
	)
	return tool, s.handleClearTags
}

func (s *Server) handleClearTags(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueID, err := request.RequireString("issue_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: issue_id"), nil
	}

	result := s.engine.ClearTags(ctx, issueID)
	s.record(ctx, "remove_all_tags_from_issue", issueID, "", result)
	return mcp.NewToolResultText(result), nil
}

// find_tag_by_name
func (s *Server) findTagTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("find_tag_by_name",
		mcp.WithDescription("Find a tag by its name. Example: find_tag_by_name(tag_name='deploy')"),
		mcp.WithString("tag_name", mcp.Required(), mcp.Description("Name of the tag to find")),
	)
	return tool, s.handleFindTag
}

func (s *Server) handleFindTag(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tagName, err := request.RequireString("tag_name")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: tag_name"), nil
	}
	return mcp.NewToolResultText(s.engine.FindTag(ctx, tagName)), nil
}

// get_issue
func (s *Server) getIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("get_issue",
		mcp.WithDescription("Get complete information about a specific issue. Example: get_issue(issue_id='DEMO-123')"),
		mcp.WithString("issue_id", mcp.Required(), mcp.Description("Issue identifier like 'DEMO-123' or 'PROJECT-456'")),
	)
	return tool, s.handleGetIssue
}

func (s *Server) handleGetIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueID, err := request.RequireString("issue_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: issue_id"), nil
	}

	issue, err := s.tracker.GetIssue(ctx, issueID)
	if err != nil {
		return mcp.NewToolResultText(errorText(err.Error())), nil
	}
	return mcp.NewToolResultText(normalize.FormatJSON(issue)), nil
}

// get_projects
func (s *Server) getProjectsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("get_projects",
		mcp.WithDescription("Get a list of all projects. Example: get_projects(limit=20)"),
		mcp.WithNumber("limit", mcp.Description("Maximum number of projects to return (default: 50)")),
	)
	return tool, s.handleGetProjects
}

func (s *Server) handleGetProjects(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := request.GetInt("limit", 50)

	projects, err := s.tracker.ListProjects(ctx, limit)
	if err != nil {
		return mcp.NewToolResultText(errorText(err.Error())), nil
	}
	return mcp.NewToolResultText(normalize.FormatJSON(projects)), nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// record appends a mutation to the audit trail. Recording is best-effort and
// never alters the tool response.
func (s *Server) record(ctx context.Context, tool, issueID, detail, result string) {
	if s.history == nil {
		return
	}
	entry := &history.Entry{
		Tool:    tool,
		IssueID: issueID,
		Detail:  detail,
		OK:      true,
	}
	if msg, failed := resultError(result); failed {
		entry.OK = false
		entry.Error = msg
	}
	if err := s.history.Record(ctx, entry); err != nil {
		slog.Warn("history record failed", "tool", tool, "issue", issueID, "error", err)
	}
}

// resultError reports whether an engine result carries a top-level error.
func resultError(result string) (string, bool) {
	var m map[string]any
	if err := json.Unmarshal([]byte(result), &m); err != nil {
		return "", false
	}
	msg, ok := m["error"].(string)
	return msg, ok
}

// errorText serializes an error message on the same text channel the engine
// uses for its own failures.
func errorText(msg string) string {
	return normalize.FormatJSON(map[string]any{"error": msg})
}

// enhancedDescription renders the structured description format used on
// mutation tools so agents pick the right tool and arguments on the first try.
func enhancedDescription(action, useWhen, returns, important, example string) string {
	return fmt.Sprintf("%s\n\n🎯 USE WHEN: %s\n✅ RETURNS: %s\n⚠️ IMPORTANT: %s\n\nExample: %s",
		action, useWhen, returns, important, example)
}
