// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes the flashcard collection as tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/flashdesk/internal/console"
	"github.com/starford/flashdesk/internal/hostapi"
	"github.com/starford/flashdesk/internal/models"
	"github.com/starford/flashdesk/internal/noteservice"
	"github.com/starford/flashdesk/internal/panel"
	"github.com/starford/flashdesk/internal/search"
)

// DefaultListLimit caps list_items output unless a limit is given.
const DefaultListLimit = 50

// Server wraps the MCP server with flashdesk tools.
type Server struct {
	mcp *server.MCPServer
	svc *noteservice.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *noteservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"flashdesk",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("get_schema",
		mcp.WithDescription("List note types with their ordered field names, and all deck names."),
	), s.getSchema)

	s.mcp.AddTool(mcp.NewTool("list_items",
		mcp.WithDescription("List notes or cards of one note type matching a search. "+
			"Read the search syntax first via get_search_syntax or the flashdesk://search-syntax resource."),
		mcp.WithString("model", mcp.Required(), mcp.Description("Note type name")),
		mcp.WithString("mode", mcp.Description("notes (default) or cards")),
		mcp.WithString("search", mcp.Description("Search string, e.g. deck:Japanese is:suspended")),
		mcp.WithNumber("limit", mcp.Description("Maximum items returned (default 50)")),
	), s.listItems)

	s.mcp.AddTool(mcp.NewTool("update_field",
		mcp.WithDescription("Set one field of a note. Field values may contain HTML."),
		mcp.WithNumber("note_id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("field", mcp.Required(), mcp.Description("Field name")),
		mcp.WithString("value", mcp.Required(), mcp.Description("New value")),
	), s.updateField)

	s.mcp.AddTool(mcp.NewTool("set_tags",
		mcp.WithDescription("Replace all tags of a note."),
		mcp.WithNumber("note_id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("tags", mcp.Required(), mcp.Description("Whitespace-separated tags; empty clears them")),
	), s.setTags)

	s.mcp.AddTool(mcp.NewTool("set_flag",
		mcp.WithDescription("Set the flag of a card: 0 none, 1 red, 2 orange, 3 green, 4 blue, 5 pink, 6 turquoise, 7 purple."),
		mcp.WithNumber("card_id", mcp.Required(), mcp.Description("Card id")),
		mcp.WithNumber("flag", mcp.Required(), mcp.Description("Flag 0-7")),
	), s.setFlag)

	s.mcp.AddTool(mcp.NewTool("run_query",
		mcp.WithDescription("Run a read-only query against the collection and return CSV."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Read-only query")),
	), s.runQuery)

	s.mcp.AddTool(mcp.NewTool("generate_audio",
		mcp.WithDescription("Synthesise speech for an empty <field>_audio field from its source field."),
		mcp.WithNumber("note_id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("model", mcp.Required(), mcp.Description("Note type of the note")),
		mcp.WithString("field", mcp.Required(), mcp.Description("Audio field name, e.g. Front_audio")),
	), s.generateAudio)

	s.mcp.AddTool(mcp.NewTool("get_search_syntax",
		mcp.WithDescription("Returns the search syntax accepted by list_items."),
	), s.getSearchSyntax)

	s.mcp.AddResource(
		mcp.NewResource(searchSyntaxURI, "Search Syntax",
			mcp.WithResourceDescription("Search tokens understood by the collection."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readSearchSyntaxResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// intArg reads a numeric argument. JSON numbers arrive as float64; numeric
// strings are accepted too.
func intArg(req mcp.CallToolRequest, name string, required bool, def int64) (int64, error) {
	v, ok := req.GetArguments()[name]
	if !ok || v == nil {
		if required {
			return 0, fmt.Errorf("required argument %q not found", name)
		}
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return int64(n), nil
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("argument %q is not a number", name)
		}
		return i, nil
	}
	return 0, fmt.Errorf("argument %q is not a number", name)
}

func stringArg(req mcp.CallToolRequest, name string) string {
	v, err := req.RequireString(name)
	if err != nil {
		return ""
	}
	return v
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) getSchema(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	schema, err := s.svc.Schema(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(schema), nil
}

func (s *Server) listItems(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	model, err := req.RequireString("model")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	mode := models.ModeNotes
	if m := stringArg(req, "mode"); m != "" {
		if mode, err = models.ParseViewMode(m); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	limit, err := intArg(req, "limit", false, DefaultListLimit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	items, err := s.svc.Items(ctx, hostapi.ItemsQuery{
		Model:  model,
		Mode:   mode,
		Search: search.Normalize(stringArg(req, "search")),
	}, false)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if limit > 0 && int64(len(items)) > limit {
		items = items[:limit]
	}
	return jsonResult(items), nil
}

func (s *Server) updateField(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	noteID, err := intArg(req, "note_id", true, 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	field, err := req.RequireString("field")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	value, err := req.RequireString("value")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.UpdateField(ctx, noteID, field, value); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("updated: note %d field %s", noteID, field)), nil
}

func (s *Server) setTags(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	noteID, err := intArg(req, "note_id", true, 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := req.RequireString("tags")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tags := panel.ParseTags(raw)
	if err := s.svc.SetTags(ctx, noteID, tags); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("tagged: note %d (%d tags)", noteID, len(tags))), nil
}

func (s *Server) setFlag(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cardID, err := intArg(req, "card_id", true, 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	flag, err := intArg(req, "flag", true, 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	f := models.Flag(flag)
	if err := s.svc.SetFlag(ctx, []int64{cardID}, f); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("flagged: card %d %s", cardID, f)), nil
}

func (s *Server) runQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Query(ctx, q)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(console.CSV(res)), nil
}

func (s *Server) getSearchSyntax(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(SearchSyntax), nil
}

func (s *Server) readSearchSyntaxResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      searchSyntaxURI,
			MIMEType: "text/markdown",
			Text:     SearchSyntax,
		},
	}, nil
}
