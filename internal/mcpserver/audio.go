package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/flashdesk/internal/hostapi"
	"github.com/starford/flashdesk/internal/models"
	"github.com/starford/flashdesk/internal/panel"
)

type audioResult struct {
	NoteID    int64  `json:"note_id"`
	Field     string `json:"field"`
	Reference string `json:"reference"`
}

// findNote looks a note up through the cached notes list of its model.
func (s *Server) findNote(ctx context.Context, model string, noteID int64) (models.Item, error) {
	items, err := s.svc.Items(ctx, hostapi.ItemsQuery{Model: model, Mode: models.ModeNotes}, false)
	if err != nil {
		return models.Item{}, err
	}
	i := models.IndexByID(items, noteID)
	if i < 0 {
		return models.Item{}, fmt.Errorf("note %d not found in %s", noteID, model)
	}
	return items[i], nil
}

func (s *Server) generateAudio(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	noteID, err := intArg(req, "note_id", true, 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	model, err := req.RequireString("model")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	field, err := req.RequireString("field")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	it, err := s.findNote(ctx, model, noteID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	updated, err := panel.NewEditor(s.svc).GenerateAudio(ctx, nil, it, field)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(audioResult{NoteID: noteID, Field: field, Reference: updated.Note.Field(field)}), nil
}
