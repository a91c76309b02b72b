package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/peakform/peakform/internal/workout"
)

func (h *handlers) trainingStatus(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uid := UserIDFromContext(ctx)

	enrollments, err := h.ds.Enrollments(ctx, uid)
	if err != nil {
		return nil, err
	}

	// Best-effort: an enrollment with a missing catalog entry still shows up,
	// just without a scheduled workout.
	scheduled := make(map[string]*workout.CurrentWorkout, len(enrollments))
	for _, enr := range enrollments {
		cw, err := h.ds.CurrentWorkout(ctx, uid, enr.ProgramID)
		if err != nil {
			h.log.Warn("training_status: current workout failed", "program", enr.ProgramID, "error", err)
			continue
		}
		scheduled[enr.ProgramID] = cw
	}

	data, err := json.Marshal(map[string]any{
		"enrollments": enrollments,
		"scheduled":   scheduled,
	})
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (h *handlers) programCatalog(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	programs, err := h.ds.Programs(ctx)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(programs)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
