package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/peakform/peakform/internal/models"
	"github.com/peakform/peakform/internal/workout"
)

// defaultTimeRange returns start/end defaulting to the last 30 days.
func defaultTimeRange(startStr, endStr string) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error

	if endStr != "" {
		end, err = parseFlexTime(endStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		end = time.Now()
	}

	if startStr != "" {
		start, err = parseFlexTime(startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		start = end.AddDate(0, 0, -30)
	}

	return start, end, nil
}

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse("2006-01-02", s)
	if err == nil {
		return t, nil
	}
	return time.Time{}, err
}

// --- Tool definitions ---

var toolGetCurrentWorkout = mcp.NewTool("get_current_workout",
	mcp.WithDescription("Get the scheduled workout for a program: day label, exercises, phase position, and progress counters."),
	mcp.WithString("program", mcp.Required(), mcp.Description("Program ID (e.g. strength-12w)")),
)

var toolGetTodaySession = mcp.NewTool("get_today_session",
	mcp.WithDescription("Check whether a session for the given workout day was already logged today. Returns the session (or null) and whether it can be resumed."),
	mcp.WithString("program", mcp.Required(), mcp.Description("Program ID")),
	mcp.WithString("day", mcp.Required(), mcp.Description("Workout day label (e.g. 'Day 1')")),
)

var toolSaveSession = mcp.NewTool("save_session",
	mcp.WithDescription("Log a workout session. Saving the same day twice replaces the earlier entry. Marking a session completed advances program progress."),
	mcp.WithString("program", mcp.Required(), mcp.Description("Program ID")),
	mcp.WithString("day", mcp.Required(), mcp.Description("Workout day label (e.g. 'Day 1')")),
	mcp.WithNumber("phase", mcp.Required(), mcp.Description("Phase number the workout belongs to (1-based)")),
	mcp.WithBoolean("completed", mcp.Description("Whether the workout is finished. Defaults to false (in-progress save).")),
	mcp.WithNumber("duration", mcp.Description("Session duration in seconds")),
	mcp.WithString("exercises", mcp.Description(`Logged exercises as a JSON array, e.g. [{"name":"Bench Press","sets":[{"setNumber":1,"reps":8,"weight":60,"completed":true}]}]`)),
)

var toolGetSessionHistory = mcp.NewTool("get_session_history",
	mcp.WithDescription("List logged sessions for a program within a date range, newest first."),
	mcp.WithString("program", mcp.Required(), mcp.Description("Program ID")),
	mcp.WithString("start", mcp.Description("Start date (ISO 8601 or YYYY-MM-DD). Defaults to 30 days ago.")),
	mcp.WithString("end", mcp.Description("End date (ISO 8601 or YYYY-MM-DD). Defaults to now.")),
)

var toolListEnrollments = mcp.NewTool("list_enrollments",
	mcp.WithDescription("List the user's program enrollments with progress counters and status."),
)

var toolListPrograms = mcp.NewTool("list_programs",
	mcp.WithDescription("List all available workout programs."),
)

var toolGetProgram = mcp.NewTool("get_program",
	mcp.WithDescription("Get a program's full definition: phases, weeks, and workouts per day."),
	mcp.WithString("program", mcp.Required(), mcp.Description("Program ID")),
)

// --- Tool handlers ---

func (h *handlers) getCurrentWorkout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	program, err := req.RequireString("program")
	if err != nil {
		return mcp.NewToolResultError("program parameter is required"), nil
	}

	uid := UserIDFromContext(ctx)
	cw, err := h.ds.CurrentWorkout(ctx, uid, program)
	if err != nil {
		h.log.Error("mcp get_current_workout", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(cw)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getTodaySession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	program, err := req.RequireString("program")
	if err != nil {
		return mcp.NewToolResultError("program parameter is required"), nil
	}
	day, err := req.RequireString("day")
	if err != nil {
		return mcp.NewToolResultError("day parameter is required"), nil
	}

	uid := UserIDFromContext(ctx)
	today, err := h.ds.TodaySession(ctx, uid, program, day)
	if err != nil {
		h.log.Error("mcp get_today_session", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(today)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) saveSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	program, err := req.RequireString("program")
	if err != nil {
		return mcp.NewToolResultError("program parameter is required"), nil
	}
	day, err := req.RequireString("day")
	if err != nil {
		return mcp.NewToolResultError("day parameter is required"), nil
	}
	phase, err := req.RequireInt("phase")
	if err != nil {
		return mcp.NewToolResultError("phase parameter is required"), nil
	}

	var exercises []models.ExerciseLog
	if raw := req.GetString("exercises", ""); raw != "" {
		if err := json.Unmarshal([]byte(raw), &exercises); err != nil {
			return mcp.NewToolResultError("invalid exercises JSON: " + err.Error()), nil
		}
	}

	outcome, err := h.ds.SaveSession(ctx, workout.SaveRequest{
		UserID:      UserIDFromContext(ctx),
		ProgramID:   program,
		Phase:       phase,
		Day:         day,
		Exercises:   exercises,
		Completed:   req.GetBool("completed", false),
		DurationSec: req.GetInt("duration", 0),
	})
	if err != nil {
		h.log.Error("mcp save_session", "error", err)
		return mcp.NewToolResultError("save failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(outcome)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getSessionHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	program, err := req.RequireString("program")
	if err != nil {
		return mcp.NewToolResultError("program parameter is required"), nil
	}

	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""))
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	uid := UserIDFromContext(ctx)
	sessions, err := h.ds.SessionHistory(ctx, uid, program, start, end)
	if err != nil {
		h.log.Error("mcp get_session_history", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(sessions)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) listEnrollments(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uid := UserIDFromContext(ctx)
	enrollments, err := h.ds.Enrollments(ctx, uid)
	if err != nil {
		h.log.Error("mcp list_enrollments", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(enrollments)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) listPrograms(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	programs, err := h.ds.Programs(ctx)
	if err != nil {
		h.log.Error("mcp list_programs", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(programs)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getProgram(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	programID, err := req.RequireString("program")
	if err != nil {
		return mcp.NewToolResultError("program parameter is required"), nil
	}

	program, err := h.ds.Program(ctx, programID)
	if err != nil {
		h.log.Error("mcp get_program", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(program)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
