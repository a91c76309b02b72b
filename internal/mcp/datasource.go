package mcp

import (
	"context"
	"time"

	"github.com/peakform/peakform/internal/models"
	"github.com/peakform/peakform/internal/workout"
)

// DataSource abstracts the progression layer for MCP tools. Both
// *workout.Engine (local) and HTTPClient (remote via REST API) satisfy
// this interface.
type DataSource interface {
	CurrentWorkout(ctx context.Context, userID int, programID string) (*workout.CurrentWorkout, error)
	TodaySession(ctx context.Context, userID int, programID, day string) (*workout.TodaySession, error)
	SaveSession(ctx context.Context, req workout.SaveRequest) (*workout.SaveOutcome, error)
	SessionHistory(ctx context.Context, userID int, programID string, start, end time.Time) ([]models.Session, error)
	Enrollments(ctx context.Context, userID int) ([]models.Enrollment, error)
	Programs(ctx context.Context) ([]models.Program, error)
	Program(ctx context.Context, programID string) (*models.Program, error)
}

// Compile-time check: *workout.Engine satisfies DataSource.
var _ DataSource = (*workout.Engine)(nil)
