package workout

import (
	"context"
	"fmt"

	"github.com/peakform/peakform/internal/models"
	"github.com/peakform/peakform/internal/schedule"
)

// recordCompletion advances the enrollment for one verified completion. The
// submitted day/phase identify which workout was just finished; the next
// position is always computed from the catalog's authoritative structure,
// never from client-submitted pointers.
//
// Returns recorded=false when no enrollment exists for (user, program): the
// session save still succeeds, and the gap is logged instead of papered over
// by fabricating an enrollment.
func (e *Engine) recordCompletion(ctx context.Context, userID int, programID, day string, phase int) (*models.Enrollment, bool, error) {
	program, err := e.store.GetProgram(ctx, programID)
	if err != nil {
		return nil, false, fmt.Errorf("loading program: %w", err)
	}

	var phases []models.Phase
	if program != nil {
		phases = program.Definition.Phases
	} else {
		e.log.Warn("completed workout references unknown program, advancing to bootstrap position",
			"user_id", userID, "program_id", programID)
	}

	next := schedule.NextDay(day, phase, phases)

	enr, found, err := e.store.AdvanceProgress(ctx, userID, programID, next)
	if err != nil {
		return nil, false, err
	}
	if !found {
		e.log.Warn("workout completed without enrollment, progress not recorded",
			"user_id", userID, "program_id", programID, "day", day)
		return nil, false, nil
	}

	if enr.Status == models.StatusCompleted && enr.CompletedWorkouts == enr.TotalWorkouts {
		e.log.Info("program completed",
			"user_id", userID, "program_id", programID,
			"completed_workouts", enr.CompletedWorkouts)
	}
	return enr, true, nil
}
