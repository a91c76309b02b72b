package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/peakform/peakform/internal/models"
	"github.com/peakform/peakform/internal/schedule"
)

const enrollmentColumns = `program_id, program_name, start_date, current_phase, current_day,
	 completed_workouts, total_workouts, last_workout_date, status, updated_at`

func scanEnrollment(row pgx.Row, userID int) (*models.Enrollment, error) {
	e := models.Enrollment{UserID: userID}
	err := row.Scan(&e.ProgramID, &e.ProgramName, &e.StartDate, &e.CurrentPhase, &e.CurrentDay,
		&e.CompletedWorkouts, &e.TotalWorkouts, &e.LastWorkoutDate, &e.Status, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// GetEnrollment retrieves one user's enrollment in one program.
// Returns (nil, nil) when the user is not enrolled.
func (db *DB) GetEnrollment(ctx context.Context, userID int, programID string) (*models.Enrollment, error) {
	row := db.Pool.QueryRow(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE user_id = $1 AND program_id = $2`,
		userID, programID)
	e, err := scanEnrollment(row, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying enrollment: %w", err)
	}
	return e, nil
}

// ListEnrollments retrieves all of a user's enrollments, most recent first.
func (db *DB) ListEnrollments(ctx context.Context, userID int) ([]models.Enrollment, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE user_id = $1 ORDER BY updated_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("querying enrollments: %w", err)
	}
	defer rows.Close()

	var result []models.Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows, userID)
		if err != nil {
			return nil, fmt.Errorf("scanning enrollment: %w", err)
		}
		result = append(result, *e)
	}
	return result, rows.Err()
}

// InsertEnrollment creates an enrollment if none exists for (user, program).
// Returns true if inserted, false if the user was already enrolled.
func (db *DB) InsertEnrollment(ctx context.Context, e models.Enrollment) (bool, error) {
	tag, err := db.Pool.Exec(ctx,
		`INSERT INTO enrollments (user_id, program_id, program_name, start_date,
			current_phase, current_day, completed_workouts, total_workouts, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (user_id, program_id) DO NOTHING`,
		e.UserID, e.ProgramID, e.ProgramName, e.StartDate,
		e.CurrentPhase, e.CurrentDay, e.CompletedWorkouts, e.TotalWorkouts, e.Status)
	if err != nil {
		return false, fmt.Errorf("inserting enrollment: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// AdvanceProgress records one verified workout completion: the enrollment's
// counter, position pointers, and last-workout timestamp move in a single
// UPDATE so the increment and the terminal status check cannot interleave
// with a concurrent call. The user's lifetime counter moves in the same
// transaction. Returns (nil, false, nil) when no enrollment exists — the
// caller decides how to surface that.
func (db *DB) AdvanceProgress(ctx context.Context, userID int, programID string, next schedule.Position) (*models.Enrollment, bool, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`UPDATE enrollments SET
			completed_workouts = completed_workouts + 1,
			last_workout_date = NOW(),
			current_phase = $3,
			current_day = $4,
			status = CASE WHEN completed_workouts + 1 >= total_workouts
				THEN 'completed' ELSE status END,
			updated_at = NOW()
		 WHERE user_id = $1 AND program_id = $2
		 RETURNING `+enrollmentColumns,
		userID, programID, next.Phase, next.Day)

	e, err := scanEnrollment(row, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("advancing enrollment: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE users SET total_workouts_completed = total_workouts_completed + 1 WHERE id = $1`,
		userID); err != nil {
		return nil, false, fmt.Errorf("bumping lifetime counter: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("committing progress: %w", err)
	}
	return e, true, nil
}
