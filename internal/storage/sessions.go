package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/peakform/peakform/internal/models"
)

// GetSessionForDate retrieves the session for one (user, program, day label)
// on one calendar day. Returns (nil, nil) when the user hasn't logged
// anything for that day yet.
func (db *DB) GetSessionForDate(ctx context.Context, userID int, programID, day string, date time.Time) (*models.Session, error) {
	row := db.Pool.QueryRow(ctx,
		`SELECT id, session_date, phase, completed, duration_sec, exercises, created_at, updated_at
		 FROM workout_sessions
		 WHERE user_id = $1 AND program_id = $2 AND day_label = $3 AND session_date = $4`,
		userID, programID, day, date)

	s := models.Session{UserID: userID, ProgramID: programID, Day: day}
	var raw []byte
	err := row.Scan(&s.ID, &s.Date, &s.Phase, &s.Completed, &s.DurationSec, &raw, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}
	if err := json.Unmarshal(raw, &s.Exercises); err != nil {
		return nil, fmt.Errorf("decoding session exercises: %w", err)
	}
	return &s, nil
}

// UpsertSession writes a session, overwriting the payload fields in place when
// a row already exists for the same (user, program, day label, calendar day).
// The unique index backs the one-session-per-day invariant even across
// processes, and updated_at moves on every call regardless of what changed.
// The session's ID and timestamps are refreshed from the winning row.
func (db *DB) UpsertSession(ctx context.Context, s *models.Session) error {
	exercises, err := json.Marshal(s.Exercises)
	if err != nil {
		return fmt.Errorf("encoding session exercises: %w", err)
	}

	err = db.Pool.QueryRow(ctx,
		`INSERT INTO workout_sessions
			(id, user_id, program_id, day_label, session_date, phase, completed, duration_sec, exercises)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (user_id, program_id, day_label, session_date) DO UPDATE
			SET phase = $6, completed = $7, duration_sec = $8, exercises = $9, updated_at = NOW()
		 RETURNING id, created_at, updated_at`,
		s.ID, s.UserID, s.ProgramID, s.Day, s.Date, s.Phase, s.Completed, s.DurationSec, exercises,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting session: %w", err)
	}
	return nil
}

// QuerySessions retrieves a user's session history for a program in a date
// range, newest first.
func (db *DB) QuerySessions(ctx context.Context, userID int, programID string, start, end time.Time) ([]models.Session, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, day_label, session_date, phase, completed, duration_sec, exercises, created_at, updated_at
		 FROM workout_sessions
		 WHERE user_id = $1 AND program_id = $2 AND session_date >= $3 AND session_date < $4
		 ORDER BY session_date DESC, updated_at DESC`,
		userID, programID, start, end)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var result []models.Session
	for rows.Next() {
		s := models.Session{UserID: userID, ProgramID: programID}
		var raw []byte
		if err := rows.Scan(&s.ID, &s.Day, &s.Date, &s.Phase, &s.Completed, &s.DurationSec, &raw, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		if err := json.Unmarshal(raw, &s.Exercises); err != nil {
			return nil, fmt.Errorf("decoding session exercises: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}
