package workout

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/peakform/peakform/internal/models"
)

// TodaySession is the get-or-resume view for one program-day.
type TodaySession struct {
	Session  *models.Session `json:"session"`
	IsResume bool            `json:"isResume"`
}

// TodaySession finds the session for (user, program, day) inside today's
// calendar-day bucket. IsResume is true when a session exists and is not yet
// completed — the client restores its set values instead of starting fresh.
func (e *Engine) TodaySession(ctx context.Context, userID int, programID, day string) (*TodaySession, error) {
	if programID == "" {
		return nil, fmt.Errorf("%w: programId is required", ErrValidation)
	}
	if day == "" {
		return nil, fmt.Errorf("%w: day is required", ErrValidation)
	}

	s, err := e.store.GetSessionForDate(ctx, userID, programID, day, e.dayBucket())
	if err != nil {
		return nil, fmt.Errorf("loading today's session: %w", err)
	}
	return &TodaySession{Session: s, IsResume: s != nil && !s.Completed}, nil
}

// SaveRequest is one save of a session's set-by-set state.
type SaveRequest struct {
	UserID      int
	ProgramID   string
	Phase       int
	Day         string
	Exercises   []models.ExerciseLog
	Completed   bool
	DurationSec int
}

// SaveOutcome reports what a save did.
type SaveOutcome struct {
	Session *models.Session `json:"session"`
	// ProgressRecorded is false both when the save was not a completion edge
	// and when it was but no enrollment exists for the program. The latter is
	// a deliberate partial success: the session persists, progress does not.
	ProgressRecorded bool               `json:"progressRecorded"`
	Enrollment       *models.Enrollment `json:"enrollment,omitempty"`
}

// SaveSession creates or overwrites today's session for (user, program, day).
// Repeated saves in the same calendar day update the same row in place; the
// latest payload wins. Only a false→true transition of the completed flag
// hands off to enrollment progress tracking, so re-saving a finished workout
// never double-counts.
func (e *Engine) SaveSession(ctx context.Context, req SaveRequest) (*SaveOutcome, error) {
	if req.ProgramID == "" {
		return nil, fmt.Errorf("%w: programId is required", ErrValidation)
	}
	if req.Day == "" {
		return nil, fmt.Errorf("%w: day is required", ErrValidation)
	}
	if req.Phase < 1 {
		return nil, fmt.Errorf("%w: phase must be a positive index", ErrValidation)
	}

	// Serialize per (user, program): a double-tapped save or a second open
	// device must observe the previous completed flag, not race it.
	unlock := e.locks.lock(saveKey(req.UserID, req.ProgramID))
	defer unlock()

	date := e.dayBucket()
	prev, err := e.store.GetSessionForDate(ctx, req.UserID, req.ProgramID, req.Day, date)
	if err != nil {
		// Fail closed: without a reliable read of the previous completed
		// flag, risking a double-counted completion is worse than failing.
		return nil, fmt.Errorf("loading today's session: %w", err)
	}

	s := &models.Session{
		ID:          uuid.New(),
		UserID:      req.UserID,
		ProgramID:   req.ProgramID,
		Date:        date,
		Day:         req.Day,
		Phase:       req.Phase,
		Completed:   req.Completed,
		DurationSec: req.DurationSec,
		Exercises:   req.Exercises,
	}
	if prev != nil {
		s.ID = prev.ID
	}
	if err := e.store.UpsertSession(ctx, s); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}

	out := &SaveOutcome{Session: s}
	if req.Completed && (prev == nil || !prev.Completed) {
		enr, recorded, err := e.recordCompletion(ctx, req.UserID, req.ProgramID, req.Day, req.Phase)
		if err != nil {
			// The session row is already saved with completed=true, so a
			// retry will not re-fire the edge: the counter can lag behind
			// but can never double-count.
			return nil, fmt.Errorf("recording completion: %w", err)
		}
		out.ProgressRecorded = recorded
		out.Enrollment = enr
	}
	return out, nil
}

func saveKey(userID int, programID string) string {
	return strconv.Itoa(userID) + "\x00" + programID
}
