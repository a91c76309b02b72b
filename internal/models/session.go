package models

import (
	"time"

	"github.com/google/uuid"
)

// SetEntry is one logged set of one exercise.
type SetEntry struct {
	SetNumber int     `json:"setNumber"`
	Reps      int     `json:"reps"`
	Weight    float64 `json:"weight"`
	Completed bool    `json:"completed"`
}

// ExerciseLog is a user's logged sets for one exercise in a session.
type ExerciseLog struct {
	Name string     `json:"name"`
	Sets []SetEntry `json:"sets"`
}

// Session is the persisted log of one program-day on one calendar day.
// At most one session exists per (user, program, day label, calendar day);
// a new calendar day always starts a fresh session, even when the program
// wraps and the day label repeats.
type Session struct {
	ID          uuid.UUID     `json:"id"`
	UserID      int           `json:"-"`
	ProgramID   string        `json:"programId"`
	Date        time.Time     `json:"date"` // calendar-day bucket, not a timestamp
	Day         string        `json:"day"`
	Phase       int           `json:"phase"`
	Completed   bool          `json:"completed"`
	DurationSec int           `json:"duration"`
	Exercises   []ExerciseLog `json:"exercises"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}
