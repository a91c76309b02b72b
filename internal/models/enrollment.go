package models

import "time"

// EnrollmentStatus is the lifecycle state of an enrollment.
type EnrollmentStatus string

const (
	StatusActive     EnrollmentStatus = "active"
	StatusInProgress EnrollmentStatus = "in-progress"
	// StatusPaused is accepted from storage but no transition into or out of
	// it exists in this service. Pause semantics are owned elsewhere.
	StatusPaused    EnrollmentStatus = "paused"
	StatusCompleted EnrollmentStatus = "completed"
)

// Enrollment tracks one user's progress through one program.
// CurrentPhase/CurrentDay always point at the next workout to perform,
// never the one just completed.
type Enrollment struct {
	UserID            int              `json:"-"`
	ProgramID         string           `json:"programId"`
	ProgramName       string           `json:"programName"`
	StartDate         time.Time        `json:"startDate"`
	CurrentPhase      int              `json:"currentPhase"` // 1-based
	CurrentDay        string           `json:"currentDay"`
	CompletedWorkouts int              `json:"completedWorkouts"`
	TotalWorkouts     int              `json:"totalWorkouts"`
	LastWorkoutDate   *time.Time       `json:"lastWorkoutDate,omitempty"`
	Status            EnrollmentStatus `json:"status"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}
