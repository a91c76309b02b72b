// Package workout is the progression engine: it resolves the next workout for
// an enrollment, persists per-day session logs with resume semantics, and
// advances enrollment counters exactly once per completed session.
package workout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/peakform/peakform/internal/models"
	"github.com/peakform/peakform/internal/schedule"
	"github.com/peakform/peakform/internal/storage"
)

var (
	// ErrValidation marks requests rejected before any persistence access.
	ErrValidation = errors.New("invalid request")
	// ErrNotFound marks reads whose target record does not exist.
	ErrNotFound = errors.New("not found")
)

// Store is the persistence surface the engine depends on. *storage.DB
// satisfies it; tests substitute fakes.
type Store interface {
	GetOrCreateUser(ctx context.Context, login, displayName string) (int, error)
	GetProgram(ctx context.Context, id string) (*models.Program, error)
	ListPrograms(ctx context.Context) ([]models.Program, error)
	UpsertProgram(ctx context.Context, id, name string, definition json.RawMessage) error
	GetEnrollment(ctx context.Context, userID int, programID string) (*models.Enrollment, error)
	ListEnrollments(ctx context.Context, userID int) ([]models.Enrollment, error)
	InsertEnrollment(ctx context.Context, e models.Enrollment) (bool, error)
	GetSessionForDate(ctx context.Context, userID int, programID, day string, date time.Time) (*models.Session, error)
	UpsertSession(ctx context.Context, s *models.Session) error
	QuerySessions(ctx context.Context, userID int, programID string, start, end time.Time) ([]models.Session, error)
	AdvanceProgress(ctx context.Context, userID int, programID string, next schedule.Position) (*models.Enrollment, bool, error)
}

// Compile-time check: *storage.DB satisfies Store.
var _ Store = (*storage.DB)(nil)

// Engine owns the progression state machine. All mutating calls for the same
// (user, program) pair are serialized through a keyed mutex so the
// completion-edge check never races with itself.
type Engine struct {
	store Store
	log   *slog.Logger
	loc   *time.Location
	now   func() time.Time
	locks keyedMutex
}

// NewEngine creates an Engine. loc is the timezone used for calendar-day
// bucketing; nil means the server's local zone.
func NewEngine(store Store, loc *time.Location, log *slog.Logger) *Engine {
	if loc == nil {
		loc = time.Local
	}
	return &Engine{store: store, log: log, loc: loc, now: time.Now}
}

// dayBucket returns today's [midnight, next midnight) interval in the
// engine's timezone, collapsed to a zone-independent date value.
func (e *Engine) dayBucket() time.Time {
	y, m, d := e.now().In(e.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ResolveUser maps a verified login to a user ID, creating the user row on
// first contact.
func (e *Engine) ResolveUser(ctx context.Context, login, displayName string) (int, error) {
	return e.store.GetOrCreateUser(ctx, login, displayName)
}

// PhaseInfo describes the phase a workout belongs to.
type PhaseInfo struct {
	Number      int    `json:"number"` // 1-based
	Label       string `json:"label"`
	Weeks       string `json:"weeks,omitempty"`
	Focus       string `json:"focus,omitempty"`
	TotalPhases int    `json:"totalPhases"`
}

// CurrentWorkout is the "what do I do today" view for one enrollment.
type CurrentWorkout struct {
	Day               string                  `json:"day"`
	Workout           models.Workout          `json:"workout"`
	PhaseInfo         PhaseInfo               `json:"phaseInfo"`
	CompletedWorkouts int                     `json:"completedWorkouts"`
	TotalWorkouts     int                     `json:"totalWorkouts"`
	Status            models.EnrollmentStatus `json:"status"`
}

// CurrentWorkout resolves the next workout for the user's enrollment. A
// current-day pointer that no longer matches the catalog degrades to the
// phase's first workout; navigation only fails when there is genuinely
// nothing to navigate to.
func (e *Engine) CurrentWorkout(ctx context.Context, userID int, programID string) (*CurrentWorkout, error) {
	if programID == "" {
		return nil, fmt.Errorf("%w: programId is required", ErrValidation)
	}

	enr, err := e.store.GetEnrollment(ctx, userID, programID)
	if err != nil {
		return nil, fmt.Errorf("loading enrollment: %w", err)
	}
	if enr == nil {
		return nil, fmt.Errorf("%w: no enrollment for program %s", ErrNotFound, programID)
	}

	program, err := e.store.GetProgram(ctx, programID)
	if err != nil {
		return nil, fmt.Errorf("loading program: %w", err)
	}
	if program == nil {
		return nil, fmt.Errorf("%w: program %s", ErrNotFound, programID)
	}

	phases := program.Definition.Phases
	w, phaseIdx, ok := schedule.WorkoutAt(phases, enr.CurrentPhase, enr.CurrentDay)
	if !ok {
		return nil, fmt.Errorf("%w: program %s has no workouts in phase %d", ErrNotFound, programID, phaseIdx)
	}
	phase, _ := schedule.PhaseAt(phases, phaseIdx)

	return &CurrentWorkout{
		Day:     w.Day,
		Workout: w,
		PhaseInfo: PhaseInfo{
			Number:      phaseIdx,
			Label:       phase.Label,
			Weeks:       string(phase.Weeks),
			Focus:       phase.Focus,
			TotalPhases: len(phases),
		},
		CompletedWorkouts: enr.CompletedWorkouts,
		TotalWorkouts:     enr.TotalWorkouts,
		Status:            enr.Status,
	}, nil
}

// Enrollments lists the user's enrollments for dashboard views.
func (e *Engine) Enrollments(ctx context.Context, userID int) ([]models.Enrollment, error) {
	return e.store.ListEnrollments(ctx, userID)
}

// Programs lists the catalog.
func (e *Engine) Programs(ctx context.Context) ([]models.Program, error) {
	return e.store.ListPrograms(ctx)
}

// Program retrieves one catalog entry.
func (e *Engine) Program(ctx context.Context, programID string) (*models.Program, error) {
	if programID == "" {
		return nil, fmt.Errorf("%w: programId is required", ErrValidation)
	}
	p, err := e.store.GetProgram(ctx, programID)
	if err != nil {
		return nil, fmt.Errorf("loading program: %w", err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: program %s", ErrNotFound, programID)
	}
	return p, nil
}

// UpsertProgram validates and stores a catalog entry. The definition must
// decode, which also canonicalizes any map-form workout data on later reads.
func (e *Engine) UpsertProgram(ctx context.Context, id, name string, definition json.RawMessage) error {
	if id == "" {
		return fmt.Errorf("%w: program id is required", ErrValidation)
	}
	if name == "" {
		return fmt.Errorf("%w: program name is required", ErrValidation)
	}
	var def models.ProgramDefinition
	if err := json.Unmarshal(definition, &def); err != nil {
		return fmt.Errorf("%w: definition does not decode: %v", ErrValidation, err)
	}
	return e.store.UpsertProgram(ctx, id, name, definition)
}

// EnrollmentRequest bootstraps an enrollment for a user.
type EnrollmentRequest struct {
	ProgramID     string `json:"programId"`
	TotalWorkouts int    `json:"totalWorkouts"`
}

// CreateEnrollment enrolls a user at the first workout of the program's first
// phase. Returns created=false when the user was already enrolled; existing
// progress is never overwritten.
func (e *Engine) CreateEnrollment(ctx context.Context, userID int, req EnrollmentRequest) (*models.Enrollment, bool, error) {
	if req.ProgramID == "" {
		return nil, false, fmt.Errorf("%w: programId is required", ErrValidation)
	}
	if req.TotalWorkouts < 1 {
		return nil, false, fmt.Errorf("%w: totalWorkouts must be positive", ErrValidation)
	}

	program, err := e.store.GetProgram(ctx, req.ProgramID)
	if err != nil {
		return nil, false, fmt.Errorf("loading program: %w", err)
	}
	if program == nil {
		return nil, false, fmt.Errorf("%w: program %s", ErrNotFound, req.ProgramID)
	}

	day := "Day 1"
	if w, _, ok := schedule.WorkoutAt(program.Definition.Phases, 1, ""); ok {
		day = w.Day
	}

	enr := models.Enrollment{
		UserID:        userID,
		ProgramID:     program.ID,
		ProgramName:   program.Name,
		StartDate:     e.dayBucket(),
		CurrentPhase:  1,
		CurrentDay:    day,
		TotalWorkouts: req.TotalWorkouts,
		Status:        models.StatusActive,
	}
	created, err := e.store.InsertEnrollment(ctx, enr)
	if err != nil {
		return nil, false, err
	}
	return &enr, created, nil
}

// SessionHistory lists a user's persisted sessions for a program in
// [start, end), newest first.
func (e *Engine) SessionHistory(ctx context.Context, userID int, programID string, start, end time.Time) ([]models.Session, error) {
	if programID == "" {
		return nil, fmt.Errorf("%w: programId is required", ErrValidation)
	}
	return e.store.QuerySessions(ctx, userID, programID, start, end)
}
