package workout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/peakform/peakform/internal/models"
	"github.com/peakform/peakform/internal/schedule"
)

// fakeStore is an in-memory Store for engine tests. Access is guarded by its
// own mutex so concurrency tests exercise the engine's keyed lock, not data
// races inside the fake.
type fakeStore struct {
	mu          sync.Mutex
	programs    map[string]*models.Program
	enrollments map[string]*models.Enrollment
	sessions    map[string]*models.Session
	lifetime    map[int]int

	advanceCalls int
	getSessErr   error
	upsertErr    error
	advanceErr   error
	advanceDelay time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		programs:    map[string]*models.Program{},
		enrollments: map[string]*models.Enrollment{},
		sessions:    map[string]*models.Session{},
		lifetime:    map[int]int{},
	}
}

func enrollKey(userID int, programID string) string {
	return fmt.Sprintf("%d/%s", userID, programID)
}

func sessKey(userID int, programID, day string, date time.Time) string {
	return fmt.Sprintf("%d/%s/%s/%s", userID, programID, day, date.Format("2006-01-02"))
}

func (f *fakeStore) GetOrCreateUser(_ context.Context, login, _ string) (int, error) {
	return 1, nil
}

func (f *fakeStore) GetProgram(_ context.Context, id string) (*models.Program, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.programs[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) ListPrograms(_ context.Context) ([]models.Program, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Program
	for _, p := range f.programs {
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakeStore) UpsertProgram(_ context.Context, id, name string, definition json.RawMessage) error {
	var def models.ProgramDefinition
	if err := json.Unmarshal(definition, &def); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.programs[id] = &models.Program{ID: id, Name: name, Definition: def}
	return nil
}

func (f *fakeStore) GetEnrollment(_ context.Context, userID int, programID string) (*models.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.enrollments[enrollKey(userID, programID)]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (f *fakeStore) ListEnrollments(_ context.Context, userID int) ([]models.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Enrollment
	for _, e := range f.enrollments {
		if e.UserID == userID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertEnrollment(_ context.Context, e models.Enrollment) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := enrollKey(e.UserID, e.ProgramID)
	if _, exists := f.enrollments[key]; exists {
		return false, nil
	}
	f.enrollments[key] = &e
	return true, nil
}

func (f *fakeStore) GetSessionForDate(_ context.Context, userID int, programID, day string, date time.Time) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getSessErr != nil {
		return nil, f.getSessErr
	}
	s, ok := f.sessions[sessKey(userID, programID, day, date)]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStore) UpsertSession(_ context.Context, s *models.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	key := sessKey(s.UserID, s.ProgramID, s.Day, s.Date)
	if prev, ok := f.sessions[key]; ok {
		s.ID = prev.ID
		s.CreatedAt = prev.CreatedAt
	} else {
		s.CreatedAt = time.Now()
	}
	s.UpdatedAt = time.Now()
	cp := *s
	f.sessions[key] = &cp
	return nil
}

func (f *fakeStore) QuerySessions(_ context.Context, userID int, programID string, start, end time.Time) ([]models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Session
	for _, s := range f.sessions {
		if s.UserID == userID && s.ProgramID == programID && !s.Date.Before(start) && s.Date.Before(end) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeStore) AdvanceProgress(_ context.Context, userID int, programID string, next schedule.Position) (*models.Enrollment, bool, error) {
	if f.advanceDelay > 0 {
		time.Sleep(f.advanceDelay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.advanceCalls++
	if f.advanceErr != nil {
		return nil, false, f.advanceErr
	}
	e, ok := f.enrollments[enrollKey(userID, programID)]
	if !ok {
		return nil, false, nil
	}
	now := time.Now()
	e.CompletedWorkouts++
	e.LastWorkoutDate = &now
	e.CurrentPhase = next.Phase
	e.CurrentDay = next.Day
	if e.CompletedWorkouts >= e.TotalWorkouts {
		e.Status = models.StatusCompleted
	}
	e.UpdatedAt = now
	f.lifetime[userID]++
	cp := *e
	return &cp, true, nil
}

var _ Store = (*fakeStore)(nil)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func testEngine(f *fakeStore) *Engine {
	e := NewEngine(f, time.UTC, testLogger())
	e.now = func() time.Time { return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC) }
	return e
}

func twoPhaseProgram() *models.Program {
	return &models.Program{
		ID:   "strength-12w",
		Name: "12-Week Strength",
		Definition: models.ProgramDefinition{Phases: []models.Phase{
			{Label: "Foundation", Workouts: models.WorkoutList{
				{Day: "Day 1", Title: "Push"},
				{Day: "Day 2", Title: "Pull"},
			}},
			{Label: "Build", Workouts: models.WorkoutList{
				{Day: "Day 1", Title: "Full Body"},
			}},
		}},
	}
}

func enrolled(f *fakeStore, completed, total int, status models.EnrollmentStatus, phase int, day string) {
	f.enrollments[enrollKey(1, "strength-12w")] = &models.Enrollment{
		UserID: 1, ProgramID: "strength-12w", ProgramName: "12-Week Strength",
		CurrentPhase: phase, CurrentDay: day,
		CompletedWorkouts: completed, TotalWorkouts: total, Status: status,
	}
}

// TestCurrentWorkoutResolves verifies the happy-path current-workout view:
// enrollment position plus program content plus progress counters.
func TestCurrentWorkoutResolves(t *testing.T) {
	f := newFakeStore()
	f.programs["strength-12w"] = twoPhaseProgram()
	enrolled(f, 3, 12, models.StatusInProgress, 1, "Day 2")

	cw, err := testEngine(f).CurrentWorkout(context.Background(), 1, "strength-12w")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cw.Day != "Day 2" || cw.Workout.Title != "Pull" {
		t.Errorf("workout = %q/%q, want Day 2/Pull", cw.Day, cw.Workout.Title)
	}
	if cw.PhaseInfo.Number != 1 || cw.PhaseInfo.Label != "Foundation" || cw.PhaseInfo.TotalPhases != 2 {
		t.Errorf("phaseInfo = %+v", cw.PhaseInfo)
	}
	if cw.CompletedWorkouts != 3 || cw.TotalWorkouts != 12 {
		t.Errorf("counters = %d/%d, want 3/12", cw.CompletedWorkouts, cw.TotalWorkouts)
	}
}

// TestCurrentWorkoutStaleDayFallsBack verifies graceful degradation: a
// current-day pointer that no longer exists in the phase resolves to the
// phase's first workout instead of failing navigation.
func TestCurrentWorkoutStaleDayFallsBack(t *testing.T) {
	f := newFakeStore()
	f.programs["strength-12w"] = twoPhaseProgram()
	enrolled(f, 0, 12, models.StatusActive, 1, "Day 7")

	cw, err := testEngine(f).CurrentWorkout(context.Background(), 1, "strength-12w")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cw.Day != "Day 1" {
		t.Errorf("day = %q, want fallback to Day 1", cw.Day)
	}
}

// TestCurrentWorkoutNoEnrollment verifies the read path reports not-found
// when the user never enrolled.
func TestCurrentWorkoutNoEnrollment(t *testing.T) {
	f := newFakeStore()
	f.programs["strength-12w"] = twoPhaseProgram()

	_, err := testEngine(f).CurrentWorkout(context.Background(), 1, "strength-12w")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

// TestSaveSessionValidation verifies that missing identifiers are rejected
// before any persistence access.
func TestSaveSessionValidation(t *testing.T) {
	e := testEngine(newFakeStore())
	cases := []SaveRequest{
		{UserID: 1, Day: "Day 1", Phase: 1},                          // no program
		{UserID: 1, ProgramID: "strength-12w", Phase: 1},             // no day
		{UserID: 1, ProgramID: "strength-12w", Day: "Day 1"},         // no phase
		{UserID: 1, ProgramID: "strength-12w", Day: "Day 1", Phase: -2},
	}
	for i, req := range cases {
		if _, err := e.SaveSession(context.Background(), req); !errors.Is(err, ErrValidation) {
			t.Errorf("case %d: err = %v, want ErrValidation", i, err)
		}
	}
}

// TestSaveThenResume verifies the resume property: after a partial save,
// TodaySession returns isResume=true with the exact set values just saved.
func TestSaveThenResume(t *testing.T) {
	f := newFakeStore()
	f.programs["strength-12w"] = twoPhaseProgram()
	enrolled(f, 0, 12, models.StatusActive, 1, "Day 1")
	e := testEngine(f)

	sets := []models.ExerciseLog{{Name: "Bench Press", Sets: []models.SetEntry{
		{SetNumber: 1, Reps: 8, Weight: 80, Completed: true},
		{SetNumber: 2, Reps: 8, Weight: 80, Completed: false},
	}}}
	if _, err := e.SaveSession(context.Background(), SaveRequest{
		UserID: 1, ProgramID: "strength-12w", Phase: 1, Day: "Day 1",
		Exercises: sets, Completed: false, DurationSec: 600,
	}); err != nil {
		t.Fatalf("save: %v", err)
	}

	today, err := e.TodaySession(context.Background(), 1, "strength-12w", "Day 1")
	if err != nil {
		t.Fatalf("today: %v", err)
	}
	if today.Session == nil || !today.IsResume {
		t.Fatalf("today = %+v, want resumable session", today)
	}
	got := today.Session.Exercises
	if len(got) != 1 || len(got[0].Sets) != 2 {
		t.Fatalf("exercises = %+v", got)
	}
	if got[0].Sets[0].Weight != 80 || got[0].Sets[1].Completed {
		t.Errorf("set values not preserved: %+v", got[0].Sets)
	}
}

// TestTodaySessionEmpty verifies the no-entry case: nil session, no resume.
func TestTodaySessionEmpty(t *testing.T) {
	today, err := testEngine(newFakeStore()).TodaySession(context.Background(), 1, "strength-12w", "Day 1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if today.Session != nil || today.IsResume {
		t.Errorf("today = %+v, want empty", today)
	}
}

// TestSaveTwiceSameDaySingleSession verifies that two saves in one calendar
// day yield exactly one session reflecting the second payload.
func TestSaveTwiceSameDaySingleSession(t *testing.T) {
	f := newFakeStore()
	f.programs["strength-12w"] = twoPhaseProgram()
	enrolled(f, 0, 12, models.StatusActive, 1, "Day 1")
	e := testEngine(f)

	first, err := e.SaveSession(context.Background(), SaveRequest{
		UserID: 1, ProgramID: "strength-12w", Phase: 1, Day: "Day 1",
		Exercises: []models.ExerciseLog{{Name: "Bench Press"}},
	})
	if err != nil {
		t.Fatalf("first save: %v", err)
	}
	second, err := e.SaveSession(context.Background(), SaveRequest{
		UserID: 1, ProgramID: "strength-12w", Phase: 1, Day: "Day 1",
		Exercises: []models.ExerciseLog{{Name: "Incline Press"}},
	})
	if err != nil {
		t.Fatalf("second save: %v", err)
	}

	if len(f.sessions) != 1 {
		t.Fatalf("sessions = %d, want 1", len(f.sessions))
	}
	if first.Session.ID != second.Session.ID {
		t.Errorf("session IDs differ: %s vs %s", first.Session.ID, second.Session.ID)
	}
	for _, s := range f.sessions {
		if len(s.Exercises) != 1 || s.Exercises[0].Name != "Incline Press" {
			t.Errorf("stored payload = %+v, want latest (Incline Press)", s.Exercises)
		}
	}
}

// TestCompletionEdgeAdvancesOnce verifies idempotence: saving completed=true
// twice in the same day advances the enrollment exactly once.
func TestCompletionEdgeAdvancesOnce(t *testing.T) {
	f := newFakeStore()
	f.programs["strength-12w"] = twoPhaseProgram()
	enrolled(f, 0, 12, models.StatusActive, 1, "Day 1")
	e := testEngine(f)

	req := SaveRequest{UserID: 1, ProgramID: "strength-12w", Phase: 1, Day: "Day 1", Completed: true}
	out, err := e.SaveSession(context.Background(), req)
	if err != nil {
		t.Fatalf("first save: %v", err)
	}
	if !out.ProgressRecorded {
		t.Fatal("first completed save did not record progress")
	}
	if out.Enrollment.CompletedWorkouts != 1 {
		t.Errorf("completedWorkouts = %d, want 1", out.Enrollment.CompletedWorkouts)
	}

	out, err = e.SaveSession(context.Background(), req)
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if out.ProgressRecorded {
		t.Error("re-saving a completed day recorded progress again")
	}
	if f.advanceCalls != 1 {
		t.Errorf("advance calls = %d, want 1", f.advanceCalls)
	}
	if got := f.enrollments[enrollKey(1, "strength-12w")].CompletedWorkouts; got != 1 {
		t.Errorf("completedWorkouts = %d, want 1", got)
	}
	if f.lifetime[1] != 1 {
		t.Errorf("lifetime counter = %d, want 1", f.lifetime[1])
	}
}

// TestCompletionUsesCatalogNextPosition verifies that the enrollment's next
// position comes from the catalog structure: completing the last day of
// phase 1 moves the pointer to phase 2's first day.
func TestCompletionUsesCatalogNextPosition(t *testing.T) {
	f := newFakeStore()
	f.programs["strength-12w"] = twoPhaseProgram()
	enrolled(f, 5, 12, models.StatusInProgress, 1, "Day 2")
	e := testEngine(f)

	out, err := e.SaveSession(context.Background(), SaveRequest{
		UserID: 1, ProgramID: "strength-12w", Phase: 1, Day: "Day 2", Completed: true,
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if out.Enrollment.CurrentPhase != 2 || out.Enrollment.CurrentDay != "Day 1" {
		t.Errorf("next position = phase %d %q, want phase 2 Day 1",
			out.Enrollment.CurrentPhase, out.Enrollment.CurrentDay)
	}
}

// TestTerminalCompletion verifies the one-way terminal transition: the
// completion that reaches totalWorkouts flips status to completed.
func TestTerminalCompletion(t *testing.T) {
	f := newFakeStore()
	f.programs["strength-12w"] = twoPhaseProgram()
	enrolled(f, 11, 12, models.StatusInProgress, 2, "Day 1")
	e := testEngine(f)

	out, err := e.SaveSession(context.Background(), SaveRequest{
		UserID: 1, ProgramID: "strength-12w", Phase: 2, Day: "Day 1", Completed: true,
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if out.Enrollment.CompletedWorkouts != 12 {
		t.Errorf("completedWorkouts = %d, want 12", out.Enrollment.CompletedWorkouts)
	}
	if out.Enrollment.Status != models.StatusCompleted {
		t.Errorf("status = %q, want completed", out.Enrollment.Status)
	}
}

// TestEnrollmentlessCompletion verifies the documented asymmetry: a session
// save succeeds with no enrollment, and progress tracking no-ops observably
// rather than fabricating an enrollment or failing the save.
func TestEnrollmentlessCompletion(t *testing.T) {
	f := newFakeStore()
	f.programs["strength-12w"] = twoPhaseProgram()
	e := testEngine(f)

	out, err := e.SaveSession(context.Background(), SaveRequest{
		UserID: 1, ProgramID: "strength-12w", Phase: 1, Day: "Day 1", Completed: true,
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if out.ProgressRecorded {
		t.Error("progress recorded without an enrollment")
	}
	if out.Enrollment != nil {
		t.Errorf("enrollment = %+v, want nil", out.Enrollment)
	}
	if len(f.sessions) != 1 {
		t.Errorf("sessions = %d, want 1 (save must still persist)", len(f.sessions))
	}
}

// TestSaveFailsClosedOnUnreadablePrevious verifies that when the previous
// completed flag cannot be read, nothing is written and nothing is counted.
func TestSaveFailsClosedOnUnreadablePrevious(t *testing.T) {
	f := newFakeStore()
	f.programs["strength-12w"] = twoPhaseProgram()
	enrolled(f, 0, 12, models.StatusActive, 1, "Day 1")
	f.getSessErr = errors.New("connection reset")
	e := testEngine(f)

	_, err := e.SaveSession(context.Background(), SaveRequest{
		UserID: 1, ProgramID: "strength-12w", Phase: 1, Day: "Day 1", Completed: true,
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if f.advanceCalls != 0 {
		t.Errorf("advance calls = %d, want 0 (fail closed)", f.advanceCalls)
	}
	if len(f.sessions) != 0 {
		t.Errorf("sessions = %d, want 0", len(f.sessions))
	}
}

// TestConcurrentCompletionSavesCountOnce verifies the keyed lock closes the
// read-modify-write race: two simultaneous completed=true saves for the same
// (user, program, day) advance the enrollment exactly once.
func TestConcurrentCompletionSavesCountOnce(t *testing.T) {
	f := newFakeStore()
	f.programs["strength-12w"] = twoPhaseProgram()
	enrolled(f, 0, 12, models.StatusActive, 1, "Day 1")
	f.advanceDelay = 10 * time.Millisecond // widen the window the lock must close
	e := testEngine(f)

	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.SaveSession(context.Background(), SaveRequest{
				UserID: 1, ProgramID: "strength-12w", Phase: 1, Day: "Day 1", Completed: true,
			})
			if err != nil {
				t.Errorf("save: %v", err)
			}
		}()
	}
	wg.Wait()

	if f.advanceCalls != 1 {
		t.Errorf("advance calls = %d, want exactly 1", f.advanceCalls)
	}
	if got := f.enrollments[enrollKey(1, "strength-12w")].CompletedWorkouts; got != 1 {
		t.Errorf("completedWorkouts = %d, want 1", got)
	}
}

// TestNewDayNewSession verifies that the same day label on a later calendar
// day starts a fresh session instead of resuming yesterday's.
func TestNewDayNewSession(t *testing.T) {
	f := newFakeStore()
	f.programs["strength-12w"] = twoPhaseProgram()
	enrolled(f, 0, 12, models.StatusActive, 1, "Day 1")
	e := testEngine(f)

	day1 := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return day1 }
	first, err := e.SaveSession(context.Background(), SaveRequest{
		UserID: 1, ProgramID: "strength-12w", Phase: 1, Day: "Day 1", Completed: true,
	})
	if err != nil {
		t.Fatalf("first save: %v", err)
	}

	// Program wrapped back to "Day 1"; the calendar moved on.
	e.now = func() time.Time { return day1.AddDate(0, 0, 2) }
	today, err := e.TodaySession(context.Background(), 1, "strength-12w", "Day 1")
	if err != nil {
		t.Fatalf("today: %v", err)
	}
	if today.Session != nil {
		t.Fatalf("session = %+v, want nil on a new calendar day", today.Session)
	}

	second, err := e.SaveSession(context.Background(), SaveRequest{
		UserID: 1, ProgramID: "strength-12w", Phase: 1, Day: "Day 1", Completed: true,
	})
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if second.Session.ID == first.Session.ID {
		t.Error("new calendar day reused the previous session row")
	}
	if !second.ProgressRecorded {
		t.Error("fresh day's completion did not record progress")
	}
	if len(f.sessions) != 2 {
		t.Errorf("sessions = %d, want 2", len(f.sessions))
	}
}

// TestCreateEnrollment verifies bootstrap: position at the first workout of
// phase 1, status active, and no overwrite of an existing enrollment.
func TestCreateEnrollment(t *testing.T) {
	f := newFakeStore()
	f.programs["strength-12w"] = twoPhaseProgram()
	e := testEngine(f)

	enr, created, err := e.CreateEnrollment(context.Background(), 1, EnrollmentRequest{
		ProgramID: "strength-12w", TotalWorkouts: 12,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Fatal("created = false, want true")
	}
	if enr.CurrentPhase != 1 || enr.CurrentDay != "Day 1" {
		t.Errorf("position = phase %d %q, want phase 1 Day 1", enr.CurrentPhase, enr.CurrentDay)
	}
	if enr.Status != models.StatusActive {
		t.Errorf("status = %q, want active", enr.Status)
	}

	_, created, err = e.CreateEnrollment(context.Background(), 1, EnrollmentRequest{
		ProgramID: "strength-12w", TotalWorkouts: 24,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Error("second enrollment reported created = true")
	}
	if got := f.enrollments[enrollKey(1, "strength-12w")].TotalWorkouts; got != 12 {
		t.Errorf("totalWorkouts = %d, existing enrollment was overwritten", got)
	}
}

// TestCreateEnrollmentUnknownProgram verifies enrollment requires a catalog hit.
func TestCreateEnrollmentUnknownProgram(t *testing.T) {
	e := testEngine(newFakeStore())
	_, _, err := e.CreateEnrollment(context.Background(), 1, EnrollmentRequest{
		ProgramID: "nope", TotalWorkouts: 12,
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

// TestUpsertProgramRejectsBadDefinition verifies definitions must decode.
func TestUpsertProgramRejectsBadDefinition(t *testing.T) {
	e := testEngine(newFakeStore())
	err := e.UpsertProgram(context.Background(), "p1", "Program", json.RawMessage(`{"phases": 42}`))
	if !errors.Is(err, ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}
