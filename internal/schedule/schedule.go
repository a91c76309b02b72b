// Package schedule resolves positions within a program's phase/workout
// structure. Everything here is pure: no storage, no clock, and no failure
// mode — a caller always gets some valid position back, even when its
// pointers have drifted out of sync with catalog edits.
package schedule

import "github.com/peakform/peakform/internal/models"

// Position identifies a workout by 1-based phase index and day label.
type Position struct {
	Day   string `json:"day"`
	Phase int    `json:"phase"`
}

// bootstrapDay is returned when a program has no usable structure at all.
const bootstrapDay = "Day 1"

// NextDay computes the position that follows (currentDay, currentPhase).
//
// Advancing past the last day of the last phase wraps to the first day of the
// same phase without incrementing: programs are designed to repeat once their
// phases are exhausted. A day label that no longer exists in its phase falls
// back to the phase's first day. When a phase contains duplicate day labels
// the first match wins.
func NextDay(currentDay string, currentPhase int, phases []models.Phase) Position {
	if len(phases) == 0 {
		return Position{Day: bootstrapDay, Phase: 1}
	}

	phase := clampPhase(currentPhase, len(phases))
	workouts := phases[phase-1].Workouts
	if len(workouts) == 0 {
		return Position{Day: bootstrapDay, Phase: phase}
	}

	idx := indexOfDay(workouts, currentDay)
	if idx < 0 {
		// Stale day pointer: recover at the start of the same phase.
		return Position{Day: workouts[0].Day, Phase: phase}
	}
	if idx < len(workouts)-1 {
		return Position{Day: workouts[idx+1].Day, Phase: phase}
	}

	// Last day of the phase: move into the next phase if it has workouts.
	if phase < len(phases) {
		if next := phases[phase].Workouts; len(next) > 0 {
			return Position{Day: next[0].Day, Phase: phase + 1}
		}
	}
	return Position{Day: workouts[0].Day, Phase: phase}
}

// WorkoutAt locates the workout for (phase, day), falling back to the phase's
// first workout when the day label no longer resolves. The returned phase is
// the clamped 1-based index actually used. ok is false only when the clamped
// phase has no workouts at all.
func WorkoutAt(phases []models.Phase, phase int, day string) (models.Workout, int, bool) {
	if len(phases) == 0 {
		return models.Workout{}, 1, false
	}
	phase = clampPhase(phase, len(phases))
	workouts := phases[phase-1].Workouts
	if len(workouts) == 0 {
		return models.Workout{}, phase, false
	}
	if idx := indexOfDay(workouts, day); idx >= 0 {
		return workouts[idx], phase, true
	}
	return workouts[0], phase, true
}

// PhaseAt returns the clamped phase's metadata, or a zero Phase when the
// program has none.
func PhaseAt(phases []models.Phase, phase int) (models.Phase, int) {
	if len(phases) == 0 {
		return models.Phase{}, 1
	}
	phase = clampPhase(phase, len(phases))
	return phases[phase-1], phase
}

func clampPhase(phase, n int) int {
	if phase < 1 {
		return 1
	}
	if phase > n {
		return n
	}
	return phase
}

func indexOfDay(workouts models.WorkoutList, day string) int {
	for i, w := range workouts {
		if w.Day == day {
			return i
		}
	}
	return -1
}
