package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Program is one entry in the training catalog. The definition is stored
// verbatim as JSONB and decoded through the shape-tolerant types below.
type Program struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Definition ProgramDefinition `json:"definition"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

// ProgramDefinition is the phase/workout structure of a program.
type ProgramDefinition struct {
	Phases []Phase `json:"phases"`
}

// Phase is a named, ordered block of a program spanning a week range.
type Phase struct {
	Label    string      `json:"label"`
	Weeks    WeekRange   `json:"weeks,omitempty"`
	Focus    string      `json:"focus,omitempty"`
	Workouts WorkoutList `json:"workouts"`
}

// WeekRange is a phase's week span. Catalog data writes it as either a
// string ("1-4") or a bare count (8); both decode to the string form.
type WeekRange string

func (w *WeekRange) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*w = WeekRange(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decoding weeks: %w", err)
	}
	*w = WeekRange(n.String())
	return nil
}

// Workout is a single training day's definition within a phase.
type Workout struct {
	Day       string     `json:"day"`
	Title     string     `json:"title"`
	Exercises []Exercise `json:"exercises"`
}

// Exercise is one prescribed movement in a workout.
type Exercise struct {
	Name  string `json:"name"`
	Sets  int    `json:"sets,omitempty"`
	Reps  string `json:"reps,omitempty"`
	Rest  string `json:"rest,omitempty"`
	Notes string `json:"notes,omitempty"`
}

// WorkoutList is the canonical ordered list of a phase's workouts.
//
// Catalog data stores workouts in two shapes: an ordered array of workout
// objects (each carrying its own "day" label), or an object mapping day label
// to {title, exercises} where day order is the object's key order. Both decode
// into the same ordered list; everything downstream only ever sees this form.
type WorkoutList []Workout

// workoutBody is the value side of the day-keyed map shape.
type workoutBody struct {
	Title     string     `json:"title"`
	Exercises []Exercise `json:"exercises"`
}

func (wl *WorkoutList) UnmarshalJSON(data []byte) error {
	switch probeShape(data) {
	case shapeArray:
		var list []Workout
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("decoding workout array: %w", err)
		}
		*wl = list
	case shapeObject:
		list, err := decodeDayMap(data)
		if err != nil {
			return fmt.Errorf("decoding workout map: %w", err)
		}
		*wl = list
	default:
		// null or an unrecognized shape: an empty phase, not an error.
		*wl = nil
	}
	return nil
}

type jsonShape int

const (
	shapeEmpty jsonShape = iota
	shapeArray
	shapeObject
)

// probeShape inspects the first significant byte to pick a decode path.
func probeShape(data []byte) jsonShape {
	for _, b := range data {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '[':
			return shapeArray
		case '{':
			return shapeObject
		default:
			return shapeEmpty
		}
	}
	return shapeEmpty
}

// decodeDayMap walks the object token by token so that day order follows key
// order. A plain map decode would lose the insertion order the catalog relies on.
func decodeDayMap(data []byte) (WorkoutList, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil { // opening brace
		return nil, err
	}

	var list WorkoutList
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		day, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected key token %v", keyTok)
		}
		var body workoutBody
		if err := dec.Decode(&body); err != nil {
			return nil, fmt.Errorf("day %q: %w", day, err)
		}
		list = append(list, Workout{Day: day, Title: body.Title, Exercises: body.Exercises})
	}
	if _, err := dec.Token(); err != nil { // closing brace
		return nil, err
	}
	return list, nil
}
