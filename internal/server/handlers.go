package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/peakform/peakform/internal/models"
	"github.com/peakform/peakform/internal/workout"
)

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userInfoFromContext(r))
}

func (s *Server) handleListPrograms(w http.ResponseWriter, r *http.Request) {
	programs, err := s.svc.Programs(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, programs)
}

func (s *Server) handleGetProgram(w http.ResponseWriter, r *http.Request) {
	program, err := s.svc.Program(r.Context(), chi.URLParam(r, "programID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, program)
}

func (s *Server) handleCurrentWorkout(w http.ResponseWriter, r *http.Request) {
	uid := userIDFromContext(r)
	cw, err := s.svc.CurrentWorkout(r.Context(), uid, chi.URLParam(r, "programID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cw)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	day := r.URL.Query().Get("day")
	if day == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "day parameter required"})
		return
	}

	uid := userIDFromContext(r)
	today, err := s.svc.TodaySession(r.Context(), uid, chi.URLParam(r, "programID"), day)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, today)
}

// saveSessionPayload is the POST body for a session save.
type saveSessionPayload struct {
	Phase       int                  `json:"phase"`
	Day         string               `json:"day"`
	Exercises   []models.ExerciseLog `json:"exercises"`
	Completed   bool                 `json:"completed"`
	DurationSec int                  `json:"duration"`
}

func (s *Server) handleSaveSession(w http.ResponseWriter, r *http.Request) {
	var payload saveSessionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	outcome, err := s.svc.SaveSession(r.Context(), workout.SaveRequest{
		UserID:      userIDFromContext(r),
		ProgramID:   chi.URLParam(r, "programID"),
		Phase:       payload.Phase,
		Day:         payload.Day,
		Exercises:   payload.Exercises,
		Completed:   payload.Completed,
		DurationSec: payload.DurationSec,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseTimeRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	uid := userIDFromContext(r)
	sessions, err := s.svc.SessionHistory(r.Context(), uid, chi.URLParam(r, "programID"), start, end)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleListEnrollments(w http.ResponseWriter, r *http.Request) {
	enrollments, err := s.svc.Enrollments(r.Context(), userIDFromContext(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, enrollments)
}

// ingestProgramPayload is a catalog entry pushed by the sync job.
type ingestProgramPayload struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Definition json.RawMessage `json:"definition"`
}

func (s *Server) handleIngestProgram(w http.ResponseWriter, r *http.Request) {
	var payload ingestProgramPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	if err := s.svc.UpsertProgram(r.Context(), payload.ID, payload.Name, payload.Definition); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "id": payload.ID})
}

// ingestEnrollmentPayload bootstraps an enrollment for a user by login.
type ingestEnrollmentPayload struct {
	Login         string `json:"login"`
	ProgramID     string `json:"programId"`
	TotalWorkouts int    `json:"totalWorkouts"`
}

func (s *Server) handleIngestEnrollment(w http.ResponseWriter, r *http.Request) {
	var payload ingestEnrollmentPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if payload.Login == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "login is required"})
		return
	}

	uid, err := s.svc.ResolveUser(r.Context(), payload.Login, "")
	if err != nil {
		s.writeError(w, err)
		return
	}

	enr, created, err := s.svc.CreateEnrollment(r.Context(), uid, workout.EnrollmentRequest{
		ProgramID:     payload.ProgramID,
		TotalWorkouts: payload.TotalWorkouts,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, enr)
}

// writeError maps engine errors onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, workout.ErrValidation):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, workout.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	default:
		s.log.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// parseTimeRange reads start/end query params (RFC 3339 or YYYY-MM-DD),
// defaulting to the last 30 days.
func parseTimeRange(r *http.Request) (start, end time.Time, err error) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")

	if endStr != "" {
		end, err = parseFlexTime(endStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		if dateOnly(endStr) {
			// End of day for date-only
			end = end.Add(24 * time.Hour)
		}
	} else {
		end = time.Now()
	}

	if startStr != "" {
		start, err = parseFlexTime(startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		start = end.AddDate(0, 0, -30)
	}
	return
}

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

func dateOnly(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}
