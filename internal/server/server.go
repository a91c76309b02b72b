package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/peakform/peakform/internal/models"
	"github.com/peakform/peakform/internal/workout"
	"tailscale.com/client/local"
)

// Service is the progression surface the HTTP layer exposes.
// *workout.Engine satisfies it; handler tests substitute fakes.
type Service interface {
	ResolveUser(ctx context.Context, login, displayName string) (int, error)
	CurrentWorkout(ctx context.Context, userID int, programID string) (*workout.CurrentWorkout, error)
	TodaySession(ctx context.Context, userID int, programID, day string) (*workout.TodaySession, error)
	SaveSession(ctx context.Context, req workout.SaveRequest) (*workout.SaveOutcome, error)
	SessionHistory(ctx context.Context, userID int, programID string, start, end time.Time) ([]models.Session, error)
	Enrollments(ctx context.Context, userID int) ([]models.Enrollment, error)
	CreateEnrollment(ctx context.Context, userID int, req workout.EnrollmentRequest) (*models.Enrollment, bool, error)
	Programs(ctx context.Context) ([]models.Program, error)
	Program(ctx context.Context, programID string) (*models.Program, error)
	UpsertProgram(ctx context.Context, id, name string, definition json.RawMessage) error
}

// Compile-time check: *workout.Engine satisfies Service.
var _ Service = (*workout.Engine)(nil)

// Server holds dependencies for HTTP handlers.
type Server struct {
	svc    Service
	log    *slog.Logger
	apiKey string
	ts     *local.Client
	router chi.Router
}

// New creates a new Server with all routes configured.
func New(svc Service, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		svc:    svc,
		log:    log,
		apiKey: apiKey,
		router: chi.NewRouter(),
	}
	s.routes()
	return s
}

// SetTailscale switches identity resolution from the dev fallback to
// Tailscale WhoIs lookups against the given local client.
func (s *Server) SetTailscale(lc *local.Client) {
	s.ts = lc
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)
	s.router.Use(s.identity)

	// Bootstrap endpoints for catalog sync and enrollment setup (API key required)
	s.router.Route("/api/v1/ingest", func(r chi.Router) {
		r.Use(APIKeyAuth(s.apiKey))
		r.Post("/programs", s.handleIngestProgram)
		r.Post("/enrollments", s.handleIngestEnrollment)
	})

	s.router.Get("/api/v1/me", s.handleMe)
	s.router.Get("/api/v1/programs", s.handleListPrograms)
	s.router.Get("/api/v1/programs/{programID}", s.handleGetProgram)
	s.router.Get("/api/v1/programs/{programID}/current", s.handleCurrentWorkout)
	s.router.Get("/api/v1/programs/{programID}/session", s.handleGetSession)
	s.router.Post("/api/v1/programs/{programID}/session", s.handleSaveSession)
	s.router.Get("/api/v1/programs/{programID}/sessions", s.handleSessionHistory)
	s.router.Get("/api/v1/enrollments", s.handleListEnrollments)
}
