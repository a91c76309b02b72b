package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/peakform/peakform/internal/models"
	"github.com/peakform/peakform/internal/workout"
)

// HTTPClient implements DataSource by calling the PeakForm REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// data lives on the remote server (accessed over Tailscale). The
// userID arguments are ignored: the remote server resolves identity
// from the connection itself.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// Compile-time check: *HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("httpclient: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, body)
	}

	return body, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("httpclient: encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("httpclient: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, body)
	}

	return body, nil
}

func (c *HTTPClient) CurrentWorkout(ctx context.Context, _ int, programID string) (*workout.CurrentWorkout, error) {
	body, err := c.get(ctx, "/api/v1/programs/"+url.PathEscape(programID)+"/current", nil)
	if err != nil {
		return nil, err
	}

	var cw workout.CurrentWorkout
	if err := json.Unmarshal(body, &cw); err != nil {
		return nil, fmt.Errorf("httpclient: decode current workout: %w", err)
	}
	return &cw, nil
}

func (c *HTTPClient) TodaySession(ctx context.Context, _ int, programID, day string) (*workout.TodaySession, error) {
	params := url.Values{}
	params.Set("day", day)

	body, err := c.get(ctx, "/api/v1/programs/"+url.PathEscape(programID)+"/session", params)
	if err != nil {
		return nil, err
	}

	var today workout.TodaySession
	if err := json.Unmarshal(body, &today); err != nil {
		return nil, fmt.Errorf("httpclient: decode today session: %w", err)
	}
	return &today, nil
}

func (c *HTTPClient) SaveSession(ctx context.Context, req workout.SaveRequest) (*workout.SaveOutcome, error) {
	payload := map[string]any{
		"phase":     req.Phase,
		"day":       req.Day,
		"exercises": req.Exercises,
		"completed": req.Completed,
		"duration":  req.DurationSec,
	}

	body, err := c.post(ctx, "/api/v1/programs/"+url.PathEscape(req.ProgramID)+"/session", payload)
	if err != nil {
		return nil, err
	}

	var outcome workout.SaveOutcome
	if err := json.Unmarshal(body, &outcome); err != nil {
		return nil, fmt.Errorf("httpclient: decode save outcome: %w", err)
	}
	return &outcome, nil
}

func (c *HTTPClient) SessionHistory(ctx context.Context, _ int, programID string, start, end time.Time) ([]models.Session, error) {
	params := url.Values{}
	params.Set("start", start.Format(time.RFC3339))
	params.Set("end", end.Format(time.RFC3339))

	body, err := c.get(ctx, "/api/v1/programs/"+url.PathEscape(programID)+"/sessions", params)
	if err != nil {
		return nil, err
	}

	var sessions []models.Session
	if err := json.Unmarshal(body, &sessions); err != nil {
		return nil, fmt.Errorf("httpclient: decode sessions: %w", err)
	}
	return sessions, nil
}

func (c *HTTPClient) Enrollments(ctx context.Context, _ int) ([]models.Enrollment, error) {
	body, err := c.get(ctx, "/api/v1/enrollments", nil)
	if err != nil {
		return nil, err
	}

	var enrollments []models.Enrollment
	if err := json.Unmarshal(body, &enrollments); err != nil {
		return nil, fmt.Errorf("httpclient: decode enrollments: %w", err)
	}
	return enrollments, nil
}

func (c *HTTPClient) Programs(ctx context.Context) ([]models.Program, error) {
	body, err := c.get(ctx, "/api/v1/programs", nil)
	if err != nil {
		return nil, err
	}

	var programs []models.Program
	if err := json.Unmarshal(body, &programs); err != nil {
		return nil, fmt.Errorf("httpclient: decode programs: %w", err)
	}
	return programs, nil
}

func (c *HTTPClient) Program(ctx context.Context, programID string) (*models.Program, error) {
	body, err := c.get(ctx, "/api/v1/programs/"+url.PathEscape(programID), nil)
	if err != nil {
		return nil, err
	}

	var program models.Program
	if err := json.Unmarshal(body, &program); err != nil {
		return nil, fmt.Errorf("httpclient: decode program: %w", err)
	}
	return &program, nil
}
