package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"bundy/internal/bundy/types"
)

// Source delivers the configured session definitions.  A fetch returns a
// complete replacement snapshot; partial merges across fetches are
// forbidden, so any decode or validation failure fails the whole fetch.
type Source interface {
	FetchSessions(ctx context.Context) ([]types.SessionDefinition, error)
}

// sessionPayload mirrors one element of the policy endpoint's JSON array.
// Time fields are "HH:MM:SS" strings; time-out and late fields are nullable.
type sessionPayload struct {
	ID           int     `json:"id"`
	SessionName  string  `json:"session_name"`
	TimeInStart  string  `json:"time_in_start"`
	TimeInEnd    string  `json:"time_in_end"`
	TimeOutStart *string `json:"time_out_start"`
	TimeOutEnd   *string `json:"time_out_end"`
	LateTime     *string `json:"late_time"`
}

// HTTPSource fetches session definitions from the policy endpoint.  The
// client timeout bounds every fetch; a timeout is a fetch failure and is
// handled by the cache's fallback rules.
type HTTPSource struct {
	url    string
	client *http.Client
}

func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSource{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSource) FetchSessions(ctx context.Context) ([]types.SessionDefinition, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("policy request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("policy fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("policy fetch: unexpected status %d", resp.StatusCode)
	}

	var payload []sessionPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("policy decode: %w", err)
	}

	defs := make([]types.SessionDefinition, 0, len(payload))
	for _, p := range payload {
		d, err := p.toDefinition()
		if err != nil {
			return nil, err
		}
		defs = append(defs, d)
	}
	return defs, nil
}

func (p sessionPayload) toDefinition() (types.SessionDefinition, error) {
	d := types.SessionDefinition{Name: p.SessionName}

	var err error
	if d.TimeInStart, err = types.ParseTimeOfDay(p.TimeInStart); err != nil {
		return d, fmt.Errorf("session %q time_in_start: %w", p.SessionName, err)
	}
	if d.TimeInEnd, err = types.ParseTimeOfDay(p.TimeInEnd); err != nil {
		return d, fmt.Errorf("session %q time_in_end: %w", p.SessionName, err)
	}

	if d.TimeOutStart, err = parseOptional(p.TimeOutStart); err != nil {
		return d, fmt.Errorf("session %q time_out_start: %w", p.SessionName, err)
	}
	if d.TimeOutEnd, err = parseOptional(p.TimeOutEnd); err != nil {
		return d, fmt.Errorf("session %q time_out_end: %w", p.SessionName, err)
	}
	if d.LateTime, err = parseOptional(p.LateTime); err != nil {
		return d, fmt.Errorf("session %q late_time: %w", p.SessionName, err)
	}
	return d, nil
}

func parseOptional(s *string) (*types.TimeOfDay, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := types.ParseTimeOfDay(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
