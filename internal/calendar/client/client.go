// Package client provides the HTTP client for the external calendar API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"mailpilot_backend/internal/pipeline/ports"
	"mailpilot_backend/platform/apperr"
	"mailpilot_backend/platform/config"
	"mailpilot_backend/platform/logger"
)

// Client is the HTTP client for the calendar API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	log        *logger.Logger
}

// New creates a new calendar API client.
func New(cfg config.CalendarConfig, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    cfg.GetCalendarAPIURL(),
		apiKey:     cfg.GetCalendarAPIKey(),
		log:        log,
	}
}

type createEventRequest struct {
	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
	Start       string `json:"start"`
	End         string `json:"end"`
}

type createEventResponse struct {
	ID string `json:"id"`
}

// CreateEvent creates a calendar event and returns its external id.
func (c *Client) CreateEvent(ctx context.Context, params ports.CreateEventParams) (string, error) {
	payload, err := json.Marshal(createEventRequest{
		Summary:     params.Summary,
		Description: params.Description,
		Start:       params.Start.Format(time.RFC3339),
		End:         params.End.Format(time.RFC3339),
	})
	if err != nil {
		return "", fmt.Errorf("encode event: %w", err)
	}

	reqURL := c.baseURL + "/events"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error("calendar request failed", "error", err, "url", reqURL)
		return "", apperr.External("calendar request failed", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		// Success - continue to decode
	case http.StatusUnauthorized:
		c.log.Error("calendar unauthorized", "status", resp.StatusCode)
		return "", apperr.External("calendar unauthorized: invalid API key", nil)
	default:
		c.log.Error("calendar upstream error", "status", resp.StatusCode)
		return "", apperr.External(fmt.Sprintf("calendar upstream error: status %d", resp.StatusCode), nil)
	}

	var out createEventResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.log.Error("calendar decode failed", "error", err)
		return "", apperr.External("decode calendar response failed", err)
	}
	if out.ID == "" {
		return "", apperr.External("calendar returned no event id", nil)
	}

	return out.ID, nil
}

var _ ports.CalendarWriter = (*Client)(nil)
