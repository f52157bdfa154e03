// Package hubspot integrates with HubSpot form widgets: it submits booking
// conversions to the Forms API v3 and projects stored attribution into the
// hidden hs_utm_* form fields.
package hubspot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ignite/attribution-relay/internal/bridge"
)

// DefaultEndpoint is the Forms API v3 submission base URL.
const DefaultEndpoint = "https://api.hsforms.com/submissions/v3/integration/submit"

// HTTPDoer is the interface for executing HTTP requests. Both *http.Client
// and test doubles satisfy it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds the Forms API settings.
type Config struct {
	PortalID       string
	FormID         string
	Endpoint       string
	TimeoutSeconds int
}

// Client submits conversions to the HubSpot Forms API.
type Client struct {
	endpoint   string
	portalID   string
	formID     string
	httpClient HTTPDoer
}

// NewClient creates a Forms API client.
func NewClient(config Config) *Client {
	endpoint := config.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	timeout := config.TimeoutSeconds
	if timeout == 0 {
		timeout = 30
	}
	return &Client{
		endpoint: endpoint,
		portalID: config.PortalID,
		formID:   config.FormID,
		httpClient: &http.Client{
			Timeout: time.Duration(timeout) * time.Second,
		},
	}
}

// SetHTTPClient sets a custom HTTP client (useful for testing).
func (c *Client) SetHTTPClient(client HTTPDoer) {
	c.httpClient = client
}

type formField struct {
	ObjectTypeID string `json:"objectTypeId"`
	Name         string `json:"name"`
	Value        string `json:"value"`
}

type submissionContext struct {
	Hutk    string `json:"hutk,omitempty"`
	PageURI string `json:"pageUri"`
}

type submissionRequest struct {
	SubmittedAt string            `json:"submittedAt"`
	Fields      []formField       `json:"fields"`
	Context     submissionContext `json:"context"`
}

// Submit posts a booking conversion with its attribution fields to the
// configured form. It implements bridge.Submitter.
func (c *Client) Submit(ctx context.Context, sub bridge.Submission) error {
	payload := submissionRequest{
		SubmittedAt: strconv.FormatInt(sub.SubmittedAt.UnixMilli(), 10),
		Fields: []formField{
			{ObjectTypeID: "0-1", Name: "email", Value: sub.Email},
		},
		Context: submissionContext{
			Hutk:    sub.SessionToken,
			PageURI: sub.PageURI,
		},
	}
	for _, f := range sub.Record.Fields() {
		payload.Fields = append(payload.Fields, formField{
			ObjectTypeID: "0-1",
			Name:         f.Name,
			Value:        f.Value,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("hubspot: marshal submission: %w", err)
	}

	reqURL := fmt.Sprintf("%s/%s/%s", c.endpoint, c.portalID, c.formID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("hubspot: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("hubspot: submit: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("hubspot: submission failed (status %d): %s", resp.StatusCode, string(respBody))
	}
	return nil
}
