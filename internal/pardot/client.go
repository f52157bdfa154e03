// Package pardot integrates with a Pardot form handler and WPForms widgets:
// booking conversions go out as url-encoded form posts, and stored
// attribution is projected into configured WPForms field names.
package pardot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ignite/attribution-relay/internal/attribution"
	"github.com/ignite/attribution-relay/internal/bridge"
)

// HTTPDoer is the interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds the form handler settings.
type Config struct {
	FormHandlerEndpoint string
	TimeoutSeconds      int
}

// Client submits conversions to a Pardot form handler endpoint.
type Client struct {
	endpoint   string
	httpClient HTTPDoer
}

// NewClient creates a form handler client.
func NewClient(config Config) *Client {
	timeout := config.TimeoutSeconds
	if timeout == 0 {
		timeout = 30
	}
	return &Client{
		endpoint: config.FormHandlerEndpoint,
		httpClient: &http.Client{
			Timeout: time.Duration(timeout) * time.Second,
		},
	}
}

// SetHTTPClient sets a custom HTTP client (useful for testing).
func (c *Client) SetHTTPClient(client HTTPDoer) {
	c.httpClient = client
}

// Submit posts the conversion as application/x-www-form-urlencoded, the
// encoding Pardot form handlers accept. All seven attribution keys are
// always present, empty when unset. It implements bridge.Submitter.
func (c *Client) Submit(ctx context.Context, sub bridge.Submission) error {
	form := url.Values{}
	form.Set("email", sub.Email)
	for _, name := range attribution.FieldNames {
		form.Set(name, sub.Record.ValueOf(name))
	}
	form.Set("submittedAt", strconv.FormatInt(sub.SubmittedAt.UnixMilli(), 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("pardot: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("pardot: submit: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("pardot: submission failed (status %d): %s", resp.StatusCode, string(respBody))
	}
	return nil
}
