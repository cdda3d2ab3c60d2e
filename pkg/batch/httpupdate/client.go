// Package httpupdate implements the batch.Updater capability against a
// REST user API. The core stays transport-agnostic; this adapter is what
// the CLI plugs in.
package httpupdate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/arthur-debert/batchkit/pkg/batch"
	"github.com/arthur-debert/batchkit/pkg/batch/core"
)

// Client applies updates via PATCH {base}/users/{id}.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a client for the given API base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type updateRequest struct {
	Data          map[string]interface{} `json:"data"`
	MergeStrategy string                 `json:"merge_strategy"`
}

// ApplyUpdate implements batch.Updater. Failures are classified into the
// typed update error kinds so callers can present the cause; the executor
// retries them all the same way.
func (c *Client) ApplyUpdate(ctx context.Context, id core.TargetID, data map[string]interface{},
	strategy core.MergeStrategy) (map[string]interface{}, error) {

	body, err := json.Marshal(updateRequest{
		Data:          data,
		MergeStrategy: string(strategy),
	})
	if err != nil {
		return nil, &batch.UpdateError{Kind: batch.UpdateErrValidation, TargetID: id, Err: err}
	}

	endpoint := fmt.Sprintf("%s/users/%s", c.baseURL, url.PathEscape(string(id)))
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &batch.UpdateError{Kind: batch.UpdateErrNetwork, TargetID: id, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &batch.UpdateError{Kind: batch.UpdateErrNetwork, TargetID: id, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if kind, ok := errorKindFor(resp.StatusCode); ok {
		return nil, &batch.UpdateError{
			Kind:     kind,
			TargetID: id,
			Err:      fmt.Errorf("server returned %s", resp.Status),
		}
	}

	var updated map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&updated); err != nil {
		return nil, &batch.UpdateError{Kind: batch.UpdateErrNetwork, TargetID: id,
			Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return updated, nil
}

// errorKindFor maps an HTTP status to an update error kind. The second
// return is false for success statuses.
func errorKindFor(status int) (batch.UpdateErrorKind, bool) {
	switch {
	case status >= 200 && status < 300:
		return "", false
	case status == http.StatusNotFound:
		return batch.UpdateErrNotFound, true
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return batch.UpdateErrUnauthorized, true
	case status == http.StatusConflict:
		return batch.UpdateErrConflict, true
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return batch.UpdateErrValidation, true
	default:
		return batch.UpdateErrNetwork, true
	}
}
