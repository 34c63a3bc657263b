// Package ollama installs the Ollama inference server through Homebrew,
// runs it as a launch agent listening on the network and pulls the
// configured models.
package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultAPIURL is where the local server answers.
	DefaultAPIURL = "http://127.0.0.1:11434"

	// ReadyTimeout bounds WaitForReady.
	ReadyTimeout = 30 * time.Second

	// ReadyPollInterval is the first delay between probes; it doubles up to
	// MaxReadyPollInterval.
	ReadyPollInterval    = 100 * time.Millisecond
	MaxReadyPollInterval = 2 * time.Second

	probeTimeout = 2 * time.Second
)

// Model is one entry of /api/tags.
type Model struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Client talks to the Ollama HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a Client for baseURL; empty means DefaultAPIURL.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// IsRunning reports whether the API answers within a short timeout.
// Connection errors mean not running and are not returned.
func (c *Client) IsRunning(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK
}

// ListModels returns the models the server has pulled.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connecting to ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result struct {
		Models []Model `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding model list: %w", err)
	}
	return result.Models, nil
}

// HasModel reports whether name is among models. A name without a tag
// matches any tag of that model.
func HasModel(models []Model, name string) bool {
	want := strings.ToLower(name)
	wantBase, _, tagged := strings.Cut(want, ":")
	for _, m := range models {
		have := strings.ToLower(m.Name)
		if have == want {
			return true
		}
		if haveBase, _, _ := strings.Cut(have, ":"); !tagged && haveBase == wantBase {
			return true
		}
	}
	return false
}

// WaitForReady polls IsRunning with exponential backoff until the server
// answers or timeout passes. Zero timeout means ReadyTimeout.
func (c *Client) WaitForReady(ctx context.Context, timeout time.Duration) error {
	if timeout == 0 {
		timeout = ReadyTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	interval := ReadyPollInterval
	for {
		if c.IsRunning(ctx) {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("ollama did not answer at %s within %s: %w", c.baseURL, timeout, ctx.Err())
		case <-time.After(interval):
		}

		interval = min(interval*2, MaxReadyPollInterval)
	}
}
