// Package webhook tells a front end which views to revalidate by POSTing
// invalidation events to it.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tendant/site-content/pkg/sitecontent"
)

// SecretHeader carries the shared secret when one is configured
const SecretHeader = "X-Revalidate-Secret"

// Config holds webhook configuration
type Config struct {
	URL     string        // Revalidation endpoint of the front end
	Secret  string        // Optional shared secret
	Timeout time.Duration // Per-request timeout, default 5s
}

// Invalidator POSTs every event as JSON to the configured URL.
type Invalidator struct {
	url    string
	secret string
	client *http.Client
}

// New creates a webhook invalidator
func New(config Config) (*Invalidator, error) {
	if config.URL == "" {
		return nil, errors.New("webhook url is required")
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	return &Invalidator{
		url:    config.URL,
		secret: config.Secret,
		client: &http.Client{Timeout: config.Timeout},
	}, nil
}

// Invalidate delivers the event. Any non-2xx response is an error.
func (w *Invalidator) Invalidate(ctx context.Context, event sitecontent.InvalidationEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.secret != "" {
		req.Header.Set(SecretHeader, w.secret)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post to %s: %w", w.url, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("post to %s: unexpected status %d", w.url, resp.StatusCode)
	}
	return nil
}
