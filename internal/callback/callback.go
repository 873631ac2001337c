// Package callback is the narrow-contract collaborator for a stub's
// optional outbound HTTP callback: it renders the callback's request
// template against the execution data document and delivers it over
// plain net/http. The execution handler does not invoke it today (the
// feature is carried in the data model but left unexercised); it exists
// as the documented extension point for that behaviour.
package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/danslapman/kolibri-go/internal/models"
	"github.com/danslapman/kolibri-go/internal/template"
)

// Client delivers a stub's outbound callback.
type Client struct {
	httpClient *http.Client
}

// New builds a Client backed by a new http.Client with default settings.
func New() *Client {
	return &Client{httpClient: &http.Client{}}
}

// Deliver templates cb's request against data and issues the resulting
// HTTP call. It reports a delivery error; the caller decides whether
// that failure should affect the triggering request (today, nothing
// calls Deliver, so no such decision is made).
func (c *Client) Deliver(ctx context.Context, cb *models.Callback, data interface{}) error {
	if cb == nil {
		return nil
	}

	method := string(cb.Request.Method)
	if method == "" {
		method = http.MethodPost
	}

	url := asString(template.Substitute(cb.Request.URL, data))
	if url == "" {
		return fmt.Errorf("callback: empty url after templating")
	}

	body, err := renderBody(cb.Request, data)
	if err != nil {
		return fmt.Errorf("callback: rendering body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("callback: building request: %w", err)
	}
	for name, value := range cb.Request.Headers {
		req.Header.Set(name, asString(template.Substitute(value, data)))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("callback: delivering request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("callback: remote responded %d", resp.StatusCode)
	}
	return nil
}

func asString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(encoded)
}

func renderBody(req models.CallbackRequest, data interface{}) ([]byte, error) {
	switch req.Mode {
	case "no_body":
		return nil, nil
	case "raw":
		rendered := asString(template.Substitute(req.RawBody, data))
		return []byte(rendered), nil
	case "json":
		rendered := template.Substitute(deepCopy(req.JSONBody), data)
		return json.Marshal(rendered)
	default:
		return nil, fmt.Errorf("unknown callback request mode %q", req.Mode)
	}
}

func deepCopy(v interface{}) interface{} {
	encoded, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out interface{}
	if err := json.Unmarshal(encoded, &out); err != nil {
		return v
	}
	return out
}
