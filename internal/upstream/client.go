package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	defaultBaseURL  = "https://api.openai.com/v1"
	maxResponseSize = 10 << 20 // 10MB
)

// ErrNoChoices is returned when a successful response carries no completion.
var ErrNoChoices = errors.New("upstream returned no choices")

// Client talks to an OpenAI-compatible chat completion API. It holds no
// credential; the key is supplied per call so a missing key can be detected
// by the caller before any network I/O.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the given base URL. An empty baseURL uses
// the public OpenAI endpoint.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		// No client timeout: one blocking round trip bounded only by ctx.
		httpClient: &http.Client{},
	}
}

// BaseURL returns the endpoint root the client posts to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Complete sends one chat completion request and returns the first choice's
// text together with the raw usage object. Non-2xx statuses yield *APIError.
func (c *Client) Complete(ctx context.Context, apiKey string, req CompletionRequest) (Completion, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Completion{}, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Completion{}, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Completion{}, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return Completion{}, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Completion{}, &APIError{Status: resp.StatusCode, Detail: errorDetail(respBody)}
	}

	var parsed completionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Completion{}, fmt.Errorf("decoding response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return Completion{}, ErrNoChoices
	}

	usage := parsed.Usage
	if len(usage) == 0 {
		usage = json.RawMessage("null")
	}
	return Completion{Text: parsed.Choices[0].Message.Content, Usage: usage}, nil
}

// errorDetail extracts error.message from an upstream error body, or "" when
// the body is not in the expected shape.
func errorDetail(body []byte) string {
	var e errorResponse
	if err := json.Unmarshal(body, &e); err != nil {
		return ""
	}
	return e.Error.Message
}
