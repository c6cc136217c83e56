package upstream

import (
	"encoding/json"
	"fmt"
)

// Message is a single chat message sent to the completion endpoint.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the OpenAI-compatible chat completion request body.
type CompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

// Completion is the part of a successful upstream response the service uses.
// Usage is kept as raw JSON so it can be echoed to callers unchanged.
type Completion struct {
	Text  string
	Usage json.RawMessage
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage json.RawMessage `json:"usage"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// APIError is returned when the upstream responds with a non-success status.
// Detail carries the provider's error message when the body had one.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	detail := e.Detail
	if detail == "" {
		detail = "Unknown error"
	}
	return fmt.Sprintf("OpenAI API error: %s", detail)
}
