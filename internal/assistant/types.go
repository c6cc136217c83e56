package assistant

import "encoding/json"

const (
	// DefaultTemperature is used when the request config omits temperature.
	DefaultTemperature = 0.7
	// DefaultMaxTokens is used when the request config omits maxTokens.
	DefaultMaxTokens = 1000
	// SnapshotRowLimit bounds the rows read from each authorized table.
	SnapshotRowLimit = 10
)

// Request is one assistant call as received over the wire.
type Request struct {
	Message string `json:"message" validate:"required"`
	Config  Config `json:"config"`
}

// Config holds the per-request assistant settings. Pointer fields
// distinguish "not supplied" from an explicit zero.
type Config struct {
	SystemPrompt     string   `json:"systemPrompt" validate:"required"`
	CustomKnowledge  string   `json:"customKnowledge,omitempty"`
	UseCompanyData   bool     `json:"useCompanyData,omitempty"`
	AuthorizedTables []string `json:"authorizedTables,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	MaxTokens        *int     `json:"maxTokens,omitempty"`
}

// EffectiveTemperature returns the configured temperature or the default.
func (c Config) EffectiveTemperature() float64 {
	if c.Temperature == nil {
		return DefaultTemperature
	}
	return *c.Temperature
}

// EffectiveMaxTokens returns the configured token bound or the default.
func (c Config) EffectiveMaxTokens() int {
	if c.MaxTokens == nil {
		return DefaultMaxTokens
	}
	return *c.MaxTokens
}

// wantsCompanyData reports whether a data snapshot should be assembled.
func (c Config) wantsCompanyData() bool {
	return c.UseCompanyData && len(c.AuthorizedTables) > 0
}

// Response is the success payload. Usage is the upstream usage object, unchanged.
type Response struct {
	Response string          `json:"response"`
	Usage    json.RawMessage `json:"usage"`
}

// ErrorResponse is the failure payload.
type ErrorResponse struct {
	Error string `json:"error"`
}
