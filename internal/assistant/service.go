// Package assistant answers business questions by forwarding them to an
// upstream chat completion model, optionally grounded in a read-only snapshot
// of company tables.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/kalambet/bizassist/internal/composer"
	"github.com/kalambet/bizassist/internal/datastore"
	"github.com/kalambet/bizassist/internal/upstream"
)

// Completer performs one upstream chat completion.
type Completer interface {
	Complete(ctx context.Context, apiKey string, req upstream.CompletionRequest) (upstream.Completion, error)
}

// Deps holds the collaborators of a Service. Rows may be nil, in which case
// every table fetch fails and is omitted from the prompt.
type Deps struct {
	Rows      datastore.RowReader
	Completer Completer
	APIKey    string
	Model     string
	Logger    *slog.Logger
}

// Service is safe for concurrent use; nothing is mutated after New.
type Service struct {
	rows      datastore.RowReader
	completer Completer
	apiKey    string
	model     string
	logger    *slog.Logger
	validate  *validator.Validate
}

// New creates a Service. A nil logger uses slog.Default().
func New(deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	return &Service{
		rows:      deps.Rows,
		completer: deps.Completer,
		apiKey:    deps.APIKey,
		model:     deps.Model,
		logger:    logger,
		validate:  v,
	}
}

// Handle processes one request:
//  1. Fail fast when no upstream credential is configured
//  2. Validate the request
//  3. Snapshot authorized tables when company data is requested (fail-open per table)
//  4. Build the system instruction
//  5. Call the upstream model once and map the result
func (s *Service) Handle(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	log := s.logger.With("request_id", uuid.NewString())

	if s.apiKey == "" {
		return Response{}, ErrMissingAPIKey
	}

	if err := s.validate.Struct(req); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	log.Info("assistant request received", "message", req.Message)

	var companyData string
	if req.Config.wantsCompanyData() {
		companyData = s.Snapshot(ctx, log, req.Config.AuthorizedTables)
	}

	prompt := composer.SystemPrompt(composer.Input{
		SystemPrompt:     req.Config.SystemPrompt,
		CustomKnowledge:  req.Config.CustomKnowledge,
		CompanyData:      companyData,
		AuthorizedTables: req.Config.AuthorizedTables,
	})
	log.Debug("system prompt built", "estimated_tokens", composer.EstimateTokens(prompt))

	completion, err := s.completer.Complete(ctx, s.apiKey, upstream.CompletionRequest{
		Model: s.model,
		Messages: []upstream.Message{
			{Role: "system", Content: prompt},
			{Role: "user", Content: req.Message},
		},
		Temperature: req.Config.EffectiveTemperature(),
		MaxTokens:   req.Config.EffectiveMaxTokens(),
	})
	if err != nil {
		var apiErr *upstream.APIError
		if errors.As(err, &apiErr) {
			return Response{}, apiErr
		}
		return Response{}, fmt.Errorf("calling upstream: %w", err)
	}

	log.Info("assistant response produced",
		"response", completion.Text,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return Response{Response: completion.Text, Usage: completion.Usage}, nil
}

// Snapshot reads up to SnapshotRowLimit rows from each table, in order, and
// returns the concatenated context blocks. A table that cannot be read or
// serialized is logged and skipped; Snapshot never fails.
func (s *Service) Snapshot(ctx context.Context, log *slog.Logger, tables []string) string {
	if log == nil {
		log = s.logger
	}

	var sb strings.Builder
	for _, table := range tables {
		if s.rows == nil {
			log.Warn("company data requested but no data store configured", "table", table)
			continue
		}

		rows, err := s.rows.Rows(ctx, table, SnapshotRowLimit)
		if err != nil {
			log.Warn("failed to fetch table, omitting from context", "table", table, "error", err)
			continue
		}

		block, err := composer.TableBlock(table, rows)
		if err != nil {
			log.Warn("failed to serialize table, omitting from context", "table", table, "error", err)
			continue
		}

		sb.WriteString(block)
		log.Debug("table added to context", "table", table, "rows", len(rows))
	}
	return sb.String()
}
