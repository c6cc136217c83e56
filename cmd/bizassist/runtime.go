package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/kalambet/bizassist/internal/assistant"
	"github.com/kalambet/bizassist/internal/config"
	"github.com/kalambet/bizassist/internal/datastore"
	"github.com/kalambet/bizassist/internal/upstream"
)

// appRuntime bundles the components shared by start and mcp.
type appRuntime struct {
	svc   *assistant.Service
	store datastore.Store
}

func newLogger(cfg config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
}

func openDatastore(cfg config.Config) (datastore.Store, error) {
	return datastore.Open(datastore.Options{
		Driver:     cfg.Datastore.Driver,
		DataDir:    cfg.Datastore.DataDir,
		DSN:        cfg.Datastore.DSN,
		URL:        cfg.Datastore.URL,
		ServiceKey: cfg.Datastore.ServiceKey,
	})
}

func openRuntime(cfg config.Config, logger *slog.Logger) (*appRuntime, error) {
	store, err := openDatastore(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Upstream.OpenAIAPIKey == "" {
		logger.Warn("OpenAI API key not configured; assistant requests will fail until OPENAI_API_KEY is set")
	}
	if store == nil {
		logger.Info("no datastore configured; company data will be omitted")
	} else {
		logger.Info("datastore ready", "driver", cfg.Datastore.Driver)
	}

	deps := assistant.Deps{
		Completer: upstream.NewClient(cfg.Upstream.BaseURL),
		APIKey:    cfg.Upstream.OpenAIAPIKey,
		Model:     cfg.Upstream.Model,
		Logger:    logger,
	}
	if store != nil {
		deps.Rows = store
	}

	return &appRuntime{svc: assistant.New(deps), store: store}, nil
}

// tables returns the store as a TableLister when the backend supports it.
func (r *appRuntime) tables() datastore.TableLister {
	if lister, ok := r.store.(datastore.TableLister); ok {
		return lister
	}
	return nil
}

func (r *appRuntime) rows() datastore.RowReader {
	if r.store == nil {
		return nil
	}
	return r.store
}

func (r *appRuntime) Close() {
	if r.store == nil {
		return
	}
	if err := r.store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: closing datastore: %v\n", err)
	}
}
