package datastore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const maxRESTResponseSize = 5 << 20 // 5MB

// RESTStore reads rows from a PostgREST endpoint (the API Supabase exposes
// under /rest/v1) using a service key.
type RESTStore struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
}

// NewRESTStore creates a RESTStore for the project at baseURL. A nil
// httpClient uses http.DefaultClient.
func NewRESTStore(baseURL, serviceKey string, httpClient *http.Client) (*RESTStore, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("rest datastore url is required")
	}
	if serviceKey == "" {
		return nil, fmt.Errorf("rest datastore service key is required")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &RESTStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		httpClient: httpClient,
	}, nil
}

// Rows fetches up to limit rows with GET /rest/v1/{table}?select=*&limit=N.
func (s *RESTStore) Rows(ctx context.Context, table string, limit int) ([]Row, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("select", "*")
	q.Set("limit", strconv.Itoa(limit))
	endpoint := s.baseURL + "/rest/v1/" + table + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("apikey", s.serviceKey)
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", table, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRESTResponseSize))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", table, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("querying %s: unexpected status %d: %s", table, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	rows := []Row{}
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", table, err)
	}
	return rows, nil
}

// Close is a no-op; the HTTP client is shared.
func (s *RESTStore) Close() error {
	return nil
}
