package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/bizassist/internal/assistant"
	"github.com/kalambet/bizassist/internal/upstream"
)

type fakeAssistant struct {
	resp  assistant.Response
	err   error
	panic bool
	calls []assistant.Request
}

func (f *fakeAssistant) Handle(ctx context.Context, req assistant.Request) (assistant.Response, error) {
	f.calls = append(f.calls, req)
	if f.panic {
		panic("boom")
	}
	return f.resp, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHandler(svc Assistant, token string) http.Handler {
	return NewAssistantHandler(svc, HandlerOptions{Token: token, Logger: discardLogger()})
}

func assertCORS(t *testing.T, rr *httptest.ResponseRecorder) {
	t.Helper()
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
	if got := rr.Header().Get("Access-Control-Allow-Headers"); got != allowedHeaders {
		t.Errorf("Access-Control-Allow-Headers = %q, want %q", got, allowedHeaders)
	}
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body assistant.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	return body.Error
}

const validBody = `{"message":"Quantos pedidos abertos?","config":{"systemPrompt":"You help a repair shop."}}`

func TestHealth(t *testing.T) {
	h := newTestHandler(&fakeAssistant{}, "")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	var body map[string]string
	json.NewDecoder(rr.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Errorf("body = %v, want status=ok", body)
	}
	assertCORS(t, rr)
}

func TestOptionsShortCircuits(t *testing.T) {
	for _, path := range []string{"/assistant", "/functions/v1/ia-assistant", "/anything"} {
		t.Run(path, func(t *testing.T) {
			svc := &fakeAssistant{}
			h := newTestHandler(svc, "secret")

			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, path, strings.NewReader("{garbage")))

			if rr.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rr.Code)
			}
			if rr.Body.Len() != 0 {
				t.Errorf("body = %q, want empty", rr.Body.String())
			}
			if len(svc.calls) != 0 {
				t.Errorf("assistant invoked on pre-flight")
			}
			assertCORS(t, rr)
		})
	}
}

func TestAssistant_Success(t *testing.T) {
	svc := &fakeAssistant{resp: assistant.Response{Response: "Hello", Usage: json.RawMessage(`{"tokens":42}`)}}
	h := newTestHandler(svc, "")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/assistant", strings.NewReader(validBody)))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != `{"response":"Hello","usage":{"tokens":42}}` {
		t.Errorf("body = %s", got)
	}
	assertCORS(t, rr)

	if len(svc.calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(svc.calls))
	}
	if svc.calls[0].Message != "Quantos pedidos abertos?" || svc.calls[0].Config.SystemPrompt != "You help a repair shop." {
		t.Errorf("request decoded as %+v", svc.calls[0])
	}
}

func TestAssistant_AnyMethodAndBothRoutes(t *testing.T) {
	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodGet} {
		for _, path := range []string{"/assistant", "/functions/v1/ia-assistant"} {
			svc := &fakeAssistant{resp: assistant.Response{Response: "ok", Usage: json.RawMessage(`null`)}}
			h := newTestHandler(svc, "")

			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(method, path, strings.NewReader(validBody)))

			if rr.Code != http.StatusOK {
				t.Errorf("%s %s: status = %d", method, path, rr.Code)
			}
		}
	}
}

func TestAssistant_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantError  string
	}{
		{
			name:       "malformed body",
			body:       "{invalid",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "validation failure",
			body:       validBody,
			err:        fmt.Errorf("%w: message is required", assistant.ErrInvalidRequest),
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid request: message is required",
		},
		{
			name:       "missing credential",
			body:       validBody,
			err:        assistant.ErrMissingAPIKey,
			wantStatus: http.StatusInternalServerError,
			wantError:  "OpenAI API key not configured",
		},
		{
			name:       "upstream failure",
			body:       validBody,
			err:        &upstream.APIError{Status: 429, Detail: "rate limited"},
			wantStatus: http.StatusInternalServerError,
			wantError:  "OpenAI API error: rate limited",
		},
		{
			name:       "unexpected failure",
			body:       validBody,
			err:        fmt.Errorf("calling upstream: %w", io.ErrUnexpectedEOF),
			wantStatus: http.StatusInternalServerError,
			wantError:  "internal error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(&fakeAssistant{err: tt.err}, "")

			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/assistant", strings.NewReader(tt.body)))

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			assertCORS(t, rr)

			msg := decodeError(t, rr)
			if tt.wantError != "" && msg != tt.wantError {
				t.Errorf("error = %q, want %q", msg, tt.wantError)
			}
			if msg == "" {
				t.Error("error message empty")
			}
		})
	}
}

func TestAssistant_PanicRecovered(t *testing.T) {
	h := newTestHandler(&fakeAssistant{panic: true}, "")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/assistant", strings.NewReader(validBody)))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	assertCORS(t, rr)
	if msg := decodeError(t, rr); msg != "internal error" {
		t.Errorf("error = %q", msg)
	}
}

// TestAssistant_InternalErrorDetailLogged verifies transport detail is kept
// out of the response body but written to the log.
func TestAssistant_InternalErrorDetailLogged(t *testing.T) {
	var logs bytes.Buffer
	svc := &fakeAssistant{err: fmt.Errorf("calling upstream: %w", fmt.Errorf(`Post "http://10.0.0.7/v1/chat/completions": dial tcp: connection refused`))}
	h := NewAssistantHandler(svc, HandlerOptions{Logger: slog.New(slog.NewTextHandler(&logs, nil))})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/assistant", strings.NewReader(validBody)))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	body := rr.Body.String()
	if strings.Contains(body, "10.0.0.7") || strings.Contains(body, "dial tcp") {
		t.Errorf("body leaks transport detail: %s", body)
	}
	if msg := decodeError(t, rr); msg != "internal error" {
		t.Errorf("error = %q", msg)
	}
	if !strings.Contains(logs.String(), "connection refused") || !strings.Contains(logs.String(), "kind=internal") {
		t.Errorf("log missing detail: %s", logs.String())
	}
}

// ctxAssistant records whether its context was cancelled while it worked.
type ctxAssistant struct {
	started chan struct{}
	ctxErr  error
}

func (a *ctxAssistant) Handle(ctx context.Context, req assistant.Request) (assistant.Response, error) {
	close(a.started)
	select {
	case <-ctx.Done():
		a.ctxErr = ctx.Err()
	case <-time.After(300 * time.Millisecond):
	}
	return assistant.Response{Response: "done", Usage: json.RawMessage(`null`)}, nil
}

// TestAssistant_ClientDisconnectDoesNotCancel verifies a request in flight
// keeps a live context after the caller goes away.
func TestAssistant_ClientDisconnectDoesNotCancel(t *testing.T) {
	svc := &ctxAssistant{started: make(chan struct{})}
	h := newTestHandler(svc, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodPost, "/assistant", strings.NewReader(validBody)).WithContext(ctx)

	go func() {
		<-svc.started
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if svc.ctxErr != nil {
		t.Fatalf("in-flight request saw %v after client disconnect", svc.ctxErr)
	}
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
}

func TestAssistant_BearerAuth(t *testing.T) {
	svc := &fakeAssistant{resp: assistant.Response{Response: "ok", Usage: json.RawMessage(`null`)}}
	h := newTestHandler(svc, "secret")

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer secret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/assistant", strings.NewReader(validBody))
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			assertCORS(t, rr)
		})
	}

	// Health stays public.
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", rr.Code)
	}
}

func TestNotFound(t *testing.T) {
	h := newTestHandler(&fakeAssistant{}, "")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/nope", nil))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
	assertCORS(t, rr)
	if msg := decodeError(t, rr); msg != "not found" {
		t.Errorf("error = %q", msg)
	}
}

// TestAssistant_EndToEnd drives the real service against a mock upstream.
func TestAssistant_EndToEnd(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "success",
			status:     http.StatusOK,
			body:       `{"choices":[{"message":{"content":"Hello"}}],"usage":{"tokens":42}}`,
			wantStatus: http.StatusOK,
			wantBody:   `{"response":"Hello","usage":{"tokens":42}}`,
		},
		{
			name:       "rate limited",
			status:     http.StatusTooManyRequests,
			body:       `{"error":{"message":"rate limited"}}`,
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"OpenAI API error: rate limited"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			svc := assistant.New(assistant.Deps{
				Completer: upstream.NewClient(srv.URL),
				APIKey:    "sk-test",
				Model:     "gpt-4o-mini",
				Logger:    discardLogger(),
			})
			h := newTestHandler(svc, "")

			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/functions/v1/ia-assistant", strings.NewReader(validBody)))

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if got := strings.TrimSpace(rr.Body.String()); got != tt.wantBody {
				t.Errorf("body = %s, want %s", got, tt.wantBody)
			}
			assertCORS(t, rr)
		})
	}
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("%w: x", assistant.ErrInvalidRequest), "invalid_request"},
		{assistant.ErrMissingAPIKey, "configuration"},
		{&upstream.APIError{Status: 500}, "upstream"},
		{io.EOF, "internal"},
	}
	for _, tt := range tests {
		if got := errorKind(tt.err); got != tt.want {
			t.Errorf("errorKind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
