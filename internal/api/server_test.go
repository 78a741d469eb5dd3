package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	archiveMemory "github.com/capturelabs/capturesink/internal/archive/memory"
	"github.com/capturelabs/capturesink/internal/capture"
	systemClock "github.com/capturelabs/capturesink/internal/clock/system"
	"github.com/capturelabs/capturesink/internal/config"
	"github.com/capturelabs/capturesink/internal/docstore"
	docMemory "github.com/capturelabs/capturesink/internal/docstore/memory"
	sha256Hash "github.com/capturelabs/capturesink/internal/hash/sha256"
	"github.com/capturelabs/capturesink/internal/hooks"
	hooksMemory "github.com/capturelabs/capturesink/internal/hooks/memory"
	uuidID "github.com/capturelabs/capturesink/internal/id/uuid"
	"github.com/capturelabs/capturesink/internal/ingest"
)

const samplePayload = `{
	"task": {
		"id": "task-1",
		"robotId": "robot-9",
		"status": "successful",
		"inputParameters": {"originUrl": "https://www.espn.com/nba/scores"},
		"capturedTexts": {"headline": "Season opener tonight"},
		"capturedLists": {
			"Games": [
				{"Title": "Lakers at Celtics", "position": "1"},
				{"Title": "Knicks at Bulls", "position": "2"}
			]
		}
	}
}`

func TestServer_HandleCapture_Succeeds(t *testing.T) {
	t.Parallel()

	server, docs := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/capture", strings.NewReader(samplePayload))
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, true, resp["success"])
	require.Equal(t, "espn.com", resp["docName"])

	doc, _, err := docs.Get(context.Background(), capture.CollectionLists, "espn.com")
	require.NoError(t, err)
	games, ok := doc.Data["Games"].([]any)
	require.True(t, ok)
	require.Len(t, games, 2)
}

func TestServer_HandleCapture_DoublePostAppendsNothing(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/capture", strings.NewReader(samplePayload))
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	req := httptest.NewRequest(
		http.MethodGet,
		"/v1/collections/captured_lists/documents/espn.com/categories/Games",
		nil,
	)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var payload struct {
		Items []map[string]any `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Len(t, payload.Items, 2)
}

func TestServer_HandleCapture_InvalidJSON(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/capture", strings.NewReader("{invalid"))
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, false, resp["success"])
	require.Equal(t, "invalid JSON", resp["error"])
}

func TestServer_HandleCaptureStrict_MissingTaskID(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	body := `{"task": {"inputParameters": {"originUrl": "https://www.espn.com"}}}`

	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/capture/strict", strings.NewReader(body))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "task.id is required")

	// The permissive endpoint accepts the same payload.
	req = httptest.NewRequest(http.MethodPost, "/v1/webhooks/capture", strings.NewReader(body))
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_HandleCapture_StoreFailure(t *testing.T) {
	t.Parallel()

	server := buildTestServer(t, &failingDocstore{err: errors.New("backend offline")}, defaultTestConfig())
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/capture", strings.NewReader(samplePayload))
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, false, resp["success"])
	require.Contains(t, resp["error"], "backend offline")
}

func TestServer_APIKeyGuardsAdminSurfaceOnly(t *testing.T) {
	t.Parallel()

	cfg := defaultTestConfig()
	cfg.Auth = config.AuthConfig{Enabled: true, APIKey: "secret"}
	server := buildTestServer(t, docMemory.New(), cfg)

	// Admin reads require the key.
	req := httptest.NewRequest(http.MethodGet, "/v1/collections/captured_lists/keys", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/collections/captured_lists/keys", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// Provider callbacks never do.
	req = httptest.NewRequest(http.MethodPost, "/v1/webhooks/capture", strings.NewReader(samplePayload))
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// Neither do probes.
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_CORSPreflight(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/v1/webhooks/capture", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "DELETE")
}

func TestServer_MetricsEndpointServesPrometheus(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "# HELP")
}

func TestRequestIDMiddlewareSetsHeader(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	server.Handler().ServeHTTP(rec, req)

	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestResponseWriterHijackBehavior(t *testing.T) {
	t.Parallel()

	rw := &responseWriter{ResponseWriter: httptest.NewRecorder()}
	if _, _, err := rw.Hijack(); err == nil || err.Error() != "hijacker not supported" {
		t.Fatalf("expected unsupported hijacker error, got %v", err)
	}

	h := &hijackableRecorder{ResponseRecorder: httptest.NewRecorder()}
	rw = &responseWriter{ResponseWriter: h}
	conn, buf, err := rw.Hijack()
	if err != nil {
		t.Fatalf("expected successful hijack, got %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("close hijacked conn: %v", err)
	}
	if err := h.CloseClient(); err != nil {
		t.Fatalf("close hijacked client: %v", err)
	}
	if buf == nil {
		t.Fatal("expected buf to be non-nil")
	}
}

// --- helpers/fakes ---

func defaultTestConfig() config.Config {
	return config.Config{
		Server: config.ServerConfig{
			Port:                  8080,
			RequestTimeoutSeconds: 5,
			CORSOrigin:            "*",
		},
	}
}

func buildTestServer(t *testing.T, docs docstore.Store, cfg config.Config) *Server {
	t.Helper()

	ids := uuidID.New()
	clk := systemClock.New()
	normalizer := capture.NewNormalizer(ids, clk, nil, zap.NewNop())
	ing := ingest.New(docs, archiveMemory.New(), normalizer, sha256Hash.New(), clk, nil, ingest.Config{}, zap.NewNop())
	hookStore := hooksMemory.New()
	dispatcher := hooks.NewDispatcher(hookStore, hooks.DispatcherConfig{
		Timeout:     2 * time.Second,
		MaxAttempts: 2,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	})
	return NewServer(ing, docs, hookStore, dispatcher, ids, clk, cfg, zap.NewNop())
}

func newTestServer(t *testing.T) (*Server, *docMemory.Store) {
	t.Helper()

	docs := docMemory.New()
	return buildTestServer(t, docs, defaultTestConfig()), docs
}

type failingDocstore struct {
	err error
}

func (f *failingDocstore) Get(context.Context, string, string) (docstore.Document, string, error) {
	return docstore.Document{}, "", docstore.ErrNotFound
}

func (f *failingDocstore) ConditionalSet(context.Context, string, string, docstore.Document, string) error {
	return f.err
}

func (f *failingDocstore) Delete(context.Context, string, string) error {
	return f.err
}

func (f *failingDocstore) ListKeys(context.Context, string) ([]string, error) {
	return nil, f.err
}

type hijackableRecorder struct {
	*httptest.ResponseRecorder
	client net.Conn
}

func (h *hijackableRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	server, client := net.Pipe()
	h.client = client
	return server, bufio.NewReadWriter(bufio.NewReader(client), bufio.NewWriter(client)), nil
}

func (h *hijackableRecorder) CloseClient() error {
	if h.client != nil {
		if err := h.client.Close(); err != nil {
			return fmt.Errorf("close hijacker client: %w", err)
		}
	}
	return nil
}
