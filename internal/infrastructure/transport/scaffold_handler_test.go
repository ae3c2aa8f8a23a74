package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"apigen/app/usecase"
	"apigen/internal/domain/entity"
	"apigen/internal/infrastructure/events"
	"apigen/internal/infrastructure/store/memory"
)

type fakeGenerator func(ctx context.Context, schemaID string) (*entity.Artifact, error)

func (f fakeGenerator) Generate(ctx context.Context, schemaID string) (*entity.Artifact, error) {
	return f(ctx, schemaID)
}

type testServer struct {
	router  *mux.Router
	schemas *usecase.SchemaService
	hub     *events.Hub
}

func newTestServer(t *testing.T, gen fakeGenerator) *testServer {
	t.Helper()
	schemaRepo := memory.NewSchemaRepo()
	ts := &testServer{
		router:  mux.NewRouter(),
		schemas: usecase.NewSchemaService(schemaRepo),
		hub:     events.NewHub(8),
	}
	h := NewScaffoldHandler(
		ts.schemas,
		usecase.NewJobService(memory.NewJobRepo(), memory.NewGeneratedFileRepo()),
		gen,
		ts.hub,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		prometheus.NewRegistry(),
	)
	h.RegisterRoutes(ts.router)
	return ts
}

func (ts *testServer) do(method, path string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var out errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return out
}

func unusedGenerator(t *testing.T) fakeGenerator {
	return func(ctx context.Context, schemaID string) (*entity.Artifact, error) {
		t.Error("generator should not be called")
		return nil, nil
	}
}

func TestCreateAndGetSchema(t *testing.T) {
	ts := newTestServer(t, unusedGenerator(t))

	rec := ts.do(http.MethodPost, "/api/v1/schemas",
		`{"entity_name":"Book","base_path":"/books","fields":["title: String"],"endpoints":[{"method":"GET","path":"/books/search"}]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body)
	}
	var created entity.Schema
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}
	if created.ID == "" || created.EntityName != "Book" || len(created.Endpoints) != 1 {
		t.Fatalf("created = %+v", created)
	}

	rec = ts.do(http.MethodGet, "/api/v1/schemas/"+created.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	rec = ts.do(http.MethodGet, "/api/v1/schemas", "")
	var list []entity.Schema
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil || len(list) != 1 {
		t.Fatalf("list = %v, %v", list, err)
	}

	rec = ts.do(http.MethodDelete, "/api/v1/schemas/"+created.ID, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = ts.do(http.MethodGet, "/api/v1/schemas/"+created.ID, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d", rec.Code)
	}
}

func TestCreateSchemaRejectsBadInput(t *testing.T) {
	ts := newTestServer(t, unusedGenerator(t))

	rec := ts.do(http.MethodPost, "/api/v1/schemas", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json status = %d", rec.Code)
	}
	if got := decodeError(t, rec); got.Kind != "invalid_input" {
		t.Fatalf("kind = %q", got.Kind)
	}

	rec = ts.do(http.MethodPost, "/api/v1/schemas", `{"entity_name":"no spaces allowed"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid name status = %d", rec.Code)
	}
	if got := decodeError(t, rec); got.Kind != "invalid_schema" || got.Upstream {
		t.Fatalf("error body = %+v", got)
	}
}

func TestGenerateStreamsArchive(t *testing.T) {
	archivePath := filepath.Join(t.TempDir(), "job-1.zip")
	payload := []byte("PK\x03\x04 fake zip bytes")
	if err := os.WriteFile(archivePath, payload, 0o644); err != nil {
		t.Fatal(err)
	}

	ts := newTestServer(t, func(ctx context.Context, schemaID string) (*entity.Artifact, error) {
		if schemaID != "schema-1" {
			t.Errorf("schema id = %q", schemaID)
		}
		return &entity.Artifact{
			JobID:    "job-1",
			FileName: "book-api.zip",
			Path:     archivePath,
			Size:     int64(len(payload)),
			Entries:  6,
		}, nil
	})

	rec := ts.do(http.MethodPost, "/api/v1/schemas/schema-1/generate", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/zip" {
		t.Fatalf("content type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename=book-api.zip` {
		t.Fatalf("content disposition = %q", cd)
	}
	if rec.Header().Get("X-Job-ID") != "job-1" {
		t.Fatalf("job header = %q", rec.Header().Get("X-Job-ID"))
	}
	if !bytes.Equal(rec.Body.Bytes(), payload) {
		t.Fatalf("body = %q", rec.Body.Bytes())
	}
	if _, err := os.Stat(archivePath); !os.IsNotExist(err) {
		t.Fatal("archive not removed after delivery")
	}
}

func TestGenerateErrorStatus(t *testing.T) {
	tests := []struct {
		err          error
		wantStatus   int
		wantUpstream bool
	}{
		{fmt.Errorf("load schema: %w", entity.ErrNotFound), http.StatusNotFound, false},
		{fmt.Errorf("generate: %w: connection refused", entity.ErrTransport), http.StatusBadGateway, true},
		{fmt.Errorf("generate: %w: status 400", entity.ErrUpstreamProtocol), http.StatusBadGateway, true},
		{fmt.Errorf("parse response: %w", entity.ErrParseFailure), http.StatusBadGateway, true},
		{fmt.Errorf("generate: %w: %w", entity.ErrTransport, context.DeadlineExceeded), http.StatusGatewayTimeout, true},
		{fmt.Errorf("archive: %w: disk full", entity.ErrFilesystem), http.StatusInternalServerError, false},
	}
	for _, tt := range tests {
		t.Run(entity.ErrorKind(tt.err), func(t *testing.T) {
			ts := newTestServer(t, func(ctx context.Context, schemaID string) (*entity.Artifact, error) {
				return nil, tt.err
			})
			rec := ts.do(http.MethodPost, "/api/v1/schemas/s/generate", "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := decodeError(t, rec); got.Upstream != tt.wantUpstream || got.Kind != entity.ErrorKind(tt.err) {
				t.Fatalf("error body = %+v", got)
			}
		})
	}
}

func TestJobEndpoints(t *testing.T) {
	ts := newTestServer(t, unusedGenerator(t))

	rec := ts.do(http.MethodGet, "/api/v1/jobs", "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("jobs = %d %s", rec.Code, rec.Body)
	}
	rec = ts.do(http.MethodGet, "/api/v1/jobs/unknown", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown job status = %d", rec.Code)
	}
	rec = ts.do(http.MethodGet, "/api/v1/jobs/unknown/files", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown job files status = %d", rec.Code)
	}
	rec = ts.do(http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
}

func TestEventsWebsocket(t *testing.T) {
	ts := newTestServer(t, unusedGenerator(t))
	srv := httptest.NewServer(ts.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/events?job_id=j1"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("handshake status = %d", resp.StatusCode)
	}

	deadline := time.Now().Add(2 * time.Second)
	for ts.hub.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("handler never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	ts.hub.Publish(events.Event{JobID: "other", Stage: events.StageStarted})
	ts.hub.Publish(events.Event{JobID: "j1", Stage: events.StageSucceeded, Detail: "book-api.zip"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev events.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.JobID != "j1" || ev.Stage != events.StageSucceeded || ev.Detail != "book-api.zip" {
		t.Fatalf("event = %+v", ev)
	}
}
