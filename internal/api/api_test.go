package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/erazemk/itemsvc/internal/db"
	"github.com/erazemk/itemsvc/internal/metrics"
	"github.com/erazemk/itemsvc/internal/model"
	"github.com/erazemk/itemsvc/internal/store"
)

// fakeClock hands out increasing timestamps one second apart.
type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

type testServer struct {
	*httptest.Server
	items   *store.ItemStore
	metrics *metrics.Metrics
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	database := db.NewTestDB(t)
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	items := &store.ItemStore{DB: database, Now: clock.Now}
	m := metrics.New()

	server := httptest.NewServer(NewRouter(Options{DB: database, Items: items, Metrics: m}))
	t.Cleanup(server.Close)
	return &testServer{Server: server, items: items, metrics: m}
}

// do sends a request with an optional JSON body and bearer token and returns
// the response with its body already read.
func do(t *testing.T, method, url, token string, body any) (*http.Response, []byte) {
	t.Helper()

	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshalling body: %v", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	return resp, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("decoding %s: %v", data, err)
	}
	return v
}

func expectStatus(t *testing.T, resp *http.Response, body []byte, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("expected %d, got %d: %s", want, resp.StatusCode, body)
	}
}

func expectError(t *testing.T, body []byte, code string) errorBody {
	t.Helper()
	e := decode[errorBody](t, body)
	if e.Error != code {
		t.Errorf("expected error code %q, got %q", code, e.Error)
	}
	if e.Message == "" || e.Detail == nil {
		t.Errorf("expected message and detail in envelope, got %+v", e)
	}
	return e
}

func TestHealthEndpoint(t *testing.T) {
	srv := setupTestServer(t)

	resp, body := do(t, "GET", srv.URL+"/health", "", nil)
	expectStatus(t, resp, body, http.StatusOK)

	var h map[string]any
	json.Unmarshal(body, &h)
	if h["status"] != "healthy" || h["version"] != Version {
		t.Errorf("unexpected health body %s", body)
	}
	if _, ok := h["timestamp"]; !ok {
		t.Error("expected timestamp")
	}
	if _, ok := h["uptime"]; !ok {
		t.Error("expected uptime")
	}
}

func TestReadinessEndpoint(t *testing.T) {
	srv := setupTestServer(t)

	resp, body := do(t, "GET", srv.URL+"/ready", "", nil)
	expectStatus(t, resp, body, http.StatusOK)

	ready := decode[readyResponse](t, body)
	if ready.Status != "ready" || ready.Checks["database"] != "ok" {
		t.Errorf("unexpected readiness body %s", body)
	}
	if len(ready.Checks) != 1 {
		t.Errorf("expected only the database check, got %v", ready.Checks)
	}
}

func TestReadinessDatabaseDown(t *testing.T) {
	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	database.Close()

	server := httptest.NewServer(NewRouter(Options{DB: database, Items: store.NewItemStore(database)}))
	t.Cleanup(server.Close)

	resp, body := do(t, "GET", server.URL+"/ready", "", nil)
	expectStatus(t, resp, body, http.StatusServiceUnavailable)

	ready := decode[readyResponse](t, body)
	if ready.Status != "not_ready" || ready.Checks["database"] != "unavailable" {
		t.Errorf("unexpected readiness body %s", body)
	}

	// Liveness does not depend on the database.
	resp, body = do(t, "GET", server.URL+"/health", "", nil)
	expectStatus(t, resp, body, http.StatusOK)
}

func TestRequestID(t *testing.T) {
	srv := setupTestServer(t)

	resp, _ := do(t, "GET", srv.URL+"/health", "", nil)
	if resp.Header.Get(RequestIDHeader) == "" {
		t.Error("expected generated request id")
	}

	req, _ := http.NewRequest("GET", srv.URL+"/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("expected propagated request id, got %q", got)
	}
}

func TestUnknownRoute(t *testing.T) {
	srv := setupTestServer(t)

	resp, body := do(t, "GET", srv.URL+"/api/v2/things", "", nil)
	expectStatus(t, resp, body, http.StatusNotFound)
	expectError(t, body, codeNotFound)
}

type panickingRepo struct{ ItemRepository }

func (panickingRepo) Count(context.Context, string) (int, error) { panic("boom") }
func (panickingRepo) List(context.Context, store.ListParams) ([]model.Item, error) {
	return nil, nil
}

func TestPanicRecovery(t *testing.T) {
	database := db.NewTestDB(t)
	server := httptest.NewServer(NewRouter(Options{DB: database, Items: panickingRepo{}}))
	t.Cleanup(server.Close)

	resp, body := do(t, "GET", server.URL+"/api/v1/items", "", nil)
	expectStatus(t, resp, body, http.StatusInternalServerError)
	e := expectError(t, body, codeInternal)
	if e.Message != "An internal server error occurred" {
		t.Errorf("unexpected message %q", e.Message)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := setupTestServer(t)
	srv.metrics.RegisterItemCount(func(ctx context.Context) (int, error) {
		return srv.items.Count(ctx, "")
	})

	do(t, "POST", srv.URL+"/api/v1/items", "", map[string]string{"name": "Counted"})

	resp, body := do(t, "GET", srv.URL+"/metrics", "", nil)
	expectStatus(t, resp, body, http.StatusOK)

	for _, want := range []string{
		`itemsvc_http_requests_total{method="POST",route="POST /api/v1/items",status="201"} 1`,
		"itemsvc_items 1",
	} {
		if !bytes.Contains(body, []byte(want)) {
			t.Errorf("metrics missing %q", want)
		}
	}
}
