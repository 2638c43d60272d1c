package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/spigell/job-aggregator/internal/aggregator"
	"github.com/spigell/job-aggregator/internal/alerts"
	"github.com/spigell/job-aggregator/internal/jobs"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fakeSearcher struct {
	mu       sync.Mutex
	requests []aggregator.Request
	result   *aggregator.Result
	err      error
}

func (f *fakeSearcher) Search(_ context.Context, req aggregator.Request) (*aggregator.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.result, f.err
}

func (f *fakeSearcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func newTestServer(t *testing.T, searcher aggregator.Searcher, svc *alerts.Service) *Server {
	t.Helper()

	s, err := New(Config{}, "v1.2.3", searcher, svc, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return s
}

func do(t *testing.T, s *Server, method, target, owner, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if owner != "" {
		req.Header.Set(ownerHeader, owner)
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func sampleResult() *aggregator.Result {
	return &aggregator.Result{
		Query: jobs.SearchQuery{Keywords: "go developer", Location: "Pune"},
		Order: []string{"naukri", "linkedin"},
		Buckets: map[string]*jobs.Bucket{
			"naukri": {Source: "naukri", Listings: []jobs.JobListing{
				{Source: "naukri", Title: "Go Developer", Company: "Acme"},
				{Source: "naukri", Title: "SRE", Company: "Initech"},
			}},
			"linkedin": {Source: "linkedin", Listings: []jobs.JobListing{
				{Source: "linkedin", Title: "Go Engineer", Company: "Globex", IsSynthetic: true},
			}},
		},
		Failures: []aggregator.Failure{
			{Source: "linkedin", Kind: "timeout", Error: "source timed out"},
		},
		FinishedAt: time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	rec := do(t, newTestServer(t, &fakeSearcher{}, nil), http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]string
	decode(t, rec, &body)
	if body["status"] != "ok" || body["service"] != ServiceName || body["version"] != "v1.2.3" {
		t.Fatalf("unexpected health body: %v", body)
	}
}

func TestSearch(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{result: sampleResult()}
	s := newTestServer(t, searcher, nil)

	rec := do(t, s, http.MethodGet, "/api/search?q=go+developer&location=Pune&include_stale=true&job_type=full_time&experience=Fresher", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if searcher.calls() != 1 {
		t.Fatalf("expected one search, got %d", searcher.calls())
	}
	req := searcher.requests[0]
	if req.Query.Keywords != "go developer" || req.Query.Location != "Pune" || !req.IncludeStale || req.JobType != jobs.JobTypeFullTime || req.Experience != "Fresher" {
		t.Fatalf("unexpected request: %+v", req)
	}

	var body SearchResponse
	decode(t, rec, &body)

	if !body.Success || body.TotalCount != 3 || body.SyntheticCount != 1 {
		t.Fatalf("unexpected counters: %+v", body)
	}
	if len(body.JobsByPortal["naukri"]) != 2 || len(body.JobsByPortal["linkedin"]) != 1 {
		t.Fatalf("unexpected portals: %+v", body.JobsByPortal)
	}
	if body.Query != "go developer" || body.Location != "Pune" {
		t.Fatalf("unexpected query echo: %q %q", body.Query, body.Location)
	}
	if len(body.FailedSources) != 1 || body.FailedSources[0].Source != "linkedin" {
		t.Fatalf("unexpected failures: %+v", body.FailedSources)
	}
	if body.Timestamp != "2024-05-10T12:00:00Z" {
		t.Fatalf("unexpected timestamp %q", body.Timestamp)
	}
}

func TestSearchEmptyFailuresRenderAsList(t *testing.T) {
	t.Parallel()

	res := sampleResult()
	res.Failures = nil

	rec := do(t, newTestServer(t, &fakeSearcher{result: res}, nil), http.MethodGet, "/api/search?q=go", "", "")
	if !strings.Contains(rec.Body.String(), `"failed_sources":[]`) {
		t.Fatalf("expected empty failed_sources list, got %s", rec.Body.String())
	}
}

func TestSearchBadRequests(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		target string
		want   string
	}{
		{name: "missing query", target: "/api/search", want: "Query parameter required"},
		{name: "blank query", target: "/api/search?q=%20%20", want: "Query parameter required"},
		{name: "bad job type", target: "/api/search?q=go&job_type=gig", want: "unknown job type"},
		{name: "bad include_stale", target: "/api/search?q=go&include_stale=maybe", want: "include_stale"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			searcher := &fakeSearcher{result: sampleResult()}
			rec := do(t, newTestServer(t, searcher, nil), http.MethodGet, tt.target, "", "")

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			var body map[string]string
			decode(t, rec, &body)
			if !strings.Contains(body["error"], tt.want) {
				t.Fatalf("expected error containing %q, got %q", tt.want, body["error"])
			}
			if searcher.calls() != 0 {
				t.Fatalf("searcher must not be called")
			}
		})
	}
}

func TestSearchErrors(t *testing.T) {
	t.Parallel()

	rec := do(t, newTestServer(t, &fakeSearcher{err: aggregator.ErrNoSources}, nil), http.MethodGet, "/api/search?q=go", "", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var body map[string]string
	decode(t, rec, &body)
	if body["error"] != aggregator.ErrNoSources.Error() {
		t.Fatalf("unexpected error body: %v", body)
	}

	invalid := &fakeSearcher{err: jobs.ErrInvalidQuery}
	if rec := do(t, newTestServer(t, invalid, nil), http.MethodGet, "/api/search?q=go", "", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid query, got %d", rec.Code)
	}
}

func TestAlertsRequireOwner(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeSearcher{}, alerts.NewService(alerts.NewMemoryStore(), nil))
	if rec := do(t, s, http.MethodGet, "/api/alerts", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAlertsDisabled(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeSearcher{}, nil)
	if rec := do(t, s, http.MethodGet, "/api/alerts", "alice", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without an alert service, got %d", rec.Code)
	}
}

func TestAlertsLifecycle(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeSearcher{}, alerts.NewService(alerts.NewMemoryStore(), nil))

	rec := do(t, s, http.MethodPost, "/api/alerts", "alice", `{"keywords":"go developer","location":"Pune","job_type":"remote"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		Success bool            `json:"success"`
		Alert   alerts.JobAlert `json:"alert"`
	}
	decode(t, rec, &created)
	if !created.Success || created.Alert.ID == "" || created.Alert.Owner != "alice" || created.Alert.JobType != jobs.JobTypeRemote {
		t.Fatalf("unexpected created alert: %+v", created)
	}
	id := created.Alert.ID

	var listed struct {
		Alerts []alerts.JobAlert `json:"alerts"`
	}
	decode(t, do(t, s, http.MethodGet, "/api/alerts", "bob", ""), &listed)
	if len(listed.Alerts) != 0 {
		t.Fatalf("bob must not see alice's alerts: %+v", listed.Alerts)
	}

	if rec := do(t, s, http.MethodPut, "/api/alerts/"+id, "bob", `{"keywords":"rust"}`); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign alert, got %d", rec.Code)
	}

	rec = do(t, s, http.MethodPut, "/api/alerts/"+id, "alice", `{"keywords":"rust","active":false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var updated struct {
		Alert alerts.JobAlert `json:"alert"`
	}
	decode(t, rec, &updated)
	if updated.Alert.Keywords != "rust" || updated.Alert.Active {
		t.Fatalf("unexpected update: %+v", updated.Alert)
	}

	if rec := do(t, s, http.MethodPost, "/api/alerts", "alice", `{"keywords":"  "}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank keywords, got %d", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/api/alerts", "alice", `{not json`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}

	for i := 0; i < 2; i++ {
		rec := do(t, s, http.MethodDelete, "/api/alerts/"+id, "alice", "")
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"success":true`) {
			t.Fatalf("delete %d: unexpected response %d %s", i, rec.Code, rec.Body.String())
		}
	}

	decode(t, do(t, s, http.MethodGet, "/api/alerts", "alice", ""), &listed)
	if len(listed.Alerts) != 0 {
		t.Fatalf("expected no alerts after delete, got %+v", listed.Alerts)
	}
}

type failingStore struct {
	*alerts.MemoryStore
}

func (failingStore) List(context.Context, string) ([]alerts.JobAlert, error) {
	return nil, errors.New("connection refused")
}

func TestAlertsStoreFailure(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeSearcher{}, alerts.NewService(failingStore{alerts.NewMemoryStore()}, nil))
	rec := do(t, s, http.MethodGet, "/api/alerts", "alice", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestShutdownBeforeRun(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeSearcher{}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := s.Run(); err != nil {
		t.Fatalf("run after shutdown should report a clean stop, got %v", err)
	}
}
