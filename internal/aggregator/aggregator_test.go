package aggregator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/job-aggregator/internal/jobs"
	"github.com/spigell/job-aggregator/internal/sources"
	"github.com/spigell/job-aggregator/internal/sources/adzuna"
	"github.com/spigell/job-aggregator/internal/webclient"
)

var now = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

type fakeSource struct {
	name  string
	calls atomic.Int32
	fetch func(ctx context.Context, q jobs.SearchQuery, limit int) ([]jobs.RawListing, error)
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) SearchURL(q jobs.SearchQuery) string {
	return "https://" + f.name + ".example/search?q=" + q.Keywords
}

func (f *fakeSource) Fetch(ctx context.Context, q jobs.SearchQuery, limit int) ([]jobs.RawListing, error) {
	f.calls.Add(1)
	return f.fetch(ctx, q, limit)
}

func returning(name string, n int) *fakeSource {
	return &fakeSource{name: name, fetch: func(context.Context, jobs.SearchQuery, int) ([]jobs.RawListing, error) {
		out := make([]jobs.RawListing, 0, n)
		for i := 0; i < n; i++ {
			out = append(out, jobs.RawListing{
				Title:      fmt.Sprintf("Engineer %d", i),
				Company:    fmt.Sprintf("Company %d", i),
				URL:        fmt.Sprintf("/job/%d", i),
				PostedText: "2 hours ago",
			})
		}
		return out, nil
	}}
}

func hanging(name string) *fakeSource {
	return &fakeSource{name: name, fetch: func(ctx context.Context, _ jobs.SearchQuery, _ int) ([]jobs.RawListing, error) {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		return []jobs.RawListing{{Title: "late"}}, nil
	}}
}

func newOrchestrator(logger *zap.Logger, srcs ...*fakeSource) *Orchestrator {
	list := make([]sources.Source, 0, len(srcs))
	for _, s := range srcs {
		list = append(list, s)
	}
	o := New(list, Config{Timeout: 50 * time.Millisecond, Limit: 10, Minimum: 5}, logger)
	o.now = func() time.Time { return now }
	return o
}

func search(t *testing.T, o *Orchestrator, keywords string) *Result {
	t.Helper()

	res, err := o.Search(context.Background(), Request{Query: jobs.SearchQuery{Keywords: keywords}})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	return res
}

func assertTotals(t *testing.T, res *Result) {
	t.Helper()

	sum := 0
	for _, listings := range res.JobsByPortal() {
		sum += len(listings)
	}
	if res.TotalCount() != sum {
		t.Fatalf("total count %d does not match buckets %d", res.TotalCount(), sum)
	}
}

func TestAllSourcesHealthy(t *testing.T) {
	t.Parallel()

	o := newOrchestrator(nil,
		returning("naukri", 6), returning("indeed", 6), returning("linkedin", 6), returning("monster", 6),
	)
	res := search(t, o, "python developer")

	if res.TotalCount() != 24 || res.SyntheticCount() != 0 {
		t.Fatalf("expected 24 genuine listings, got total=%d synthetic=%d", res.TotalCount(), res.SyntheticCount())
	}
	if len(res.Failures) != 0 {
		t.Fatalf("unexpected failures: %+v", res.Failures)
	}

	want := []string{"naukri", "indeed", "linkedin", "monster"}
	for i, name := range want {
		if res.Order[i] != name {
			t.Fatalf("expected source order %v, got %v", want, res.Order)
		}
		b := res.Buckets[name]
		if b.Len() != 6 || b.Listings[0].Title != "Engineer 0" || b.Listings[5].Title != "Engineer 5" {
			t.Fatalf("unexpected bucket %s: %+v", name, b.Listings)
		}
		if b.Listings[0].URL != "https://"+name+".example/job/0" {
			t.Fatalf("expected resolved url, got %q", b.Listings[0].URL)
		}
	}

	assertTotals(t, res)
}

func TestTimedOutSourceIsBackfilled(t *testing.T) {
	t.Parallel()

	slow := hanging("linkedin")
	o := newOrchestrator(nil, returning("naukri", 2), returning("indeed", 2), slow, returning("monster", 2))

	start := time.Now()
	res := search(t, o, "rust engineer")
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("search took %s, the timeout must bound it", elapsed)
	}

	b := res.Buckets["linkedin"]
	if b.Len() != 5 || b.Genuine() != 0 || b.Synthetic() != 5 {
		t.Fatalf("expected 5 synthetic listings for the timed out source, got %+v", b.Listings)
	}
	for _, l := range b.Listings {
		if l.Title == "late" {
			t.Fatalf("late result must be discarded")
		}
	}

	for _, name := range []string{"naukri", "indeed", "monster"} {
		b := res.Buckets[name]
		if b.Genuine() != 2 || b.Synthetic() != 3 {
			t.Fatalf("%s: expected 2 genuine and 3 synthetic, got %d and %d", name, b.Genuine(), b.Synthetic())
		}
		for i, l := range b.Listings {
			if l.IsSynthetic != (i >= 2) {
				t.Fatalf("%s: placeholders must come after genuine listings", name)
			}
		}
	}

	if len(res.Failures) != 1 || res.Failures[0].Source != "linkedin" || res.Failures[0].Kind != "timeout" {
		t.Fatalf("unexpected failures: %+v", res.Failures)
	}
	if !res.Failed("linkedin") || res.Failed("naukri") {
		t.Fatalf("unexpected failed lookup")
	}
	if res.SyntheticCount() != 14 {
		t.Fatalf("expected 14 synthetic listings, got %d", res.SyntheticCount())
	}

	assertTotals(t, res)
}

func TestAllSourcesFailed(t *testing.T) {
	t.Parallel()

	broken := func(name string, err error) *fakeSource {
		return &fakeSource{name: name, fetch: func(context.Context, jobs.SearchQuery, int) ([]jobs.RawListing, error) {
			return nil, err
		}}
	}

	o := newOrchestrator(nil,
		broken("naukri", errors.New("connection refused")),
		broken("indeed", jobs.NewSourceError("indeed", jobs.ErrSourceParse, errors.New("no title"))),
		&fakeSource{name: "monster", fetch: func(context.Context, jobs.SearchQuery, int) ([]jobs.RawListing, error) {
			panic("boom")
		}},
	)
	res := search(t, o, "cobol")

	if res.TotalCount() != 15 || res.SyntheticCount() != 15 {
		t.Fatalf("expected an all-synthetic response, got total=%d synthetic=%d", res.TotalCount(), res.SyntheticCount())
	}

	kinds := map[string]string{}
	for _, f := range res.Failures {
		kinds[f.Source] = f.Kind
	}
	want := map[string]string{"naukri": "unavailable", "indeed": "parse", "monster": "unavailable"}
	for source, kind := range want {
		if kinds[source] != kind {
			t.Fatalf("expected %s to fail with %s, got %v", source, kind, kinds)
		}
	}
}

func TestPartialResultsAreKept(t *testing.T) {
	t.Parallel()

	partial := &fakeSource{name: "indeed", fetch: func(context.Context, jobs.SearchQuery, int) ([]jobs.RawListing, error) {
		return []jobs.RawListing{{Title: "Go Developer", Company: "Acme"}}, jobs.NewSourceError("indeed", jobs.ErrSourceUnavailable, errors.New("page 2: 503"))
	}}
	res := search(t, newOrchestrator(nil, partial), "go")

	b := res.Buckets["indeed"]
	if b.Genuine() != 1 || b.Len() != 5 {
		t.Fatalf("expected salvaged listing plus placeholders, got %+v", b.Listings)
	}
	if len(res.Failures) != 1 || res.Failures[0].Error != "page 2: 503" {
		t.Fatalf("unexpected failures: %+v", res.Failures)
	}
}

func TestInvalidQueryCallsNoSource(t *testing.T) {
	t.Parallel()

	src := returning("naukri", 6)
	o := newOrchestrator(nil, src)

	_, err := o.Search(context.Background(), Request{Query: jobs.SearchQuery{Keywords: "   "}})
	if !errors.Is(err, jobs.ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery, got %v", err)
	}
	if src.calls.Load() != 0 {
		t.Fatalf("no source may be called for an invalid query")
	}
}

func TestNoSources(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, Config{}, nil).Search(context.Background(), Request{Query: jobs.SearchQuery{Keywords: "go"}}); !errors.Is(err, ErrNoSources) {
		t.Fatalf("expected ErrNoSources, got %v", err)
	}
}

func TestDuplicatesAndStaleListings(t *testing.T) {
	t.Parallel()

	src := &fakeSource{name: "naukri", fetch: func(context.Context, jobs.SearchQuery, int) ([]jobs.RawListing, error) {
		return []jobs.RawListing{
			{Title: "Go Developer", Company: "Acme", PostedText: "3 hours ago"},
			{Title: "SRE", Company: "Globex", PostedText: "3 days ago"},
			{Title: "go  developer", Company: "ACME", PostedText: "1 hour ago"},
		}, nil
	}}
	other := &fakeSource{name: "indeed", fetch: func(context.Context, jobs.SearchQuery, int) ([]jobs.RawListing, error) {
		return []jobs.RawListing{{Title: "Go Developer", Company: "Acme", PostedText: "5 hours ago"}}, nil
	}}

	o := newOrchestrator(nil, src, other)
	o.cfg.Minimum = 0

	res := search(t, o, "go")
	b := res.Buckets["naukri"]
	if b.Len() != 1 || b.Listings[0].Title != "go developer" || len(b.Stale) != 1 {
		t.Fatalf("unexpected bucket: listings=%+v stale=%+v", b.Listings, b.Stale)
	}
	if res.Buckets["indeed"].Len() != 1 {
		t.Fatalf("listings from different sources must not be merged")
	}

	stats := res.Stats["naukri"]
	if stats.Fetched != 3 || stats.Duplicates != 1 || stats.Stale != 1 || stats.Synthetic != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	all, err := o.Search(context.Background(), Request{Query: jobs.SearchQuery{Keywords: "go"}, IncludeStale: true})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if all.Buckets["naukri"].Len() != 2 {
		t.Fatalf("expected stale listing in the full view, got %+v", all.Buckets["naukri"].Listings)
	}
}

func TestJobTypeFilter(t *testing.T) {
	t.Parallel()

	src := &fakeSource{name: "hh", fetch: func(context.Context, jobs.SearchQuery, int) ([]jobs.RawListing, error) {
		return []jobs.RawListing{
			{Title: "A", JobType: "remote"},
			{Title: "B", JobType: "full time"},
		}, nil
	}}
	o := newOrchestrator(nil, src)
	o.cfg.Minimum = 2

	res, err := o.Search(context.Background(), Request{Query: jobs.SearchQuery{Keywords: "go"}, JobType: jobs.JobTypeRemote})
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	b := res.Buckets["hh"]
	if b.Genuine() != 1 || b.Listings[0].Title != "A" || b.Synthetic() != 1 {
		t.Fatalf("unexpected bucket: %+v", b.Listings)
	}
	if b.Listings[1].JobType != jobs.JobTypeRemote {
		t.Fatalf("placeholder must carry the requested job type, got %q", b.Listings[1].JobType)
	}
	if res.Stats["hh"].Filtered != 1 {
		t.Fatalf("unexpected stats: %+v", res.Stats["hh"])
	}
}

func TestExperienceFilter(t *testing.T) {
	t.Parallel()

	src := &fakeSource{name: "naukri", fetch: func(context.Context, jobs.SearchQuery, int) ([]jobs.RawListing, error) {
		return []jobs.RawListing{
			{Title: "A", Experience: "0-1 Yrs, Fresher"},
			{Title: "B", Experience: "3-5 Yrs"},
			{Title: "C"},
		}, nil
	}}
	o := newOrchestrator(nil, src)
	o.cfg.Minimum = 2

	res, err := o.Search(context.Background(), Request{Query: jobs.SearchQuery{Keywords: "go"}, Experience: "fresher"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	b := res.Buckets["naukri"]
	if b.Genuine() != 1 || b.Listings[0].Title != "A" || b.Synthetic() != 1 {
		t.Fatalf("unexpected bucket: %+v", b.Listings)
	}
	if res.Stats["naukri"].Filtered != 2 || res.Experience != "fresher" {
		t.Fatalf("unexpected result: %+v %q", res.Stats["naukri"], res.Experience)
	}
}

func TestLimitIsEnforced(t *testing.T) {
	t.Parallel()

	o := newOrchestrator(nil, returning("naukri", 30))
	if got := search(t, o, "go").Buckets["naukri"].Len(); got != 10 {
		t.Fatalf("expected 10 listings, got %d", got)
	}
}

func TestStateTransitions(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	o := newOrchestrator(zap.New(core), returning("naukri", 1))

	var mu sync.Mutex
	var states []State
	o.StateHook = func(s State) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, s)
	}

	search(t, o, "go")

	want := []State{Idle, FetchingAll, Normalizing, Deduplicating, FilteringRecency, FilteringRecency, FilteringRecency, Backfilling, Done}
	if len(states) != len(want) {
		t.Fatalf("expected %v, got %v", want, states)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, states)
		}
	}

	if logs.FilterMessage("search finished").Len() != 1 {
		t.Fatalf("expected a summary log entry")
	}
	if logs.FilterMessage("filter step").Len() != 3 {
		t.Fatalf("expected 3 filter step entries, got %d", logs.FilterMessage("filter step").Len())
	}
}

func TestReportAndDump(t *testing.T) {
	t.Parallel()

	res := search(t, newOrchestrator(nil, returning("naukri", 2)), "go")

	report := res.ReportByCompany()
	if len(report) != 2 || report["Company 0"][0]["title"] != "Engineer 0" {
		t.Fatalf("unexpected report: %+v", report)
	}

	filename, err := res.DumpToTmpFile()
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	defer os.Remove(filename)

	data, err := os.ReadFile(filename)
	if err != nil || len(data) == 0 {
		t.Fatalf("expected dump contents, got %d bytes, %v", len(data), err)
	}
}

func TestFailureReportHidesCredentials(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	src, err := adzuna.New(webclient.New("", nil), adzuna.Config{BaseURL: srv.URL, AppID: "id", AppKey: "SUPERSECRETKEY"}, nil)
	if err != nil {
		t.Fatalf("new adzuna: %v", err)
	}

	o := New([]sources.Source{src}, Config{Timeout: time.Second, Limit: 10, Minimum: 5}, nil)
	o.now = func() time.Time { return now }

	res := search(t, o, "go")
	if !res.Failed(adzuna.Name) {
		t.Fatalf("expected adzuna to be reported as failed")
	}

	report, err := json.Marshal(res.Failures)
	if err != nil {
		t.Fatalf("marshal failures: %v", err)
	}
	if strings.Contains(string(report), "SUPERSECRETKEY") {
		t.Fatalf("app key leaked into failure report: %s", report)
	}
}
