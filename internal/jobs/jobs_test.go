package jobs

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestParseJobType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    JobType
		wantErr bool
	}{
		{input: "", want: JobTypeUnspecified},
		{input: "any", want: JobTypeUnspecified},
		{input: "full-time", want: JobTypeFullTime},
		{input: " Full Time ", want: JobTypeFullTime},
		{input: "fulltime", want: JobTypeFullTime},
		{input: "part_time", want: JobTypePartTime},
		{input: "CONTRACT", want: JobTypeContract},
		{input: "internship", want: JobTypeInternship},
		{input: "remote", want: JobTypeRemote},
		{input: "freelance", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			got, err := ParseJobType(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidQuery) {
					t.Fatalf("expected ErrInvalidQuery, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestNewSearchQuery(t *testing.T) {
	t.Parallel()

	q, err := NewSearchQuery("  python   developer ", " Pune ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Keywords != "python developer" || q.Location != "Pune" {
		t.Fatalf("unexpected query: %+v", q)
	}
	if q.String() != "python developer in Pune" {
		t.Fatalf("unexpected string form: %q", q.String())
	}

	for _, blank := range []string{"", "   ", "\t\n"} {
		if _, err := NewSearchQuery(blank, "Pune"); !errors.Is(err, ErrInvalidQuery) {
			t.Fatalf("expected ErrInvalidQuery for %q, got %v", blank, err)
		}
	}
}

func TestListingKeyFoldsCaseAndSpaces(t *testing.T) {
	t.Parallel()

	a := JobListing{Source: "indeed", Title: "Go  Developer", Company: "Acme"}
	b := JobListing{Source: "indeed", Title: "go developer", Company: " ACME "}
	c := JobListing{Source: "naukri", Title: "Go Developer", Company: "Acme"}

	if a.Key() != b.Key() {
		t.Fatalf("expected equal keys: %+v vs %+v", a.Key(), b.Key())
	}
	if a.Key() == c.Key() {
		t.Fatalf("keys from different sources must differ")
	}
}

func TestBucketCounts(t *testing.T) {
	t.Parallel()

	b := Bucket{Listings: []JobListing{{}, {}, {IsSynthetic: true}}}
	if b.Len() != 3 || b.Genuine() != 2 || b.Synthetic() != 1 {
		t.Fatalf("unexpected counts: len=%d genuine=%d synthetic=%d", b.Len(), b.Genuine(), b.Synthetic())
	}
}

func TestHumanizeAge(t *testing.T) {
	t.Parallel()

	tests := []struct {
		age  time.Duration
		want string
	}{
		{age: -time.Hour, want: "just now"},
		{age: 30 * time.Second, want: "just now"},
		{age: time.Minute, want: "1 minute ago"},
		{age: 45 * time.Minute, want: "45 minutes ago"},
		{age: 5 * time.Hour, want: "5 hours ago"},
		{age: 30 * time.Hour, want: "yesterday"},
		{age: 3 * 24 * time.Hour, want: "3 days ago"},
		{age: 15 * 24 * time.Hour, want: "2 weeks ago"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			if got := HumanizeAge(tt.age); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		kind error
	}{
		{name: "deadline", err: fmt.Errorf("get page: %w", context.DeadlineExceeded), kind: ErrSourceTimeout},
		{name: "parse", err: fmt.Errorf("decode: %w", ErrSourceParse), kind: ErrSourceParse},
		{name: "other", err: errors.New("connection refused"), kind: ErrSourceUnavailable},
		{name: "already typed", err: NewSourceError("indeed", ErrSourceParse, nil), kind: ErrSourceParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			se := Classify("indeed", tt.err)
			if se == nil {
				t.Fatalf("expected source error")
			}
			if !errors.Is(se, tt.kind) {
				t.Fatalf("expected kind %v, got %v", tt.kind, se.Kind)
			}
			if se.Source != "indeed" {
				t.Fatalf("unexpected source %q", se.Source)
			}
		})
	}

	if Classify("indeed", nil) != nil {
		t.Fatalf("nil error must classify to nil")
	}

	if KindName(NewSourceError("x", ErrSourceTimeout, nil)) != "timeout" {
		t.Fatalf("unexpected kind name")
	}
}
