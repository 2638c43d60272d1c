package aggregator

import (
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/spigell/job-aggregator/internal/filtering"
	"github.com/spigell/job-aggregator/internal/jobs"
)

// Failure describes a source that did not deliver a complete result.
type Failure struct {
	Source string `json:"source"`
	Kind   string `json:"kind"`
	Error  string `json:"error"`
}

func newFailure(source string, err error) Failure {
	msg := err.Error()
	var se *jobs.SourceError
	if errors.As(err, &se) && se.Err != nil {
		msg = se.Err.Error()
	}
	return Failure{Source: source, Kind: jobs.KindName(err), Error: msg}
}

// Stats are the per-source counters of one run.
type Stats struct {
	Fetched    int           `json:"fetched"`
	Duplicates int           `json:"duplicates"`
	Stale      int           `json:"stale"`
	Filtered   int           `json:"filtered"`
	Synthetic  int           `json:"synthetic"`
	Duration   time.Duration `json:"duration"`
}

func (s *Stats) record(step string, info filtering.Step) {
	switch step {
	case filtering.DedupName:
		s.Duplicates += info.Dropped
	case filtering.RecencyName:
		s.Stale += info.Dropped
	case filtering.JobTypeName, filtering.ExperienceName:
		s.Filtered += info.Dropped
	case filtering.BackfillName:
		s.Synthetic += info.Added
	}
}

type Result struct {
	Query        jobs.SearchQuery        `json:"query"`
	IncludeStale bool                    `json:"include_stale"`
	JobType      jobs.JobType            `json:"job_type"`
	Experience   string                  `json:"experience,omitempty"`
	Order        []string                `json:"order"`
	Buckets      map[string]*jobs.Bucket `json:"buckets"`
	Failures     []Failure               `json:"failures"`
	Stats        map[string]*Stats       `json:"stats"`
	FinishedAt   time.Time               `json:"finished_at"`
}

// JobsByPortal returns the visible listings of every source, never nil.
func (r *Result) JobsByPortal() map[string][]jobs.JobListing {
	out := make(map[string][]jobs.JobListing, len(r.Order))
	for _, name := range r.Order {
		listings := []jobs.JobListing{}
		if b := r.Buckets[name]; b != nil {
			listings = append(listings, b.Listings...)
		}
		out[name] = listings
	}
	return out
}

// Listings flattens the buckets in source order.
func (r *Result) Listings() []jobs.JobListing {
	var out []jobs.JobListing
	for _, name := range r.Order {
		if b := r.Buckets[name]; b != nil {
			out = append(out, b.Listings...)
		}
	}
	return out
}

func (r *Result) TotalCount() int {
	n := 0
	for _, name := range r.Order {
		if b := r.Buckets[name]; b != nil {
			n += b.Len()
		}
	}
	return n
}

func (r *Result) SyntheticCount() int {
	n := 0
	for _, name := range r.Order {
		if b := r.Buckets[name]; b != nil {
			n += b.Synthetic()
		}
	}
	return n
}

func (r *Result) Failed(source string) bool {
	for _, f := range r.Failures {
		if f.Source == source {
			return true
		}
	}
	return false
}

// ReportByCompany groups genuine listings by company.
func (r *Result) ReportByCompany() map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	for _, l := range r.Listings() {
		if l.IsSynthetic {
			continue
		}
		report[l.Company] = append(report[l.Company], map[string]string{
			"title":    l.Title,
			"source":   l.Source,
			"url":      l.URL,
			"location": l.Location,
			"salary":   l.Salary,
			"posted":   l.Posted,
		})
	}
	return report
}

func (r *Result) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "jobs_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	return file.Name(), nil
}
