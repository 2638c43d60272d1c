package filtering

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/spigell/job-aggregator/internal/jobs"
)

const BackfillName = "backfill"

var placeholderTitles = []string{
	"%s Developer",
	"Senior %s Engineer",
	"%s Specialist",
	"%s Consultant",
	"%s Lead",
	"Junior %s",
	"%s Analyst",
	"%s Architect",
}

type backfillFilter struct {
	toggle
	minimum int
	jobType jobs.JobType
}

// NewBackfill creates the filter topping up short buckets with placeholders.
func NewBackfill() Filter {
	return &backfillFilter{}
}

func (f *backfillFilter) Name() string { return BackfillName }

func (f *backfillFilter) Validate(cfg *Config) error {
	f.minimum = DefaultMinimum
	f.jobType = jobs.JobTypeUnspecified
	if cfg == nil {
		return nil
	}
	if cfg.Minimum < 0 {
		return errors.New("minimum must not be negative")
	}
	f.minimum = cfg.Minimum
	f.jobType = cfg.JobType
	return nil
}

func (f *backfillFilter) Apply(_ context.Context, deps Deps, b *jobs.Bucket) (*jobs.Bucket, Step, error) {
	initial := b.Len()
	added := Backfill(b, deps.Query, f.jobType, deps.Now, f.minimum)
	return b, Step{Initial: initial, Added: added, Left: b.Len()}, nil
}

func (f *backfillFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"minimum": strconv.Itoa(f.minimum)},
	}
}

// Backfill appends placeholders until b holds minimum listings and returns
// how many were added. Genuine listings stay in front.
func Backfill(b *jobs.Bucket, q jobs.SearchQuery, jobType jobs.JobType, now time.Time, minimum int) int {
	shortfall := minimum - b.Genuine()
	if shortfall <= 0 {
		return 0
	}

	b.Listings = append(b.Listings, Placeholders(b, q, jobType, now, minimum, shortfall)...)
	return shortfall
}

// Placeholders generates n declared stand-ins for a source bucket. The output
// depends only on its arguments.
func Placeholders(b *jobs.Bucket, q jobs.SearchQuery, jobType jobs.JobType, now time.Time, minimum, n int) []jobs.JobListing {
	if n <= 0 {
		return nil
	}

	h := fnv.New64a()
	h.Write([]byte(b.Source + "|" + strings.ToLower(q.Keywords) + "|" + strings.ToLower(q.Location)))
	r := rand.New(rand.NewSource(int64(h.Sum64())))
	offset := r.Intn(len(placeholderTitles))

	keywords := titleCase(q.Keywords)
	location := q.Location
	if location == "" {
		location = jobs.NotSpecified
	}
	if !jobType.IsSpecified() {
		jobType = jobs.JobTypeUnspecified
	}

	out := make([]jobs.JobListing, 0, n)
	for i := 0; i < n; i++ {
		title := fmt.Sprintf(placeholderTitles[(offset+i)%len(placeholderTitles)], keywords)
		if round := i / len(placeholderTitles); round > 0 {
			title = fmt.Sprintf("%s (%d)", title, round+1)
		}

		out = append(out, jobs.JobListing{
			Source:     b.Source,
			Title:      title,
			Company:    fmt.Sprintf("More results on %s", b.Source),
			Location:   location,
			JobType:    jobType,
			Experience: jobs.NotSpecified,
			Salary:     jobs.NotDisclosed,
			Description: fmt.Sprintf(
				"Placeholder: %s returned fewer than %d current listings for %q. Open the link to search %s directly.",
				b.Source, minimum, q.Keywords, b.Source,
			),
			URL:         b.SearchURL,
			Posted:      jobs.HumanizeAge(0),
			PostedAt:    now,
			FetchedAt:   now,
			IsCurrent:   true,
			IsSynthetic: true,
		})
	}

	return out
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
