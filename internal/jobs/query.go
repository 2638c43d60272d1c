package jobs

import (
	"fmt"
	"strings"
)

// JobType is the closed set of employment types a listing can carry.
type JobType string

const (
	JobTypeUnspecified JobType = "unspecified"
	JobTypeFullTime    JobType = "full-time"
	JobTypePartTime    JobType = "part-time"
	JobTypeContract    JobType = "contract"
	JobTypeInternship  JobType = "internship"
	JobTypeRemote      JobType = "remote"
)

var jobTypes = []JobType{
	JobTypeFullTime,
	JobTypePartTime,
	JobTypeContract,
	JobTypeInternship,
	JobTypeRemote,
}

// JobTypes lists the concrete job types, without JobTypeUnspecified.
func JobTypes() []JobType {
	out := make([]JobType, len(jobTypes))
	copy(out, jobTypes)
	return out
}

// ParseJobType accepts the canonical names and their common spellings.
// An empty string means JobTypeUnspecified.
func ParseJobType(s string) (JobType, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.NewReplacer("_", "-", " ", "-").Replace(v)

	switch v {
	case "", "any", string(JobTypeUnspecified):
		return JobTypeUnspecified, nil
	case "fulltime":
		return JobTypeFullTime, nil
	case "parttime":
		return JobTypePartTime, nil
	}

	for _, t := range jobTypes {
		if v == string(t) {
			return t, nil
		}
	}

	return JobTypeUnspecified, fmt.Errorf("%w: unknown job type %q", ErrInvalidQuery, s)
}

func (t JobType) IsSpecified() bool {
	return t != "" && t != JobTypeUnspecified
}

// SearchQuery is built per request and never persisted.
type SearchQuery struct {
	Keywords string `json:"keywords"`
	Location string `json:"location,omitempty"`
}

// NewSearchQuery trims the input and rejects blank keywords.
func NewSearchQuery(keywords, location string) (SearchQuery, error) {
	q := SearchQuery{
		Keywords: strings.Join(strings.Fields(keywords), " "),
		Location: strings.Join(strings.Fields(location), " "),
	}

	if q.Keywords == "" {
		return SearchQuery{}, fmt.Errorf("%w: keywords are required", ErrInvalidQuery)
	}

	return q, nil
}

func (q SearchQuery) String() string {
	if q.Location == "" {
		return q.Keywords
	}
	return fmt.Sprintf("%s in %s", q.Keywords, q.Location)
}
