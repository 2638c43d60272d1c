// Package alerts stores saved searches and notifies their owners about new
// listings.
package alerts

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spigell/job-aggregator/internal/jobs"
)

var (
	ErrNotFound      = errors.New("alert not found")
	ErrOwnerRequired = errors.New("alert owner is required")
)

// JobAlert is a saved search owned by one user.
type JobAlert struct {
	ID            string       `json:"id"`
	Owner         string       `json:"owner"`
	Keywords      string       `json:"keywords"`
	Location      string       `json:"location"`
	JobType       jobs.JobType `json:"job_type"`
	Active        bool         `json:"active"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
	LastCheckedAt *time.Time   `json:"last_checked_at,omitempty"`
}

// Query is the search the alert stands for.
func (a *JobAlert) Query() jobs.SearchQuery {
	return jobs.SearchQuery{Keywords: a.Keywords, Location: a.Location}
}

// Input carries user supplied alert fields. A nil Active keeps the current
// value, or means true for a new alert.
type Input struct {
	Keywords string `json:"keywords"`
	Location string `json:"location"`
	JobType  string `json:"job_type"`
	Active   *bool  `json:"active"`
}

// apply validates in and copies it onto a.
func (in Input) apply(a *JobAlert) error {
	q, err := jobs.NewSearchQuery(in.Keywords, in.Location)
	if err != nil {
		return err
	}
	jobType, err := jobs.ParseJobType(in.JobType)
	if err != nil {
		return err
	}

	a.Keywords = q.Keywords
	a.Location = q.Location
	a.JobType = jobType
	if in.Active != nil {
		a.Active = *in.Active
	}
	return nil
}

func ownerOf(owner string) (string, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return "", ErrOwnerRequired
	}
	return owner, nil
}

func storeErr(op string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, jobs.ErrStore, err)
}
