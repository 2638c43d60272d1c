package hh

import (
	"fmt"
	"strings"

	"github.com/spigell/job-aggregator/internal/jobs"
)

type named struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

type Salary struct {
	From     int    `json:"from,omitempty"`
	To       int    `json:"to,omitempty"`
	Currency string `json:"currency,omitempty"`
}

type Vacancy struct {
	ID         string  `json:"id,omitempty"`
	Name       string  `json:"name,omitempty"`
	Area       named   `json:"area,omitempty"`
	Salary     *Salary `json:"salary,omitempty"`
	Experience named   `json:"experience,omitempty"`
	Schedule   named   `json:"schedule,omitempty"`
	Employment named   `json:"employment,omitempty"`
	Employer   struct {
		ID   string `json:"id,omitempty"`
		Name string `json:"name,omitempty"`
	} `json:"employer,omitempty"`
	AlternateURL string `json:"alternate_url,omitempty"`
	Snippet      struct {
		Requirement    string `json:"requirement,omitempty"`
		Responsibility string `json:"responsibility,omitempty"`
	} `json:"snippet,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`
}

// Raw converts the API shape into a raw listing.
func (v *Vacancy) Raw() jobs.RawListing {
	return jobs.RawListing{
		Title:       v.Name,
		Company:     v.Employer.Name,
		Location:    v.Area.Name,
		JobType:     v.jobType(),
		Experience:  v.Experience.Name,
		Salary:      v.Salary.String(),
		Description: strings.TrimSpace(v.Snippet.Responsibility + " " + v.Snippet.Requirement),
		URL:         v.AlternateURL,
		PostedText:  v.PublishedAt,
	}
}

func (v *Vacancy) jobType() string {
	if v.Schedule.ID == "remote" {
		return string(jobs.JobTypeRemote)
	}

	switch v.Employment.ID {
	case "full":
		return string(jobs.JobTypeFullTime)
	case "part":
		return string(jobs.JobTypePartTime)
	case "project":
		return string(jobs.JobTypeContract)
	case "probation":
		return string(jobs.JobTypeInternship)
	default:
		return v.Employment.Name
	}
}

func (s *Salary) String() string {
	if s == nil {
		return ""
	}

	switch {
	case s.From > 0 && s.To > 0:
		return fmt.Sprintf("%d-%d %s", s.From, s.To, s.Currency)
	case s.From > 0:
		return fmt.Sprintf("from %d %s", s.From, s.Currency)
	case s.To > 0:
		return fmt.Sprintf("up to %d %s", s.To, s.Currency)
	default:
		return ""
	}
}
