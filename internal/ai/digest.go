package ai

import (
	"context"

	"github.com/spigell/job-aggregator/internal/jobs"
)

// DigestRequest is the input for summarizing new listings of one alert.
type DigestRequest struct {
	Keywords string
	Location string
	JobType  jobs.JobType
	Listings []jobs.JobListing
}

type Digest struct {
	Subject string
	Body    string
	Raw     string
}

type DigestWriter interface {
	WriteDigest(ctx context.Context, req DigestRequest) (*Digest, error)
}
