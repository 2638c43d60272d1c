package alerts

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/job-aggregator/internal/ai"
	"github.com/spigell/job-aggregator/internal/jobs"
)

// Composer turns new listings into a notification. With an AI writer set it
// asks for a digest first and falls back to plain text on failure.
type Composer struct {
	writer ai.DigestWriter
	logger *zap.Logger
}

func NewComposer(writer ai.DigestWriter, logger *zap.Logger) *Composer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composer{writer: writer, logger: logger}
}

func (c *Composer) Compose(ctx context.Context, a *JobAlert, listings []jobs.JobListing) Notification {
	note := Notification{
		AlertID:  a.ID,
		Owner:    a.Owner,
		Keywords: a.Keywords,
		Location: a.Location,
		Listings: listings,
	}

	if c != nil && c.writer != nil {
		digest, err := c.writer.WriteDigest(ctx, ai.DigestRequest{
			Keywords: a.Keywords,
			Location: a.Location,
			JobType:  a.JobType,
			Listings: listings,
		})
		if err == nil {
			note.Subject = digest.Subject
			note.Body = digest.Body
			if note.Subject == "" {
				note.Subject = subject(a, len(listings))
			}
			return note
		}
		c.logger.Warn("ai digest failed, using plain text", zap.String("alert_id", a.ID), zap.Error(err))
	}

	note.Subject = subject(a, len(listings))
	note.Body = PlainDigest(listings)
	return note
}

func subject(a *JobAlert, n int) string {
	s := fmt.Sprintf("%d new %s for %q", n, plural(n, "job"), a.Keywords)
	if a.Location != "" {
		s += " in " + a.Location
	}
	return s
}

// PlainDigest lists one listing per line.
func PlainDigest(listings []jobs.JobListing) string {
	var b strings.Builder
	for _, l := range listings {
		fmt.Fprintf(&b, "- %s / %s / %s / %s\n", l.Title, l.Company, l.Location, l.URL)
	}
	return strings.TrimRight(b.String(), "\n")
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
