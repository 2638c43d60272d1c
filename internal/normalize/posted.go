package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const day = 24 * time.Hour

var (
	relativeRe = regexp.MustCompile(`(\d+|an?)\s*\+?\s*(second|sec|minute|min|hour|hr|day|week|wk|month|mo)s?\b`)

	absoluteLayouts = []string{
		time.RFC3339,
		"2006-01-02T15:04:05-0700",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}

	units = map[string]time.Duration{
		"second": time.Second,
		"sec":    time.Second,
		"minute": time.Minute,
		"min":    time.Minute,
		"hour":   time.Hour,
		"hr":     time.Hour,
		"day":    day,
		"week":   7 * day,
		"wk":     7 * day,
		"month":  30 * day,
		"mo":     30 * day,
	}
)

// ParsePosted converts a portal's posting date into an absolute time.
// Text that cannot be understood is treated as posted now.
func ParsePosted(text string, now time.Time) time.Time {
	v := strings.ToLower(strings.TrimSpace(text))
	if v == "" {
		return now
	}

	for _, layout := range absoluteLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(text)); err == nil {
			return t
		}
	}

	switch {
	case strings.Contains(v, "just now"), strings.Contains(v, "today"),
		strings.Contains(v, "few"), strings.Contains(v, "moments"):
		return now
	case strings.Contains(v, "yesterday"):
		return now.Add(-day)
	}

	m := relativeRe.FindStringSubmatch(v)
	if m == nil {
		return now
	}

	n := 1
	if m[1] != "a" && m[1] != "an" {
		parsed, err := strconv.Atoi(m[1])
		if err != nil {
			return now
		}
		n = parsed
	}

	return now.Add(-time.Duration(n) * units[m[2]])
}
