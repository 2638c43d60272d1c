package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/spigell/job-aggregator/internal/aggregator"
	"github.com/spigell/job-aggregator/internal/jobs"
)

var errQueryRequired = errors.New("Query parameter required")

type SearchResponse struct {
	Success        bool                         `json:"success"`
	JobsByPortal   map[string][]jobs.JobListing `json:"jobs_by_portal"`
	TotalCount     int                          `json:"total_count"`
	Query          string                       `json:"query"`
	Location       string                       `json:"location"`
	FailedSources  []aggregator.Failure         `json:"failed_sources"`
	SyntheticCount int                          `json:"synthetic_count"`
	Timestamp      string                       `json:"timestamp"`
}

// NewSearchResponse renders a result the way the search endpoint returns it.
func NewSearchResponse(res *aggregator.Result) SearchResponse {
	failed := res.Failures
	if failed == nil {
		failed = []aggregator.Failure{}
	}

	finished := res.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}

	return SearchResponse{
		Success:        true,
		JobsByPortal:   res.JobsByPortal(),
		TotalCount:     res.TotalCount(),
		Query:          res.Query.Keywords,
		Location:       res.Query.Location,
		FailedSources:  failed,
		SyntheticCount: res.SyntheticCount(),
		Timestamp:      finished.UTC().Format(time.RFC3339),
	}
}

func (s *Server) search(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		errorResponse(c, http.StatusBadRequest, errQueryRequired)
		return
	}

	includeStale := false
	if raw := strings.TrimSpace(c.Query("include_stale")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			errorResponse(c, http.StatusBadRequest, errors.New("include_stale must be a boolean"))
			return
		}
		includeStale = v
	}

	jobType, err := jobs.ParseJobType(c.Query("job_type"))
	if err != nil {
		errorResponse(c, http.StatusBadRequest, err)
		return
	}

	res, err := s.searcher.Search(c.Request.Context(), aggregator.Request{
		Query:        jobs.SearchQuery{Keywords: q, Location: c.Query("location")},
		IncludeStale: includeStale,
		JobType:      jobType,
		Experience:   c.Query("experience"),
	})
	if err != nil {
		if errors.Is(err, jobs.ErrInvalidQuery) {
			errorResponse(c, http.StatusBadRequest, err)
			return
		}
		s.logger.Error("search failed", zap.String("query", q), zap.Error(err))
		errorResponse(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, NewSearchResponse(res))
}
