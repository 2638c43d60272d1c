package htmlboard

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/spigell/job-aggregator/internal/jobs"
)

var Naukri = Layout{
	Name:        "naukri",
	BaseURL:     "https://www.naukri.com",
	Card:        "article.jobTuple",
	Title:       "a.title",
	Company:     "a.subTitle",
	Location:    "li.location",
	Experience:  "li.experience",
	Salary:      "li.salary",
	Posted:      "span.postedDate",
	Description: "div.job-description",
	PageURL: func(base string, q jobs.SearchQuery, page int) string {
		path := slug(q.Keywords) + "-jobs"
		if q.Location != "" {
			path += "-in-" + slug(q.Location)
		}
		v := url.Values{"k": {q.Keywords}}
		if q.Location != "" {
			v.Set("l", q.Location)
		}
		if page > 0 {
			v.Set("pageNo", strconv.Itoa(page+1))
		}
		return base + "/" + path + "?" + v.Encode()
	},
}

var Indeed = Layout{
	Name:        "indeed",
	BaseURL:     "https://in.indeed.com",
	Card:        "div.job_seen_beacon",
	Title:       "h2.jobTitle",
	Link:        "h2.jobTitle a",
	Company:     "span.companyName",
	Location:    "div.companyLocation",
	Salary:      "span.salaryText",
	JobType:     "div.metadata.jobType",
	Posted:      "span.date",
	Description: "div.summary",
	PageURL: func(base string, q jobs.SearchQuery, page int) string {
		v := url.Values{"q": {q.Keywords}}
		if q.Location != "" {
			v.Set("l", q.Location)
		}
		if page > 0 {
			v.Set("start", strconv.Itoa(page*10))
		}
		return base + "/jobs?" + v.Encode()
	},
}

var LinkedIn = Layout{
	Name:       "linkedin",
	BaseURL:    "https://www.linkedin.com",
	Card:       "div.base-card",
	Title:      "h3.base-search-card__title",
	Link:       "a.base-card__full-link",
	Company:    "h4.base-search-card__subtitle",
	Location:   "span.job-search-card__location",
	Salary:     "span.job-search-card__salary-info",
	Posted:     "time",
	PostedAttr: "datetime",
	PageURL: func(base string, q jobs.SearchQuery, page int) string {
		v := url.Values{"keywords": {q.Keywords}}
		if q.Location != "" {
			v.Set("location", q.Location)
		}
		if page > 0 {
			v.Set("start", strconv.Itoa(page*25))
		}
		return base + "/jobs/search/?" + v.Encode()
	},
}

var Monster = Layout{
	Name:        "monster",
	BaseURL:     "https://www.monster.com",
	Card:        "section.card-content",
	Title:       "h2.title",
	Link:        "h2.title a",
	Company:     "div.company",
	Location:    "div.location",
	Posted:      "div.meta time, div.meta",
	Description: "div.summary",
	PageURL: func(base string, q jobs.SearchQuery, page int) string {
		v := url.Values{"q": {q.Keywords}}
		if q.Location != "" {
			v.Set("where", q.Location)
		}
		if page > 0 {
			v.Set("page", strconv.Itoa(page+1))
		}
		return base + "/jobs/search/?" + v.Encode()
	},
}

// Layouts lists the built-in portals in their default order.
func Layouts() []Layout {
	return []Layout{Naukri, Indeed, LinkedIn, Monster}
}

func slug(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r > 127)
	})
	return strings.Join(fields, "-")
}
