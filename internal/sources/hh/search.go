package hh

import (
	"context"
	"fmt"
	"net/url"
	"reflect"
	"strconv"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/job-aggregator/internal/jobs"
	"github.com/spigell/job-aggregator/internal/utils"
	"github.com/spigell/job-aggregator/internal/webclient"
)

type SearchParams struct {
	Text string `yaml:"text"`
	// hhparam is custom tag for reflect. Please see below.
	Areas   []string `hhparam:"area"`
	OrderBy string   `yaml:"order_by"`
	PerPage int      `yaml:"per_page"`
	Period  uint     `yaml:"period"`
}

type ItemResponse struct {
	Items   []Item
	Found   int
	Pages   int
	Page    int
	PerPage int `json:"per_page"`
}

type Item interface{}

// GetItems requests the search endpoint page by page until limit items are
// collected, pages run out or the page budget is spent.
func (c *Client) GetItems(ctx context.Context, endpoint string, q url.Values, limit int) ([]Item, error) {
	var items []Item

	for page := 0; page < c.cfg.MaxPages; page++ {
		if page > 0 {
			c.logger.Debug("additional request needed", zap.Int("page", page+1))
			if err := utils.WaitFor(ctx, utils.Jitter(c.cfg.PageDelay, c.cfg.PageJitter)); err != nil {
				return items, err
			}
		}

		var response ItemResponse
		if err := c.web.GetJSON(ctx, endpoint, webclient.WithPage(q, "page", page), &response); err != nil {
			return items, err
		}

		c.logger.Debug("got response from hh.ru",
			zap.Int("pages", response.Pages),
			zap.Int("found", response.Found),
			zap.Int("items", len(response.Items)),
		)

		items = append(items, response.Items...)

		if limit > 0 && len(items) >= limit {
			return items[:limit], nil
		}
		if response.Page >= response.Pages-1 {
			break
		}
	}

	return items, nil
}

func (c *Client) search(ctx context.Context, params *SearchParams, limit int) ([]*Vacancy, error) {
	items, fetchErr := c.GetItems(ctx, c.cfg.BaseURL+SearchPath, buildParams(params), limit)

	var vacancies []*Vacancy
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &vacancies,
		TagName: "json",
	})
	if err != nil {
		return nil, err
	}

	if err := decoder.Decode(items); err != nil {
		return nil, fmt.Errorf("%w: decode vacancies: %v", jobs.ErrSourceParse, err)
	}

	return vacancies, fetchErr
}

func buildParams(params *SearchParams) url.Values {
	q := url.Values{}
	fields := reflect.VisibleFields(reflect.TypeOf(*params))
	for _, field := range fields {
		// Our custom tag is using here.
		key := field.Tag.Get("hhparam")
		if key == "" {
			// Failover to default tag if our tag do not exist.
			key = field.Tag.Get("yaml")
		}

		value := reflect.ValueOf(params).Elem().Field(field.Index[0])
		switch v := value.Interface().(type) {
		case []string:
			for _, s := range v {
				q.Add(key, s)
			}
		case []int:
			for _, n := range v {
				q.Add(key, strconv.Itoa(n))
			}
		default:
			s := fmt.Sprintf("%v", v)
			if s != "" && s != "0" {
				q.Set(key, s)
			}
		}
	}

	return q
}
