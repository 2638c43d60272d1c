// Package webclient is the HTTP client shared by the JSON sources. It always
// sends the configured User-Agent and decodes compressed bodies itself.
package webclient

import (
	"compress/gzip"
	"compress/zlib"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"go.uber.org/zap"

	"github.com/spigell/job-aggregator/internal/jobs"
)

const (
	DefaultUserAgent = "spigell/job-aggregator (+https://github.com/spigell/job-aggregator)"

	contentType     = "application/json"
	contentEncoding = "gzip, deflate, br"
	maxBodySize     = 16 << 20
	redacted        = "xxxxx"
)

// secretParams are query parameters that never leave the client unredacted.
var secretParams = []string{"app_id", "app_key", "api_key", "apikey", "key", "token", "access_token"}

// HTTPError carries status and body for non-2xx responses.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error: %s %s status=%d body=%s", e.Method, e.URL, e.StatusCode, snippet(e.Body, 300))
}

func snippet(b []byte, max int) string {
	s := strings.TrimSpace(string(b))
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

type Client struct {
	HTTPClient *http.Client
	UserAgent  string
	logger     *zap.Logger
}

func New(userAgent string, logger *zap.Logger) *Client {
	if strings.TrimSpace(userAgent) == "" {
		userAgent = DefaultUserAgent
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		// Per-source deadlines come from the caller's context.
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		UserAgent:  userAgent,
		logger:     logger,
	}
}

// Get performs a GET request and returns the decoded body.
func (c *Client) Get(ctx context.Context, rawURL string, q url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	req = c.setHeaders(req)
	if q != nil {
		req.URL.RawQuery = q.Encode()
	}

	safeURL := Redact(req.URL)
	c.logger.Debug("make request", zap.String("url", safeURL))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			urlErr.URL = safeURL
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := decodeBody(resp)
	if err != nil {
		return nil, fmt.Errorf("decode %s body: %w", resp.Header.Get("Content-Encoding"), err)
	}

	data, err := io.ReadAll(io.LimitReader(body, maxBodySize))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{
			Method:     req.Method,
			URL:        safeURL,
			StatusCode: resp.StatusCode,
			Header:     resp.Header.Clone(),
			Body:       data,
		}
	}

	return data, nil
}

// GetJSON performs a GET request and unmarshals the body into target.
// Malformed JSON is reported as jobs.ErrSourceParse.
func (c *Client) GetJSON(ctx context.Context, rawURL string, q url.Values, target any) error {
	data, err := c.Get(ctx, rawURL, q)
	if err != nil {
		return err
	}

	if target == nil {
		return nil
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", jobs.ErrSourceParse, err)
	}

	return nil
}

func (c *Client) setHeaders(req *http.Request) *http.Request {
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", contentType)
	req.Header.Set("Accept-Encoding", contentEncoding)

	return req
}

func decodeBody(resp *http.Response) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		return gzip.NewReader(resp.Body)
	case "deflate":
		return zlib.NewReader(resp.Body)
	case "br":
		return brotli.NewReader(resp.Body), nil
	default:
		return resp.Body, nil
	}
}

// Redact renders u with credentials and secret query values masked.
func Redact(u *url.URL) string {
	if u == nil {
		return ""
	}

	out := *u
	q := out.Query()
	changed := false
	for _, name := range secretParams {
		if q.Has(name) {
			q.Set(name, redacted)
			changed = true
		}
	}
	if changed {
		out.RawQuery = q.Encode()
	}

	return out.Redacted()
}

// WithPage returns a copy of q with the page parameter set.
func WithPage(q url.Values, key string, page int) url.Values {
	out := make(url.Values, len(q)+1)
	for k, v := range q {
		out[k] = append([]string(nil), v...)
	}
	out.Set(key, strconv.Itoa(page))
	return out
}
