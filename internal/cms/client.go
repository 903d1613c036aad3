// Package cms is a client for Prismic-compatible content APIs.
package cms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ikolcov/cmsblog/internal/models"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const maxBodySize = 10 << 20

// Query narrows a GetByType search.
type Query struct {
	// Fetch restricts the returned data fields, e.g. "post.title".
	Fetch    []string
	PageSize int
	Page     int
}

type Option func(*Client)

func WithAccessToken(token string) Option {
	return func(c *Client) {
		c.accessToken = token
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithRef pins the content release instead of discovering the master ref.
func WithRef(ref string) Option {
	return func(c *Client) {
		c.ref = ref
	}
}

type Client struct {
	endpoint    string
	accessToken string
	httpClient  *http.Client

	mutex sync.Mutex
	ref   string
}

// New creates a client for an API endpoint such as
// https://repo.cdn.prismic.io/api/v2.
func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type apiInfo struct {
	Refs []struct {
		ID          string `json:"id"`
		Ref         string `json:"ref"`
		IsMasterRef bool   `json:"isMasterRef"`
	} `json:"refs"`
}

// Ref returns the master ref, asking the API once and remembering it.
func (c *Client) Ref(ctx context.Context) (string, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.ref != "" {
		return c.ref, nil
	}

	var info apiInfo
	if err := c.getJSON(ctx, c.withToken(c.endpoint, nil), &info); err != nil {
		return "", err
	}
	for _, ref := range info.Refs {
		if ref.IsMasterRef {
			c.ref = ref.Ref
			return c.ref, nil
		}
	}
	return "", errors.Errorf("api %s has no master ref", c.endpoint)
}

// GetByType searches documents of the given custom type.
func (c *Client) GetByType(ctx context.Context, kind string, q Query) (models.RawPaginatedResponse, error) {
	params := url.Values{}
	params.Add("q", fmt.Sprintf(`[[at(document.type, %q)]]`, kind))
	if len(q.Fetch) > 0 {
		params.Set("fetch", strings.Join(q.Fetch, ","))
	}
	if q.PageSize > 0 {
		params.Set("pageSize", strconv.Itoa(q.PageSize))
	}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}

	searchURL, err := c.searchURL(ctx, params)
	if err != nil {
		return nil, err
	}
	return c.FetchPage(ctx, searchURL)
}

// GetByUID returns the single document of the given type and uid, or
// models.ErrNotFound.
func (c *Client) GetByUID(ctx context.Context, kind, uid string) (models.RawDocument, error) {
	params := url.Values{}
	params.Add("q", fmt.Sprintf(`[[at(my.%s.uid, %q)]]`, kind, uid))
	params.Set("pageSize", "1")

	searchURL, err := c.searchURL(ctx, params)
	if err != nil {
		return nil, err
	}
	response, err := c.FetchPage(ctx, searchURL)
	if err != nil {
		return nil, err
	}

	var results []models.RawDocument
	if raw, ok := response["results"]; ok {
		if err := json.Unmarshal(raw, &results); err != nil {
			return nil, &models.ParseError{URL: searchURL, Err: err}
		}
	}
	if len(results) == 0 {
		return nil, errors.Wrapf(models.ErrNotFound, "%s %q", kind, uid)
	}
	return results[0], nil
}

// FetchPage requests a search URL, typically a next_page cursor, and returns
// the undecoded response. The URL is used as given.
func (c *Client) FetchPage(ctx context.Context, pageURL string) (models.RawPaginatedResponse, error) {
	var response models.RawPaginatedResponse
	if err := c.getJSON(ctx, pageURL, &response); err != nil {
		return nil, err
	}
	return response, nil
}

func (c *Client) searchURL(ctx context.Context, params url.Values) (string, error) {
	ref, err := c.Ref(ctx)
	if err != nil {
		return "", errors.Wrap(err, "can't resolve ref")
	}
	params.Set("ref", ref)
	return c.withToken(c.endpoint+"/documents/search", params), nil
}

func (c *Client) withToken(base string, params url.Values) string {
	if params == nil {
		params = url.Values{}
	}
	if c.accessToken != "" {
		params.Set("access_token", c.accessToken)
	}
	if len(params) == 0 {
		return base
	}
	return base + "?" + params.Encode()
}

func (c *Client) getJSON(ctx context.Context, target string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return &models.TransportError{URL: target, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	r, err := c.httpClient.Do(req)
	if err != nil {
		return &models.TransportError{URL: target, Err: err}
	}
	defer func() { _ = r.Body.Close() }()

	log.Debug().
		Str("url", target).
		Int("status", r.StatusCode).
		Dur("elapsed", time.Since(started)).
		Msg("cms request")

	if r.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(r.Body, maxBodySize))
		return &models.TransportError{URL: target, StatusCode: r.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return &models.TransportError{URL: target, Err: err}
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &models.ParseError{URL: target, Err: err}
	}
	return nil
}
