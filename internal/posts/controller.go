package posts

import (
	"context"
	"sync"

	"github.com/ikolcov/cmsblog/internal/models"
	"github.com/pkg/errors"
)

var ErrLoadInProgress = errors.New("a page load is already in progress")

// PageFetcher retrieves the raw search response behind a next_page cursor.
// The cursor is passed through untouched.
type PageFetcher interface {
	FetchPage(ctx context.Context, pageURL string) (models.RawPaginatedResponse, error)
}

// Controller owns an accumulated PostPagination and grows it one page at a
// time. It is either idle or loading; while loading, further LoadMore calls
// return the current state without fetching.
type Controller struct {
	fetcher PageFetcher

	mutex      sync.Mutex
	pagination models.PostPagination
	loading    bool
}

func NewController(fetcher PageFetcher, initial models.PostPagination) *Controller {
	return &Controller{
		fetcher:    fetcher,
		pagination: initial.Clone(),
	}
}

// State returns a copy of the accumulated pagination.
func (c *Controller) State() models.PostPagination {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.pagination.Clone()
}

func (c *Controller) Loading() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.loading
}

// LoadMore fetches the page behind the current cursor and appends its posts.
// It is a no-op when there is no cursor or a load is already in flight. On
// failure the state is left exactly as it was and the error is returned.
func (c *Controller) LoadMore(ctx context.Context) (models.PostPagination, error) {
	state, _, err := c.loadMore(ctx)
	return state, err
}

func (c *Controller) loadMore(ctx context.Context) (models.PostPagination, bool, error) {
	c.mutex.Lock()
	if c.loading || c.pagination.NextPage == nil {
		state := c.pagination.Clone()
		c.mutex.Unlock()
		return state, false, nil
	}
	c.loading = true
	next := *c.pagination.NextPage
	c.mutex.Unlock()

	incoming, err := c.fetch(ctx, next)

	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.loading = false
	if err != nil {
		return c.pagination.Clone(), false, err
	}

	results := make([]models.Post, 0, len(c.pagination.Results)+len(incoming.Results))
	results = append(results, c.pagination.Results...)
	results = append(results, incoming.Results...)
	c.pagination = models.PostPagination{
		NextPage: incoming.NextPage,
		Results:  results,
	}
	return c.pagination.Clone(), true, nil
}

func (c *Controller) fetch(ctx context.Context, pageURL string) (models.PostPagination, error) {
	raw, err := c.fetcher.FetchPage(ctx, pageURL)
	if err != nil {
		return models.PostPagination{}, errors.Wrapf(err, "can't load page %s", pageURL)
	}
	incoming, err := Normalize(raw)
	if err != nil {
		return models.PostPagination{}, errors.Wrapf(err, "can't normalize page %s", pageURL)
	}
	return incoming, nil
}

// LoadAll keeps loading until the cursor runs out. It fails with
// ErrLoadInProgress if another caller is already loading, and refuses to
// follow a cursor it has already followed.
func (c *Controller) LoadAll(ctx context.Context) (models.PostPagination, error) {
	followed := make(map[string]bool)
	for {
		before := c.State()
		if !before.HasNext() {
			return before, nil
		}
		if followed[*before.NextPage] {
			return before, errors.Errorf("cursor %s was already followed", *before.NextPage)
		}
		followed[*before.NextPage] = true

		state, loaded, err := c.loadMore(ctx)
		if err != nil {
			return state, err
		}
		if !loaded && state.HasNext() {
			return state, ErrLoadInProgress
		}
	}
}
