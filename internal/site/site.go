// Package site builds the blog from CMS content: the props behind every page,
// their HTML, the RSS feed, the HTTP server and the static generator.
package site

import (
	"context"
	"html/template"
	"strings"
	"time"

	"github.com/ikolcov/cmsblog/internal/cms"
	"github.com/ikolcov/cmsblog/internal/dates"
	"github.com/ikolcov/cmsblog/internal/models"
	"github.com/ikolcov/cmsblog/internal/posts"
	"github.com/ikolcov/cmsblog/internal/richtext"
	"github.com/pkg/errors"
	"github.com/tdewolff/minify/v2"
	mhtml "github.com/tdewolff/minify/v2/html"
	mxml "github.com/tdewolff/minify/v2/xml"
)

const postType = "post"

var postFields = []string{"post.title", "post.subtitle", "post.author"}

// CMS is the part of the content API the site reads from.
type CMS interface {
	posts.PageFetcher
	GetByType(ctx context.Context, kind string, q cms.Query) (models.RawPaginatedResponse, error)
	GetByUID(ctx context.Context, kind, uid string) (models.RawDocument, error)
}

type Config struct {
	Title   string
	BaseURL string
	Locale  string
	// Location is the time zone dates are shown in.
	Location *time.Location
	PageSize int
	// MaxPages caps the number of load-more pages; zero means no cap.
	MaxPages    int
	Revalidate  time.Duration
	Concurrency int
}

type HomeProps struct {
	Pagination models.PostPagination
}

type PostProps struct {
	Post           models.PostDetail
	ReadingMinutes int
}

type Site struct {
	cms      CMS
	config   Config
	dates    *dates.Formatter
	pages    *template.Template
	minifier *minify.M
	cache    *cache
	now      func() time.Time
}

func New(client CMS, config Config) (*Site, error) {
	if config.PageSize < 1 {
		config.PageSize = 1
	}
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	formatter := dates.New(config.Locale, config.Location)
	pages, err := parseTemplates(formatter)
	if err != nil {
		return nil, errors.Wrap(err, "can't parse templates")
	}

	m := minify.New()
	m.Add("text/html", &mhtml.Minifier{KeepDocumentTags: true})
	m.AddFunc("text/xml", mxml.Minify)

	s := &Site{
		cms:      client,
		config:   config,
		dates:    formatter,
		pages:    pages,
		minifier: m,
		now:      time.Now,
	}
	s.cache = newCache(config.Revalidate, func() time.Time { return s.now() })
	return s, nil
}

// HomeProps returns the first page of posts. It is kept for the revalidation
// period; a failed refresh keeps serving the previous props.
func (s *Site) HomeProps(ctx context.Context) (HomeProps, error) {
	v, err := s.cache.get(ctx, "home", func(ctx context.Context) (interface{}, error) {
		return s.loadHome(ctx)
	})
	if err != nil {
		return HomeProps{}, err
	}
	return HomeProps{Pagination: v.(HomeProps).Pagination.Clone()}, nil
}

func (s *Site) loadHome(ctx context.Context) (HomeProps, error) {
	raw, err := s.cms.GetByType(ctx, postType, cms.Query{
		Fetch:    postFields,
		PageSize: s.config.PageSize,
	})
	if err != nil {
		return HomeProps{}, errors.Wrap(err, "can't query posts")
	}
	pagination, err := posts.Normalize(raw)
	if err != nil {
		return HomeProps{}, errors.Wrap(err, "can't normalize posts")
	}
	return HomeProps{Pagination: pagination}, nil
}

// Expand applies up to steps load-more steps to initial and reports how many
// of them fetched a page. When a step fails the list accumulated so far is
// returned along with the error.
func (s *Site) Expand(ctx context.Context, initial models.PostPagination, steps int) (models.PostPagination, int, error) {
	controller := posts.NewController(s.cms, initial)
	state := controller.State()
	loaded := 0
	for loaded < steps && state.HasNext() {
		next, err := controller.LoadMore(ctx)
		if err != nil {
			return next, loaded, err
		}
		state = next
		loaded++
	}
	return state, loaded, nil
}

// PostPaths returns the uid of every post on every page.
func (s *Site) PostPaths(ctx context.Context) ([]string, error) {
	home, err := s.HomeProps(ctx)
	if err != nil {
		return nil, err
	}
	all, err := posts.NewController(s.cms, home.Pagination).LoadAll(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "can't list posts")
	}

	seen := make(map[string]bool, len(all.Results))
	uids := make([]string, 0, len(all.Results))
	for _, post := range all.Results {
		if seen[post.UID] {
			continue
		}
		seen[post.UID] = true
		uids = append(uids, post.UID)
	}
	return uids, nil
}

func (s *Site) PostProps(ctx context.Context, uid string) (PostProps, error) {
	raw, err := s.cms.GetByUID(ctx, postType, uid)
	if err != nil {
		return PostProps{}, errors.Wrapf(err, "can't get post %q", uid)
	}
	detail, err := posts.NormalizeDetail(raw)
	if err != nil {
		return PostProps{}, errors.Wrapf(err, "can't normalize post %q", uid)
	}
	return PostProps{Post: detail, ReadingMinutes: readingMinutes(detail)}, nil
}

func readingMinutes(post models.PostDetail) int {
	words := 0
	for _, section := range post.Content {
		words += richtext.WordCount(section.Heading)
		words += richtext.WordCount(richtext.AsText(section.Body))
	}
	return richtext.ReadingMinutes(words)
}

func (s *Site) postURL(uid string) string {
	return s.config.BaseURL + "/post/" + uid
}
