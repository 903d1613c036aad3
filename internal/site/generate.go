package site

import (
	"context"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ikolcov/cmsblog/internal/models"
	"github.com/ikolcov/cmsblog/internal/posts"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Generate writes the whole site under dir: index.html, more/{n}/index.html
// for every load-more step, post/{uid}/index.html for every post and
// feed.xml.
func (s *Site) Generate(ctx context.Context, dir string) error {
	home, err := s.HomeProps(ctx)
	if err != nil {
		return err
	}
	listings, err := s.writeListings(ctx, dir, home.Pagination)
	if err != nil {
		return err
	}

	uids, err := s.PostPaths(ctx)
	if err != nil {
		return err
	}
	for _, uid := range uids {
		if !validPathElement(uid) {
			return errors.Errorf("post uid %q can't be used as a path", uid)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Concurrency)
	for _, uid := range uids {
		uid := uid
		g.Go(func() error {
			props, err := s.PostProps(gctx, uid)
			if err != nil {
				return err
			}
			body, err := s.RenderPost(props)
			if err != nil {
				return err
			}
			return writeFile(filepath.Join(dir, "post", uid, "index.html"), body)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	feed, err := s.Feed(ctx)
	if err != nil {
		return err
	}
	if err := writeFile(filepath.Join(dir, "feed.xml"), feed); err != nil {
		return err
	}

	log.Info().
		Str("dir", dir).
		Int("listings", listings).
		Int("posts", len(uids)).
		Msg("site generated")
	return nil
}

// writeListings writes the home page and one page per load-more step and
// returns how many pages it wrote.
func (s *Site) writeListings(ctx context.Context, dir string, initial models.PostPagination) (int, error) {
	controller := posts.NewController(s.cms, initial)
	state := controller.State()
	followed := make(map[string]bool)

	for more := 0; ; more++ {
		if more > 0 {
			if followed[*state.NextPage] {
				return more, errors.Errorf("cursor %s was already followed", *state.NextPage)
			}
			followed[*state.NextPage] = true

			var err error
			if state, err = controller.LoadMore(ctx); err != nil {
				return more, err
			}
		}

		body, err := s.RenderHome(state, more, false)
		if err != nil {
			return more, err
		}
		path := filepath.Join(dir, "index.html")
		if more > 0 {
			path = filepath.Join(dir, "more", strconv.Itoa(more), "index.html")
		}
		if err := writeFile(path, body); err != nil {
			return more, err
		}

		if !state.HasNext() || !s.withinMaxPages(more+1) {
			return more + 1, nil
		}
	}
}

func validPathElement(uid string) bool {
	return uid != "" && uid != "." && uid != ".." && filepath.Base(uid) == uid
}

func writeFile(path string, body []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "can't create %s", filepath.Dir(path))
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return errors.Wrapf(err, "can't write %s", path)
	}
	return nil
}
