package site

import (
	"context"

	"github.com/gorilla/feeds"
	"github.com/pkg/errors"
)

const feedSize = 10

// Feed returns the RSS document with the latest posts, minified. It is
// revalidated like the home props.
func (s *Site) Feed(ctx context.Context) ([]byte, error) {
	v, err := s.cache.get(ctx, "feed", func(ctx context.Context) (interface{}, error) {
		return s.buildFeed(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (s *Site) buildFeed(ctx context.Context) ([]byte, error) {
	home, err := s.HomeProps(ctx)
	if err != nil {
		return nil, err
	}
	latest := home.Pagination
	for step := 0; step < feedSize && len(latest.Results) < feedSize && latest.HasNext(); step++ {
		if latest, _, err = s.Expand(ctx, latest, 1); err != nil {
			return nil, errors.Wrap(err, "can't load posts for the feed")
		}
	}
	results := latest.Results
	if len(results) > feedSize {
		results = results[:feedSize]
	}

	feed := &feeds.Feed{
		Title: s.config.Title,
		Link:  &feeds.Link{Href: s.config.BaseURL + "/"},
		Id:    s.config.BaseURL + "/",
	}
	for _, post := range results {
		item := &feeds.Item{
			Title:       post.Title,
			Link:        &feeds.Link{Href: s.postURL(post.UID)},
			Id:          s.postURL(post.UID),
			Description: post.Subtitle,
			Author:      &feeds.Author{Name: post.Author},
		}
		if post.FirstPublicationDate != nil {
			item.Created = *post.FirstPublicationDate
			if feed.Created.Before(item.Created) {
				feed.Created = item.Created
			}
		}
		feed.Items = append(feed.Items, item)
	}

	rss, err := feed.ToRss()
	if err != nil {
		return nil, errors.Wrap(err, "can't build feed")
	}
	b, err := s.minifier.Bytes("text/xml", []byte(rss))
	if err != nil {
		return nil, errors.Wrap(err, "can't minify feed")
	}
	return b, nil
}
