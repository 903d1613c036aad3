// Package content loads blog posts from Markdown files with TOML front
// matter into the local content store.
package content

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ikolcov/cmsblog/internal/models"
	"github.com/ikolcov/cmsblog/internal/richtext"
	"github.com/ikolcov/cmsblog/internal/storage"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const PostType = "post"

var delimiter = []byte("+++")

type frontMatter struct {
	UID       string    `toml:"uid"`
	Title     string    `toml:"title"`
	Subtitle  string    `toml:"subtitle"`
	Author    string    `toml:"author"`
	Banner    string    `toml:"banner"`
	Published time.Time `toml:"published"`
	Tags      []string  `toml:"tags"`
	Lang      string    `toml:"lang"`
}

// Parse reads one post. The file starts with a +++ delimited TOML block; the
// uid defaults to the file name. Second-level headings split the body into
// content sections.
func Parse(name string, src []byte) (models.Document, error) {
	if bytes.Count(src, delimiter) < 2 {
		return models.Document{}, errors.Errorf("%s: missing +++ front matter", name)
	}
	i := bytes.Index(src, delimiter)
	j := bytes.Index(src[i+3:], delimiter) + i + 3

	var fm frontMatter
	if _, err := toml.Decode(string(src[i+3:j]), &fm); err != nil {
		return models.Document{}, errors.Wrapf(err, "%s: bad front matter", name)
	}
	if fm.UID == "" {
		fm.UID = strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	}
	if fm.Title == "" {
		return models.Document{}, errors.Errorf("%s: title is required", name)
	}
	if fm.Lang == "" {
		fm.Lang = "pt-br"
	}

	body, err := richtext.FromMarkdown(src[j+3:])
	if err != nil {
		return models.Document{}, errors.Wrapf(err, "%s: bad body", name)
	}

	doc := models.Document{
		UID:  fm.UID,
		Type: PostType,
		Tags: fm.Tags,
		Lang: fm.Lang,
		Data: models.PostData{
			Title:    fm.Title,
			Subtitle: fm.Subtitle,
			Author:   fm.Author,
			Banner:   models.Image{URL: fm.Banner, Alt: fm.Title},
			Content:  sections(body),
		},
	}
	if !fm.Published.IsZero() {
		published := fm.Published.UTC()
		doc.FirstPublicationDate = &published
		doc.LastPublicationDate = &published
	}
	return doc, nil
}

func sections(body richtext.Body) []models.ContentSection {
	out := []models.ContentSection{}
	for _, n := range body {
		if n.Type == richtext.Heading1 || n.Type == richtext.Heading2 {
			out = append(out, models.ContentSection{Heading: n.Text, Body: richtext.Body{}})
			continue
		}
		if len(out) == 0 {
			out = append(out, models.ContentSection{Body: richtext.Body{}})
		}
		last := &out[len(out)-1]
		last.Body = append(last.Body, n)
	}
	return out
}

// LoadDir parses every *.md file in dir. Files that fail to parse are
// logged and skipped.
func LoadDir(dir string) ([]models.Document, error) {
	names, err := filepath.Glob(filepath.Join(dir, "*.md"))
	if err != nil {
		return nil, errors.Wrapf(err, "can't list %s", dir)
	}

	docs := make([]models.Document, 0, len(names))
	for _, name := range names {
		src, err := os.ReadFile(name)
		if err != nil {
			return nil, errors.Wrapf(err, "can't read %s", name)
		}
		doc, err := Parse(name, src)
		if err != nil {
			log.Warn().Err(err).Str("file", name).Msg("skipping post")
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Import saves every post in dir into s and deletes the stored posts that no
// longer have a file, so s mirrors dir. It returns how many posts were saved.
func Import(ctx context.Context, s storage.Storage, dir string) (int, error) {
	docs, err := LoadDir(dir)
	if err != nil {
		return 0, err
	}
	present := make(map[string]bool, len(docs))
	for _, doc := range docs {
		if _, err := s.SaveDocument(ctx, doc); err != nil {
			return 0, errors.Wrapf(err, "can't save %s", doc.UID)
		}
		present[doc.UID] = true
	}

	removed, err := prune(ctx, s, present)
	if err != nil {
		return len(docs), err
	}
	log.Info().
		Str("dir", dir).
		Int("posts", len(docs)).
		Int("removed", removed).
		Msg("content imported")
	return len(docs), nil
}

const pruneBatch = 100

func prune(ctx context.Context, s storage.Storage, keep map[string]bool) (int, error) {
	var stale []string
	for page := 1; ; page++ {
		docsPage, err := s.GetDocuments(ctx, PostType, page, pruneBatch)
		if err != nil {
			return 0, errors.Wrap(err, "can't list stored posts")
		}
		for _, doc := range docsPage.Documents {
			if !keep[doc.UID] {
				stale = append(stale, doc.UID)
			}
		}
		if !docsPage.HasNext() {
			break
		}
	}

	for _, uid := range stale {
		if err := s.DeleteDocument(ctx, PostType, uid); err != nil && !errors.Is(err, models.ErrNotFound) {
			return 0, errors.Wrapf(err, "can't delete %s", uid)
		}
	}
	return len(stale), nil
}
