// Package posts turns raw CMS responses into the blog's post model and
// accumulates paginated post lists.
package posts

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ikolcov/cmsblog/internal/models"
	"github.com/ikolcov/cmsblog/internal/richtext"
)

// Prismic publishes dates without a colon in the zone offset.
var publicationLayouts = []string{
	"2006-01-02T15:04:05-0700",
	time.RFC3339,
}

// Normalize projects a raw search response onto PostPagination, keeping only
// uid, first_publication_date, title, subtitle and author, in input order.
// A missing field is reported as *models.MissingFieldError and a field of
// the wrong shape as *models.InvalidFieldError; nothing is defaulted.
func Normalize(raw models.RawPaginatedResponse) (models.PostPagination, error) {
	nextRaw, ok := raw["next_page"]
	if !ok {
		return models.PostPagination{}, &models.MissingFieldError{Field: "next_page"}
	}
	next, err := optionalString(nextRaw, "next_page")
	if err != nil {
		return models.PostPagination{}, err
	}

	resultsRaw, ok := raw["results"]
	if !ok {
		return models.PostPagination{}, &models.MissingFieldError{Field: "results"}
	}
	items, err := array(resultsRaw, "results")
	if err != nil {
		return models.PostPagination{}, err
	}

	pagination := models.PostPagination{
		NextPage: next,
		Results:  make([]models.Post, 0, len(items)),
	}
	seen := make(map[string]int, len(items))
	for i, item := range items {
		path := fmt.Sprintf("results[%d]", i)
		doc, err := object(item, path)
		if err != nil {
			return models.PostPagination{}, err
		}
		post, err := normalizePost(doc, path)
		if err != nil {
			return models.PostPagination{}, err
		}
		if j, dup := seen[post.UID]; dup {
			return models.PostPagination{}, &models.InvalidFieldError{
				Field:  path + ".uid",
				Reason: fmt.Sprintf("duplicate of results[%d]", j),
			}
		}
		seen[post.UID] = i
		pagination.Results = append(pagination.Results, post)
	}
	return pagination, nil
}

// NormalizePost projects a single raw document onto Post.
func NormalizePost(raw models.RawDocument) (models.Post, error) {
	return normalizePost(raw, "")
}

func normalizePost(doc map[string]json.RawMessage, path string) (models.Post, error) {
	uid, err := requiredUID(doc, path)
	if err != nil {
		return models.Post{}, err
	}
	published, err := publicationDate(doc, "first_publication_date", path)
	if err != nil {
		return models.Post{}, err
	}
	data, err := requiredObject(doc, "data", path)
	if err != nil {
		return models.Post{}, err
	}
	dataPath := join(path, "data")

	post := models.Post{
		UID:                  uid,
		FirstPublicationDate: published,
	}
	if post.Title, err = requiredString(data, "title", dataPath); err != nil {
		return models.Post{}, err
	}
	if post.Subtitle, err = requiredString(data, "subtitle", dataPath); err != nil {
		return models.Post{}, err
	}
	if post.Author, err = requiredString(data, "author", dataPath); err != nil {
		return models.Post{}, err
	}
	return post, nil
}

// NormalizeDetail projects a raw document onto PostDetail for the single
// post view. The banner is optional; every other field is required.
func NormalizeDetail(raw models.RawDocument) (models.PostDetail, error) {
	uid, err := requiredUID(raw, "")
	if err != nil {
		return models.PostDetail{}, err
	}
	published, err := publicationDate(raw, "first_publication_date", "")
	if err != nil {
		return models.PostDetail{}, err
	}
	data, err := requiredObject(raw, "data", "")
	if err != nil {
		return models.PostDetail{}, err
	}

	detail := models.PostDetail{
		UID:                  uid,
		FirstPublicationDate: published,
	}
	if detail.Title, err = requiredString(data, "title", "data"); err != nil {
		return models.PostDetail{}, err
	}
	if detail.Author, err = requiredString(data, "author", "data"); err != nil {
		return models.PostDetail{}, err
	}
	if detail.Banner, err = banner(data); err != nil {
		return models.PostDetail{}, err
	}

	contentRaw, ok := data["content"]
	if !ok {
		return models.PostDetail{}, &models.MissingFieldError{Field: "data.content"}
	}
	sections, err := array(contentRaw, "data.content")
	if err != nil {
		return models.PostDetail{}, err
	}
	detail.Content = make([]models.ContentSection, 0, len(sections))
	for i, item := range sections {
		path := fmt.Sprintf("data.content[%d]", i)
		section, err := object(item, path)
		if err != nil {
			return models.PostDetail{}, err
		}
		heading, err := requiredString(section, "heading", path)
		if err != nil {
			return models.PostDetail{}, err
		}
		body, err := richBody(section, "body", path)
		if err != nil {
			return models.PostDetail{}, err
		}
		detail.Content = append(detail.Content, models.ContentSection{Heading: heading, Body: body})
	}
	return detail, nil
}

func banner(data map[string]json.RawMessage) (models.Image, error) {
	raw, ok := data["banner"]
	if !ok || isNull(raw) {
		return models.Image{}, nil
	}
	var image struct {
		URL string `json:"url"`
		Alt string `json:"alt"`
	}
	if err := json.Unmarshal(raw, &image); err != nil {
		return models.Image{}, &models.InvalidFieldError{Field: "data.banner", Reason: err.Error()}
	}
	return models.Image{URL: image.URL, Alt: image.Alt}, nil
}

func richBody(obj map[string]json.RawMessage, key, path string) (richtext.Body, error) {
	field := join(path, key)
	raw, ok := obj[key]
	if !ok {
		return nil, &models.MissingFieldError{Field: field}
	}
	if isNull(raw) {
		return nil, &models.InvalidFieldError{Field: field, Reason: "expected an array, got null"}
	}
	var body richtext.Body
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, &models.InvalidFieldError{Field: field, Reason: err.Error()}
	}
	return body, nil
}

func requiredUID(obj map[string]json.RawMessage, path string) (string, error) {
	uid, err := requiredString(obj, "uid", path)
	if err != nil {
		return "", err
	}
	if uid == "" {
		return "", &models.InvalidFieldError{Field: join(path, "uid"), Reason: "empty"}
	}
	return uid, nil
}

func requiredString(obj map[string]json.RawMessage, key, path string) (string, error) {
	field := join(path, key)
	raw, ok := obj[key]
	if !ok {
		return "", &models.MissingFieldError{Field: field}
	}
	value, err := optionalString(raw, field)
	if err != nil {
		return "", err
	}
	if value == nil {
		return "", &models.InvalidFieldError{Field: field, Reason: "expected a string, got null"}
	}
	return *value, nil
}

func optionalString(raw json.RawMessage, field string) (*string, error) {
	var value *string
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, &models.InvalidFieldError{Field: field, Reason: "expected a string"}
	}
	return value, nil
}

func publicationDate(obj map[string]json.RawMessage, key, path string) (*time.Time, error) {
	field := join(path, key)
	raw, ok := obj[key]
	if !ok {
		return nil, &models.MissingFieldError{Field: field}
	}
	value, err := optionalString(raw, field)
	if err != nil || value == nil {
		return nil, err
	}
	for _, layout := range publicationLayouts {
		if t, err := time.Parse(layout, *value); err == nil {
			return &t, nil
		}
	}
	return nil, &models.InvalidFieldError{Field: field, Reason: fmt.Sprintf("unrecognized timestamp %q", *value)}
}

func requiredObject(obj map[string]json.RawMessage, key, path string) (map[string]json.RawMessage, error) {
	field := join(path, key)
	raw, ok := obj[key]
	if !ok {
		return nil, &models.MissingFieldError{Field: field}
	}
	return object(raw, field)
}

func object(raw json.RawMessage, field string) (map[string]json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, &models.InvalidFieldError{Field: field, Reason: "expected an object"}
	}
	return obj, nil
}

func array(raw json.RawMessage, field string) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || items == nil {
		return nil, &models.InvalidFieldError{Field: field, Reason: "expected an array"}
	}
	return items, nil
}

func isNull(raw json.RawMessage) bool {
	return string(raw) == "null"
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
