package models

import (
	"time"

	"github.com/ikolcov/cmsblog/internal/richtext"
)

type Post struct {
	UID                  string     `json:"uid"`
	FirstPublicationDate *time.Time `json:"first_publication_date"`
	Title                string     `json:"title"`
	Subtitle             string     `json:"subtitle"`
	Author               string     `json:"author"`
}

// PostPagination is the accumulated post list. A nil NextPage means there
// are no further pages.
type PostPagination struct {
	NextPage *string `json:"next_page"`
	Results  []Post  `json:"results"`
}

// HasNext reports whether another page can be loaded.
func (p PostPagination) HasNext() bool {
	return p.NextPage != nil
}

// Clone returns a copy that shares no memory with p.
func (p PostPagination) Clone() PostPagination {
	clone := PostPagination{
		Results: make([]Post, len(p.Results)),
	}
	if p.NextPage != nil {
		next := *p.NextPage
		clone.NextPage = &next
	}
	copy(clone.Results, p.Results)
	for i, post := range clone.Results {
		if post.FirstPublicationDate != nil {
			published := *post.FirstPublicationDate
			clone.Results[i].FirstPublicationDate = &published
		}
	}
	return clone
}

type Image struct {
	URL string `json:"url,omitempty" bson:"url,omitempty"`
	Alt string `json:"alt,omitempty" bson:"alt,omitempty"`
}

type ContentSection struct {
	Heading string        `json:"heading" bson:"heading"`
	Body    richtext.Body `json:"body" bson:"body"`
}

type PostDetail struct {
	UID                  string
	FirstPublicationDate *time.Time
	Title                string
	Author               string
	Banner               Image
	Content              []ContentSection
}
