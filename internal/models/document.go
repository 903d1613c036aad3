package models

import "time"

type DocumentID string

// PostData is the custom-type payload of a "post" document.
type PostData struct {
	Title    string           `json:"title" bson:"title"`
	Subtitle string           `json:"subtitle" bson:"subtitle"`
	Author   string           `json:"author" bson:"author"`
	Banner   Image            `json:"banner" bson:"banner"`
	Content  []ContentSection `json:"content" bson:"content"`
}

type Document struct {
	ID                   DocumentID `json:"id" bson:"_id"`
	UID                  string     `json:"uid" bson:"uid"`
	Type                 string     `json:"type" bson:"type"`
	Tags                 []string   `json:"tags" bson:"tags"`
	Lang                 string     `json:"lang" bson:"lang"`
	FirstPublicationDate *time.Time `json:"first_publication_date" bson:"first_publication_date"`
	LastPublicationDate  *time.Time `json:"last_publication_date" bson:"last_publication_date"`
	Data                 PostData   `json:"data" bson:"data"`
}

type DocumentsPage struct {
	Documents []Document
	Page      int
	PageSize  int
	Total     int
}

func (p DocumentsPage) TotalPages() int {
	if p.PageSize <= 0 {
		return 0
	}
	return (p.Total + p.PageSize - 1) / p.PageSize
}

func (p DocumentsPage) HasNext() bool {
	return p.Page < p.TotalPages()
}
