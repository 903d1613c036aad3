package storage

import (
	"context"

	"github.com/ikolcov/cmsblog/internal/models"
)

// Storage keeps the documents served by the local content API. Documents are
// unique per (type, uid); lists are ordered newest first.
type Storage interface {
	SaveDocument(ctx context.Context, doc models.Document) (models.DocumentID, error)
	GetDocument(ctx context.Context, kind string, uid string) (models.Document, error)
	GetDocuments(ctx context.Context, kind string, page int, size int) (models.DocumentsPage, error)
	// DeleteDocument returns models.ErrNotFound when there is nothing to delete.
	DeleteDocument(ctx context.Context, kind string, uid string) error
}

func getDocumentsPage(docs []models.Document, page int, size int) (models.DocumentsPage, error) {
	if page < 1 || size < 1 {
		return models.DocumentsPage{}, models.ErrBadRequest
	}
	from := (page - 1) * size
	if from > len(docs) {
		from = len(docs)
	}
	to := from + size
	if to > len(docs) {
		to = len(docs)
	}

	return models.DocumentsPage{
		Documents: docs[from:to],
		Page:      page,
		PageSize:  size,
		Total:     len(docs),
	}, nil
}

// newer orders by first publication date descending, unpublished last, then
// by uid.
func newer(a, b models.Document) bool {
	switch {
	case a.FirstPublicationDate == nil && b.FirstPublicationDate == nil:
		return a.UID < b.UID
	case a.FirstPublicationDate == nil:
		return false
	case b.FirstPublicationDate == nil:
		return true
	case !a.FirstPublicationDate.Equal(*b.FirstPublicationDate):
		return a.FirstPublicationDate.After(*b.FirstPublicationDate)
	}
	return a.UID < b.UID
}
