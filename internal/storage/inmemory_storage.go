package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/ikolcov/cmsblog/internal/models"
)

type InMemoryStorage struct {
	docs  map[string]models.Document
	mutex sync.RWMutex
}

func documentKey(kind, uid string) string {
	return kind + "/" + uid
}

func (s *InMemoryStorage) SaveDocument(ctx context.Context, doc models.Document) (models.DocumentID, error) {
	if doc.Type == "" || doc.UID == "" {
		return "", models.ErrBadRequest
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	key := documentKey(doc.Type, doc.UID)
	if existing, ok := s.docs[key]; ok {
		doc.ID = existing.ID
	} else if doc.ID == "" {
		doc.ID = models.DocumentID(uuid.NewString())
	}
	s.docs[key] = doc

	return doc.ID, nil
}

func (s *InMemoryStorage) GetDocument(ctx context.Context, kind string, uid string) (models.Document, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	doc, ok := s.docs[documentKey(kind, uid)]
	if !ok {
		return models.Document{}, models.ErrNotFound
	}
	return doc, nil
}

func (s *InMemoryStorage) GetDocuments(ctx context.Context, kind string, page int, size int) (models.DocumentsPage, error) {
	s.mutex.RLock()
	docs := make([]models.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		if doc.Type == kind {
			docs = append(docs, doc)
		}
	}
	s.mutex.RUnlock()

	sort.Slice(docs, func(i, j int) bool {
		return newer(docs[i], docs[j])
	})
	return getDocumentsPage(docs, page, size)
}

func (s *InMemoryStorage) DeleteDocument(ctx context.Context, kind string, uid string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	key := documentKey(kind, uid)
	if _, ok := s.docs[key]; !ok {
		return models.ErrNotFound
	}
	delete(s.docs, key)
	return nil
}

func NewInMemoryStorage() Storage {
	return &InMemoryStorage{
		docs: make(map[string]models.Document),
	}
}
