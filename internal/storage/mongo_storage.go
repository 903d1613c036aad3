package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/ikolcov/cmsblog/internal/models"
	pkgerrors "github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoStorage struct {
	client    *mongo.Client
	documents *mongo.Collection
}

func (s *MongoStorage) SaveDocument(ctx context.Context, doc models.Document) (models.DocumentID, error) {
	if doc.Type == "" || doc.UID == "" {
		return "", models.ErrBadRequest
	}

	existing, err := s.GetDocument(ctx, doc.Type, doc.UID)
	switch {
	case err == nil:
		doc.ID = existing.ID
	case errors.Is(err, models.ErrNotFound):
		if doc.ID == "" {
			doc.ID = models.DocumentID(uuid.NewString())
		}
	default:
		return "", err
	}

	filter := bson.D{{Key: "_id", Value: doc.ID}}
	if _, err := s.documents.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true)); err != nil {
		return "", pkgerrors.Wrapf(err, "can't save document %s/%s", doc.Type, doc.UID)
	}
	return doc.ID, nil
}

func (s *MongoStorage) GetDocument(ctx context.Context, kind string, uid string) (models.Document, error) {
	var result models.Document
	err := s.documents.FindOne(ctx, bson.D{{Key: "type", Value: kind}, {Key: "uid", Value: uid}}).Decode(&result)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Document{}, models.ErrNotFound
	}
	return result, err
}

func (s *MongoStorage) GetDocuments(ctx context.Context, kind string, page int, size int) (models.DocumentsPage, error) {
	if page < 1 || size < 1 {
		return models.DocumentsPage{}, models.ErrBadRequest
	}

	filter := bson.D{{Key: "type", Value: kind}}
	total, err := s.documents.CountDocuments(ctx, filter)
	if err != nil {
		return models.DocumentsPage{}, err
	}

	// unpublished documents sort first in mongo, so they are fetched
	// separately and appended after the published ones
	findOptions := options.Find().
		SetSort(bson.D{{Key: "first_publication_date", Value: -1}, {Key: "uid", Value: 1}}).
		SetSkip(int64((page - 1) * size)).
		SetLimit(int64(size))
	published := bson.D{{Key: "type", Value: kind}, {Key: "first_publication_date", Value: bson.D{{Key: "$ne", Value: nil}}}}
	docs, err := s.find(ctx, published, findOptions)
	if err != nil {
		return models.DocumentsPage{}, err
	}

	if len(docs) < size {
		publishedCount, err := s.documents.CountDocuments(ctx, published)
		if err != nil {
			return models.DocumentsPage{}, err
		}
		skip := int64((page-1)*size) - publishedCount + int64(len(docs))
		if skip < 0 {
			skip = 0
		}
		drafts := bson.D{{Key: "type", Value: kind}, {Key: "first_publication_date", Value: nil}}
		more, err := s.find(ctx, drafts, options.Find().
			SetSort(bson.D{{Key: "uid", Value: 1}}).
			SetSkip(skip).
			SetLimit(int64(size-len(docs))))
		if err != nil {
			return models.DocumentsPage{}, err
		}
		docs = append(docs, more...)
	}

	return models.DocumentsPage{
		Documents: docs,
		Page:      page,
		PageSize:  size,
		Total:     int(total),
	}, nil
}

func (s *MongoStorage) DeleteDocument(ctx context.Context, kind string, uid string) error {
	result, err := s.documents.DeleteOne(ctx, bson.D{{Key: "type", Value: kind}, {Key: "uid", Value: uid}})
	if err != nil {
		return pkgerrors.Wrapf(err, "can't delete document %s/%s", kind, uid)
	}
	if result.DeletedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *MongoStorage) find(ctx context.Context, filter bson.D, findOptions *options.FindOptions) ([]models.Document, error) {
	cur, err := s.documents.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	docs := make([]models.Document, 0)
	for cur.Next(ctx) {
		var elem models.Document
		if err := cur.Decode(&elem); err != nil {
			return nil, err
		}
		docs = append(docs, elem)
	}
	return docs, cur.Err()
}

func (s *MongoStorage) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func NewMongoStorage(ctx context.Context, mongoUrl string, mongoDbName string) (*MongoStorage, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoUrl))
	if err != nil {
		return nil, pkgerrors.Wrap(err, "can't connect to mongo")
	}
	storage, err := newMongoStorage(ctx, client, mongoDbName)
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return storage, nil
}

func newMongoStorage(ctx context.Context, client *mongo.Client, mongoDbName string) (*MongoStorage, error) {
	if err := client.Ping(ctx, nil); err != nil {
		return nil, pkgerrors.Wrap(err, "can't ping mongo")
	}

	documents := client.Database(mongoDbName).Collection("documents")
	if _, err := documents.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "type", Value: 1}, {Key: "uid", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return nil, pkgerrors.Wrap(err, "can't create document index")
	}
	if _, err := documents.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "type", Value: 1}, {Key: "first_publication_date", Value: -1}},
	}); err != nil {
		return nil, pkgerrors.Wrap(err, "can't create publication index")
	}

	return &MongoStorage{
		client:    client,
		documents: documents,
	}, nil
}
