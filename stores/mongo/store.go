package mongo

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	oa "github.com/panyam/credauth"
)

// CollectionAccounts is the collection accounts are stored in
const CollectionAccounts = "accounts"

// Store implements oa.AccountStore on a MongoDB collection
type Store struct {
	coll *mongo.Collection
}

var _ oa.AccountLister = (*Store)(nil)

// Connect dials uri and returns the client.  Callers own Disconnect.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrapf(oa.ErrStoreUnavailable, "mongo connect: %v", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, errors.Wrapf(oa.ErrStoreUnavailable, "mongo ping: %v", err)
	}
	return client, nil
}

// New ensures the unique indexes exist and returns a store over db
func New(ctx context.Context, db *mongo.Database) (*Store, error) {
	coll := db.Collection(CollectionAccounts)
	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "identifier", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "external_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
		{
			Keys: bson.D{{Key: "provider", Value: 1}, {Key: "created_at", Value: 1}},
		},
	})
	if err != nil {
		return nil, errors.Wrapf(oa.ErrStoreUnavailable, "create indexes: %v", err)
	}
	return &Store{coll: coll}, nil
}

func (s *Store) Insert(ctx context.Context, account *oa.Account) error {
	_, err := s.coll.InsertOne(ctx, AccountToDocument(account))
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return errors.Wrapf(oa.ErrDuplicateIdentifier, "identifier %s", account.Identifier)
	}
	return errors.Wrapf(oa.ErrStoreUnavailable, "insert account: %v", err)
}

func (s *Store) FindByID(ctx context.Context, id string) (*oa.Account, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *Store) FindByIdentifier(ctx context.Context, identifier string) (*oa.Account, error) {
	return s.findOne(ctx, bson.M{"identifier": identifier})
}

func (s *Store) FindByExternalID(ctx context.Context, externalID string) (*oa.Account, error) {
	if externalID == "" {
		return nil, oa.ErrAccountNotFound
	}
	return s.findOne(ctx, bson.M{"external_id": externalID})
}

// ListByProvider returns accounts created through provider, oldest first
func (s *Store) ListByProvider(ctx context.Context, provider string) ([]*oa.Account, error) {
	cursor, err := s.coll.Find(ctx, bson.M{"provider": provider},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, errors.Wrapf(oa.ErrStoreUnavailable, "list accounts: %v", err)
	}
	defer cursor.Close(ctx)

	var docs []AccountDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, errors.Wrapf(oa.ErrStoreUnavailable, "list accounts: %v", err)
	}
	accounts := make([]*oa.Account, 0, len(docs))
	for i := range docs {
		accounts = append(accounts, docs[i].ToAccount())
	}
	return accounts, nil
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (*oa.Account, error) {
	var doc AccountDocument
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, oa.ErrAccountNotFound
		}
		return nil, errors.Wrapf(oa.ErrStoreUnavailable, "find account: %v", err)
	}
	return doc.ToAccount(), nil
}
