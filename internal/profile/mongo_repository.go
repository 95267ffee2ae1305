package profile

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/courtchamps/courtchamps/internal/identity"
)

type profileDocument struct {
	ID          bson.ObjectID `bson:"_id,omitempty"`
	UserID      string        `bson:"userId"`
	Email       string        `bson:"email"`
	DisplayName string        `bson:"displayName,omitempty"`
	CreatedAt   time.Time     `bson:"createdAt"`
}

// MongoRepository adapts the legacy document schema where user documents are
// located by their email field rather than by account identifier.
type MongoRepository struct {
	coll *mongo.Collection
}

// NewMongoRepository wraps the given collection.
func NewMongoRepository(coll *mongo.Collection) *MongoRepository {
	return &MongoRepository{coll: coll}
}

// Create inserts a profile document.
func (r *MongoRepository) Create(ctx context.Context, p Profile) error {
	_, err := r.coll.InsertOne(ctx, profileDocument{
		UserID:      p.AccountID,
		Email:       strings.ToLower(p.Email),
		DisplayName: p.DisplayName,
		CreatedAt:   p.CreatedAt.UTC(),
	})
	return err
}

// DeleteFor deletes the first document whose email matches the account,
// ignoring case. Further duplicates are left in place.
func (r *MongoRepository) DeleteFor(ctx context.Context, account identity.Account) error {
	err := r.coll.FindOneAndDelete(ctx, emailFilter(account.Email), deleteFirstMatchOptions()).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil
	}
	return err
}

func emailFilter(email string) bson.D {
	return bson.D{{Key: "email", Value: strings.TrimSpace(email)}}
}

// Legacy documents were written with whatever case the user typed, so the
// match uses a strength-2 (case-insensitive) collation.
func deleteFirstMatchOptions() *options.FindOneAndDeleteOptionsBuilder {
	return options.FindOneAndDelete().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetCollation(&options.Collation{Locale: "en", Strength: 2})
}
