package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/taxdesk/filing-client/internal/core/domain"
)

const (
	collectionUsers       = "users"
	collectionCredentials = "credentials"
)

// UserRepository stores backend user profiles.
type UserRepository struct {
	coll *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{coll: db.Collection(collectionUsers)}
}

func (r *UserRepository) FindByUID(ctx context.Context, uid string) (*domain.Identity, error) {
	var id domain.Identity
	if err := r.coll.FindOne(ctx, bson.M{"_id": uid}).Decode(&id); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &id, nil
}

func (r *UserRepository) Upsert(ctx context.Context, id *domain.Identity) error {
	_, err := r.coll.ReplaceOne(ctx, bson.M{"_id": id.UID}, id, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// CredentialRepository stores identity emulator accounts keyed by email.
type CredentialRepository struct {
	coll *mongo.Collection
}

func NewCredentialRepository(db *mongo.Database) *CredentialRepository {
	return &CredentialRepository{coll: db.Collection(collectionCredentials)}
}

func (r *CredentialRepository) FindByEmail(ctx context.Context, email string) (*domain.Credential, error) {
	var c domain.Credential
	err := r.coll.FindOne(ctx, bson.M{"email": strings.ToLower(email)}).Decode(&c)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find credential: %w", err)
	}
	return &c, nil
}

func (r *CredentialRepository) Create(ctx context.Context, c *domain.Credential) error {
	doc := *c
	doc.Email = strings.ToLower(doc.Email)
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrUserExists
		}
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

// EnsureIndexes makes email unique so concurrent registrations cannot collide.
func (r *CredentialRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
