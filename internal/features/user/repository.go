package user

import (
	"context"
	"errors"
	"time"

	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/apperror"
	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type UserRepository interface {
	Create(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByInviteCode(ctx context.Context, code string) (*User, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	DeleteStaleInvitees(ctx context.Context, before time.Time) (int64, error)
}

type UserRepositoryImpl struct {
	Collection *mongo.Collection
}

func NewUserRepository(mongodb *database.MongodbDB) UserRepository {
	return &UserRepositoryImpl{
		Collection: mongodb.DB.Collection("users"),
	}
}

func (r *UserRepositoryImpl) Create(ctx context.Context, user *User) error {
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()

	result, err := r.Collection.InsertOne(ctx, user)
	if err != nil {
		return err
	}
	user.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *UserRepositoryImpl) FindByID(ctx context.Context, id string) (*User, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperror.BadRequest("invalid user id %s", id)
	}
	return r.findOne(ctx, bson.M{"_id": objectID})
}

func (r *UserRepositoryImpl) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepositoryImpl) FindByInviteCode(ctx context.Context, code string) (*User, error) {
	return r.findOne(ctx, bson.M{"invite_code": code, "is_temporary": true})
}

func (r *UserRepositoryImpl) findOne(ctx context.Context, filter bson.M) (*User, error) {
	var user User
	err := r.Collection.FindOne(ctx, filter).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperror.NotFound("no such user")
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepositoryImpl) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.Collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (r *UserRepositoryImpl) DeleteStaleInvitees(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.Collection.DeleteMany(ctx, bson.M{
		"is_temporary": true,
		"invited_at":   bson.M{"$lt": before},
	})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}
