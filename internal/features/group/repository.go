package group

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

type GroupRepository interface {
	Create(ctx context.Context, group *Group) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*Group, error)
	Update(ctx context.Context, group *Group) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	FindByMember(ctx context.Context, memberID string) ([]Group, error)
}

type GroupRepositoryImpl struct {
	collection *mongo.Collection
}

func NewGroupRepository(db *database.MongodbDB) GroupRepository {
	return &GroupRepositoryImpl{
		collection: db.DB.Collection("groups"),
	}
}

func (r *GroupRepositoryImpl) Create(ctx context.Context, group *Group) error {
	group.CreatedAt = time.Now()
	group.UpdatedAt = time.Now()

	result, err := r.collection.InsertOne(ctx, group)
	if err != nil {
		return err
	}

	group.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *GroupRepositoryImpl) FindByID(ctx context.Context, id primitive.ObjectID) (*Group, error) {
	var group Group
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&group)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperror.NotFound("no group %s", id.Hex())
	}
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func (r *GroupRepositoryImpl) Update(ctx context.Context, group *Group) error {
	group.UpdatedAt = time.Now()

	update := bson.M{
		"$set": bson.M{
			"creator":      group.Creator,
			"members":      group.Members,
			"custom_roles": group.CustomRoles,
			"updated_at":   group.UpdatedAt,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": group.ID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return apperror.NotFound("no group %s", group.ID.Hex())
	}
	return nil
}

func (r *GroupRepositoryImpl) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (r *GroupRepositoryImpl) FindByMember(ctx context.Context, memberID string) ([]Group, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"members." + memberID: bson.M{"$exists": true}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var groups []Group
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, err
	}

	return groups, nil
}
