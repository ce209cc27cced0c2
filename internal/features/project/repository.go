package project

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

type ProjectRepository interface {
	Create(ctx context.Context, project *Project) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*Project, error)
	Update(ctx context.Context, project *Project) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	FindByGroups(ctx context.Context, groupIDs []primitive.ObjectID) ([]Project, error)
}

type ProjectRepositoryImpl struct {
	collection *mongo.Collection
}

func NewProjectRepository(db *database.MongodbDB) ProjectRepository {
	return &ProjectRepositoryImpl{
		collection: db.DB.Collection("projects"),
	}
}

func (r *ProjectRepositoryImpl) Create(ctx context.Context, project *Project) error {
	project.CreatedAt = time.Now()
	project.UpdatedAt = time.Now()

	result, err := r.collection.InsertOne(ctx, project)
	if err != nil {
		return err
	}

	project.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *ProjectRepositoryImpl) FindByID(ctx context.Context, id primitive.ObjectID) (*Project, error) {
	var project Project
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&project)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperror.NotFound("no project %s", id.Hex())
	}
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *ProjectRepositoryImpl) Update(ctx context.Context, project *Project) error {
	project.UpdatedAt = time.Now()

	update := bson.M{
		"$set": bson.M{
			"label":      project.Label,
			"metadata":   project.Metadata,
			"manifest":   project.Manifest,
			"layers":     project.Layers,
			"tools":      project.Tools,
			"updated_at": project.UpdatedAt,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": project.ID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return apperror.NotFound("no project %s", project.ID.Hex())
	}
	return nil
}

func (r *ProjectRepositoryImpl) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (r *ProjectRepositoryImpl) FindByGroups(ctx context.Context, groupIDs []primitive.ObjectID) ([]Project, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"group": bson.M{"$in": groupIDs}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var projects []Project
	if err := cursor.All(ctx, &projects); err != nil {
		return nil, err
	}

	return projects, nil
}
