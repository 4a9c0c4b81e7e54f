package repositories

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/paysplit/paysplit_backend/config"
	"github.com/paysplit/paysplit_backend/models"
)

var (
	// ErrNotFound covers both missing and soft-deleted documents.
	ErrNotFound = errors.New("tree not found")
	// ErrVersionConflict means the caller's version is stale; last write did not win.
	ErrVersionConflict = errors.New("tree version conflict")
)

type TreeRepository struct {
	collection *mongo.Collection
}

func NewTreeRepository(db *mongo.Client) *TreeRepository {
	return &TreeRepository{
		collection: config.GetCollection(db, "trees"),
	}
}

// Create inserts a new tree at version 1.
func (r *TreeRepository) Create(ctx context.Context, tree *models.Tree) error {
	now := time.Now()
	tree.ID = primitive.NewObjectID()
	tree.Version = 1
	tree.CreatedAt = now
	tree.UpdatedAt = now
	tree.DeletedAt = nil

	_, err := r.collection.InsertOne(ctx, tree)
	return err
}

// FindByID returns a live (not soft-deleted) tree owned by ownerID.
func (r *TreeRepository) FindByID(ctx context.Context, id, ownerID primitive.ObjectID) (*models.Tree, error) {
	filter := bson.M{
		"_id":       id,
		"ownerId":   ownerID,
		"deletedAt": nil,
	}

	var tree models.Tree
	err := r.collection.FindOne(ctx, filter).Decode(&tree)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &tree, nil
}

// FindByOwner lists an owner's live trees, most recently updated first.
func (r *TreeRepository) FindByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.Tree, error) {
	filter := bson.M{
		"ownerId":   ownerID,
		"deletedAt": nil,
	}
	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	trees := []models.Tree{}
	if err := cursor.All(ctx, &trees); err != nil {
		return nil, err
	}
	return trees, nil
}

// Update replaces a tree's content if the caller holds the current version.
// The filter pins the expected version and the write increments it, so a
// concurrent writer makes one of the two updates fail with ErrVersionConflict.
func (r *TreeRepository) Update(ctx context.Context, tree *models.Tree, expectedVersion int64) error {
	filter := bson.M{
		"_id":       tree.ID,
		"ownerId":   tree.OwnerID,
		"version":   expectedVersion,
		"deletedAt": nil,
	}
	update := bson.M{
		"$set": bson.M{
			"name":      tree.Name,
			"payout":    tree.Payout,
			"rootId":    tree.RootID,
			"nodes":     tree.Nodes,
			"view":      tree.View,
			"updatedAt": time.Now(),
		},
		"$inc": bson.M{"version": 1},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		// Distinguish a stale version from a missing document.
		count, err := r.collection.CountDocuments(ctx, bson.M{
			"_id":       tree.ID,
			"ownerId":   tree.OwnerID,
			"deletedAt": nil,
		})
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrVersionConflict
		}
		return ErrNotFound
	}

	tree.Version = expectedVersion + 1
	return nil
}

// SoftDelete marks a tree deleted without removing the document.
func (r *TreeRepository) SoftDelete(ctx context.Context, id, ownerID primitive.ObjectID) error {
	now := time.Now()
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "ownerId": ownerID, "deletedAt": nil},
		bson.M{"$set": bson.M{"deletedAt": now, "updatedAt": now}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Restore clears the soft-delete marker.
func (r *TreeRepository) Restore(ctx context.Context, id, ownerID primitive.ObjectID) error {
	now := time.Now()
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "ownerId": ownerID, "deletedAt": bson.M{"$ne": nil}},
		bson.M{"$set": bson.M{"deletedAt": nil, "updatedAt": now}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Duplicate copies a live tree into a fresh document at version 1.
func (r *TreeRepository) Duplicate(ctx context.Context, id, ownerID primitive.ObjectID) (*models.Tree, error) {
	src, err := r.FindByID(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	dup := *src
	dup.Name = src.Name + " (copy)"
	if err := r.Create(ctx, &dup); err != nil {
		return nil, err
	}
	return &dup, nil
}
